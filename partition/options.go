package partition

import (
	"time"
)

// EvictionPolicy selects how eviction candidates are scored.
type EvictionPolicy string

const (
	PolicyLRU       EvictionPolicy = "lru"
	PolicyLFU       EvictionPolicy = "lfu"
	PolicyPriority  EvictionPolicy = "priority"
	PolicySizeBased EvictionPolicy = "size_based"
	PolicyHybrid    EvictionPolicy = "hybrid"
)

// EvictionWeights is the hybrid policy's weighted formula. The values are
// heuristic defaults, not invariants; tune per workload.
type EvictionWeights struct {
	// Recency weighs 1/(1+minutes since last access).
	Recency float64
	// Frequency weighs the access count.
	Frequency float64
	// SizeInverse weighs 1/(1+size in MiB); larger partitions score lower
	// and are preferred for eviction.
	SizeInverse float64
}

// DefaultEvictionWeights are the hybrid policy defaults.
func DefaultEvictionWeights() EvictionWeights {
	return EvictionWeights{
		Recency:     0.5,
		Frequency:   0.3,
		SizeInverse: 0.2,
	}
}

// Criteria is the partitioning-criteria bundle recognized by the
// strategies.
type Criteria struct {
	GroupByModule       bool `json:"group_by_module"`
	GroupByFileType     bool `json:"group_by_file_type"`
	GroupByDirectory    bool `json:"group_by_directory"`
	RespectDependencies bool `json:"respect_dependencies"`
	MinimizeCrossRefs   bool `json:"minimize_cross_refs"`
}

// Options configures a Manager.
type Options struct {
	// MaxNodesPerPartition bounds partition size for the size and
	// dependency-cluster strategies. Default 1000.
	MaxNodesPerPartition int
	// MaxEdgesPerPartition bounds internal edges per partition. 0 means
	// unbounded.
	MaxEdgesPerPartition int
	// MaxMemoryPerPartition caps one partition's estimated size. 0 means
	// unbounded.
	MaxMemoryPerPartition int64
	// Criteria tunes strategy selection.
	Criteria Criteria

	// MaxMemoryUsage is the loaded-partition memory budget in bytes.
	// Default 256 MiB.
	MaxMemoryUsage int64
	// MemoryPressureThreshold in (0,1]: loading while
	// usage/budget > threshold triggers eviction first. Default 0.8.
	MemoryPressureThreshold float64
	// EvictionTargetFraction in (0,1]: eviction stops once usage drops to
	// this fraction of the budget. Default 0.6.
	EvictionTargetFraction float64
	// EvictionPolicy scores eviction candidates. Default PolicyHybrid.
	EvictionPolicy EvictionPolicy
	// EvictionWeights tunes the hybrid policy.
	EvictionWeights EvictionWeights
	// CriticalPriority marks partitions at or above this priority as
	// non-evictable. Default 10.
	CriticalPriority float64

	// ResidentFraction is the assumed fraction of partitions resident at
	// once, used by the memory-reduction estimate. Default 0.2.
	ResidentFraction float64

	// MaxConcurrentLoads bounds parallel partition loads. Default 4.
	MaxConcurrentLoads int64
	// StoreIOLimitBytesPerSec throttles eviction writes and load reads.
	// 0 means unlimited.
	StoreIOLimitBytesPerSec int64

	// SimulatedLoadDelayPerKB adds artificial latency proportional to a
	// partition's estimated size, for deterministic latency tests. 0
	// disables it.
	SimulatedLoadDelayPerKB time.Duration

	// BlobPrefix prefixes partition blob names in the store. Default
	// "partitions/".
	BlobPrefix string
}

// withDefaults fills unset options.
func (o Options) withDefaults() Options {
	if o.MaxNodesPerPartition <= 0 {
		o.MaxNodesPerPartition = 1000
	}
	if o.MaxMemoryUsage <= 0 {
		o.MaxMemoryUsage = 256 << 20
	}
	if o.MemoryPressureThreshold <= 0 || o.MemoryPressureThreshold > 1 {
		o.MemoryPressureThreshold = 0.8
	}
	if o.EvictionTargetFraction <= 0 || o.EvictionTargetFraction > 1 {
		o.EvictionTargetFraction = 0.6
	}
	if o.EvictionPolicy == "" {
		o.EvictionPolicy = PolicyHybrid
	}
	if o.EvictionWeights == (EvictionWeights{}) {
		o.EvictionWeights = DefaultEvictionWeights()
	}
	if o.CriticalPriority <= 0 {
		o.CriticalPriority = 10
	}
	if o.ResidentFraction <= 0 || o.ResidentFraction > 1 {
		o.ResidentFraction = 0.2
	}
	if o.MaxConcurrentLoads <= 0 {
		o.MaxConcurrentLoads = 4
	}
	if o.BlobPrefix == "" {
		o.BlobPrefix = "partitions/"
	}
	return o
}
