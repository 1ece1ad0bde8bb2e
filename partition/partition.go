package partition

import (
	"time"

	"github.com/erichchampion/codegraph/model"
)

// LoadState is the lifecycle state of a partition.
type LoadState uint8

const (
	StateUnloaded LoadState = iota
	StateLoading
	StateLoaded
	StateEvicting
)

// String returns the state name.
func (s LoadState) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateEvicting:
		return "evicting"
	default:
		return "unknown"
	}
}

// Strategy selects how the graph is split into partitions.
type Strategy string

const (
	StrategyModule     Strategy = "module"
	StrategyDirectory  Strategy = "directory"
	StrategyFileType   Strategy = "file_type"
	StrategySize       Strategy = "size_based"
	StrategyDependency Strategy = "dependency_cluster"
	StrategyTemporal   Strategy = "temporal"
)

// Metadata is the bookkeeping attached to every partition. It is mutated
// on every load/access and recomputed on creation.
type Metadata struct {
	CreatedAt    time.Time `json:"created_at"`
	LastAccessed time.Time `json:"last_accessed"`
	LastModified time.Time `json:"last_modified"`
	AccessCount  int64     `json:"access_count"`
	// EstimatedSize is derived from entity counts, not measured.
	EstimatedSize int64 `json:"estimated_size"`
	NodeCount     int   `json:"node_count"`
	EdgeCount     int   `json:"edge_count"`
	// Priority raises a partition above eviction; see
	// Options.CriticalPriority.
	Priority  float64             `json:"priority"`
	DependsOn []model.PartitionID `json:"depends_on,omitempty"`
}

// CrossRef records one graph edge whose endpoints live in different
// partitions. It is a pure value: both partitions list the same reference,
// and deleting a partition purges its references from the other side.
type CrossRef struct {
	SourcePartition model.PartitionID `json:"source_partition"`
	TargetPartition model.PartitionID `json:"target_partition"`
	SourceNode      model.NodeID      `json:"source_node"`
	TargetNode      model.NodeID      `json:"target_node"`
	EdgeType        model.EdgeType    `json:"edge_type"`
	Weight          float64           `json:"weight"`
}

// Touches reports whether the reference involves the given partition.
func (r CrossRef) Touches(id model.PartitionID) bool {
	return r.SourcePartition == id || r.TargetPartition == id
}

// Other returns the partition on the opposite side of the reference.
func (r CrossRef) Other(id model.PartitionID) model.PartitionID {
	if r.SourcePartition == id {
		return r.TargetPartition
	}
	return r.SourcePartition
}

// Partition is a disjoint subset of the graph, independently loadable and
// evictable. While loaded it exclusively owns deep copies of its records;
// on eviction ownership of the serialized form passes to the blob store
// and the containers are cleared.
type Partition struct {
	ID       model.PartitionID `json:"id"`
	Name     string            `json:"name"`
	Strategy Strategy          `json:"strategy"`

	Nodes    map[model.NodeID]model.GraphNode      `json:"nodes"`
	Edges    map[model.EdgeID]model.GraphEdge      `json:"edges"`
	Patterns map[model.PatternID]model.CodePattern `json:"patterns"`

	Metadata  Metadata   `json:"metadata"`
	CrossRefs []CrossRef `json:"cross_refs,omitempty"`

	// state is runtime-only and never serialized.
	state LoadState
	// transition is non-nil while a load or evict is in flight and is
	// closed when it settles, so the competing transition can await it.
	transition chan struct{}
}

// State returns the partition's load state.
func (p *Partition) State() LoadState { return p.state }

// touch refreshes access tracking.
func (p *Partition) touch(now time.Time) {
	p.Metadata.LastAccessed = now
	p.Metadata.AccessCount++
}

// Per-entity size estimates (bytes). Derived, not measured: they only need
// to be stable enough for budget accounting and eviction ordering.
const (
	nodeSizeEstimate    = 512
	edgeSizeEstimate    = 128
	patternSizeEstimate = 256
)

func estimateSize(nodes, edges, patterns int) int64 {
	return int64(nodes)*nodeSizeEstimate +
		int64(edges)*edgeSizeEstimate +
		int64(patterns)*patternSizeEstimate
}

// clearContainers drops the owned records. Callers must have confirmed the
// persisted copy first.
func (p *Partition) clearContainers() {
	p.Nodes = nil
	p.Edges = nil
	p.Patterns = nil
}
