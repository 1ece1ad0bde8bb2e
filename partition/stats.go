package partition

import (
	"time"

	"github.com/erichchampion/codegraph/model"
)

// Result is the outcome of PartitionGraph.
type Result struct {
	Partitions []*Partition `json:"partitions"`
	CrossRefs  []CrossRef   `json:"cross_refs"`
	Statistics Statistics   `json:"statistics"`
}

// Statistics summarizes one partitioning run.
type Statistics struct {
	PartitionCount       int           `json:"partition_count"`
	AvgNodesPerPartition float64       `json:"avg_nodes_per_partition"`
	AvgEdgesPerPartition float64       `json:"avg_edges_per_partition"`
	CrossPartitionEdges  int           `json:"cross_partition_edges"`
	PartitioningTime     time.Duration `json:"partitioning_time"`
	// MemoryReductionPct estimates savings from keeping only the
	// resident fraction of partitions in memory at once.
	MemoryReductionPct float64 `json:"memory_reduction_pct"`
}

// MemoryStats is the live memory accounting snapshot.
type MemoryStats struct {
	Current          int64   `json:"current"`
	Max              int64   `json:"max"`
	Usage            float64 `json:"usage"`
	LoadedPartitions int     `json:"loaded_partitions"`
	TotalPartitions  int     `json:"total_partitions"`
}

func computeStatistics(
	table map[model.PartitionID]*Partition,
	refs []CrossRef,
	elapsed time.Duration,
	residentFraction float64,
) Statistics {
	s := Statistics{
		PartitionCount:      len(table),
		CrossPartitionEdges: len(refs),
		PartitioningTime:    elapsed,
		MemoryReductionPct:  (1 - residentFraction) * 100,
	}
	if len(table) == 0 {
		return s
	}
	var nodes, edges int
	for _, p := range table {
		nodes += p.Metadata.NodeCount
		edges += p.Metadata.EdgeCount
	}
	s.AvgNodesPerPartition = float64(nodes) / float64(len(table))
	s.AvgEdgesPerPartition = float64(edges) / float64(len(table))
	return s
}

// Statistics returns the statistics of the most recent PartitionGraph run.
func (m *Manager) Statistics() Statistics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stats
}

// MemoryStats reports current memory accounting.
func (m *Manager) MemoryStats() MemoryStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	loaded := 0
	for _, p := range m.partitions {
		if p.state == StateLoaded {
			loaded++
		}
	}
	current := m.res.MemoryUsage()
	return MemoryStats{
		Current:          current,
		Max:              m.opts.MaxMemoryUsage,
		Usage:            float64(current) / float64(m.opts.MaxMemoryUsage),
		LoadedPartitions: loaded,
		TotalPartitions:  len(m.partitions),
	}
}
