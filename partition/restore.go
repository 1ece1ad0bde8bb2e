package partition

import (
	"context"
	"fmt"
	"sort"

	"github.com/erichchampion/codegraph/model"
)

// Description is a read-only snapshot of one partition's bookkeeping.
type Description struct {
	ID       model.PartitionID
	Name     string
	Strategy Strategy
	State    LoadState
	Metadata Metadata
}

// DescribePartitions snapshots every partition's metadata in id order.
func (m *Manager) DescribePartitions() []Description {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Description, 0, len(m.partitions))
	for _, p := range m.partitions {
		out = append(out, Description{
			ID:       p.ID,
			Name:     p.Name,
			Strategy: p.Strategy,
			State:    p.state,
			Metadata: p.Metadata,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Restore rebuilds the partition table from persisted blobs. Each blob is
// decoded once to recover metadata, node ownership, and cross-references;
// the partitions are registered unloaded, so the restored graph starts at
// zero resident memory and loads on demand.
//
// Like PartitionGraph, the new table is computed in full before it
// replaces the old one.
func (m *Manager) Restore(ctx context.Context, strategy Strategy, ids []model.PartitionID) error {
	table := make(map[model.PartitionID]*Partition, len(ids))
	nodeTo := make(map[model.NodeID]model.PartitionID)
	persisted := make(map[model.PartitionID]bool, len(ids))
	refSet := make(map[CrossRef]bool)

	for _, id := range ids {
		data, err := m.store.Get(ctx, m.BlobName(id))
		if err != nil {
			return fmt.Errorf("partition: restore %s: %w", id, err)
		}
		p, err := decodeBlob(data)
		if err != nil {
			return fmt.Errorf("partition: restore %s: %w", id, err)
		}
		for nid := range p.Nodes {
			nodeTo[nid] = p.ID
		}
		for _, r := range p.CrossRefs {
			refSet[r] = true
		}
		p.clearContainers()
		p.state = StateUnloaded
		table[p.ID] = p
		persisted[p.ID] = true
	}

	refs := make([]CrossRef, 0, len(refSet))
	for r := range refSet {
		refs = append(refs, r)
	}
	sort.Slice(refs, func(i, j int) bool {
		a, b := refs[i], refs[j]
		if a.SourceNode != b.SourceNode {
			return a.SourceNode < b.SourceNode
		}
		if a.TargetNode != b.TargetNode {
			return a.TargetNode < b.TargetNode
		}
		return a.EdgeType < b.EdgeType
	})

	m.mu.Lock()
	for _, p := range m.partitions {
		if p.state == StateLoaded {
			m.res.ReleaseMemory(p.Metadata.EstimatedSize)
		}
	}
	m.strategy = strategy
	m.partitions = table
	m.nodeToPartition = nodeTo
	m.crossRefs = refs
	m.persisted = persisted
	m.stats = computeStatistics(table, refs, 0, m.opts.ResidentFraction)
	m.mu.Unlock()

	m.logger.Info("partitions restored", "partitions", len(table), "cross_refs", len(refs))
	return nil
}
