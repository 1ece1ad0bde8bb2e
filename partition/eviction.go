package partition

import (
	"context"
	"time"

	"github.com/erichchampion/codegraph/model"
)

// evictionScore ranks a loaded partition for eviction; the lowest score
// goes first. Recency is inverted minutes since last access, size enters
// inverted so larger partitions score lower and leave earlier.
func (m *Manager) evictionScore(p *Partition, now time.Time) float64 {
	minutes := now.Sub(p.Metadata.LastAccessed).Minutes()
	if minutes < 0 {
		minutes = 0
	}
	recency := 1 / (1 + minutes)
	frequency := float64(p.Metadata.AccessCount)
	sizeMB := float64(p.Metadata.EstimatedSize) / (1 << 20)
	sizeInverse := 1 / (1 + sizeMB)

	switch m.opts.EvictionPolicy {
	case PolicyLRU:
		return recency
	case PolicyLFU:
		return frequency
	case PolicyPriority:
		return p.Metadata.Priority
	case PolicySizeBased:
		return sizeInverse
	default:
		w := m.opts.EvictionWeights
		return w.Recency*recency + w.Frequency*frequency + w.SizeInverse*sizeInverse
	}
}

// EvictPartitions evicts lowest-scoring loaded partitions until memory
// usage drops to the target fraction of the budget, or no evictable
// partition remains. Partitions at or above CriticalPriority are never
// evicted. Each evicted partition is persisted before its containers are
// cleared; a failed write leaves the partition loaded.
func (m *Manager) EvictPartitions(ctx context.Context) ([]model.PartitionID, error) {
	target := int64(float64(m.opts.MaxMemoryUsage) * m.opts.EvictionTargetFraction)

	var evicted []model.PartitionID
	for m.res.MemoryUsage() > target {
		victim := m.pickVictim()
		if victim == nil {
			break
		}
		if err := m.evictOne(ctx, victim); err != nil {
			return evicted, err
		}
		evicted = append(evicted, victim.ID)
	}

	if len(evicted) > 0 {
		m.logger.Info("partitions evicted",
			"count", len(evicted),
			"usage", m.res.MemoryUsage(),
			"target", target,
		)
	}
	return evicted, nil
}

// pickVictim selects the lowest-scoring evictable partition and pins it
// in the evicting state, or returns nil if none qualifies.
func (m *Manager) pickVictim() *Partition {
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	var best *Partition
	var bestScore float64
	for _, p := range m.partitions {
		if p.state != StateLoaded {
			continue
		}
		if p.Metadata.Priority >= m.opts.CriticalPriority {
			continue
		}
		score := m.evictionScore(p, now)
		if best == nil || score < bestScore || (score == bestScore && p.ID < best.ID) {
			best = p
			bestScore = score
		}
	}
	if best != nil {
		best.state = StateEvicting
		best.transition = make(chan struct{})
	}
	return best
}

// evictOne persists the partition, then clears its containers and returns
// its memory to the budget. Caller must have pinned p in StateEvicting.
func (m *Manager) evictOne(ctx context.Context, p *Partition) error {
	blob, err := encodeBlob(p, m.codec, m.comp)
	if err != nil {
		m.revertEviction(p)
		return err
	}
	if err := m.res.AcquireIO(ctx, len(blob)); err != nil {
		m.revertEviction(p)
		return err
	}
	if err := m.store.Put(ctx, m.BlobName(p.ID), blob); err != nil {
		m.revertEviction(p)
		return &EvictError{PartitionID: p.ID, Err: err}
	}

	m.mu.Lock()
	p.clearContainers()
	p.state = StateUnloaded
	if p.transition != nil {
		close(p.transition)
		p.transition = nil
	}
	m.persisted[p.ID] = true
	m.mu.Unlock()

	m.res.ReleaseMemory(p.Metadata.EstimatedSize)
	m.logger.Debug("partition evicted", "partition", string(p.ID), "bytes", len(blob))
	return nil
}

func (m *Manager) revertEviction(p *Partition) {
	m.settle(p, StateLoaded)
}
