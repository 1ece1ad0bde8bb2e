package partition

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/erichchampion/codegraph/blobstore"
	"github.com/erichchampion/codegraph/codec"
	"github.com/erichchampion/codegraph/model"
	"github.com/erichchampion/codegraph/resource"
)

var (
	// ErrPartitionNotFound reports an id absent from the partition table.
	ErrPartitionNotFound = errors.New("partition: not found")
	// ErrNoPartitions reports an operation that requires a partitioned
	// graph before PartitionGraph has run.
	ErrNoPartitions = errors.New("partition: graph not partitioned")
	// ErrNodeNotFound reports a node id absent from every partition.
	ErrNodeNotFound = errors.New("partition: node not found")
)

// Manager owns the partition table, the cross-reference table, and the
// load/evict lifecycle.
//
// Mutating operations (PartitionGraph, LoadPartition, EvictPartitions,
// RemovePartition) serialize on the manager's lock around table access;
// blob I/O happens outside the lock with the affected partition pinned in
// a transitional state (Loading/Evicting) so reads of other partitions
// keep flowing. Concurrent loads of the same partition are deduplicated.
type Manager struct {
	opts   Options
	logger *slog.Logger
	store  blobstore.Store
	codec  codec.Codec
	comp   Compression
	res    *resource.Controller

	loads singleflight.Group

	mu              sync.RWMutex
	strategy        Strategy
	partitions      map[model.PartitionID]*Partition
	nodeToPartition map[model.NodeID]model.PartitionID
	crossRefs       []CrossRef
	persisted       map[model.PartitionID]bool
	stats           Statistics
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the structured logger. Nil discards logs.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) { m.logger = logger }
}

// WithCodec sets the partition blob codec.
func WithCodec(c codec.Codec) ManagerOption {
	return func(m *Manager) { m.codec = c }
}

// WithCompression sets the partition blob compression.
func WithCompression(comp Compression) ManagerOption {
	return func(m *Manager) { m.comp = comp }
}

// NewManager builds a Manager persisting evicted partitions to store.
// A nil store falls back to an in-process memory store.
func NewManager(store blobstore.Store, opts Options, mopts ...ManagerOption) *Manager {
	m := &Manager{
		opts:            opts.withDefaults(),
		store:           store,
		comp:            CompressionZSTD,
		partitions:      make(map[model.PartitionID]*Partition),
		nodeToPartition: make(map[model.NodeID]model.PartitionID),
		persisted:       make(map[model.PartitionID]bool),
	}
	for _, opt := range mopts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.New(slog.DiscardHandler)
	}
	if m.store == nil {
		m.store = blobstore.NewMemoryStore()
	}
	if m.codec == nil {
		m.codec = codec.Default
	}
	m.res = resource.NewController(resource.Config{
		MaxBackgroundWorkers: m.opts.MaxConcurrentLoads,
		IOLimitBytesPerSec:   m.opts.StoreIOLimitBytesPerSec,
	})
	return m
}

// BlobName returns the store name of a partition's persisted blob.
func (m *Manager) BlobName(id model.PartitionID) string {
	return m.opts.BlobPrefix + string(id)
}

// PartitionGraph splits the graph into partitions using the given
// strategy; an empty strategy is selected from the configured criteria.
// The new partition set is computed in full before it is installed; on
// error the prior table is preserved. All new partitions start loaded.
func (m *Manager) PartitionGraph(
	ctx context.Context,
	strategy Strategy,
	nodes map[model.NodeID]model.GraphNode,
	edges map[model.EdgeID]model.GraphEdge,
	patterns map[model.PatternID]model.CodePattern,
	project *model.ProjectContext,
) (*Result, error) {
	start := time.Now()

	if strategy == "" {
		strategy = SelectStrategy(m.opts.Criteria)
	}
	buckets, err := partitionNodes(strategy, nodes, edges, project, m.opts)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	table := make(map[model.PartitionID]*Partition, len(buckets))
	nodeTo := make(map[model.NodeID]model.PartitionID, len(nodes))
	order := make([]model.PartitionID, 0, len(buckets))

	for _, b := range buckets {
		p := createPartition(b, strategy, nodes, edges, patterns, now)
		table[p.ID] = p
		order = append(order, p.ID)
		for id := range p.Nodes {
			nodeTo[id] = p.ID
		}
		if m.opts.MaxMemoryPerPartition > 0 && p.Metadata.EstimatedSize > m.opts.MaxMemoryPerPartition {
			m.logger.Warn("partition exceeds per-partition memory limit",
				"partition", string(p.ID),
				"estimated_size", p.Metadata.EstimatedSize,
				"limit", m.opts.MaxMemoryPerPartition,
			)
		}
		if m.opts.MaxEdgesPerPartition > 0 && p.Metadata.EdgeCount > m.opts.MaxEdgesPerPartition {
			m.logger.Warn("partition exceeds edge limit",
				"partition", string(p.ID),
				"edges", p.Metadata.EdgeCount,
				"limit", m.opts.MaxEdgesPerPartition,
			)
		}
	}

	refs := collectCrossRefs(nodeTo, edges)
	for _, r := range refs {
		table[r.SourcePartition].CrossRefs = append(table[r.SourcePartition].CrossRefs, r)
		table[r.TargetPartition].CrossRefs = append(table[r.TargetPartition].CrossRefs, r)
	}
	for _, p := range table {
		p.Metadata.DependsOn = dependsOn(p.ID, p.CrossRefs)
	}

	stats := computeStatistics(table, refs, time.Since(start), m.opts.ResidentFraction)

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
	m.persisted = make(map[model.PartitionID]bool)
	m.stats = stats
	for _, p := range table {
		m.res.AddMemory(p.Metadata.EstimatedSize)
	}
	m.mu.Unlock()

	m.logger.Info("graph partitioned",
		"strategy", string(strategy),
		"partitions", stats.PartitionCount,
		"cross_refs", stats.CrossPartitionEdges,
		"elapsed", stats.PartitioningTime,
	)

	res := &Result{
		Partitions: make([]*Partition, 0, len(order)),
		CrossRefs:  refs,
		Statistics: stats,
	}
	for _, id := range order {
		res.Partitions = append(res.Partitions, table[id])
	}
	return res, nil
}

// createPartition materializes one bucket: deep copies of its nodes, the
// edges internal to the bucket, and the patterns whose node sets lie
// entirely inside it.
func createPartition(
	b bucket,
	strategy Strategy,
	nodes map[model.NodeID]model.GraphNode,
	edges map[model.EdgeID]model.GraphEdge,
	patterns map[model.PatternID]model.CodePattern,
	now time.Time,
) *Partition {
	p := &Partition{
		ID:       b.id,
		Name:     b.name,
		Strategy: strategy,
		Nodes:    make(map[model.NodeID]model.GraphNode, len(b.nodes)),
		Edges:    make(map[model.EdgeID]model.GraphEdge),
		Patterns: make(map[model.PatternID]model.CodePattern),
		state:    StateLoaded,
	}

	var lastModified time.Time
	for _, id := range b.nodes {
		n := nodes[id]
		p.Nodes[id] = n.Clone()
		if n.LastModified.After(lastModified) {
			lastModified = n.LastModified
		}
	}
	for id, e := range edges {
		if _, ok := p.Nodes[e.Source]; !ok {
			continue
		}
		if _, ok := p.Nodes[e.Target]; !ok {
			continue
		}
		p.Edges[id] = e
	}
	for id, pat := range patterns {
		if len(pat.NodeIDs) == 0 {
			continue
		}
		inside := true
		for _, nid := range pat.NodeIDs {
			if _, ok := p.Nodes[nid]; !ok {
				inside = false
				break
			}
		}
		if inside {
			p.Patterns[id] = pat.Clone()
		}
	}

	p.Metadata = Metadata{
		CreatedAt:     now,
		LastAccessed:  now,
		LastModified:  lastModified,
		NodeCount:     len(p.Nodes),
		EdgeCount:     len(p.Edges),
		EstimatedSize: estimateSize(len(p.Nodes), len(p.Edges), len(p.Patterns)),
	}
	return p
}

// collectCrossRefs emits exactly one reference per edge whose endpoints
// resolve to different partitions, in deterministic edge-id order. Edges
// with an unresolvable endpoint are ignored.
func collectCrossRefs(nodeTo map[model.NodeID]model.PartitionID, edges map[model.EdgeID]model.GraphEdge) []CrossRef {
	ids := make([]model.EdgeID, 0, len(edges))
	for id := range edges {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var refs []CrossRef
	for _, id := range ids {
		e := edges[id]
		src, ok := nodeTo[e.Source]
		if !ok {
			continue
		}
		dst, ok := nodeTo[e.Target]
		if !ok || src == dst {
			continue
		}
		refs = append(refs, CrossRef{
			SourcePartition: src,
			TargetPartition: dst,
			SourceNode:      e.Source,
			TargetNode:      e.Target,
			EdgeType:        e.Type,
			Weight:          e.Weight,
		})
	}
	return refs
}

func dependsOn(id model.PartitionID, refs []CrossRef) []model.PartitionID {
	seen := make(map[model.PartitionID]bool)
	for _, r := range refs {
		other := r.Other(id)
		if other != id {
			seen[other] = true
		}
	}
	out := make([]model.PartitionID, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// LoadPartition brings a partition into memory. Loading an already-loaded
// partition only refreshes its access tracking. Under memory pressure
// eviction runs first. Concurrent loads of the same id share one fetch;
// a failed load reverts the partition to unloaded.
func (m *Manager) LoadPartition(ctx context.Context, id model.PartitionID) error {
	m.mu.Lock()
	p, ok := m.partitions[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrPartitionNotFound, id)
	}
	if p.state == StateLoaded {
		p.touch(time.Now())
		m.mu.Unlock()
		return nil
	}
	pressure := float64(m.res.MemoryUsage())/float64(m.opts.MaxMemoryUsage) > m.opts.MemoryPressureThreshold
	m.mu.Unlock()

	if pressure {
		if _, err := m.EvictPartitions(ctx); err != nil {
			return err
		}
	}

	_, err, _ := m.loads.Do(string(id), func() (any, error) {
		return nil, m.loadOne(ctx, id)
	})
	return err
}

func (m *Manager) loadOne(ctx context.Context, id model.PartitionID) error {
	var (
		p    *Partition
		size int64
	)
	for {
		m.mu.Lock()
		cand, ok := m.partitions[id]
		if !ok {
			m.mu.Unlock()
			return fmt.Errorf("%w: %s", ErrPartitionNotFound, id)
		}
		if cand.state == StateLoaded {
			cand.touch(time.Now())
			m.mu.Unlock()
			return nil
		}
		if cand.state == StateLoading || cand.state == StateEvicting {
			// Another transition owns this partition. Await it, then
			// re-check the state from scratch.
			ch := cand.transition
			m.mu.Unlock()
			select {
			case <-ch:
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}
		cand.state = StateLoading
		cand.transition = make(chan struct{})
		p = cand
		size = cand.Metadata.EstimatedSize
		m.mu.Unlock()
		break
	}

	revert := func() {
		m.settle(p, StateUnloaded)
	}

	if err := m.res.AcquireBackground(ctx); err != nil {
		revert()
		return err
	}
	defer m.res.ReleaseBackground()

	if d := m.opts.SimulatedLoadDelayPerKB; d > 0 {
		wait := d * time.Duration(size/1024+1)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			revert()
			return ctx.Err()
		}
	}

	data, err := m.store.Get(ctx, m.BlobName(id))
	if err != nil {
		revert()
		return &LoadError{PartitionID: id, Err: err}
	}
	if err := m.res.AcquireIO(ctx, len(data)); err != nil {
		revert()
		return err
	}
	loaded, err := decodeBlob(data)
	if err != nil {
		revert()
		return &LoadError{PartitionID: id, Err: err}
	}

	m.res.AddMemory(size)

	m.mu.Lock()
	p.Nodes = loaded.Nodes
	p.Edges = loaded.Edges
	p.Patterns = loaded.Patterns
	p.state = StateLoaded
	if p.transition != nil {
		close(p.transition)
		p.transition = nil
	}
	p.touch(time.Now())
	m.mu.Unlock()

	m.logger.Debug("partition loaded", "partition", string(id), "bytes", len(data))
	return nil
}

// settle finishes an in-flight transition: the final state is installed
// and any awaiting transition is released.
func (m *Manager) settle(p *Partition, state LoadState) {
	m.mu.Lock()
	p.state = state
	if p.transition != nil {
		close(p.transition)
		p.transition = nil
	}
	m.mu.Unlock()
}

// GetNode resolves a node to its partition, transparently loading it, and
// returns a copy of the node.
func (m *Manager) GetNode(ctx context.Context, id model.NodeID) (model.GraphNode, error) {
	m.mu.RLock()
	pid, ok := m.nodeToPartition[id]
	m.mu.RUnlock()
	if !ok {
		return model.GraphNode{}, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}

	if err := m.LoadPartition(ctx, pid); err != nil {
		return model.GraphNode{}, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.partitions[pid]
	if !ok {
		return model.GraphNode{}, fmt.Errorf("%w: %s", ErrPartitionNotFound, pid)
	}
	n, ok := p.Nodes[id]
	if !ok {
		return model.GraphNode{}, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	return n.Clone(), nil
}

// GetPartitionNodes returns copies of a partition's nodes in id order,
// transparently loading the partition.
func (m *Manager) GetPartitionNodes(ctx context.Context, id model.PartitionID) ([]model.GraphNode, error) {
	if err := m.LoadPartition(ctx, id); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.partitions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPartitionNotFound, id)
	}
	out := make([]model.GraphNode, 0, len(p.Nodes))
	for _, n := range p.Nodes {
		out = append(out, n.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// NodeLocation returns the partition owning a node id.
func (m *Manager) NodeLocation(id model.NodeID) (model.PartitionID, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pid, ok := m.nodeToPartition[id]
	return pid, ok
}

// PartitionState returns the load state of a partition.
func (m *Manager) PartitionState(id model.PartitionID) (LoadState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.partitions[id]
	if !ok {
		return StateUnloaded, false
	}
	return p.state, true
}

// PartitionIDs returns all partition ids in sorted order.
func (m *Manager) PartitionIDs() []model.PartitionID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.PartitionID, 0, len(m.partitions))
	for id := range m.partitions {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// SetPriority sets a partition's eviction priority. Partitions at or
// above Options.CriticalPriority are never evicted.
func (m *Manager) SetPriority(id model.PartitionID, priority float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.partitions[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrPartitionNotFound, id)
	}
	p.Metadata.Priority = priority
	return nil
}

// CrossRefs returns a copy of the global cross-partition reference list.
func (m *Manager) CrossRefs() []CrossRef {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]CrossRef(nil), m.crossRefs...)
}

// CrossRefsFor returns the cross-partition references touching id.
func (m *Manager) CrossRefsFor(id model.PartitionID) []CrossRef {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []CrossRef
	for _, r := range m.crossRefs {
		if r.Touches(id) {
			out = append(out, r)
		}
	}
	return out
}

// RemovePartition drops a partition from the table, purges its
// cross-references from both sides, and deletes its persisted blob.
func (m *Manager) RemovePartition(ctx context.Context, id model.PartitionID) error {
	m.mu.Lock()
	p, ok := m.partitions[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrPartitionNotFound, id)
	}
	if p.state == StateLoaded {
		m.res.ReleaseMemory(p.Metadata.EstimatedSize)
	}
	delete(m.partitions, id)
	wasPersisted := m.persisted[id]
	delete(m.persisted, id)

	for nid, pid := range m.nodeToPartition {
		if pid == id {
			delete(m.nodeToPartition, nid)
		}
	}

	kept := m.crossRefs[:0]
	for _, r := range m.crossRefs {
		if !r.Touches(id) {
			kept = append(kept, r)
		}
	}
	m.crossRefs = kept

	for _, other := range m.partitions {
		keptRefs := other.CrossRefs[:0]
		for _, r := range other.CrossRefs {
			if !r.Touches(id) {
				keptRefs = append(keptRefs, r)
			}
		}
		other.CrossRefs = keptRefs
		other.Metadata.DependsOn = dependsOn(other.ID, other.CrossRefs)
	}
	m.mu.Unlock()

	if wasPersisted {
		if err := m.store.Delete(ctx, m.BlobName(id)); err != nil && !errors.Is(err, blobstore.ErrNotFound) {
			return fmt.Errorf("partition: remove %s: %w", id, err)
		}
	}
	m.logger.Info("partition removed", "partition", string(id))
	return nil
}

// FlushAll persists every loaded partition without unloading it. Used by
// manifest snapshots.
func (m *Manager) FlushAll(ctx context.Context) error {
	m.mu.RLock()
	ids := make([]model.PartitionID, 0, len(m.partitions))
	for id, p := range m.partitions {
		if p.state == StateLoaded {
			ids = append(ids, id)
		}
	}
	m.mu.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		if err := m.persistOne(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// persistOne encodes and stores a partition's current contents, marking
// it persisted. The partition stays loaded.
func (m *Manager) persistOne(ctx context.Context, id model.PartitionID) error {
	m.mu.RLock()
	p, ok := m.partitions[id]
	if !ok || p.state != StateLoaded {
		m.mu.RUnlock()
		if !ok {
			return fmt.Errorf("%w: %s", ErrPartitionNotFound, id)
		}
		return nil
	}
	blob, err := encodeBlob(p, m.codec, m.comp)
	m.mu.RUnlock()
	if err != nil {
		return err
	}

	if err := m.res.AcquireIO(ctx, len(blob)); err != nil {
		return err
	}
	if err := m.store.Put(ctx, m.BlobName(id), blob); err != nil {
		return fmt.Errorf("partition: persist %s: %w", id, err)
	}

	m.mu.Lock()
	m.persisted[id] = true
	m.mu.Unlock()
	return nil
}
