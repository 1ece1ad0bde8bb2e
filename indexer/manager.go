package indexer

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/erichchampion/codegraph/index"
	"github.com/erichchampion/codegraph/index/btree"
	"github.com/erichchampion/codegraph/index/fulltext"
	"github.com/erichchampion/codegraph/index/rtree"
	"github.com/erichchampion/codegraph/model"
	"golang.org/x/sync/errgroup"
)

// NodeDataProvider supplies the full node-data set for an index rebuild.
// It may suspend on I/O (e.g. loading partitions) and must honor ctx.
type NodeDataProvider func(ctx context.Context) (map[model.NodeID]index.Document, error)

// Manager owns one instance of every configured index and fans node
// maintenance out across them.
//
// Fan-out is best-effort, not transactional: a failed index update is
// captured, reported through OnError, and re-raised to the caller, but
// indexes already updated in the same call are not rolled back.
type Manager struct {
	mu      sync.RWMutex
	indexes []index.Index
	byName  map[string]index.Index

	onError func(*MaintenanceError)
	logger  *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithOnError installs the notification callback invoked for every failed
// or skipped index update.
func WithOnError(fn func(*MaintenanceError)) Option {
	return func(m *Manager) { m.onError = fn }
}

// WithLogger sets the structured logger. Nil discards logs.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// NewManager builds the configured indexes.
func NewManager(cfg Config, opts ...Option) *Manager {
	m := &Manager{
		byName: make(map[string]index.Index),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.New(slog.DiscardHandler)
	}

	for _, c := range cfg.BTrees {
		m.register(newOrderedIndex(c))
	}
	for _, c := range cfg.FullTexts {
		m.register(newTextIndex(c))
	}
	for _, c := range cfg.Spatials {
		m.register(newSpatialIndex(c))
	}
	for _, c := range cfg.Composites {
		m.register(newCompositeIndex(c))
	}
	return m
}

func (m *Manager) register(ix index.Index) {
	m.indexes = append(m.indexes, ix)
	m.byName[ix.Name()] = ix
}

func (m *Manager) notify(e *MaintenanceError) {
	m.logger.Warn("index maintenance error",
		"op", e.Op,
		"index", e.Index,
		"node", string(e.NodeID),
		"error", e.Err,
	)
	if m.onError != nil {
		m.onError(e)
	}
}

// fieldsPresent reports whether doc carries what the index consumes: the
// ordered key, all four spatial coordinates, or at least one declared
// full-text/composite field.
func fieldsPresent(ix index.Index, doc index.Document) bool {
	fields := ix.Fields()
	switch ix.Kind() {
	case index.KindOrdered, index.KindSpatial:
		for _, f := range fields {
			if v, ok := doc[f]; !ok || v == nil {
				return false
			}
		}
		return true
	default:
		for _, f := range fields {
			if v, ok := doc[f]; ok && v != nil {
				return true
			}
		}
		return false
	}
}

// AddNode fans the node's document out to every index whose declared
// fields are present. Per-index errors are reported and joined into the
// returned error.
func (m *Manager) AddNode(id model.NodeID, doc index.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.addLocked(id, doc)
}

func (m *Manager) addLocked(id model.NodeID, doc index.Document) error {
	var errs []error
	for _, ix := range m.indexes {
		if !fieldsPresent(ix, doc) {
			continue
		}
		if err := ix.Add(id, doc); err != nil {
			me := &MaintenanceError{Op: "add", Index: ix.Name(), NodeID: id, Err: err}
			m.notify(me)
			errs = append(errs, me)
		}
	}
	return errors.Join(errs...)
}

// RemoveNode unindexes the node from every index supporting removal
// (full-text, composite). Ordered and spatial indexes are skipped with a
// notification; refreshing them requires RebuildIndexes.
func (m *Manager) RemoveNode(id model.NodeID, doc index.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.removeLocked(id, doc)
}

func (m *Manager) removeLocked(id model.NodeID, doc index.Document) error {
	var errs []error
	for _, ix := range m.indexes {
		err := ix.Remove(id, doc)
		if err == nil {
			continue
		}
		me := &MaintenanceError{Op: "remove", Index: ix.Name(), NodeID: id, Err: err}
		m.notify(me)
		if !errors.Is(err, index.ErrRemoveUnsupported) {
			errs = append(errs, me)
		}
	}
	return errors.Join(errs...)
}

// UpdateNode re-indexes the node: remove, then add.
func (m *Manager) UpdateNode(id model.NodeID, doc index.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.removeLocked(id, doc); err != nil {
		return err
	}
	return m.addLocked(id, doc)
}

// SearchBTree looks up a key in the named ordered index. An unknown index
// or missing key yields ok=false, never an error.
func (m *Manager) SearchBTree(name string, key any) (model.NodeID, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ix, ok := m.byName[name].(*orderedIndex)
	if !ok {
		return "", false
	}
	return ix.tree.Search(key)
}

// RangeSearchBTree returns all pairs with start <= key <= end in key order
// from the named ordered index.
func (m *Manager) RangeSearchBTree(name string, start, end any) []btree.Pair[any, model.NodeID] {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ix, ok := m.byName[name].(*orderedIndex)
	if !ok {
		return nil
	}
	return ix.tree.RangeSearch(start, end)
}

// FullTextSearch runs a ranked text query against the named full-text
// index.
func (m *Manager) FullTextSearch(name, query string, limit int) []fulltext.Result {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ix, ok := m.byName[name].(*textIndex)
	if !ok {
		return nil
	}
	return ix.ft.Search(query, limit)
}

// SpatialSearch returns entries overlapping the query box from the named
// spatial index.
func (m *Manager) SpatialSearch(name string, box rtree.Box) []rtree.Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ix, ok := m.byName[name].(*spatialIndex)
	if !ok {
		return nil
	}
	return ix.tree.Search(box)
}

// CompositeSearch returns ids matching the partial field values in the
// named composite index.
func (m *Manager) CompositeSearch(name string, partial map[string]any) []model.NodeID {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ix, ok := m.byName[name].(*compositeIndex)
	if !ok {
		return nil
	}
	return ix.ci.Search(partial)
}

// Stats reports per-index entry counts.
func (m *Manager) Stats() []index.Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]index.Stats, 0, len(m.indexes))
	for _, ix := range m.indexes {
		out = append(out, ix.Stats())
	}
	return out
}

// RebuildIndexes clears every index and replays the full node-data set
// from the provider. This is the supported removal path for ordered and
// spatial indexes.
//
// The provider call is a suspension point: it may load partitions or hit
// persistence. Per-index replay runs in parallel; the first error cancels
// the group and is returned (indexes may then be partially rebuilt, which
// the caller should treat as needing another rebuild).
func (m *Manager) RebuildIndexes(ctx context.Context, provider NodeDataProvider) error {
	if provider == nil {
		return errors.New("indexer: nil node data provider")
	}

	docs, err := provider(ctx)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, ix := range m.indexes {
		ix.Clear()
	}

	g, _ := errgroup.WithContext(ctx)
	for _, ix := range m.indexes {
		g.Go(func() error {
			for id, doc := range docs {
				if !fieldsPresent(ix, doc) {
					continue
				}
				if err := ix.Add(id, doc); err != nil {
					me := &MaintenanceError{Op: "rebuild", Index: ix.Name(), NodeID: id, Err: err}
					m.notify(me)
					return me
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	m.logger.Info("indexes rebuilt", "indexes", len(m.indexes), "nodes", len(docs))
	return nil
}
