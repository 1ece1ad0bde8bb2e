package codegraph

import (
	"context"
	"time"

	"github.com/erichchampion/codegraph/blobstore"
	"github.com/erichchampion/codegraph/codec"
	"github.com/erichchampion/codegraph/index"
	"github.com/erichchampion/codegraph/index/btree"
	"github.com/erichchampion/codegraph/index/fulltext"
	"github.com/erichchampion/codegraph/index/rtree"
	"github.com/erichchampion/codegraph/indexer"
	"github.com/erichchampion/codegraph/manifest"
	"github.com/erichchampion/codegraph/model"
	"github.com/erichchampion/codegraph/partition"
)

// Engine is the façade over the partition manager and the index
// orchestrator. It is an explicit instance: construct one per graph, no
// process-global state.
type Engine struct {
	logger  *Logger
	metrics MetricsCollector
	store   blobstore.Store
	codec   codec.Codec
	comp    partition.Compression

	partitions *partition.Manager
	indexes    *indexer.Manager
	manifests  *manifest.Store
}

// New creates an Engine.
func New(optFns ...Option) *Engine {
	o := options{
		logger:           NoopLogger(),
		metricsCollector: NoopMetricsCollector{},
		codec:            codec.Default,
		compression:      partition.CompressionZSTD,
	}
	for _, fn := range optFns {
		fn(&o)
	}
	if o.store == nil {
		o.store = blobstore.NewMemoryStore()
	}

	pm := partition.NewManager(o.store, o.partitionOpts,
		partition.WithLogger(o.logger.Logger),
		partition.WithCodec(o.codec),
		partition.WithCompression(o.compression),
	)
	im := indexer.NewManager(o.indexConfig,
		indexer.WithLogger(o.logger.Logger),
		indexer.WithOnError(o.onIndexError),
	)

	return &Engine{
		logger:     o.logger,
		metrics:    o.metricsCollector,
		store:      o.store,
		codec:      o.codec,
		comp:       o.compression,
		partitions: pm,
		indexes:    im,
		manifests:  manifest.NewStore(o.store, o.codec),
	}
}

// PartitionGraph splits the graph into partitions using the given
// strategy. The prior partition table is preserved on failure.
func (e *Engine) PartitionGraph(
	ctx context.Context,
	strategy partition.Strategy,
	nodes map[model.NodeID]model.GraphNode,
	edges map[model.EdgeID]model.GraphEdge,
	patterns map[model.PatternID]model.CodePattern,
	project *model.ProjectContext,
) (*partition.Result, error) {
	start := time.Now()
	res, err := e.partitions.PartitionGraph(ctx, strategy, nodes, edges, patterns, project)
	count := 0
	if res != nil {
		count = res.Statistics.PartitionCount
	}
	e.metrics.RecordPartition(count, time.Since(start), err)
	return res, translateError(err)
}

// LoadPartition brings a partition into memory; loading an already-loaded
// partition only refreshes access tracking.
func (e *Engine) LoadPartition(ctx context.Context, id model.PartitionID) error {
	start := time.Now()
	err := e.partitions.LoadPartition(ctx, id)
	e.metrics.RecordLoad(time.Since(start), err)
	return translateError(err)
}

// EvictPartitions evicts loaded partitions until memory usage drops to
// the configured target fraction of the budget.
func (e *Engine) EvictPartitions(ctx context.Context) ([]model.PartitionID, error) {
	start := time.Now()
	evicted, err := e.partitions.EvictPartitions(ctx)
	e.metrics.RecordEvict(len(evicted), time.Since(start), err)
	return evicted, translateError(err)
}

// GetNode returns a copy of a node, transparently loading its partition.
func (e *Engine) GetNode(ctx context.Context, id model.NodeID) (model.GraphNode, error) {
	n, err := e.partitions.GetNode(ctx, id)
	return n, translateError(err)
}

// GetPartitionNodes returns copies of a partition's nodes in id order,
// transparently loading the partition.
func (e *Engine) GetPartitionNodes(ctx context.Context, id model.PartitionID) ([]model.GraphNode, error) {
	nodes, err := e.partitions.GetPartitionNodes(ctx, id)
	return nodes, translateError(err)
}

// RemovePartition drops a partition, purging its cross-references from
// both sides and deleting its persisted blob.
func (e *Engine) RemovePartition(ctx context.Context, id model.PartitionID) error {
	return translateError(e.partitions.RemovePartition(ctx, id))
}

// MemoryStats reports current partition memory accounting.
func (e *Engine) MemoryStats() partition.MemoryStats {
	return e.partitions.MemoryStats()
}

// PartitionStatistics returns the statistics of the most recent
// PartitionGraph run.
func (e *Engine) PartitionStatistics() partition.Statistics {
	return e.partitions.Statistics()
}

// AddNode indexes a graph node across every configured index whose
// declared fields are present on it.
func (e *Engine) AddNode(node model.GraphNode) error {
	start := time.Now()
	err := e.indexes.AddNode(node.ID, indexer.DocumentFromNode(node))
	e.metrics.RecordIndexOp("add", time.Since(start), err)
	return err
}

// UpdateNode re-indexes a graph node.
func (e *Engine) UpdateNode(node model.GraphNode) error {
	start := time.Now()
	err := e.indexes.UpdateNode(node.ID, indexer.DocumentFromNode(node))
	e.metrics.RecordIndexOp("update", time.Since(start), err)
	return err
}

// RemoveNode unindexes a graph node from every index supporting removal.
func (e *Engine) RemoveNode(node model.GraphNode) error {
	start := time.Now()
	err := e.indexes.RemoveNode(node.ID, indexer.DocumentFromNode(node))
	e.metrics.RecordIndexOp("remove", time.Since(start), err)
	return err
}

// SearchBTree looks up a key in the named ordered index.
func (e *Engine) SearchBTree(name string, key any) (model.NodeID, bool) {
	return e.indexes.SearchBTree(name, key)
}

// RangeSearchBTree returns all pairs with start <= key <= end in key
// order from the named ordered index.
func (e *Engine) RangeSearchBTree(name string, startKey, endKey any) []btree.Pair[any, model.NodeID] {
	return e.indexes.RangeSearchBTree(name, startKey, endKey)
}

// FullTextSearch runs a ranked text query against the named full-text
// index. limit 0 uses the default result limit; a negative limit is
// rejected.
func (e *Engine) FullTextSearch(name, query string, limit int) ([]fulltext.Result, error) {
	if limit < 0 {
		return nil, ErrInvalidLimit
	}
	start := time.Now()
	results := e.indexes.FullTextSearch(name, query, limit)
	e.metrics.RecordSearch(name, len(results), time.Since(start))
	return results, nil
}

// SpatialSearch returns entries overlapping the query box from the named
// spatial index.
func (e *Engine) SpatialSearch(name string, box rtree.Box) []rtree.Entry {
	start := time.Now()
	results := e.indexes.SpatialSearch(name, box)
	e.metrics.RecordSearch(name, len(results), time.Since(start))
	return results
}

// CompositeSearch returns node ids matching the partial field values in
// the named composite index.
func (e *Engine) CompositeSearch(name string, partial map[string]any) []model.NodeID {
	start := time.Now()
	results := e.indexes.CompositeSearch(name, partial)
	e.metrics.RecordSearch(name, len(results), time.Since(start))
	return results
}

// IndexStats reports per-index entry counts.
func (e *Engine) IndexStats() []index.Stats {
	return e.indexes.Stats()
}

// RebuildIndexes clears every index and replays all partitioned nodes,
// loading partitions as needed. This is the supported removal path for
// ordered and spatial indexes.
func (e *Engine) RebuildIndexes(ctx context.Context) error {
	return e.RebuildIndexesFrom(ctx, e.partitionedNodeData)
}

// RebuildIndexesFrom rebuilds every index from a caller-supplied node
// data provider.
func (e *Engine) RebuildIndexesFrom(ctx context.Context, provider indexer.NodeDataProvider) error {
	start := time.Now()
	err := e.indexes.RebuildIndexes(ctx, provider)
	e.metrics.RecordIndexOp("rebuild", time.Since(start), err)
	return translateError(err)
}

// partitionedNodeData is the default rebuild provider: every node of
// every partition, loaded on demand.
func (e *Engine) partitionedNodeData(ctx context.Context) (map[model.NodeID]index.Document, error) {
	docs := make(map[model.NodeID]index.Document)
	for _, id := range e.partitions.PartitionIDs() {
		nodes, err := e.partitions.GetPartitionNodes(ctx, id)
		if err != nil {
			return nil, err
		}
		for _, n := range nodes {
			docs[n.ID] = indexer.DocumentFromNode(n)
		}
	}
	return docs, nil
}

// SaveManifest persists every loaded partition and writes a manifest
// snapshot naming the full partition layout.
func (e *Engine) SaveManifest(ctx context.Context) error {
	if err := e.partitions.FlushAll(ctx); err != nil {
		return translateError(err)
	}

	prev, err := e.manifests.Load(ctx)
	if err != nil {
		return translateError(err)
	}

	descs := e.partitions.DescribePartitions()
	m := &manifest.Manifest{
		ID:            prev.ID,
		Codec:         e.codec.Name(),
		Compression:   uint8(e.comp),
		CrossRefCount: len(e.partitions.CrossRefs()),
		Partitions:    make([]manifest.PartitionInfo, 0, len(descs)),
	}
	for _, d := range descs {
		m.Strategy = string(d.Strategy)
		m.Partitions = append(m.Partitions, manifest.PartitionInfo{
			ID:            d.ID,
			Name:          d.Name,
			BlobName:      e.partitions.BlobName(d.ID),
			NodeCount:     d.Metadata.NodeCount,
			EdgeCount:     d.Metadata.EdgeCount,
			EstimatedSize: d.Metadata.EstimatedSize,
			Priority:      d.Metadata.Priority,
		})
	}
	return translateError(e.manifests.Save(ctx, m))
}

// LoadManifest rebuilds the partition table from the live manifest
// snapshot. Restored partitions start unloaded and load on demand.
func (e *Engine) LoadManifest(ctx context.Context) error {
	m, err := e.manifests.Load(ctx)
	if err != nil {
		return translateError(err)
	}
	ids := make([]model.PartitionID, 0, len(m.Partitions))
	for _, p := range m.Partitions {
		ids = append(ids, p.ID)
	}
	return translateError(e.partitions.Restore(ctx, partition.Strategy(m.Strategy), ids))
}

// Close persists the engine state: loaded partitions are flushed and a
// manifest snapshot is written.
func (e *Engine) Close(ctx context.Context) error {
	return e.SaveManifest(ctx)
}
