package codegraph

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erichchampion/codegraph/blobstore"
	"github.com/erichchampion/codegraph/index"
	"github.com/erichchampion/codegraph/index/rtree"
	"github.com/erichchampion/codegraph/indexer"
	"github.com/erichchampion/codegraph/model"
	"github.com/erichchampion/codegraph/partition"
)

func testEngine(opts ...Option) *Engine {
	base := []Option{
		WithIndexes(indexer.Config{
			BTrees:    []indexer.BTreeConfig{{Name: "by_start", KeyField: "start_line"}},
			FullTexts: []indexer.FullTextConfig{{Name: "content", Fields: []string{"name"}}},
			Spatials:  []indexer.SpatialConfig{{Name: "spans", Coords: indexer.LineSpanCoords()}},
			Composites: []indexer.CompositeConfig{
				{Name: "lang_kind", Fields: []string{"language", "type"}},
			},
		}),
	}
	return New(append(base, opts...)...)
}

func engineGraph(n int) (map[model.NodeID]model.GraphNode, map[model.EdgeID]model.GraphEdge) {
	nodes := make(map[model.NodeID]model.GraphNode, n)
	for i := 0; i < n; i++ {
		id := model.NodeID(fmt.Sprintf("n%03d", i))
		nodes[id] = model.GraphNode{
			ID:         id,
			Name:       fmt.Sprintf("symbol%d", i),
			Type:       model.NodeTypeFunction,
			FilePath:   fmt.Sprintf("src/m%d/f%d.go", i%3, i),
			ModuleName: fmt.Sprintf("m%d", i%3),
			Language:   "go",
			StartLine:  i * 10,
			EndLine:    i*10 + 8,
		}
	}
	edges := make(map[model.EdgeID]model.GraphEdge)
	for i := 0; i < n; i++ {
		eid := model.EdgeID(fmt.Sprintf("e%03d", i))
		edges[eid] = model.GraphEdge{
			ID:     eid,
			Source: model.NodeID(fmt.Sprintf("n%03d", i)),
			Target: model.NodeID(fmt.Sprintf("n%03d", (i+1)%n)),
			Type:   model.EdgeTypeCalls,
			Weight: 1,
		}
	}
	return nodes, edges
}

func TestEngine_EndToEnd(t *testing.T) {
	eng := testEngine()
	ctx := context.Background()
	nodes, edges := engineGraph(60)

	res, err := eng.PartitionGraph(ctx, partition.StrategyModule, nodes, edges, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Statistics.PartitionCount)

	for _, n := range nodes {
		require.NoError(t, eng.AddNode(n))
	}

	// Point lookup.
	id, ok := eng.SearchBTree("by_start", 100)
	require.True(t, ok)
	assert.Equal(t, model.NodeID("n010"), id)

	// Range.
	pairs := eng.RangeSearchBTree("by_start", 100, 130)
	assert.Len(t, pairs, 4)

	// Full text.
	results, err := eng.FullTextSearch("content", "symbol7", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, model.NodeID("n007"), results[0].NodeID)

	// Spatial.
	// Spans [90,98], [100,108], [110,118] and [120,128] all overlap.
	hits := eng.SpatialSearch("spans", rtree.Box{MinX: 95, MinY: 0, MaxX: 125, MaxY: 1000})
	assert.Len(t, hits, 4)

	// Composite.
	ids := eng.CompositeSearch("lang_kind", map[string]any{"language": "go", "type": "function"})
	assert.Len(t, ids, 60)

	// Node access through partitions.
	n, err := eng.GetNode(ctx, "n042")
	require.NoError(t, err)
	assert.Equal(t, "symbol42", n.Name)

	stats := eng.MemoryStats()
	assert.Equal(t, 3, stats.TotalPartitions)
	assert.Equal(t, 3, stats.LoadedPartitions)
}

func TestEngine_NotFoundUnified(t *testing.T) {
	eng := testEngine()
	ctx := context.Background()

	_, err := eng.GetNode(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	err = eng.LoadPartition(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = eng.GetPartitionNodes(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEngine_InvalidLimit(t *testing.T) {
	eng := testEngine()
	_, err := eng.FullTextSearch("content", "x", -1)
	assert.ErrorIs(t, err, ErrInvalidLimit)
}

func TestEngine_EvictAndRebuild(t *testing.T) {
	eng := testEngine(
		WithMemoryBudget(1),
		WithEvictionPolicy(partition.PolicyLRU),
	)
	ctx := context.Background()
	nodes, edges := engineGraph(30)

	_, err := eng.PartitionGraph(ctx, partition.StrategyModule, nodes, edges, nil, nil)
	require.NoError(t, err)

	evicted, err := eng.EvictPartitions(ctx)
	require.NoError(t, err)
	assert.Len(t, evicted, 3)

	// Rebuild pulls every node back through transparent loads.
	require.NoError(t, eng.RebuildIndexes(ctx))
	id, ok := eng.SearchBTree("by_start", 50)
	require.True(t, ok)
	assert.Equal(t, model.NodeID("n005"), id)
}

func TestEngine_RemoveThenRebuild(t *testing.T) {
	eng := testEngine()
	ctx := context.Background()
	nodes, edges := engineGraph(12)

	_, err := eng.PartitionGraph(ctx, partition.StrategyModule, nodes, edges, nil, nil)
	require.NoError(t, err)
	for _, n := range nodes {
		require.NoError(t, eng.AddNode(n))
	}

	// Removal covers full-text and composite; the ordered index stays
	// stale until the rebuild.
	victim := nodes["n003"]
	require.NoError(t, eng.RemoveNode(victim))
	results, err := eng.FullTextSearch("content", "symbol3", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
	_, ok := eng.SearchBTree("by_start", 30)
	assert.True(t, ok)

	// The rebuild provider reads from partitions, which still contain
	// the node; drop its partition record first.
	require.NoError(t, eng.RebuildIndexesFrom(ctx, func(ctx context.Context) (map[model.NodeID]index.Document, error) {
		docs := make(map[model.NodeID]index.Document)
		for id, n := range nodes {
			if id == victim.ID {
				continue
			}
			docs[id] = indexer.DocumentFromNode(n)
		}
		return docs, nil
	}))
	_, ok = eng.SearchBTree("by_start", 30)
	assert.False(t, ok)
}

func TestEngine_ManifestRoundTrip(t *testing.T) {
	store := blobstore.NewMemoryStore()
	ctx := context.Background()
	nodes, edges := engineGraph(45)

	eng := testEngine(WithBlobStore(store))
	res, err := eng.PartitionGraph(ctx, partition.StrategyModule, nodes, edges, nil, nil)
	require.NoError(t, err)
	require.NoError(t, eng.Close(ctx))

	// A fresh engine over the same store resumes from the manifest.
	eng2 := testEngine(WithBlobStore(store))
	require.NoError(t, eng2.LoadManifest(ctx))

	stats := eng2.MemoryStats()
	assert.Equal(t, res.Statistics.PartitionCount, stats.TotalPartitions)
	assert.Equal(t, 0, stats.LoadedPartitions)

	n, err := eng2.GetNode(ctx, "n011")
	require.NoError(t, err)
	assert.Equal(t, "symbol11", n.Name)

	require.NoError(t, eng2.RebuildIndexes(ctx))
	id, ok := eng2.SearchBTree("by_start", 110)
	require.True(t, ok)
	assert.Equal(t, model.NodeID("n011"), id)
}

func TestEngine_MetricsCollected(t *testing.T) {
	collector := &BasicMetricsCollector{}
	eng := testEngine(WithMetricsCollector(collector))
	ctx := context.Background()
	nodes, edges := engineGraph(9)

	_, err := eng.PartitionGraph(ctx, partition.StrategyModule, nodes, edges, nil, nil)
	require.NoError(t, err)
	for _, n := range nodes {
		require.NoError(t, eng.AddNode(n))
	}
	_, err = eng.FullTextSearch("content", "symbol1", 10)
	require.NoError(t, err)

	assert.Equal(t, int64(1), collector.PartitionCount.Load())
	assert.Equal(t, int64(9), collector.IndexOpCount.Load())
	assert.Equal(t, int64(1), collector.SearchCount.Load())
	assert.GreaterOrEqual(t, collector.AvgSearchLatency(), time.Duration(0))
}

func TestEngine_IndexStats(t *testing.T) {
	eng := testEngine()
	nodes, _ := engineGraph(5)
	for _, n := range nodes {
		require.NoError(t, eng.AddNode(n))
	}

	stats := eng.IndexStats()
	require.Len(t, stats, 4)
	for _, s := range stats {
		assert.Equal(t, 5, s.Entries, s.Name)
	}
}
