package partition

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erichchampion/codegraph/blobstore"
	"github.com/erichchampion/codegraph/model"
)

// testGraph builds a deterministic graph spanning several modules,
// directories, file types, and modification months.
func testGraph(nodeCount, edgeCount int) (map[model.NodeID]model.GraphNode, map[model.EdgeID]model.GraphEdge) {
	nodes := make(map[model.NodeID]model.GraphNode, nodeCount)
	exts := []string{"go", "ts", "py"}
	for i := 0; i < nodeCount; i++ {
		id := model.NodeID(fmt.Sprintf("n%04d", i))
		nodes[id] = model.GraphNode{
			ID:           id,
			Name:         fmt.Sprintf("sym%d", i),
			Type:         model.NodeTypeFunction,
			FilePath:     fmt.Sprintf("src/pkg%d/file%d.%s", i%5, i, exts[i%len(exts)]),
			ModuleName:   fmt.Sprintf("mod%d", i%4),
			StartLine:    i,
			EndLine:      i + 10,
			LastModified: time.Date(2026, time.Month(1+i%6), 1, 0, 0, 0, 0, time.UTC),
		}
	}
	edges := make(map[model.EdgeID]model.GraphEdge, edgeCount)
	for i := 0; i < edgeCount; i++ {
		src := model.NodeID(fmt.Sprintf("n%04d", i%nodeCount))
		dst := model.NodeID(fmt.Sprintf("n%04d", (i*7+13)%nodeCount))
		edges[model.EdgeID(fmt.Sprintf("e%05d", i))] = model.GraphEdge{
			ID:     model.EdgeID(fmt.Sprintf("e%05d", i)),
			Source: src,
			Target: dst,
			Type:   model.EdgeTypeCalls,
			Weight: 1,
		}
	}
	return nodes, edges
}

func TestManager_SizeBasedScenario(t *testing.T) {
	nodes, edges := testGraph(2500, 6000)
	m := NewManager(blobstore.NewMemoryStore(), Options{MaxNodesPerPartition: 1000})

	res, err := m.PartitionGraph(context.Background(), StrategySize, nodes, edges, nil, nil)
	require.NoError(t, err)

	require.Len(t, res.Partitions, 3)
	assert.Equal(t, 1000, res.Partitions[0].Metadata.NodeCount)
	assert.Equal(t, 1000, res.Partitions[1].Metadata.NodeCount)
	assert.Equal(t, 500, res.Partitions[2].Metadata.NodeCount)
	assert.InDelta(t, 833.3, res.Statistics.AvgNodesPerPartition, 0.1)
	assert.Equal(t, 3, res.Statistics.PartitionCount)
	assert.InDelta(t, 80.0, res.Statistics.MemoryReductionPct, 0.001)
}

func TestManager_AllStrategiesComplete(t *testing.T) {
	nodes, edges := testGraph(300, 900)
	strategies := []Strategy{
		StrategyModule, StrategyDirectory, StrategyFileType,
		StrategySize, StrategyDependency, StrategyTemporal,
	}

	for _, strategy := range strategies {
		t.Run(string(strategy), func(t *testing.T) {
			m := NewManager(blobstore.NewMemoryStore(), Options{MaxNodesPerPartition: 64})
			res, err := m.PartitionGraph(context.Background(), strategy, nodes, edges, nil, nil)
			require.NoError(t, err)

			// Every node lands in exactly one partition.
			owner := make(map[model.NodeID]model.PartitionID)
			for _, p := range res.Partitions {
				for id := range p.Nodes {
					_, dup := owner[id]
					require.False(t, dup, "node %s in two partitions", id)
					owner[id] = p.ID
				}
			}
			require.Len(t, owner, len(nodes))

			// Cross-ref count equals the number of edges whose endpoints
			// land in different partitions.
			wantRefs := 0
			for _, e := range edges {
				if owner[e.Source] != owner[e.Target] {
					wantRefs++
				}
			}
			assert.Len(t, res.CrossRefs, wantRefs)
			assert.Equal(t, wantRefs, res.Statistics.CrossPartitionEdges)

			// Internal edge counts account for the rest.
			internal := 0
			for _, p := range res.Partitions {
				internal += len(p.Edges)
			}
			assert.Equal(t, len(edges), internal+wantRefs)
		})
	}
}

func TestManager_CrossRefsOnBothSides(t *testing.T) {
	nodes, edges := testGraph(100, 200)
	m := NewManager(blobstore.NewMemoryStore(), Options{})

	res, err := m.PartitionGraph(context.Background(), StrategyModule, nodes, edges, nil, nil)
	require.NoError(t, err)
	require.NotEmpty(t, res.CrossRefs)

	for _, r := range res.CrossRefs {
		src := m.CrossRefsFor(r.SourcePartition)
		dst := m.CrossRefsFor(r.TargetPartition)
		assert.Contains(t, src, r)
		assert.Contains(t, dst, r)
		assert.Equal(t, r.TargetPartition, r.Other(r.SourcePartition))
	}

	// DependsOn mirrors the cross-ref adjacency.
	for _, p := range res.Partitions {
		for _, dep := range p.Metadata.DependsOn {
			assert.NotEqual(t, p.ID, dep)
		}
	}
}

func TestManager_ModuleStrategyUsesProjectContext(t *testing.T) {
	nodes := map[model.NodeID]model.GraphNode{
		"a": {ID: "a", FilePath: "lib/a.go"},
		"b": {ID: "b", FilePath: "lib/b.go", ModuleName: "explicit"},
		"c": {ID: "c", FilePath: "cmd/c.go"},
	}
	project := &model.ProjectContext{
		RootDir: "/repo",
		Modules: map[string]model.ModuleInfo{
			"lib/a.go": {Name: "libmod", Path: "lib"},
		},
	}
	m := NewManager(blobstore.NewMemoryStore(), Options{})

	res, err := m.PartitionGraph(context.Background(), StrategyModule, nodes, nil, nil, project)
	require.NoError(t, err)

	names := make(map[string]int)
	for _, p := range res.Partitions {
		names[p.Name] = p.Metadata.NodeCount
	}
	assert.Equal(t, map[string]int{"libmod": 1, "explicit": 1, "unassigned": 1}, names)
}

func TestManager_DependencyClusterBounded(t *testing.T) {
	// A single fully connected chain larger than the bound must be split.
	nodes := make(map[model.NodeID]model.GraphNode)
	edges := make(map[model.EdgeID]model.GraphEdge)
	for i := 0; i < 50; i++ {
		id := model.NodeID(fmt.Sprintf("n%02d", i))
		nodes[id] = model.GraphNode{ID: id, FilePath: "x.go"}
		if i > 0 {
			eid := model.EdgeID(fmt.Sprintf("e%02d", i))
			edges[eid] = model.GraphEdge{
				ID:     eid,
				Source: model.NodeID(fmt.Sprintf("n%02d", i-1)),
				Target: id,
				Type:   model.EdgeTypeImports,
			}
		}
	}
	m := NewManager(blobstore.NewMemoryStore(), Options{MaxNodesPerPartition: 20})

	res, err := m.PartitionGraph(context.Background(), StrategyDependency, nodes, edges, nil, nil)
	require.NoError(t, err)

	require.GreaterOrEqual(t, len(res.Partitions), 3)
	for _, p := range res.Partitions {
		assert.LessOrEqual(t, p.Metadata.NodeCount, 20)
	}
}

func TestManager_EvictionRespectsBudget(t *testing.T) {
	nodes, edges := testGraph(2500, 6000)
	m := NewManager(blobstore.NewMemoryStore(), Options{
		MaxNodesPerPartition:   1000,
		MaxMemoryUsage:         1 << 20,
		EvictionTargetFraction: 0.5,
	})

	_, err := m.PartitionGraph(context.Background(), StrategySize, nodes, edges, nil, nil)
	require.NoError(t, err)
	require.Greater(t, m.MemoryStats().Current, int64(1<<19))

	evicted, err := m.EvictPartitions(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, evicted)

	stats := m.MemoryStats()
	assert.LessOrEqual(t, stats.Current, int64(1<<19))
	assert.Equal(t, stats.TotalPartitions-len(evicted), stats.LoadedPartitions)

	for _, id := range evicted {
		state, ok := m.PartitionState(id)
		require.True(t, ok)
		assert.Equal(t, StateUnloaded, state)
	}
}

func TestManager_CriticalPartitionsStayLoaded(t *testing.T) {
	nodes, edges := testGraph(2500, 6000)
	m := NewManager(blobstore.NewMemoryStore(), Options{
		MaxNodesPerPartition: 1000,
		MaxMemoryUsage:       1 << 20,
	})

	_, err := m.PartitionGraph(context.Background(), StrategySize, nodes, edges, nil, nil)
	require.NoError(t, err)
	for _, id := range m.PartitionIDs() {
		require.NoError(t, m.SetPriority(id, 10))
	}

	evicted, err := m.EvictPartitions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, evicted)
	assert.Equal(t, m.MemoryStats().TotalPartitions, m.MemoryStats().LoadedPartitions)
}

func TestManager_EvictThenTransparentReload(t *testing.T) {
	nodes, edges := testGraph(200, 400)
	store := blobstore.NewMemoryStore()
	m := NewManager(store, Options{
		MaxNodesPerPartition: 50,
		MaxMemoryUsage:       1, // everything is over budget
	})

	_, err := m.PartitionGraph(context.Background(), StrategySize, nodes, edges, nil, nil)
	require.NoError(t, err)

	evicted, err := m.EvictPartitions(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, evicted)
	assert.Equal(t, 0, m.MemoryStats().LoadedPartitions)

	// Accessing a node transparently reloads its partition with the same
	// contents.
	n, err := m.GetNode(context.Background(), "n0042")
	require.NoError(t, err)
	assert.Equal(t, "sym42", n.Name)

	pid, ok := m.NodeLocation("n0042")
	require.True(t, ok)
	state, _ := m.PartitionState(pid)
	assert.Equal(t, StateLoaded, state)

	nodesOut, err := m.GetPartitionNodes(context.Background(), pid)
	require.NoError(t, err)
	assert.Len(t, nodesOut, 50)
}

func TestManager_LoadRefreshesAccessTracking(t *testing.T) {
	nodes, _ := testGraph(10, 0)
	m := NewManager(blobstore.NewMemoryStore(), Options{})

	res, err := m.PartitionGraph(context.Background(), StrategySize, nodes, nil, nil, nil)
	require.NoError(t, err)
	id := res.Partitions[0].ID

	before := res.Partitions[0].Metadata.AccessCount
	require.NoError(t, m.LoadPartition(context.Background(), id))
	require.NoError(t, m.LoadPartition(context.Background(), id))

	descs := m.DescribePartitions()
	require.NotEmpty(t, descs)
	assert.Equal(t, before+2, descs[0].Metadata.AccessCount)
}

// countingStore wraps a Store counting Get calls and optionally failing
// them.
type countingStore struct {
	blobstore.Store
	gets    atomic.Int64
	failGet atomic.Bool
}

func (s *countingStore) Get(ctx context.Context, name string) ([]byte, error) {
	s.gets.Add(1)
	if s.failGet.Load() {
		return nil, errors.New("injected fault")
	}
	return s.Store.Get(ctx, name)
}

func TestManager_ConcurrentLoadDedup(t *testing.T) {
	nodes, edges := testGraph(100, 100)
	store := &countingStore{Store: blobstore.NewMemoryStore()}
	m := NewManager(store, Options{MaxNodesPerPartition: 100, MaxMemoryUsage: 1})

	res, err := m.PartitionGraph(context.Background(), StrategySize, nodes, edges, nil, nil)
	require.NoError(t, err)
	id := res.Partitions[0].ID

	_, err = m.EvictPartitions(context.Background())
	require.NoError(t, err)
	store.gets.Store(0)

	// Raise the budget so reloading does not re-trigger eviction.
	m.opts.MaxMemoryUsage = 1 << 30

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, m.LoadPartition(context.Background(), id))
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), store.gets.Load())
}

func TestManager_LoadFailureReverts(t *testing.T) {
	nodes, _ := testGraph(50, 0)
	store := &countingStore{Store: blobstore.NewMemoryStore()}
	m := NewManager(store, Options{MaxNodesPerPartition: 50, MaxMemoryUsage: 1})

	res, err := m.PartitionGraph(context.Background(), StrategySize, nodes, nil, nil, nil)
	require.NoError(t, err)
	id := res.Partitions[0].ID

	_, err = m.EvictPartitions(context.Background())
	require.NoError(t, err)

	m.opts.MaxMemoryUsage = 1 << 30
	store.failGet.Store(true)
	err = m.LoadPartition(context.Background(), id)
	require.Error(t, err)

	// Not stuck in loading: a later attempt succeeds.
	state, _ := m.PartitionState(id)
	assert.Equal(t, StateUnloaded, state)

	store.failGet.Store(false)
	require.NoError(t, m.LoadPartition(context.Background(), id))
	state, _ = m.PartitionState(id)
	assert.Equal(t, StateLoaded, state)
}

func TestManager_RemovePartitionPurgesRefs(t *testing.T) {
	nodes, edges := testGraph(100, 300)
	m := NewManager(blobstore.NewMemoryStore(), Options{})

	res, err := m.PartitionGraph(context.Background(), StrategyModule, nodes, edges, nil, nil)
	require.NoError(t, err)
	require.NotEmpty(t, res.CrossRefs)
	victim := res.CrossRefs[0].SourcePartition

	require.NoError(t, m.RemovePartition(context.Background(), victim))

	for _, r := range m.CrossRefs() {
		assert.False(t, r.Touches(victim))
	}
	for _, d := range m.DescribePartitions() {
		assert.NotContains(t, d.Metadata.DependsOn, victim)
	}
	_, err = m.GetNode(context.Background(), res.CrossRefs[0].SourceNode)
	assert.ErrorIs(t, err, ErrNodeNotFound)

	// Unknown partition.
	assert.ErrorIs(t, m.RemovePartition(context.Background(), "nope"), ErrPartitionNotFound)
}

func TestManager_PartitionGraphReplacesTable(t *testing.T) {
	nodes, edges := testGraph(100, 200)
	m := NewManager(blobstore.NewMemoryStore(), Options{})

	_, err := m.PartitionGraph(context.Background(), StrategyModule, nodes, edges, nil, nil)
	require.NoError(t, err)
	firstUsage := m.MemoryStats().Current

	// Re-partitioning does not leak the prior table's memory accounting.
	_, err = m.PartitionGraph(context.Background(), StrategyModule, nodes, edges, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, firstUsage, m.MemoryStats().Current)

	_, err = m.PartitionGraph(context.Background(), StrategyFileType, nodes, edges, nil, nil)
	require.NoError(t, err)

	// Unknown strategy keeps the previous table.
	_, err = m.PartitionGraph(context.Background(), Strategy("bogus"), nodes, edges, nil, nil)
	require.Error(t, err)
	assert.Equal(t, 3, m.MemoryStats().TotalPartitions) // go/ts/py
}

func TestManager_FlushAndRestore(t *testing.T) {
	// Edge targets stay distinct at this size, so the restored
	// cross-reference set matches one-to-one.
	nodes, edges := testGraph(120, 120)
	store := blobstore.NewMemoryStore()

	m := NewManager(store, Options{})
	res, err := m.PartitionGraph(context.Background(), StrategyModule, nodes, edges, nil, nil)
	require.NoError(t, err)
	require.NoError(t, m.FlushAll(context.Background()))

	// A fresh manager over the same store restores the full layout.
	m2 := NewManager(store, Options{})
	require.NoError(t, m2.Restore(context.Background(), StrategyModule, m.PartitionIDs()))

	assert.Equal(t, m.PartitionIDs(), m2.PartitionIDs())
	assert.Len(t, m2.CrossRefs(), len(res.CrossRefs))
	assert.Equal(t, 0, m2.MemoryStats().LoadedPartitions)

	n, err := m2.GetNode(context.Background(), "n0007")
	require.NoError(t, err)
	assert.Equal(t, "sym7", n.Name)
}

func TestManager_PartitionsOwnCopies(t *testing.T) {
	nodes := map[model.NodeID]model.GraphNode{
		"a": {ID: "a", FilePath: "x.go", Metadata: map[string]any{"k": "v"}},
	}
	m := NewManager(blobstore.NewMemoryStore(), Options{})

	_, err := m.PartitionGraph(context.Background(), StrategySize, nodes, nil, nil, nil)
	require.NoError(t, err)

	// Mutating the caller's containers must not reach the partition.
	nodes["a"].Metadata["k"] = "changed"
	delete(nodes, "a")

	got, err := m.GetNode(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "v", got.Metadata["k"])

	// And mutating a returned copy must not reach the partition either.
	got.Metadata["k"] = "other"
	again, err := m.GetNode(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "v", again.Metadata["k"])
}

func TestSelectStrategy(t *testing.T) {
	assert.Equal(t, StrategySize, SelectStrategy(Criteria{}))
	assert.Equal(t, StrategyModule, SelectStrategy(Criteria{GroupByModule: true}))
	assert.Equal(t, StrategyDirectory, SelectStrategy(Criteria{GroupByDirectory: true}))
	assert.Equal(t, StrategyFileType, SelectStrategy(Criteria{GroupByFileType: true}))

	// Dependency-aware criteria win over group-by flags.
	assert.Equal(t, StrategyDependency, SelectStrategy(Criteria{GroupByModule: true, RespectDependencies: true}))
	assert.Equal(t, StrategyDependency, SelectStrategy(Criteria{MinimizeCrossRefs: true}))
}

func TestManager_EmptyStrategyUsesCriteria(t *testing.T) {
	nodes, edges := testGraph(40, 40)
	m := NewManager(blobstore.NewMemoryStore(), Options{
		Criteria: Criteria{GroupByFileType: true},
	})

	res, err := m.PartitionGraph(context.Background(), "", nodes, edges, nil, nil)
	require.NoError(t, err)
	for _, p := range res.Partitions {
		assert.Equal(t, StrategyFileType, p.Strategy)
	}
}

// gatedStore holds its first Put open until released, so a test can
// observe an eviction write in flight.
type gatedStore struct {
	blobstore.Store
	entered chan struct{}
	release chan struct{}
	first   atomic.Bool
}

func (s *gatedStore) Put(ctx context.Context, name string, data []byte) error {
	if s.first.CompareAndSwap(false, true) {
		close(s.entered)
		<-s.release
	}
	return s.Store.Put(ctx, name, data)
}

func TestManager_LoadAwaitsInFlightEviction(t *testing.T) {
	nodes, _ := testGraph(60, 0)
	gs := &gatedStore{
		Store:   blobstore.NewMemoryStore(),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	// Three equal file-type partitions; the budget and target admit
	// exactly one eviction.
	m := NewManager(gs, Options{
		MaxMemoryUsage:          3 * 20 * nodeSizeEstimate,
		EvictionTargetFraction:  0.7,
		EvictionPolicy:          PolicyLRU,
		MemoryPressureThreshold: 1,
	})

	_, err := m.PartitionGraph(context.Background(), StrategyFileType, nodes, nil, nil, nil)
	require.NoError(t, err)

	victim := model.PartitionID("file_type:go")

	evictErr := make(chan error, 1)
	var evicted []model.PartitionID
	go func() {
		ids, err := m.EvictPartitions(context.Background())
		evicted = ids
		evictErr <- err
	}()
	<-gs.entered

	loadErr := make(chan error, 1)
	go func() {
		loadErr <- m.LoadPartition(context.Background(), victim)
	}()

	// The load must await the in-flight eviction, not race it.
	select {
	case err := <-loadErr:
		t.Fatalf("load finished while the eviction write was held open: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(gs.release)
	require.NoError(t, <-evictErr)
	require.NoError(t, <-loadErr)
	assert.Equal(t, []model.PartitionID{victim}, evicted)

	// The awaited load reloaded the evicted partition, and the memory
	// accounting matches the resident set exactly.
	state, ok := m.PartitionState(victim)
	require.True(t, ok)
	assert.Equal(t, StateLoaded, state)

	stats := m.MemoryStats()
	assert.Equal(t, 3, stats.LoadedPartitions)
	var resident int64
	for _, d := range m.DescribePartitions() {
		if d.State == StateLoaded {
			resident += d.Metadata.EstimatedSize
		}
	}
	assert.Equal(t, resident, stats.Current)

	n, err := m.GetNode(context.Background(), "n0000")
	require.NoError(t, err)
	assert.Equal(t, "sym0", n.Name)
}
