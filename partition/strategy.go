package partition

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/erichchampion/codegraph/model"
)

// bucket is one strategy output: a named, disjoint node group that becomes
// one partition.
type bucket struct {
	id    model.PartitionID
	name  string
	nodes []model.NodeID
}

// partitionNodes dispatches to one of the six strategies. Every input node
// lands in exactly one bucket; bucket order and membership are
// deterministic for a given input.
func partitionNodes(
	strategy Strategy,
	nodes map[model.NodeID]model.GraphNode,
	edges map[model.EdgeID]model.GraphEdge,
	project *model.ProjectContext,
	opts Options,
) ([]bucket, error) {
	ids := sortedNodeIDs(nodes)

	switch strategy {
	case StrategyModule:
		return groupByKey(strategy, ids, func(id model.NodeID) string {
			n := nodes[id]
			if n.ModuleName != "" {
				return n.ModuleName
			}
			if m, ok := project.ModuleFor(n.FilePath); ok {
				return m.Name
			}
			return "unassigned"
		}), nil
	case StrategyDirectory:
		return groupByKey(strategy, ids, func(id model.NodeID) string {
			dir := path.Dir(nodes[id].FilePath)
			if dir == "" {
				return "."
			}
			return dir
		}), nil
	case StrategyFileType:
		return groupByKey(strategy, ids, func(id model.NodeID) string {
			ext := strings.TrimPrefix(path.Ext(nodes[id].FilePath), ".")
			if ext == "" {
				return "none"
			}
			return ext
		}), nil
	case StrategySize:
		return bySize(ids, opts.MaxNodesPerPartition), nil
	case StrategyDependency:
		return byDependencyCluster(ids, edges, opts.MaxNodesPerPartition), nil
	case StrategyTemporal:
		return groupByKey(strategy, ids, func(id model.NodeID) string {
			t := nodes[id].LastModified
			if t.IsZero() {
				return "unknown"
			}
			return t.UTC().Format("2006-01")
		}), nil
	default:
		return nil, fmt.Errorf("partition: unknown strategy %q", strategy)
	}
}

// SelectStrategy maps the partitioning-criteria bundle onto a strategy.
// Dependency-aware criteria win; then the group-by flags in module,
// directory, file-type order; with nothing set, size chunking applies.
func SelectStrategy(c Criteria) Strategy {
	switch {
	case c.RespectDependencies || c.MinimizeCrossRefs:
		return StrategyDependency
	case c.GroupByModule:
		return StrategyModule
	case c.GroupByDirectory:
		return StrategyDirectory
	case c.GroupByFileType:
		return StrategyFileType
	default:
		return StrategySize
	}
}

func sortedNodeIDs(nodes map[model.NodeID]model.GraphNode) []model.NodeID {
	ids := make([]model.NodeID, 0, len(nodes))
	for id := range nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func bucketID(strategy Strategy, key string) model.PartitionID {
	return model.PartitionID(string(strategy) + ":" + key)
}

// groupByKey buckets nodes by a per-node key, emitting buckets in key
// order.
func groupByKey(strategy Strategy, ids []model.NodeID, keyOf func(model.NodeID) string) []bucket {
	groups := make(map[string][]model.NodeID)
	for _, id := range ids {
		k := keyOf(id)
		groups[k] = append(groups[k], id)
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]bucket, 0, len(keys))
	for _, k := range keys {
		out = append(out, bucket{
			id:    bucketID(strategy, k),
			name:  k,
			nodes: groups[k],
		})
	}
	return out
}

// bySize chunks nodes into fixed-capacity buckets in id order. 2500 nodes
// at capacity 1000 yields 1000/1000/500.
func bySize(ids []model.NodeID, maxNodes int) []bucket {
	var out []bucket
	for start := 0; start < len(ids); start += maxNodes {
		end := min(start+maxNodes, len(ids))
		n := len(out)
		out = append(out, bucket{
			id:    bucketID(StrategySize, fmt.Sprintf("%03d", n)),
			name:  fmt.Sprintf("chunk-%03d", n),
			nodes: ids[start:end:end],
		})
	}
	return out
}

// byDependencyCluster groups nodes by connected components of the edge
// graph treated as undirected, with a depth-first traversal bounded by
// maxNodes per cluster so highly connected regions stay size-bounded.
// Overflow from a bounded cluster seeds the next one.
func byDependencyCluster(ids []model.NodeID, edges map[model.EdgeID]model.GraphEdge, maxNodes int) []bucket {
	adj := make(map[model.NodeID][]model.NodeID)
	for _, e := range edges {
		adj[e.Source] = append(adj[e.Source], e.Target)
		adj[e.Target] = append(adj[e.Target], e.Source)
	}
	for _, ns := range adj {
		sort.Slice(ns, func(i, j int) bool { return ns[i] < ns[j] })
	}

	assigned := make(map[model.NodeID]bool, len(ids))
	var out []bucket

	for _, seed := range ids {
		if assigned[seed] {
			continue
		}

		cluster := make([]model.NodeID, 0, maxNodes)
		stack := []model.NodeID{seed}
		for len(stack) > 0 && len(cluster) < maxNodes {
			id := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if assigned[id] {
				continue
			}
			assigned[id] = true
			cluster = append(cluster, id)
			for _, next := range adj[id] {
				if !assigned[next] {
					stack = append(stack, next)
				}
			}
		}

		n := len(out)
		out = append(out, bucket{
			id:    bucketID(StrategyDependency, fmt.Sprintf("%03d", n)),
			name:  fmt.Sprintf("cluster-%03d", n),
			nodes: cluster,
		})
	}
	return out
}
