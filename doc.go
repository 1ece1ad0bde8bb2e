// Package codegraph maintains an in-memory source-code knowledge graph
// that is too large to keep fully resident, behind a single engine façade.
//
// The graph (files, symbols, relationships, detected patterns) is split
// into disjoint partitions that load on demand and evict to a blob store
// under a memory budget. Queries are answered by four index kinds
// maintained side by side: ordered B-tree point/range lookups, TF-IDF
// full-text search, R-tree bounding-box search, and multi-field composite
// search with partial-key wildcards.
//
// Construct one Engine per graph:
//
//	eng := codegraph.New(
//		codegraph.WithBlobStore(store),
//		codegraph.WithMemoryBudget(256<<20),
//		codegraph.WithIndexes(indexer.Config{
//			FullTexts:  []indexer.FullTextConfig{{Name: "content", Fields: []string{"name", "file_path"}}},
//			Composites: []indexer.CompositeConfig{{Name: "lang_kind", Fields: []string{"language", "type"}}},
//		}),
//	)
//
// Node records are produced by a separate graph-building pipeline; this
// package only partitions, persists, and indexes them.
package codegraph
