// Package index defines the common maintenance contract shared by
// codegraph's four index variants.
//
// The orchestrator (package indexer) treats every configured index as an
// index.Index and fans node adds/removes out through a single polymorphic
// dispatch. Kind-specific queries (range scans, ranked text search, box
// search, partial-key match) live on the concrete types in the
// subpackages:
//
//   - btree: ordered key → id lookups and range scans
//   - fulltext: tokenized, TF-IDF ranked content search
//   - rtree: bounding-box containment/overlap search
//   - composite: multi-field exact and partial matching
//
// # Maintenance asymmetry
//
// Add is supported by all variants. Remove is only supported by the
// full-text and composite variants; ordered and spatial indexes return
// ErrRemoveUnsupported and are refreshed through rebuild, which the
// partition lifecycle requires anyway.
package index
