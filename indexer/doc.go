// Package indexer orchestrates codegraph's index set.
//
// A Manager owns zero or more named indexes of each kind (ordered B-tree,
// full-text, spatial R-tree, composite) and fans node maintenance out to
// every index whose declared fields are present on the node. Queries
// dispatch to one named index.
//
// # Error semantics
//
// Per-index maintenance errors are captured, delivered to the OnError
// callback, and joined into the returned error; already-updated indexes
// are not rolled back. Removal is only supported by the full-text and
// composite kinds — ordered and spatial indexes are refreshed through
// RebuildIndexes, which replays the full node-data set from a
// caller-supplied provider.
package indexer
