// Package partition splits the knowledge graph into disjoint, independently
// loadable partitions and manages their lifecycle under a memory budget.
//
// PartitionGraph groups nodes with one of six strategies (module, directory,
// file type, size, dependency cluster, temporal), materializes each bucket
// with its internal edges and patterns, and records one cross-partition
// reference on both sides of every edge that crosses a partition boundary.
// The new table is computed in full before it replaces the old one.
//
// Loaded partitions own deep copies of their records. Eviction persists a
// partition to the blob store before clearing its containers, so a
// subsequent access reloads it transparently. Concurrent loads of the same
// partition share a single fetch; loads of distinct partitions proceed in
// parallel up to the configured worker limit.
package partition
