// Package model defines core types used throughout codegraph.
//
// # Identity Types
//
//   - NodeID / EdgeID / PatternID: stable string identifiers assigned by the
//     graph-building pipeline
//   - PartitionID: identifier of a graph partition
//
// # Data Types
//
//   - GraphNode: a file, symbol, or other named graph element
//   - GraphEdge: a typed, weighted relationship between two nodes
//   - CodePattern: a detected pattern spanning one or more nodes
//   - ProjectContext: read-only project metadata (root dir, per-file modules)
//
// All types are plain value records. Subsystems that need exclusive
// ownership (partitions) use Clone to copy records out of caller containers.
package model
