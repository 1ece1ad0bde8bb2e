package model

import (
	"time"
)

// NodeID is the stable, user-facing identifier of a graph node.
type NodeID string

// EdgeID is the stable identifier of a graph edge.
type EdgeID string

// PatternID is the stable identifier of a detected code pattern.
type PatternID string

// PartitionID identifies a partition of the knowledge graph.
type PartitionID string

// NodeType classifies a graph node.
type NodeType string

const (
	NodeTypeFile      NodeType = "file"
	NodeTypeModule    NodeType = "module"
	NodeTypeClass     NodeType = "class"
	NodeTypeFunction  NodeType = "function"
	NodeTypeMethod    NodeType = "method"
	NodeTypeVariable  NodeType = "variable"
	NodeTypeInterface NodeType = "interface"
)

// EdgeType classifies a graph edge.
type EdgeType string

const (
	EdgeTypeImports    EdgeType = "imports"
	EdgeTypeCalls      EdgeType = "calls"
	EdgeTypeExtends    EdgeType = "extends"
	EdgeTypeImplements EdgeType = "implements"
	EdgeTypeReferences EdgeType = "references"
	EdgeTypeContains   EdgeType = "contains"
)

// GraphNode is a single element of the source-code knowledge graph:
// a file, symbol, or other named entity produced by the graph-building
// pipeline.
type GraphNode struct {
	ID           NodeID         `json:"id"`
	Name         string         `json:"name"`
	Type         NodeType       `json:"type"`
	FilePath     string         `json:"file_path"`
	ModuleName   string         `json:"module_name,omitempty"`
	Language     string         `json:"language,omitempty"`
	StartLine    int            `json:"start_line"`
	EndLine      int            `json:"end_line"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	LastModified time.Time      `json:"last_modified"`
}

// Clone returns a deep copy of the node. Partitions own copies, never
// aliases into the caller's containers.
func (n GraphNode) Clone() GraphNode {
	c := n
	if n.Metadata != nil {
		c.Metadata = make(map[string]any, len(n.Metadata))
		for k, v := range n.Metadata {
			c.Metadata[k] = v
		}
	}
	return c
}

// GraphEdge is a typed, weighted relationship between two nodes.
type GraphEdge struct {
	ID     EdgeID   `json:"id"`
	Source NodeID   `json:"source"`
	Target NodeID   `json:"target"`
	Type   EdgeType `json:"type"`
	Weight float64  `json:"weight"`
}

// CodePattern is a detected pattern (design pattern, anti-pattern, idiom)
// spanning one or more nodes.
type CodePattern struct {
	ID         PatternID `json:"id"`
	Name       string    `json:"name"`
	Type       string    `json:"type"`
	NodeIDs    []NodeID  `json:"node_ids"`
	Confidence float64   `json:"confidence,omitempty"`
}

// Clone returns a deep copy of the pattern.
func (p CodePattern) Clone() CodePattern {
	c := p
	if p.NodeIDs != nil {
		c.NodeIDs = append([]NodeID(nil), p.NodeIDs...)
	}
	return c
}

// ModuleInfo is per-file module metadata supplied by the project layer.
type ModuleInfo struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// ProjectContext describes the project the graph was built from.
// It is read-only input from the graph-building collaborator.
type ProjectContext struct {
	RootDir string                `json:"root_dir"`
	Modules map[string]ModuleInfo `json:"modules,omitempty"` // keyed by file path
}

// ModuleFor returns the module metadata for a file path, if known.
func (p *ProjectContext) ModuleFor(filePath string) (ModuleInfo, bool) {
	if p == nil || p.Modules == nil {
		return ModuleInfo{}, false
	}
	m, ok := p.Modules[filePath]
	return m, ok
}
