package index

import (
	"errors"

	"github.com/erichchampion/codegraph/model"
)

// Kind identifies the index variant behind the common maintenance contract.
type Kind uint8

const (
	KindUnknown Kind = iota
	// KindOrdered is a B-tree keyed by a single field (sorted lookups,
	// range scans).
	KindOrdered
	// KindFullText is an inverted index with TF-IDF ranking.
	KindFullText
	// KindSpatial is an R-tree over bounding boxes.
	KindSpatial
	// KindComposite is a multi-field exact/partial match index.
	KindComposite
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindOrdered:
		return "ordered"
	case KindFullText:
		return "fulltext"
	case KindSpatial:
		return "spatial"
	case KindComposite:
		return "composite"
	default:
		return "unknown"
	}
}

// Document is the per-node field bag handed to index maintenance.
// Values are whatever the graph builder attached to the node.
type Document map[string]any

// ErrRemoveUnsupported is returned by Remove on index kinds that do not
// support single-entry removal (ordered, spatial). Callers must rebuild
// instead; partition eviction already forces rebuild-scale operations, so
// the base contract deliberately omits tree deletion.
var ErrRemoveUnsupported = errors.New("index: remove unsupported for this kind, use rebuild")

// Index is the common maintenance contract all variants implement.
// Kind-specific query methods live on the concrete types.
type Index interface {
	// Name returns the configured index name.
	Name() string
	// Kind returns the index variant.
	Kind() Kind
	// Fields returns the declared field(s) this index consumes. The
	// orchestrator only fans a node out to an index whose fields are
	// present in the node's document.
	Fields() []string
	// Add indexes the node's document.
	Add(id model.NodeID, doc Document) error
	// Remove unindexes the node. Returns ErrRemoveUnsupported for kinds
	// without single-entry removal.
	Remove(id model.NodeID, doc Document) error
	// Clear drops all entries (used by rebuild).
	Clear()
	// Stats reports entry counts for monitoring.
	Stats() Stats
}

// Stats describes one index for monitoring and debugging.
type Stats struct {
	Name    string `json:"name"`
	Kind    string `json:"kind"`
	Entries int    `json:"entries"`
	// Terms is the distinct term count (full-text only).
	Terms int `json:"terms,omitempty"`
	// Height is the tree height (ordered/spatial only).
	Height int `json:"height,omitempty"`
	// Keys is the distinct composite key count (composite only).
	Keys int `json:"keys,omitempty"`
}
