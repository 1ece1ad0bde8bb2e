package indexer

import (
	"fmt"

	"github.com/erichchampion/codegraph/index"
	"github.com/erichchampion/codegraph/index/btree"
	"github.com/erichchampion/codegraph/index/composite"
	"github.com/erichchampion/codegraph/index/fulltext"
	"github.com/erichchampion/codegraph/index/rtree"
	"github.com/erichchampion/codegraph/model"
)

// The adapters wrap each concrete structure behind the common index.Index
// maintenance contract, so the manager's fan-out loop is a single
// polymorphic dispatch.

// orderedIndex adapts a B-tree keyed by one document field.
type orderedIndex struct {
	name     string
	keyField string
	tree     *btree.Tree[any, model.NodeID]
}

func newOrderedIndex(cfg BTreeConfig) *orderedIndex {
	less := cfg.Less
	if less == nil {
		less = btree.DefaultLess
	}
	return &orderedIndex{
		name:     cfg.Name,
		keyField: cfg.KeyField,
		tree:     btree.New[any, model.NodeID](cfg.Order, less),
	}
}

func (ix *orderedIndex) Name() string     { return ix.name }
func (ix *orderedIndex) Kind() index.Kind { return index.KindOrdered }
func (ix *orderedIndex) Fields() []string { return []string{ix.keyField} }

func (ix *orderedIndex) Add(id model.NodeID, doc index.Document) error {
	key, ok := doc[ix.keyField]
	if !ok || key == nil {
		return nil
	}
	ix.tree.Insert(key, id)
	return nil
}

func (ix *orderedIndex) Remove(model.NodeID, index.Document) error {
	return index.ErrRemoveUnsupported
}

func (ix *orderedIndex) Clear() { ix.tree.Clear() }

func (ix *orderedIndex) Stats() index.Stats {
	return index.Stats{
		Name:    ix.name,
		Kind:    index.KindOrdered.String(),
		Entries: ix.tree.Len(),
		Height:  ix.tree.Height(),
	}
}

// textIndex adapts the full-text index over declared document fields.
type textIndex struct {
	name   string
	fields []string
	ft     *fulltext.Index
}

func newTextIndex(cfg FullTextConfig) *textIndex {
	return &textIndex{
		name:   cfg.Name,
		fields: cfg.Fields,
		ft:     fulltext.New(),
	}
}

func (ix *textIndex) Name() string     { return ix.name }
func (ix *textIndex) Kind() index.Kind { return index.KindFullText }
func (ix *textIndex) Fields() []string { return ix.fields }

func (ix *textIndex) Add(id model.NodeID, doc index.Document) error {
	fields := make(map[string]string, len(ix.fields))
	for _, f := range ix.fields {
		if v, ok := doc[f]; ok && v != nil {
			fields[f] = fmt.Sprint(v)
		}
	}
	if len(fields) == 0 {
		return nil
	}
	ix.ft.AddDocument(id, fields)
	return nil
}

func (ix *textIndex) Remove(id model.NodeID, _ index.Document) error {
	ix.ft.RemoveDocument(id)
	return nil
}

func (ix *textIndex) Clear() { ix.ft.Clear() }

func (ix *textIndex) Stats() index.Stats {
	return index.Stats{
		Name:    ix.name,
		Kind:    index.KindFullText.String(),
		Entries: ix.ft.DocCount(),
		Terms:   ix.ft.TermCount(),
	}
}

// spatialIndex adapts the R-tree via a coordinate field mapping.
type spatialIndex struct {
	name   string
	coords CoordinateMapping
	tree   *rtree.Tree
}

func newSpatialIndex(cfg SpatialConfig) *spatialIndex {
	return &spatialIndex{
		name:   cfg.Name,
		coords: cfg.Coords,
		tree:   rtree.New(cfg.MaxEntries),
	}
}

func (ix *spatialIndex) Name() string     { return ix.name }
func (ix *spatialIndex) Kind() index.Kind { return index.KindSpatial }

func (ix *spatialIndex) Fields() []string {
	return []string{ix.coords.MinX, ix.coords.MinY, ix.coords.MaxX, ix.coords.MaxY}
}

func (ix *spatialIndex) box(doc index.Document) (rtree.Box, bool) {
	minX, ok1 := numField(doc, ix.coords.MinX)
	minY, ok2 := numField(doc, ix.coords.MinY)
	maxX, ok3 := numField(doc, ix.coords.MaxX)
	maxY, ok4 := numField(doc, ix.coords.MaxY)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return rtree.Box{}, false
	}
	return rtree.Box{MinX: minX, MinY: minY, MaxX: maxX, MaxY: maxY}, true
}

func (ix *spatialIndex) Add(id model.NodeID, doc index.Document) error {
	box, ok := ix.box(doc)
	if !ok {
		return nil
	}
	ix.tree.Insert(rtree.Entry{Box: box, ID: id})
	return nil
}

func (ix *spatialIndex) Remove(model.NodeID, index.Document) error {
	return index.ErrRemoveUnsupported
}

func (ix *spatialIndex) Clear() { ix.tree.Clear() }

func (ix *spatialIndex) Stats() index.Stats {
	return index.Stats{
		Name:    ix.name,
		Kind:    index.KindSpatial.String(),
		Entries: ix.tree.Len(),
		Height:  ix.tree.Height(),
	}
}

// compositeIndex adapts the composite index over declared fields.
type compositeIndex struct {
	name string
	ci   *composite.Index
}

func newCompositeIndex(cfg CompositeConfig) *compositeIndex {
	return &compositeIndex{
		name: cfg.Name,
		ci: composite.New(composite.Options{
			Fields: cfg.Fields,
			Unique: cfg.Unique,
			Sparse: cfg.Sparse,
		}),
	}
}

func (ix *compositeIndex) Name() string     { return ix.name }
func (ix *compositeIndex) Kind() index.Kind { return index.KindComposite }
func (ix *compositeIndex) Fields() []string { return ix.ci.Fields() }

func (ix *compositeIndex) Add(id model.NodeID, doc index.Document) error {
	return ix.ci.AddEntry(id, doc)
}

func (ix *compositeIndex) Remove(id model.NodeID, doc index.Document) error {
	ix.ci.RemoveEntry(id, doc)
	return nil
}

func (ix *compositeIndex) Clear() { ix.ci.Clear() }

func (ix *compositeIndex) Stats() index.Stats {
	return index.Stats{
		Name:    ix.name,
		Kind:    index.KindComposite.String(),
		Entries: ix.ci.EntryCount(),
		Keys:    ix.ci.KeyCount(),
	}
}

func numField(doc index.Document, field string) (float64, bool) {
	v, ok := doc[field]
	if !ok || v == nil {
		return 0, false
	}
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	case float32:
		return float64(x), true
	case float64:
		return x, true
	default:
		return 0, false
	}
}
