// Package rtree implements the spatial index: an R-tree over axis-aligned
// bounding boxes with minimum-enlargement insertion and linear node
// splitting.
//
// Source-code geometry maps lines/columns onto the plane (a symbol's span
// is a box), so "what overlaps this region" is a plain box query.
package rtree

import (
	"sync"

	"github.com/erichchampion/codegraph/model"
)

const (
	// DefaultMaxEntries is the node capacity used when maxEntries <= 0.
	DefaultMaxEntries = 8
	// DefaultMinEntries is the minimum fill; the linear bisection split
	// always satisfies it for DefaultMaxEntries.
	DefaultMinEntries = 2
)

// Entry is one indexed box with its payload.
type Entry struct {
	Box  Box
	ID   model.NodeID
	Data any
}

type rnode struct {
	box      Box
	leaf     bool
	entries  []Entry  // leaf nodes
	children []*rnode // internal nodes
}

// Tree is an R-tree. Thread-safe for concurrent use.
type Tree struct {
	mu         sync.RWMutex
	root       *rnode
	maxEntries int
	minEntries int
	count      int
}

// New creates an R-tree. maxEntries <= 0 selects DefaultMaxEntries.
func New(maxEntries int) *Tree {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	minEntries := maxEntries / 4
	if minEntries < DefaultMinEntries {
		minEntries = DefaultMinEntries
	}
	return &Tree{
		root:       &rnode{leaf: true},
		maxEntries: maxEntries,
		minEntries: minEntries,
	}
}

// Len returns the number of entries.
func (t *Tree) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.count
}

// Height returns the tree height (1 for a lone root leaf).
func (t *Tree) Height() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	h := 1
	for n := t.root; !n.leaf; n = n.children[0] {
		h++
	}
	return h
}

// Insert adds an entry.
func (t *Tree) Insert(e Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()

	split := t.insert(t.root, e)
	if split != nil {
		// Root overflowed: grow the tree by one level.
		old := t.root
		t.root = &rnode{
			box:      old.box.Extend(split.box),
			children: []*rnode{old, split},
		}
	}
	t.count++
}

// insert descends to a leaf, inserts, and returns a new sibling if the
// visited node had to split. Bounding boxes are recomputed on the way back
// up.
func (t *Tree) insert(n *rnode, e Entry) *rnode {
	if n.leaf {
		if len(n.entries) == 0 {
			n.box = e.Box
		} else {
			n.box = n.box.Extend(e.Box)
		}
		n.entries = append(n.entries, e)
		if len(n.entries) > t.maxEntries {
			return t.splitLeaf(n)
		}
		return nil
	}

	// Choose the child needing the least enlargement; ties go to the
	// first-encountered child.
	best := 0
	bestEnl := n.children[0].box.Enlargement(e.Box)
	for i := 1; i < len(n.children); i++ {
		enl := n.children[i].box.Enlargement(e.Box)
		if enl < bestEnl {
			best = i
			bestEnl = enl
		}
	}

	split := t.insert(n.children[best], e)
	if split != nil {
		n.children = append(n.children, split)
	}
	n.box = coverChildren(n.children)
	if len(n.children) > t.maxEntries {
		return t.splitInternal(n)
	}
	return nil
}

// splitLeaf bisects the entry list and recomputes both halves' boxes.
func (t *Tree) splitLeaf(n *rnode) *rnode {
	mid := len(n.entries) / 2
	right := &rnode{leaf: true, entries: append([]Entry(nil), n.entries[mid:]...)}
	n.entries = n.entries[:mid]
	n.box = coverEntries(n.entries)
	right.box = coverEntries(right.entries)
	return right
}

// splitInternal bisects the child list and recomputes both halves' boxes.
func (t *Tree) splitInternal(n *rnode) *rnode {
	mid := len(n.children) / 2
	right := &rnode{children: append([]*rnode(nil), n.children[mid:]...)}
	n.children = n.children[:mid]
	n.box = coverChildren(n.children)
	right.box = coverChildren(right.children)
	return right
}

func coverEntries(entries []Entry) Box {
	box := entries[0].Box
	for _, e := range entries[1:] {
		box = box.Extend(e.Box)
	}
	return box
}

func coverChildren(children []*rnode) Box {
	box := children[0].box
	for _, c := range children[1:] {
		box = box.Extend(c.box)
	}
	return box
}

// Search returns all entries whose box intersects the query box.
func (t *Tree) Search(query Box) []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []Entry
	t.search(t.root, query, &out)
	return out
}

func (t *Tree) search(n *rnode, query Box, out *[]Entry) {
	if n.leaf {
		for _, e := range n.entries {
			if e.Box.Intersects(query) {
				*out = append(*out, e)
			}
		}
		return
	}
	for _, c := range n.children {
		if c.box.Intersects(query) {
			t.search(c, query, out)
		}
	}
}

// Clear drops all entries.
func (t *Tree) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.root = &rnode{leaf: true}
	t.count = 0
}
