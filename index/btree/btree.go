// Package btree implements the ordered index: a B-tree with injectable
// comparator, top-down insertion, and bounded range scans.
//
// Insertion splits any full node on the way down (classic preemptive
// splitting), so no rebalancing pass and no parent back-references are ever
// needed; a node owns its children and nothing else. Keys are unique:
// inserting an existing key replaces its value.
//
// The base contract has no delete operation. Removal is handled by index
// rebuild, which the partition lifecycle requires anyway.
package btree

import (
	"fmt"
	"reflect"
	"strings"
)

// DefaultOrder is the minimum degree used when the caller passes order <= 1.
const DefaultOrder = 32

// Pair is one (key, value) result of a range scan.
type Pair[K, V any] struct {
	Key   K
	Value V
}

// Tree is a B-tree of minimum degree t (order): every node holds at most
// 2t-1 keys, and every internal node has exactly len(keys)+1 children.
type Tree[K, V any] struct {
	root  *node[K, V]
	t     int
	less  func(a, b K) bool
	count int
}

type node[K, V any] struct {
	keys     []K
	values   []V
	children []*node[K, V]
	leaf     bool
}

// New creates a B-tree with the given minimum degree and comparator.
// less must define a strict total order. If order <= 1, DefaultOrder is
// used.
func New[K, V any](order int, less func(a, b K) bool) *Tree[K, V] {
	if order <= 1 {
		order = DefaultOrder
	}
	return &Tree[K, V]{
		root: &node[K, V]{leaf: true},
		t:    order,
		less: less,
	}
}

func (tr *Tree[K, V]) eq(a, b K) bool {
	return !tr.less(a, b) && !tr.less(b, a)
}

// Len returns the number of keys in the tree.
func (tr *Tree[K, V]) Len() int { return tr.count }

// Height returns the tree height (1 for a lone root leaf).
func (tr *Tree[K, V]) Height() int {
	h := 1
	for n := tr.root; !n.leaf; n = n.children[0] {
		h++
	}
	return h
}

// Insert adds key → value. An existing key has its value replaced.
func (tr *Tree[K, V]) Insert(key K, value V) {
	if len(tr.root.keys) == 2*tr.t-1 {
		// Split the full root before descending so no split ever needs to
		// propagate upward.
		old := tr.root
		tr.root = &node[K, V]{children: []*node[K, V]{old}}
		tr.splitChild(tr.root, 0)
	}
	tr.insertNonFull(tr.root, key, value)
}

// splitChild splits the full child n.children[i] around its median key,
// which moves up into n.
func (tr *Tree[K, V]) splitChild(n *node[K, V], i int) {
	t := tr.t
	child := n.children[i]

	right := &node[K, V]{leaf: child.leaf}
	right.keys = append(right.keys, child.keys[t:]...)
	right.values = append(right.values, child.values[t:]...)
	if !child.leaf {
		right.children = append(right.children, child.children[t:]...)
		child.children = child.children[:t]
	}

	midKey := child.keys[t-1]
	midVal := child.values[t-1]
	child.keys = child.keys[:t-1]
	child.values = child.values[:t-1]

	n.keys = append(n.keys, midKey)
	copy(n.keys[i+1:], n.keys[i:])
	n.keys[i] = midKey

	n.values = append(n.values, midVal)
	copy(n.values[i+1:], n.values[i:])
	n.values[i] = midVal

	n.children = append(n.children, right)
	copy(n.children[i+2:], n.children[i+1:])
	n.children[i+1] = right
}

func (tr *Tree[K, V]) insertNonFull(n *node[K, V], key K, value V) {
	for {
		// Position of the first key >= key.
		i := 0
		for i < len(n.keys) && tr.less(n.keys[i], key) {
			i++
		}
		if i < len(n.keys) && tr.eq(n.keys[i], key) {
			n.values[i] = value
			return
		}

		if n.leaf {
			var zk K
			var zv V
			n.keys = append(n.keys, zk)
			copy(n.keys[i+1:], n.keys[i:])
			n.keys[i] = key
			n.values = append(n.values, zv)
			copy(n.values[i+1:], n.values[i:])
			n.values[i] = value
			tr.count++
			return
		}

		if len(n.children[i].keys) == 2*tr.t-1 {
			tr.splitChild(n, i)
			if tr.eq(n.keys[i], key) {
				n.values[i] = value
				return
			}
			if tr.less(n.keys[i], key) {
				i++
			}
		}
		n = n.children[i]
	}
}

// Search returns the value for key, if present.
func (tr *Tree[K, V]) Search(key K) (V, bool) {
	n := tr.root
	for {
		i := 0
		for i < len(n.keys) && tr.less(n.keys[i], key) {
			i++
		}
		if i < len(n.keys) && tr.eq(n.keys[i], key) {
			return n.values[i], true
		}
		if n.leaf {
			var zero V
			return zero, false
		}
		n = n.children[i]
	}
}

// RangeSearch returns all pairs with start <= key <= end in key order.
// It descends into a child only when that child's key interval can overlap
// the query range.
func (tr *Tree[K, V]) RangeSearch(start, end K) []Pair[K, V] {
	if tr.less(end, start) {
		return nil
	}
	var out []Pair[K, V]
	tr.rangeNode(tr.root, start, end, &out)
	return out
}

func (tr *Tree[K, V]) rangeNode(n *node[K, V], start, end K, out *[]Pair[K, V]) {
	m := len(n.keys)
	for i := 0; i <= m; i++ {
		if !n.leaf {
			// Child i holds keys in (keys[i-1], keys[i]); skip it when that
			// interval cannot reach the range.
			lo := i == 0 || tr.less(n.keys[i-1], end)
			hi := i == m || !tr.less(n.keys[i], start)
			if lo && hi {
				tr.rangeNode(n.children[i], start, end, out)
			}
		}
		if i < m {
			k := n.keys[i]
			if !tr.less(k, start) && !tr.less(end, k) {
				*out = append(*out, Pair[K, V]{Key: k, Value: n.values[i]})
			}
			if tr.less(end, k) {
				return
			}
		}
	}
}

// All returns every pair in key order.
func (tr *Tree[K, V]) All() []Pair[K, V] {
	out := make([]Pair[K, V], 0, tr.count)
	tr.walk(tr.root, &out)
	return out
}

func (tr *Tree[K, V]) walk(n *node[K, V], out *[]Pair[K, V]) {
	for i := 0; i <= len(n.keys); i++ {
		if !n.leaf {
			tr.walk(n.children[i], out)
		}
		if i < len(n.keys) {
			*out = append(*out, Pair[K, V]{Key: n.keys[i], Value: n.values[i]})
		}
	}
}

// Clear drops all entries.
func (tr *Tree[K, V]) Clear() {
	tr.root = &node[K, V]{leaf: true}
	tr.count = 0
}

// DefaultLess is a generic total order over dynamically-typed keys:
// numbers order numerically, strings lexically, and mixed types order by
// type name so the comparator stays strict.
func DefaultLess(a, b any) bool {
	af, aNum := asFloat(a)
	bf, bNum := asFloat(b)
	switch {
	case aNum && bNum:
		return af < bf
	case aNum != bNum:
		// Numbers sort before non-numbers.
		return aNum
	}

	as, aStr := a.(string)
	bs, bStr := b.(string)
	if aStr && bStr {
		return as < bs
	}
	if aStr != bStr {
		return aStr
	}

	at, bt := reflect.TypeOf(a), reflect.TypeOf(b)
	if at != bt {
		return strings.Compare(typeName(at), typeName(bt)) < 0
	}
	return fmt.Sprint(a) < fmt.Sprint(b)
}

func typeName(t reflect.Type) string {
	if t == nil {
		return ""
	}
	return t.String()
}

func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint8:
		return float64(x), true
	case uint16:
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
