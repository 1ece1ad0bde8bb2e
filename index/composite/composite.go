// Package composite implements the multi-field index: an ordered tuple of
// named field values joined into one string key, mapped to the set of node
// ids carrying that combination. Partial searches match stored keys with
// wildcards in the omitted positions.
package composite

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/erichchampion/codegraph/model"
)

const (
	// NullToken replaces nil field values in non-sparse keys.
	NullToken = "NULL"
	// Wildcard marks omitted fields in a partial-search pattern.
	Wildcard = "*"
	// DefaultDelimiter joins field values into a composite key.
	DefaultDelimiter = "|"
)

// ErrUniqueConstraint is the sentinel all uniqueness violations unwrap to.
var ErrUniqueConstraint = errors.New("composite: unique constraint violation")

// ConstraintError reports a unique-key collision.
type ConstraintError struct {
	Key      string
	Existing []model.NodeID
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("composite: unique constraint violation on key %q (held by %v)", e.Key, e.Existing)
}

func (e *ConstraintError) Unwrap() error { return ErrUniqueConstraint }

// Options configures an Index.
type Options struct {
	// Fields is the ordered list of field names forming the key.
	Fields []string
	// Unique rejects a second id under an occupied key.
	Unique bool
	// Sparse skips entries whose key contains any nil field.
	Sparse bool
	// Delimiter joins field values; DefaultDelimiter if empty.
	Delimiter string
}

// Index maps composite keys to id sets. Thread-safe for concurrent use.
type Index struct {
	mu sync.RWMutex

	opts Options

	// key -> set of interned local ids
	keys map[string]*roaring.Bitmap

	locals  map[model.NodeID]uint32
	reverse []model.NodeID
}

// New creates a composite index over the given options.
func New(opts Options) *Index {
	if opts.Delimiter == "" {
		opts.Delimiter = DefaultDelimiter
	}
	return &Index{
		opts: opts,
		keys: make(map[string]*roaring.Bitmap),
		locals: make(map[model.NodeID]uint32),
	}
}

// Fields returns the ordered key fields.
func (ix *Index) Fields() []string { return ix.opts.Fields }

func (ix *Index) localID(id model.NodeID) uint32 {
	if l, ok := ix.locals[id]; ok {
		return l
	}
	l := uint32(len(ix.reverse))
	ix.locals[id] = l
	ix.reverse = append(ix.reverse, id)
	return l
}

// buildKey joins the stringified field values. ok=false means the entry is
// skipped (sparse index with a nil field).
func (ix *Index) buildKey(fieldValues map[string]any) (string, bool) {
	parts := make([]string, len(ix.opts.Fields))
	for i, f := range ix.opts.Fields {
		v, present := fieldValues[f]
		if !present || v == nil {
			if ix.opts.Sparse {
				return "", false
			}
			parts[i] = NullToken
			continue
		}
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, ix.opts.Delimiter), true
}

// AddEntry indexes id under the key built from fieldValues.
// A unique index returns a ConstraintError if the key already maps to a
// non-empty id set.
func (ix *Index) AddEntry(id model.NodeID, fieldValues map[string]any) error {
	key, ok := ix.buildKey(fieldValues)
	if !ok {
		return nil
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	bits, exists := ix.keys[key]
	if exists && ix.opts.Unique && !bits.IsEmpty() {
		local := ix.localID(id)
		if !(bits.GetCardinality() == 1 && bits.Contains(local)) {
			return &ConstraintError{Key: key, Existing: ix.ids(bits)}
		}
	}
	if !exists {
		bits = roaring.New()
		ix.keys[key] = bits
	}
	bits.Add(ix.localID(id))
	return nil
}

// RemoveEntry unindexes id from the key built from fieldValues.
func (ix *Index) RemoveEntry(id model.NodeID, fieldValues map[string]any) {
	key, ok := ix.buildKey(fieldValues)
	if !ok {
		return
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	bits, exists := ix.keys[key]
	if !exists {
		return
	}
	local, ok := ix.locals[id]
	if !ok {
		return
	}
	bits.Remove(local)
	if bits.IsEmpty() {
		delete(ix.keys, key)
	}
}

// Search returns ids whose stored key agrees with partialFieldValues on
// every provided field; omitted fields are wildcards. Linear scan over
// stored keys, acceptable at composite-index cardinalities.
func (ix *Index) Search(partialFieldValues map[string]any) []model.NodeID {
	pattern := make([]string, len(ix.opts.Fields))
	for i, f := range ix.opts.Fields {
		v, present := partialFieldValues[f]
		switch {
		case !present:
			pattern[i] = Wildcard
		case v == nil:
			pattern[i] = NullToken
		default:
			pattern[i] = fmt.Sprint(v)
		}
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	seen := roaring.New()
	for key, bits := range ix.keys {
		if ix.matches(key, pattern) {
			seen.Or(bits)
		}
	}

	out := ix.ids(seen)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (ix *Index) matches(key string, pattern []string) bool {
	parts := strings.Split(key, ix.opts.Delimiter)
	if len(parts) != len(pattern) {
		return false
	}
	for i, p := range pattern {
		if p != Wildcard && parts[i] != p {
			return false
		}
	}
	return true
}

func (ix *Index) ids(bits *roaring.Bitmap) []model.NodeID {
	out := make([]model.NodeID, 0, bits.GetCardinality())
	it := bits.Iterator()
	for it.HasNext() {
		out = append(out, ix.reverse[it.Next()])
	}
	return out
}

// KeyCount returns the number of distinct composite keys.
func (ix *Index) KeyCount() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.keys)
}

// EntryCount returns the total number of (key, id) memberships.
func (ix *Index) EntryCount() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	n := 0
	for _, bits := range ix.keys {
		n += int(bits.GetCardinality())
	}
	return n
}

// Clear drops all entries.
func (ix *Index) Clear() {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.keys = make(map[string]*roaring.Bitmap)
	ix.locals = make(map[model.NodeID]uint32)
	ix.reverse = nil
}
