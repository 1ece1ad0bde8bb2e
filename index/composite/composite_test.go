package composite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erichchampion/codegraph/model"
)

func TestIndex_PartialSearch(t *testing.T) {
	ix := New(Options{Fields: []string{"lang", "kind"}})

	require.NoError(t, ix.AddEntry("n1", map[string]any{"lang": "ts", "kind": "fn"}))
	require.NoError(t, ix.AddEntry("n2", map[string]any{"lang": "ts", "kind": "class"}))
	require.NoError(t, ix.AddEntry("n3", map[string]any{"lang": "go", "kind": "fn"}))

	// One provided field wildcards the other.
	assert.Equal(t, []model.NodeID{"n1", "n2"}, ix.Search(map[string]any{"lang": "ts"}))
	assert.Equal(t, []model.NodeID{"n1", "n3"}, ix.Search(map[string]any{"kind": "fn"}))

	// Fully specified key.
	assert.Equal(t, []model.NodeID{"n1"}, ix.Search(map[string]any{"lang": "ts", "kind": "fn"}))

	// No fields means match everything.
	assert.Len(t, ix.Search(nil), 3)

	// No match.
	assert.Empty(t, ix.Search(map[string]any{"lang": "rust"}))
}

func TestIndex_NullToken(t *testing.T) {
	ix := New(Options{Fields: []string{"lang", "kind"}})

	require.NoError(t, ix.AddEntry("n1", map[string]any{"lang": "ts"}))
	require.NoError(t, ix.AddEntry("n2", map[string]any{"lang": "ts", "kind": nil}))

	// Missing and explicit-nil fields build the same NULL key.
	assert.Equal(t, 1, ix.KeyCount())
	assert.Equal(t, []model.NodeID{"n1", "n2"}, ix.Search(map[string]any{"lang": "ts", "kind": nil}))
}

func TestIndex_Sparse(t *testing.T) {
	ix := New(Options{Fields: []string{"lang", "kind"}, Sparse: true})

	// Entries with a nil field are skipped entirely.
	require.NoError(t, ix.AddEntry("n1", map[string]any{"lang": "ts"}))
	assert.Equal(t, 0, ix.KeyCount())
	assert.Empty(t, ix.Search(map[string]any{"lang": "ts"}))

	require.NoError(t, ix.AddEntry("n2", map[string]any{"lang": "ts", "kind": "fn"}))
	assert.Equal(t, 1, ix.KeyCount())
}

func TestIndex_Unique(t *testing.T) {
	ix := New(Options{Fields: []string{"file", "line"}, Unique: true})

	require.NoError(t, ix.AddEntry("n1", map[string]any{"file": "a.go", "line": 10}))

	// Second id under the same key violates the constraint.
	err := ix.AddEntry("n2", map[string]any{"file": "a.go", "line": 10})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUniqueConstraint)
	var ce *ConstraintError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, []model.NodeID{"n1"}, ce.Existing)

	// Re-adding the same id is not a violation.
	require.NoError(t, ix.AddEntry("n1", map[string]any{"file": "a.go", "line": 10}))

	// A different key is fine.
	require.NoError(t, ix.AddEntry("n2", map[string]any{"file": "a.go", "line": 20}))
}

func TestIndex_RemoveEntry(t *testing.T) {
	ix := New(Options{Fields: []string{"lang"}})

	require.NoError(t, ix.AddEntry("n1", map[string]any{"lang": "ts"}))
	require.NoError(t, ix.AddEntry("n2", map[string]any{"lang": "ts"}))

	ix.RemoveEntry("n1", map[string]any{"lang": "ts"})
	assert.Equal(t, []model.NodeID{"n2"}, ix.Search(map[string]any{"lang": "ts"}))

	// Removing the last id drops the key.
	ix.RemoveEntry("n2", map[string]any{"lang": "ts"})
	assert.Equal(t, 0, ix.KeyCount())

	// Removing an unknown id or key is a no-op.
	ix.RemoveEntry("n9", map[string]any{"lang": "ts"})
}

func TestIndex_Delimiter(t *testing.T) {
	ix := New(Options{Fields: []string{"a", "b"}, Delimiter: "::"})

	require.NoError(t, ix.AddEntry("n1", map[string]any{"a": "x", "b": "y"}))
	assert.Equal(t, []model.NodeID{"n1"}, ix.Search(map[string]any{"a": "x"}))
}

func TestIndex_Counts(t *testing.T) {
	ix := New(Options{Fields: []string{"lang"}})

	require.NoError(t, ix.AddEntry("n1", map[string]any{"lang": "ts"}))
	require.NoError(t, ix.AddEntry("n2", map[string]any{"lang": "ts"}))
	require.NoError(t, ix.AddEntry("n3", map[string]any{"lang": "go"}))

	assert.Equal(t, 2, ix.KeyCount())
	assert.Equal(t, 3, ix.EntryCount())

	ix.Clear()
	assert.Equal(t, 0, ix.KeyCount())
	assert.Equal(t, 0, ix.EntryCount())
}
