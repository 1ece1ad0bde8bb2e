package manifest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erichchampion/codegraph/blobstore"
)

func TestStore_EmptyLoad(t *testing.T) {
	s := NewStore(blobstore.NewMemoryStore(), nil)

	m, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, CurrentVersion, m.Version)
	assert.Zero(t, m.ID)
	assert.Empty(t, m.Partitions)
}

func TestStore_SaveLoad(t *testing.T) {
	bs := blobstore.NewMemoryStore()
	s := NewStore(bs, nil)
	ctx := context.Background()

	m := &Manifest{
		Strategy: "module",
		Codec:    "go-json",
		Partitions: []PartitionInfo{
			{ID: "module:core", Name: "core", BlobName: "partitions/module:core", NodeCount: 10, EdgeCount: 4},
		},
		CrossRefCount: 2,
	}
	require.NoError(t, s.Save(ctx, m))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), got.ID)
	assert.Equal(t, "module", got.Strategy)
	assert.Equal(t, m.Partitions, got.Partitions)
	assert.Equal(t, 2, got.CrossRefCount)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestStore_SnapshotsAreVersioned(t *testing.T) {
	bs := blobstore.NewMemoryStore()
	s := NewStore(bs, nil)
	ctx := context.Background()

	first := &Manifest{Strategy: "module"}
	require.NoError(t, s.Save(ctx, first))
	second := &Manifest{ID: first.ID, Strategy: "size_based"}
	require.NoError(t, s.Save(ctx, second))

	// CURRENT points at the latest; the prior snapshot still exists.
	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), got.ID)
	assert.Equal(t, "size_based", got.Strategy)

	names, err := bs.List(ctx, FilePrefix)
	require.NoError(t, err)
	assert.Len(t, names, 2)
}

func TestStore_DanglingCurrent(t *testing.T) {
	bs := blobstore.NewMemoryStore()
	require.NoError(t, bs.Put(context.Background(), CurrentName, []byte("MANIFEST-999999.json")))

	s := NewStore(bs, nil)
	_, err := s.Load(context.Background())
	assert.Error(t, err)
}
