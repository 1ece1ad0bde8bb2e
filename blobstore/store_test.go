package blobstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stores(t *testing.T) map[string]Store {
	local, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	return map[string]Store{
		"memory": NewMemoryStore(),
		"local":  local,
	}
}

func TestStore_PutGetDelete(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, s.Put(ctx, "partitions/p1", []byte("alpha")))
			data, err := s.Get(ctx, "partitions/p1")
			require.NoError(t, err)
			assert.Equal(t, []byte("alpha"), data)

			// Overwrite.
			require.NoError(t, s.Put(ctx, "partitions/p1", []byte("beta")))
			data, err = s.Get(ctx, "partitions/p1")
			require.NoError(t, err)
			assert.Equal(t, []byte("beta"), data)

			require.NoError(t, s.Delete(ctx, "partitions/p1"))
			_, err = s.Get(ctx, "partitions/p1")
			assert.ErrorIs(t, err, ErrNotFound)

			// Deleting a missing blob is a no-op.
			assert.NoError(t, s.Delete(ctx, "partitions/p1"))
		})
	}
}

func TestStore_List(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, s.Put(ctx, "partitions/a", []byte("1")))
			require.NoError(t, s.Put(ctx, "partitions/b", []byte("2")))
			require.NoError(t, s.Put(ctx, "MANIFEST-000001.json", []byte("3")))

			names, err := s.List(ctx, "partitions/")
			require.NoError(t, err)
			assert.Equal(t, []string{"partitions/a", "partitions/b"}, names)

			all, err := s.List(ctx, "")
			require.NoError(t, err)
			assert.Len(t, all, 3)
		})
	}
}

func TestMemoryStore_CopiesData(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	buf := []byte("original")
	require.NoError(t, s.Put(ctx, "k", buf))
	buf[0] = 'X'

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), got)

	got[0] = 'Y'
	again, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), again)

	assert.Equal(t, 1, s.Len())
}

func TestLocalStore_CanceledContext(t *testing.T) {
	s, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, s.Put(ctx, "k", []byte("v")))
	_, err = s.Get(ctx, "k")
	assert.Error(t, err)
}
