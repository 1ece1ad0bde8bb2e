package blobstore

import (
	"context"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error that satisfies
// `errors.Is(err, ErrNotFound)`. The default maps to `os.ErrNotExist`.
var ErrNotFound = os.ErrNotExist

// Store is the persistence collaborator: a key/value blob store holding
// serialized partitions and manifests.
//
// Partition blobs are written and read wholesale (an evicted partition is
// re-materialized in one decode pass), so the interface is byte-slice
// oriented rather than streaming. Implementations must be safe for
// concurrent use.
type Store interface {
	// Put writes a blob atomically. An existing blob with the same name is
	// replaced.
	Put(ctx context.Context, name string, data []byte) error

	// Get reads a blob. Returns ErrNotFound if the blob does not exist.
	Get(ctx context.Context, name string) ([]byte, error)

	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error

	// List returns all blob names with the given prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
}
