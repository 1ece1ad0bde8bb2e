package codegraph

import (
	"errors"
	"fmt"

	"github.com/erichchampion/codegraph/blobstore"
	"github.com/erichchampion/codegraph/index/composite"
	"github.com/erichchampion/codegraph/partition"
)

var (
	// ErrNotFound unifies the not-found conditions of the underlying
	// layers: unknown node, unknown partition, missing persisted blob.
	ErrNotFound = errors.New("not found")

	// ErrInvalidLimit is returned when a result limit is not positive.
	ErrInvalidLimit = errors.New("limit must be positive")

	// ErrUniqueConstraint surfaces a composite unique-index violation.
	ErrUniqueConstraint = composite.ErrUniqueConstraint
)

// translateError normalizes lower-layer errors to the package's public
// error surface. The original error remains reachable via errors.Unwrap.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	// Not found unification.
	if errors.Is(err, partition.ErrNodeNotFound) ||
		errors.Is(err, partition.ErrPartitionNotFound) ||
		errors.Is(err, blobstore.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	return err
}
