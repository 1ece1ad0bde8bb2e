package partition

import (
	"fmt"

	"github.com/erichchampion/codegraph/model"
)

// LoadError reports a failed partition load. The partition has already
// been reverted to the unloaded state when this error is returned.
type LoadError struct {
	PartitionID model.PartitionID
	Err         error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("partition: load %s: %v", e.PartitionID, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// EvictError reports a failed eviction write. The partition stays loaded
// with its containers intact; nothing was dropped.
type EvictError struct {
	PartitionID model.PartitionID
	Err         error
}

func (e *EvictError) Error() string {
	return fmt.Sprintf("partition: evict %s: %v", e.PartitionID, e.Err)
}

func (e *EvictError) Unwrap() error { return e.Err }
