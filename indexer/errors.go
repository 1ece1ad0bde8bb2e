package indexer

import (
	"fmt"

	"github.com/erichchampion/codegraph/model"
)

// MaintenanceError reports a failed or skipped index update during fan-out.
// It is delivered to the OnError notification callback and, for real
// failures, joined into the error returned to the caller.
type MaintenanceError struct {
	// Op is the operation that failed ("add", "remove", "rebuild").
	Op string
	// Index is the name of the affected index.
	Index string
	// NodeID is the node whose update failed.
	NodeID model.NodeID
	// Err is the underlying cause.
	Err error
}

func (e *MaintenanceError) Error() string {
	return fmt.Sprintf("indexer: %s on index %q failed for node %q: %v", e.Op, e.Index, e.NodeID, e.Err)
}

func (e *MaintenanceError) Unwrap() error { return e.Err }
