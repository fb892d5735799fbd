package analysis

import (
	"fmt"

	"github.com/sells-group/leadscore/internal/model"
)

// PersistenceError is a failed write of a record's status or scores. The
// record keeps its last persisted state and the batch continues.
type PersistenceError struct {
	RecordID string
	Op       string
	Err      error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("analysis: %s record %s: %v", e.Op, e.RecordID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// SelectionError is a failed claim of a batch's records. The batch does
// nothing.
type SelectionError struct {
	Scope model.Scope
	Err   error
}

func (e *SelectionError) Error() string {
	return fmt.Sprintf("analysis: claim %s %s: %v", e.Scope, e.Scope.SearchID, e.Err)
}

func (e *SelectionError) Unwrap() error { return e.Err }
