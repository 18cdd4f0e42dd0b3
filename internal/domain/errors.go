package domain

import "fmt"

// DuplicateStatementError is returned when a statement with the same content
// has already been fully ingested. Callers treat it as a skip.
type DuplicateStatementError struct {
	StatementID string
	Filename    string
}

func (e *DuplicateStatementError) Error() string {
	return fmt.Sprintf("statement %q already ingested as %s", e.Filename, e.StatementID)
}

// StorageWriteError wraps a failed blob or database write. The statement's
// processed flag is never set when one is returned.
type StorageWriteError struct {
	Op  string
	Err error
}

func (e *StorageWriteError) Error() string {
	return fmt.Sprintf("storage write %s: %v", e.Op, e.Err)
}

func (e *StorageWriteError) Unwrap() error {
	return e.Err
}
