package memory

import "fmt"

// PersistenceError reports a failed read or write against the DocumentStore.
// The Store logs these and carries on; memory and disk are reconciled on the
// next recovery scan.
type PersistenceError struct {
	Op  string // put, delete, walk, read, encode
	ID  string
	Err error
}

func (e *PersistenceError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("persistence %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("persistence %s %s: %v", e.Op, e.ID, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
