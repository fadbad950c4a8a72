package storage

import (
	"errors"
	"fmt"
)

// ErrIOFailure matches every PersistenceError with errors.Is.
var ErrIOFailure = errors.New("storage i/o failure")

// PersistenceError reports a failed storage operation. Op is one of "load",
// "save", "append_history" or "list_history".
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("storage %s failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func (e *PersistenceError) Is(target error) bool {
	return target == ErrIOFailure
}

func persistenceError(op string, err error) error {
	if err == nil {
		return nil
	}
	var pErr *PersistenceError
	if errors.As(err, &pErr) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}
