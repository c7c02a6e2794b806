package domain

import (
	"errors"
	"fmt"
)

// ErrEmptyTranscript is returned when the advisory session produced no usable text.
var ErrEmptyTranscript = errors.New("advisory session returned an empty transcript")

// ErrNoDataset is returned when an invocation does not identify a dataset.
var ErrNoDataset = errors.New("could not determine which dataset to process")

// PersistenceError records why a single descriptor could not be stored.
type PersistenceError struct {
	Index int
	Name  string
	Err   error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("create event %d (%q): %v", e.Index, e.Name, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// IsPersistenceError reports whether err wraps a PersistenceError.
func IsPersistenceError(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}
