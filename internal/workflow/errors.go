package workflow

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition is returned when an event is not valid from the
	// file's current status. Never coerced, never swallowed.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrStaleTransition is returned when the file's persisted status changed
	// between validation and write (the caller lost a race). The caller must
	// re-fetch and decide whether the event still applies.
	ErrStaleTransition = errors.New("stale transition")

	// ErrFileNotFound is returned when the referenced processing file does
	// not exist.
	ErrFileNotFound = errors.New("processing file not found")
)

// TransitionError describes a rejected transition with enough context for the
// caller to log or surface it.
type TransitionError struct {
	FileID string
	Status FileStatus
	Event  EventType
	Err    error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("transition %s from %s for file %s: %v", e.Event, e.Status, e.FileID, e.Err)
}

func (e *TransitionError) Unwrap() error { return e.Err }

// PersistenceError wraps a storage failure while reading or writing a
// transition. The engine does not retry its own writes.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
