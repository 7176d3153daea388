package schema

import (
	"errors"
	"fmt"
)

// Sentinel errors for the failure classes of a run.
var (
	ErrInput              = errors.New("invalid input")
	ErrEmptyInput         = errors.New("no valid records")
	ErrMalformedTimestamp = errors.New("malformed timestamp")
	ErrClustering         = errors.New("clustering did not converge")
	ErrPersistence        = errors.New("persistence failed")
)

// MalformedTimestampError is returned for a created_at value that is not an absolute instant.
type MalformedTimestampError struct {
	PostID string
	Value  string
	Err    error
}

func (e *MalformedTimestampError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("post %q: malformed timestamp %q: %v", e.PostID, e.Value, e.Err)
	}
	return fmt.Sprintf("post %q: malformed timestamp %q", e.PostID, e.Value)
}

// Is reports whether target is one of the sentinels this error belongs to.
func (e *MalformedTimestampError) Is(target error) bool {
	return target == ErrMalformedTimestamp || target == ErrInput
}

func (e *MalformedTimestampError) Unwrap() error { return e.Err }

// EmptyInputError is returned when a batch holds no valid records at all.
type EmptyInputError struct {
	Total    int
	Rejected int
}

func (e *EmptyInputError) Error() string {
	return fmt.Sprintf("no valid records: %d of %d rejected", e.Rejected, e.Total)
}

// Is reports whether target is one of the sentinels this error belongs to.
func (e *EmptyInputError) Is(target error) bool {
	return target == ErrEmptyInput || target == ErrInput
}

// ConvergenceError reports that the iteration cap was hit before centers settled.
// It signals degraded quality, not failure.
type ConvergenceError struct {
	Iterations int
	Shift      float64
}

func (e *ConvergenceError) Error() string {
	return fmt.Sprintf("clustering did not converge after %d iterations (last shift %.6f)", e.Iterations, e.Shift)
}

// Is reports whether target is ErrClustering.
func (e *ConvergenceError) Is(target error) bool {
	return target == ErrClustering
}

// PersistenceError wraps a store failure with the operation and backend it came from.
type PersistenceError struct {
	Op      string
	Backend DatabaseBackend
	Err     error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s on %s backend: %v", e.Op, e.Backend, e.Err)
}

// Is reports whether target is ErrPersistence.
func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

func (e *PersistenceError) Unwrap() error { return e.Err }
