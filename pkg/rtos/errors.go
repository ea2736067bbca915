package rtos

import (
	"errors"
	"fmt"
)

var (
	// ErrTimeout indicates a blocking operation timed out.
	ErrTimeout = errors.New("timeout")
	// ErrNoTask indicates the context doesn't carry a task.
	ErrNoTask = errors.New("no task in context")
	// ErrResource indicates a primitive could not be created.
	ErrResource = errors.New("resource exhausted")
)

// SequenceError reports a broken coordination invariant.
// It is always fatal to the protocol using the primitive.
type SequenceError struct {
	Op     string
	Reason string
}

// Error implements error.
func (e *SequenceError) Error() string {
	return fmt.Sprintf("sequence violation in %s: %s", e.Op, e.Reason)
}

// IsFatal determines if err must halt the protocol.
func IsFatal(err error) bool {
	var seqErr *SequenceError
	return errors.As(err, &seqErr) || errors.Is(err, ErrResource)
}
