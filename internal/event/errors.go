package event

import (
	"errors"
	"fmt"
)

// Sentinel errors for event construction and inspection.
var (
	// ErrNoPointers is returned when a motion entry is built without pointers.
	ErrNoPointers = errors.New("motion entry has no pointers")

	// ErrTooManyPointers is returned when a motion entry exceeds MaxPointers.
	ErrTooManyPointers = errors.New("motion entry has too many pointers")

	// ErrDuplicatePointerID is returned when two pointers share an ID.
	ErrDuplicatePointerID = errors.New("duplicate pointer id")

	// ErrWrongType is returned when an operation does not apply to the entry's type.
	ErrWrongType = errors.New("operation does not apply to entry type")

	// ErrInvariant is matched by every InvariantError.
	ErrInvariant = errors.New("event invariant violated")
)

// InvariantError reports a logic defect in the caller. It is raised with
// panic, never returned: the dispatcher cannot continue safely once an entry
// has been misused.
type InvariantError struct {
	// Op is the operation that detected the violation.
	Op string

	// Msg describes the violation.
	Msg string
}

// Error implements the error interface.
func (e *InvariantError) Error() string {
	return "event: " + e.Op + ": " + e.Msg
}

// Is allows errors.Is to match InvariantError with ErrInvariant.
func (e *InvariantError) Is(target error) bool {
	return target == ErrInvariant
}

func invariant(op, format string, args ...any) {
	panic(&InvariantError{Op: op, Msg: fmt.Sprintf(format, args...)})
}
