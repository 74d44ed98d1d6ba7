package command

import (
	"errors"
	"fmt"
)

// Sentinel errors for the command package.
var (
	// ErrInvariant is matched by every InvariantError.
	ErrInvariant = errors.New("command invariant violated")

	// ErrUnknownCommand is returned for a command the handler cannot run.
	ErrUnknownCommand = errors.New("unknown command")
)

// InvariantError reports misuse of the command machinery. It is raised with
// panic.
type InvariantError struct {
	Op  string
	Msg string
}

// Error implements the error interface.
func (e *InvariantError) Error() string {
	return "command: " + e.Op + ": " + e.Msg
}

// Is allows errors.Is to match InvariantError with ErrInvariant.
func (e *InvariantError) Is(target error) bool {
	return target == ErrInvariant
}

// PanicError wraps a value recovered from a panicking command so it can be
// handled as an error.
type PanicError struct {
	Kind  Kind
	Value any
	Stack []byte
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("command %s panicked: %v", e.Kind, e.Value)
}

// Unwrap returns the panic value when it is an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
