package dispatcher

import (
	"errors"
	"fmt"

	"github.com/dshills/inputdispatch/internal/policy"
)

// Errors returned by the dispatcher.
var (
	// ErrClosed is returned after the dispatcher shut down.
	ErrClosed = errors.New("dispatcher closed")

	// ErrInboundFull is returned by Notify when the inbound limit is reached.
	ErrInboundFull = errors.New("inbound queue full")

	// ErrUnknownConnection is returned for tokens that are not registered.
	ErrUnknownConnection = errors.New("unknown connection")

	// ErrDuplicateConnection is returned when registering a token twice.
	ErrDuplicateConnection = errors.New("connection already registered")

	// ErrNotInjected is returned by Inject for entries without injection state.
	ErrNotInjected = errors.New("entry has no injection state")

	// ErrNoFocusedWindow is matched by NoFocusedWindowError.
	ErrNoFocusedWindow = errors.New("no focused window")
)

// NoFocusedWindowError is returned by a TargetResolver when a key has an
// application to go to but that application has no focused window yet.
type NoFocusedWindowError struct {
	Application policy.ApplicationHandle
}

// Error implements the error interface.
func (e *NoFocusedWindowError) Error() string {
	return fmt.Sprintf("no focused window in application %q", e.Application.Name)
}

// Is allows errors.Is to match ErrNoFocusedWindow.
func (e *NoFocusedWindowError) Is(target error) bool {
	return target == ErrNoFocusedWindow
}
