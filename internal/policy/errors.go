package policy

import "errors"

// Errors for the scripted policy.
var (
	// ErrClosed is returned when calling into a closed Lua policy.
	ErrClosed = errors.New("lua policy is closed")

	// ErrBadReturn is returned when a script hook returns an unusable value.
	ErrBadReturn = errors.New("lua hook returned an invalid value")
)
