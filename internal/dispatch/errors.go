package dispatch

import (
	"errors"
	"fmt"
)

// Sentinel errors for the dispatch package.
var (
	// ErrInvariant is matched by every InvariantError.
	ErrInvariant = errors.New("dispatch invariant violated")

	// ErrInvalidBudget is returned when timeout budgets are inconsistent.
	ErrInvalidBudget = errors.New("invalid timeout budget")
)

// InvariantError reports a dispatcher logic defect, such as a duplicate live
// sequence number or an illegal state transition. It is raised with panic.
type InvariantError struct {
	Op  string
	Seq Seq
	Msg string
}

// Error implements the error interface.
func (e *InvariantError) Error() string {
	if e.Seq == NoSeq {
		return fmt.Sprintf("dispatch: %s: %s", e.Op, e.Msg)
	}
	return fmt.Sprintf("dispatch: %s: seq %d: %s", e.Op, e.Seq, e.Msg)
}

// Is allows errors.Is to match InvariantError with ErrInvariant.
func (e *InvariantError) Is(target error) bool {
	return target == ErrInvariant
}

func invariant(op string, seq Seq, format string, args ...any) {
	panic(&InvariantError{Op: op, Seq: seq, Msg: fmt.Sprintf(format, args...)})
}
