package event

import (
	"errors"
	"fmt"
	"testing"
)

func TestInvariantError(t *testing.T) {
	err := &InvariantError{Op: "Release", Msg: "refcount went negative"}

	if err.Error() != "event: Release: refcount went negative" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, ErrInvariant) {
		t.Error("InvariantError should match ErrInvariant")
	}
	if errors.Is(err, ErrWrongType) {
		t.Error("InvariantError should not match other sentinels")
	}

	wrapped := fmt.Errorf("dispatch: %w", err)
	var ie *InvariantError
	if !errors.As(wrapped, &ie) || ie.Op != "Release" {
		t.Error("errors.As should unwrap InvariantError")
	}
}

func TestInvariantPanics(t *testing.T) {
	defer func() {
		r := recover()
		ie, ok := r.(*InvariantError)
		if !ok {
			t.Fatalf("recovered %T, want *InvariantError", r)
		}
		if ie.Op != "op" || ie.Msg != "bad 3" {
			t.Errorf("unexpected error %+v", ie)
		}
	}()
	invariant("op", "bad %d", 3)
}
