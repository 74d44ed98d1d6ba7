package policy

import (
	"context"
	"time"

	"github.com/dshills/inputdispatch/internal/event"
)

// Nop lets every key through, grants no extensions and ignores
// notifications.
type Nop struct{}

var _ Policy = Nop{}

func (Nop) InterceptKeyBeforeDispatching(context.Context, event.Token, *event.Entry) (InterceptDecision, error) {
	return Continue(), nil
}

func (Nop) NotifyUnresponsive(context.Context, event.Token, string) (time.Duration, error) {
	return 0, nil
}

func (Nop) NotifyResponsive(context.Context, event.Token) error { return nil }

func (Nop) NotifyNoFocusedWindow(context.Context, ApplicationHandle) error { return nil }

func (Nop) NotifyFocusChanged(context.Context, event.Token, event.Token, string) error { return nil }

func (Nop) PokeUserActivity(context.Context, time.Time, int32, UserActivity) error { return nil }

func (Nop) NotifyConfigurationChanged(context.Context, time.Time) error { return nil }

func (Nop) NotifyUntrustedTouch(context.Context, string) error { return nil }

func (Nop) NotifyConnectionBroken(context.Context, event.Token) error { return nil }

func (Nop) DispatchUnhandledKey(context.Context, event.Token, *event.Entry) (bool, error) {
	return false, nil
}
