package command

import (
	"context"
	"fmt"

	"github.com/dshills/inputdispatch/internal/event"
	"github.com/dshills/inputdispatch/internal/policy"
)

// PolicyAction returns a Func that runs every command kind against p.
//
// Result values by kind: InterceptKey yields a policy.InterceptDecision,
// NotifyUnresponsive yields the granted extension as a time.Duration,
// DispatchUnhandledKey yields a bool reporting whether policy consumed the
// key. The notification kinds yield nil.
func PolicyAction(p policy.Policy) Func {
	return func(ctx context.Context, c Command) (any, error) {
		switch c := c.(type) {
		case *InterceptKey:
			return p.InterceptKeyBeforeDispatching(ctx, c.Focused, c.Entry)
		case *NotifyUnresponsive:
			return p.NotifyUnresponsive(ctx, c.Token, c.Reason)
		case *NotifyNoFocusedWindow:
			return nil, p.NotifyNoFocusedWindow(ctx, c.Application)
		case *NotifyResponsive:
			return nil, p.NotifyResponsive(ctx, c.Token)
		case *NotifyFocusChanged:
			return nil, p.NotifyFocusChanged(ctx, c.OldToken, c.NewToken, c.Reason)
		case *PokeUserActivity:
			return nil, p.PokeUserActivity(ctx, c.EventTime, c.DisplayID, c.Activity)
		case *NotifyConfigurationChanged:
			return nil, p.NotifyConfigurationChanged(ctx, c.EventTime)
		case *NotifyUntrustedTouch:
			return nil, p.NotifyUntrustedTouch(ctx, c.ObscuringPackage)
		case *NotifyConnectionBroken:
			return nil, p.NotifyConnectionBroken(ctx, c.Token)
		case *DispatchUnhandledKey:
			return p.DispatchUnhandledKey(ctx, c.Token, c.Entry)
		default:
			return nil, fmt.Errorf("%w: %T", ErrUnknownCommand, c)
		}
	}
}

func idString(e *event.Entry) string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%#08x", uint32(e.ID()))
}
