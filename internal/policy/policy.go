// Package policy defines the decisions the dispatcher delegates to the
// surrounding system, such as whether a key is consumed before dispatch or
// how long an unresponsive connection may keep its events.
//
// Policy methods may block and may call arbitrary code. The dispatcher only
// calls them from deferred commands, never with its lock held.
package policy

import (
	"context"
	"time"

	"github.com/dshills/inputdispatch/internal/event"
)

// Policy is consulted by the dispatcher.
type Policy interface {
	// InterceptKeyBeforeDispatching decides whether the focused target
	// should see the key.
	InterceptKeyBeforeDispatching(ctx context.Context, focused event.Token, key *event.Entry) (InterceptDecision, error)

	// NotifyUnresponsive reports a connection that did not acknowledge in
	// time. A positive extension keeps its events waiting that much longer.
	NotifyUnresponsive(ctx context.Context, token event.Token, reason string) (extension time.Duration, err error)

	// NotifyResponsive reports that a previously unresponsive connection
	// acknowledged again.
	NotifyResponsive(ctx context.Context, token event.Token) error

	// NotifyNoFocusedWindow reports that an application has no focused
	// window to receive keys.
	NotifyNoFocusedWindow(ctx context.Context, app ApplicationHandle) error

	// NotifyFocusChanged broadcasts a focus change.
	NotifyFocusChanged(ctx context.Context, oldToken, newToken event.Token, reason string) error

	// PokeUserActivity signals user activity, e.g. to keep the display on.
	PokeUserActivity(ctx context.Context, eventTime time.Time, displayID int32, activity UserActivity) error

	// NotifyConfigurationChanged reports an input configuration change.
	NotifyConfigurationChanged(ctx context.Context, eventTime time.Time) error

	// NotifyUntrustedTouch reports a touch blocked by an obscuring window.
	NotifyUntrustedTouch(ctx context.Context, obscuringPackage string) error

	// NotifyConnectionBroken reports a connection torn down by the
	// dispatcher.
	NotifyConnectionBroken(ctx context.Context, token event.Token) error

	// DispatchUnhandledKey offers a key the target did not handle. It
	// reports whether the policy consumed it.
	DispatchUnhandledKey(ctx context.Context, token event.Token, key *event.Entry) (bool, error)
}

// InterceptDecision is the answer to InterceptKeyBeforeDispatching.
type InterceptDecision struct {
	Result event.InterceptResult

	// Delay is how long to hold the key when Result is TryAgainLater.
	Delay time.Duration
}

// Continue lets the key through.
func Continue() InterceptDecision {
	return InterceptDecision{Result: event.InterceptContinue}
}

// Skip consumes the key.
func Skip() InterceptDecision {
	return InterceptDecision{Result: event.InterceptSkip}
}

// TryAgainLater holds the key for delay and asks again.
func TryAgainLater(delay time.Duration) InterceptDecision {
	return InterceptDecision{Result: event.InterceptTryAgainLater, Delay: delay}
}

// UserActivity classifies the activity passed to PokeUserActivity.
type UserActivity int

const (
	UserActivityOther UserActivity = iota
	UserActivityButton
	UserActivityTouch
	UserActivityAccessibility
)

// String returns the activity name.
func (a UserActivity) String() string {
	switch a {
	case UserActivityOther:
		return "other"
	case UserActivityButton:
		return "button"
	case UserActivityTouch:
		return "touch"
	case UserActivityAccessibility:
		return "accessibility"
	default:
		return "unknown"
	}
}

// ApplicationHandle identifies an application that may own windows.
type ApplicationHandle struct {
	Name            string
	Token           event.Token
	DispatchTimeout time.Duration
}
