package command

import (
	"fmt"
	"time"

	"github.com/dshills/inputdispatch/internal/dispatch"
	"github.com/dshills/inputdispatch/internal/event"
	"github.com/dshills/inputdispatch/internal/policy"
)

// Kind identifies a command variant.
type Kind int

const (
	KindInterceptKey Kind = iota + 1
	KindNotifyUnresponsive
	KindNotifyNoFocusedWindow
	KindNotifyResponsive
	KindNotifyFocusChanged
	KindPokeUserActivity
	KindNotifyConfigurationChanged
	KindNotifyUntrustedTouch
	KindNotifyConnectionBroken
	KindDispatchUnhandledKey
)

var kindNames = map[Kind]string{
	KindInterceptKey:               "intercept_key",
	KindNotifyUnresponsive:         "notify_unresponsive",
	KindNotifyNoFocusedWindow:      "notify_no_focused_window",
	KindNotifyResponsive:           "notify_responsive",
	KindNotifyFocusChanged:         "notify_focus_changed",
	KindPokeUserActivity:           "poke_user_activity",
	KindNotifyConfigurationChanged: "notify_configuration_changed",
	KindNotifyUntrustedTouch:       "notify_untrusted_touch",
	KindNotifyConnectionBroken:     "notify_connection_broken",
	KindDispatchUnhandledKey:       "dispatch_unhandled_key",
}

// String returns the kind name.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Command is one unit of deferred work.
type Command interface {
	Kind() Kind
	command()
}

// InterceptKey asks policy whether a key may be dispatched. Entry is the
// key the dispatcher is holding.
type InterceptKey struct {
	Entry   *event.Entry
	Focused event.Token
}

// NotifyUnresponsive reports a connection that missed an acknowledgment
// deadline. Seq is the entry that timed out.
type NotifyUnresponsive struct {
	Token  event.Token
	Seq    dispatch.Seq
	Reason string
}

// NotifyNoFocusedWindow reports an application without a focused window.
type NotifyNoFocusedWindow struct {
	Application policy.ApplicationHandle
}

// NotifyResponsive reports that a connection acknowledged again.
type NotifyResponsive struct {
	Token event.Token
}

// NotifyFocusChanged broadcasts a focus change.
type NotifyFocusChanged struct {
	OldToken event.Token
	NewToken event.Token
	Reason   string
}

// PokeUserActivity signals user activity.
type PokeUserActivity struct {
	EventTime time.Time
	DisplayID int32
	Activity  policy.UserActivity
}

// NotifyConfigurationChanged reports an input configuration change.
type NotifyConfigurationChanged struct {
	EventTime time.Time
}

// NotifyUntrustedTouch reports a touch blocked by an obscuring window.
type NotifyUntrustedTouch struct {
	ObscuringPackage string
}

// NotifyConnectionBroken reports a connection torn down by the dispatcher.
type NotifyConnectionBroken struct {
	Token event.Token
}

// DispatchUnhandledKey offers policy a key its target did not handle.
type DispatchUnhandledKey struct {
	Token event.Token
	Seq   dispatch.Seq
	Entry *event.Entry
}

func (*InterceptKey) Kind() Kind               { return KindInterceptKey }
func (*NotifyUnresponsive) Kind() Kind         { return KindNotifyUnresponsive }
func (*NotifyNoFocusedWindow) Kind() Kind      { return KindNotifyNoFocusedWindow }
func (*NotifyResponsive) Kind() Kind           { return KindNotifyResponsive }
func (*NotifyFocusChanged) Kind() Kind         { return KindNotifyFocusChanged }
func (*PokeUserActivity) Kind() Kind           { return KindPokeUserActivity }
func (*NotifyConfigurationChanged) Kind() Kind { return KindNotifyConfigurationChanged }
func (*NotifyUntrustedTouch) Kind() Kind       { return KindNotifyUntrustedTouch }
func (*NotifyConnectionBroken) Kind() Kind     { return KindNotifyConnectionBroken }
func (*DispatchUnhandledKey) Kind() Kind       { return KindDispatchUnhandledKey }

func (*InterceptKey) command()               {}
func (*NotifyUnresponsive) command()         {}
func (*NotifyNoFocusedWindow) command()      {}
func (*NotifyResponsive) command()           {}
func (*NotifyFocusChanged) command()         {}
func (*PokeUserActivity) command()           {}
func (*NotifyConfigurationChanged) command() {}
func (*NotifyUntrustedTouch) command()       {}
func (*NotifyConnectionBroken) command()     {}
func (*DispatchUnhandledKey) command()       {}

// entryOf returns the event a command holds a reference to, if any.
func entryOf(c Command) *event.Entry {
	switch c := c.(type) {
	case *InterceptKey:
		return c.Entry
	case *DispatchUnhandledKey:
		return c.Entry
	default:
		return nil
	}
}
