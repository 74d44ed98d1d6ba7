package dispatch

import (
	"fmt"
	"time"

	"gioui.org/f32"

	"github.com/dshills/inputdispatch/internal/event"
)

// State is the delivery state of an Entry.
type State uint8

const (
	// StatePending means the entry is queued for its connection.
	StatePending State = iota

	// StateSent means the entry was handed to the connection and is awaiting
	// acknowledgment.
	StateSent

	// StateTimedOut means the timeout passed without acknowledgment and the
	// connection was reported unresponsive.
	StateTimedOut

	// StateAcknowledged is terminal: the target finished the entry.
	StateAcknowledged

	// StateDropped is terminal: the entry was abandoned without an
	// acknowledgment, e.g. on connection teardown.
	StateDropped
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StatePending:
		return "PENDING"
	case StateSent:
		return "SENT"
	case StateTimedOut:
		return "TIMED_OUT"
	case StateAcknowledged:
		return "ACKNOWLEDGED"
	case StateDropped:
		return "DROPPED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateAcknowledged || s == StateDropped
}

// Entry is the delivery record of one event to one target.
type Entry struct {
	seq         Seq
	event       *event.Entry
	targetFlags TargetFlags
	transform   f32.Affine2D
	globalScale float32

	state        State
	sent         bool
	deliveryTime time.Time
	timeoutTime  time.Time
	escalations  int

	// ResolvedEventID, ResolvedAction and ResolvedFlags start out as the
	// event's values and may be remapped per target, e.g. to cancel a stream
	// or turn a move into a hover enter.
	ResolvedEventID event.ID
	ResolvedAction  int32
	ResolvedFlags   int32
}

// Option configures an Entry.
type Option func(*Entry)

// WithTransform sets the target's coordinate transform.
func WithTransform(t f32.Affine2D) Option {
	return func(e *Entry) {
		e.transform = t
	}
}

// WithGlobalScale sets the target's global scale factor.
func WithGlobalScale(scale float32) Option {
	return func(e *Entry) {
		e.globalScale = scale
	}
}

// WithSequencer draws the sequence number from s instead of the process-wide
// sequencer.
func WithSequencer(s *Sequencer) Option {
	return func(e *Entry) {
		e.seq = s.Next()
	}
}

// New creates a pending entry delivering ev to a target with the given
// flags. It takes a reference to ev.
func New(ev *event.Entry, flags TargetFlags, opts ...Option) *Entry {
	e := &Entry{
		event:           ev,
		targetFlags:     flags,
		globalScale:     1,
		ResolvedEventID: ev.ID(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.seq == NoSeq {
		e.seq = NextSeq()
	}

	switch p := ev.Payload().(type) {
	case *event.Key:
		e.ResolvedAction = int32(p.Action)
		e.ResolvedFlags = int32(p.Flags)
	case *event.Motion:
		e.ResolvedAction = int32(p.Action)
		e.ResolvedFlags = int32(p.Flags)
	}

	ev.Acquire()
	return e
}

// Seq returns the sequence number.
func (e *Entry) Seq() Seq { return e.seq }

// Event returns the shared event. It must not be used once the entry is
// terminal.
func (e *Entry) Event() *event.Entry { return e.event }

// TargetFlags returns the target flags.
func (e *Entry) TargetFlags() TargetFlags { return e.targetFlags }

// HasForegroundTarget reports whether the target is the foreground target.
func (e *Entry) HasForegroundTarget() bool {
	return e.targetFlags&TargetForeground != 0
}

// IsSplit reports whether the event is split across targets.
func (e *Entry) IsSplit() bool {
	return e.targetFlags&TargetSplit != 0
}

// Transform returns the target's coordinate transform.
func (e *Entry) Transform() f32.Affine2D { return e.transform }

// GlobalScaleFactor returns the target's global scale factor.
func (e *Entry) GlobalScaleFactor() float32 { return e.globalScale }

// State returns the delivery state.
func (e *Entry) State() State { return e.state }

// Escalations returns how many times the entry timed out.
func (e *Entry) Escalations() int { return e.escalations }

// MarkSent records delivery at now with the given acknowledgment budget.
func (e *Entry) MarkSent(now time.Time, budget time.Duration) {
	if e.state != StatePending {
		invariant("MarkSent", e.seq, "entry is %s, want PENDING", e.state)
	}
	if budget < 0 {
		invariant("MarkSent", e.seq, "negative budget %v", budget)
	}
	e.state = StateSent
	e.sent = true
	e.deliveryTime = now
	e.timeoutTime = now.Add(budget)
}

// DeliveryTime returns when the entry was sent.
func (e *Entry) DeliveryTime() time.Time {
	if !e.sent {
		invariant("DeliveryTime", e.seq, "entry was never sent")
	}
	return e.deliveryTime
}

// TimeoutTime returns when the entry times out.
func (e *Entry) TimeoutTime() time.Time {
	if !e.sent {
		invariant("TimeoutTime", e.seq, "entry was never sent")
	}
	return e.timeoutTime
}

// IsTimedOut reports whether a sent entry is at or past its timeout.
func (e *Entry) IsTimedOut(now time.Time) bool {
	return e.state == StateSent && !now.Before(e.timeoutTime)
}

// MarkTimedOut moves a sent entry past its timeout to StateTimedOut.
func (e *Entry) MarkTimedOut(now time.Time) {
	if e.state != StateSent {
		invariant("MarkTimedOut", e.seq, "entry is %s, want SENT", e.state)
	}
	if now.Before(e.timeoutTime) {
		invariant("MarkTimedOut", e.seq, "timeout %v not reached at %v", e.timeoutTime, now)
	}
	e.state = StateTimedOut
	e.escalations++
}

// ReArm grants a timed-out entry extension more time from now and moves it
// back to StateSent.
func (e *Entry) ReArm(now time.Time, extension time.Duration) {
	if e.state != StateTimedOut {
		invariant("ReArm", e.seq, "entry is %s, want TIMED_OUT", e.state)
	}
	if extension <= 0 {
		invariant("ReArm", e.seq, "extension %v must be positive", extension)
	}
	timeout := now.Add(extension)
	if timeout.Before(e.deliveryTime) {
		timeout = e.deliveryTime
	}
	e.state = StateSent
	e.timeoutTime = timeout
}

// Acknowledge retires a sent or timed-out entry and releases its event. It
// reports whether the acknowledgment arrived after an escalation.
func (e *Entry) Acknowledge() (late bool) {
	switch e.state {
	case StateSent, StateTimedOut:
	default:
		invariant("Acknowledge", e.seq, "entry is %s", e.state)
	}
	late = e.state == StateTimedOut || e.escalations > 0
	e.state = StateAcknowledged
	e.release()
	return late
}

// Drop abandons a non-terminal entry and releases its event.
func (e *Entry) Drop() {
	if e.state.Terminal() {
		invariant("Drop", e.seq, "entry is already %s", e.state)
	}
	e.state = StateDropped
	e.release()
}

func (e *Entry) release() {
	e.event.Release()
}

// String returns a one-line description for logs.
func (e *Entry) String() string {
	return fmt.Sprintf("DispatchEntry(seq=%d, state=%s, targetFlags=%s, event=%s)",
		e.seq, e.state, e.targetFlags, e.event.Type())
}
