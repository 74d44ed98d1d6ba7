package event

import (
	"fmt"
	"strings"
	"time"
)

// InputSource identifies the class of device that produced an entry.
type InputSource uint32

const (
	InputSourceUnknown     InputSource = 0x00000000
	InputSourceKeyboard    InputSource = 0x00000101
	InputSourceDpad        InputSource = 0x00000201
	InputSourceTouchscreen InputSource = 0x00001002
	InputSourceMouse       InputSource = 0x00002002
	InputSourceStylus      InputSource = 0x00004002
	InputSourceTrackball   InputSource = 0x00010004
	InputSourceTouchpad    InputSource = 0x00100008
	InputSourceJoystick    InputSource = 0x01000010
)

// IsPointer reports whether the source reports pointer coordinates.
func (s InputSource) IsPointer() bool {
	return s&0x2 != 0
}

// KeyAction is the action of a key entry.
type KeyAction int32

const (
	// KeyActionDown is a key press or repeat.
	KeyActionDown KeyAction = 0

	// KeyActionUp is a key release.
	KeyActionUp KeyAction = 1

	// KeyActionMultiple is a batch of repeated characters.
	KeyActionMultiple KeyAction = 2
)

// String returns the action name.
func (a KeyAction) String() string {
	switch a {
	case KeyActionDown:
		return "DOWN"
	case KeyActionUp:
		return "UP"
	case KeyActionMultiple:
		return "MULTIPLE"
	default:
		return fmt.Sprintf("%d", int32(a))
	}
}

// KeyFlags are per-key event flags.
type KeyFlags int32

const (
	KeyFlagWokeHere          KeyFlags = 0x1
	KeyFlagSoftKeyboard      KeyFlags = 0x2
	KeyFlagKeepTouchMode     KeyFlags = 0x4
	KeyFlagFromSystem        KeyFlags = 0x8
	KeyFlagEditorAction      KeyFlags = 0x10
	KeyFlagCanceled          KeyFlags = 0x20
	KeyFlagVirtualHardKey    KeyFlags = 0x40
	KeyFlagLongPress         KeyFlags = 0x80
	KeyFlagCanceledLongPress KeyFlags = 0x100
	KeyFlagTracking          KeyFlags = 0x200
	KeyFlagFallback          KeyFlags = 0x400
)

// InterceptResult is the policy's verdict on a key before dispatch.
type InterceptResult int

const (
	// InterceptUnknown means the policy has not been asked yet.
	InterceptUnknown InterceptResult = iota

	// InterceptSkip drops the key.
	InterceptSkip

	// InterceptContinue delivers the key.
	InterceptContinue

	// InterceptTryAgainLater holds the key until InterceptWakeupTime.
	InterceptTryAgainLater
)

// String returns the result name.
func (r InterceptResult) String() string {
	switch r {
	case InterceptUnknown:
		return "UNKNOWN"
	case InterceptSkip:
		return "SKIP"
	case InterceptContinue:
		return "CONTINUE"
	case InterceptTryAgainLater:
		return "TRY_AGAIN_LATER"
	default:
		return "INVALID"
	}
}

// MetaState is the set of active modifier and lock keys.
type MetaState int32

const (
	MetaNone       MetaState = 0
	MetaShiftOn    MetaState = 0x1
	MetaAltOn      MetaState = 0x02
	MetaSymOn      MetaState = 0x04
	MetaFunctionOn MetaState = 0x08
	MetaCtrlOn     MetaState = 0x1000
	MetaMetaOn     MetaState = 0x10000
	MetaCapsLockOn MetaState = 0x100000
	MetaNumLockOn  MetaState = 0x200000
)

// Has reports whether m contains mod.
func (m MetaState) Has(mod MetaState) bool {
	return m&mod != 0
}

// With returns m with mod added.
func (m MetaState) With(mod MetaState) MetaState {
	return m | mod
}

// Without returns m with mod removed.
func (m MetaState) Without(mod MetaState) MetaState {
	return m &^ mod
}

// String returns a representation like "Ctrl+Shift".
func (m MetaState) String() string {
	if m == MetaNone {
		return "none"
	}

	var parts []string
	if m.Has(MetaCtrlOn) {
		parts = append(parts, "Ctrl")
	}
	if m.Has(MetaAltOn) {
		parts = append(parts, "Alt")
	}
	if m.Has(MetaShiftOn) {
		parts = append(parts, "Shift")
	}
	if m.Has(MetaMetaOn) {
		parts = append(parts, "Meta")
	}
	if m.Has(MetaSymOn) {
		parts = append(parts, "Sym")
	}
	if m.Has(MetaFunctionOn) {
		parts = append(parts, "Fn")
	}
	if m.Has(MetaCapsLockOn) {
		parts = append(parts, "CapsLock")
	}
	if m.Has(MetaNumLockOn) {
		parts = append(parts, "NumLock")
	}
	return strings.Join(parts, "+")
}

// Key is the payload of TypeKey entries.
type Key struct {
	DeviceID    int32
	Source      InputSource
	DisplayID   int32
	Action      KeyAction
	Flags       KeyFlags
	KeyCode     KeyCode
	ScanCode    int32
	MetaState   MetaState
	RepeatCount int32
	DownTime    time.Time

	// SyntheticRepeat is set on repeats generated by the dispatcher.
	SyntheticRepeat bool

	// InterceptResult is the policy verdict; reset to InterceptUnknown by Recycle.
	InterceptResult InterceptResult

	// InterceptWakeupTime is only meaningful with InterceptTryAgainLater.
	InterceptWakeupTime time.Time
}

// Type implements Payload.
func (*Key) Type() Type { return TypeKey }

func (k *Key) clone() Payload {
	c := *k
	return &c
}

// NewKey creates a key entry from k. The intercept fields of k are ignored:
// every new key starts with InterceptUnknown.
func NewKey(id ID, eventTime time.Time, k Key, opts ...Option) *Entry {
	payload := k
	payload.InterceptResult = InterceptUnknown
	payload.InterceptWakeupTime = time.Time{}
	return newEntry(id, eventTime, &payload, opts)
}

// Recycle prepares a key entry for reuse as the next repeat. It resets the
// intercept verdict and per-delivery state. The caller must follow it with
// AdvanceRepeat.
func (e *Entry) Recycle() {
	k, ok := e.payload.(*Key)
	if !ok {
		invariant("Recycle", "entry %d is %s, not KEY", e.id, e.Type())
	}
	if n := e.RefCount(); n != 1 {
		invariant("Recycle", "entry %d is shared (refs=%d)", e.id, n)
	}
	e.dispatchInProgress = false
	k.InterceptResult = InterceptUnknown
	k.InterceptWakeupTime = time.Time{}
}

// AdvanceRepeat moves a recycled key entry to the next repeat tick: new ID,
// strictly later event time, new policy flags and repeat count plus one.
// The injection state of the entry is preserved.
func (e *Entry) AdvanceRepeat(id ID, eventTime time.Time, policyFlags PolicyFlags) {
	k, ok := e.payload.(*Key)
	if !ok {
		invariant("AdvanceRepeat", "entry %d is %s, not KEY", e.id, e.Type())
	}
	if !eventTime.After(e.eventTime) {
		invariant("AdvanceRepeat", "event time %v does not follow %v", eventTime, e.eventTime)
	}
	e.id = id
	e.eventTime = eventTime
	e.policyFlags = (policyFlags &^ PolicyFlagInjected) | (e.policyFlags & PolicyFlagInjected)
	k.RepeatCount++
	k.SyntheticRepeat = true
}

// SetInterceptResult records the policy verdict on a key entry. A wakeup
// time is only kept for InterceptTryAgainLater. Must be called with the
// dispatcher lock held.
func (e *Entry) SetInterceptResult(r InterceptResult, wakeup time.Time) {
	k, ok := e.payload.(*Key)
	if !ok {
		invariant("SetInterceptResult", "entry %d is %s, not KEY", e.id, e.Type())
	}
	k.InterceptResult = r
	if r == InterceptTryAgainLater {
		k.InterceptWakeupTime = wakeup
	} else {
		k.InterceptWakeupTime = time.Time{}
	}
}
