package event

import (
	"sync/atomic"
	"time"
)

// Type is the kind of occurrence an entry describes.
type Type int

const (
	// TypeConfigurationChanged signals a change of input configuration.
	TypeConfigurationChanged Type = iota

	// TypeDeviceReset signals that a device has been reset.
	TypeDeviceReset

	// TypeFocus signals that a connection gained or lost focus.
	TypeFocus

	// TypeKey is a key press, release or repeat.
	TypeKey

	// TypeMotion is a pointer movement or button change.
	TypeMotion
)

// String returns the canonical type name.
func (t Type) String() string {
	switch t {
	case TypeConfigurationChanged:
		return "CONFIGURATION_CHANGED"
	case TypeDeviceReset:
		return "DEVICE_RESET"
	case TypeFocus:
		return "FOCUS"
	case TypeKey:
		return "KEY"
	case TypeMotion:
		return "MOTION"
	default:
		return "UNKNOWN"
	}
}

// PolicyFlags carry policy decisions attached to an entry.
type PolicyFlags uint32

const (
	// PolicyFlagWake indicates the event should wake the device.
	PolicyFlagWake PolicyFlags = 0x00000001

	// PolicyFlagVirtual marks events from virtual (soft) keys.
	PolicyFlagVirtual PolicyFlags = 0x00000002

	// PolicyFlagFunction marks keys pressed together with the function modifier.
	PolicyFlagFunction PolicyFlags = 0x00000004

	// PolicyFlagGesture marks events produced by gesture detection.
	PolicyFlagGesture PolicyFlags = 0x00000008

	// PolicyFlagDisableKeyRepeat suppresses key repeat for the entry.
	PolicyFlagDisableKeyRepeat PolicyFlags = 0x08000000

	// PolicyFlagInjected marks entries submitted through injection.
	PolicyFlagInjected PolicyFlags = 0x01000000

	// PolicyFlagTrusted marks entries from a trusted source.
	PolicyFlagTrusted PolicyFlags = 0x02000000

	// PolicyFlagFiltered marks entries already seen by the input filter.
	PolicyFlagFiltered PolicyFlags = 0x04000000

	// PolicyFlagWoke marks entries that woke the device.
	PolicyFlagWoke PolicyFlags = 0x10000000

	// PolicyFlagPassToUser allows delivery to applications.
	PolicyFlagPassToUser PolicyFlags = 0x40000000
)

// Has reports whether all bits in flag are set.
func (f PolicyFlags) Has(flag PolicyFlags) bool {
	return f&flag == flag
}

// Payload is the occurrence-specific part of an entry. The set of
// implementations is closed: *ConfigurationChanged, *DeviceReset, *Focus,
// *Key and *Motion.
type Payload interface {
	// Type returns the entry type the payload belongs to.
	Type() Type

	// clone returns a deep copy of the payload.
	clone() Payload
}

// Entry is one occurrence flowing through the dispatcher.
type Entry struct {
	id          ID
	eventTime   time.Time
	policyFlags PolicyFlags
	injection   *InjectionState
	payload     Payload

	// Owned by the dispatcher and only touched under its lock.
	dispatchInProgress bool

	refs atomic.Int32
}

// Option configures an entry at construction.
type Option func(*Entry)

// WithPolicyFlags sets the policy flags of the entry.
// PolicyFlagInjected is controlled by WithInjection and ignored here.
func WithPolicyFlags(flags PolicyFlags) Option {
	return func(e *Entry) {
		e.policyFlags = (flags &^ PolicyFlagInjected) | (e.policyFlags & PolicyFlagInjected)
	}
}

// WithInjection marks the entry as injected with the given state.
// A nil state leaves the entry uninjected.
func WithInjection(state *InjectionState) Option {
	return func(e *Entry) {
		if state == nil {
			return
		}
		e.injection = state
		e.policyFlags |= PolicyFlagInjected
	}
}

func newEntry(id ID, eventTime time.Time, payload Payload, opts []Option) *Entry {
	e := &Entry{
		id:        id,
		eventTime: eventTime,
		payload:   payload,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.refs.Store(1)
	return e
}

// ID returns the entry ID.
func (e *Entry) ID() ID {
	return e.id
}

// Type returns the entry type.
func (e *Entry) Type() Type {
	return e.payload.Type()
}

// EventTime returns when the occurrence happened.
func (e *Entry) EventTime() time.Time {
	return e.eventTime
}

// PolicyFlags returns the policy flags.
func (e *Entry) PolicyFlags() PolicyFlags {
	return e.policyFlags
}

// Payload returns a copy of the type-specific payload. Changing the copy
// does not change the entry.
func (e *Entry) Payload() Payload {
	return e.payload.clone()
}

// Injection returns the injection state, or nil if the entry was not injected.
func (e *Entry) Injection() *InjectionState {
	return e.injection
}

// IsInjected reports whether the entry was submitted through injection.
func (e *Entry) IsInjected() bool {
	return e.injection != nil
}

// IsSynthesized reports whether the entry is not directly attributable to
// one hardware occurrence.
func (e *Entry) IsSynthesized() bool {
	return e.IsSynthesizedBy(DefaultOriginResolver)
}

// IsSynthesizedBy is IsSynthesized with an explicit origin resolver.
func (e *Entry) IsSynthesizedBy(r OriginResolver) bool {
	return e.IsInjected() || r.Origin(e.id) != OriginReader
}

// DispatchInProgress reports whether the dispatcher has started on this entry.
func (e *Entry) DispatchInProgress() bool {
	return e.dispatchInProgress
}

// SetDispatchInProgress marks the entry as being dispatched.
// Must be called with the dispatcher lock held.
func (e *Entry) SetDispatchInProgress(v bool) {
	e.dispatchInProgress = v
}

// Key returns a copy of the key payload.
func (e *Entry) Key() (Key, bool) {
	k, ok := e.payload.(*Key)
	if !ok {
		return Key{}, false
	}
	return *k, true
}

// Motion returns a copy of the motion payload.
func (e *Entry) Motion() (Motion, bool) {
	m, ok := e.payload.(*Motion)
	if !ok {
		return Motion{}, false
	}
	return *m.clone().(*Motion), true
}

// Focus returns a copy of the focus payload.
func (e *Entry) Focus() (Focus, bool) {
	f, ok := e.payload.(*Focus)
	if !ok {
		return Focus{}, false
	}
	return *f, true
}

// DeviceReset returns a copy of the device reset payload.
func (e *Entry) DeviceReset() (DeviceReset, bool) {
	d, ok := e.payload.(*DeviceReset)
	if !ok {
		return DeviceReset{}, false
	}
	return *d, true
}

// Acquire adds a reference and returns e for chaining.
func (e *Entry) Acquire() *Entry {
	if e.refs.Add(1) <= 1 {
		invariant("Acquire", "entry %d acquired after its last release", e.id)
	}
	return e
}

// Release drops a reference. Dropping the last one releases the injection
// state, which fails any injection that never reached a final result.
func (e *Entry) Release() {
	n := e.refs.Add(-1)
	switch {
	case n == 0:
		if e.injection != nil {
			e.injection.Release()
		}
	case n < 0:
		invariant("Release", "entry %d released more times than acquired", e.id)
	}
}

// RefCount returns the current number of references.
func (e *Entry) RefCount() int {
	return int(e.refs.Load())
}

// String returns the entry description.
func (e *Entry) String() string {
	return e.Description()
}

// ConfigurationChanged is the payload of TypeConfigurationChanged entries.
type ConfigurationChanged struct{}

// Type implements Payload.
func (*ConfigurationChanged) Type() Type { return TypeConfigurationChanged }

func (*ConfigurationChanged) clone() Payload { return &ConfigurationChanged{} }

// DeviceReset is the payload of TypeDeviceReset entries.
type DeviceReset struct {
	// DeviceID is the device that was reset.
	DeviceID int32
}

// Type implements Payload.
func (*DeviceReset) Type() Type { return TypeDeviceReset }

func (d *DeviceReset) clone() Payload {
	c := *d
	return &c
}

// Focus is the payload of TypeFocus entries.
type Focus struct {
	// Token identifies the connection whose focus changed.
	Token Token

	// HasFocus is true when focus was gained.
	HasFocus bool

	// Reason explains the change, for diagnostics.
	Reason string
}

// Type implements Payload.
func (*Focus) Type() Type { return TypeFocus }

func (f *Focus) clone() Payload {
	c := *f
	return &c
}

// NewConfigurationChanged creates a configuration changed entry.
func NewConfigurationChanged(id ID, eventTime time.Time, opts ...Option) *Entry {
	return newEntry(id, eventTime, &ConfigurationChanged{}, opts)
}

// NewDeviceReset creates a device reset entry.
func NewDeviceReset(id ID, eventTime time.Time, deviceID int32, opts ...Option) *Entry {
	return newEntry(id, eventTime, &DeviceReset{DeviceID: deviceID}, opts)
}

// NewFocus creates a focus entry for the connection identified by token.
func NewFocus(id ID, eventTime time.Time, token Token, hasFocus bool, reason string, opts ...Option) *Entry {
	return newEntry(id, eventTime, &Focus{Token: token, HasFocus: hasFocus, Reason: reason}, opts)
}
