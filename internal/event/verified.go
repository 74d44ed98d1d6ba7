package event

import (
	"fmt"
	"time"
)

// VerifiedKey is the subset of a key entry that can be signed and later
// verified by the dispatcher.
type VerifiedKey struct {
	DeviceID    int32
	EventTime   time.Time
	Source      InputSource
	DisplayID   int32
	Action      KeyAction
	DownTime    time.Time
	Flags       KeyFlags
	KeyCode     KeyCode
	ScanCode    int32
	MetaState   MetaState
	RepeatCount int32
}

// VerifiedMotion is the subset of a motion entry that can be signed and
// later verified by the dispatcher.
type VerifiedMotion struct {
	DeviceID     int32
	EventTime    time.Time
	Source       InputSource
	DisplayID    int32
	RawX         float32
	RawY         float32
	ActionMasked MotionAction
	DownTime     time.Time
	Flags        MotionFlags
	MetaState    MetaState
	ButtonState  Buttons
}

const (
	verifiedKeyFlags    = KeyFlagCanceled
	verifiedMotionFlags = MotionFlagWindowIsObscured | MotionFlagWindowIsPartiallyObscured
)

// VerifyKey extracts the verifiable fields of a key entry.
func VerifyKey(e *Entry) (VerifiedKey, error) {
	k, ok := e.Key()
	if !ok {
		return VerifiedKey{}, fmt.Errorf("verify key: %w: %s", ErrWrongType, e.Type())
	}
	return VerifiedKey{
		DeviceID:    k.DeviceID,
		EventTime:   e.eventTime,
		Source:      k.Source,
		DisplayID:   k.DisplayID,
		Action:      k.Action,
		DownTime:    k.DownTime,
		Flags:       k.Flags & verifiedKeyFlags,
		KeyCode:     k.KeyCode,
		ScanCode:    k.ScanCode,
		MetaState:   k.MetaState,
		RepeatCount: k.RepeatCount,
	}, nil
}

// VerifyMotion extracts the verifiable fields of a motion entry. The raw
// coordinates are those of the first pointer.
func VerifyMotion(e *Entry) (VerifiedMotion, error) {
	m, ok := e.Motion()
	if !ok {
		return VerifiedMotion{}, fmt.Errorf("verify motion: %w: %s", ErrWrongType, e.Type())
	}
	pos := m.Pointers[0].Coords.Position
	return VerifiedMotion{
		DeviceID:     m.DeviceID,
		EventTime:    e.eventTime,
		Source:       m.Source,
		DisplayID:    m.DisplayID,
		RawX:         pos.X,
		RawY:         pos.Y,
		ActionMasked: m.Action.Masked(),
		DownTime:     m.DownTime,
		Flags:        m.Flags & verifiedMotionFlags,
		MetaState:    m.MetaState,
		ButtonState:  m.ButtonState,
	}, nil
}
