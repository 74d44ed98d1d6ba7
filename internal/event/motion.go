package event

import (
	"fmt"
	"time"

	"gioui.org/f32"
)

// MaxPointers is the maximum number of pointers in a motion entry.
const MaxPointers = 16

// MotionAction is the action of a motion entry. The low byte holds the
// masked action; for pointer down/up the next byte holds the pointer index.
type MotionAction int32

const (
	MotionActionDown          MotionAction = 0
	MotionActionUp            MotionAction = 1
	MotionActionMove          MotionAction = 2
	MotionActionCancel        MotionAction = 3
	MotionActionOutside       MotionAction = 4
	MotionActionPointerDown   MotionAction = 5
	MotionActionPointerUp     MotionAction = 6
	MotionActionHoverMove     MotionAction = 7
	MotionActionScroll        MotionAction = 8
	MotionActionHoverEnter    MotionAction = 9
	MotionActionHoverExit     MotionAction = 10
	MotionActionButtonPress   MotionAction = 11
	MotionActionButtonRelease MotionAction = 12

	motionActionMask        MotionAction = 0xff
	motionPointerIndexMask  MotionAction = 0xff00
	motionPointerIndexShift              = 8
)

// PointerAction builds a pointer down/up action for the given pointer index.
func PointerAction(masked MotionAction, index int) MotionAction {
	return masked | MotionAction(index<<motionPointerIndexShift)
}

// Masked returns the action without the pointer index.
func (a MotionAction) Masked() MotionAction {
	return a & motionActionMask
}

// PointerIndex returns the pointer index of a pointer down/up action.
func (a MotionAction) PointerIndex() int {
	return int((a & motionPointerIndexMask) >> motionPointerIndexShift)
}

// String returns the action name.
func (a MotionAction) String() string {
	switch a.Masked() {
	case MotionActionDown:
		return "DOWN"
	case MotionActionUp:
		return "UP"
	case MotionActionMove:
		return "MOVE"
	case MotionActionCancel:
		return "CANCEL"
	case MotionActionOutside:
		return "OUTSIDE"
	case MotionActionPointerDown:
		return fmt.Sprintf("POINTER_DOWN(%d)", a.PointerIndex())
	case MotionActionPointerUp:
		return fmt.Sprintf("POINTER_UP(%d)", a.PointerIndex())
	case MotionActionHoverMove:
		return "HOVER_MOVE"
	case MotionActionScroll:
		return "SCROLL"
	case MotionActionHoverEnter:
		return "HOVER_ENTER"
	case MotionActionHoverExit:
		return "HOVER_EXIT"
	case MotionActionButtonPress:
		return "BUTTON_PRESS"
	case MotionActionButtonRelease:
		return "BUTTON_RELEASE"
	default:
		return fmt.Sprintf("%d", int32(a))
	}
}

// MotionFlags are per-motion event flags.
type MotionFlags int32

const (
	MotionFlagWindowIsObscured          MotionFlags = 0x1
	MotionFlagWindowIsPartiallyObscured MotionFlags = 0x2
	MotionFlagTainted                   MotionFlags = -0x80000000
)

// Buttons is a set of pressed buttons.
type Buttons int32

const (
	ButtonPrimary         Buttons = 1 << 0
	ButtonSecondary       Buttons = 1 << 1
	ButtonTertiary        Buttons = 1 << 2
	ButtonBack            Buttons = 1 << 3
	ButtonForward         Buttons = 1 << 4
	ButtonStylusPrimary   Buttons = 1 << 5
	ButtonStylusSecondary Buttons = 1 << 6
)

// Classification describes the gesture a motion belongs to.
type Classification uint8

const (
	ClassificationNone Classification = iota
	ClassificationAmbiguousGesture
	ClassificationDeepPress
)

// String returns the classification name.
func (c Classification) String() string {
	switch c {
	case ClassificationNone:
		return "NONE"
	case ClassificationAmbiguousGesture:
		return "AMBIGUOUS_GESTURE"
	case ClassificationDeepPress:
		return "DEEP_PRESS"
	default:
		return "INVALID"
	}
}

// ToolType is the kind of tool that produced a pointer.
type ToolType int32

const (
	ToolTypeUnknown ToolType = iota
	ToolTypeFinger
	ToolTypeStylus
	ToolTypeMouse
	ToolTypeEraser
	ToolTypePalm
)

// PointerProperties describe a pointer independent of its position.
type PointerProperties struct {
	ID       int32
	ToolType ToolType
}

// PointerCoords are the per-sample values of a pointer.
type PointerCoords struct {
	Position    f32.Point
	Pressure    float32
	Size        float32
	TouchMajor  float32
	TouchMinor  float32
	Orientation float32
}

// Pointer is one pointer of a motion entry.
type Pointer struct {
	Properties PointerProperties
	Coords     PointerCoords
}

// Motion is the payload of TypeMotion entries.
type Motion struct {
	DeviceID       int32
	Source         InputSource
	DisplayID      int32
	Action         MotionAction
	ActionButton   Buttons
	Flags          MotionFlags
	MetaState      MetaState
	ButtonState    Buttons
	Classification Classification
	EdgeFlags      int32
	XPrecision     float32
	YPrecision     float32
	Cursor         f32.Point
	DownTime       time.Time

	// Pointers in order; between 1 and MaxPointers.
	Pointers []Pointer
}

// Type implements Payload.
func (*Motion) Type() Type { return TypeMotion }

func (m *Motion) clone() Payload {
	c := *m
	c.Pointers = append([]Pointer(nil), m.Pointers...)
	return &c
}

// PointerCount returns the number of pointers.
func (m *Motion) PointerCount() int {
	return len(m.Pointers)
}

// PointerIndex returns the index of the pointer with the given id, or -1.
func (m *Motion) PointerIndex(id int32) int {
	for i, p := range m.Pointers {
		if p.Properties.ID == id {
			return i
		}
	}
	return -1
}

// NewMotion creates a motion entry from m. The pointer slice is copied and
// offset is added to every pointer position. It fails when the pointer count
// is outside [1, MaxPointers] or pointer ids repeat.
func NewMotion(id ID, eventTime time.Time, m Motion, offset f32.Point, opts ...Option) (*Entry, error) {
	n := len(m.Pointers)
	if n == 0 {
		return nil, ErrNoPointers
	}
	if n > MaxPointers {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyPointers, n, MaxPointers)
	}

	payload := m
	payload.Pointers = make([]Pointer, n)
	var seen [MaxPointers]int32
	for i, p := range m.Pointers {
		for j := 0; j < i; j++ {
			if seen[j] == p.Properties.ID {
				return nil, fmt.Errorf("%w: %d", ErrDuplicatePointerID, p.Properties.ID)
			}
		}
		seen[i] = p.Properties.ID
		p.Coords.Position = p.Coords.Position.Add(offset)
		payload.Pointers[i] = p
	}

	return newEntry(id, eventTime, &payload, opts), nil
}
