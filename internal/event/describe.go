package event

import (
	"fmt"
	"strings"
)

// Description returns a human-readable, type-specific summary of the entry
// for logs and dumps.
func (e *Entry) Description() string {
	var body string
	switch p := e.payload.(type) {
	case *ConfigurationChanged:
		body = "ConfigurationChangedEvent()"
	case *DeviceReset:
		body = fmt.Sprintf("DeviceResetEvent(deviceId=%d)", p.DeviceID)
	case *Focus:
		body = fmt.Sprintf("FocusEvent(token=%s, hasFocus=%t, reason=%q)", p.Token, p.HasFocus, p.Reason)
	case *Key:
		body = describeKey(e, p)
	case *Motion:
		body = describeMotion(e, p)
	default:
		body = fmt.Sprintf("UnknownEvent(%T)", p)
	}
	return fmt.Sprintf("%s, id=%#08x, policyFlags=%#08x", body, uint32(e.id), uint32(e.policyFlags))
}

func describeKey(e *Entry, k *Key) string {
	return fmt.Sprintf("KeyEvent(deviceId=%d, eventTime=%d, source=%#08x, displayId=%d, action=%s, "+
		"flags=%#08x, keyCode=%s(%d), scanCode=%d, metaState=%#08x, repeatCount=%d, intercept=%s)",
		k.DeviceID, e.eventTime.UnixNano(), uint32(k.Source), k.DisplayID, k.Action,
		int32(k.Flags), k.KeyCode, int32(k.KeyCode), k.ScanCode, int32(k.MetaState), k.RepeatCount,
		k.InterceptResult)
}

func describeMotion(e *Entry, m *Motion) string {
	var b strings.Builder
	fmt.Fprintf(&b, "MotionEvent(deviceId=%d, eventTime=%d, source=%#08x, displayId=%d, action=%s, "+
		"actionButton=%#08x, flags=%#08x, metaState=%#08x, buttonState=%#08x, classification=%s, "+
		"edgeFlags=%#08x, xPrecision=%.1f, yPrecision=%.1f, xCursorPosition=%.1f, yCursorPosition=%.1f, pointers=[",
		m.DeviceID, e.eventTime.UnixNano(), uint32(m.Source), m.DisplayID, m.Action,
		int32(m.ActionButton), int32(m.Flags), int32(m.MetaState), int32(m.ButtonState), m.Classification,
		m.EdgeFlags, m.XPrecision, m.YPrecision, m.Cursor.X, m.Cursor.Y)
	for i, p := range m.Pointers {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%d: (%.1f, %.1f)", p.Properties.ID, p.Coords.Position.X, p.Coords.Position.Y)
	}
	b.WriteString("])")
	return b.String()
}
