package input

import (
	"github.com/gdamore/tcell/v2"

	"github.com/dshills/inputdispatch/internal/event"
)

var runeKeyCodes = map[rune]event.KeyCode{
	' ': event.KeyCodeSpace,
	',': event.KeyCodeComma,
	'.': event.KeyCodePeriod,
	'-': event.KeyCodeMinus,
	'=': event.KeyCodeEquals,
	'/': event.KeyCodeSlash,
}

// convertKey maps a terminal key event to a key code and the meta state it
// implies. It reports false for keys without a key code.
func convertKey(ev *tcell.EventKey) (event.KeyCode, event.MetaState, bool) {
	meta := convertMod(ev.Modifiers())

	switch k := ev.Key(); k {
	case tcell.KeyRune:
		r := ev.Rune()
		if code, ok := event.KeyCodeForLetter(r); ok {
			if r >= 'A' && r <= 'Z' {
				meta = meta.With(event.MetaShiftOn)
			}
			return code, meta, true
		}
		if code, ok := event.KeyCodeForDigit(r); ok {
			return code, meta, true
		}
		code, ok := runeKeyCodes[r]
		return code, meta, ok
	case tcell.KeyEnter:
		return event.KeyCodeEnter, meta, true
	case tcell.KeyTab:
		return event.KeyCodeTab, meta, true
	case tcell.KeyBacktab:
		return event.KeyCodeTab, meta.With(event.MetaShiftOn), true
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		return event.KeyCodeDel, meta, true
	case tcell.KeyDelete:
		return event.KeyCodeForwardDel, meta, true
	case tcell.KeyEscape:
		return event.KeyCodeEscape, meta, true
	case tcell.KeyInsert:
		return event.KeyCodeInsert, meta, true
	case tcell.KeyHome:
		return event.KeyCodeMoveHome, meta, true
	case tcell.KeyEnd:
		return event.KeyCodeMoveEnd, meta, true
	case tcell.KeyPgUp:
		return event.KeyCodePageUp, meta, true
	case tcell.KeyPgDn:
		return event.KeyCodePageDown, meta, true
	case tcell.KeyUp:
		return event.KeyCodeDpadUp, meta, true
	case tcell.KeyDown:
		return event.KeyCodeDpadDown, meta, true
	case tcell.KeyLeft:
		return event.KeyCodeDpadLeft, meta, true
	case tcell.KeyRight:
		return event.KeyCodeDpadRight, meta, true
	default:
		switch {
		case k >= tcell.KeyF1 && k <= tcell.KeyF12:
			return event.KeyCodeF1 + event.KeyCode(k-tcell.KeyF1), meta, true
		case k >= tcell.KeyCtrlA && k <= tcell.KeyCtrlZ:
			return event.KeyCodeA + event.KeyCode(k-tcell.KeyCtrlA), meta.With(event.MetaCtrlOn), true
		}
		return event.KeyCodeUnknown, meta, false
	}
}

func convertMod(m tcell.ModMask) event.MetaState {
	meta := event.MetaNone
	if m&tcell.ModShift != 0 {
		meta = meta.With(event.MetaShiftOn)
	}
	if m&tcell.ModCtrl != 0 {
		meta = meta.With(event.MetaCtrlOn)
	}
	if m&tcell.ModAlt != 0 {
		meta = meta.With(event.MetaAltOn)
	}
	if m&tcell.ModMeta != 0 {
		meta = meta.With(event.MetaMetaOn)
	}
	return meta
}

// convertButtons maps tcell buttons to pressed buttons. Wheel bits are not
// buttons and are ignored.
func convertButtons(b tcell.ButtonMask) event.Buttons {
	var out event.Buttons
	if b&tcell.Button1 != 0 {
		out |= event.ButtonPrimary
	}
	if b&tcell.Button2 != 0 {
		out |= event.ButtonSecondary
	}
	if b&tcell.Button3 != 0 {
		out |= event.ButtonTertiary
	}
	if b&tcell.Button4 != 0 {
		out |= event.ButtonBack
	}
	if b&tcell.Button5 != 0 {
		out |= event.ButtonForward
	}
	return out
}

func isWheel(b tcell.ButtonMask) bool {
	return b&(tcell.WheelUp|tcell.WheelDown|tcell.WheelLeft|tcell.WheelRight) != 0
}
