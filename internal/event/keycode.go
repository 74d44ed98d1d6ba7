package event

import "fmt"

// KeyCode identifies a logical key.
type KeyCode int32

const (
	KeyCodeUnknown    KeyCode = 0
	KeyCodeHome       KeyCode = 3
	KeyCodeBack       KeyCode = 4
	KeyCode0          KeyCode = 7
	KeyCode9          KeyCode = 16
	KeyCodeDpadUp     KeyCode = 19
	KeyCodeDpadDown   KeyCode = 20
	KeyCodeDpadLeft   KeyCode = 21
	KeyCodeDpadRight  KeyCode = 22
	KeyCodeVolumeUp   KeyCode = 24
	KeyCodeVolumeDown KeyCode = 25
	KeyCodePower      KeyCode = 26
	KeyCodeA          KeyCode = 29
	KeyCodeZ          KeyCode = 54
	KeyCodeComma      KeyCode = 55
	KeyCodePeriod     KeyCode = 56
	KeyCodeTab        KeyCode = 61
	KeyCodeSpace      KeyCode = 62
	KeyCodeEnter      KeyCode = 66
	KeyCodeDel        KeyCode = 67
	KeyCodeMinus      KeyCode = 69
	KeyCodeEquals     KeyCode = 70
	KeyCodeSlash      KeyCode = 76
	KeyCodePageUp     KeyCode = 92
	KeyCodePageDown   KeyCode = 93
	KeyCodeEscape     KeyCode = 111
	KeyCodeForwardDel KeyCode = 112
	KeyCodeMoveHome   KeyCode = 122
	KeyCodeMoveEnd    KeyCode = 123
	KeyCodeInsert     KeyCode = 124
	KeyCodeF1         KeyCode = 131
	KeyCodeF12        KeyCode = 142
	KeyCodeAppSwitch  KeyCode = 187
)

var keyCodeNames = map[KeyCode]string{
	KeyCodeUnknown:    "UNKNOWN",
	KeyCodeHome:       "HOME",
	KeyCodeBack:       "BACK",
	KeyCodeDpadUp:     "DPAD_UP",
	KeyCodeDpadDown:   "DPAD_DOWN",
	KeyCodeDpadLeft:   "DPAD_LEFT",
	KeyCodeDpadRight:  "DPAD_RIGHT",
	KeyCodeVolumeUp:   "VOLUME_UP",
	KeyCodeVolumeDown: "VOLUME_DOWN",
	KeyCodePower:      "POWER",
	KeyCodeComma:      "COMMA",
	KeyCodePeriod:     "PERIOD",
	KeyCodeTab:        "TAB",
	KeyCodeSpace:      "SPACE",
	KeyCodeEnter:      "ENTER",
	KeyCodeDel:        "DEL",
	KeyCodeMinus:      "MINUS",
	KeyCodeEquals:     "EQUALS",
	KeyCodeSlash:      "SLASH",
	KeyCodePageUp:     "PAGE_UP",
	KeyCodePageDown:   "PAGE_DOWN",
	KeyCodeEscape:     "ESCAPE",
	KeyCodeForwardDel: "FORWARD_DEL",
	KeyCodeMoveHome:   "MOVE_HOME",
	KeyCodeMoveEnd:    "MOVE_END",
	KeyCodeInsert:     "INSERT",
	KeyCodeAppSwitch:  "APP_SWITCH",
}

// KeyCodeForLetter returns the key code of an ASCII letter, case-insensitive.
func KeyCodeForLetter(r rune) (KeyCode, bool) {
	switch {
	case r >= 'a' && r <= 'z':
		return KeyCodeA + KeyCode(r-'a'), true
	case r >= 'A' && r <= 'Z':
		return KeyCodeA + KeyCode(r-'A'), true
	default:
		return KeyCodeUnknown, false
	}
}

// KeyCodeForDigit returns the key code of an ASCII digit.
func KeyCodeForDigit(r rune) (KeyCode, bool) {
	if r >= '0' && r <= '9' {
		return KeyCode0 + KeyCode(r-'0'), true
	}
	return KeyCodeUnknown, false
}

// IsSystemKey reports whether the key is handled by the system before
// applications see it.
func (k KeyCode) IsSystemKey() bool {
	switch k {
	case KeyCodeHome, KeyCodePower, KeyCodeAppSwitch, KeyCodeVolumeUp, KeyCodeVolumeDown:
		return true
	default:
		return false
	}
}

// String returns the key name.
func (k KeyCode) String() string {
	if name, ok := keyCodeNames[k]; ok {
		return name
	}
	switch {
	case k >= KeyCodeA && k <= KeyCodeZ:
		return string(rune('A' + (k - KeyCodeA)))
	case k >= KeyCode0 && k <= KeyCode9:
		return string(rune('0' + (k - KeyCode0)))
	case k >= KeyCodeF1 && k <= KeyCodeF12:
		return fmt.Sprintf("F%d", k-KeyCodeF1+1)
	default:
		return fmt.Sprintf("%d", int32(k))
	}
}
