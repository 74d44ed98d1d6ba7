package event

import (
	"errors"
	"testing"
	"time"
)

func TestNewKey_ResetsIntercept(t *testing.T) {
	e := NewKey(NewIDGenerator(OriginReader).Next(), baseTime, Key{
		KeyCode:             KeyCodeEnter,
		InterceptResult:     InterceptSkip,
		InterceptWakeupTime: baseTime.Add(time.Second),
	})

	k, _ := e.Key()
	if k.InterceptResult != InterceptUnknown {
		t.Errorf("InterceptResult = %v, want UNKNOWN", k.InterceptResult)
	}
	if !k.InterceptWakeupTime.IsZero() {
		t.Errorf("InterceptWakeupTime = %v, want zero", k.InterceptWakeupTime)
	}
}

func TestKey_RecycleForRepeat(t *testing.T) {
	reader := NewIDGenerator(OriginReader)
	dispatcher := NewIDGenerator(OriginDispatcher)

	e := newTestKey(reader.Next(), WithPolicyFlags(PolicyFlagTrusted|PolicyFlagPassToUser))
	e.SetInterceptResult(InterceptTryAgainLater, baseTime.Add(50*time.Millisecond))
	e.SetDispatchInProgress(true)

	before, _ := e.Key()
	prevTime := e.EventTime()
	prevID := e.ID()

	e.Recycle()
	k, _ := e.Key()
	if k.InterceptResult != InterceptUnknown {
		t.Errorf("InterceptResult after Recycle = %v, want UNKNOWN", k.InterceptResult)
	}
	if !k.InterceptWakeupTime.IsZero() {
		t.Error("InterceptWakeupTime should be cleared by Recycle")
	}
	if e.DispatchInProgress() {
		t.Error("DispatchInProgress should be cleared by Recycle")
	}

	next := prevTime.Add(50 * time.Millisecond)
	e.AdvanceRepeat(dispatcher.Next(), next, PolicyFlagTrusted)
	k, _ = e.Key()

	if e.ID() == prevID {
		t.Error("ID should change on AdvanceRepeat")
	}
	if !e.EventTime().After(prevTime) {
		t.Errorf("EventTime %v should follow %v", e.EventTime(), prevTime)
	}
	if k.RepeatCount != before.RepeatCount+1 {
		t.Errorf("RepeatCount = %d, want %d", k.RepeatCount, before.RepeatCount+1)
	}
	if !k.SyntheticRepeat {
		t.Error("expected SyntheticRepeat")
	}
	if k.DeviceID != before.DeviceID || k.Source != before.Source || k.DisplayID != before.DisplayID {
		t.Errorf("device/source/display changed: %+v -> %+v", before, k)
	}
	if k.KeyCode != before.KeyCode || k.DownTime != before.DownTime {
		t.Error("key code and down time must survive recycling")
	}
	if !e.IsSynthesized() {
		t.Error("repeat with dispatcher id should be synthesized")
	}
	if e.PolicyFlags() != PolicyFlagTrusted {
		t.Errorf("PolicyFlags = %#x, want trusted only", e.PolicyFlags())
	}
}

func TestKey_RecycledMatchesFreshRepeat(t *testing.T) {
	dispatcher := NewIDGenerator(OriginDispatcher)
	e := newTestKey(NewIDGenerator(OriginReader).Next())
	e.SetInterceptResult(InterceptContinue, time.Time{})

	e.Recycle()
	id := dispatcher.Next()
	when := baseTime.Add(time.Second)
	e.AdvanceRepeat(id, when, 0)

	freshPayload := Key{
		DeviceID:        3,
		Source:          InputSourceKeyboard,
		Action:          KeyActionDown,
		KeyCode:         KeyCodeA,
		ScanCode:        30,
		DownTime:        baseTime,
		RepeatCount:     1,
		SyntheticRepeat: true,
	}
	fresh := NewKey(id, when, freshPayload)
	fk, _ := fresh.Key()
	k, _ := e.Key()

	if k != fk {
		t.Errorf("recycled payload %+v differs from fresh %+v", k, fk)
	}
	if e.ID() != fresh.ID() || !e.EventTime().Equal(fresh.EventTime()) || e.PolicyFlags() != fresh.PolicyFlags() {
		t.Error("recycled header differs from fresh repeat")
	}
}

func TestKey_RecycleKeepsInjection(t *testing.T) {
	state := NewInjectionState(1, 1, InjectionWaitNone)
	e := newTestKey(NewIDGenerator(OriginOther).Next(), WithInjection(state))

	e.Recycle()
	e.AdvanceRepeat(NewIDGenerator(OriginDispatcher).Next(), baseTime.Add(time.Millisecond), 0)

	if !e.IsInjected() || !e.PolicyFlags().Has(PolicyFlagInjected) {
		t.Error("recycled injected entry must stay injected")
	}
}

func TestKey_RecycleInvariants(t *testing.T) {
	expectInvariant := func(t *testing.T, fn func()) {
		t.Helper()
		defer func() {
			r := recover()
			err, ok := r.(error)
			if !ok || !errors.Is(err, ErrInvariant) {
				t.Errorf("expected invariant panic, got %v", r)
			}
		}()
		fn()
	}

	t.Run("shared entry", func(t *testing.T) {
		e := newTestKey(1)
		e.Acquire()
		expectInvariant(t, e.Recycle)
	})

	t.Run("not a key", func(t *testing.T) {
		e := NewDeviceReset(1, baseTime, 1)
		expectInvariant(t, e.Recycle)
	})

	t.Run("time does not advance", func(t *testing.T) {
		e := newTestKey(1)
		e.Recycle()
		expectInvariant(t, func() { e.AdvanceRepeat(2, baseTime, 0) })
	})
}

func TestEntry_SetInterceptResult(t *testing.T) {
	e := newTestKey(1)
	wake := baseTime.Add(time.Second)

	e.SetInterceptResult(InterceptTryAgainLater, wake)
	if k, _ := e.Key(); k.InterceptResult != InterceptTryAgainLater || !k.InterceptWakeupTime.Equal(wake) {
		t.Errorf("after TRY_AGAIN_LATER: %v at %v", k.InterceptResult, k.InterceptWakeupTime)
	}

	e.SetInterceptResult(InterceptContinue, wake)
	if k, _ := e.Key(); !k.InterceptWakeupTime.IsZero() {
		t.Error("wakeup time only applies to TRY_AGAIN_LATER")
	}

	defer func() {
		if err, ok := recover().(error); !ok || !errors.Is(err, ErrInvariant) {
			t.Errorf("SetInterceptResult on a non-key entry did not panic with an invariant error")
		}
	}()
	NewDeviceReset(2, baseTime, 1).SetInterceptResult(InterceptSkip, time.Time{})
}

func TestEntry_PayloadIsACopy(t *testing.T) {
	e := newTestKey(1)
	k, _ := e.Key()
	k.KeyCode = KeyCodeEscape
	k.InterceptResult = InterceptSkip
	if p, ok := e.Payload().(*Key); ok {
		p.RepeatCount = 9
	}

	got, _ := e.Key()
	if got.KeyCode != KeyCodeA || got.InterceptResult != InterceptUnknown || got.RepeatCount != 0 {
		t.Errorf("entry changed through a returned payload: %+v", got)
	}

	m := newTestMotion(t, 2)
	before, _ := m.Motion()
	mp, _ := m.Motion()
	mp.Pointers[0].Coords.Position.X += 100
	if again, _ := m.Motion(); again.Pointers[0].Coords.Position != before.Pointers[0].Coords.Position {
		t.Error("motion pointers are shared with the entry")
	}
}

func TestMetaState(t *testing.T) {
	m := MetaNone.With(MetaCtrlOn).With(MetaShiftOn)
	if !m.Has(MetaCtrlOn) || !m.Has(MetaShiftOn) {
		t.Error("expected ctrl and shift")
	}
	if m.String() != "Ctrl+Shift" {
		t.Errorf("String() = %q", m.String())
	}
	m = m.Without(MetaCtrlOn)
	if m.Has(MetaCtrlOn) {
		t.Error("ctrl should be removed")
	}
	if MetaNone.String() != "none" {
		t.Errorf("MetaNone.String() = %q", MetaNone.String())
	}
}

func TestKeyCode(t *testing.T) {
	tests := []struct {
		code     KeyCode
		expected string
	}{
		{KeyCodeA, "A"},
		{KeyCodeZ, "Z"},
		{KeyCode0 + 5, "5"},
		{KeyCodeF1 + 2, "F3"},
		{KeyCodeEnter, "ENTER"},
		{KeyCode(999), "999"},
	}
	for _, tt := range tests {
		if got := tt.code.String(); got != tt.expected {
			t.Errorf("KeyCode(%d).String() = %q, want %q", tt.code, got, tt.expected)
		}
	}

	if c, ok := KeyCodeForLetter('q'); !ok || c.String() != "Q" {
		t.Errorf("KeyCodeForLetter('q') = %v, %v", c, ok)
	}
	if _, ok := KeyCodeForLetter('1'); ok {
		t.Error("digit is not a letter")
	}
	if c, ok := KeyCodeForDigit('7'); !ok || c.String() != "7" {
		t.Errorf("KeyCodeForDigit('7') = %v, %v", c, ok)
	}
	if !KeyCodeHome.IsSystemKey() || KeyCodeA.IsSystemKey() {
		t.Error("IsSystemKey mismatch")
	}
}

func TestInterceptResult_String(t *testing.T) {
	tests := map[InterceptResult]string{
		InterceptUnknown:       "UNKNOWN",
		InterceptSkip:          "SKIP",
		InterceptContinue:      "CONTINUE",
		InterceptTryAgainLater: "TRY_AGAIN_LATER",
	}
	for r, want := range tests {
		if r.String() != want {
			t.Errorf("%d.String() = %q, want %q", r, r.String(), want)
		}
	}
}
