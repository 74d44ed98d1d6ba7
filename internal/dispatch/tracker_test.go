package dispatch

import (
	"testing"
	"time"
)

func TestTracker_DuplicateLiveSeq(t *testing.T) {
	seqs := NewSequencerAt(41)
	tr := NewTracker()

	e := New(newKeyEvent(), TargetForeground, WithSequencer(seqs))
	tr.Add(e)

	clash := New(newKeyEvent(), TargetForeground, WithSequencer(NewSequencerAt(41)))
	expectInvariant(t, func() { tr.Add(clash) })

	tr.Remove(e.Seq())
	tr.Add(clash)
	if got, ok := tr.Get(42); !ok || got != clash {
		t.Error("sequence can be reused once the previous holder is gone")
	}
}

func TestTracker_Expired(t *testing.T) {
	tr := NewTracker()
	var entries []*Entry
	for i, budget := range []time.Duration{3 * time.Second, time.Second, 2 * time.Second} {
		e := New(newKeyEvent(), 0)
		tr.Add(e)
		e.MarkSent(t0.Add(time.Duration(i)*time.Millisecond), budget)
		tr.Armed(e)
		entries = append(entries, e)
	}

	next, ok := tr.NextTimeout()
	if !ok || !next.Equal(entries[1].TimeoutTime()) {
		t.Errorf("NextTimeout() = %v, %v", next, ok)
	}

	if got := tr.Expired(t0.Add(500 * time.Millisecond)); len(got) != 0 {
		t.Errorf("Expired() early = %d entries", len(got))
	}

	got := tr.Expired(t0.Add(10 * time.Second))
	if len(got) != 3 {
		t.Fatalf("Expired() = %d entries, want 3", len(got))
	}
	if got[0] != entries[1] || got[1] != entries[2] || got[2] != entries[0] {
		t.Error("Expired() not in timeout order")
	}
	if _, ok := tr.NextTimeout(); ok {
		t.Error("no timeouts should remain armed")
	}
	if tr.Len() != 3 {
		t.Errorf("Expired must not untrack entries, Len() = %d", tr.Len())
	}
}

func TestTracker_StaleItems(t *testing.T) {
	tr := NewTracker()

	acked := New(newKeyEvent(), 0)
	tr.Add(acked)
	acked.MarkSent(t0, time.Second)
	tr.Armed(acked)

	rearmed := New(newKeyEvent(), 0)
	tr.Add(rearmed)
	rearmed.MarkSent(t0, time.Second)
	tr.Armed(rearmed)

	acked.Acknowledge()
	tr.Remove(acked.Seq())

	deadline := t0.Add(time.Second)
	got := tr.Expired(deadline)
	if len(got) != 1 || got[0] != rearmed {
		t.Fatalf("Expired() = %v", got)
	}
	rearmed.MarkTimedOut(deadline)
	rearmed.ReArm(deadline, 5*time.Second)
	tr.Armed(rearmed)

	if got := tr.Expired(deadline.Add(time.Second)); len(got) != 0 {
		t.Errorf("re-armed entry expired early: %v", got)
	}
	next, ok := tr.NextTimeout()
	if !ok || !next.Equal(deadline.Add(5*time.Second)) {
		t.Errorf("NextTimeout() = %v, %v", next, ok)
	}
}

func TestTracker_AddSentArms(t *testing.T) {
	tr := NewTracker()
	e := New(newKeyEvent(), TargetForeground)
	e.MarkSent(t0, time.Second)
	tr.Add(e)

	if next, ok := tr.NextTimeout(); !ok || !next.Equal(t0.Add(time.Second)) {
		t.Errorf("NextTimeout() = %v, %v", next, ok)
	}

	count := 0
	tr.Each(func(*Entry) { count++ })
	if count != 1 {
		t.Errorf("Each visited %d entries", count)
	}
}

func TestTracker_AddTerminal(t *testing.T) {
	tr := NewTracker()
	e := New(newKeyEvent(), 0)
	e.Drop()
	expectInvariant(t, func() { tr.Add(e) })
}
