package dispatcher

import (
	"time"

	"github.com/dshills/inputdispatch/internal/event"
)

// keyRepeatState tracks the key being repeated. last holds one reference.
type keyRepeatState struct {
	last *event.Entry
	next time.Time
}

func (s *keyRepeatState) due(now time.Time) bool {
	return s.last != nil && !now.Before(s.next)
}

func (s *keyRepeatState) wakeup() time.Time {
	if s.last == nil {
		return time.Time{}
	}
	return s.next
}

// trackKeyRepeatLocked starts repeating a fresh trusted key down and stops
// repeating on any other key that is not one of our own repeats.
func (d *Dispatcher) trackKeyRepeatLocked(e *event.Entry, k *event.Key) {
	if k.Action == event.KeyActionDown && k.RepeatCount == 0 && !k.SyntheticRepeat {
		d.resetKeyRepeatLocked()
		flags := e.PolicyFlags()
		if d.config.KeyRepeat.Enabled && flags.Has(event.PolicyFlagTrusted) &&
			!flags.Has(event.PolicyFlagDisableKeyRepeat) && !e.IsInjected() {
			d.repeat.last = e.Acquire()
			d.repeat.next = e.EventTime().Add(d.config.KeyRepeat.Delay)
		}
		return
	}
	if !k.SyntheticRepeat {
		d.resetKeyRepeatLocked()
	}
}

func (d *Dispatcher) resetKeyRepeatLocked() {
	if d.repeat.last != nil {
		d.repeat.last.Release()
	}
	d.repeat = keyRepeatState{}
}

func (d *Dispatcher) repeatingKey() (event.Key, bool) {
	if d.repeat.last == nil {
		return event.Key{}, false
	}
	return d.repeat.last.Key()
}

// synthesizeKeyRepeatLocked produces the next repeat of the tracked key and
// returns it holding a reference for the pending slot. The tracked entry is
// reused when nothing else still refers to it.
func (d *Dispatcher) synthesizeKeyRepeatLocked(now time.Time) *event.Entry {
	last := d.repeat.last
	flags := event.PolicyFlagTrusted | event.PolicyFlagPassToUser

	if last.RefCount() == 1 {
		last.Recycle()
		last.AdvanceRepeat(d.ids.Next(), now, flags)
	} else {
		next, _ := last.Key()
		next.RepeatCount++
		next.SyntheticRepeat = true
		d.repeat.last = event.NewKey(d.ids.Next(), now, next, event.WithPolicyFlags(flags))
		last.Release()
	}

	d.repeat.next = now.Add(d.config.KeyRepeat.Interval)
	d.counters.repeats++
	return d.repeat.last.Acquire()
}
