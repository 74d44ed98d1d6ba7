package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dshills/inputdispatch/internal/command"
	"github.com/dshills/inputdispatch/internal/connection"
	"github.com/dshills/inputdispatch/internal/dispatch"
	"github.com/dshills/inputdispatch/internal/event"
	"github.com/dshills/inputdispatch/internal/policy"
)

const (
	// publishRetry is how soon publishing is retried after ErrWouldBlock.
	publishRetry = 10 * time.Millisecond

	// userActivityPokeInterval throttles PokeUserActivity per activity kind.
	userActivityPokeInterval = 100 * time.Millisecond

	// idleWait bounds how long Run sleeps with nothing scheduled.
	idleWait = time.Minute
)

// Run dispatches until ctx is done or the dispatcher is closed, then closes
// the dispatcher.
func (d *Dispatcher) Run(ctx context.Context) error {
	defer d.Close()
	d.logger.Info("dispatch loop started")
	defer d.logger.Info("dispatch loop stopped")

	timer := time.NewTimer(idleWait)
	defer timer.Stop()

	for {
		next, again := d.dispatchOnce(ctx)
		if ctx.Err() != nil || d.isClosed() {
			return nil
		}
		if again {
			continue
		}

		wait := idleWait
		if !next.IsZero() {
			wait = next.Sub(d.clock.Now())
			if wait <= 0 {
				continue
			}
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-ctx.Done():
			return nil
		case <-d.wake:
		case <-timer.C:
		}
	}
}

func (d *Dispatcher) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// dispatchOnce runs one iteration of the loop. It returns the next time
// something is due, and whether another iteration should run right away.
func (d *Dispatcher) dispatchOnce(ctx context.Context) (next time.Time, again bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return time.Time{}, false
	}
	now := d.clock.Now()

	// Pending commands run before the next entry is looked at, so an entry
	// waiting on a command result sees it.
	if d.commands.Empty() {
		next, again = d.dispatchInnerLocked(now)
	}
	if d.publishLocked(now) {
		next = earliest(next, now.Add(publishRetry))
	}
	d.processTimeoutsLocked(now)

	if d.runner.Drain(ctx, &d.mu, &d.commands, d) > 0 {
		return now, true
	}
	if d.closed {
		return time.Time{}, false
	}
	if t, ok := d.tracker.NextTimeout(); ok {
		next = earliest(next, t)
	}
	return next, again
}

// dispatchInnerLocked dispatches at most one entry.
func (d *Dispatcher) dispatchInnerLocked(now time.Time) (next time.Time, again bool) {
	if d.pending == nil {
		switch {
		case len(d.inbound) > 0:
			d.pending = d.inbound[0]
			d.inbound[0] = nil
			d.inbound = d.inbound[1:]
		case d.repeat.due(now):
			d.pending = d.synthesizeKeyRepeatLocked(now)
		default:
			return d.repeat.wakeup(), false
		}
	}

	e := d.pending
	held, wakeup, dropReason := d.dispatchEntryLocked(now, e)
	if held {
		// A repeat cannot be synthesized while an entry is pending.
		return wakeup, false
	}

	d.pending = nil
	d.noFocusDeadline = time.Time{}
	if dropReason != "" {
		d.dropLocked(e, dropReason)
	} else {
		d.counters.dispatched++
		e.Release()
	}
	return now, true
}

// dispatchEntryLocked tries to dispatch e. A held entry stays pending until
// wakeup, or until commands run when wakeup is zero. Otherwise the entry is
// finished, and dropped if dropReason is set.
func (d *Dispatcher) dispatchEntryLocked(now time.Time, e *event.Entry) (held bool, wakeup time.Time, dropReason string) {
	switch p := e.Payload().(type) {
	case *event.ConfigurationChanged:
		d.resetKeyRepeatLocked()
		d.commands.Push(&command.NotifyConfigurationChanged{EventTime: e.EventTime()})
		return false, time.Time{}, ""

	case *event.DeviceReset:
		if k, ok := d.repeatingKey(); ok && k.DeviceID == p.DeviceID {
			d.resetKeyRepeatLocked()
		}
		return false, time.Time{}, ""

	case *event.Focus:
		target := Target{Token: p.Token, Flags: dispatch.TargetForeground | dispatch.TargetDispatchAsIs}
		if _, reason := d.fanOutLocked(e, []Target{target}); reason != "" {
			return false, time.Time{}, reason
		}
		return false, time.Time{}, ""

	case *event.Key:
		return d.dispatchKeyLocked(now, e, p)

	case *event.Motion:
		return false, time.Time{}, d.dispatchMotionLocked(now, e, p)

	default:
		panic(fmt.Sprintf("dispatcher: unknown payload %T", p))
	}
}

func (d *Dispatcher) dispatchKeyLocked(now time.Time, e *event.Entry, k *event.Key) (bool, time.Time, string) {
	if !e.DispatchInProgress() {
		d.trackKeyRepeatLocked(e, k)
		e.SetDispatchInProgress(true)
	}
	if !e.PolicyFlags().Has(event.PolicyFlagPassToUser) {
		return false, time.Time{}, "not passed to user"
	}

	verdict := k.InterceptResult
	if verdict == event.InterceptTryAgainLater {
		if now.Before(k.InterceptWakeupTime) {
			return true, k.InterceptWakeupTime, ""
		}
		e.SetInterceptResult(event.InterceptUnknown, time.Time{})
		verdict = event.InterceptUnknown
	}
	switch verdict {
	case event.InterceptUnknown:
		d.commands.Push(&command.InterceptKey{Entry: e, Focused: d.focused})
		return true, time.Time{}, ""
	case event.InterceptSkip:
		return false, time.Time{}, "skipped by policy"
	}

	targets, err := d.resolver.ResolveTargets(e, d.focused)
	if err != nil {
		var nf *NoFocusedWindowError
		if !errors.As(err, &nf) {
			return false, time.Time{}, fmt.Sprintf("resolve targets: %v", err)
		}
		if d.noFocusDeadline.IsZero() {
			d.noFocusDeadline = now.Add(d.config.NoFocusTimeout)
			d.logger.Info("waiting for a focused window in %q", nf.Application.Name)
		}
		if now.Before(d.noFocusDeadline) {
			return true, d.noFocusDeadline, ""
		}
		d.commands.Push(&command.NotifyNoFocusedWindow{Application: nf.Application})
		return false, time.Time{}, "no focused window"
	}

	if _, reason := d.fanOutLocked(e, targets); reason != "" {
		return false, time.Time{}, reason
	}
	d.pokeUserActivityLocked(now, e, k.DisplayID, policy.UserActivityButton)
	return false, time.Time{}, ""
}

func (d *Dispatcher) dispatchMotionLocked(now time.Time, e *event.Entry, m *event.Motion) string {
	if !e.PolicyFlags().Has(event.PolicyFlagPassToUser) {
		return "not passed to user"
	}
	targets, err := d.resolver.ResolveTargets(e, d.focused)
	if err != nil {
		return fmt.Sprintf("resolve targets: %v", err)
	}
	if _, reason := d.fanOutLocked(e, targets); reason != "" {
		return reason
	}
	activity := policy.UserActivityOther
	if m.Source == event.InputSourceTouchscreen {
		activity = policy.UserActivityTouch
	}
	d.pokeUserActivityLocked(now, e, m.DisplayID, activity)
	return ""
}

// fanOutLocked creates and queues one dispatch record per deliverable
// target. It returns the number of records and, when there are none, why.
func (d *Dispatcher) fanOutLocked(e *event.Entry, targets []Target) (int, string) {
	injection := e.Injection()
	if injection != nil {
		for _, t := range targets {
			if t.OwnerUID != 0 && injection.UID() != 0 && injection.UID() != t.OwnerUID {
				injection.SetResult(event.InjectionPermissionDenied)
				return 0, fmt.Sprintf("uid %d may not inject into %s", injection.UID(), t.Token)
			}
		}
	}

	n := 0
	for _, t := range targets {
		c, ok := d.conns[t.Token]
		if !ok || c.Status() != connection.StatusNormal {
			d.logger.Debug("skipping target %s: not connected", t.Token)
			continue
		}
		if e.Type() == event.TypeMotion && t.Flags.Has(dispatch.TargetWindowIsObscured) && t.ObscuringPackage != "" {
			d.commands.Push(&command.NotifyUntrustedTouch{ObscuringPackage: t.ObscuringPackage})
			continue
		}

		scale := t.GlobalScale
		if scale == 0 {
			scale = 1
		}
		rec := dispatch.New(e, t.Flags,
			dispatch.WithTransform(t.Transform),
			dispatch.WithGlobalScale(scale),
			dispatch.WithSequencer(d.seq))
		if err := c.Enqueue(rec); err != nil {
			rec.Drop()
			d.logger.Warn("%v", err)
			continue
		}
		d.tracker.Add(rec)
		d.owners[rec.Seq()] = c
		if injection != nil && rec.HasForegroundTarget() {
			injection.IncrementPendingForeground()
		}
		n++
	}

	if n == 0 {
		return 0, "no deliverable targets"
	}
	if injection != nil {
		injection.SetResult(event.InjectionSucceeded)
	}
	return n, ""
}

func (d *Dispatcher) pokeUserActivityLocked(now time.Time, e *event.Entry, displayID int32, activity policy.UserActivity) {
	if last, ok := d.lastPoke[activity]; ok && now.Sub(last) < userActivityPokeInterval {
		return
	}
	d.lastPoke[activity] = now
	d.commands.Push(&command.PokeUserActivity{EventTime: e.EventTime(), DisplayID: displayID, Activity: activity})
}

// publishLocked publishes queued records on every connection. It reports
// whether some connection could not take everything.
func (d *Dispatcher) publishLocked(now time.Time) (retry bool) {
	for _, token := range append([]event.Token(nil), d.order...) {
		c := d.conns[token]
		if c.OutboundLen() == 0 {
			continue
		}
		sent, err := c.Publish(now, d.config.Budgets)
		for _, e := range sent {
			d.tracker.Armed(e)
		}
		if err != nil {
			d.logger.WithField("connection", c.Name()).Error("%v", err)
			d.commands.Push(&command.NotifyConnectionBroken{Token: token})
			d.teardownLocked(c, connection.StatusBroken)
			continue
		}
		if c.OutboundLen() > 0 {
			retry = true
		}
	}
	return retry
}

// processTimeoutsLocked escalates every sent record past its deadline. Each
// escalation queues exactly one NotifyUnresponsive.
func (d *Dispatcher) processTimeoutsLocked(now time.Time) {
	for _, e := range d.tracker.Expired(now) {
		e.MarkTimedOut(now)
		d.counters.timeouts++

		c := d.owners[e.Seq()]
		if c == nil {
			continue
		}
		c.SetResponsive(false)
		reason := fmt.Sprintf("%s is not responding. Waited %v for %s event seq %d",
			c.Name(), now.Sub(e.DeliveryTime()).Round(time.Millisecond), e.Event().Type(), e.Seq())
		d.logger.WithField("connection", c.Name()).Warn("%s", reason)
		d.commands.Push(&command.NotifyUnresponsive{Token: c.Token(), Seq: e.Seq(), Reason: reason})
	}
}

func earliest(a, b time.Time) time.Time {
	switch {
	case a.IsZero():
		return b
	case b.IsZero():
		return a
	case b.Before(a):
		return b
	default:
		return a
	}
}
