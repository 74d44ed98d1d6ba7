package dispatcher

import (
	"time"

	"github.com/dshills/inputdispatch/internal/command"
	"github.com/dshills/inputdispatch/internal/dispatch"
	"github.com/dshills/inputdispatch/internal/event"
	"github.com/dshills/inputdispatch/internal/policy"
)

// Complete implements command.Handler. It runs with the lock held.
func (d *Dispatcher) Complete(c command.Command, r command.Result) {
	if err := r.Err(c.Kind()); err != nil {
		d.logger.WithField("command", c.Kind().String()).Warn("%v", err)
	}

	switch c := c.(type) {
	case *command.InterceptKey:
		d.completeInterceptLocked(c, r)
	case *command.NotifyUnresponsive:
		d.completeUnresponsiveLocked(c, r)
	case *command.DispatchUnhandledKey:
		if consumed, _ := r.Value.(bool); consumed {
			d.logger.Debug("unhandled key seq %d consumed by policy", c.Seq)
		}
	}
}

// completeInterceptLocked records the policy verdict on the held key. A
// failed query lets the key through.
func (d *Dispatcher) completeInterceptLocked(c *command.InterceptKey, r command.Result) {
	if c.Entry.Type() != event.TypeKey {
		return
	}
	decision, ok := r.Value.(policy.InterceptDecision)
	if !r.IsSuccess() || !ok {
		decision = policy.Continue()
	}

	switch decision.Result {
	case event.InterceptSkip:
		c.Entry.SetInterceptResult(event.InterceptSkip, time.Time{})
	case event.InterceptTryAgainLater:
		switch {
		case decision.Delay < 0:
			c.Entry.SetInterceptResult(event.InterceptSkip, time.Time{})
		case decision.Delay == 0:
			c.Entry.SetInterceptResult(event.InterceptContinue, time.Time{})
		default:
			c.Entry.SetInterceptResult(event.InterceptTryAgainLater, d.clock.Now().Add(decision.Delay))
		}
	default:
		c.Entry.SetInterceptResult(event.InterceptContinue, time.Time{})
	}
}

// completeUnresponsiveLocked re-arms the record when policy granted more
// time. A failed notification grants nothing.
func (d *Dispatcher) completeUnresponsiveLocked(c *command.NotifyUnresponsive, r command.Result) {
	extension, _ := r.Value.(time.Duration)
	if !r.IsSuccess() || extension <= 0 {
		return
	}
	e, ok := d.tracker.Get(c.Seq)
	if !ok || e.State() != dispatch.StateTimedOut {
		return
	}
	e.ReArm(d.clock.Now(), extension)
	d.tracker.Armed(e)
	d.logger.Info("extended seq %d by %v", c.Seq, extension)
}
