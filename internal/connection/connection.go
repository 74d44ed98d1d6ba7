// Package connection models the dispatcher's side of a target connection:
// the records waiting to be published, the records published and awaiting
// acknowledgment, and the publisher that hands records to the target.
package connection

import (
	"errors"
	"fmt"
	"time"

	"github.com/dshills/inputdispatch/internal/dispatch"
	"github.com/dshills/inputdispatch/internal/event"
)

// Errors returned by connections and publishers.
var (
	// ErrWouldBlock is returned by a Publisher that cannot take a message
	// right now. The record stays queued.
	ErrWouldBlock = errors.New("publisher would block")

	// ErrBroken is returned when using a connection after it failed or was
	// torn down.
	ErrBroken = errors.New("connection is broken")

	// ErrUnknownSeq is returned when acknowledging a sequence number the
	// connection is not waiting for.
	ErrUnknownSeq = errors.New("unknown sequence number")
)

// Status is the health of a connection.
type Status int

const (
	// StatusNormal means the connection is usable.
	StatusNormal Status = iota
	// StatusBroken means publishing failed.
	StatusBroken
	// StatusZombie means the connection was unregistered.
	StatusZombie
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusNormal:
		return "NORMAL"
	case StatusBroken:
		return "BROKEN"
	case StatusZombie:
		return "ZOMBIE"
	default:
		return "UNKNOWN"
	}
}

// Connection is the dispatcher's view of one target. It is not safe for
// concurrent use; the dispatch loop guards it with its lock.
type Connection struct {
	token     event.Token
	name      string
	publisher Publisher

	status     Status
	responsive bool
	outbound   []*dispatch.Entry
	wait       []*dispatch.Entry
}

// New creates a connection publishing through p.
func New(name string, token event.Token, p Publisher) *Connection {
	return &Connection{
		token:      token,
		name:       name,
		publisher:  p,
		responsive: true,
	}
}

// Token returns the connection token.
func (c *Connection) Token() event.Token { return c.token }

// Name returns the connection name.
func (c *Connection) Name() string { return c.name }

// Status returns the connection status.
func (c *Connection) Status() Status { return c.status }

// Responsive reports whether the connection is keeping up with
// acknowledgments.
func (c *Connection) Responsive() bool { return c.responsive }

// SetResponsive records whether the connection is keeping up.
func (c *Connection) SetResponsive(v bool) { c.responsive = v }

// OutboundLen returns the number of records waiting to be published.
func (c *Connection) OutboundLen() int { return len(c.outbound) }

// WaitLen returns the number of published records awaiting acknowledgment.
func (c *Connection) WaitLen() int { return len(c.wait) }

// Idle reports whether nothing is queued or awaiting acknowledgment.
func (c *Connection) Idle() bool {
	return len(c.outbound) == 0 && len(c.wait) == 0
}

// Enqueue appends e to the outbound queue.
func (c *Connection) Enqueue(e *dispatch.Entry) error {
	if c.status != StatusNormal {
		return fmt.Errorf("enqueue seq %d on %s: %w", e.Seq(), c.name, ErrBroken)
	}
	c.outbound = append(c.outbound, e)
	return nil
}

// Publish hands outbound records to the publisher in order, marking each as
// sent at now with the budget from timeouts. It stops at the first
// ErrWouldBlock. Any other publisher error breaks the connection and is
// returned. The published records are returned in order.
func (c *Connection) Publish(now time.Time, timeouts dispatch.TimeoutPolicy) ([]*dispatch.Entry, error) {
	if c.status != StatusNormal {
		return nil, fmt.Errorf("publish on %s: %w", c.name, ErrBroken)
	}

	var sent []*dispatch.Entry
	for len(c.outbound) > 0 {
		e := c.outbound[0]
		err := c.publisher.Publish(NewMessage(c.token, e))
		if errors.Is(err, ErrWouldBlock) {
			break
		}
		if err != nil {
			c.status = StatusBroken
			return sent, fmt.Errorf("publish seq %d on %s: %w", e.Seq(), c.name, err)
		}
		c.outbound[0] = nil
		c.outbound = c.outbound[1:]
		e.MarkSent(now, timeouts.Budget(e.TargetFlags()))
		c.wait = append(c.wait, e)
		sent = append(sent, e)
	}
	return sent, nil
}

// Finish removes the awaited record with the given sequence number.
func (c *Connection) Finish(seq dispatch.Seq) (*dispatch.Entry, error) {
	for i, e := range c.wait {
		if e.Seq() == seq {
			c.wait = append(c.wait[:i], c.wait[i+1:]...)
			return e, nil
		}
	}
	return nil, fmt.Errorf("finish seq %d on %s: %w", seq, c.name, ErrUnknownSeq)
}

// OldestWait returns the longest outstanding published record.
func (c *Connection) OldestWait() (*dispatch.Entry, bool) {
	if len(c.wait) == 0 {
		return nil, false
	}
	return c.wait[0], true
}

// Teardown marks the connection with status and returns every record it
// still holds, outbound first, so the caller can drop them. status must not
// be StatusNormal.
func (c *Connection) Teardown(status Status) []*dispatch.Entry {
	if status == StatusNormal {
		status = StatusZombie
	}
	c.status = status
	out := make([]*dispatch.Entry, 0, len(c.outbound)+len(c.wait))
	out = append(out, c.outbound...)
	out = append(out, c.wait...)
	c.outbound = nil
	c.wait = nil
	return out
}

// Waiting calls fn for each published record awaiting acknowledgment in
// publication order.
func (c *Connection) Waiting(fn func(*dispatch.Entry)) {
	for _, e := range c.wait {
		fn(e)
	}
}
