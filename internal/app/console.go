package app

import (
	"context"
	"sync/atomic"

	"github.com/dshills/inputdispatch/internal/connection"
	"github.com/dshills/inputdispatch/internal/dispatcher"
	"github.com/dshills/inputdispatch/internal/event"
	"github.com/dshills/inputdispatch/internal/logging"
)

// consoleBuffer is how many deliveries the console holds before the
// dispatcher has to retry publishing.
const consoleBuffer = 64

// HandleFunc decides whether the console handled a delivery.
type HandleFunc func(m connection.Message) bool

// Console is an in-process client connection. It logs every delivery and
// acknowledges it.
type Console struct {
	d      *dispatcher.Dispatcher
	pub    *connection.ChannelPublisher
	token  event.Token
	logger *logging.Logger
	handle HandleFunc

	delivered atomic.Uint64
	unhandled atomic.Uint64
}

// NewConsole registers a console connection named name with d and gives it
// focus. A nil handle treats every delivery as handled.
func NewConsole(d *dispatcher.Dispatcher, name string, logger *logging.Logger, handle HandleFunc) (*Console, error) {
	if handle == nil {
		handle = func(connection.Message) bool { return true }
	}
	pub := connection.NewChannelPublisher(consoleBuffer)
	token, err := d.Register(name, pub)
	if err != nil {
		return nil, err
	}
	if err := d.SetFocus(token, "console attached"); err != nil {
		return nil, err
	}
	return &Console{
		d:      d,
		pub:    pub,
		token:  token,
		logger: logger.WithComponent("console").WithField("connection", name),
		handle: handle,
	}, nil
}

// Token returns the console connection token.
func (c *Console) Token() event.Token {
	return c.token
}

// Delivered returns how many deliveries the console received.
func (c *Console) Delivered() uint64 {
	return c.delivered.Load()
}

// Run consumes deliveries until ctx ends or the publisher is closed.
func (c *Console) Run(ctx context.Context) error {
	msgs := c.pub.Messages()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-msgs:
			if !ok {
				return nil
			}
			c.receive(m)
		}
	}
}

// Close detaches the console from the dispatcher.
func (c *Console) Close() {
	c.pub.Close()
}

func (c *Console) receive(m connection.Message) {
	c.delivered.Add(1)
	handled := c.handle(m)
	if !handled {
		c.unhandled.Add(1)
	}

	l := c.logger.WithFields(map[string]any{
		"seq":   uint32(m.Seq),
		"type":  m.Type.String(),
		"flags": m.TargetFlags.String(),
	})
	switch {
	case m.Key != nil:
		l.Info("key %s %s meta=%s repeat=%d", m.Key.Action, m.Key.KeyCode, m.Key.MetaState, m.Key.RepeatCount)
	case m.Motion != nil:
		pos := m.Motion.Pointers[0].Coords.Position
		l.Info("motion %s at %.0f,%.0f", m.Motion.Action, pos.X, pos.Y)
	case m.Focus != nil:
		l.Info("focus %t (%s)", m.Focus.HasFocus, m.Focus.Reason)
	default:
		l.Debug("delivery")
	}

	if err := c.d.Acknowledge(c.token, m.Seq, handled); err != nil {
		c.logger.Warn("%v", err)
	}
}
