package connection

import (
	"sync"
	"time"

	"gioui.org/f32"

	"github.com/dshills/inputdispatch/internal/dispatch"
	"github.com/dshills/inputdispatch/internal/event"
)

// Publisher hands messages to a target. Publish is called with the dispatch
// lock held and must not block: return ErrWouldBlock instead.
type Publisher interface {
	Publish(m Message) error
}

// PublisherFunc is a function adapter for Publisher.
type PublisherFunc func(m Message) error

// Publish implements Publisher.
func (f PublisherFunc) Publish(m Message) error {
	return f(m)
}

// Message is the snapshot of a dispatch record handed to a target. It shares
// nothing mutable with the dispatcher.
type Message struct {
	Token       event.Token
	Seq         dispatch.Seq
	EventID     event.ID
	EventTime   time.Time
	Type        event.Type
	TargetFlags dispatch.TargetFlags
	Action      int32
	Flags       int32
	Transform   f32.Affine2D
	Scale       float32
	Injected    bool
	Synthesized bool

	// Key is set for key events.
	Key *event.Key
	// Motion is set for motion events. Pointer positions are in the
	// target's coordinate space.
	Motion *event.Motion
	// Focus is set for focus events.
	Focus *event.Focus
}

// NewMessage snapshots e for delivery on the connection with token.
func NewMessage(token event.Token, e *dispatch.Entry) Message {
	ev := e.Event()
	m := Message{
		Token:       token,
		Seq:         e.Seq(),
		EventID:     e.ResolvedEventID,
		EventTime:   ev.EventTime(),
		Type:        ev.Type(),
		TargetFlags: e.TargetFlags(),
		Action:      e.ResolvedAction,
		Flags:       e.ResolvedFlags,
		Transform:   e.Transform(),
		Scale:       e.GlobalScaleFactor(),
		Injected:    ev.IsInjected(),
		Synthesized: ev.IsSynthesized(),
	}

	// Payload returns a private copy, so the message may keep and transform it.
	switch p := ev.Payload().(type) {
	case *event.Key:
		m.Key = p
	case *event.Motion:
		zero := e.TargetFlags().Has(dispatch.TargetZeroCoords)
		for i := range p.Pointers {
			pos := &p.Pointers[i].Coords.Position
			if zero {
				*pos = f32.Point{}
			} else {
				*pos = m.Transform.Transform(*pos)
			}
		}
		m.Motion = p
	case *event.Focus:
		m.Focus = p
	}
	return m
}

// ChannelPublisher publishes to a buffered channel. A full channel reports
// ErrWouldBlock.
type ChannelPublisher struct {
	mu     sync.Mutex
	ch     chan Message
	closed bool
}

// NewChannelPublisher creates a publisher with the given buffer size.
func NewChannelPublisher(buffer int) *ChannelPublisher {
	return &ChannelPublisher{ch: make(chan Message, buffer)}
}

// Messages returns the channel the target reads from.
func (p *ChannelPublisher) Messages() <-chan Message {
	return p.ch
}

// Publish implements Publisher.
func (p *ChannelPublisher) Publish(m Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrBroken
	}
	select {
	case p.ch <- m:
		return nil
	default:
		return ErrWouldBlock
	}
}

// Close closes the message channel. Later publishes fail with ErrBroken.
func (p *ChannelPublisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.ch)
	}
}
