package input

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"gioui.org/f32"
	"github.com/gdamore/tcell/v2"

	"github.com/dshills/inputdispatch/internal/event"
	"github.com/dshills/inputdispatch/internal/logging"
)

// ErrUnmapped is returned by Handle for terminal input with no event form.
var ErrUnmapped = errors.New("unmapped input")

// Sink receives the entries the reader produces and takes over their
// reference.
type Sink interface {
	Notify(e *event.Entry) error
}

// SinkFunc is a function adapter for Sink.
type SinkFunc func(e *event.Entry) error

// Notify implements Sink.
func (f SinkFunc) Notify(e *event.Entry) error {
	return f(e)
}

// Stats are cumulative reader counters.
type Stats struct {
	Keys     uint64
	Motions  uint64
	Resizes  uint64
	Unmapped uint64
	Rejected uint64
}

// Reader converts terminal events into entries.
type Reader struct {
	screen    tcell.Screen
	sink      Sink
	ids       *event.IDGenerator
	logger    *logging.Logger
	now       func() time.Time
	interrupt func()
	deviceID  int32
	displayID int32

	// Touched only by the goroutine calling Handle.
	buttons  event.Buttons
	downTime time.Time

	keys     atomic.Uint64
	motions  atomic.Uint64
	resizes  atomic.Uint64
	unmapped atomic.Uint64
	rejected atomic.Uint64
}

// Option configures a Reader.
type Option func(*Reader)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(r *Reader) {
		r.logger = l
	}
}

// WithClock sets the time source for event times.
func WithClock(now func() time.Time) Option {
	return func(r *Reader) {
		r.now = now
	}
}

// WithDevice sets the device and display ids stamped on entries.
func WithDevice(deviceID, displayID int32) Option {
	return func(r *Reader) {
		r.deviceID = deviceID
		r.displayID = displayID
	}
}

// WithInterrupt makes Ctrl+C call fn instead of producing a key. A terminal
// in raw mode does not raise SIGINT.
func WithInterrupt(fn func()) Option {
	return func(r *Reader) {
		r.interrupt = fn
	}
}

// NewReader creates a reader for screen delivering to sink.
func NewReader(screen tcell.Screen, sink Sink, opts ...Option) *Reader {
	r := &Reader{
		screen:   screen,
		sink:     sink,
		ids:      event.NewIDGenerator(event.OriginReader),
		logger:   logging.Nop(),
		now:      time.Now,
		deviceID: 1,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.WithComponent("input")
	return r
}

// NewTerminalReader creates a reader for the controlling terminal.
func NewTerminalReader(sink Sink, opts ...Option) (*Reader, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, fmt.Errorf("open terminal: %w", err)
	}
	return NewReader(screen, sink, opts...), nil
}

// Init initializes the screen and enables mouse reporting.
func (r *Reader) Init() error {
	if err := r.screen.Init(); err != nil {
		return fmt.Errorf("init screen: %w", err)
	}
	r.screen.EnableMouse()
	r.screen.EnablePaste()
	return nil
}

// Run handles screen events until ctx ends, then finalizes the screen. Init
// must have been called. Entries the sink rejects are logged and dropped.
func (r *Reader) Run(ctx context.Context) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			r.screen.Fini()
		case <-stop:
		}
	}()

	for {
		ev := r.screen.PollEvent()
		if ev == nil {
			return nil
		}
		if err := r.Handle(ev); err != nil && !errors.Is(err, ErrUnmapped) {
			r.logger.Warn("%v", err)
		}
	}
}

// Handle converts one terminal event and hands the result to the sink.
func (r *Reader) Handle(ev tcell.Event) error {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		return r.handleKey(ev)
	case *tcell.EventMouse:
		return r.handleMouse(ev)
	case *tcell.EventResize:
		r.resizes.Add(1)
		w, h := ev.Size()
		r.logger.Debug("terminal resized to %dx%d", w, h)
		return r.notify(event.NewConfigurationChanged(r.ids.Next(), r.now()))
	default:
		return nil
	}
}

// Stats returns a snapshot of the counters.
func (r *Reader) Stats() Stats {
	return Stats{
		Keys:     r.keys.Load(),
		Motions:  r.motions.Load(),
		Resizes:  r.resizes.Load(),
		Unmapped: r.unmapped.Load(),
		Rejected: r.rejected.Load(),
	}
}

func (r *Reader) handleKey(ev *tcell.EventKey) error {
	if r.interrupt != nil && isInterrupt(ev) {
		r.logger.Info("interrupted from terminal")
		r.interrupt()
		return nil
	}

	code, meta, ok := convertKey(ev)
	if !ok {
		r.unmapped.Add(1)
		return fmt.Errorf("key %s: %w", ev.Name(), ErrUnmapped)
	}
	r.keys.Add(1)

	now := r.now()
	k := event.Key{
		DeviceID:  r.deviceID,
		Source:    event.InputSourceKeyboard,
		DisplayID: r.displayID,
		Action:    event.KeyActionDown,
		KeyCode:   code,
		MetaState: meta,
		DownTime:  now,
	}
	flags := event.WithPolicyFlags(event.PolicyFlagTrusted | event.PolicyFlagPassToUser)
	if err := r.notify(event.NewKey(r.ids.Next(), now, k, flags)); err != nil {
		return err
	}
	k.Action = event.KeyActionUp
	return r.notify(event.NewKey(r.ids.Next(), now, k, flags))
}

func (r *Reader) handleMouse(ev *tcell.EventMouse) error {
	now := r.now()
	x, y := ev.Position()
	mask := ev.Buttons()
	prev, cur := r.buttons, convertButtons(mask)

	m := event.Motion{
		DeviceID:    r.deviceID,
		Source:      event.InputSourceMouse,
		DisplayID:   r.displayID,
		MetaState:   convertMod(ev.Modifiers()),
		ButtonState: cur,
		DownTime:    now,
	}
	switch {
	case isWheel(mask):
		m.Action = event.MotionActionScroll
		m.ButtonState = prev
		cur = prev
	case prev == 0 && cur != 0:
		m.Action = event.MotionActionDown
		m.ActionButton = cur
		r.downTime = now
	case prev != 0 && cur == 0:
		m.Action = event.MotionActionUp
		m.ActionButton = prev
		m.DownTime = r.downTime
	case cur != 0:
		m.Action = event.MotionActionMove
		m.DownTime = r.downTime
	default:
		m.Action = event.MotionActionHoverMove
	}
	r.buttons = cur

	pos := f32.Pt(float32(x), float32(y))
	pressure := float32(0)
	if cur != 0 {
		pressure = 1
	}
	m.Cursor = pos
	m.Pointers = []event.Pointer{{
		Properties: event.PointerProperties{ID: 0, ToolType: event.ToolTypeMouse},
		Coords:     event.PointerCoords{Position: pos, Pressure: pressure},
	}}

	e, err := event.NewMotion(r.ids.Next(), now, m, f32.Point{},
		event.WithPolicyFlags(event.PolicyFlagTrusted|event.PolicyFlagPassToUser))
	if err != nil {
		return fmt.Errorf("mouse at %d,%d: %w", x, y, err)
	}
	r.motions.Add(1)
	return r.notify(e)
}

func isInterrupt(ev *tcell.EventKey) bool {
	if ev.Key() == tcell.KeyCtrlC {
		return true
	}
	return ev.Key() == tcell.KeyRune && ev.Modifiers()&tcell.ModCtrl != 0 &&
		(ev.Rune() == 'c' || ev.Rune() == 'C')
}

func (r *Reader) notify(e *event.Entry) error {
	if err := r.sink.Notify(e); err != nil {
		r.rejected.Add(1)
		return fmt.Errorf("deliver %s: %w", e.Type(), err)
	}
	return nil
}
