package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dshills/inputdispatch/internal/command"
	"github.com/dshills/inputdispatch/internal/connection"
	"github.com/dshills/inputdispatch/internal/dispatch"
	"github.com/dshills/inputdispatch/internal/event"
	"github.com/dshills/inputdispatch/internal/logging"
	"github.com/dshills/inputdispatch/internal/policy"
)

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// ClockFunc is a function adapter for Clock.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// Dispatcher is the dispatch loop. It is safe for concurrent use; Run must
// be called from a single goroutine.
type Dispatcher struct {
	mu sync.Mutex

	resolver TargetResolver
	action   command.Func
	runner   *command.Runner
	logger   *logging.Logger
	clock    Clock
	ids      *event.IDGenerator
	seq      *dispatch.Sequencer

	config Config

	inbound  []*event.Entry
	pending  *event.Entry
	commands command.Queue
	tracker  *dispatch.Tracker

	conns  map[event.Token]*connection.Connection
	order  []event.Token
	owners map[dispatch.Seq]*connection.Connection

	focused event.Token
	repeat  keyRepeatState

	// Set while the pending key waits for a focused window.
	noFocusDeadline time.Time

	lastPoke map[policy.UserActivity]time.Time

	counters counters
	closed   bool
	wake     chan struct{}
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = l
	}
}

// WithClock sets the time source.
func WithClock(c Clock) Option {
	return func(d *Dispatcher) {
		d.clock = c
	}
}

// WithRunner sets the command runner.
func WithRunner(r *command.Runner) Option {
	return func(d *Dispatcher) {
		d.runner = r
	}
}

// WithConfig sets the initial configuration.
func WithConfig(c Config) Option {
	return func(d *Dispatcher) {
		d.config = c
	}
}

// WithSequencer sets the sequencer numbering dispatch records.
func WithSequencer(s *dispatch.Sequencer) Option {
	return func(d *Dispatcher) {
		d.seq = s
	}
}

// WithCommandFunc replaces the function commands run with. By default
// commands call the policy given to New.
func WithCommandFunc(fn command.Func) Option {
	return func(d *Dispatcher) {
		d.action = fn
	}
}

// New creates a dispatcher delivering to the targets chosen by resolver and
// consulting p through commands.
func New(resolver TargetResolver, p policy.Policy, opts ...Option) *Dispatcher {
	if p == nil {
		p = policy.Nop{}
	}
	d := &Dispatcher{
		resolver: resolver,
		action:   command.PolicyAction(p),
		logger:   logging.Nop(),
		clock:    ClockFunc(time.Now),
		ids:      event.NewIDGenerator(event.OriginDispatcher),
		config:   DefaultConfig(),
		tracker:  dispatch.NewTracker(),
		conns:    make(map[event.Token]*connection.Connection),
		owners:   make(map[dispatch.Seq]*connection.Connection),
		lastPoke: make(map[policy.UserActivity]time.Time),
		wake:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.runner == nil {
		d.runner = command.NewRunner()
	}
	if d.seq == nil {
		d.seq = &dispatch.Sequencer{}
	}
	d.logger = d.logger.WithComponent("dispatcher")
	return d
}

// Notify queues an entry from a producer. The dispatcher takes over the
// caller's reference.
func (d *Dispatcher) Notify(e *event.Entry) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		d.dropLocked(e, "dispatcher closed")
		return ErrClosed
	}
	if limit := d.config.InboundLimit; limit > 0 && len(d.inbound) >= limit {
		d.dropLocked(e, "inbound queue full")
		return fmt.Errorf("notify %s: %w", e.Type(), ErrInboundFull)
	}
	d.inbound = append(d.inbound, e)
	d.wakeLocked()
	return nil
}

// Inject queues an injected entry and waits for its outcome according to the
// wait mode of its injection state, bounded by the injection timeout. The
// dispatcher takes over the caller's reference.
func (d *Dispatcher) Inject(ctx context.Context, e *event.Entry) (event.InjectionResult, error) {
	state := e.Injection()
	if state == nil {
		e.Release()
		return event.InjectionFailed, ErrNotInjected
	}

	d.mu.Lock()
	timeout := d.config.InjectionTimeout
	d.mu.Unlock()

	if err := d.Notify(e); err != nil {
		return event.InjectionFailed, err
	}
	if state.Mode() == event.InjectionWaitNone {
		return event.InjectionSucceeded, nil
	}

	wctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	res, err := state.Wait(wctx)
	if err != nil {
		if ctx.Err() != nil {
			return res, fmt.Errorf("inject: %w", ctx.Err())
		}
		return event.InjectionTimedOut, nil
	}
	return res, nil
}

// Register adds a connection publishing through p and returns its token.
func (d *Dispatcher) Register(name string, p connection.Publisher) (event.Token, error) {
	token := event.NewToken()
	if err := d.RegisterToken(token, name, p); err != nil {
		return event.NoToken, err
	}
	return token, nil
}

// RegisterToken adds a connection with a caller-chosen token.
func (d *Dispatcher) RegisterToken(token event.Token, name string, p connection.Publisher) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrClosed
	}
	if _, ok := d.conns[token]; ok {
		return fmt.Errorf("register %s: %w", token, ErrDuplicateConnection)
	}
	d.conns[token] = connection.New(name, token, p)
	d.order = append(d.order, token)
	d.logger.WithField("connection", name).Info("registered %s", token)
	return nil
}

// Unregister removes a connection. Its queued and unacknowledged records are
// dropped.
func (d *Dispatcher) Unregister(token event.Token) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	c, ok := d.conns[token]
	if !ok {
		return fmt.Errorf("unregister %s: %w", token, ErrUnknownConnection)
	}
	d.teardownLocked(c, connection.StatusZombie)
	d.wakeLocked()
	return nil
}

// Acknowledge reports that the target behind token finished handling the
// record seq. handled tells whether the target consumed it. Late
// acknowledgments after a timeout are accepted.
func (d *Dispatcher) Acknowledge(token event.Token, seq dispatch.Seq, handled bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	c, ok := d.conns[token]
	if !ok {
		return fmt.Errorf("acknowledge seq %d: %s: %w", seq, token, ErrUnknownConnection)
	}
	e, err := c.Finish(seq)
	if err != nil {
		return fmt.Errorf("acknowledge: %w", err)
	}
	d.tracker.Remove(seq)
	delete(d.owners, seq)

	ev := e.Event()
	if !handled && ev.Type() == event.TypeKey && e.HasForegroundTarget() {
		d.commands.Push(&command.DispatchUnhandledKey{Token: token, Seq: seq, Entry: ev})
	}
	d.finishForegroundLocked(e)

	if e.Acknowledge() {
		d.counters.lateAcks++
		d.logger.WithField("connection", c.Name()).Info("late acknowledgment of seq %d", seq)
	}
	d.counters.acknowledged++

	if !c.Responsive() && !hasTimedOut(c) {
		c.SetResponsive(true)
		d.commands.Push(&command.NotifyResponsive{Token: token})
	}
	d.wakeLocked()
	return nil
}

// SetFocus moves focus to token. The previously focused connection receives
// a focus-lost entry, token receives a focus-gained entry and policy is told
// about the change. A zero token clears focus.
func (d *Dispatcher) SetFocus(token event.Token, reason string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrClosed
	}
	if token == d.focused {
		return nil
	}
	if !token.IsZero() {
		if _, ok := d.conns[token]; !ok {
			return fmt.Errorf("focus %s: %w", token, ErrUnknownConnection)
		}
	}

	now := d.clock.Now()
	old := d.focused
	if _, ok := d.conns[old]; ok {
		d.inbound = append(d.inbound, event.NewFocus(d.ids.Next(), now, old, false, reason))
	}
	if !token.IsZero() {
		d.inbound = append(d.inbound, event.NewFocus(d.ids.Next(), now, token, true, reason))
	}
	d.focused = token
	d.resetKeyRepeatLocked()
	d.commands.Push(&command.NotifyFocusChanged{OldToken: old, NewToken: token, Reason: reason})
	d.wakeLocked()
	return nil
}

// Focused returns the focused connection token.
func (d *Dispatcher) Focused() event.Token {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.focused
}

// UpdateConfig applies c. Records already sent keep their deadlines.
func (d *Dispatcher) UpdateConfig(c Config) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.config = c
	if !c.KeyRepeat.Enabled {
		d.resetKeyRepeatLocked()
	}
	d.logger.Info("configuration updated")
	d.wakeLocked()
}

// Config returns the current configuration.
func (d *Dispatcher) Config() Config {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.config
}

// Close shuts the dispatcher down. Every queued entry is released, failing
// pending injections, every connection is torn down and queued commands are
// discarded. Close is idempotent.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}
	d.closed = true

	for _, e := range d.inbound {
		d.dropLocked(e, "dispatcher closed")
	}
	d.inbound = nil
	if d.pending != nil {
		d.dropLocked(d.pending, "dispatcher closed")
		d.pending = nil
	}
	d.resetKeyRepeatLocked()
	for _, token := range append([]event.Token(nil), d.order...) {
		d.teardownLocked(d.conns[token], connection.StatusZombie)
	}
	if n := d.commands.Discard(); n > 0 {
		d.logger.Debug("discarded %d commands", n)
	}
	d.wakeLocked()
	d.logger.Info("closed")
}

// Execute implements command.Handler.
func (d *Dispatcher) Execute(ctx context.Context, c command.Command) (any, error) {
	return d.action(ctx, c)
}

// wakeLocked makes Run re-evaluate without waiting for its timer.
func (d *Dispatcher) wakeLocked() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// dropLocked releases an entry that will not be dispatched.
func (d *Dispatcher) dropLocked(e *event.Entry, reason string) {
	if s := e.Injection(); s != nil {
		s.SetResult(event.InjectionFailed)
	}
	d.counters.dropped++
	d.logger.Debug("dropped %s: %s", e.Type(), reason)
	e.Release()
}

// teardownLocked removes c and drops every record it holds.
func (d *Dispatcher) teardownLocked(c *connection.Connection, status connection.Status) {
	for _, e := range c.Teardown(status) {
		d.tracker.Remove(e.Seq())
		delete(d.owners, e.Seq())
		d.finishForegroundLocked(e)
		e.Drop()
		d.counters.dropped++
	}
	delete(d.conns, c.Token())
	for i, t := range d.order {
		if t == c.Token() {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
	if d.focused == c.Token() {
		d.focused = event.NoToken
	}
	d.logger.WithField("connection", c.Name()).Info("connection %s is %s", c.Token(), status)
}

// finishForegroundLocked settles the injection bookkeeping of a retired
// foreground record.
func (d *Dispatcher) finishForegroundLocked(e *dispatch.Entry) {
	if !e.HasForegroundTarget() {
		return
	}
	if s := e.Event().Injection(); s != nil {
		s.DecrementPendingForeground()
	}
}

func hasTimedOut(c *connection.Connection) bool {
	timedOut := false
	c.Waiting(func(e *dispatch.Entry) {
		if e.State() == dispatch.StateTimedOut {
			timedOut = true
		}
	})
	return timedOut
}
