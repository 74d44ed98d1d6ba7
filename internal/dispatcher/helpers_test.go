package dispatcher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dshills/inputdispatch/internal/connection"
	"github.com/dshills/inputdispatch/internal/event"
	"github.com/dshills/inputdispatch/internal/policy"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu    sync.Mutex
	now   time.Time
	reads int
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reads++
	return c.now
}

// Reads returns how many times Now was called.
func (c *fakeClock) Reads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recordingPolicy answers intercept queries from a script and records every
// call it receives.
type recordingPolicy struct {
	policy.Nop

	mu           sync.Mutex
	intercepts   []policy.InterceptDecision
	interceptErr error
	extension    time.Duration

	intercepted  []event.ID
	unresponsive []string
	responsive   int
	noFocus      []string
	focus        [][2]event.Token
	broken       []event.Token
	unhandled    []event.ID
	untrusted    []string
	configs      int
	pokes        []policy.UserActivity
}

func (p *recordingPolicy) InterceptKeyBeforeDispatching(_ context.Context, _ event.Token, key *event.Entry) (policy.InterceptDecision, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.intercepted = append(p.intercepted, key.ID())
	if p.interceptErr != nil {
		return policy.InterceptDecision{}, p.interceptErr
	}
	if len(p.intercepts) == 0 {
		return policy.Continue(), nil
	}
	d := p.intercepts[0]
	p.intercepts = p.intercepts[1:]
	return d, nil
}

func (p *recordingPolicy) NotifyUnresponsive(_ context.Context, _ event.Token, reason string) (time.Duration, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.unresponsive = append(p.unresponsive, reason)
	return p.extension, nil
}

func (p *recordingPolicy) NotifyResponsive(context.Context, event.Token) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.responsive++
	return nil
}

func (p *recordingPolicy) NotifyNoFocusedWindow(_ context.Context, app policy.ApplicationHandle) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.noFocus = append(p.noFocus, app.Name)
	return nil
}

func (p *recordingPolicy) NotifyFocusChanged(_ context.Context, old, new event.Token, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.focus = append(p.focus, [2]event.Token{old, new})
	return nil
}

func (p *recordingPolicy) NotifyConnectionBroken(_ context.Context, token event.Token) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.broken = append(p.broken, token)
	return nil
}

func (p *recordingPolicy) DispatchUnhandledKey(_ context.Context, _ event.Token, key *event.Entry) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.unhandled = append(p.unhandled, key.ID())
	return false, nil
}

func (p *recordingPolicy) NotifyUntrustedTouch(_ context.Context, pkg string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.untrusted = append(p.untrusted, pkg)
	return nil
}

func (p *recordingPolicy) NotifyConfigurationChanged(context.Context, time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.configs++
	return nil
}

func (p *recordingPolicy) PokeUserActivity(_ context.Context, _ time.Time, _ int32, a policy.UserActivity) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pokes = append(p.pokes, a)
	return nil
}

func (p *recordingPolicy) count(field func(*recordingPolicy) int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return field(p)
}

func (p *recordingPolicy) interceptCount() int {
	return p.count(func(p *recordingPolicy) int { return len(p.intercepted) })
}

func (p *recordingPolicy) unresponsiveCount() int {
	return p.count(func(p *recordingPolicy) int { return len(p.unresponsive) })
}

type harness struct {
	t      *testing.T
	d      *Dispatcher
	clock  *fakeClock
	policy *recordingPolicy
	reader *event.IDGenerator
}

func newHarness(t *testing.T, resolver TargetResolver, cfg Config) *harness {
	t.Helper()
	clock := &fakeClock{now: t0}
	pol := &recordingPolicy{}
	d := New(resolver, pol, WithClock(clock), WithConfig(cfg))
	t.Cleanup(d.Close)
	return &harness{
		t:      t,
		d:      d,
		clock:  clock,
		policy: pol,
		reader: event.NewIDGenerator(event.OriginReader),
	}
}

// pump runs loop iterations until the loop has nothing immediate to do and
// returns the next wakeup it reported.
func (h *harness) pump() time.Time {
	h.t.Helper()
	for i := 0; i < 100; i++ {
		next, again := h.d.dispatchOnce(context.Background())
		if !again {
			return next
		}
	}
	h.t.Fatal("dispatch loop did not settle")
	return time.Time{}
}

func (h *harness) register(name string, buffer int) (event.Token, *connection.ChannelPublisher) {
	h.t.Helper()
	pub := connection.NewChannelPublisher(buffer)
	token, err := h.d.Register(name, pub)
	if err != nil {
		h.t.Fatalf("Register(%s) = %v", name, err)
	}
	return token, pub
}

func (h *harness) key(action event.KeyAction, opts ...event.Option) *event.Entry {
	now := h.clock.Now()
	opts = append([]event.Option{event.WithPolicyFlags(event.PolicyFlagTrusted | event.PolicyFlagPassToUser)}, opts...)
	return event.NewKey(h.reader.Next(), now, event.Key{
		DeviceID: 1,
		Source:   event.InputSourceKeyboard,
		Action:   action,
		KeyCode:  event.KeyCodeA,
		ScanCode: 30,
		DownTime: now,
	}, opts...)
}

func (h *harness) notify(e *event.Entry) {
	h.t.Helper()
	if err := h.d.Notify(e); err != nil {
		h.t.Fatalf("Notify() = %v", err)
	}
}

func drain(pub *connection.ChannelPublisher) []connection.Message {
	var out []connection.Message
	for {
		select {
		case m := <-pub.Messages():
			out = append(out, m)
		default:
			return out
		}
	}
}

func keysOnly(msgs []connection.Message) []connection.Message {
	var out []connection.Message
	for _, m := range msgs {
		if m.Type == event.TypeKey {
			out = append(out, m)
		}
	}
	return out
}

func staticTargets(targets ...Target) TargetResolver {
	return TargetResolverFunc(func(*event.Entry, event.Token) ([]Target, error) {
		return targets, nil
	})
}

var errBoom = errors.New("boom")

func noRepeat() Config {
	return DefaultConfig().WithoutKeyRepeat()
}

func (h *harness) registerToken(token event.Token, name string, buffer int) *connection.ChannelPublisher {
	h.t.Helper()
	pub := connection.NewChannelPublisher(buffer)
	if err := h.d.RegisterToken(token, name, pub); err != nil {
		h.t.Fatalf("RegisterToken(%s) = %v", name, err)
	}
	return pub
}

// deliverKey notifies a key down and returns the message it produced.
func (h *harness) deliverKey(pub *connection.ChannelPublisher, opts ...event.Option) (*event.Entry, connection.Message) {
	h.t.Helper()
	e := h.key(event.KeyActionDown, opts...)
	h.notify(e)
	h.pump()
	msgs := keysOnly(drain(pub))
	if len(msgs) != 1 {
		h.t.Fatalf("got %d key messages, want 1", len(msgs))
	}
	return e, msgs[0]
}
