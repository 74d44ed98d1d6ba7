package command

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/dshills/inputdispatch/internal/event"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// countingLocker wraps a mutex and records lock traffic and whether the lock
// was held during each execution.
type countingLocker struct {
	mu      sync.Mutex
	held    bool
	locks   int
	unlocks int
}

func (l *countingLocker) Lock() {
	l.mu.Lock()
	l.held = true
	l.locks++
}

func (l *countingLocker) Unlock() {
	l.unlocks++
	l.held = false
	l.mu.Unlock()
}

func keyEntry() *event.Entry {
	return event.NewKey(event.NewIDGenerator(event.OriginReader).Next(), t0, event.Key{
		KeyCode: event.KeyCodeA,
		Action:  event.KeyActionDown,
	})
}

func TestRunner_LockDiscipline(t *testing.T) {
	outcomes := []func() (any, error){
		func() (any, error) { return "ok", nil },
		func() (any, error) { return nil, errors.New("policy failed") },
		func() (any, error) { panic("policy crashed") },
		func() (any, error) { return nil, nil },
	}

	lock := &countingLocker{}
	var q Queue
	for range outcomes {
		q.Push(&NotifyResponsive{Token: event.NewToken()})
	}

	var heldDuringExecute []bool
	var heldDuringComplete []bool
	var results []Result
	i := 0
	h := HandlerFuncs{
		ExecuteFunc: func(ctx context.Context, c Command) (any, error) {
			heldDuringExecute = append(heldDuringExecute, lock.held)
			fn := outcomes[i]
			i++
			return fn()
		},
		CompleteFunc: func(c Command, r Result) {
			heldDuringComplete = append(heldDuringComplete, lock.held)
			results = append(results, r)
		},
	}

	r := NewRunner()
	lock.Lock()
	lock.locks, lock.unlocks = 0, 0
	n := r.Drain(context.Background(), lock, &q, h)
	held := lock.held
	lock.Unlock()

	if n != len(outcomes) {
		t.Fatalf("Drain() = %d, want %d", n, len(outcomes))
	}
	if lock.locks != len(outcomes) || lock.unlocks != len(outcomes)+1 {
		t.Errorf("locks = %d unlocks = %d (including the test's own unlock)", lock.locks, lock.unlocks)
	}
	if !held {
		t.Error("Drain must return with the lock held")
	}
	for i := range outcomes {
		if heldDuringExecute[i] {
			t.Errorf("command %d executed with the lock held", i)
		}
		if !heldDuringComplete[i] {
			t.Errorf("command %d completed without the lock", i)
		}
	}

	if !results[0].IsSuccess() || results[0].Value != "ok" {
		t.Errorf("result 0 = %+v", results[0])
	}
	if !results[1].IsError() {
		t.Errorf("result 1 = %+v", results[1])
	}
	if !results[2].IsPanic() || results[2].PanicValue != "policy crashed" || len(results[2].PanicStack) == 0 {
		t.Errorf("result 2 = %+v", results[2])
	}

	stats := r.Stats()
	if stats.Executed != 4 || stats.Failed != 1 || stats.Panicked != 1 || stats.Drains != 1 {
		t.Errorf("Stats() = %+v", stats)
	}
}

func TestRunner_EnqueueDuringDrainWaits(t *testing.T) {
	var mu sync.Mutex
	var q Queue
	q.Push(&NotifyConfigurationChanged{EventTime: t0})

	var ran []Kind
	h := HandlerFuncs{
		ExecuteFunc: func(ctx context.Context, c Command) (any, error) {
			ran = append(ran, c.Kind())
			return nil, nil
		},
		CompleteFunc: func(c Command, r Result) {
			if c.Kind() == KindNotifyConfigurationChanged {
				q.Push(&NotifyResponsive{})
			}
		},
	}

	r := NewRunner()
	mu.Lock()
	defer mu.Unlock()

	if n := r.Drain(context.Background(), &mu, &q, h); n != 1 {
		t.Fatalf("first Drain() = %d, want 1", n)
	}
	if q.Len() != 1 {
		t.Fatalf("follow-up command should wait, Len() = %d", q.Len())
	}
	if n := r.Drain(context.Background(), &mu, &q, h); n != 1 {
		t.Fatalf("second Drain() = %d, want 1", n)
	}
	if len(ran) != 2 || ran[1] != KindNotifyResponsive {
		t.Errorf("ran = %v", ran)
	}
	if n := r.Drain(context.Background(), &mu, &q, h); n != 0 {
		t.Errorf("empty Drain() = %d", n)
	}
}

func TestRunner_NestedDrainRejected(t *testing.T) {
	var mu sync.Mutex
	var outer, inner Queue
	inner.Push(&NotifyResponsive{})
	outer.Push(&NotifyResponsive{})

	r := NewRunner()
	var res Result
	h := HandlerFuncs{
		ExecuteFunc: func(ctx context.Context, c Command) (any, error) {
			r.Drain(ctx, &mu, &inner, HandlerFuncs{ExecuteFunc: func(context.Context, Command) (any, error) {
				t.Error("nested command must not run")
				return nil, nil
			}})
			return nil, nil
		},
		CompleteFunc: func(c Command, r Result) { res = r },
	}

	mu.Lock()
	r.Drain(context.Background(), &mu, &outer, h)
	mu.Unlock()

	if !res.IsPanic() {
		t.Fatalf("nested drain should surface as a panic, got %+v", res)
	}
	err, ok := res.PanicValue.(error)
	if !ok || !errors.Is(err, ErrInvariant) {
		t.Errorf("PanicValue = %v", res.PanicValue)
	}
	if inner.Len() != 1 {
		t.Error("nested queue must be untouched")
	}
	if r.Draining() {
		t.Error("runner should not be draining after Drain returns")
	}
}

func TestRunner_ReleasesEventReferences(t *testing.T) {
	var mu sync.Mutex
	var q Queue
	e := keyEntry()

	q.Push(&InterceptKey{Entry: e})
	q.Push(&DispatchUnhandledKey{Entry: e})
	if e.RefCount() != 3 {
		t.Fatalf("RefCount() after Push = %d, want 3", e.RefCount())
	}

	var during int
	h := HandlerFuncs{
		ExecuteFunc: func(context.Context, Command) (any, error) { return nil, errors.New("nope") },
		CompleteFunc: func(c Command, r Result) {
			during = e.RefCount()
		},
	}
	mu.Lock()
	NewRunner().Drain(context.Background(), &mu, &q, h)
	mu.Unlock()

	if during != 2 {
		t.Errorf("RefCount() during last Complete = %d, want 2", during)
	}
	if e.RefCount() != 1 {
		t.Errorf("RefCount() after drain = %d, want 1", e.RefCount())
	}
}

func TestRunner_CancelledContextSkips(t *testing.T) {
	var mu sync.Mutex
	var q Queue
	q.Push(&NotifyResponsive{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var res Result
	h := HandlerFuncs{
		ExecuteFunc: func(context.Context, Command) (any, error) {
			t.Error("skipped command must not run")
			return nil, nil
		},
		CompleteFunc: func(c Command, r Result) { res = r },
	}
	r := NewRunner()
	mu.Lock()
	r.Drain(ctx, &mu, &q, h)
	mu.Unlock()

	if !res.Skipped || !errors.Is(res.Error, context.Canceled) {
		t.Errorf("result = %+v", res)
	}
	if r.Stats().Skipped != 1 {
		t.Errorf("Stats().Skipped = %d", r.Stats().Skipped)
	}
}

func TestRunner_Timeout(t *testing.T) {
	var mu sync.Mutex
	var q Queue
	q.Push(&NotifyResponsive{})

	var res Result
	h := HandlerFuncs{
		ExecuteFunc: func(ctx context.Context, c Command) (any, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
		CompleteFunc: func(c Command, r Result) { res = r },
	}
	mu.Lock()
	NewRunner(WithTimeout(10*time.Millisecond)).Drain(context.Background(), &mu, &q, h)
	mu.Unlock()

	if !errors.Is(res.Error, context.DeadlineExceeded) {
		t.Errorf("result error = %v", res.Error)
	}
}

func TestRunner_Spans(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	defer tp.Shutdown(context.Background())

	var mu sync.Mutex
	var q Queue
	q.Push(&NotifyUnresponsive{Token: event.NewToken(), Seq: 9, Reason: "slow"})
	q.Push(&NotifyResponsive{})

	h := HandlerFuncs{
		ExecuteFunc: func(ctx context.Context, c Command) (any, error) {
			if c.Kind() == KindNotifyResponsive {
				return nil, errors.New("broken")
			}
			return nil, nil
		},
	}
	mu.Lock()
	NewRunner(WithTracerProvider(tp)).Drain(context.Background(), &mu, &q, h)
	mu.Unlock()

	spans := sr.Ended()
	if len(spans) != 2 {
		t.Fatalf("got %d spans, want 2", len(spans))
	}
	if spans[0].Name() != "command.notify_unresponsive" {
		t.Errorf("span 0 name = %q", spans[0].Name())
	}
	var sawSeq bool
	for _, kv := range spans[0].Attributes() {
		if kv.Key == "dispatch.seq" && kv.Value.AsInt64() == 9 {
			sawSeq = true
		}
	}
	if !sawSeq {
		t.Error("span 0 missing dispatch.seq attribute")
	}
	if spans[1].Status().Code != codes.Error {
		t.Errorf("span 1 status = %v", spans[1].Status())
	}
}

func TestQueue_Discard(t *testing.T) {
	var q Queue
	e := keyEntry()
	q.Push(&InterceptKey{Entry: e})
	q.Push(&NotifyResponsive{})

	kinds := q.Kinds()
	if len(kinds) != 2 || kinds[0] != KindInterceptKey {
		t.Errorf("Kinds() = %v", kinds)
	}
	if n := q.Discard(); n != 2 {
		t.Errorf("Discard() = %d", n)
	}
	if !q.Empty() || e.RefCount() != 1 {
		t.Errorf("Empty() = %v RefCount() = %d", q.Empty(), e.RefCount())
	}
}
