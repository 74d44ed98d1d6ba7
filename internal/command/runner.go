package command

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation name used for command spans.
const TracerName = "github.com/dshills/inputdispatch/internal/command"

// Handler runs and completes commands for a Runner.
type Handler interface {
	// Execute runs c without the dispatch lock. It may block.
	Execute(ctx context.Context, c Command) (any, error)

	// Complete consumes the result of c with the dispatch lock held. It must
	// not block.
	Complete(c Command, r Result)
}

// HandlerFuncs adapts a pair of functions to Handler. A nil CompleteFunc
// ignores results.
type HandlerFuncs struct {
	ExecuteFunc  Func
	CompleteFunc func(c Command, r Result)
}

// Execute implements Handler.
func (h HandlerFuncs) Execute(ctx context.Context, c Command) (any, error) {
	return h.ExecuteFunc(ctx, c)
}

// Complete implements Handler.
func (h HandlerFuncs) Complete(c Command, r Result) {
	if h.CompleteFunc != nil {
		h.CompleteFunc(c, r)
	}
}

// Stats are cumulative runner counters.
type Stats struct {
	Drains    uint64
	Executed  uint64
	Failed    uint64
	Panicked  uint64
	Skipped   uint64
	TotalTime time.Duration
}

// Runner drains command queues.
type Runner struct {
	executor *Executor
	tracer   trace.Tracer
	timeout  time.Duration

	draining atomic.Bool

	drains    atomic.Uint64
	executed  atomic.Uint64
	failed    atomic.Uint64
	panicked  atomic.Uint64
	skipped   atomic.Uint64
	totalTime atomic.Int64
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithExecutor sets the executor used to run commands.
func WithExecutor(e *Executor) RunnerOption {
	return func(r *Runner) {
		r.executor = e
	}
}

// WithTracerProvider sets the provider for command spans.
func WithTracerProvider(tp trace.TracerProvider) RunnerOption {
	return func(r *Runner) {
		r.tracer = tp.Tracer(TracerName)
	}
}

// WithTimeout bounds each command execution. Zero means no bound.
func WithTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) {
		r.timeout = d
	}
}

// NewRunner creates a runner.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		executor: NewExecutor(),
		tracer:   otel.Tracer(TracerName),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Drain runs the commands queued in q when it is called. mu must be held by
// the caller; it is released exactly once around each execution and held
// again when Complete runs and when Drain returns. It returns the number of
// commands run.
func (r *Runner) Drain(ctx context.Context, mu sync.Locker, q *Queue, h Handler) int {
	if !r.draining.CompareAndSwap(false, true) {
		panic(&InvariantError{Op: "Drain", Msg: "commands may not drain commands"})
	}
	defer r.draining.Store(false)

	cmds := q.take()
	if len(cmds) == 0 {
		return 0
	}
	r.drains.Add(1)

	for _, c := range cmds {
		res := r.runUnlocked(ctx, mu, c, h)
		r.record(res)
		func() {
			defer release(c)
			h.Complete(c, res)
		}()
	}
	return len(cmds)
}

// Draining reports whether a drain is in progress.
func (r *Runner) Draining() bool {
	return r.draining.Load()
}

// runUnlocked releases mu, runs c and reacquires mu, even if running c
// panics past the executor.
func (r *Runner) runUnlocked(ctx context.Context, mu sync.Locker, c Command, h Handler) Result {
	mu.Unlock()
	defer mu.Lock()

	ctx, span := r.tracer.Start(ctx, "command."+c.Kind().String(),
		trace.WithAttributes(attributes(c)...))
	defer span.End()

	res := r.executor.ExecuteWithTimeout(ctx, c, h.Execute, r.timeout)

	span.SetAttributes(
		attribute.Bool("command.skipped", res.Skipped),
		attribute.Int64("command.duration_us", res.Duration.Microseconds()),
	)
	if err := res.Err(c.Kind()); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	return res
}

func (r *Runner) record(res Result) {
	r.executed.Add(1)
	r.totalTime.Add(int64(res.Duration))
	switch {
	case res.Skipped:
		r.skipped.Add(1)
	case res.Panicked:
		r.panicked.Add(1)
	case res.Error != nil:
		r.failed.Add(1)
	}
}

// Stats returns a snapshot of the runner counters.
func (r *Runner) Stats() Stats {
	return Stats{
		Drains:    r.drains.Load(),
		Executed:  r.executed.Load(),
		Failed:    r.failed.Load(),
		Panicked:  r.panicked.Load(),
		Skipped:   r.skipped.Load(),
		TotalTime: time.Duration(r.totalTime.Load()),
	}
}

func attributes(c Command) []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.String("command.kind", c.Kind().String())}
	switch c := c.(type) {
	case *InterceptKey:
		attrs = append(attrs, attribute.String("event.id", idString(c.Entry)))
	case *NotifyUnresponsive:
		attrs = append(attrs,
			attribute.String("connection.token", c.Token.String()),
			attribute.Int64("dispatch.seq", int64(c.Seq)),
			attribute.String("reason", c.Reason))
	case *NotifyResponsive:
		attrs = append(attrs, attribute.String("connection.token", c.Token.String()))
	case *NotifyConnectionBroken:
		attrs = append(attrs, attribute.String("connection.token", c.Token.String()))
	case *NotifyFocusChanged:
		attrs = append(attrs,
			attribute.String("focus.old", c.OldToken.String()),
			attribute.String("focus.new", c.NewToken.String()))
	case *DispatchUnhandledKey:
		attrs = append(attrs,
			attribute.String("connection.token", c.Token.String()),
			attribute.Int64("dispatch.seq", int64(c.Seq)))
	}
	return attrs
}
