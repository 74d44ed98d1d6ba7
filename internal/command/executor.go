package command

import (
	"context"
	"runtime/debug"
	"time"
)

// Func runs a command.
type Func func(ctx context.Context, c Command) (any, error)

// PanicHandler is called when a command panics. It receives the command, the
// panic value and the stack trace.
type PanicHandler func(c Command, panicValue any, stack []byte)

// Result is the outcome of running a command.
type Result struct {
	// Success is true if the command completed without error or panic.
	Success bool

	// Value is what the command returned on success.
	Value any

	// Error is the error returned by the command, if any.
	Error error

	// Panicked is true if the command panicked.
	Panicked bool

	// PanicValue is the value passed to panic(), if Panicked is true.
	PanicValue any

	// PanicStack is the stack trace at the point of panic.
	PanicStack []byte

	// Duration is how long the command took to run.
	Duration time.Duration

	// Skipped is true if the command was not run because ctx was done.
	Skipped bool
}

// IsSuccess returns true if the command completed successfully.
func (r Result) IsSuccess() bool {
	return r.Success && !r.Panicked && r.Error == nil
}

// IsError returns true if the command returned an error.
func (r Result) IsError() bool {
	return r.Error != nil && !r.Panicked
}

// IsPanic returns true if the command panicked.
func (r Result) IsPanic() bool {
	return r.Panicked
}

// Err returns the failure as an error, or nil on success.
func (r Result) Err(kind Kind) error {
	if r.Panicked {
		return &PanicError{Kind: kind, Value: r.PanicValue, Stack: r.PanicStack}
	}
	return r.Error
}

// Executor runs commands with panic recovery and timing.
type Executor struct {
	panicHandler PanicHandler
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithPanicHandler sets the panic handler for the executor.
func WithPanicHandler(h PanicHandler) ExecutorOption {
	return func(e *Executor) {
		e.panicHandler = h
	}
}

// NewExecutor creates a new executor with the given options.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs fn for c. Panics are recovered into the Result.
func (e *Executor) Execute(ctx context.Context, c Command, fn Func) (result Result) {
	select {
	case <-ctx.Done():
		return Result{Error: ctx.Err(), Skipped: true}
	default:
	}

	start := time.Now()
	defer func() {
		result.Duration = time.Since(start)

		if r := recover(); r != nil {
			stack := debug.Stack()
			result = Result{
				Panicked:   true,
				PanicValue: r,
				PanicStack: stack,
				Duration:   result.Duration,
			}

			if e.panicHandler != nil {
				func() {
					defer func() {
						_ = recover()
					}()
					e.panicHandler(c, r, stack)
				}()
			}
		}
	}()

	value, err := fn(ctx, c)
	if err != nil {
		result.Error = err
		return result
	}
	result.Success = true
	result.Value = value
	return result
}

// ExecuteWithTimeout runs fn with a deadline. fn must honor ctx for the
// timeout to have any effect.
func (e *Executor) ExecuteWithTimeout(ctx context.Context, c Command, fn Func, timeout time.Duration) Result {
	if timeout <= 0 {
		return e.Execute(ctx, c, fn)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return e.Execute(ctx, c, fn)
}
