package event

import (
	"context"
	"sync"
)

// InjectionResult is the outcome of an injection.
type InjectionResult int

const (
	// InjectionPending means no final outcome yet.
	InjectionPending InjectionResult = iota

	// InjectionSucceeded means the entry was dispatched.
	InjectionSucceeded

	// InjectionFailed means the entry was dropped.
	InjectionFailed

	// InjectionPermissionDenied means the injector may not target the window.
	InjectionPermissionDenied

	// InjectionTimedOut means the injector stopped waiting.
	InjectionTimedOut
)

// String returns the result name.
func (r InjectionResult) String() string {
	switch r {
	case InjectionPending:
		return "PENDING"
	case InjectionSucceeded:
		return "SUCCEEDED"
	case InjectionFailed:
		return "FAILED"
	case InjectionPermissionDenied:
		return "PERMISSION_DENIED"
	case InjectionTimedOut:
		return "TIMED_OUT"
	default:
		return "UNKNOWN"
	}
}

// InjectionWait selects how long an injector waits.
type InjectionWait int

const (
	// InjectionWaitNone returns as soon as the entry is queued.
	InjectionWaitNone InjectionWait = iota

	// InjectionWaitForResult waits until the entry is dispatched or dropped.
	InjectionWaitForResult

	// InjectionWaitForFinished also waits for every foreground delivery to be
	// acknowledged.
	InjectionWaitForFinished
)

// String returns the wait mode name.
func (w InjectionWait) String() string {
	switch w {
	case InjectionWaitNone:
		return "none"
	case InjectionWaitForResult:
		return "result"
	case InjectionWaitForFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Injector receives the final outcome of an injection. InjectionFinished is
// called exactly once and must not block or call back into the dispatcher.
type Injector interface {
	InjectionFinished(token Token, result InjectionResult)
}

// InjectorFunc is a function adapter for Injector.
type InjectorFunc func(token Token, result InjectionResult)

// InjectionFinished implements Injector.
func (f InjectorFunc) InjectionFinished(token Token, result InjectionResult) {
	f(token, result)
}

// InjectionState tracks the completion of one injected entry.
// It is safe for concurrent use.
type InjectionState struct {
	token    Token
	pid      int32
	uid      int32
	mode     InjectionWait
	injector Injector

	mu                sync.Mutex
	result            InjectionResult
	pendingForeground int
	released          bool
	finished          bool
	done              chan struct{}
}

// InjectionOption configures an InjectionState.
type InjectionOption func(*InjectionState)

// WithInjector sets the collaborator notified of the final outcome.
func WithInjector(i Injector) InjectionOption {
	return func(s *InjectionState) {
		s.injector = i
	}
}

// WithInjectionToken sets the injector token. A fresh token is used otherwise.
func WithInjectionToken(t Token) InjectionOption {
	return func(s *InjectionState) {
		s.token = t
	}
}

// NewInjectionState creates the state for an injection by pid/uid.
func NewInjectionState(pid, uid int32, mode InjectionWait, opts ...InjectionOption) *InjectionState {
	s := &InjectionState{
		token: NewToken(),
		pid:   pid,
		uid:   uid,
		mode:  mode,
		done:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Token returns the injector token.
func (s *InjectionState) Token() Token { return s.token }

// PID returns the injector process id.
func (s *InjectionState) PID() int32 { return s.pid }

// UID returns the injector user id.
func (s *InjectionState) UID() int32 { return s.uid }

// Mode returns the wait mode.
func (s *InjectionState) Mode() InjectionWait { return s.mode }

// Result returns the current result.
func (s *InjectionState) Result() InjectionResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// PendingForeground returns the number of unacknowledged foreground deliveries.
func (s *InjectionState) PendingForeground() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingForeground
}

// SetResult records the final result. Only the first final result sticks;
// it returns false if a result was already set or r is InjectionPending.
func (s *InjectionState) SetResult(r InjectionResult) bool {
	if r == InjectionPending {
		return false
	}

	s.mu.Lock()
	if s.result != InjectionPending {
		s.mu.Unlock()
		return false
	}
	s.result = r
	notify := s.checkFinishedLocked()
	s.mu.Unlock()

	s.notify(notify)
	return true
}

// IncrementPendingForeground records a foreground delivery awaiting an ack.
func (s *InjectionState) IncrementPendingForeground() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingForeground++
}

// DecrementPendingForeground records that a foreground delivery finished.
func (s *InjectionState) DecrementPendingForeground() {
	s.mu.Lock()
	if s.pendingForeground == 0 {
		s.mu.Unlock()
		invariant("DecrementPendingForeground", "counter would go negative for injector %s", s.token)
	}
	s.pendingForeground--
	notify := s.checkFinishedLocked()
	s.mu.Unlock()

	s.notify(notify)
}

// Release is called when the last entry referencing the state is gone, on
// completion, failure or dispatcher shutdown. A still pending result becomes
// InjectionFailed and waiters are woken.
func (s *InjectionState) Release() {
	s.mu.Lock()
	s.released = true
	if s.result == InjectionPending {
		s.result = InjectionFailed
	}
	notify := s.checkFinishedLocked()
	s.mu.Unlock()

	s.notify(notify)
}

// Done returns a channel closed once the injection has finished according to
// its wait mode.
func (s *InjectionState) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the injection finishes or ctx ends. When ctx ends first
// it returns InjectionTimedOut and the context error.
func (s *InjectionState) Wait(ctx context.Context) (InjectionResult, error) {
	select {
	case <-s.done:
		return s.Result(), nil
	case <-ctx.Done():
		return InjectionTimedOut, ctx.Err()
	}
}

// checkFinishedLocked closes done when the wait condition is met and reports
// whether the injector must be notified.
func (s *InjectionState) checkFinishedLocked() bool {
	if s.finished || s.result == InjectionPending {
		return false
	}
	if s.mode == InjectionWaitForFinished && s.pendingForeground > 0 && !s.released {
		return false
	}
	s.finished = true
	close(s.done)
	return true
}

func (s *InjectionState) notify(ok bool) {
	if ok && s.injector != nil {
		s.injector.InjectionFinished(s.token, s.Result())
	}
}
