package event

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type recordingInjector struct {
	mu      sync.Mutex
	calls   int
	token   Token
	results []InjectionResult
}

func (r *recordingInjector) InjectionFinished(token Token, result InjectionResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.token = token
	r.results = append(r.results, result)
}

func (r *recordingInjector) snapshot() (int, []InjectionResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls, append([]InjectionResult(nil), r.results...)
}

func isDone(s *InjectionState) bool {
	select {
	case <-s.Done():
		return true
	default:
		return false
	}
}

func TestInjectionState_FirstResultWins(t *testing.T) {
	rec := &recordingInjector{}
	s := NewInjectionState(10, 20, InjectionWaitForResult, WithInjector(rec))

	if s.SetResult(InjectionPending) {
		t.Error("SetResult(PENDING) should be ignored")
	}
	if !s.SetResult(InjectionSucceeded) {
		t.Fatal("first SetResult should succeed")
	}
	if s.SetResult(InjectionFailed) {
		t.Error("second SetResult should be rejected")
	}
	if s.Result() != InjectionSucceeded {
		t.Errorf("Result() = %v, want SUCCEEDED", s.Result())
	}

	s.Release()
	if s.Result() != InjectionSucceeded {
		t.Errorf("Release must not override a final result, got %v", s.Result())
	}

	calls, results := rec.snapshot()
	if calls != 1 || results[0] != InjectionSucceeded {
		t.Errorf("injector calls = %d results = %v", calls, results)
	}
	if rec.token != s.Token() {
		t.Error("injector received the wrong token")
	}
}

func TestInjectionState_WaitModes(t *testing.T) {
	tests := []struct {
		name          string
		mode          InjectionWait
		doneAfterSet  bool
		doneAfterAcks bool
	}{
		{"none", InjectionWaitNone, true, true},
		{"for result", InjectionWaitForResult, true, true},
		{"for finished", InjectionWaitForFinished, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewInjectionState(1, 1, tt.mode)
			s.IncrementPendingForeground()
			s.IncrementPendingForeground()

			if isDone(s) {
				t.Fatal("done before any result")
			}

			s.SetResult(InjectionSucceeded)
			if got := isDone(s); got != tt.doneAfterSet {
				t.Errorf("done after SetResult = %v, want %v", got, tt.doneAfterSet)
			}

			s.DecrementPendingForeground()
			if tt.mode == InjectionWaitForFinished && isDone(s) {
				t.Error("done with one foreground delivery outstanding")
			}

			s.DecrementPendingForeground()
			if got := isDone(s); got != tt.doneAfterAcks {
				t.Errorf("done after acks = %v, want %v", got, tt.doneAfterAcks)
			}
			if s.PendingForeground() != 0 {
				t.Errorf("PendingForeground() = %d", s.PendingForeground())
			}
		})
	}
}

func TestInjectionState_ReleaseWakesFinishedWaiter(t *testing.T) {
	rec := &recordingInjector{}
	s := NewInjectionState(1, 1, InjectionWaitForFinished, WithInjector(rec))
	s.IncrementPendingForeground()
	s.SetResult(InjectionSucceeded)

	if isDone(s) {
		t.Fatal("should wait for the foreground ack")
	}

	s.Release()
	if !isDone(s) {
		t.Fatal("Release should finish the injection")
	}
	if s.Result() != InjectionSucceeded {
		t.Errorf("Result() = %v", s.Result())
	}

	s.Release()
	if calls, _ := rec.snapshot(); calls != 1 {
		t.Errorf("injector called %d times, want 1", calls)
	}
}

func TestInjectionState_ReleasePending(t *testing.T) {
	rec := &recordingInjector{}
	s := NewInjectionState(1, 1, InjectionWaitNone, WithInjector(rec))
	s.Release()

	if s.Result() != InjectionFailed {
		t.Errorf("Result() = %v, want FAILED", s.Result())
	}
	if _, results := rec.snapshot(); len(results) != 1 || results[0] != InjectionFailed {
		t.Errorf("injector results = %v", results)
	}
}

func TestInjectionState_DecrementBelowZero(t *testing.T) {
	s := NewInjectionState(1, 1, InjectionWaitForFinished)
	defer func() {
		r := recover()
		err, ok := r.(error)
		if !ok || !errors.Is(err, ErrInvariant) {
			t.Errorf("expected invariant panic, got %v", r)
		}
	}()
	s.DecrementPendingForeground()
}

func TestInjectionState_Wait(t *testing.T) {
	t.Run("completes", func(t *testing.T) {
		s := NewInjectionState(1, 1, InjectionWaitForResult)
		go func() {
			time.Sleep(5 * time.Millisecond)
			s.SetResult(InjectionPermissionDenied)
		}()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		res, err := s.Wait(ctx)
		if err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
		if res != InjectionPermissionDenied {
			t.Errorf("Wait() = %v", res)
		}
	})

	t.Run("times out", func(t *testing.T) {
		s := NewInjectionState(1, 1, InjectionWaitForResult)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
		defer cancel()

		res, err := s.Wait(ctx)
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("Wait() error = %v", err)
		}
		if res != InjectionTimedOut {
			t.Errorf("Wait() = %v, want TIMED_OUT", res)
		}
		if s.Result() != InjectionPending {
			t.Error("a waiter timing out must not change the result")
		}
	})
}

func TestInjectionState_Accessors(t *testing.T) {
	tok := NewToken()
	s := NewInjectionState(42, 7, InjectionWaitForFinished, WithInjectionToken(tok))
	if s.Token() != tok || s.PID() != 42 || s.UID() != 7 || s.Mode() != InjectionWaitForFinished {
		t.Errorf("unexpected accessors: %s %d %d %v", s.Token(), s.PID(), s.UID(), s.Mode())
	}
	if InjectionWaitForFinished.String() != "finished" {
		t.Errorf("String() = %q", InjectionWaitForFinished.String())
	}
	if InjectionTimedOut.String() != "TIMED_OUT" {
		t.Errorf("String() = %q", InjectionTimedOut.String())
	}
}
