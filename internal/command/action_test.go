package command

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dshills/inputdispatch/internal/event"
	"github.com/dshills/inputdispatch/internal/policy"
)

type recordingPolicy struct {
	policy.Nop
	calls []string
}

func (p *recordingPolicy) InterceptKeyBeforeDispatching(context.Context, event.Token, *event.Entry) (policy.InterceptDecision, error) {
	p.calls = append(p.calls, "intercept")
	return policy.TryAgainLater(time.Second), nil
}

func (p *recordingPolicy) NotifyUnresponsive(_ context.Context, _ event.Token, reason string) (time.Duration, error) {
	p.calls = append(p.calls, "unresponsive:"+reason)
	return 2 * time.Second, nil
}

func (p *recordingPolicy) NotifyFocusChanged(context.Context, event.Token, event.Token, string) error {
	p.calls = append(p.calls, "focus")
	return errors.New("broadcast failed")
}

func (p *recordingPolicy) DispatchUnhandledKey(context.Context, event.Token, *event.Entry) (bool, error) {
	p.calls = append(p.calls, "unhandled")
	return true, nil
}

type bogusCommand struct{}

func (bogusCommand) Kind() Kind { return Kind(99) }
func (bogusCommand) command()   {}

func TestPolicyAction(t *testing.T) {
	p := &recordingPolicy{}
	run := PolicyAction(p)
	ctx := context.Background()

	v, err := run(ctx, &InterceptKey{Entry: keyEntry()})
	if d, ok := v.(policy.InterceptDecision); err != nil || !ok || d.Result != event.InterceptTryAgainLater || d.Delay != time.Second {
		t.Errorf("InterceptKey = %v, %v", v, err)
	}

	v, err = run(ctx, &NotifyUnresponsive{Reason: "slow"})
	if d, ok := v.(time.Duration); err != nil || !ok || d != 2*time.Second {
		t.Errorf("NotifyUnresponsive = %v, %v", v, err)
	}

	if _, err := run(ctx, &NotifyFocusChanged{}); err == nil {
		t.Error("expected focus broadcast error")
	}

	v, err = run(ctx, &DispatchUnhandledKey{Entry: keyEntry()})
	if b, ok := v.(bool); err != nil || !ok || !b {
		t.Errorf("DispatchUnhandledKey = %v, %v", v, err)
	}

	notifications := []Command{
		&NotifyNoFocusedWindow{},
		&NotifyResponsive{},
		&PokeUserActivity{Activity: policy.UserActivityButton},
		&NotifyConfigurationChanged{},
		&NotifyUntrustedTouch{ObscuringPackage: "overlay"},
		&NotifyConnectionBroken{},
	}
	for _, c := range notifications {
		if v, err := run(ctx, c); v != nil || err != nil {
			t.Errorf("%s = %v, %v", c.Kind(), v, err)
		}
	}

	if _, err := run(ctx, bogusCommand{}); !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("unknown command error = %v", err)
	}

	want := []string{"intercept", "unresponsive:slow", "focus", "unhandled"}
	if len(p.calls) != len(want) {
		t.Fatalf("calls = %v", p.calls)
	}
	for i := range want {
		if p.calls[i] != want[i] {
			t.Errorf("call %d = %q, want %q", i, p.calls[i], want[i])
		}
	}
}

func TestKind_String(t *testing.T) {
	if KindInterceptKey.String() != "intercept_key" {
		t.Errorf("String() = %q", KindInterceptKey.String())
	}
	if Kind(99).String() != "kind(99)" {
		t.Errorf("String() = %q", Kind(99).String())
	}
}
