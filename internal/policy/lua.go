package policy

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/inputdispatch/internal/event"
	"github.com/dshills/inputdispatch/internal/logging"
)

// Hook names looked up in a policy script. Every hook is optional; a missing
// hook falls back to the fallback policy.
const (
	HookInterceptKey         = "intercept_key"
	HookUnresponsive         = "on_unresponsive"
	HookResponsive           = "on_responsive"
	HookNoFocusedWindow      = "on_no_focused_window"
	HookFocusChanged         = "on_focus_changed"
	HookUserActivity         = "on_user_activity"
	HookConfigurationChanged = "on_configuration_changed"
	HookUntrustedTouch       = "on_untrusted_touch"
	HookConnectionBroken     = "on_connection_broken"
	HookUnhandledKey         = "on_unhandled_key"
)

// DefaultLuaCallTimeout bounds each hook call unless WithCallTimeout says
// otherwise.
const DefaultLuaCallTimeout = 500 * time.Millisecond

// Lua is a Policy scripted in Lua.
//
// intercept_key(key) returns "skip", "continue" or a delay in milliseconds to
// try again later. A negative delay skips the key and zero continues.
// on_unresponsive(token, reason) returns an extension in milliseconds or nil.
// on_unhandled_key(token, key) returns true when the key was consumed. The
// remaining hooks are notifications and their results are ignored. Key tables
// carry key_code, code, scan_code, action, meta, repeat_count, device_id,
// display_id, injected and synthesized.
//
// gopher-lua states are single threaded, so calls are serialized.
type Lua struct {
	mu       sync.Mutex
	state    *lua.LState
	closed   bool
	timeout  time.Duration
	fallback Policy
	logger   *logging.Logger
}

var _ Policy = (*Lua)(nil)

// LuaOption configures a Lua policy.
type LuaOption func(*Lua)

// WithCallTimeout bounds each hook call. Zero means only the caller's
// context applies.
func WithCallTimeout(d time.Duration) LuaOption {
	return func(p *Lua) {
		p.timeout = d
	}
}

// WithFallback sets the policy used for hooks the script does not define.
func WithFallback(fallback Policy) LuaOption {
	return func(p *Lua) {
		p.fallback = fallback
	}
}

// WithLuaLogger sets the logger behind the script's log function.
func WithLuaLogger(l *logging.Logger) LuaOption {
	return func(p *Lua) {
		p.logger = l
	}
}

// NewLua compiles and runs source, which defines the hooks.
func NewLua(source string, opts ...LuaOption) (*Lua, error) {
	p := newLua(opts)
	if err := p.do(func() error { return p.state.DoString(source) }); err != nil {
		p.state.Close()
		return nil, fmt.Errorf("load policy script: %w", err)
	}
	return p, nil
}

// LoadLua runs the script at path, which defines the hooks.
func LoadLua(path string, opts ...LuaOption) (*Lua, error) {
	p := newLua(opts)
	if err := p.do(func() error { return p.state.DoFile(path) }); err != nil {
		p.state.Close()
		return nil, fmt.Errorf("load policy script %s: %w", path, err)
	}
	return p, nil
}

func newLua(opts []LuaOption) *Lua {
	p := &Lua{
		timeout:  DefaultLuaCallTimeout,
		fallback: Nop{},
		logger:   logging.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.WithComponent("policy.lua")

	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require"} {
		L.SetGlobal(name, lua.LNil)
	}
	L.SetGlobal("log", L.NewFunction(p.luaLog))
	p.state = L
	return p
}

// luaLog implements log(level, message) for scripts.
func (p *Lua) luaLog(L *lua.LState) int {
	level := logging.ParseLevel(L.CheckString(1))
	msg := L.OptString(2, "")
	switch level {
	case logging.LevelDebug:
		p.logger.Debug("%s", msg)
	case logging.LevelWarn:
		p.logger.Warn("%s", msg)
	case logging.LevelError:
		p.logger.Error("%s", msg)
	default:
		p.logger.Info("%s", msg)
	}
	return 0
}

// Close releases the Lua state. Later calls return ErrClosed.
func (p *Lua) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.state.Close()
	p.closed = true
	return nil
}

// Has reports whether the script defines hook.
func (p *Lua) Has(hook string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.closed && p.state.GetGlobal(hook).Type() == lua.LTFunction
}

func (p *Lua) do(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()
	return fn()
}

// call invokes hook and returns its first result. found is false when the
// script does not define the hook.
func (p *Lua) call(ctx context.Context, hook string, args ...lua.LValue) (ret lua.LValue, found bool, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return lua.LNil, false, ErrClosed
	}

	fn := p.state.GetGlobal(hook)
	if fn == lua.LNil {
		return lua.LNil, false, nil
	}
	if fn.Type() != lua.LTFunction {
		return lua.LNil, true, fmt.Errorf("%s is not a function (got %s)", hook, fn.Type())
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	p.state.SetContext(ctx)
	defer p.state.RemoveContext()

	top := p.state.GetTop()
	err = p.do(func() error {
		p.state.Push(fn)
		for _, a := range args {
			p.state.Push(a)
		}
		return p.state.PCall(len(args), 1, nil)
	})
	if err != nil {
		p.state.SetTop(top)
		return lua.LNil, true, fmt.Errorf("%s: %w", hook, err)
	}
	ret = p.state.Get(-1)
	p.state.SetTop(top)
	return ret, true, nil
}

func (p *Lua) keyTable(e *event.Entry) *lua.LTable {
	t := p.state.NewTable()
	if k, ok := e.Key(); ok {
		t.RawSetString("key_code", lua.LString(k.KeyCode.String()))
		t.RawSetString("code", lua.LNumber(k.KeyCode))
		t.RawSetString("scan_code", lua.LNumber(k.ScanCode))
		t.RawSetString("action", lua.LString(k.Action.String()))
		t.RawSetString("meta", lua.LString(k.MetaState.String()))
		t.RawSetString("repeat_count", lua.LNumber(k.RepeatCount))
		t.RawSetString("device_id", lua.LNumber(k.DeviceID))
		t.RawSetString("display_id", lua.LNumber(k.DisplayID))
	}
	t.RawSetString("injected", lua.LBool(e.IsInjected()))
	t.RawSetString("synthesized", lua.LBool(e.IsSynthesized()))
	return t
}

func millis(n lua.LNumber) time.Duration {
	return time.Duration(float64(n) * float64(time.Millisecond))
}

// InterceptKeyBeforeDispatching implements Policy.
func (p *Lua) InterceptKeyBeforeDispatching(ctx context.Context, focused event.Token, key *event.Entry) (InterceptDecision, error) {
	p.mu.Lock()
	closed := p.closed
	var tbl lua.LValue = lua.LNil
	if !closed {
		tbl = p.keyTable(key)
	}
	p.mu.Unlock()

	ret, found, err := p.call(ctx, HookInterceptKey, tbl, lua.LString(focused.String()))
	if err != nil {
		return InterceptDecision{}, err
	}
	if !found {
		return p.fallback.InterceptKeyBeforeDispatching(ctx, focused, key)
	}

	switch v := ret.(type) {
	case *lua.LNilType:
		return Continue(), nil
	case lua.LString:
		switch strings.ToLower(string(v)) {
		case "skip":
			return Skip(), nil
		case "continue":
			return Continue(), nil
		}
	case lua.LNumber:
		switch {
		case v < 0:
			return Skip(), nil
		case v == 0:
			return Continue(), nil
		}
		return TryAgainLater(millis(v)), nil
	}
	return InterceptDecision{}, fmt.Errorf("%w: %s returned %s", ErrBadReturn, HookInterceptKey, ret.String())
}

// NotifyUnresponsive implements Policy.
func (p *Lua) NotifyUnresponsive(ctx context.Context, token event.Token, reason string) (time.Duration, error) {
	ret, found, err := p.call(ctx, HookUnresponsive, lua.LString(token.String()), lua.LString(reason))
	if err != nil {
		return 0, err
	}
	if !found {
		return p.fallback.NotifyUnresponsive(ctx, token, reason)
	}
	switch v := ret.(type) {
	case *lua.LNilType:
		return 0, nil
	case lua.LNumber:
		if v <= 0 {
			return 0, nil
		}
		return millis(v), nil
	}
	return 0, fmt.Errorf("%w: %s returned %s", ErrBadReturn, HookUnresponsive, ret.String())
}

// DispatchUnhandledKey implements Policy.
func (p *Lua) DispatchUnhandledKey(ctx context.Context, token event.Token, key *event.Entry) (bool, error) {
	p.mu.Lock()
	var tbl lua.LValue = lua.LNil
	if !p.closed {
		tbl = p.keyTable(key)
	}
	p.mu.Unlock()

	ret, found, err := p.call(ctx, HookUnhandledKey, lua.LString(token.String()), tbl)
	if err != nil {
		return false, err
	}
	if !found {
		return p.fallback.DispatchUnhandledKey(ctx, token, key)
	}
	return lua.LVAsBool(ret), nil
}

// notify calls a notification hook, or fallback when it is missing.
func (p *Lua) notify(ctx context.Context, hook string, fallback func() error, args ...lua.LValue) error {
	_, found, err := p.call(ctx, hook, args...)
	if err != nil {
		return err
	}
	if !found {
		return fallback()
	}
	return nil
}

// NotifyResponsive implements Policy.
func (p *Lua) NotifyResponsive(ctx context.Context, token event.Token) error {
	return p.notify(ctx, HookResponsive, func() error {
		return p.fallback.NotifyResponsive(ctx, token)
	}, lua.LString(token.String()))
}

// NotifyNoFocusedWindow implements Policy.
func (p *Lua) NotifyNoFocusedWindow(ctx context.Context, app ApplicationHandle) error {
	return p.notify(ctx, HookNoFocusedWindow, func() error {
		return p.fallback.NotifyNoFocusedWindow(ctx, app)
	}, lua.LString(app.Name), lua.LString(app.Token.String()))
}

// NotifyFocusChanged implements Policy.
func (p *Lua) NotifyFocusChanged(ctx context.Context, oldToken, newToken event.Token, reason string) error {
	return p.notify(ctx, HookFocusChanged, func() error {
		return p.fallback.NotifyFocusChanged(ctx, oldToken, newToken, reason)
	}, lua.LString(oldToken.String()), lua.LString(newToken.String()), lua.LString(reason))
}

// PokeUserActivity implements Policy.
func (p *Lua) PokeUserActivity(ctx context.Context, eventTime time.Time, displayID int32, activity UserActivity) error {
	return p.notify(ctx, HookUserActivity, func() error {
		return p.fallback.PokeUserActivity(ctx, eventTime, displayID, activity)
	}, lua.LNumber(eventTime.UnixMilli()), lua.LNumber(displayID), lua.LString(activity.String()))
}

// NotifyConfigurationChanged implements Policy.
func (p *Lua) NotifyConfigurationChanged(ctx context.Context, eventTime time.Time) error {
	return p.notify(ctx, HookConfigurationChanged, func() error {
		return p.fallback.NotifyConfigurationChanged(ctx, eventTime)
	}, lua.LNumber(eventTime.UnixMilli()))
}

// NotifyUntrustedTouch implements Policy.
func (p *Lua) NotifyUntrustedTouch(ctx context.Context, obscuringPackage string) error {
	return p.notify(ctx, HookUntrustedTouch, func() error {
		return p.fallback.NotifyUntrustedTouch(ctx, obscuringPackage)
	}, lua.LString(obscuringPackage))
}

// NotifyConnectionBroken implements Policy.
func (p *Lua) NotifyConnectionBroken(ctx context.Context, token event.Token) error {
	return p.notify(ctx, HookConnectionBroken, func() error {
		return p.fallback.NotifyConnectionBroken(ctx, token)
	}, lua.LString(token.String()))
}
