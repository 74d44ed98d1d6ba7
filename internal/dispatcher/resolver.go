package dispatcher

import (
	"sync"

	"gioui.org/f32"

	"github.com/dshills/inputdispatch/internal/dispatch"
	"github.com/dshills/inputdispatch/internal/event"
	"github.com/dshills/inputdispatch/internal/policy"
)

// Target is one connection an entry should be delivered to.
type Target struct {
	Token       event.Token
	Flags       dispatch.TargetFlags
	Transform   f32.Affine2D
	GlobalScale float32

	// OwnerUID is the user owning the target window. Injected entries from
	// another non-zero uid are refused. Zero disables the check.
	OwnerUID int32

	// ObscuringPackage names the window covering the target, if any. A
	// target flagged WindowIsObscured with an obscuring package is an
	// untrusted touch and is not delivered to.
	ObscuringPackage string
}

// TargetResolver chooses the targets of key and motion entries. It is
// called with the dispatcher lock held and must not block or call back into
// the dispatcher. focused is the token most recently passed to SetFocus.
//
// Returning a *NoFocusedWindowError makes the dispatcher hold a key until a
// window gains focus or the no-focus timeout expires.
type TargetResolver interface {
	ResolveTargets(e *event.Entry, focused event.Token) ([]Target, error)
}

// TargetResolverFunc is a function adapter for TargetResolver.
type TargetResolverFunc func(e *event.Entry, focused event.Token) ([]Target, error)

// ResolveTargets implements TargetResolver.
func (f TargetResolverFunc) ResolveTargets(e *event.Entry, focused event.Token) ([]Target, error) {
	return f(e, focused)
}

// FocusResolver delivers every key and motion entry to the focused
// connection as a foreground target. Without focus it reports the
// configured application as having no focused window. It is safe for
// concurrent use.
type FocusResolver struct {
	mu          sync.Mutex
	application policy.ApplicationHandle
	transform   f32.Affine2D
	scale       float32
}

// NewFocusResolver creates a resolver for app.
func NewFocusResolver(app policy.ApplicationHandle) *FocusResolver {
	return &FocusResolver{application: app, scale: 1}
}

// SetTransform sets the transform and scale given to every target.
func (r *FocusResolver) SetTransform(t f32.Affine2D, scale float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transform = t
	r.scale = scale
}

// ResolveTargets implements TargetResolver.
func (r *FocusResolver) ResolveTargets(_ *event.Entry, focused event.Token) ([]Target, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if focused.IsZero() {
		return nil, &NoFocusedWindowError{Application: r.application}
	}
	return []Target{{
		Token:       focused,
		Flags:       dispatch.TargetForeground | dispatch.TargetDispatchAsIs,
		Transform:   r.transform,
		GlobalScale: r.scale,
	}}, nil
}
