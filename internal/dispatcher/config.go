package dispatcher

import (
	"time"

	"github.com/dshills/inputdispatch/internal/config"
	"github.com/dshills/inputdispatch/internal/dispatch"
)

// Config holds the dispatcher settings that can change at runtime.
type Config struct {
	// Budgets are the acknowledgment budgets applied when records are sent.
	Budgets dispatch.Budgets

	// NoFocusTimeout is how long a key waits for a focused window before it
	// is dropped.
	NoFocusTimeout time.Duration

	// InjectionTimeout bounds Inject calls that wait for a result.
	InjectionTimeout time.Duration

	// KeyRepeat configures synthesized key repeats.
	KeyRepeat KeyRepeatConfig

	// InboundLimit caps queued inbound entries. Zero means no limit.
	InboundLimit int
}

// KeyRepeatConfig configures synthesized key repeats.
type KeyRepeatConfig struct {
	Enabled  bool
	Delay    time.Duration
	Interval time.Duration
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Budgets:          dispatch.DefaultBudgets(),
		NoFocusTimeout:   5 * time.Second,
		InjectionTimeout: 10 * time.Second,
		KeyRepeat: KeyRepeatConfig{
			Enabled:  true,
			Delay:    400 * time.Millisecond,
			Interval: 50 * time.Millisecond,
		},
	}
}

// ConfigFrom extracts the dispatcher settings from a loaded configuration.
func ConfigFrom(c *config.Config) Config {
	return Config{
		Budgets:          c.Dispatch.Budgets(),
		NoFocusTimeout:   c.Dispatch.NoFocusTimeout.Std(),
		InjectionTimeout: c.Dispatch.InjectionTimeout.Std(),
		KeyRepeat: KeyRepeatConfig{
			Enabled:  c.KeyRepeat.Enabled,
			Delay:    c.KeyRepeat.Delay.Std(),
			Interval: c.KeyRepeat.Interval.Std(),
		},
		InboundLimit: c.Dispatch.InboundLimit,
	}
}

// WithoutKeyRepeat returns a copy of the config with key repeat disabled.
func (c Config) WithoutKeyRepeat() Config {
	c.KeyRepeat.Enabled = false
	return c
}

// WithBudgets returns a copy of the config with the given budgets.
func (c Config) WithBudgets(b dispatch.Budgets) Config {
	c.Budgets = b
	return c
}
