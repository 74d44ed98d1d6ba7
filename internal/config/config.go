// Package config loads the dispatcher configuration.
//
// Configuration is layered: built-in defaults, then an optional TOML file,
// then INPUTD_* environment variables. The result is validated before use
// and can be reloaded while running through a Watcher.
package config

import (
	"fmt"
	"time"

	"github.com/dshills/inputdispatch/internal/dispatch"
)

// EnvPrefix prefixes every environment variable.
const EnvPrefix = "INPUTD_"

// Duration is a time.Duration written as a string such as "5s" in TOML and
// in the environment.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// String returns the duration in time.Duration notation.
func (d Duration) String() string {
	return time.Duration(d).String()
}

// Config is the complete dispatcher configuration.
type Config struct {
	Log       LogConfig       `toml:"log" envPrefix:"LOG_"`
	Dispatch  DispatchConfig  `toml:"dispatch" envPrefix:"DISPATCH_"`
	KeyRepeat KeyRepeatConfig `toml:"key_repeat" envPrefix:"KEY_REPEAT_"`
	Policy    PolicyConfig    `toml:"policy" envPrefix:"POLICY_"`
	Telemetry TelemetryConfig `toml:"telemetry" envPrefix:"TELEMETRY_"`
	Input     InputConfig     `toml:"input" envPrefix:"INPUT_"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `toml:"level" env:"LEVEL"`
	// Format is text or json.
	Format string `toml:"format" env:"FORMAT"`
}

// DispatchConfig configures the dispatch loop.
type DispatchConfig struct {
	// ForegroundTimeout is the acknowledgment budget of foreground targets.
	ForegroundTimeout Duration `toml:"foreground_timeout" env:"FOREGROUND_TIMEOUT"`
	// BackgroundTimeout is the acknowledgment budget of other targets.
	BackgroundTimeout Duration `toml:"background_timeout" env:"BACKGROUND_TIMEOUT"`
	// NoFocusTimeout is how long a key waits for a focused window.
	NoFocusTimeout Duration `toml:"no_focus_timeout" env:"NO_FOCUS_TIMEOUT"`
	// InjectionTimeout bounds how long an injector waits for its result.
	InjectionTimeout Duration `toml:"injection_timeout" env:"INJECTION_TIMEOUT"`
	// CommandTimeout bounds each policy call.
	CommandTimeout Duration `toml:"command_timeout" env:"COMMAND_TIMEOUT"`
	// InboundLimit caps queued inbound events; zero means unbounded.
	InboundLimit int `toml:"inbound_limit" env:"INBOUND_LIMIT"`
}

// Budgets returns the acknowledgment budgets.
func (c DispatchConfig) Budgets() dispatch.Budgets {
	return dispatch.Budgets{
		Foreground: c.ForegroundTimeout.Std(),
		Background: c.BackgroundTimeout.Std(),
	}
}

// KeyRepeatConfig configures synthesized key repeats.
type KeyRepeatConfig struct {
	Enabled  bool     `toml:"enabled" env:"ENABLED"`
	Delay    Duration `toml:"delay" env:"DELAY"`
	Interval Duration `toml:"interval" env:"INTERVAL"`
}

// PolicyConfig selects the policy implementation.
type PolicyConfig struct {
	// Script is a Lua policy script; empty selects the built-in policy.
	Script      string   `toml:"script" env:"SCRIPT"`
	CallTimeout Duration `toml:"call_timeout" env:"CALL_TIMEOUT"`
}

// TelemetryConfig configures OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled     bool    `toml:"enabled" env:"ENABLED"`
	Endpoint    string  `toml:"endpoint" env:"ENDPOINT"`
	Insecure    bool    `toml:"insecure" env:"INSECURE"`
	ServiceName string  `toml:"service_name" env:"SERVICE_NAME"`
	SampleRatio float64 `toml:"sample_ratio" env:"SAMPLE_RATIO"`
}

// InputConfig configures the terminal reader.
type InputConfig struct {
	// Terminal enables reading keys and mouse events from the terminal.
	Terminal  bool  `toml:"terminal" env:"TERMINAL"`
	DeviceID  int32 `toml:"device_id" env:"DEVICE_ID"`
	DisplayID int32 `toml:"display_id" env:"DISPLAY_ID"`
}

// Default returns the built-in configuration.
func Default() *Config {
	budgets := dispatch.DefaultBudgets()
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Dispatch: DispatchConfig{
			ForegroundTimeout: Duration(budgets.Foreground),
			BackgroundTimeout: Duration(budgets.Background),
			NoFocusTimeout:    Duration(5 * time.Second),
			InjectionTimeout:  Duration(10 * time.Second),
			CommandTimeout:    Duration(2 * time.Second),
		},
		KeyRepeat: KeyRepeatConfig{
			Enabled:  true,
			Delay:    Duration(400 * time.Millisecond),
			Interval: Duration(50 * time.Millisecond),
		},
		Policy: PolicyConfig{
			CallTimeout: Duration(500 * time.Millisecond),
		},
		Telemetry: TelemetryConfig{
			ServiceName: "inputd",
			SampleRatio: 1,
		},
		Input: InputConfig{
			DeviceID: 1,
		},
	}
}

// Validate checks the configuration for inconsistent values.
func (c *Config) Validate() error {
	var errs ValidationErrors

	switch c.Log.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs.add("log.level", c.Log.Level, "must be debug, info, warn or error")
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs.add("log.format", c.Log.Format, "must be text or json")
	}

	if err := c.Dispatch.Budgets().Validate(); err != nil {
		errs.add("dispatch.foreground_timeout", c.Dispatch.ForegroundTimeout, err.Error())
	}
	if c.Dispatch.NoFocusTimeout <= 0 {
		errs.add("dispatch.no_focus_timeout", c.Dispatch.NoFocusTimeout, "must be positive")
	}
	if c.Dispatch.InjectionTimeout <= 0 {
		errs.add("dispatch.injection_timeout", c.Dispatch.InjectionTimeout, "must be positive")
	}
	if c.Dispatch.CommandTimeout < 0 {
		errs.add("dispatch.command_timeout", c.Dispatch.CommandTimeout, "must not be negative")
	}
	if c.Dispatch.InboundLimit < 0 {
		errs.add("dispatch.inbound_limit", c.Dispatch.InboundLimit, "must not be negative")
	}

	if c.KeyRepeat.Enabled {
		if c.KeyRepeat.Delay <= 0 {
			errs.add("key_repeat.delay", c.KeyRepeat.Delay, "must be positive")
		}
		if c.KeyRepeat.Interval <= 0 {
			errs.add("key_repeat.interval", c.KeyRepeat.Interval, "must be positive")
		}
	}

	if c.Policy.CallTimeout < 0 {
		errs.add("policy.call_timeout", c.Policy.CallTimeout, "must not be negative")
	}

	if c.Telemetry.Enabled && c.Telemetry.ServiceName == "" {
		errs.add("telemetry.service_name", c.Telemetry.ServiceName, "required when telemetry is enabled")
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		errs.add("telemetry.sample_ratio", c.Telemetry.SampleRatio, "must be within [0, 1]")
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
