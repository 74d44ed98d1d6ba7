// Package app wires the input dispatcher to its collaborators and runs it.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/gdamore/tcell/v2"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/inputdispatch/internal/command"
	"github.com/dshills/inputdispatch/internal/config"
	"github.com/dshills/inputdispatch/internal/dispatcher"
	"github.com/dshills/inputdispatch/internal/input"
	"github.com/dshills/inputdispatch/internal/logging"
	"github.com/dshills/inputdispatch/internal/policy"
	"github.com/dshills/inputdispatch/internal/telemetry"
)

// Options configures the application.
type Options struct {
	// ConfigPath is the TOML configuration file. Empty uses defaults and
	// environment overrides only.
	ConfigPath string

	// Watch reloads the configuration file when it changes.
	Watch bool

	// LogLevel overrides the configured log level when set.
	LogLevel string

	// LogOutput receives log lines. Defaults to stderr.
	LogOutput io.Writer

	// Terminal overrides the configured terminal reader setting when set.
	Terminal *bool

	// Screen replaces the controlling terminal for the reader.
	Screen tcell.Screen

	// ConsoleName names the in-process client connection.
	ConsoleName string

	// Handle decides whether the console handled a delivery.
	Handle HandleFunc
}

// Application owns the dispatcher and every component around it.
type Application struct {
	opts Options

	mu     sync.Mutex
	config *config.Config
	cancel context.CancelFunc

	logger            *logging.Logger
	tracerProvider    trace.TracerProvider
	shutdownTelemetry telemetry.ShutdownFunc
	policy            policy.Policy
	dispatcher        *dispatcher.Dispatcher
	console           *Console
	reader            *input.Reader
	watcher           *config.Watcher

	running atomic.Bool
	closed  atomic.Bool
}

// New loads the configuration and builds every component.
func New(ctx context.Context, opts Options) (*Application, error) {
	if opts.ConsoleName == "" {
		opts.ConsoleName = "console"
	}
	app := &Application{opts: opts}
	if err := app.bootstrap(ctx); err != nil {
		app.Close(ctx)
		return nil, err
	}
	return app, nil
}

// bootstrap initializes components in dependency order.
func (app *Application) bootstrap(ctx context.Context) error {
	cfg, err := config.Load(app.opts.ConfigPath)
	if err != nil {
		return &InitError{Component: "config", Err: err}
	}
	if app.opts.LogLevel != "" {
		cfg.Log.Level = app.opts.LogLevel
	}
	app.config = cfg

	app.logger = logging.New(logging.Config{
		Level:  logging.ParseLevel(cfg.Log.Level),
		Format: logging.ParseFormat(cfg.Log.Format),
		Output: app.opts.LogOutput,
		Prefix: "inputd",
	})

	tp, shutdown, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		return &InitError{Component: "telemetry", Err: err}
	}
	app.tracerProvider, app.shutdownTelemetry = tp, shutdown

	if app.policy, err = app.loadPolicy(cfg.Policy); err != nil {
		return &InitError{Component: "policy", Err: err}
	}

	runner := command.NewRunner(
		command.WithTracerProvider(tp),
		command.WithTimeout(cfg.Dispatch.CommandTimeout.Std()),
	)
	resolver := dispatcher.NewFocusResolver(policy.ApplicationHandle{
		Name:            app.opts.ConsoleName,
		DispatchTimeout: cfg.Dispatch.ForegroundTimeout.Std(),
	})
	app.dispatcher = dispatcher.New(resolver, app.policy,
		dispatcher.WithLogger(app.logger),
		dispatcher.WithRunner(runner),
		dispatcher.WithConfig(dispatcher.ConfigFrom(cfg)),
	)

	app.console, err = NewConsole(app.dispatcher, app.opts.ConsoleName, app.logger, app.opts.Handle)
	if err != nil {
		return &InitError{Component: "console", Err: err}
	}

	if app.useTerminal() {
		readerOpts := []input.Option{
			input.WithLogger(app.logger),
			input.WithDevice(cfg.Input.DeviceID, cfg.Input.DisplayID),
			input.WithInterrupt(func() { _ = app.Quit() }),
		}
		if app.opts.Screen != nil {
			app.reader = input.NewReader(app.opts.Screen, app.dispatcher, readerOpts...)
		} else if app.reader, err = input.NewTerminalReader(app.dispatcher, readerOpts...); err != nil {
			return &InitError{Component: "terminal", Err: err}
		}
	}

	if app.opts.Watch && app.opts.ConfigPath != "" {
		app.watcher, err = config.NewWatcher(app.opts.ConfigPath, app.applyConfig,
			config.WithErrorHandler(func(err error) {
				app.logger.WithComponent("config").Warn("reload rejected: %v", err)
			}))
		if err != nil {
			return &InitError{Component: "config watcher", Err: err}
		}
	}

	app.logger.Info("ready: foreground budget %v, key repeat %t, terminal %t",
		cfg.Dispatch.ForegroundTimeout, cfg.KeyRepeat.Enabled, app.reader != nil)
	return nil
}

func (app *Application) loadPolicy(cfg config.PolicyConfig) (policy.Policy, error) {
	if cfg.Script == "" {
		return policy.Nop{}, nil
	}
	return policy.LoadLua(cfg.Script,
		policy.WithCallTimeout(cfg.CallTimeout.Std()),
		policy.WithLuaLogger(app.logger.WithComponent("policy")),
	)
}

func (app *Application) useTerminal() bool {
	if app.opts.Terminal != nil {
		return *app.opts.Terminal
	}
	return app.config.Input.Terminal
}

// applyConfig installs a reloaded configuration. Settings that need a
// restart, such as the policy script, keep their old values.
func (app *Application) applyConfig(cfg *config.Config) {
	if app.opts.LogLevel != "" {
		cfg.Log.Level = app.opts.LogLevel
	}

	app.mu.Lock()
	old := app.config
	app.config = cfg
	app.mu.Unlock()

	app.logger.SetLevel(logging.ParseLevel(cfg.Log.Level))
	app.dispatcher.UpdateConfig(dispatcher.ConfigFrom(cfg))
	if old.Policy.Script != cfg.Policy.Script {
		app.logger.Warn("policy script change from %q to %q needs a restart", old.Policy.Script, cfg.Policy.Script)
	}
	app.logger.Info("configuration reloaded")
}

// Config returns the active configuration.
func (app *Application) Config() *config.Config {
	app.mu.Lock()
	defer app.mu.Unlock()
	return app.config
}

// Dispatcher returns the dispatcher.
func (app *Application) Dispatcher() *dispatcher.Dispatcher {
	return app.dispatcher
}

// Console returns the in-process client connection.
func (app *Application) Console() *Console {
	return app.console
}

// Run runs every component until ctx ends, Quit is called or a component
// fails.
func (app *Application) Run(ctx context.Context) error {
	if !app.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer app.running.Store(false)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	app.mu.Lock()
	app.cancel = cancel
	app.mu.Unlock()

	if app.reader != nil {
		if err := app.reader.Init(); err != nil {
			return &InitError{Component: "terminal", Err: err}
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// The dispatcher also stops when closed; take the rest down with it.
		defer cancel()
		return app.dispatcher.Run(ctx)
	})
	g.Go(func() error {
		return app.console.Run(ctx)
	})
	if app.reader != nil {
		g.Go(func() error {
			return app.reader.Run(ctx)
		})
	}
	if app.watcher != nil {
		g.Go(func() error {
			if err := app.watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("config watcher: %w", err)
			}
			return nil
		})
	}
	err := g.Wait()
	app.logStats()
	return err
}

// Quit stops a running application.
func (app *Application) Quit() error {
	if !app.running.Load() {
		return ErrNotRunning
	}
	app.mu.Lock()
	cancel := app.cancel
	app.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return nil
}

func (app *Application) logStats() {
	st := app.dispatcher.Stats()
	app.logger.Info("dispatched %d, dropped %d, acknowledged %d (%d late), timeouts %d, repeats %d",
		st.Dispatched, st.Dropped, st.Acknowledged, st.LateAcks, st.Timeouts, st.Repeats)
	if app.logger.Enabled(logging.LevelDebug) {
		if dump, err := app.dispatcher.Dump(); err == nil {
			app.logger.Debug("final state %s", dump)
		}
	}
}

// Close releases every component in reverse start order. It is safe to
// call more than once.
func (app *Application) Close(ctx context.Context) error {
	if !app.closed.CompareAndSwap(false, true) {
		return nil
	}

	var errs []error
	if app.watcher != nil {
		if err := app.watcher.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if app.dispatcher != nil {
		app.dispatcher.Close()
	}
	if app.console != nil {
		app.console.Close()
	}
	if c, ok := app.policy.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close policy: %w", err))
		}
	}
	if app.shutdownTelemetry != nil {
		if err := app.shutdownTelemetry(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown telemetry: %w", err))
		}
	}
	return errors.Join(errs...)
}
