// Package main is the entry point for the input dispatcher daemon.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/dshills/inputdispatch/internal/app"
	"github.com/dshills/inputdispatch/internal/config"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// defaultTerminalLog receives log lines while the terminal is in use.
const defaultTerminalLog = "inputd.log"

type flags struct {
	opts       app.Options
	logFile    string
	noTerminal bool
	dumpConfig bool
}

func main() {
	os.Exit(run())
}

func run() int {
	f := parseFlags()

	if f.dumpConfig {
		return dumpConfig(f.opts.ConfigPath)
	}

	interactive := term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
	if !interactive || f.noTerminal {
		off := false
		f.opts.Terminal = &off
	}
	if f.logFile == "" && interactive && !f.noTerminal {
		f.logFile = defaultTerminalLog
	}
	if f.logFile != "" {
		out, err := os.OpenFile(f.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: open log file: %v\n", err)
			return 1
		}
		defer out.Close()
		f.opts.LogOutput = out
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, f.opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to initialize: %v\n", err)
		return 1
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := application.Close(closeCtx); err != nil {
			fmt.Fprintf(os.Stderr, "Error: shutdown: %v\n", err)
		}
	}()

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func dumpConfig(path string) int {
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	data, err := config.Encode(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if _, err := os.Stdout.Write(data); err != nil {
		return 1
	}
	return 0
}

func parseFlags() flags {
	var f flags
	var showVersion bool

	flag.StringVar(&f.opts.ConfigPath, "config", "", "Path to configuration file")
	flag.StringVar(&f.opts.ConfigPath, "c", "", "Path to configuration file (shorthand)")
	flag.BoolVar(&f.opts.Watch, "watch", false, "Reload the configuration file when it changes")
	flag.StringVar(&f.opts.LogLevel, "log-level", "", "Log level (debug, info, warn, error); overrides the configuration")
	flag.StringVar(&f.logFile, "log-file", "", "Write logs to this file (default "+defaultTerminalLog+" when reading the terminal)")
	flag.StringVar(&f.opts.ConsoleName, "name", "console", "Name of the in-process client connection")
	flag.BoolVar(&f.noTerminal, "no-terminal", false, "Do not read keys and mouse events from the terminal")
	flag.BoolVar(&f.dumpConfig, "dump-config", false, "Print the effective configuration and exit")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showVersion, "v", false, "Show version information (shorthand)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "inputd - input event dispatcher\n\n")
		fmt.Fprintf(os.Stderr, "Usage: inputd [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment variables prefixed with %s override the configuration file,\n", config.EnvPrefix)
		fmt.Fprintf(os.Stderr, "for example %sDISPATCH_FOREGROUND_TIMEOUT=8s.\n", config.EnvPrefix)
	}

	flag.Parse()

	if showVersion {
		fmt.Printf("inputd %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", date)
		os.Exit(0)
	}

	switch f.opts.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		fmt.Fprintf(os.Stderr, "Error: invalid log level %q (must be debug, info, warn, or error)\n", f.opts.LogLevel)
		os.Exit(1)
	}

	return f
}
