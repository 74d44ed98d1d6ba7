// Package config loads and watches the input dispatcher configuration.
//
// Settings come from three layers, later layers overriding earlier ones:
//
//  1. Built-in defaults (Default)
//  2. A TOML file
//  3. Environment variables prefixed with INPUTD_
//
// # Usage
//
//	cfg, err := config.Load("inputd.toml")
//	if err != nil {
//	    return err
//	}
//	budgets := cfg.Dispatch.Budgets()
//
// A file looks like:
//
//	[dispatch]
//	foreground_timeout = "5s"
//	background_timeout = "2s"
//
//	[key_repeat]
//	enabled = true
//	delay = "400ms"
//	interval = "50ms"
//
//	[policy]
//	script = "policy.lua"
//
// The same settings can be given in the environment, for example
// INPUTD_DISPATCH_FOREGROUND_TIMEOUT=8s.
//
// # Reloading
//
// A Watcher observes the file's directory with fsnotify and calls its
// ReloadFunc with a freshly loaded and validated configuration after each
// debounced change. Invalid files are reported to the error handler and
// leave the running configuration untouched.
package config
