// Package input reads keyboard and mouse input from a terminal and turns it
// into reader-originated event entries.
//
// A terminal reports key presses, not key transitions, so every keystroke
// becomes a key down immediately followed by a key up. Mouse reports become
// motion entries from a single mouse pointer; button transitions are derived
// from consecutive reports. Terminal resizes are reported as configuration
// changes.
//
// # Usage
//
//	r, err := input.NewTerminalReader(d, input.WithInterrupt(cancel))
//	if err != nil {
//	    return err
//	}
//	if err := r.Init(); err != nil {
//	    return err
//	}
//	return r.Run(ctx)
package input
