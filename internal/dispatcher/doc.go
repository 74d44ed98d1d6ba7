// Package dispatcher runs the dispatch loop.
//
// A Dispatcher owns a single lock. Producers on any goroutine hand it
// entries (Notify, Inject), register and unregister connections, move focus
// and report acknowledgments. One goroutine calls Run, which takes inbound
// entries one at a time, resolves their targets, fans them out into dispatch
// records on each target connection, publishes those records and watches
// their acknowledgment deadlines.
//
// Anything that calls into policy goes through the command queue. Commands
// are queued under the lock and run by command.Runner between critical
// sections, with the lock released, so a slow or misbehaving policy never
// stalls producers.
//
// Basic usage:
//
//	d := dispatcher.New(resolver, pol, dispatcher.WithLogger(logger))
//	token, _ := d.Register("editor", publisher)
//	d.SetFocus(token, "startup")
//	go d.Run(ctx)
//	d.Notify(keyEntry)
package dispatcher
