// Package command implements deferred commands: work the dispatch loop must
// run with its lock released, such as calls into policy.
//
// # Commands
//
// Command is a closed set of variants, one per kind of deferred work, each
// carrying only the fields it needs. Variants that refer to an event hold a
// reference to it while queued; Queue takes the reference on Push and the
// Runner gives it back after the command completes.
//
// # Draining
//
// Runner.Drain is called by the dispatch loop with its lock held. For each
// command queued when the drain starts it:
//
//  1. releases the lock exactly once,
//  2. runs Handler.Execute through an Executor, which turns errors and panics
//     into a Result,
//  3. reacquires the lock exactly once,
//  4. calls Handler.Complete with the Result while holding the lock.
//
// Commands enqueued while a drain is running wait for the next drain. A
// command that tries to drain again from inside Execute is rejected with an
// *InvariantError panic, which the Executor reports as a panicked Result.
//
// # Tracing
//
// Every execution runs inside an OpenTelemetry span named after the command
// kind. Without a configured tracer provider the global no-op provider is
// used.
package command
