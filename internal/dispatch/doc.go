// Package dispatch provides the per-target delivery record used by the
// dispatcher to track an event from the moment a target is resolved until
// the target acknowledges it, times out or goes away.
//
// # Sequence Numbers
//
// Every Entry carries a Seq drawn from a process-wide Sequencer. Sequence
// numbers strictly advance, are never zero (NoSeq is reserved) and are the
// only key used to correlate an acknowledgment with the record it retires.
//
// # State Machine
//
// An Entry moves through:
//
//	StatePending --MarkSent--> StateSent --Acknowledge--> StateAcknowledged
//	                              |  ^
//	                  MarkTimedOut|  |ReArm
//	                              v  |
//	                          StateTimedOut --Acknowledge--> StateAcknowledged
//
// Any non-terminal state may be moved to StateDropped when the target
// connection is torn down. Illegal transitions, and reading the delivery or
// timeout time of an entry that was never sent, panic with *InvariantError.
//
// # Ownership
//
// An Entry holds one reference to its event.Entry, taken by New and given
// back when the entry reaches a terminal state. Only the dispatch loop, with
// its lock held, may call the state-changing methods.
//
// # Timeouts
//
// The timeout of a sent entry is its delivery time plus the budget returned
// by a TimeoutPolicy for its target flags. Tracker indexes live entries by
// sequence number and orders sent entries by timeout.
package dispatch
