// Package event defines the event records that flow through the input
// dispatcher.
//
// An Entry describes one occurrence: a configuration change, a device reset,
// a focus change, a key or a motion. The occurrence-specific fields live in a
// Payload, which is a closed set of five types:
//
//	*ConfigurationChanged
//	*DeviceReset
//	*Focus
//	*Key
//	*Motion
//
// Code that needs per-kind behavior switches over the payload type; the
// Description method is the reference for an exhaustive switch. Payload and
// the typed accessors (Key, Motion, Focus, DeviceReset) return copies, so
// holders of an entry cannot change it through them.
//
// # Identity and Origin
//
// Every entry carries an ID produced by an IDGenerator. The two high bits of
// the ID record where the entry came from:
//
//	OriginReader      - read from an input device
//	OriginDispatcher  - generated by the dispatcher (key repeat, cancellation)
//	OriginOther       - anything else
//
// # Injected and Synthesized Entries
//
// An entry is injected when it was constructed with an InjectionState
// (WithInjection). An entry is synthesized when it is injected or its ID does
// not originate from the reader. Both predicates are computed from fields
// fixed at construction, so permission checks that depend on them cannot
// observe a stale or inconsistent classification:
//
//	e.IsInjected()    == (e.Injection() != nil)
//	e.IsSynthesized() == e.IsInjected() || OriginOf(e.ID()) != OriginReader
//
// # Sharing
//
// One entry may be delivered to several connections at once (a motion split
// across overlapping windows). Entries are therefore reference counted: the
// constructor returns an entry holding one reference, each dispatch record
// acquires its own, and the last Release releases the injection state.
//
// # Key Repeat
//
// A repeating key reuses a single entry for the whole repeat sequence.
// Recycle resets per-delivery state and AdvanceRepeat moves the entry to the
// next repeat tick. Both must be called with the dispatcher lock held and only
// on an entry nobody else references.
//
// # Thread Safety
//
// Entries are immutable after construction except for the dispatch-in-progress
// flag, the key intercept fields (SetInterceptResult) and the recycle path,
// all of which are owned by the dispatcher and mutated only under its lock. Reference counting and
// InjectionState are safe for concurrent use.
package event
