package dispatch

import (
	"container/heap"
	"time"
)

// Tracker indexes live entries by sequence number and orders sent entries by
// timeout. It is not safe for concurrent use; the dispatch loop guards it
// with its lock.
type Tracker struct {
	live     map[Seq]*Entry
	timeouts timeoutHeap
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{live: make(map[Seq]*Entry)}
}

// Add starts tracking e. Tracking a sequence number that is already live
// panics.
func (t *Tracker) Add(e *Entry) {
	if _, ok := t.live[e.seq]; ok {
		invariant("Tracker.Add", e.seq, "duplicate live sequence number")
	}
	if e.state.Terminal() {
		invariant("Tracker.Add", e.seq, "entry is already %s", e.state)
	}
	t.live[e.seq] = e
	if e.state == StateSent {
		t.Armed(e)
	}
}

// Armed schedules the current timeout of a sent entry. Call it after
// MarkSent and ReArm.
func (t *Tracker) Armed(e *Entry) {
	if e.state != StateSent {
		invariant("Tracker.Armed", e.seq, "entry is %s, want SENT", e.state)
	}
	heap.Push(&t.timeouts, timeoutItem{entry: e, at: e.timeoutTime})
}

// Get returns the live entry with the given sequence number.
func (t *Tracker) Get(seq Seq) (*Entry, bool) {
	e, ok := t.live[seq]
	return e, ok
}

// Remove stops tracking seq and returns its entry.
func (t *Tracker) Remove(seq Seq) (*Entry, bool) {
	e, ok := t.live[seq]
	if ok {
		delete(t.live, seq)
	}
	return e, ok
}

// Len returns the number of live entries.
func (t *Tracker) Len() int {
	return len(t.live)
}

// Expired returns the sent entries whose timeout is at or before now, in
// timeout order. The entries are not transitioned; the caller marks them
// timed out.
func (t *Tracker) Expired(now time.Time) []*Entry {
	var out []*Entry
	for t.timeouts.Len() > 0 {
		top := t.timeouts[0]
		if !t.current(top) {
			heap.Pop(&t.timeouts)
			continue
		}
		if top.at.After(now) {
			break
		}
		heap.Pop(&t.timeouts)
		out = append(out, top.entry)
	}
	return out
}

// NextTimeout returns the earliest pending timeout.
func (t *Tracker) NextTimeout() (time.Time, bool) {
	for t.timeouts.Len() > 0 {
		top := t.timeouts[0]
		if t.current(top) {
			return top.at, true
		}
		heap.Pop(&t.timeouts)
	}
	return time.Time{}, false
}

// Each calls fn for every live entry in no particular order.
func (t *Tracker) Each(fn func(*Entry)) {
	for _, e := range t.live {
		fn(e)
	}
}

// current reports whether a heap item still describes the armed timeout of a
// live sent entry. Items go stale on removal, acknowledgment and re-arming.
func (t *Tracker) current(it timeoutItem) bool {
	e, ok := t.live[it.entry.seq]
	return ok && e == it.entry && e.state == StateSent && e.timeoutTime.Equal(it.at)
}

type timeoutItem struct {
	entry *Entry
	at    time.Time
}

type timeoutHeap []timeoutItem

func (h timeoutHeap) Len() int { return len(h) }

func (h timeoutHeap) Less(i, j int) bool {
	if h[i].at.Equal(h[j].at) {
		return h[i].entry.seq < h[j].entry.seq
	}
	return h[i].at.Before(h[j].at)
}

func (h timeoutHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *timeoutHeap) Push(x any) { *h = append(*h, x.(timeoutItem)) }

func (h *timeoutHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = timeoutItem{}
	*h = old[:n-1]
	return it
}
