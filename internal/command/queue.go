package command

// Queue is a FIFO of commands. It is not safe for concurrent use; the
// dispatch loop guards it with its lock.
type Queue struct {
	items []Command
}

// Push appends c. Commands carrying an event take a reference to it.
func (q *Queue) Push(c Command) {
	if e := entryOf(c); e != nil {
		e.Acquire()
	}
	q.items = append(q.items, c)
}

// Len returns the number of queued commands.
func (q *Queue) Len() int {
	return len(q.items)
}

// Empty reports whether the queue is empty.
func (q *Queue) Empty() bool {
	return len(q.items) == 0
}

// Kinds returns the kinds of the queued commands in order.
func (q *Queue) Kinds() []Kind {
	kinds := make([]Kind, len(q.items))
	for i, c := range q.items {
		kinds[i] = c.Kind()
	}
	return kinds
}

// Discard drops every queued command without running it and returns how many
// were dropped.
func (q *Queue) Discard() int {
	n := len(q.items)
	for _, c := range q.take() {
		release(c)
	}
	return n
}

// take removes and returns every queued command.
func (q *Queue) take() []Command {
	items := q.items
	q.items = nil
	return items
}

// release gives back the event reference taken by Push.
func release(c Command) {
	if e := entryOf(c); e != nil {
		e.Release()
	}
}
