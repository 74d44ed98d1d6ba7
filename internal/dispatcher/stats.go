package dispatcher

import (
	"fmt"

	"github.com/tidwall/sjson"

	"github.com/dshills/inputdispatch/internal/command"
	"github.com/dshills/inputdispatch/internal/dispatch"
)

type counters struct {
	dispatched   uint64
	dropped      uint64
	acknowledged uint64
	lateAcks     uint64
	timeouts     uint64
	repeats      uint64
}

// Stats is a snapshot of the dispatcher state and counters.
type Stats struct {
	Inbound        int
	Pending        bool
	Connections    int
	LiveRecords    int
	QueuedCommands int
	KeyRepeating   bool

	Dispatched   uint64
	Dropped      uint64
	Acknowledged uint64
	LateAcks     uint64
	Timeouts     uint64
	Repeats      uint64

	Commands command.Stats
}

// Stats returns a snapshot of the dispatcher state.
func (d *Dispatcher) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()

	return Stats{
		Inbound:        len(d.inbound),
		Pending:        d.pending != nil,
		Connections:    len(d.conns),
		LiveRecords:    d.tracker.Len(),
		QueuedCommands: d.commands.Len(),
		KeyRepeating:   d.repeat.last != nil,
		Dispatched:     d.counters.dispatched,
		Dropped:        d.counters.dropped,
		Acknowledged:   d.counters.acknowledged,
		LateAcks:       d.counters.lateAcks,
		Timeouts:       d.counters.timeouts,
		Repeats:        d.counters.repeats,
		Commands:       d.runner.Stats(),
	}
}

// Dump renders the dispatcher state as JSON for diagnostics.
func (d *Dispatcher) Dump() ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := []byte(`{}`)
	var err error
	set := func(path string, value any) {
		if err == nil {
			out, err = sjson.SetBytes(out, path, value)
		}
	}

	now := d.clock.Now()
	set("closed", d.closed)
	set("focused", d.focused.String())
	set("inbound", len(d.inbound))
	if d.pending != nil {
		set("pending", d.pending.Description())
	}
	if d.repeat.last != nil {
		set("key_repeat.entry", d.repeat.last.Description())
		set("key_repeat.next_in_ms", d.repeat.next.Sub(now).Milliseconds())
	}

	kinds := d.commands.Kinds()
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = k.String()
	}
	set("commands", names)

	set("connections", []any{})
	for i, token := range d.order {
		c := d.conns[token]
		prefix := fmt.Sprintf("connections.%d", i)
		set(prefix+".name", c.Name())
		set(prefix+".token", token.String())
		set(prefix+".status", c.Status().String())
		set(prefix+".responsive", c.Responsive())
		set(prefix+".outbound", c.OutboundLen())
		set(prefix+".wait", []any{})
		c.Waiting(func(e *dispatch.Entry) {
			set(prefix+".wait.-1", map[string]any{
				"seq":          uint32(e.Seq()),
				"state":        e.State().String(),
				"target_flags": e.TargetFlags().String(),
				"age_ms":       now.Sub(e.DeliveryTime()).Milliseconds(),
				"escalations":  e.Escalations(),
			})
		})
	}

	set("stats.dispatched", d.counters.dispatched)
	set("stats.dropped", d.counters.dropped)
	set("stats.acknowledged", d.counters.acknowledged)
	set("stats.late_acks", d.counters.lateAcks)
	set("stats.timeouts", d.counters.timeouts)
	set("stats.repeats", d.counters.repeats)
	set("stats.live_records", d.tracker.Len())

	if err != nil {
		return nil, fmt.Errorf("dump: %w", err)
	}
	return out, nil
}
