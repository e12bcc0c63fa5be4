package synchro

import "sync/atomic"

// Counters tallies decisions. The zero value is ready to use and safe for
// concurrent use.
type Counters struct {
	displayed    atomic.Uint64
	waits        atomic.Uint64
	late         atomic.Uint64
	backpressure atomic.Uint64
	dropped      atomic.Uint64
}

// CounterSnapshot is a point-in-time copy of Counters.
type CounterSnapshot struct {
	Displayed    uint64
	Waits        uint64
	Late         uint64
	Backpressure uint64
	// DroppedDecoded counts pictures dropped by decoders before publishing.
	DroppedDecoded uint64
}

// Skipped returns the number of frames skipped by the output.
func (s CounterSnapshot) Skipped() uint64 {
	return s.Late + s.Backpressure
}

// Record counts one decision.
func (c *Counters) Record(d Decision) {
	switch {
	case d.Action == Display:
		c.displayed.Add(1)
	case d.Action == Wait:
		c.waits.Add(1)
	case d.Reason == Backpressure:
		c.backpressure.Add(1)
	default:
		c.late.Add(1)
	}
}

// RecordDropped counts a picture dropped by its decoder.
func (c *Counters) RecordDropped() {
	c.dropped.Add(1)
}

// Snapshot returns the current tallies.
func (c *Counters) Snapshot() CounterSnapshot {
	return CounterSnapshot{
		Displayed:      c.displayed.Load(),
		Waits:          c.waits.Load(),
		Late:           c.late.Load(),
		Backpressure:   c.backpressure.Load(),
		DroppedDecoded: c.dropped.Load(),
	}
}
