// Package clock implements the presentation clock of the player.
//
// The clock counts ticks (default 1,000,000 per second) since stream start
// and converts stream timestamps into absolute presentation deadlines:
//
//	clk := clock.New(1000000, nil)
//	deadline := clk.Deadline(pts, ptsDelay)
//	if deadline <= clk.Now() {
//	    // due
//	}
//
// When an authoritative timestamp is observed the clock is resynchronized
// with AdvanceReference. A jump larger than the discontinuity threshold is
// reported in the returned Resync and bumps Generation, so schedulers can
// re-evaluate their queued frames. Discontinuities are never errors.
//
// Time is read through the TimeProvider interface so tests can drive the
// clock deterministically.
package clock
