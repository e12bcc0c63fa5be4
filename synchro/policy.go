package synchro

import (
	"fmt"

	"github.com/opd-ai/playsync/clock"
	"github.com/opd-ai/playsync/config"
	"github.com/opd-ai/playsync/picture"
)

// Action is what an output does with a candidate frame.
type Action uint8

const (
	// Display presents the frame now.
	Display Action = iota
	// Skip drops the frame without presenting it.
	Skip
	// Wait sleeps before evaluating the frame again.
	Wait
)

func (a Action) String() string {
	switch a {
	case Display:
		return "display"
	case Skip:
		return "skip"
	case Wait:
		return "wait"
	default:
		return fmt.Sprintf("action(%d)", uint8(a))
	}
}

// Reason tells which rule produced a decision.
type Reason uint8

const (
	// OnTime frames are within the wake-up tolerance of their deadline.
	OnTime Reason = iota
	// Early frames are due after the wake-up tolerance.
	Early
	// Late frames missed their deadline by more than the display delay.
	Late
	// Backpressure frames are dropped to free a slot of a full heap.
	Backpressure
)

func (r Reason) String() string {
	switch r {
	case OnTime:
		return "on_time"
	case Early:
		return "early"
	case Late:
		return "late"
	case Backpressure:
		return "backpressure"
	default:
		return fmt.Sprintf("reason(%d)", uint8(r))
	}
}

// Decision is the outcome of Policy.Decide. Wait is only set for the Wait
// action.
type Decision struct {
	Action Action
	Wait   clock.Tick
	Reason Reason
}

func (d Decision) String() string {
	if d.Action == Wait {
		return fmt.Sprintf("wait(%d)", d.Wait)
	}
	return fmt.Sprintf("%s(%s)", d.Action, d.Reason)
}

// Policy decides the fate of each candidate frame. Decide is a pure function
// of its arguments and the snapshot the policy was built from.
type Policy struct {
	displayDelay        clock.Tick
	mwaitTolerance      clock.Tick
	ptsDelay            clock.Tick
	exhaustionTolerance clock.Tick
}

// NewPolicy builds a policy from the snapshot's tolerances.
func NewPolicy(cfg config.Snapshot) *Policy {
	return &Policy{
		displayDelay:        cfg.VoutDisplayDelay,
		mwaitTolerance:      cfg.VoutMwaitTolerance,
		ptsDelay:            cfg.PTSDelay,
		exhaustionTolerance: cfg.HeapExhaustionTolerance,
	}
}

// Deadline returns the presentation deadline of a timestamp.
func (p *Policy) Deadline(pts clock.Tick) clock.Tick {
	return pts + p.ptsDelay
}

// Decide evaluates the rules in order:
//
//  1. more than the display delay past the deadline: Skip (Late)
//  2. heap at capacity and its oldest Ready frame past its deadline:
//     Skip (Backpressure)
//  3. due after the wake-up tolerance: Wait until the tolerance before the
//     deadline
//  4. otherwise Display
func (p *Policy) Decide(deadline, now clock.Tick, occ picture.Occupancy) Decision {
	ahead := deadline - now

	if ahead < -p.displayDelay {
		return Decision{Action: Skip, Reason: Late}
	}
	if occ.AtCapacity() && occ.HasReady && p.Deadline(occ.OldestPTS) < now {
		return Decision{Action: Skip, Reason: Backpressure}
	}
	if ahead > p.mwaitTolerance {
		return Decision{Action: Wait, Wait: ahead - p.mwaitTolerance, Reason: Early}
	}
	return Decision{Action: Display, Reason: OnTime}
}

// DropDecoded reports whether a decoder should drop its next picture instead
// of waiting for a slot, because the heap has had no Empty slot for longer
// than the exhaustion tolerance.
func (p *Policy) DropDecoded(occ picture.Occupancy) bool {
	return occ.AtCapacity() && occ.FullFor > p.exhaustionTolerance
}
