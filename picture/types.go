package picture

import (
	"fmt"

	"github.com/opd-ai/playsync/clock"
)

// Handle identifies a slot of the picture heap.
type Handle int

// State is the lifecycle state of a heap slot.
type State uint8

const (
	// Empty slots are free for a producer.
	Empty State = iota
	// Decoding slots are owned by exactly one producer.
	Decoding
	// Ready slots hold a published picture waiting for display.
	Ready
	// Displaying slots are owned by exactly one output.
	Displaying
	// Destroying slots were Decoding when the heap closed; they return to
	// Empty when their producer publishes or cancels.
	Destroying
)

func (s State) String() string {
	switch s {
	case Empty:
		return "empty"
	case Decoding:
		return "decoding"
	case Ready:
		return "ready"
	case Displaying:
		return "displaying"
	case Destroying:
		return "destroying"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Frame is a view of one heap slot.
type Frame struct {
	Handle Handle
	PTS    clock.Tick
	// Planes references the decoded plane data. The heap does not copy it.
	Planes [][]byte
	// Seq is the arrival order, used to break ties between equal PTS.
	Seq   uint64
	State State
}

// Occupancy summarizes the heap for the synchronization policy.
type Occupancy struct {
	// Used is the number of non-Empty slots.
	Used     int
	Capacity int
	// Ready is the number of published pictures waiting for display.
	Ready int
	// FullFor is how long the heap has had no Empty slot, zero when it has one.
	FullFor clock.Tick
	// OldestPTS is the timestamp of the earliest Ready picture.
	OldestPTS clock.Tick
	HasReady  bool
}

// AtCapacity reports whether no slot is Empty.
func (o Occupancy) AtCapacity() bool {
	return o.Capacity > 0 && o.Used >= o.Capacity
}

// HeapStats holds the heap counters.
type HeapStats struct {
	Published uint64
	Displayed uint64
	// Skipped counts published pictures that were never displayed,
	// including the ones flushed.
	Skipped   uint64
	Flushed   uint64
	Canceled  uint64
	Exhausted uint64
	// PeakUsed is the highest number of simultaneously non-Empty slots.
	PeakUsed int
}
