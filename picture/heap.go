package picture

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/playsync/clock"
	"github.com/opd-ai/playsync/config"
	"github.com/opd-ai/playsync/internal/notify"
)

type slot struct {
	state  State
	pts    clock.Tick
	planes [][]byte
	seq    uint64
}

// Heap is the bounded picture heap: a fixed arena of slots indexed by
// Handle, each tagged with its lifecycle state.
//
// Producers move slots Empty → Decoding → Ready; the output moves them
// Ready → Displaying → Empty, or Ready → Empty when a picture is skipped.
// A single mutex guards the arena; state changes are broadcast through
// Changed so both sides can wait with a bound.
type Heap struct {
	mu        sync.Mutex
	slots     []slot
	used      int
	seq       uint64
	full      bool
	fullSince clock.Tick
	closed    bool
	maxPlanes int
	stats     HeapStats

	changed notify.Signal
	clk     *clock.Clock
}

// NewHeap creates a heap of cfg.VoutMaxPictures Empty slots.
func NewHeap(cfg config.Snapshot, clk *clock.Clock) *Heap {
	capacity := cfg.VoutMaxPictures
	if capacity <= 0 {
		capacity = 1
	}

	h := &Heap{
		slots:     make([]slot, capacity),
		maxPlanes: cfg.VoutMaxPlanes,
		clk:       clk,
	}

	logrus.WithFields(logrus.Fields{
		"function":   "picture.NewHeap",
		"capacity":   capacity,
		"max_planes": h.maxPlanes,
	}).Debug("Picture heap created")

	return h
}

// Capacity returns the number of slots.
func (h *Heap) Capacity() int {
	return len(h.slots)
}

// Changed returns a channel closed at the next state change of any slot.
func (h *Heap) Changed() <-chan struct{} {
	return h.changed.C()
}

// Wake wakes every goroutine waiting on Changed without changing any slot,
// for instance after the clock was resynchronized.
func (h *Heap) Wake() {
	h.changed.Broadcast()
}

// AcquireEmpty reserves an Empty slot for decoding. When every slot is in
// use it waits up to wait for a release, then fails with ErrHeapExhausted.
// A non-positive wait fails immediately.
func (h *Heap) AcquireEmpty(ctx context.Context, wait time.Duration) (Handle, error) {
	expiry := time.Now().Add(wait)

	for {
		h.mu.Lock()
		if h.closed {
			h.mu.Unlock()
			return -1, ErrClosed
		}
		for i := range h.slots {
			if h.slots[i].state == Empty {
				h.slots[i] = slot{state: Decoding}
				h.markUsedLocked(1)
				h.mu.Unlock()
				return Handle(i), nil
			}
		}
		// Taken under the lock so a release after the scan is not missed.
		ch := h.changed.C()
		remaining := time.Until(expiry)
		if remaining <= 0 {
			h.stats.Exhausted++
			used := h.used
			h.mu.Unlock()

			logrus.WithFields(logrus.Fields{
				"function": "Heap.AcquireEmpty",
				"used":     used,
				"wait":     wait,
			}).Debug("No free picture slot")

			return -1, fmt.Errorf("%w: %d/%d slots in use", ErrHeapExhausted, used, len(h.slots))
		}
		h.mu.Unlock()

		if notify.Wait(ctx, ch, remaining) == notify.Canceled {
			return -1, ctx.Err()
		}
	}
}

// Publish makes a decoded picture visible to the output.
func (h *Heap) Publish(handle Handle, pts clock.Tick, planes [][]byte) error {
	if h.maxPlanes > 0 && len(planes) > h.maxPlanes {
		return fmt.Errorf("%w: %d > %d", ErrTooManyPlanes, len(planes), h.maxPlanes)
	}

	h.mu.Lock()
	s, err := h.slotLocked(handle)
	if err != nil {
		h.mu.Unlock()
		return err
	}

	switch s.state {
	case Decoding:
	case Destroying:
		*s = slot{}
		h.markUsedLocked(-1)
		h.mu.Unlock()
		h.changed.Broadcast()
		return ErrClosed
	default:
		state := s.state
		h.mu.Unlock()
		return fmt.Errorf("%w: publish on %s slot %d", ErrBadState, state, handle)
	}

	h.seq++
	s.state = Ready
	s.pts = pts
	s.planes = planes
	s.seq = h.seq
	h.stats.Published++
	h.mu.Unlock()

	h.changed.Broadcast()
	return nil
}

// Cancel returns a slot reserved by AcquireEmpty without publishing it.
func (h *Heap) Cancel(handle Handle) error {
	h.mu.Lock()
	s, err := h.slotLocked(handle)
	if err != nil {
		h.mu.Unlock()
		return err
	}
	if s.state != Decoding && s.state != Destroying {
		state := s.state
		h.mu.Unlock()
		return fmt.Errorf("%w: cancel on %s slot %d", ErrBadState, state, handle)
	}
	*s = slot{}
	h.markUsedLocked(-1)
	h.stats.Canceled++
	h.mu.Unlock()

	h.changed.Broadcast()
	return nil
}

// Peek returns the earliest Ready picture without changing its state.
func (h *Heap) Peek() (Frame, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	i := h.earliestReadyLocked()
	if i < 0 {
		return Frame{}, false
	}
	return h.frameLocked(i), true
}

// AcquireReady returns the earliest Ready picture, moved to Displaying, when
// its timestamp is not after horizon. Ties between equal timestamps are
// broken by arrival order.
func (h *Heap) AcquireReady(horizon clock.Tick) (Frame, bool) {
	h.mu.Lock()
	i := h.earliestReadyLocked()
	if i < 0 || h.slots[i].pts > horizon {
		h.mu.Unlock()
		return Frame{}, false
	}
	h.slots[i].state = Displaying
	f := h.frameLocked(i)
	h.mu.Unlock()

	h.changed.Broadcast()
	return f, true
}

// Release returns a displayed picture's slot to Empty.
func (h *Heap) Release(handle Handle) error {
	h.mu.Lock()
	s, err := h.slotLocked(handle)
	if err != nil {
		h.mu.Unlock()
		return err
	}
	if s.state != Displaying {
		state := s.state
		h.mu.Unlock()
		return fmt.Errorf("%w: release on %s slot %d", ErrBadState, state, handle)
	}
	*s = slot{}
	h.markUsedLocked(-1)
	h.stats.Displayed++
	h.mu.Unlock()

	h.changed.Broadcast()
	return nil
}

// Discard drops a Ready picture without displaying it.
func (h *Heap) Discard(handle Handle) error {
	h.mu.Lock()
	s, err := h.slotLocked(handle)
	if err != nil {
		h.mu.Unlock()
		return err
	}
	if s.state != Ready {
		state := s.state
		h.mu.Unlock()
		return fmt.Errorf("%w: discard on %s slot %d", ErrBadState, state, handle)
	}
	*s = slot{}
	h.markUsedLocked(-1)
	h.stats.Skipped++
	h.mu.Unlock()

	h.changed.Broadcast()
	return nil
}

// Flush drops every Ready picture, for instance after a seek. It returns the
// number of pictures dropped.
func (h *Heap) Flush() int {
	h.mu.Lock()
	n := h.flushLocked()
	h.mu.Unlock()

	if n > 0 {
		h.changed.Broadcast()
	}
	return n
}

// Close flushes the Ready pictures, marks the slots still being decoded as
// Destroying and wakes every waiter. Later acquisitions fail with ErrClosed.
// Slots being displayed stay with the output until it releases them.
func (h *Heap) Close() int {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return 0
	}
	h.closed = true
	n := h.flushLocked()
	destroying := 0
	for i := range h.slots {
		if h.slots[i].state == Decoding {
			h.slots[i].state = Destroying
			destroying++
		}
	}
	h.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function":   "Heap.Close",
		"flushed":    n,
		"destroying": destroying,
	}).Debug("Picture heap closed")

	h.changed.Broadcast()
	return n
}

// Occupancy returns a summary of the heap.
func (h *Heap) Occupancy() Occupancy {
	h.mu.Lock()
	defer h.mu.Unlock()

	o := Occupancy{
		Used:     h.used,
		Capacity: len(h.slots),
	}
	for i := range h.slots {
		if h.slots[i].state == Ready {
			o.Ready++
		}
	}
	if i := h.earliestReadyLocked(); i >= 0 {
		o.HasReady = true
		o.OldestPTS = h.slots[i].pts
	}
	if h.full && h.clk != nil {
		o.FullFor = h.clk.Elapsed() - h.fullSince
	}
	return o
}

// State returns the state of one slot.
func (h *Heap) State(handle Handle) (State, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, err := h.slotLocked(handle)
	if err != nil {
		return Empty, err
	}
	return s.state, nil
}

// Stats returns a copy of the heap counters.
func (h *Heap) Stats() HeapStats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stats
}

func (h *Heap) slotLocked(handle Handle) (*slot, error) {
	if handle < 0 || int(handle) >= len(h.slots) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidHandle, handle)
	}
	return &h.slots[handle], nil
}

func (h *Heap) earliestReadyLocked() int {
	best := -1
	for i := range h.slots {
		s := &h.slots[i]
		if s.state != Ready {
			continue
		}
		if best < 0 || s.pts < h.slots[best].pts ||
			(s.pts == h.slots[best].pts && s.seq < h.slots[best].seq) {
			best = i
		}
	}
	return best
}

func (h *Heap) frameLocked(i int) Frame {
	s := &h.slots[i]
	return Frame{
		Handle: Handle(i),
		PTS:    s.pts,
		Planes: s.planes,
		Seq:    s.seq,
		State:  s.state,
	}
}

func (h *Heap) flushLocked() int {
	n := 0
	for i := range h.slots {
		if h.slots[i].state == Ready {
			h.slots[i] = slot{}
			h.markUsedLocked(-1)
			n++
		}
	}
	h.stats.Skipped += uint64(n)
	h.stats.Flushed += uint64(n)
	return n
}

func (h *Heap) markUsedLocked(delta int) {
	h.used += delta
	if h.used > h.stats.PeakUsed {
		h.stats.PeakUsed = h.used
	}
	switch {
	case h.used >= len(h.slots) && !h.full:
		h.full = true
		if h.clk != nil {
			h.fullSince = h.clk.Elapsed()
		}
	case h.used < len(h.slots):
		h.full = false
	}
}
