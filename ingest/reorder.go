package ingest

import (
	pq "github.com/kyroy/priority-queue"
	"github.com/sirupsen/logrus"
)

// Reorderer releases packets in sequence order. It holds out-of-order
// packets until the missing ones arrive or until more than depth packets are
// waiting, in which case the gap is declared lost.
//
// Sequence numbers must be unique while queued; the queue does not keep
// insertion order between equal keys.
type Reorderer struct {
	queue   *pq.PriorityQueue
	queued  map[int64]struct{}
	depth   int
	next    int64
	started bool
	lost    uint64
}

// NewReorderer creates a reorderer holding at most depth packets before
// skipping a gap.
func NewReorderer(depth int) *Reorderer {
	if depth < 1 {
		depth = 1
	}
	return &Reorderer{
		queue:  pq.NewPriorityQueue(),
		queued: make(map[int64]struct{}),
		depth:  depth,
	}
}

// Insert queues a packet. It returns false for a packet already queued or
// older than the last released one.
func (r *Reorderer) Insert(p Packet) bool {
	if r.started && p.Seq < r.next {
		return false
	}
	if _, dup := r.queued[p.Seq]; dup {
		return false
	}
	if !r.started {
		r.started = true
		r.next = p.Seq
	}

	r.queue.Insert(p, float64(p.Seq))
	r.queued[p.Seq] = struct{}{}
	return true
}

// Pop returns the next packet in order, if it arrived or if the gap before
// it has to be given up.
func (r *Reorderer) Pop() (Packet, bool) {
	if r.queue.Len() == 0 {
		return Packet{}, false
	}

	_, lowest := r.queue.Get(0)
	seq := int64(lowest)
	if seq != r.next && r.queue.Len() <= r.depth {
		return Packet{}, false
	}

	return r.release(), true
}

// Flush releases every queued packet in order regardless of gaps.
func (r *Reorderer) Flush() []Packet {
	var out []Packet
	for r.queue.Len() > 0 {
		out = append(out, r.release())
	}
	return out
}

func (r *Reorderer) release() Packet {
	p := r.queue.PopLowest().(Packet)
	delete(r.queued, p.Seq)

	if p.Seq > r.next {
		gap := uint64(p.Seq - r.next)
		r.lost += gap
		logrus.WithFields(logrus.Fields{
			"function": "Reorderer.release",
			"expected": r.next,
			"released": p.Seq,
			"lost":     gap,
		}).Debug("Sequence gap given up")
	}
	r.next = p.Seq + 1
	return p
}

// Len returns the number of queued packets.
func (r *Reorderer) Len() int {
	return r.queue.Len()
}

// Lost returns the number of sequence numbers given up.
func (r *Reorderer) Lost() uint64 {
	return r.lost
}
