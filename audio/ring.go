package audio

import (
	"fmt"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/playsync/limits"
)

// RingBuffer is a fixed-capacity FIFO of audio chunks for one producer and
// one consumer goroutine. It never blocks and never allocates after
// construction.
//
// The backing array has capacity+1 entries, a power of two, so positions wrap
// with a mask. One entry always stays unused to tell a full ring from an
// empty one.
type RingBuffer struct {
	// head is written only by the consumer, tail only by the producer.
	head atomic.Uint64
	tail atomic.Uint64
	mask uint64
	buf  []Chunk
}

// NewRingBuffer creates a ring holding up to capacity chunks. capacity+1 must
// be a power of two.
func NewRingBuffer(capacity int) (*RingBuffer, error) {
	if err := limits.ValidateFifoSize(capacity); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCapacity, err)
	}

	size := uint64(capacity) + 1
	logrus.WithFields(logrus.Fields{
		"function": "audio.NewRingBuffer",
		"capacity": capacity,
	}).Debug("Audio ring buffer created")

	return &RingBuffer{
		mask: size - 1,
		buf:  make([]Chunk, size),
	}, nil
}

// Push appends a chunk. It fails with ErrBufferFull when the ring is at
// capacity. Only the producer goroutine may call Push.
func (r *RingBuffer) Push(c Chunk) error {
	tail := r.tail.Load()
	next := (tail + 1) & r.mask
	if next == r.head.Load() {
		return ErrBufferFull
	}
	r.buf[tail] = c
	r.tail.Store(next)
	return nil
}

// Pop removes the oldest chunk. It fails with ErrBufferEmpty when nothing is
// queued. Only the consumer goroutine may call Pop.
func (r *RingBuffer) Pop() (Chunk, error) {
	head := r.head.Load()
	if head == r.tail.Load() {
		return Chunk{}, ErrBufferEmpty
	}
	c := r.buf[head]
	r.buf[head] = Chunk{}
	r.head.Store((head + 1) & r.mask)
	return c, nil
}

// Peek returns the oldest chunk without removing it. Only the consumer
// goroutine may call Peek.
func (r *RingBuffer) Peek() (Chunk, error) {
	head := r.head.Load()
	if head == r.tail.Load() {
		return Chunk{}, ErrBufferEmpty
	}
	return r.buf[head], nil
}

// Len returns the number of queued chunks.
func (r *RingBuffer) Len() int {
	return int((r.tail.Load() - r.head.Load()) & r.mask)
}

// Cap returns the maximum number of queued chunks.
func (r *RingBuffer) Cap() int {
	return int(r.mask)
}

// Reset drops every queued chunk and returns how many were dropped. It is
// called by the consumer side, or when neither side is running.
func (r *RingBuffer) Reset() int {
	n := 0
	for {
		if _, err := r.Pop(); err != nil {
			return n
		}
		n++
	}
}
