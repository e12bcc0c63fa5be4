package clock

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// Tick is a count of presentation clock ticks. One tick lasts 1/Frequency()
// seconds.
type Tick int64

// Resync describes the outcome of AdvanceReference.
type Resync struct {
	// Previous is the clock value just before the resync.
	Previous Tick
	// Current is the new clock value, equal to the reference timestamp.
	Current Tick
	// Drift is Current - Previous.
	Drift Tick
	// Discontinuity is set when |Drift| exceeded the discontinuity threshold.
	Discontinuity bool
}

// Clock is the presentation clock shared by every stage of the player.
//
// Reads are lock-free: Now() combines the monotonic elapsed time of the
// time provider with an atomically loaded offset. The offset only changes in
// AdvanceReference, under a short critical section.
type Clock struct {
	freq      int64
	threshold Tick
	tp        TimeProvider
	epoch     time.Time

	offset          atomic.Int64
	generation      atomic.Uint64
	discontinuities atomic.Uint64

	resyncMu sync.Mutex
}

// New creates a clock running at freq ticks per second, starting at tick 0.
// A nil time provider uses the system clock.
func New(freq int64, tp TimeProvider) *Clock {
	if freq <= 0 {
		freq = 1000000
	}
	tp = getTimeProvider(tp)

	c := &Clock{
		freq:  freq,
		tp:    tp,
		epoch: tp.Now(),
	}

	logrus.WithFields(logrus.Fields{
		"function":  "clock.New",
		"frequency": freq,
	}).Debug("Presentation clock created")

	return c
}

// SetDiscontinuityThreshold sets the drift above which a resync is reported
// as a discontinuity. Zero reports every non-zero drift.
func (c *Clock) SetDiscontinuityThreshold(threshold Tick) {
	c.resyncMu.Lock()
	c.threshold = threshold
	c.resyncMu.Unlock()
}

// Frequency returns the number of ticks per second.
func (c *Clock) Frequency() int64 {
	return c.freq
}

// Now returns the current tick count since stream start.
func (c *Clock) Now() Tick {
	return c.Elapsed() + Tick(c.offset.Load())
}

// Elapsed returns the ticks elapsed since the clock was created, ignoring
// every resynchronization. Use it to measure durations that must not jump
// with the timeline.
func (c *Clock) Elapsed() Tick {
	return c.FromDuration(c.tp.Now().Sub(c.epoch))
}

// AdvanceReference resynchronizes the clock so that Now() returns ts at the
// time of the call. It is used when an authoritative timestamp is observed,
// for instance after a stream discontinuity.
func (c *Clock) AdvanceReference(ts Tick) Resync {
	c.resyncMu.Lock()
	defer c.resyncMu.Unlock()

	previous := c.Now()
	drift := ts - previous
	c.offset.Add(int64(drift))

	r := Resync{
		Previous: previous,
		Current:  ts,
		Drift:    drift,
	}

	abs := drift
	if abs < 0 {
		abs = -abs
	}
	if abs > c.threshold {
		r.Discontinuity = true
		c.discontinuities.Add(1)
		c.generation.Add(1)

		logrus.WithFields(logrus.Fields{
			"function":  "Clock.AdvanceReference",
			"previous":  previous,
			"reference": ts,
			"drift":     drift,
		}).Info("Clock discontinuity, resynchronized")
	}

	return r
}

// Generation is incremented on every discontinuity. Consumers compare it to a
// previously observed value to notice that the timeline jumped.
func (c *Clock) Generation() uint64 {
	return c.generation.Load()
}

// Discontinuities returns the number of discontinuities observed so far.
func (c *Clock) Discontinuities() uint64 {
	return c.discontinuities.Load()
}

// Deadline returns the presentation deadline of a timestamp.
func (c *Clock) Deadline(pts, delay Tick) Tick {
	return pts + delay
}

// Duration converts a tick count to a time.Duration.
func (c *Clock) Duration(t Tick) time.Duration {
	return ToDuration(t, c.freq)
}

// FromDuration converts a time.Duration to a tick count.
func (c *Clock) FromDuration(d time.Duration) Tick {
	return FromDuration(d, c.freq)
}

// ToDuration converts ticks at freq ticks per second to a time.Duration.
func ToDuration(t Tick, freq int64) time.Duration {
	if freq == int64(time.Second/time.Microsecond) {
		return time.Duration(t) * time.Microsecond
	}
	sec := int64(t) / freq
	rem := int64(t) % freq
	return time.Duration(sec)*time.Second + time.Duration(rem*int64(time.Second)/freq)
}

// FromDuration converts a time.Duration to ticks at freq ticks per second.
func FromDuration(d time.Duration, freq int64) Tick {
	if freq == int64(time.Second/time.Microsecond) {
		return Tick(d / time.Microsecond)
	}
	sec := int64(d / time.Second)
	rem := int64(d % time.Second)
	return Tick(sec*freq + rem*freq/int64(time.Second))
}
