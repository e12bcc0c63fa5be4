package output

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/playsync/audio"
	"github.com/opd-ai/playsync/clock"
	"github.com/opd-ai/playsync/config"
	"github.com/opd-ai/playsync/internal/notify"
	"github.com/opd-ai/playsync/metrics"
	"github.com/opd-ai/playsync/picture"
	"github.com/opd-ai/playsync/synchro"
)

// AudioStats holds the audio output counters.
type AudioStats struct {
	Played    uint64
	Late      uint64
	Underruns uint64
	// Silence is the total silence played to cover under-runs.
	Silence clock.Tick
	// Flushed counts chunks dropped when the output stopped.
	Flushed uint64
}

// AudioOutput plays chunks from a ring buffer at their deadlines. It is the
// ring's only consumer.
type AudioOutput struct {
	cfg    config.Snapshot
	clk    *clock.Clock
	ring   *audio.RingBuffer
	policy *synchro.Policy
	sink   AudioSink
	wake   func() <-chan struct{}

	state stateCell

	mu       sync.Mutex
	started  bool
	underrun bool
	stats    AudioStats
}

// NewAudioOutput creates an audio output. wake, when not nil, returns a
// channel closed when the producer pushes a chunk.
func NewAudioOutput(cfg config.Snapshot, clk *clock.Clock, ring *audio.RingBuffer,
	policy *synchro.Policy, sink AudioSink, wake func() <-chan struct{},
) *AudioOutput {
	return &AudioOutput{
		cfg:    cfg,
		clk:    clk,
		ring:   ring,
		policy: policy,
		sink:   sink,
		wake:   wake,
	}
}

// State returns the current state of the output.
func (a *AudioOutput) State() State {
	return a.state.load()
}

// Stats returns a copy of the counters.
func (a *AudioOutput) Stats() AudioStats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}

// Step evaluates the oldest queued chunk once. An empty ring after playback
// started is an under-run and is filled with AoutBufferDuration of silence.
func (a *AudioOutput) Step() StepResult {
	if a.State() == Stopped {
		return StepResult{State: Stopped}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	metrics.SetAudioQueueDepth(a.ring.Len())

	c, err := a.ring.Peek()
	if errors.Is(err, audio.ErrBufferEmpty) {
		a.state.set(Idle)
		if !a.started {
			return StepResult{State: Idle, Wait: a.cfg.Duration(a.cfg.ThreadSleep)}
		}
		a.fillUnderrunLocked()
		return StepResult{State: Idle, Wait: a.cfg.Duration(a.cfg.AoutBufferDuration)}
	}

	now := a.clk.Now()
	// Audio has no heap, so the backpressure rule never applies.
	d := a.policy.Decide(a.policy.Deadline(c.PTS), now, picture.Occupancy{})

	switch d.Action {
	case synchro.Wait:
		a.state.set(WaitingForDue)
		return StepResult{State: WaitingForDue, Decision: d, PTS: c.PTS, Wait: a.clk.Duration(d.Wait)}

	case synchro.Skip:
		if _, err := a.ring.Pop(); err == nil {
			a.stats.Late++
			metrics.RecordAudioChunk(metrics.OutcomeLate)
			logrus.WithFields(logrus.Fields{
				"function": "AudioOutput.Step",
				"pts":      c.PTS,
				"now":      now,
			}).Warn("Late audio chunk dropped")
		}
		a.state.set(Idle)
		return StepResult{State: Idle, Decision: d, Handled: true, PTS: c.PTS}
	}

	a.state.set(Presenting)
	if _, err := a.ring.Pop(); err != nil {
		a.state.set(Idle)
		return StepResult{State: Idle, Decision: d}
	}
	a.sink.PlayChunk(c)
	a.stats.Played++
	a.started = true
	a.underrun = false
	metrics.RecordAudioChunk(metrics.OutcomePlayed)
	a.state.set(Idle)

	return StepResult{State: Idle, Decision: d, Handled: true, PTS: c.PTS}
}

func (a *AudioOutput) fillUnderrunLocked() {
	if !a.underrun {
		a.underrun = true
		a.stats.Underruns++
		metrics.RecordUnderrun()
		logrus.WithFields(logrus.Fields{
			"function": "AudioOutput.Step",
			"played":   a.stats.Played,
		}).Warn("Audio under-run, playing silence")
	}
	a.sink.PlaySilence(a.cfg.AoutBufferDuration)
	a.stats.Silence += a.cfg.AoutBufferDuration
}

// Run plays chunks until ctx is done or Stop is called, then drops what is
// still queued. A chunk that is not due yet is re-evaluated at least every
// ThreadSleep.
func (a *AudioOutput) Run(ctx context.Context) error {
	if a.State() == Stopped {
		return ErrStopped
	}

	logrus.WithFields(logrus.Fields{
		"function": "AudioOutput.Run",
		"capacity": a.ring.Cap(),
	}).Info("Audio output started")

	defer a.shutdown()

	ctx, cancel := a.state.withStop(ctx)
	defer cancel()

	idle := a.cfg.Duration(a.cfg.ThreadSleep)
	for {
		if ctx.Err() != nil {
			return nil
		}

		var woken <-chan struct{}
		if a.wake != nil {
			woken = a.wake()
		}
		res := a.Step()
		if res.State == Stopped {
			return nil
		}
		if res.Handled {
			continue
		}

		// An under-run wait covers the silence just played and is kept whole.
		wait := res.Wait
		if res.State == WaitingForDue {
			wait = min(wait, idle)
		}
		if wait <= 0 {
			wait = idle
		}
		if notify.Wait(ctx, woken, wait) == notify.Canceled {
			return nil
		}
	}
}

// Stop moves the output to Stopped and wakes a running loop.
func (a *AudioOutput) Stop() {
	a.state.stop()
}

func (a *AudioOutput) shutdown() {
	a.state.stop()
	n := a.ring.Reset()

	a.mu.Lock()
	a.stats.Flushed += uint64(n)
	stats := a.stats
	a.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function":  "AudioOutput.Run",
		"played":    stats.Played,
		"late":      stats.Late,
		"underruns": stats.Underruns,
		"flushed":   n,
	}).Info("Audio output stopped")
}
