package output

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/playsync/clock"
	"github.com/opd-ai/playsync/config"
	"github.com/opd-ai/playsync/internal/notify"
	"github.com/opd-ai/playsync/metrics"
	"github.com/opd-ai/playsync/picture"
	"github.com/opd-ai/playsync/synchro"
)

// VideoOutput presents pictures from a heap at their deadlines.
type VideoOutput struct {
	cfg      config.Snapshot
	clk      *clock.Clock
	heap     *picture.Heap
	subs     *picture.SubpictureStore
	policy   *synchro.Policy
	renderer Renderer

	state    stateCell
	counters synchro.Counters

	// Guarded by mu; only the goroutine calling Step writes them.
	mu           sync.Mutex
	fpsSamples   []clock.Tick
	fpsNext      int
	fpsCount     int
	lastActivity clock.Tick
	idleShown    bool
	loops        int
}

// NewVideoOutput creates a video output. subs may be nil.
func NewVideoOutput(cfg config.Snapshot, clk *clock.Clock, heap *picture.Heap,
	subs *picture.SubpictureStore, policy *synchro.Policy, renderer Renderer,
) *VideoOutput {
	samples := cfg.VoutFPSSamples
	if samples < 2 {
		samples = 2
	}
	return &VideoOutput{
		cfg:          cfg,
		clk:          clk,
		heap:         heap,
		subs:         subs,
		policy:       policy,
		renderer:     renderer,
		fpsSamples:   make([]clock.Tick, samples),
		lastActivity: clk.Now(),
	}
}

// State returns the current state of the output.
func (v *VideoOutput) State() State {
	return v.state.load()
}

// Counters returns the decision tallies.
func (v *VideoOutput) Counters() synchro.CounterSnapshot {
	return v.counters.Snapshot()
}

// FPS returns the display rate over the last VoutFPSSamples pictures.
func (v *VideoOutput) FPS() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.fpsLocked()
}

// Step evaluates the earliest Ready picture once and presents or skips it
// when the policy says so. It never sleeps.
func (v *VideoOutput) Step() StepResult {
	if v.State() == Stopped {
		return StepResult{State: Stopped}
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	v.loops++
	if v.cfg.VoutStatsNbLoops > 0 && v.loops%v.cfg.VoutStatsNbLoops == 0 {
		v.logStatsLocked()
	}

	now := v.clk.Now()
	candidate, ok := v.heap.Peek()
	if !ok {
		v.state.set(Idle)
		v.maybeIdleScreenLocked(now)
		return StepResult{State: Idle, Wait: v.cfg.Duration(v.cfg.VoutIdleSleep)}
	}

	occ := v.heap.Occupancy()
	metrics.SetHeapOccupancy(occ)

	d := v.policy.Decide(v.policy.Deadline(candidate.PTS), now, occ)
	v.counters.Record(d)
	metrics.RecordVideoDecision(d)

	switch d.Action {
	case synchro.Wait:
		v.state.set(WaitingForDue)
		return StepResult{
			State:    WaitingForDue,
			Decision: d,
			PTS:      candidate.PTS,
			Wait:     v.clk.Duration(d.Wait),
		}

	case synchro.Skip:
		if err := v.heap.Discard(candidate.Handle); err != nil {
			// Flushed or closed since Peek.
			logrus.WithFields(logrus.Fields{
				"function": "VideoOutput.Step",
				"handle":   candidate.Handle,
				"error":    err.Error(),
			}).Debug("Skipped picture already gone")
		} else {
			logrus.WithFields(logrus.Fields{
				"function": "VideoOutput.Step",
				"pts":      candidate.PTS,
				"now":      now,
				"reason":   d.Reason.String(),
			}).Warn("Picture skipped")
		}
		v.state.set(Idle)
		return StepResult{State: Idle, Decision: d, Handled: true, PTS: candidate.PTS}
	}

	v.state.set(Presenting)
	// A picture published after Peek with an earlier timestamp is presented
	// first; its deadline is not later than the candidate's.
	f, ok := v.heap.AcquireReady(candidate.PTS)
	if !ok {
		v.state.set(Idle)
		return StepResult{State: Idle, Decision: d}
	}
	v.presentLocked(f, now)
	v.state.set(Idle)

	return StepResult{State: Idle, Decision: d, Handled: true, PTS: f.PTS}
}

func (v *VideoOutput) presentLocked(f picture.Frame, now clock.Tick) {
	var subs []picture.Subpicture
	if v.subs != nil {
		subs = v.subs.Active(f.PTS)
	}

	v.renderer.PresentPicture(f, subs)

	if err := v.heap.Release(f.Handle); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "VideoOutput.present",
			"handle":   f.Handle,
			"error":    err.Error(),
		}).Error("Failed to release displayed picture")
	}

	v.fpsSamples[v.fpsNext] = now
	v.fpsNext = (v.fpsNext + 1) % len(v.fpsSamples)
	if v.fpsCount < len(v.fpsSamples) {
		v.fpsCount++
	}
	v.lastActivity = now
	v.idleShown = false

	logrus.WithFields(logrus.Fields{
		"function":    "VideoOutput.present",
		"pts":         f.PTS,
		"now":         now,
		"subpictures": len(subs),
	}).Trace("Picture presented")
}

func (v *VideoOutput) maybeIdleScreenLocked(now clock.Tick) {
	if v.idleShown || now-v.lastActivity < v.cfg.VoutIdleDelay {
		return
	}
	idle, ok := v.renderer.(IdleRenderer)
	if !ok {
		return
	}
	idle.PresentIdle()
	v.idleShown = true

	logrus.WithFields(logrus.Fields{
		"function": "VideoOutput.Step",
		"idle_for": v.clk.Duration(now - v.lastActivity),
	}).Info("Idle screen displayed")
}

func (v *VideoOutput) fpsLocked() float64 {
	if v.fpsCount < 2 {
		return 0
	}
	newest := v.fpsSamples[(v.fpsNext-1+len(v.fpsSamples))%len(v.fpsSamples)]
	oldest := v.fpsSamples[(v.fpsNext-v.fpsCount+len(v.fpsSamples))%len(v.fpsSamples)]
	if newest <= oldest {
		return 0
	}
	return float64(v.fpsCount-1) * float64(v.clk.Frequency()) / float64(newest-oldest)
}

func (v *VideoOutput) logStatsLocked() {
	fps := v.fpsLocked()
	metrics.SetFPS(fps)

	c := v.counters.Snapshot()
	logrus.WithFields(logrus.Fields{
		"function":     "VideoOutput.Step",
		"loops":        v.loops,
		"fps":          fps,
		"displayed":    c.Displayed,
		"late":         c.Late,
		"backpressure": c.Backpressure,
	}).Debug("Video output statistics")
}

// Run presents pictures until ctx is done or Stop is called. Between steps it
// sleeps until the next deadline, the next heap change or the idle sleep,
// whichever comes first. It returns nil when stopped.
func (v *VideoOutput) Run(ctx context.Context) error {
	if v.State() == Stopped {
		return ErrStopped
	}

	logrus.WithFields(logrus.Fields{
		"function":   "VideoOutput.Run",
		"idle_sleep": v.cfg.Duration(v.cfg.VoutIdleSleep),
		"capacity":   v.heap.Capacity(),
	}).Info("Video output started")

	defer func() {
		v.state.stop()
		logrus.WithFields(logrus.Fields{
			"function": "VideoOutput.Run",
			"fps":      v.FPS(),
		}).Info("Video output stopped")
	}()

	ctx, cancel := v.state.withStop(ctx)
	defer cancel()

	idle := v.cfg.Duration(v.cfg.VoutIdleSleep)
	for {
		if ctx.Err() != nil {
			return nil
		}

		changed := v.heap.Changed()
		res := v.Step()
		if res.State == Stopped {
			return nil
		}
		if res.Handled {
			continue
		}

		// A far deadline is re-evaluated every idle sleep, so a clock
		// resynchronization is noticed without a heap change.
		wait := min(res.Wait, idle)
		if wait <= 0 {
			wait = idle
		}
		if notify.Wait(ctx, changed, wait) == notify.Canceled {
			return nil
		}
	}
}

// Stop moves the output to Stopped and wakes a running loop, which returns
// without presenting anything else.
func (v *VideoOutput) Stop() {
	v.state.stop()
}

