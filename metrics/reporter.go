package metrics

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrAlreadyRunning is returned when trying to start an already running reporter.
var ErrAlreadyRunning = errors.New("reporter is already running")

// Report is a point-in-time summary of a player.
type Report struct {
	// Video output
	Published      uint64
	Displayed      uint64
	Skipped        uint64
	Late           uint64
	Backpressure   uint64
	DroppedDecoded uint64
	Exhausted      uint64
	HeapUsed       int
	HeapCapacity   int
	FPS            float64

	// Audio output
	AudioPlayed    uint64
	AudioRejected  uint64
	AudioUnderruns uint64
	AudioQueued    int

	// Clock
	Discontinuities uint64

	// Report metadata
	Timestamp time.Time
	Interval  time.Duration
}

// DropRate returns the share of published pictures that were not displayed.
func (r Report) DropRate() float64 {
	total := r.Displayed + r.Skipped + r.DroppedDecoded
	if total == 0 {
		return 0
	}
	return float64(r.Skipped+r.DroppedDecoded) / float64(total)
}

// Reporter periodically collects a Report from a source, publishes its
// gauges and hands it to the registered callback.
//
// Example usage:
//
//	reporter := metrics.NewReporter(player.Report, 5*time.Second)
//	reporter.OnReport(func(r metrics.Report) {
//	    fmt.Printf("displayed %d, dropped %.1f%%\n", r.Displayed, 100*r.DropRate())
//	})
//	reporter.Start()
//	defer reporter.Stop()
type Reporter struct {
	interval time.Duration
	source   func() Report

	mu       sync.RWMutex
	running  bool
	last     Report
	callback func(Report)

	cancel context.CancelFunc
	done   chan struct{}
}

// NewReporter creates a reporter sampling source every interval.
func NewReporter(source func() Report, interval time.Duration) *Reporter {
	if interval <= 0 {
		interval = time.Second
	}

	logrus.WithFields(logrus.Fields{
		"function": "metrics.NewReporter",
		"interval": interval,
	}).Debug("Creating metrics reporter")

	return &Reporter{
		interval: interval,
		source:   source,
	}
}

// Start begins periodic reporting.
func (r *Reporter) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.done = make(chan struct{})
	r.running = true

	go r.reportLoop(ctx, r.done)

	logrus.WithFields(logrus.Fields{
		"function": "Reporter.Start",
		"interval": r.interval,
	}).Info("Metrics reporter started")

	return nil
}

// Stop halts reporting and waits for the report loop to exit.
func (r *Reporter) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	r.cancel()
	done := r.done
	r.mu.Unlock()

	<-done

	logrus.WithFields(logrus.Fields{
		"function": "Reporter.Stop",
	}).Info("Metrics reporter stopped")
}

// IsRunning returns whether the reporter is active.
func (r *Reporter) IsRunning() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.running
}

// OnReport registers a callback for periodic reports. The callback runs on
// the report goroutine and should return quickly.
func (r *Reporter) OnReport(callback func(Report)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callback = callback
}

// Last returns the most recent report.
func (r *Reporter) Last() Report {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.last
}

// Collect samples the source once, publishes the gauges and dispatches the
// report.
func (r *Reporter) Collect() Report {
	report := r.source()
	report.Timestamp = time.Now()
	report.Interval = r.interval

	SetFPS(report.FPS)
	SetAudioQueueDepth(report.AudioQueued)
	heapSlotsUsed.Set(float64(report.HeapUsed))

	r.mu.Lock()
	r.last = report
	callback := r.callback
	r.mu.Unlock()

	if callback != nil {
		callback(report)
	}

	logrus.WithFields(logrus.Fields{
		"function":        "Reporter.Collect",
		"displayed":       report.Displayed,
		"skipped":         report.Skipped,
		"dropped_decoded": report.DroppedDecoded,
		"heap_used":       report.HeapUsed,
		"audio_queued":    report.AudioQueued,
		"underruns":       report.AudioUnderruns,
		"fps":             report.FPS,
	}).Debug("Generated report")

	return report
}

func (r *Reporter) reportLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Collect()
		}
	}
}
