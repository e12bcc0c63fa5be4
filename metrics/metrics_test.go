package metrics

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/playsync/picture"
	"github.com/opd-ai/playsync/synchro"
)

func TestRecordVideoDecision(t *testing.T) {
	displayed := testutil.ToFloat64(videoFramesTotal.WithLabelValues(OutcomeDisplayed))
	late := testutil.ToFloat64(videoFramesTotal.WithLabelValues(OutcomeLate))
	backpressure := testutil.ToFloat64(videoFramesTotal.WithLabelValues(OutcomeBackpressure))
	waits := testutil.ToFloat64(videoWaitsTotal)

	RecordVideoDecision(synchro.Decision{Action: synchro.Display})
	RecordVideoDecision(synchro.Decision{Action: synchro.Skip, Reason: synchro.Late})
	RecordVideoDecision(synchro.Decision{Action: synchro.Skip, Reason: synchro.Backpressure})
	RecordVideoDecision(synchro.Decision{Action: synchro.Wait, Wait: 5, Reason: synchro.Early})

	assert.Equal(t, displayed+1, testutil.ToFloat64(videoFramesTotal.WithLabelValues(OutcomeDisplayed)))
	assert.Equal(t, late+1, testutil.ToFloat64(videoFramesTotal.WithLabelValues(OutcomeLate)))
	assert.Equal(t, backpressure+1, testutil.ToFloat64(videoFramesTotal.WithLabelValues(OutcomeBackpressure)))
	assert.Equal(t, waits+1, testutil.ToFloat64(videoWaitsTotal))
}

func TestGauges(t *testing.T) {
	SetHeapOccupancy(picture.Occupancy{Used: 5, Ready: 3, Capacity: 8})
	assert.Equal(t, 5.0, testutil.ToFloat64(heapSlotsUsed))
	assert.Equal(t, 3.0, testutil.ToFloat64(heapSlotsReady))

	flushed := testutil.ToFloat64(videoFramesTotal.WithLabelValues(OutcomeFlushed))
	RecordFlushed(0)
	RecordFlushed(4)
	assert.Equal(t, flushed+4, testutil.ToFloat64(videoFramesTotal.WithLabelValues(OutcomeFlushed)))
}

func TestReportDropRate(t *testing.T) {
	assert.Equal(t, 0.0, Report{}.DropRate())
	r := Report{Displayed: 6, Skipped: 3, DroppedDecoded: 1}
	assert.InDelta(t, 0.4, r.DropRate(), 1e-9)
}

func TestReporterCollect(t *testing.T) {
	reporter := NewReporter(func() Report {
		return Report{Displayed: 10, FPS: 25, AudioQueued: 7}
	}, time.Minute)

	var got Report
	reporter.OnReport(func(r Report) { got = r })

	report := reporter.Collect()
	assert.Equal(t, uint64(10), report.Displayed)
	assert.Equal(t, time.Minute, report.Interval)
	assert.False(t, report.Timestamp.IsZero())
	assert.Equal(t, report, got)
	assert.Equal(t, report, reporter.Last())
	assert.Equal(t, 25.0, testutil.ToFloat64(videoFPS))
	assert.Equal(t, 7.0, testutil.ToFloat64(audioQueueDepth))
}

func TestReporterLifecycle(t *testing.T) {
	var calls atomic.Int64
	reporter := NewReporter(func() Report {
		calls.Add(1)
		return Report{}
	}, 5*time.Millisecond)

	require.NoError(t, reporter.Start())
	assert.True(t, reporter.IsRunning())
	assert.ErrorIs(t, reporter.Start(), ErrAlreadyRunning)

	assert.Eventually(t, func() bool { return calls.Load() >= 2 }, time.Second, time.Millisecond)

	reporter.Stop()
	assert.False(t, reporter.IsRunning())
	n := calls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, n, calls.Load())

	// Stop is idempotent and the reporter can be restarted.
	reporter.Stop()
	require.NoError(t, reporter.Start())
	reporter.Stop()
}
