package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/opd-ai/playsync/picture"
	"github.com/opd-ai/playsync/synchro"
)

// Outcome label values.
const (
	OutcomeDisplayed      = "displayed"
	OutcomeLate           = "late"
	OutcomeBackpressure   = "backpressure"
	OutcomeDroppedDecoded = "dropped_decoded"
	OutcomeFlushed        = "flushed"
	OutcomePlayed         = "played"
	OutcomeRejected       = "rejected"
	OutcomeAccepted       = "accepted"
	OutcomeReordered      = "reordered"
	OutcomeDuplicate      = "duplicate"
)

var (
	videoFramesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "playsync_video_frames_total",
			Help: "Total number of video frames by outcome",
		},
		[]string{"outcome"},
	)

	videoWaitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "playsync_video_waits_total",
			Help: "Total number of early-frame waits of the video output",
		},
	)

	heapExhaustedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "playsync_heap_exhausted_total",
			Help: "Total number of picture slot requests that found the heap exhausted",
		},
	)

	heapSlotsUsed = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "playsync_heap_slots_used",
			Help: "Current number of non-empty picture heap slots",
		},
	)

	heapSlotsReady = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "playsync_heap_slots_ready",
			Help: "Current number of pictures waiting for display",
		},
	)

	videoFPS = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "playsync_video_fps",
			Help: "Displayed pictures per second over the last samples",
		},
	)

	audioChunksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "playsync_audio_chunks_total",
			Help: "Total number of audio chunks by outcome",
		},
		[]string{"outcome"},
	)

	audioUnderrunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "playsync_audio_underruns_total",
			Help: "Total number of audio under-runs filled with silence",
		},
	)

	audioQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "playsync_audio_queue_depth",
			Help: "Current number of queued audio chunks",
		},
	)

	clockDiscontinuitiesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "playsync_clock_discontinuities_total",
			Help: "Total number of clock resynchronizations beyond the discontinuity threshold",
		},
	)

	ingestPacketsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "playsync_ingest_packets_total",
			Help: "Total number of input packets by outcome",
		},
		[]string{"outcome"},
	)
)

// RecordVideoDecision counts a decision of the video output.
func RecordVideoDecision(d synchro.Decision) {
	switch {
	case d.Action == synchro.Display:
		videoFramesTotal.WithLabelValues(OutcomeDisplayed).Inc()
	case d.Action == synchro.Wait:
		videoWaitsTotal.Inc()
	case d.Reason == synchro.Backpressure:
		videoFramesTotal.WithLabelValues(OutcomeBackpressure).Inc()
	default:
		videoFramesTotal.WithLabelValues(OutcomeLate).Inc()
	}
}

// RecordDroppedDecoded counts a picture dropped by its decoder.
func RecordDroppedDecoded() {
	videoFramesTotal.WithLabelValues(OutcomeDroppedDecoded).Inc()
}

// RecordFlushed counts pictures flushed from the heap.
func RecordFlushed(n int) {
	if n > 0 {
		videoFramesTotal.WithLabelValues(OutcomeFlushed).Add(float64(n))
	}
}

// RecordHeapExhausted counts a failed picture slot request.
func RecordHeapExhausted() {
	heapExhaustedTotal.Inc()
}

// SetHeapOccupancy publishes the heap occupancy.
func SetHeapOccupancy(occ picture.Occupancy) {
	heapSlotsUsed.Set(float64(occ.Used))
	heapSlotsReady.Set(float64(occ.Ready))
}

// SetFPS publishes the display rate.
func SetFPS(fps float64) {
	videoFPS.Set(fps)
}

// RecordAudioChunk counts an audio chunk with the given outcome.
func RecordAudioChunk(outcome string) {
	audioChunksTotal.WithLabelValues(outcome).Inc()
}

// RecordUnderrun counts an audio under-run.
func RecordUnderrun() {
	audioUnderrunsTotal.Inc()
}

// SetAudioQueueDepth publishes the ring buffer length.
func SetAudioQueueDepth(n int) {
	audioQueueDepth.Set(float64(n))
}

// RecordDiscontinuity counts a clock discontinuity.
func RecordDiscontinuity() {
	clockDiscontinuitiesTotal.Inc()
}

// RecordIngestPacket counts an input packet with the given outcome.
func RecordIngestPacket(outcome string) {
	ingestPacketsTotal.WithLabelValues(outcome).Inc()
}
