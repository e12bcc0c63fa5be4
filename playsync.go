package playsync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/opd-ai/playsync/audio"
	"github.com/opd-ai/playsync/clock"
	"github.com/opd-ai/playsync/codec"
	"github.com/opd-ai/playsync/config"
	"github.com/opd-ai/playsync/internal/notify"
	"github.com/opd-ai/playsync/metrics"
	"github.com/opd-ai/playsync/output"
	"github.com/opd-ai/playsync/picture"
	"github.com/opd-ai/playsync/synchro"
)

// Options contains the configuration of a Player.
type Options struct {
	// Config holds every capacity and timing limit. It is validated by New
	// and copied, so later changes to it are not observed.
	Config config.Snapshot
	// Renderer receives the pictures at their deadlines.
	Renderer output.Renderer
	// Sink receives the audio chunks at their deadlines.
	Sink output.AudioSink
	// TimeProvider drives the presentation clock. Nil uses the system clock.
	TimeProvider clock.TimeProvider
}

// NewOptions returns options holding the default configuration. Renderer and
// Sink must be set before calling New.
func NewOptions() *Options {
	return &Options{
		Config: config.Default(),
	}
}

// Player wires the presentation clock, the picture heap, the subpicture
// store, the audio ring and both outputs into one presentation pipeline.
//
// Decoders call the Submit methods from their own goroutines; Run drives the
// outputs until the context ends or Stop is called.
type Player struct {
	id  uuid.UUID
	cfg config.Snapshot
	clk *clock.Clock

	heap    *picture.Heap
	subs    *picture.SubpictureStore
	ring    *audio.RingBuffer
	policy  *synchro.Policy
	advisor *synchro.Advisor
	video   *output.VideoOutput
	audio   *output.AudioOutput

	// The ring has a single producer; audioMu serializes concurrent
	// SubmitDecodedAudio callers onto it.
	audioMu   sync.Mutex
	audioWake notify.Signal
	opus      *codec.OpusDecoder

	dropped       atomic.Uint64
	audioRejected atomic.Uint64
	captions      captionState

	mu      sync.Mutex
	running bool
	stopped bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates a player from options. A nil options value uses NewOptions,
// which has no renderer and therefore fails.
func New(options *Options) (*Player, error) {
	if options == nil {
		options = NewOptions()
	}
	if options.Renderer == nil {
		return nil, ErrNoRenderer
	}
	if options.Sink == nil {
		return nil, ErrNoSink
	}

	cfg := options.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ring, err := audio.NewRingBuffer(cfg.AoutFifoSize)
	if err != nil {
		return nil, fmt.Errorf("audio ring: %w", err)
	}
	advisor, err := synchro.NewAdvisor(cfg)
	if err != nil {
		return nil, fmt.Errorf("decode advisor: %w", err)
	}

	clk := clock.New(cfg.ClockFreq, options.TimeProvider)
	clk.SetDiscontinuityThreshold(cfg.DiscontinuityThreshold)

	p := &Player{
		id:      uuid.New(),
		cfg:     cfg,
		clk:     clk,
		heap:    picture.NewHeap(cfg, clk),
		subs:    picture.NewSubpictureStore(cfg.VoutMaxSubpictures),
		ring:    ring,
		policy:  synchro.NewPolicy(cfg),
		advisor: advisor,
		opus:    codec.NewOpusDecoder(cfg.ClockFreq),
	}
	p.video = output.NewVideoOutput(cfg, clk, p.heap, p.subs, p.policy, options.Renderer)
	p.audio = output.NewAudioOutput(cfg, clk, ring, p.policy, options.Sink, p.audioWake.C)

	logrus.WithFields(logrus.Fields{
		"function":     "playsync.New",
		"player_id":    p.id.String(),
		"pictures":     cfg.VoutMaxPictures,
		"audio_fifo":   cfg.AoutFifoSize,
		"pts_delay":    cfg.Duration(cfg.PTSDelay),
		"synchro_mode": advisor.Mode().String(),
	}).Info("Player created")

	return p, nil
}

// ID returns the identifier of the player used in its log entries.
func (p *Player) ID() uuid.UUID {
	return p.id
}

// Config returns the configuration snapshot of the player.
func (p *Player) Config() config.Snapshot {
	return p.cfg
}

// Clock returns the presentation clock.
func (p *Player) Clock() *clock.Clock {
	return p.clk
}

// Video returns the video output, for instance to drive it with Step in
// tests.
func (p *Player) Video() *output.VideoOutput {
	return p.video
}

// Audio returns the audio output.
func (p *Player) Audio() *output.AudioOutput {
	return p.audio
}

// Heap returns the picture heap.
func (p *Player) Heap() *picture.Heap {
	return p.heap
}

// SubmitDecodedPicture publishes a decoded picture presented at ts.
//
// When the heap has been full for longer than HeapExhaustionTolerance the
// picture is dropped at once; otherwise the call waits up to
// VoutOutmemSleep for a free slot. Both cases fail with ErrHeapExhausted.
// The planes are referenced, not copied, until the picture is displayed or
// skipped.
func (p *Player) SubmitDecodedPicture(ctx context.Context, ts clock.Tick, planes [][]byte) error {
	if p.policy.DropDecoded(p.heap.Occupancy()) {
		p.dropped.Add(1)
		metrics.RecordDroppedDecoded()

		logrus.WithFields(logrus.Fields{
			"function":  "Player.SubmitDecodedPicture",
			"player_id": p.id.String(),
			"pts":       ts,
		}).Warn("Heap full beyond tolerance, dropping decoded picture")

		return fmt.Errorf("%w: dropped picture at %d", ErrHeapExhausted, ts)
	}

	handle, err := p.heap.AcquireEmpty(ctx, p.cfg.Duration(p.cfg.VoutOutmemSleep))
	if err != nil {
		if errors.Is(err, picture.ErrHeapExhausted) {
			metrics.RecordHeapExhausted()
		}
		return err
	}

	if err := p.heap.Publish(handle, ts, planes); err != nil {
		if !errors.Is(err, picture.ErrClosed) {
			if cerr := p.heap.Cancel(handle); cerr != nil {
				logrus.WithFields(logrus.Fields{
					"function":  "Player.SubmitDecodedPicture",
					"player_id": p.id.String(),
					"handle":    handle,
					"error":     cerr.Error(),
				}).Error("Failed to cancel picture slot")
			}
		}
		return err
	}

	metrics.SetHeapOccupancy(p.heap.Occupancy())

	logrus.WithFields(logrus.Fields{
		"function": "Player.SubmitDecodedPicture",
		"handle":   handle,
		"pts":      ts,
	}).Trace("Picture published")

	return nil
}

// SubmitDecodedAudio queues interleaved samples presented at ts. It never
// blocks: a full ring fails with ErrBufferFull and the chunk is lost.
func (p *Player) SubmitDecodedAudio(ts clock.Tick, samples []int16, channels, rate int) error {
	if channels <= 0 {
		channels = p.cfg.AoutChannels()
	}
	if rate <= 0 {
		rate = p.cfg.AoutRate
	}
	chunk := audio.Chunk{
		PTS:      ts,
		Samples:  samples,
		Channels: channels,
		Rate:     rate,
	}

	p.audioMu.Lock()
	err := p.ring.Push(chunk)
	queued := p.ring.Len()
	p.audioMu.Unlock()

	if err != nil {
		p.audioRejected.Add(1)
		metrics.RecordAudioChunk(metrics.OutcomeRejected)

		logrus.WithFields(logrus.Fields{
			"function":  "Player.SubmitDecodedAudio",
			"player_id": p.id.String(),
			"pts":       ts,
			"queued":    queued,
		}).Warn("Audio ring full, dropping chunk")

		return fmt.Errorf("chunk at %d: %w", ts, err)
	}

	metrics.SetAudioQueueDepth(queued)
	p.audioWake.Broadcast()
	return nil
}

// SubmitOpus decodes an Opus packet presented at ts and queues the result
// like SubmitDecodedAudio. Undecodable packets fail with codec.ErrDecode and
// are not queued.
func (p *Player) SubmitOpus(ts clock.Tick, packet []byte) error {
	chunk, err := p.opus.Decode(ts, packet)
	if err != nil {
		p.audioRejected.Add(1)
		metrics.RecordAudioChunk(metrics.OutcomeRejected)
		return fmt.Errorf("opus packet at %d: %w", ts, err)
	}
	return p.SubmitDecodedAudio(chunk.PTS, chunk.Samples, chunk.Channels, chunk.Rate)
}

// ShouldDecode tells a video decoder whether a picture of coding type t
// presented at ts is worth decoding, given the decoding speed observed so
// far and the synchro mode.
func (p *Player) ShouldDecode(t synchro.CodingType, ts clock.Tick) bool {
	return p.advisor.ShouldDecode(t, p.policy.Deadline(ts), p.clk.Now())
}

// Decoded reports how long the decoding of a picture of type t took.
func (p *Player) Decoded(t synchro.CodingType, took time.Duration) {
	p.advisor.Decoded(t, p.cfg.Ticks(took))
}

// Resync moves the presentation clock to ts. Input stages call it when they
// observe an authoritative timestamp.
func (p *Player) Resync(ts clock.Tick) clock.Resync {
	r := p.clk.AdvanceReference(ts)
	if r.Discontinuity {
		metrics.RecordDiscontinuity()
	}
	// Deadlines moved: both outputs re-evaluate their pending frame.
	p.heap.Wake()
	p.audioWake.Broadcast()
	return r
}

// Flush drops every picture waiting for display and every subpicture, for
// instance after a seek. Queued audio chunks are not touched: the ring only
// has one consumer, and chunks of the old timeline are skipped as late once
// the clock is resynchronized.
func (p *Player) Flush() int {
	n := p.heap.Flush()
	p.subs.Clear()
	metrics.RecordFlushed(n)

	logrus.WithFields(logrus.Fields{
		"function":  "Player.Flush",
		"player_id": p.id.String(),
		"flushed":   n,
	}).Info("Player flushed")

	return n
}

// Run drives both outputs until ctx is done or Stop is called, then closes
// the picture heap. A player runs once; later calls fail with ErrClosed.
func (p *Player) Run(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return ErrAlreadyRunning
	}
	if p.stopped {
		p.mu.Unlock()
		return ErrClosed
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	p.running = true
	p.cancel = cancel
	p.done = done
	p.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function":  "Player.Run",
		"player_id": p.id.String(),
	}).Info("Player started")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return p.video.Run(gctx)
	})
	g.Go(func() error {
		return p.audio.Run(gctx)
	})
	err := g.Wait()
	cancel()

	flushed := p.heap.Close()
	metrics.RecordFlushed(flushed)

	p.mu.Lock()
	p.running = false
	p.stopped = true
	p.cancel = nil
	p.mu.Unlock()
	close(done)

	report := p.Report()
	logrus.WithFields(logrus.Fields{
		"function":  "Player.Run",
		"player_id": p.id.String(),
		"displayed": report.Displayed,
		"skipped":   report.Skipped,
		"flushed":   flushed,
	}).Info("Player stopped")

	return err
}

// Stop ends Run and waits for both outputs to return.
func (p *Player) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return ErrNotRunning
	}
	cancel, done := p.cancel, p.done
	p.mu.Unlock()

	cancel()
	<-done
	return nil
}

// IsRunning reports whether Run is in progress.
func (p *Player) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Report returns a summary of the player counters. It is the usual source
// of a metrics.Reporter.
func (p *Player) Report() metrics.Report {
	heap := p.heap.Stats()
	occ := p.heap.Occupancy()
	counters := p.video.Counters()
	audioStats := p.audio.Stats()

	return metrics.Report{
		Published:       heap.Published,
		Displayed:       heap.Displayed,
		Skipped:         heap.Skipped,
		Late:            counters.Late,
		Backpressure:    counters.Backpressure,
		DroppedDecoded:  p.dropped.Load(),
		Exhausted:       heap.Exhausted,
		HeapUsed:        occ.Used,
		HeapCapacity:    occ.Capacity,
		FPS:             p.video.FPS(),
		AudioPlayed:     audioStats.Played,
		AudioRejected:   p.audioRejected.Load() + audioStats.Late,
		AudioUnderruns:  audioStats.Underruns,
		AudioQueued:     p.ring.Len(),
		Discontinuities: p.clk.Discontinuities(),
		Timestamp:       time.Now(),
	}
}
