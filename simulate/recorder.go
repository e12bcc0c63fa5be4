package simulate

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/playsync/audio"
	"github.com/opd-ai/playsync/clock"
	"github.com/opd-ai/playsync/picture"
)

// Presentation records one picture handed to a Renderer.
type Presentation struct {
	Handle      picture.Handle
	PTS         clock.Tick
	Seq         uint64
	Planes      int
	Subpictures []string
	// At is the clock date of the presentation, zero without a clock.
	At clock.Tick
}

// Renderer is an in-memory renderer that logs every presentation for test
// verification. It is safe for concurrent use.
type Renderer struct {
	mu      sync.RWMutex
	clk     *clock.Clock
	delay   time.Duration
	log     []Presentation
	idle    int
	pending chan struct{}
}

// NewRenderer creates a recording renderer. clk may be nil.
func NewRenderer(clk *clock.Clock) *Renderer {
	logrus.WithFields(logrus.Fields{
		"function": "simulate.NewRenderer",
	}).Debug("Creating recording renderer")

	return &Renderer{
		clk:     clk,
		pending: make(chan struct{}, 1),
	}
}

// SetDelay makes every presentation take d, to simulate a slow backend.
func (r *Renderer) SetDelay(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delay = d
}

// PresentPicture records the picture and its subpictures.
func (r *Renderer) PresentPicture(f picture.Frame, subs []picture.Subpicture) {
	p := Presentation{
		Handle: f.Handle,
		PTS:    f.PTS,
		Seq:    f.Seq,
		Planes: len(f.Planes),
	}
	for _, sp := range subs {
		p.Subpictures = append(p.Subpictures, sp.Text)
	}
	if r.clk != nil {
		p.At = r.clk.Now()
	}

	r.mu.Lock()
	r.log = append(r.log, p)
	delay := r.delay
	r.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	select {
	case r.pending <- struct{}{}:
	default:
	}
}

// PresentIdle counts idle screens.
func (r *Renderer) PresentIdle() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.idle++
}

// Presented returns a channel receiving after presentations. Several
// presentations may be coalesced into one receive.
func (r *Renderer) Presented() <-chan struct{} {
	return r.pending
}

// Log returns a copy of the presentation log.
func (r *Renderer) Log() []Presentation {
	r.mu.RLock()
	defer r.mu.RUnlock()

	log := make([]Presentation, len(r.log))
	copy(log, r.log)
	return log
}

// Count returns the number of presented pictures.
func (r *Renderer) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.log)
}

// IdleScreens returns the number of idle screens shown.
func (r *Renderer) IdleScreens() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.idle
}

// Clear empties the log.
func (r *Renderer) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log = r.log[:0]
	r.idle = 0
}

// Playback records one chunk handed to a Sink.
type Playback struct {
	PTS     clock.Tick
	Samples int
	// Silence is set for under-run filler, with its length in Duration.
	Silence  bool
	Duration clock.Tick
}

// Sink is an in-memory audio sink that logs playback for test verification.
// It is safe for concurrent use.
type Sink struct {
	mu      sync.RWMutex
	log     []Playback
	silence clock.Tick
}

// NewSink creates a recording sink.
func NewSink() *Sink {
	return &Sink{}
}

// PlayChunk records a chunk.
func (s *Sink) PlayChunk(c audio.Chunk) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log = append(s.log, Playback{PTS: c.PTS, Samples: len(c.Samples)})
}

// PlaySilence records an under-run filler.
func (s *Sink) PlaySilence(d clock.Tick) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log = append(s.log, Playback{Silence: true, Duration: d})
	s.silence += d
}

// Log returns a copy of the playback log.
func (s *Sink) Log() []Playback {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log := make([]Playback, len(s.log))
	copy(log, s.log)
	return log
}

// Chunks returns the timestamps of the played chunks, silence excluded.
func (s *Sink) Chunks() []clock.Tick {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var pts []clock.Tick
	for _, p := range s.log {
		if !p.Silence {
			pts = append(pts, p.PTS)
		}
	}
	return pts
}

// Silence returns the total silence played.
func (s *Sink) Silence() clock.Tick {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.silence
}
