package simulate

import (
	"math"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/playsync/audio"
	"github.com/opd-ai/playsync/clock"
	"github.com/opd-ai/playsync/synchro"
)

// SourceConfig describes a synthetic stream.
type SourceConfig struct {
	// ClockFreq is the tick frequency of the generated timestamps.
	ClockFreq int64
	// FPS is the video frame rate.
	FPS int
	// GOP is the coding type pattern repeated over the video frames, for
	// instance "IBBPBBPBB". Empty means all I.
	GOP string
	// PlaneSize is the byte size of each of the three planes.
	PlaneSize int

	// Audio parameters.
	Rate         int
	Channels     int
	ChunkSamples int
	// Tone is the frequency of the generated sine wave in Hz.
	Tone float64
}

// DefaultSourceConfig returns a 25 fps, 44.1 kHz stereo stream.
func DefaultSourceConfig() SourceConfig {
	return SourceConfig{
		ClockFreq:    1000000,
		FPS:          25,
		GOP:          "IBBPBBPBB",
		PlaneSize:    64,
		Rate:         44100,
		Channels:     2,
		ChunkSamples: 1024,
		Tone:         440,
	}
}

// VideoFrame is one synthetic decoded picture.
type VideoFrame struct {
	PTS    clock.Tick
	Type   synchro.CodingType
	Planes [][]byte
}

// Source generates timestamped video frames and audio chunks.
type Source struct {
	cfg        SourceConfig
	frame      int
	sample     int64
	start      clock.Tick
	phase      float64
	frameTicks clock.Tick
}

// NewSource creates a source whose first timestamps are start.
func NewSource(cfg SourceConfig, start clock.Tick) *Source {
	if cfg.ClockFreq <= 0 {
		cfg.ClockFreq = 1000000
	}
	if cfg.FPS <= 0 {
		cfg.FPS = 25
	}
	if cfg.Rate <= 0 {
		cfg.Rate = 44100
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	if cfg.ChunkSamples <= 0 {
		cfg.ChunkSamples = 1024
	}

	logrus.WithFields(logrus.Fields{
		"function": "simulate.NewSource",
		"fps":      cfg.FPS,
		"rate":     cfg.Rate,
		"channels": cfg.Channels,
	}).Debug("Creating synthetic source")

	return &Source{
		cfg:        cfg,
		start:      start,
		frameTicks: clock.Tick(cfg.ClockFreq / int64(cfg.FPS)),
	}
}

// FrameDuration returns the interval between two video frames.
func (s *Source) FrameDuration() clock.Tick {
	return s.frameTicks
}

// NextFrame returns the next video frame.
func (s *Source) NextFrame() VideoFrame {
	n := s.frame
	s.frame++

	t := synchro.IFrame
	if len(s.cfg.GOP) > 0 {
		switch s.cfg.GOP[n%len(s.cfg.GOP)] {
		case 'P':
			t = synchro.PFrame
		case 'B':
			t = synchro.BFrame
		}
	}

	planes := make([][]byte, 3)
	for i := range planes {
		planes[i] = make([]byte, s.cfg.PlaneSize)
		for j := range planes[i] {
			planes[i][j] = byte(n + i + j)
		}
	}

	return VideoFrame{
		PTS:    s.start + clock.Tick(n)*s.frameTicks,
		Type:   t,
		Planes: planes,
	}
}

// NextChunk returns the next chunk of a sine wave.
func (s *Source) NextChunk() audio.Chunk {
	pts := s.start + clock.Tick(s.sample*s.cfg.ClockFreq/int64(s.cfg.Rate))

	samples := make([]int16, s.cfg.ChunkSamples*s.cfg.Channels)
	step := 2 * math.Pi * s.cfg.Tone / float64(s.cfg.Rate)
	for i := 0; i < s.cfg.ChunkSamples; i++ {
		v := int16(math.Sin(s.phase) * 0.25 * math.MaxInt16)
		for ch := 0; ch < s.cfg.Channels; ch++ {
			samples[i*s.cfg.Channels+ch] = v
		}
		s.phase += step
	}
	s.phase = math.Mod(s.phase, 2*math.Pi)
	s.sample += int64(s.cfg.ChunkSamples)

	return audio.Chunk{
		PTS:      pts,
		Samples:  samples,
		Channels: s.cfg.Channels,
		Rate:     s.cfg.Rate,
	}
}
