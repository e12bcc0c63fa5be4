// Package config holds the immutable configuration snapshot shared by every
// component of the presentation core.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/opd-ai/playsync/clock"
	"github.com/opd-ai/playsync/limits"
)

// ErrInvalidConfig indicates a snapshot that failed validation.
var ErrInvalidConfig = errors.New("invalid configuration")

// Snapshot is the complete set of capacity and timing limits of the player.
//
// A Snapshot is built once at startup and handed by value to every
// component, so a running component never observes a later mutation of the
// caller's copy. All durations are clock ticks at ClockFreq.
type Snapshot struct {
	// ClockFreq is the number of ticks per second.
	ClockFreq int64

	ThreadSleep    clock.Tick
	InputIdleSleep clock.Tick
	VparIdleSleep  clock.Tick
	VdecIdleSleep  clock.Tick

	// InputMaxPacketSize is the largest accepted input packet in bytes.
	InputMaxPacketSize int
	// InputMaxAllocation is the byte budget of the input stage.
	InputMaxAllocation int

	// PTSDelay is added to every timestamp to build its deadline.
	PTSDelay clock.Tick

	// AoutFifoSize is the capacity of an audio ring buffer. AoutFifoSize+1
	// must be a power of two.
	AoutFifoSize       int
	AoutMaxFifos       int
	AoutBufferDuration clock.Tick
	AoutRate           int
	AoutStereo         bool

	// VoutMaxPictures is the capacity of the picture heap.
	VoutMaxPictures    int
	VoutMaxSubpictures int
	VoutMaxPlanes      int
	VoutIdleSleep      clock.Tick
	// VoutDisplayDelay is the lateness after which a picture is skipped.
	VoutDisplayDelay clock.Tick
	VoutIdleDelay    clock.Tick
	VoutFPSSamples   int
	VoutStatsNbLoops int
	// VoutMwaitTolerance is how early the output wakes before a deadline.
	VoutMwaitTolerance clock.Tick
	// VoutOutmemSleep is how long a producer waits for a free picture slot.
	VoutOutmemSleep clock.Tick

	MaxMacroblocks int

	// HeapExhaustionTolerance is how long the heap may stay full before
	// producers drop decoded pictures instead of waiting.
	HeapExhaustionTolerance clock.Tick
	// DiscontinuityThreshold is the clock drift reported as a discontinuity.
	DiscontinuityThreshold clock.Tick

	// SynchroMode selects decode-side frame skipping: "", "I", "I+", "IP",
	// "IP+" or "IPB". Empty means adaptive.
	SynchroMode string
}

// Default returns the snapshot built from the limits package constants.
func Default() Snapshot {
	return Snapshot{
		ClockFreq:               limits.ClockFreq,
		ThreadSleep:             limits.ThreadSleep,
		InputIdleSleep:          limits.InputIdleSleep,
		VparIdleSleep:           limits.VparIdleSleep,
		VdecIdleSleep:           limits.VdecIdleSleep,
		InputMaxPacketSize:      limits.InputMaxPacketSize,
		InputMaxAllocation:      limits.InputMaxAllocation,
		PTSDelay:                limits.DefaultPTSDelay,
		AoutFifoSize:            limits.AoutFifoSize,
		AoutMaxFifos:            limits.AoutMaxFifos,
		AoutBufferDuration:      limits.AoutBufferDuration,
		AoutRate:                limits.AoutRate,
		AoutStereo:              true,
		VoutMaxPictures:         limits.VoutMaxPictures,
		VoutMaxSubpictures:      limits.VoutMaxSubpictures,
		VoutMaxPlanes:           limits.VoutMaxPlanes,
		VoutIdleSleep:           limits.VoutIdleSleep,
		VoutDisplayDelay:        limits.VoutDisplayDelay,
		VoutIdleDelay:           limits.VoutIdleDelay,
		VoutFPSSamples:          limits.VoutFPSSamples,
		VoutStatsNbLoops:        limits.VoutStatsNbLoops,
		VoutMwaitTolerance:      limits.VoutMwaitTolerance,
		VoutOutmemSleep:         limits.VoutOutmemSleep,
		MaxMacroblocks:          limits.MaxMacroblocks,
		HeapExhaustionTolerance: limits.VoutOutmemSleep,
		DiscontinuityThreshold:  limits.VoutDisplayDelay,
	}
}

// Validate checks every field against its accepted range.
func (s Snapshot) Validate() error {
	checks := []error{
		limits.ValidatePositive("clock_freq", s.ClockFreq),
		limits.ValidateRange("vout_max_pictures", int64(s.VoutMaxPictures), 1, 1024),
		limits.ValidateRange("vout_max_subpictures", int64(s.VoutMaxSubpictures), 0, 1024),
		limits.ValidateRange("vout_max_planes", int64(s.VoutMaxPlanes), 1, limits.VoutMaxPlanes),
		limits.ValidateFifoSize(s.AoutFifoSize),
		limits.ValidateRange("aout_max_fifos", int64(s.AoutMaxFifos), 1, 64),
		limits.ValidatePositive("aout_rate", int64(s.AoutRate)),
		limits.ValidatePositive("aout_buffer_duration", int64(s.AoutBufferDuration)),
		limits.ValidatePositive("vout_idle_sleep", int64(s.VoutIdleSleep)),
		limits.ValidatePositive("vout_display_delay", int64(s.VoutDisplayDelay)),
		limits.ValidateRange("vout_mwait_tolerance", int64(s.VoutMwaitTolerance), 0, int64(s.VoutDisplayDelay)),
		limits.ValidateRange("pts_delay", int64(s.PTSDelay), 0, 60*s.ClockFreq),
		limits.ValidateRange("vout_outmem_sleep", int64(s.VoutOutmemSleep), 0, 60*s.ClockFreq),
		limits.ValidateRange("heap_exhaustion_tolerance", int64(s.HeapExhaustionTolerance), 0, 60*s.ClockFreq),
		limits.ValidateRange("discontinuity_threshold", int64(s.DiscontinuityThreshold), 0, 3600*s.ClockFreq),
		limits.ValidateRange("vout_fps_samples", int64(s.VoutFPSSamples), 1, 1000),
		limits.ValidateRange("vout_stats_nb_loops", int64(s.VoutStatsNbLoops), 1, 1<<20),
		limits.ValidateRange("input_max_packet_size", int64(s.InputMaxPacketSize), 1, limits.InputMaxPacketSize),
		limits.ValidateRange("input_max_allocation", int64(s.InputMaxAllocation), int64(s.InputMaxPacketSize), 1<<34),
		validateSynchroMode(s.SynchroMode),
	}

	for _, err := range checks {
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}
	return nil
}

// Duration converts a tick value of this snapshot to a time.Duration.
func (s Snapshot) Duration(t clock.Tick) time.Duration {
	return clock.ToDuration(t, s.ClockFreq)
}

// Ticks converts a time.Duration to ticks of this snapshot.
func (s Snapshot) Ticks(d time.Duration) clock.Tick {
	return clock.FromDuration(d, s.ClockFreq)
}

// WithClockFreq returns a copy of s running at freq ticks per second, with
// every duration rescaled so it keeps the same wall-clock length.
func (s Snapshot) WithClockFreq(freq int64) Snapshot {
	if freq <= 0 || freq == s.ClockFreq || s.ClockFreq <= 0 {
		s.ClockFreq = freq
		return s
	}
	old := s.ClockFreq
	for _, t := range s.ticks() {
		*t = clock.Tick(int64(*t) * freq / old)
	}
	s.ClockFreq = freq
	return s
}

func (s *Snapshot) ticks() []*clock.Tick {
	return []*clock.Tick{
		&s.ThreadSleep, &s.InputIdleSleep, &s.VparIdleSleep, &s.VdecIdleSleep,
		&s.PTSDelay, &s.AoutBufferDuration, &s.VoutIdleSleep, &s.VoutDisplayDelay,
		&s.VoutIdleDelay, &s.VoutMwaitTolerance, &s.VoutOutmemSleep,
		&s.HeapExhaustionTolerance, &s.DiscontinuityThreshold,
	}
}

// AoutChannels returns the number of output channels.
func (s Snapshot) AoutChannels() int {
	if s.AoutStereo {
		return 2
	}
	return 1
}

func validateSynchroMode(mode string) error {
	switch mode {
	case "", "I", "I+", "IP", "IP+", "IPB":
		return nil
	}
	return fmt.Errorf("%w: synchro mode %q", limits.ErrOutOfRange, mode)
}
