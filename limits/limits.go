// Package limits provides the centralized capacity and timing limits of the
// presentation core. Every component takes its defaults from here so that the
// heap, the audio fifo and the schedulers agree on the same numbers.
package limits

import (
	"errors"
	"fmt"
)

// ClockFreq is the number of presentation clock ticks per second.
const ClockFreq = 1000000

// Thread and stage timings, expressed in clock ticks.
const (
	// ThreadSleep is the polling delay used while spawning or joining threads.
	ThreadSleep = ClockFreq / 100 // 10ms

	// InputIdleSleep is the sleep of an input stage with nothing to read.
	InputIdleSleep = ClockFreq / 10 // 100ms

	// DefaultPTSDelay is the duration between the reception of a packet and
	// its presentation. Added to every timestamp to build a deadline.
	DefaultPTSDelay = ClockFreq / 5 // 200ms

	// InputChannelChangeDelay is the minimum delay between two channel changes.
	InputChannelChangeDelay = 5 * ClockFreq

	// VoutIdleSleep is the sleep of the video output when no picture is queued.
	VoutIdleSleep = ClockFreq / 50 // 20ms

	// VoutDisplayDelay is the maximum lateness tolerated for a picture before
	// it is considered unrecoverable.
	VoutDisplayDelay = ClockFreq / 2 // 500ms

	// VoutIdleDelay is the delay without pictures before the idle screen is shown.
	VoutIdleDelay = 5 * ClockFreq

	// VoutMwaitTolerance makes the output wake up slightly early rather than late.
	VoutMwaitTolerance = ClockFreq / 50 // 20ms

	// VoutOutmemSleep is the time a producer waits for a free picture slot.
	VoutOutmemSleep = ClockFreq / 50 // 20ms

	// VparIdleSleep is the sleep of the video parser with nothing to parse.
	VparIdleSleep = ClockFreq / 100 // 10ms

	// VdecIdleSleep is the sleep of a video decoder with nothing to decode.
	VdecIdleSleep = ClockFreq / 10 // 100ms

	// AoutBufferDuration is the playback length of one audio output buffer.
	AoutBufferDuration = ClockFreq / 10 // 100ms
)

// Capacities.
const (
	// InputMaxPacketSize is the largest accepted data packet (128 kB).
	InputMaxPacketSize = 131072

	// InputMaxAllocation is the memory budget of the input stage (20 MB).
	InputMaxAllocation = 20 * 1024 * 1024

	// AoutFifoSize is the number of chunks held by an audio fifo. The value
	// plus one must be a power of two.
	AoutFifoSize = 511

	// AoutMaxFifos is the maximum number of audio fifos.
	AoutMaxFifos = 2

	// AoutRate is the default output sample rate.
	AoutRate = 44100

	// VoutMaxPictures is the size of the video heap.
	VoutMaxPictures = 8

	// VoutMaxSubpictures is the number of simultaneous subpictures.
	VoutMaxSubpictures = 8

	// VoutMaxPlanes is the number of planes in a picture.
	VoutMaxPlanes = 5

	// VoutFPSSamples is the number of pictures used to compute the FPS rate.
	VoutFPSSamples = 20

	// VoutStatsNbLoops is the number of output loops between two stats reports.
	VoutStatsNbLoops = 100

	// MaxMacroblocks is the maximum number of macroblocks in a picture.
	MaxMacroblocks = 2048
)

var (
	// ErrOutOfRange indicates a limit outside its accepted range.
	ErrOutOfRange = errors.New("limit out of range")

	// ErrNotPowerOfTwo indicates a ring capacity that cannot be masked.
	ErrNotPowerOfTwo = errors.New("capacity+1 is not a power of two")
)

// ValidateRange validates value against [min, max].
// Returns an error with the limit name and bounds on failure.
func ValidateRange(name string, value, min, max int64) error {
	if value < min || value > max {
		return fmt.Errorf("%w: %s=%d not in [%d, %d]", ErrOutOfRange, name, value, min, max)
	}
	return nil
}

// ValidatePositive validates that a count or duration is strictly positive.
func ValidatePositive(name string, value int64) error {
	if value <= 0 {
		return fmt.Errorf("%w: %s=%d must be positive", ErrOutOfRange, name, value)
	}
	return nil
}

// ValidateFifoSize validates a ring capacity: it must be positive and
// capacity+1 must be a power of two so indices wrap with a mask.
func ValidateFifoSize(capacity int) error {
	if capacity <= 0 {
		return fmt.Errorf("%w: fifo size %d must be positive", ErrOutOfRange, capacity)
	}
	if !IsPowerOfTwo(uint64(capacity) + 1) {
		return fmt.Errorf("%w: fifo size %d", ErrNotPowerOfTwo, capacity)
	}
	return nil
}

// ValidatePacketSize validates an input packet against InputMaxPacketSize.
func ValidatePacketSize(size int) error {
	if size > InputMaxPacketSize {
		return fmt.Errorf("%w: packet size %d exceeds limit %d", ErrOutOfRange, size, InputMaxPacketSize)
	}
	return nil
}

// IsPowerOfTwo reports whether v is a non-zero power of two.
func IsPowerOfTwo(v uint64) bool {
	return v != 0 && v&(v-1) == 0
}
