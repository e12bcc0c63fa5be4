package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/pion/opus"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/playsync/audio"
	"github.com/opd-ai/playsync/clock"
)

// ErrEmptyPacket indicates a zero-length Opus packet.
var ErrEmptyPacket = errors.New("empty opus packet")

// ErrDecode wraps the errors of the underlying Opus decoder.
var ErrDecode = errors.New("opus decode failed")

const (
	// OutputRate is the sample rate of decoded chunks.
	OutputRate = 48000
	// maxFrameSamples is one 20 ms mono frame at OutputRate, the largest
	// frame the underlying decoder produces.
	maxFrameSamples = 960
)

// frameSamples returns the number of samples at OutputRate carried by a
// single-frame SILK packet, read from its TOC byte. SILK configurations
// 0 to 11 cycle through 10, 20, 40 and 60 ms frames. Other modes return 0
// and are left to the decoder to reject.
func frameSamples(toc byte) (int, error) {
	config := toc >> 3
	if config > 11 {
		return 0, nil
	}
	ms := [4]int{10, 20, 40, 60}[config%4]
	n := OutputRate * ms / 1000
	if n > maxFrameSamples {
		return 0, fmt.Errorf("%w: %d ms frames are not supported", ErrDecode, ms)
	}
	return n, nil
}

// OpusDecoder decodes Opus packets into audio chunks for the audio ring.
// Only SILK-mode single-frame packets are supported by the underlying
// decoder; other packets fail with ErrDecode.
type OpusDecoder struct {
	mu   sync.Mutex
	dec  opus.Decoder
	pcm  []byte
	freq int64

	decoded uint64
	failed  uint64
}

// NewOpusDecoder creates a decoder producing chunks timestamped on a clock
// of freq ticks per second.
func NewOpusDecoder(freq int64) *OpusDecoder {
	logrus.WithFields(logrus.Fields{
		"function":    "codec.NewOpusDecoder",
		"output_rate": OutputRate,
	}).Debug("Creating Opus decoder")

	return &OpusDecoder{
		dec:  opus.NewDecoder(),
		pcm:  make([]byte, 2*maxFrameSamples),
		freq: freq,
	}
}

// Decode decodes one packet presented at pts into a mono chunk.
func (d *OpusDecoder) Decode(pts clock.Tick, packet []byte) (audio.Chunk, error) {
	if len(packet) == 0 {
		return audio.Chunk{}, ErrEmptyPacket
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	n, err := frameSamples(packet[0])
	if err != nil {
		d.failed++
		return audio.Chunk{}, err
	}

	bandwidth, stereo, err := d.dec.Decode(packet, d.pcm)
	if err != nil {
		d.failed++
		logrus.WithFields(logrus.Fields{
			"function":  "OpusDecoder.Decode",
			"data_size": len(packet),
			"error":     err.Error(),
		}).Debug("Opus packet rejected")
		return audio.Chunk{}, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	d.decoded++

	// The decoder always fills a 20 ms buffer; shorter frames leave stale
	// samples after the first n.
	samples := make([]int16, n)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(d.pcm[2*i:]))
	}

	logrus.WithFields(logrus.Fields{
		"function":  "OpusDecoder.Decode",
		"bandwidth": bandwidth.String(),
		"stereo":    stereo,
		"samples":   len(samples),
	}).Trace("Opus packet decoded")

	return audio.Chunk{
		PTS:      pts,
		Samples:  samples,
		Channels: 1,
		Rate:     OutputRate,
	}, nil
}

// Stats returns the number of decoded and failed packets.
func (d *OpusDecoder) Stats() (decoded, failed uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.decoded, d.failed
}
