package audio

import "github.com/opd-ai/playsync/clock"

// Chunk is a block of interleaved signed 16-bit samples with its
// presentation timestamp.
type Chunk struct {
	PTS      clock.Tick
	Samples  []int16
	Channels int
	Rate     int
}

// Frames returns the number of sample frames, one sample per channel each.
func (c Chunk) Frames() int {
	if c.Channels <= 0 {
		return 0
	}
	return len(c.Samples) / c.Channels
}

// Duration returns the playback length of the chunk at a clock of freq ticks
// per second.
func (c Chunk) Duration(freq int64) clock.Tick {
	if c.Rate <= 0 {
		return 0
	}
	return clock.Tick(int64(c.Frames()) * freq / int64(c.Rate))
}

// End returns the timestamp right after the last sample of the chunk.
func (c Chunk) End(freq int64) clock.Tick {
	return c.PTS + c.Duration(freq)
}
