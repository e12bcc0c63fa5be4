package playsync

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/zsiec/ccx"

	"github.com/opd-ai/playsync/clock"
	"github.com/opd-ai/playsync/picture"
)

// CaptionClockRate is the rate of caption frame timestamps, the MPEG 90 kHz
// clock.
const CaptionClockRate = 90000

// captionState holds one CEA-608 decoder per caption channel.
type captionState struct {
	mu       sync.Mutex
	decoders map[int]*ccx.CEA608Decoder
}

func (c *captionState) decoder(channel int) *ccx.CEA608Decoder {
	if c.decoders == nil {
		c.decoders = make(map[int]*ccx.CEA608Decoder)
	}
	d, ok := c.decoders[channel]
	if !ok {
		d = ccx.NewCEA608Decoder()
		c.decoders[channel] = d
	}
	return d
}

// CaptionTicks converts a 90 kHz caption timestamp to clock ticks.
func (p *Player) CaptionTicks(pts90k int64) clock.Tick {
	return clock.Tick(pts90k * p.cfg.ClockFreq / CaptionClockRate)
}

// SubmitCaption shows a decoded caption frame as a subpicture of its channel
// from the frame timestamp until the next frame of the same channel. A frame
// without text clears the channel.
func (p *Player) SubmitCaption(frame *ccx.CaptionFrame) error {
	if frame == nil {
		return fmt.Errorf("%w: nil caption frame", picture.ErrInvalidSubpicture)
	}
	return p.showCaption(frame.Channel, p.CaptionTicks(frame.PTS), frame.PlainText())
}

// SubmitCEA608 feeds one CEA-608 byte pair of a caption channel, as carried
// in the user data of the picture presented at ts. Parity bits are stripped.
// When the pair changes the displayed text, the new text replaces the
// channel's subpicture.
func (p *Player) SubmitCEA608(channel int, ts clock.Tick, cc1, cc2 byte) error {
	cc1 &= 0x7F
	cc2 &= 0x7F

	p.captions.mu.Lock()
	text := p.captions.decoder(channel).Decode(cc1, cc2)
	p.captions.mu.Unlock()

	switch {
	case text != "":
		return p.showCaption(channel, ts, text)
	case isEraseDisplayed(cc1, cc2):
		return p.showCaption(channel, ts, "")
	}
	return nil
}

// isEraseDisplayed matches the EDM control code on either data channel.
func isEraseDisplayed(cc1, cc2 byte) bool {
	return (cc1 == 0x14 || cc1 == 0x1C || cc1 == 0x15 || cc1 == 0x1D) && cc2 == 0x2C
}

func (p *Player) showCaption(channel int, ts clock.Tick, text string) error {
	if text == "" {
		p.subs.EndChannel(channel, ts)

		logrus.WithFields(logrus.Fields{
			"function": "Player.showCaption",
			"channel":  channel,
			"pts":      ts,
		}).Debug("Caption cleared")

		return nil
	}

	err := p.subs.Add(picture.Subpicture{
		Begin:     ts,
		Text:      text,
		Channel:   channel,
		Ephemeral: true,
	})
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function":  "Player.showCaption",
			"player_id": p.id.String(),
			"channel":   channel,
			"pts":       ts,
			"error":     err.Error(),
		}).Warn("Failed to add caption")
		return err
	}

	logrus.WithFields(logrus.Fields{
		"function": "Player.showCaption",
		"channel":  channel,
		"pts":      ts,
		"text":     text,
	}).Debug("Caption shown")

	return nil
}
