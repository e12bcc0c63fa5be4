package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pion/rtp"
	"github.com/sirupsen/logrus"
	"github.com/zsiec/ccx"

	"github.com/opd-ai/playsync"
	"github.com/opd-ai/playsync/audio"
	"github.com/opd-ai/playsync/clock"
	"github.com/opd-ai/playsync/ingest"
	"github.com/opd-ai/playsync/picture"
	"github.com/opd-ai/playsync/simulate"
)

const (
	videoClockRate   = 90000
	videoPayloadType = 96
)

// producer plays the role of the demultiplexer and decoders: it generates a
// synthetic stream and submits it to the player slightly ahead of the clock.
type producer struct {
	player *playsync.Player
	cli    *CLIConfig
	clk    *clock.Clock
	source simulate.SourceConfig
}

func newProducer(player *playsync.Player, cli *CLIConfig) *producer {
	cfg := player.Config()
	source := simulate.DefaultSourceConfig()
	source.ClockFreq = cfg.ClockFreq
	source.Rate = cfg.AoutRate
	source.Channels = cfg.AoutChannels()

	return &producer{
		player: player,
		cli:    cli,
		clk:    player.Clock(),
		source: source,
	}
}

// waitUntil sleeps until the clock is within the lead time of pts.
func (p *producer) waitUntil(ctx context.Context, pts clock.Tick) error {
	lead := p.clk.FromDuration(p.cli.lead)
	d := p.clk.Duration(pts - lead - p.clk.Now())
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// video decodes and submits pictures until ctx is done.
func (p *producer) video(ctx context.Context) error {
	src := simulate.NewSource(p.source, p.clk.Now()+p.clk.FromDuration(p.cli.lead))

	var packetizer *rtpLoop
	if p.cli.rtp {
		var err error
		packetizer, err = newRTPLoop(p.player, p.cli.reorderDepth)
		if err != nil {
			return err
		}
	}

	fps := int(p.clk.Frequency() / int64(src.FrameDuration()))
	for n := 0; ; n++ {
		frame := src.NextFrame()
		if err := p.waitUntil(ctx, frame.PTS); err != nil {
			return nil
		}

		if p.cli.captions && fps > 0 && n%fps == 0 {
			p.submitCaption(frame.PTS, n/fps)
		}

		if !p.player.ShouldDecode(frame.Type, frame.PTS) {
			continue
		}
		start := time.Now()
		if p.cli.decodeTime > 0 {
			time.Sleep(p.cli.decodeTime)
		}
		p.player.Decoded(frame.Type, time.Since(start))

		pts, planes := frame.PTS, frame.Planes
		if packetizer != nil {
			var ok bool
			pts, planes, ok = packetizer.roundTrip(frame.PTS, frame.Planes)
			if !ok {
				continue
			}
		}

		err := p.player.SubmitDecodedPicture(ctx, pts, planes)
		switch {
		case err == nil:
		case errors.Is(err, playsync.ErrHeapExhausted):
			logrus.WithFields(logrus.Fields{
				"function": "producer.video",
				"pts":      pts,
			}).Debug("Picture dropped, output is behind")
		case errors.Is(err, playsync.ErrClosed), ctx.Err() != nil:
			return nil
		default:
			return fmt.Errorf("submit picture: %w", err)
		}
	}
}

func (p *producer) submitCaption(pts clock.Tick, second int) {
	frame := &ccx.CaptionFrame{
		PTS:     int64(pts) * playsync.CaptionClockRate / p.clk.Frequency(),
		Text:    fmt.Sprintf("%d s", second),
		Channel: 1,
	}
	if err := p.player.SubmitCaption(frame); err != nil && !errors.Is(err, picture.ErrSubpicturesExhausted) {
		logrus.WithFields(logrus.Fields{
			"function": "producer.submitCaption",
			"error":    err.Error(),
		}).Warn("Caption rejected")
	}
}

// audio submits chunks until ctx is done.
func (p *producer) audio(ctx context.Context) error {
	src := simulate.NewSource(p.source, p.clk.Now()+p.clk.FromDuration(p.cli.lead))

	for {
		c := src.NextChunk()
		if err := p.waitUntil(ctx, c.PTS); err != nil {
			return nil
		}
		err := p.player.SubmitDecodedAudio(c.PTS, c.Samples, c.Channels, c.Rate)
		if err != nil && !errors.Is(err, audio.ErrBufferFull) {
			return fmt.Errorf("submit audio: %w", err)
		}
	}
}

// rtpLoop sends pictures through the RTP input stage: each picture is
// packetized, parsed back by a depacketizer and placed on the player's
// timeline.
type rtpLoop struct {
	depack *ingest.Depacketizer
	seq    uint16
	ssrc   uint32
	base   clock.Tick
	freq   int64
	start  bool
}

func newRTPLoop(player *playsync.Player, depth int) (*rtpLoop, error) {
	depack, err := ingest.NewDepacketizer(player.Config(), videoClockRate, depth, player.Clock())
	if err != nil {
		return nil, err
	}
	return &rtpLoop{
		depack: depack,
		ssrc:   uint32(player.ID().ID()),
		freq:   player.Config().ClockFreq,
	}, nil
}

// roundTrip packetizes one picture and returns it as the input stage
// delivers it. The depacketizer timeline starts at zero, so the first
// picture's timestamp is kept as the base.
func (l *rtpLoop) roundTrip(pts clock.Tick, planes [][]byte) (clock.Tick, [][]byte, bool) {
	if !l.start {
		l.base = pts
		l.start = true
	}

	pkt := rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			PayloadType:    videoPayloadType,
			SequenceNumber: l.seq,
			Timestamp:      uint32(int64(pts-l.base) * videoClockRate / l.freq),
			SSRC:           l.ssrc,
			Marker:         true,
		},
		Payload: bytes.Join(planes, nil),
	}
	l.seq++

	data, err := pkt.Marshal()
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "rtpLoop.roundTrip",
			"error":    err.Error(),
		}).Error("Failed to marshal RTP packet")
		return 0, nil, false
	}
	if err := l.depack.Push(data); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "rtpLoop.roundTrip",
			"error":    err.Error(),
		}).Warn("RTP packet rejected")
		return 0, nil, false
	}

	out, ok := l.depack.Pop()
	if !ok {
		return 0, nil, false
	}
	return l.base + out.PTS, [][]byte{out.Payload}, true
}
