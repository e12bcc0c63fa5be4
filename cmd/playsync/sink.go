package main

import (
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/playsync/audio"
	"github.com/opd-ai/playsync/clock"
	"github.com/opd-ai/playsync/picture"
)

// logRenderer stands in for a video backend.
type logRenderer struct{}

func (logRenderer) PresentPicture(f picture.Frame, subs []picture.Subpicture) {
	fields := logrus.Fields{
		"function": "logRenderer.PresentPicture",
		"pts":      f.PTS,
		"planes":   len(f.Planes),
	}
	if len(subs) > 0 {
		fields["caption"] = subs[len(subs)-1].Text
	}
	logrus.WithFields(fields).Debug("Picture presented")
}

func (logRenderer) PresentIdle() {
	logrus.WithFields(logrus.Fields{
		"function": "logRenderer.PresentIdle",
	}).Info("No picture, showing idle screen")
}

// logSink stands in for an audio device.
type logSink struct{}

func (logSink) PlayChunk(c audio.Chunk) {
	logrus.WithFields(logrus.Fields{
		"function": "logSink.PlayChunk",
		"pts":      c.PTS,
		"frames":   c.Frames(),
	}).Trace("Chunk played")
}

func (logSink) PlaySilence(d clock.Tick) {
	logrus.WithFields(logrus.Fields{
		"function": "logSink.PlaySilence",
		"duration": d,
	}).Debug("Silence played")
}
