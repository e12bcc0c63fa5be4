package synchro

import (
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/playsync/clock"
	"github.com/opd-ai/playsync/config"
)

// CodingType is the coding type of a compressed picture.
type CodingType uint8

const (
	// IFrame pictures are intra coded.
	IFrame CodingType = iota
	// PFrame pictures predict from the previous reference.
	PFrame
	// BFrame pictures predict from both neighbouring references and are
	// never referenced themselves.
	BFrame
)

func (c CodingType) String() string {
	switch c {
	case IFrame:
		return "I"
	case PFrame:
		return "P"
	case BFrame:
		return "B"
	default:
		return fmt.Sprintf("type(%d)", uint8(c))
	}
}

// Mode selects which coding types a decoder processes.
type Mode uint8

const (
	// Adaptive decodes a picture when its estimated decode time still lets
	// it meet its deadline.
	Adaptive Mode = iota
	// ModeI decodes I pictures only.
	ModeI
	// ModeIPlus decodes I pictures and the first P picture after each.
	ModeIPlus
	// ModeIP decodes I and P pictures.
	ModeIP
	// ModeIPPlus decodes I and P pictures and every other B picture.
	ModeIPPlus
	// ModeIPB decodes everything.
	ModeIPB
)

// ParseMode converts a synchro mode name. The empty string is Adaptive.
func ParseMode(s string) (Mode, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "":
		return Adaptive, nil
	case "I":
		return ModeI, nil
	case "I+":
		return ModeIPlus, nil
	case "IP":
		return ModeIP, nil
	case "IP+":
		return ModeIPPlus, nil
	case "IPB":
		return ModeIPB, nil
	}
	return Adaptive, fmt.Errorf("unknown synchro mode %q", s)
}

func (m Mode) String() string {
	switch m {
	case Adaptive:
		return "adaptive"
	case ModeI:
		return "I"
	case ModeIPlus:
		return "I+"
	case ModeIP:
		return "IP"
	case ModeIPPlus:
		return "IP+"
	case ModeIPB:
		return "IPB"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

const averageWindow = 8

// AdvisorStats counts pictures per coding type, indexed by CodingType.
type AdvisorStats struct {
	Decoded [3]uint64
	Trashed [3]uint64
}

// Advisor tells a video decoder which pictures to decode. Skipping a
// reference picture also skips every picture predicted from it until the
// next I picture.
type Advisor struct {
	mu           sync.Mutex
	mode         Mode
	displayDelay clock.Tick

	avg     [3]clock.Tick
	samples [3]int

	pSinceI  int
	bToggle  bool
	refsLost bool
	stats    AdvisorStats
}

// NewAdvisor builds an advisor from the snapshot's synchro mode.
func NewAdvisor(cfg config.Snapshot) (*Advisor, error) {
	mode, err := ParseMode(cfg.SynchroMode)
	if err != nil {
		return nil, err
	}
	return &Advisor{
		mode:         mode,
		displayDelay: cfg.VoutDisplayDelay,
	}, nil
}

// Mode returns the advisor's mode.
func (a *Advisor) Mode() Mode {
	return a.mode
}

// ShouldDecode reports whether a picture of coding type t due at deadline
// should be decoded at now. A false answer is counted as trashed.
func (a *Advisor) ShouldDecode(t CodingType, deadline, now clock.Tick) bool {
	if t > BFrame {
		return false
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	decode := a.decideLocked(t, deadline, now)
	switch {
	case decode && t == IFrame:
		a.pSinceI = 0
		a.refsLost = false
	case decode && t == PFrame:
		a.pSinceI++
	case !decode && t != BFrame:
		a.refsLost = true
	}

	if decode {
		a.stats.Decoded[t]++
	} else {
		a.stats.Trashed[t]++
		logrus.WithFields(logrus.Fields{
			"function": "Advisor.ShouldDecode",
			"type":     t.String(),
			"mode":     a.mode.String(),
			"ahead":    deadline - now,
		}).Trace("Picture trashed before decoding")
	}
	return decode
}

func (a *Advisor) decideLocked(t CodingType, deadline, now clock.Tick) bool {
	if t == IFrame {
		return true
	}
	if a.refsLost {
		return false
	}

	switch a.mode {
	case ModeI:
		return false
	case ModeIPlus:
		return t == PFrame && a.pSinceI == 0
	case ModeIP:
		return t == PFrame
	case ModeIPPlus:
		if t == PFrame {
			return true
		}
		a.bToggle = !a.bToggle
		return a.bToggle
	case ModeIPB:
		return true
	}

	// B pictures are not references, so they get no display delay slack.
	finish := now + a.avg[t]
	if t == BFrame {
		return finish <= deadline
	}
	return finish <= deadline+a.displayDelay
}

// Decoded feeds the time a picture of type t took to decode into the running
// average used by Adaptive mode.
func (a *Advisor) Decoded(t CodingType, took clock.Tick) {
	if t > BFrame || took < 0 {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.samples[t] < averageWindow {
		a.samples[t]++
	}
	n := clock.Tick(a.samples[t])
	a.avg[t] = (a.avg[t]*(n-1) + took) / n
}

// AverageDecodeTime returns the running average decode time of type t.
func (a *Advisor) AverageDecodeTime(t CodingType) clock.Tick {
	if t > BFrame {
		return 0
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.avg[t]
}

// Stats returns the decoded and trashed counts.
func (a *Advisor) Stats() AdvisorStats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}
