package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/opd-ai/playsync/clock"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "PLAYSYNC_"

// fileConfig mirrors Snapshot for YAML documents. Durations are Go duration
// strings ("20ms", "1.5s"); absent keys keep their default value.
type fileConfig struct {
	ClockFreq int64 `yaml:"clock_freq"`

	Input struct {
		IdleSleep     string `yaml:"idle_sleep"`
		MaxPacketSize int    `yaml:"max_packet_size"`
		MaxAllocation int    `yaml:"max_allocation"`
		PTSDelay      string `yaml:"pts_delay"`
	} `yaml:"input"`

	Audio struct {
		FifoSize       int    `yaml:"fifo_size"`
		MaxFifos       int    `yaml:"max_fifos"`
		BufferDuration string `yaml:"buffer_duration"`
		Rate           int    `yaml:"rate"`
		Stereo         *bool  `yaml:"stereo"`
	} `yaml:"audio"`

	Video struct {
		MaxPictures       int    `yaml:"max_pictures"`
		MaxSubpictures    int    `yaml:"max_subpictures"`
		MaxPlanes         int    `yaml:"max_planes"`
		IdleSleep         string `yaml:"idle_sleep"`
		DisplayDelay      string `yaml:"display_delay"`
		IdleDelay         string `yaml:"idle_delay"`
		FPSSamples        int    `yaml:"fps_samples"`
		StatsNbLoops      int    `yaml:"stats_nb_loops"`
		MwaitTolerance    string `yaml:"mwait_tolerance"`
		OutmemSleep       string `yaml:"outmem_sleep"`
		ExhaustionTimeout string `yaml:"exhaustion_tolerance"`
	} `yaml:"video"`

	Decoder struct {
		ParserIdleSleep  string `yaml:"parser_idle_sleep"`
		DecoderIdleSleep string `yaml:"decoder_idle_sleep"`
		MaxMacroblocks   int    `yaml:"max_macroblocks"`
		SynchroMode      string `yaml:"synchro"`
	} `yaml:"decoder"`

	DiscontinuityThreshold string `yaml:"discontinuity_threshold"`
}

// Load reads a YAML document at path over the default snapshot and
// validates the result.
func Load(path string) (Snapshot, error) {
	logrus.WithFields(logrus.Fields{
		"function": "config.Load",
		"path":     path,
	}).Debug("Loading configuration file")

	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read config %s: %w", path, err)
	}

	s, err := Parse(data, Default())
	if err != nil {
		return Snapshot{}, fmt.Errorf("config %s: %w", path, err)
	}

	logrus.WithFields(logrus.Fields{
		"function":     "config.Load",
		"path":         path,
		"max_pictures": s.VoutMaxPictures,
		"fifo_size":    s.AoutFifoSize,
		"pts_delay":    s.Duration(s.PTSDelay),
	}).Info("Configuration loaded")

	return s, nil
}

// Parse applies a YAML document over base and validates the result.
func Parse(data []byte, base Snapshot) (Snapshot, error) {
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	s := base
	if fc.ClockFreq != 0 {
		s = s.WithClockFreq(fc.ClockFreq)
	}

	setInt(&s.InputMaxPacketSize, fc.Input.MaxPacketSize)
	setInt(&s.InputMaxAllocation, fc.Input.MaxAllocation)
	setInt(&s.AoutFifoSize, fc.Audio.FifoSize)
	setInt(&s.AoutMaxFifos, fc.Audio.MaxFifos)
	setInt(&s.AoutRate, fc.Audio.Rate)
	if fc.Audio.Stereo != nil {
		s.AoutStereo = *fc.Audio.Stereo
	}
	setInt(&s.VoutMaxPictures, fc.Video.MaxPictures)
	setInt(&s.VoutMaxSubpictures, fc.Video.MaxSubpictures)
	setInt(&s.VoutMaxPlanes, fc.Video.MaxPlanes)
	setInt(&s.VoutFPSSamples, fc.Video.FPSSamples)
	setInt(&s.VoutStatsNbLoops, fc.Video.StatsNbLoops)
	setInt(&s.MaxMacroblocks, fc.Decoder.MaxMacroblocks)
	if fc.Decoder.SynchroMode != "" {
		s.SynchroMode = fc.Decoder.SynchroMode
	}

	durations := []struct {
		key   string
		value string
		dst   *clock.Tick
	}{
		{"input.idle_sleep", fc.Input.IdleSleep, &s.InputIdleSleep},
		{"input.pts_delay", fc.Input.PTSDelay, &s.PTSDelay},
		{"audio.buffer_duration", fc.Audio.BufferDuration, &s.AoutBufferDuration},
		{"video.idle_sleep", fc.Video.IdleSleep, &s.VoutIdleSleep},
		{"video.display_delay", fc.Video.DisplayDelay, &s.VoutDisplayDelay},
		{"video.idle_delay", fc.Video.IdleDelay, &s.VoutIdleDelay},
		{"video.mwait_tolerance", fc.Video.MwaitTolerance, &s.VoutMwaitTolerance},
		{"video.outmem_sleep", fc.Video.OutmemSleep, &s.VoutOutmemSleep},
		{"video.exhaustion_tolerance", fc.Video.ExhaustionTimeout, &s.HeapExhaustionTolerance},
		{"decoder.parser_idle_sleep", fc.Decoder.ParserIdleSleep, &s.VparIdleSleep},
		{"decoder.decoder_idle_sleep", fc.Decoder.DecoderIdleSleep, &s.VdecIdleSleep},
		{"discontinuity_threshold", fc.DiscontinuityThreshold, &s.DiscontinuityThreshold},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.value)
		if err != nil {
			return Snapshot{}, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, d.key, err)
		}
		*d.dst = s.Ticks(parsed)
	}

	if err := s.Validate(); err != nil {
		return Snapshot{}, err
	}
	return s, nil
}

// FromEnv applies PLAYSYNC_* overrides found through lookup over base and
// validates the result. lookup is usually os.LookupEnv; it is injected so the
// environment is read exactly once, by the caller that owns startup.
//
// Integer keys: CLOCK_FREQ, VOUT_MAX_PICTURES, VOUT_MAX_SUBPICTURES,
// AOUT_FIFO_SIZE, AOUT_RATE, INPUT_MAX_ALLOCATION. Duration keys (Go syntax):
// PTS_DELAY, VOUT_DISPLAY_DELAY, VOUT_MWAIT_TOLERANCE, VOUT_IDLE_SLEEP,
// VOUT_OUTMEM_SLEEP. Others: AOUT_STEREO (bool), SYNCHRO (string).
func FromEnv(base Snapshot, lookup func(string) (string, bool)) (Snapshot, error) {
	s := base
	applied := 0

	ints := map[string]*int{
		"VOUT_MAX_PICTURES":    &s.VoutMaxPictures,
		"VOUT_MAX_SUBPICTURES": &s.VoutMaxSubpictures,
		"AOUT_FIFO_SIZE":       &s.AoutFifoSize,
		"AOUT_RATE":            &s.AoutRate,
		"INPUT_MAX_ALLOCATION": &s.InputMaxAllocation,
	}
	for key, dst := range ints {
		raw, ok := lookup(EnvPrefix + key)
		if !ok {
			continue
		}
		v, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return Snapshot{}, fmt.Errorf("%w: %s%s: %w", ErrInvalidConfig, EnvPrefix, key, err)
		}
		*dst = v
		applied++
	}

	if raw, ok := lookup(EnvPrefix + "CLOCK_FREQ"); ok {
		v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return Snapshot{}, fmt.Errorf("%w: %sCLOCK_FREQ: %w", ErrInvalidConfig, EnvPrefix, err)
		}
		s = s.WithClockFreq(v)
		applied++
	}

	// Durations are converted after CLOCK_FREQ so they use the final frequency.
	durations := map[string]*clock.Tick{
		"PTS_DELAY":            &s.PTSDelay,
		"VOUT_DISPLAY_DELAY":   &s.VoutDisplayDelay,
		"VOUT_MWAIT_TOLERANCE": &s.VoutMwaitTolerance,
		"VOUT_IDLE_SLEEP":      &s.VoutIdleSleep,
		"VOUT_OUTMEM_SLEEP":    &s.VoutOutmemSleep,
	}
	for key, dst := range durations {
		raw, ok := lookup(EnvPrefix + key)
		if !ok {
			continue
		}
		d, err := time.ParseDuration(strings.TrimSpace(raw))
		if err != nil {
			return Snapshot{}, fmt.Errorf("%w: %s%s: %w", ErrInvalidConfig, EnvPrefix, key, err)
		}
		*dst = s.Ticks(d)
		applied++
	}

	if raw, ok := lookup(EnvPrefix + "AOUT_STEREO"); ok {
		v, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return Snapshot{}, fmt.Errorf("%w: %sAOUT_STEREO: %w", ErrInvalidConfig, EnvPrefix, err)
		}
		s.AoutStereo = v
		applied++
	}

	if raw, ok := lookup(EnvPrefix + "SYNCHRO"); ok {
		s.SynchroMode = strings.TrimSpace(raw)
		applied++
	}

	if err := s.Validate(); err != nil {
		return Snapshot{}, err
	}

	logrus.WithFields(logrus.Fields{
		"function":  "config.FromEnv",
		"overrides": applied,
	}).Debug("Environment overrides applied")

	return s, nil
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}
