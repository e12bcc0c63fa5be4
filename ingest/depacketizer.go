package ingest

import (
	"fmt"
	"sync"

	"github.com/pion/rtp"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/playsync/clock"
	"github.com/opd-ai/playsync/config"
	"github.com/opd-ai/playsync/metrics"
)

// Packet is an RTP payload placed on the presentation timeline.
type Packet struct {
	// Seq is the sequence number extended to 64 bits.
	Seq          int64
	PTS          clock.Tick
	RTPTimestamp uint32
	PayloadType  uint8
	Marker       bool
	Payload      []byte
	// Discontinuity is set on the first packet after a timestamp jump.
	Discontinuity bool
}

// Stats holds the depacketizer counters.
type Stats struct {
	Accepted        uint64
	Rejected        uint64
	Duplicates      uint64
	Lost            uint64
	Discontinuities uint64
	// Buffered is the payload bytes held for reordering.
	Buffered int
}

// Depacketizer turns RTP packets of one stream into ordered, timestamped
// payloads for a decoder.
//
// RTP timestamps are unwrapped and converted from the media clock rate to
// ticks, counted from the first packet. A jump larger than the discontinuity
// threshold between consecutive packets resynchronizes the presentation
// clock.
type Depacketizer struct {
	mu sync.Mutex

	freq      int64
	clockRate uint32
	maxPacket int
	budget    int
	buffered  int
	threshold clock.Tick
	clk       *clock.Clock

	ssrc    uint32
	hasSSRC bool
	seq     unwrapper
	ts      unwrapper
	firstTS int64
	lastPTS clock.Tick
	hasLast bool
	reorder *Reorderer
	stats   Stats
}

// NewDepacketizer creates a depacketizer for a stream with the given RTP
// clock rate. Up to depth packets are held to restore order. clk may be nil,
// in which case discontinuities are only flagged.
func NewDepacketizer(cfg config.Snapshot, clockRate uint32, depth int, clk *clock.Clock) (*Depacketizer, error) {
	if clockRate == 0 {
		return nil, fmt.Errorf("invalid RTP clock rate %d", clockRate)
	}

	logrus.WithFields(logrus.Fields{
		"function":   "ingest.NewDepacketizer",
		"clock_rate": clockRate,
		"depth":      depth,
		"budget":     cfg.InputMaxAllocation,
	}).Debug("Creating depacketizer")

	return &Depacketizer{
		freq:      cfg.ClockFreq,
		clockRate: clockRate,
		maxPacket: cfg.InputMaxPacketSize,
		budget:    cfg.InputMaxAllocation,
		threshold: cfg.DiscontinuityThreshold,
		clk:       clk,
		seq:       unwrapper{bits: 16},
		ts:        unwrapper{bits: 32},
		reorder:   NewReorderer(depth),
	}, nil
}

// Push parses and queues one RTP packet.
func (d *Depacketizer) Push(data []byte) error {
	if len(data) == 0 {
		return d.reject(ErrEmptyPacket)
	}
	if len(data) > d.maxPacket {
		return d.reject(fmt.Errorf("%w: %d > %d bytes", ErrPacketTooLarge, len(data), d.maxPacket))
	}

	pkt := &rtp.Packet{}
	if err := pkt.Unmarshal(data); err != nil {
		return d.reject(fmt.Errorf("failed to unmarshal RTP packet: %w", err))
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.hasSSRC {
		d.ssrc = pkt.SSRC
		d.hasSSRC = true
		logrus.WithFields(logrus.Fields{
			"function": "Depacketizer.Push",
			"ssrc":     pkt.SSRC,
		}).Info("Accepted new SSRC for stream")
	} else if pkt.SSRC != d.ssrc {
		d.stats.Rejected++
		metrics.RecordIngestPacket(metrics.OutcomeRejected)
		return fmt.Errorf("%w: expected %d, got %d", ErrUnexpectedSSRC, d.ssrc, pkt.SSRC)
	}

	if d.buffered+len(pkt.Payload) > d.budget {
		d.stats.Rejected++
		metrics.RecordIngestPacket(metrics.OutcomeRejected)
		return fmt.Errorf("%w: %d buffered, %d more, budget %d", ErrBudgetExceeded, d.buffered, len(pkt.Payload), d.budget)
	}

	if !d.ts.started {
		d.firstTS = int64(pkt.Timestamp)
	}
	ext := d.ts.unwrap(pkt.Timestamp)
	p := Packet{
		Seq:          d.seq.unwrap(uint32(pkt.SequenceNumber)),
		PTS:          clock.Tick((ext - d.firstTS) * d.freq / int64(d.clockRate)),
		RTPTimestamp: pkt.Timestamp,
		PayloadType:  pkt.PayloadType,
		Marker:       pkt.Marker,
		Payload:      append([]byte(nil), pkt.Payload...),
	}

	if !d.reorder.Insert(p) {
		d.stats.Duplicates++
		metrics.RecordIngestPacket(metrics.OutcomeDuplicate)
		return fmt.Errorf("%w: sequence %d", ErrDuplicate, p.Seq)
	}
	d.buffered += len(p.Payload)
	d.stats.Accepted++
	metrics.RecordIngestPacket(metrics.OutcomeAccepted)

	logrus.WithFields(logrus.Fields{
		"function":     "Depacketizer.Push",
		"sequence":     p.Seq,
		"pts":          p.PTS,
		"payload_size": len(p.Payload),
		"queued":       d.reorder.Len(),
	}).Trace("Packet queued")

	return nil
}

// Pop returns the next packet in sequence order, once it is available.
func (d *Depacketizer) Pop() (Packet, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.reorder.Pop()
	if !ok {
		return Packet{}, false
	}
	return d.releaseLocked(p), true
}

// Flush returns every queued packet in order, giving up on gaps.
func (d *Depacketizer) Flush() []Packet {
	d.mu.Lock()
	defer d.mu.Unlock()

	pkts := d.reorder.Flush()
	for i := range pkts {
		pkts[i] = d.releaseLocked(pkts[i])
	}
	return pkts
}

// Reset forgets the stream, for instance after a seek. The next packet may
// come from a new SSRC and starts a new timeline.
func (d *Depacketizer) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.reorder.Flush()
	d.reorder = NewReorderer(d.reorder.depth)
	d.buffered = 0
	d.hasSSRC = false
	d.hasLast = false
	d.seq.reset()
	d.ts.reset()

	logrus.WithFields(logrus.Fields{
		"function": "Depacketizer.Reset",
	}).Info("Depacketizer reset")
}

// Stats returns a copy of the counters.
func (d *Depacketizer) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()

	s := d.stats
	s.Lost = d.reorder.Lost()
	s.Buffered = d.buffered
	return s
}

func (d *Depacketizer) releaseLocked(p Packet) Packet {
	d.buffered -= len(p.Payload)

	if d.hasLast {
		jump := p.PTS - d.lastPTS
		if jump < 0 {
			jump = -jump
		}
		if d.threshold > 0 && jump > d.threshold {
			p.Discontinuity = true
			d.stats.Discontinuities++
			metrics.RecordDiscontinuity()

			logrus.WithFields(logrus.Fields{
				"function": "Depacketizer.Pop",
				"previous": d.lastPTS,
				"pts":      p.PTS,
			}).Warn("Timestamp discontinuity")

			if d.clk != nil {
				d.clk.AdvanceReference(p.PTS)
			}
		}
	}
	d.lastPTS = p.PTS
	d.hasLast = true
	return p
}

func (d *Depacketizer) reject(err error) error {
	d.mu.Lock()
	d.stats.Rejected++
	d.mu.Unlock()
	metrics.RecordIngestPacket(metrics.OutcomeRejected)
	return err
}
