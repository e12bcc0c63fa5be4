package synchro

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/opd-ai/playsync/clock"
	"github.com/opd-ai/playsync/config"
	"github.com/opd-ai/playsync/picture"
)

func testPolicy() *Policy {
	cfg := config.Default()
	cfg.VoutDisplayDelay = 500000
	cfg.VoutMwaitTolerance = 20000
	cfg.PTSDelay = 0
	cfg.HeapExhaustionTolerance = 20000
	return NewPolicy(cfg)
}

func TestPolicyDecide(t *testing.T) {
	const now = clock.Tick(10000000)
	free := picture.Occupancy{Used: 1, Capacity: 8, Ready: 1, HasReady: true, OldestPTS: now - 100000}
	fullStale := picture.Occupancy{Used: 8, Capacity: 8, Ready: 8, HasReady: true, OldestPTS: now - 1}
	fullFresh := picture.Occupancy{Used: 8, Capacity: 8, Ready: 8, HasReady: true, OldestPTS: now + 1}

	tests := []struct {
		name     string
		deadline clock.Tick
		occ      picture.Occupancy
		want     Decision
	}{
		{"one second early", now + 1000000, free, Decision{Action: Wait, Wait: 980000, Reason: Early}},
		{"too late", now - 600000, free, Decision{Action: Skip, Reason: Late}},
		{"within tolerance", now + 5000, free, Decision{Action: Display, Reason: OnTime}},
		{"exactly at tolerance", now + 20000, free, Decision{Action: Display, Reason: OnTime}},
		{"just past tolerance", now + 20001, free, Decision{Action: Wait, Wait: 1, Reason: Early}},
		{"slightly late", now - 100000, free, Decision{Action: Display, Reason: OnTime}},
		{"exactly display delay late", now - 500000, free, Decision{Action: Display, Reason: OnTime}},
		{"late beats backpressure", now - 600000, fullStale, Decision{Action: Skip, Reason: Late}},
		{"full heap with stale oldest", now - 1, fullStale, Decision{Action: Skip, Reason: Backpressure}},
		{"backpressure overrides wait", now + 1000000, fullStale, Decision{Action: Skip, Reason: Backpressure}},
		{"full heap still on time", now + 5000, fullFresh, Decision{Action: Display, Reason: OnTime}},
		{"full heap early", now + 1000000, fullFresh, Decision{Action: Wait, Wait: 980000, Reason: Early}},
		{"empty heap", now, picture.Occupancy{Capacity: 8}, Decision{Action: Display, Reason: OnTime}},
	}

	p := testPolicy()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Decide(tt.deadline, now, tt.occ))
		})
	}
}

func TestPolicyDeterministic(t *testing.T) {
	p := testPolicy()
	occ := picture.Occupancy{Used: 3, Capacity: 8}
	first := p.Decide(123456, 100000, occ)
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, p.Decide(123456, 100000, occ))
	}
}

func TestPolicyDeadline(t *testing.T) {
	cfg := config.Default()
	p := NewPolicy(cfg)
	assert.Equal(t, 1000+cfg.PTSDelay, p.Deadline(1000))
}

func TestPolicyDropDecoded(t *testing.T) {
	p := testPolicy()

	assert.False(t, p.DropDecoded(picture.Occupancy{Used: 7, Capacity: 8}))
	assert.False(t, p.DropDecoded(picture.Occupancy{Used: 8, Capacity: 8, FullFor: 20000}))
	assert.True(t, p.DropDecoded(picture.Occupancy{Used: 8, Capacity: 8, FullFor: 20001}))
}

func TestCounters(t *testing.T) {
	var c Counters
	c.Record(Decision{Action: Display, Reason: OnTime})
	c.Record(Decision{Action: Display, Reason: OnTime})
	c.Record(Decision{Action: Wait, Wait: 10, Reason: Early})
	c.Record(Decision{Action: Skip, Reason: Late})
	c.Record(Decision{Action: Skip, Reason: Backpressure})
	c.RecordDropped()

	s := c.Snapshot()
	assert.Equal(t, uint64(2), s.Displayed)
	assert.Equal(t, uint64(1), s.Waits)
	assert.Equal(t, uint64(1), s.Late)
	assert.Equal(t, uint64(1), s.Backpressure)
	assert.Equal(t, uint64(2), s.Skipped())
	assert.Equal(t, uint64(1), s.DroppedDecoded)
}

func TestDecisionString(t *testing.T) {
	assert.Equal(t, "wait(42)", Decision{Action: Wait, Wait: 42, Reason: Early}.String())
	assert.Equal(t, "skip(late)", Decision{Action: Skip, Reason: Late}.String())
	assert.Equal(t, "display(on_time)", Decision{Action: Display}.String())
	assert.Equal(t, "action(9)", Action(9).String())
	assert.Equal(t, "reason(9)", Reason(9).String())
}
