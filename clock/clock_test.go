package clock

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockTimeProvider provides deterministic time for testing.
type mockTimeProvider struct {
	mu  sync.Mutex
	now time.Time
}

func newMockTimeProvider() *mockTimeProvider {
	return &mockTimeProvider{now: time.Unix(1700000000, 0)}
}

func (m *mockTimeProvider) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *mockTimeProvider) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}

// TestClockStartsAtZero verifies a new clock reads tick 0.
func TestClockStartsAtZero(t *testing.T) {
	clk := New(1000000, newMockTimeProvider())
	assert.Equal(t, Tick(0), clk.Now())
	assert.Equal(t, int64(1000000), clk.Frequency())
}

// TestClockFollowsTimeProvider verifies elapsed time is converted to ticks.
func TestClockFollowsTimeProvider(t *testing.T) {
	tp := newMockTimeProvider()
	clk := New(1000000, tp)

	tp.Advance(1500 * time.Millisecond)
	assert.Equal(t, Tick(1500000), clk.Now())

	tp.Advance(time.Microsecond)
	assert.Equal(t, Tick(1500001), clk.Now())
}

// TestClockCustomFrequency verifies conversions at a 90kHz clock.
func TestClockCustomFrequency(t *testing.T) {
	tp := newMockTimeProvider()
	clk := New(90000, tp)

	tp.Advance(2 * time.Second)
	assert.Equal(t, Tick(180000), clk.Now())
	assert.Equal(t, time.Second, clk.Duration(90000))
	assert.Equal(t, Tick(45000), clk.FromDuration(500*time.Millisecond))
}

// TestAdvanceReference verifies the clock jumps to the reference timestamp.
func TestAdvanceReference(t *testing.T) {
	tp := newMockTimeProvider()
	clk := New(1000000, tp)
	clk.SetDiscontinuityThreshold(500000)

	tp.Advance(time.Second)
	r := clk.AdvanceReference(1010000)

	assert.Equal(t, Tick(1000000), r.Previous)
	assert.Equal(t, Tick(1010000), r.Current)
	assert.Equal(t, Tick(10000), r.Drift)
	assert.False(t, r.Discontinuity, "small drift is not a discontinuity")
	assert.Equal(t, Tick(1010000), clk.Now())
	assert.Equal(t, uint64(0), clk.Generation())

	// Time keeps flowing from the new reference.
	tp.Advance(100 * time.Millisecond)
	assert.Equal(t, Tick(1110000), clk.Now())
}

// TestAdvanceReferenceDiscontinuity verifies large jumps are reported.
func TestAdvanceReferenceDiscontinuity(t *testing.T) {
	tp := newMockTimeProvider()
	clk := New(1000000, tp)
	clk.SetDiscontinuityThreshold(500000)

	r := clk.AdvanceReference(-2000000)
	require.True(t, r.Discontinuity)
	assert.Equal(t, Tick(-2000000), r.Drift)
	assert.Equal(t, uint64(1), clk.Generation())
	assert.Equal(t, uint64(1), clk.Discontinuities())

	r = clk.AdvanceReference(60000000)
	require.True(t, r.Discontinuity)
	assert.Equal(t, uint64(2), clk.Generation())
	assert.Equal(t, Tick(60000000), clk.Now())
}

// TestElapsedIgnoresResync verifies Elapsed only follows the time provider.
func TestElapsedIgnoresResync(t *testing.T) {
	tp := newMockTimeProvider()
	clk := New(1000000, tp)

	tp.Advance(40 * time.Millisecond)
	clk.AdvanceReference(10000000)
	assert.Equal(t, Tick(40000), clk.Elapsed())
	assert.Equal(t, Tick(10000000), clk.Now())

	clk.AdvanceReference(0)
	tp.Advance(10 * time.Millisecond)
	assert.Equal(t, Tick(50000), clk.Elapsed())
	assert.Equal(t, Tick(10000), clk.Now())
}

// TestDeadline verifies deadline computation.
func TestDeadline(t *testing.T) {
	clk := New(1000000, newMockTimeProvider())
	assert.Equal(t, Tick(1200000), clk.Deadline(1000000, 200000))
	assert.Equal(t, Tick(5), clk.Deadline(5, 0))
}

// TestDurationConversions tests tick/duration round trips.
func TestDurationConversions(t *testing.T) {
	tests := []struct {
		name string
		freq int64
		tick Tick
		dur  time.Duration
	}{
		{"microseconds", 1000000, 20000, 20 * time.Millisecond},
		{"negative", 1000000, -600000, -600 * time.Millisecond},
		{"90kHz", 90000, 3000, 33333333 * time.Nanosecond},
		{"48kHz", 48000, 960, 20 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.dur, ToDuration(tt.tick, tt.freq))
		})
	}

	assert.Equal(t, Tick(960), FromDuration(20*time.Millisecond, 48000))
	assert.Equal(t, Tick(20000), FromDuration(20*time.Millisecond, 1000000))
}

// TestConcurrentReads verifies lock-free reads while resynchronizing.
func TestConcurrentReads(t *testing.T) {
	clk := New(1000000, nil)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				_ = clk.Now()
			}
		}()
	}

	for i := 0; i < 100; i++ {
		clk.AdvanceReference(Tick(i * 1000))
	}
	wg.Wait()
}
