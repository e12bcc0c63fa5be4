package picture

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/playsync/clock"
	"github.com/opd-ai/playsync/config"
)

// mockTimeProvider provides deterministic time for testing.
type mockTimeProvider struct {
	mu  sync.Mutex
	now time.Time
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

func newTestHeap(t *testing.T, capacity int) (*Heap, *mockTimeProvider) {
	t.Helper()
	cfg := config.Default()
	cfg.VoutMaxPictures = capacity
	tp := &mockTimeProvider{now: time.Unix(1700000000, 0)}
	return NewHeap(cfg, clock.New(cfg.ClockFreq, tp)), tp
}

func publish(t *testing.T, h *Heap, pts clock.Tick) Handle {
	t.Helper()
	handle, err := h.AcquireEmpty(context.Background(), 0)
	require.NoError(t, err)
	require.NoError(t, h.Publish(handle, pts, [][]byte{{byte(pts)}}))
	return handle
}

// TestHeapLifecycle walks one slot through its full lifecycle.
func TestHeapLifecycle(t *testing.T) {
	h, _ := newTestHeap(t, 2)

	handle, err := h.AcquireEmpty(context.Background(), 0)
	require.NoError(t, err)
	state, _ := h.State(handle)
	assert.Equal(t, Decoding, state)

	require.NoError(t, h.Publish(handle, 1000, [][]byte{{1, 2, 3}}))
	state, _ = h.State(handle)
	assert.Equal(t, Ready, state)

	f, ok := h.AcquireReady(1000)
	require.True(t, ok)
	assert.Equal(t, handle, f.Handle)
	assert.Equal(t, clock.Tick(1000), f.PTS)
	assert.Equal(t, Displaying, f.State)
	assert.Equal(t, [][]byte{{1, 2, 3}}, f.Planes)

	require.NoError(t, h.Release(handle))
	state, _ = h.State(handle)
	assert.Equal(t, Empty, state)

	stats := h.Stats()
	assert.Equal(t, uint64(1), stats.Published)
	assert.Equal(t, uint64(1), stats.Displayed)
	assert.Equal(t, uint64(0), stats.Skipped)
}

// TestHeapExhaustion verifies the capacity bound and ErrHeapExhausted.
func TestHeapExhaustion(t *testing.T) {
	h, _ := newTestHeap(t, 3)

	for i := 0; i < 3; i++ {
		publish(t, h, clock.Tick(i))
	}

	_, err := h.AcquireEmpty(context.Background(), 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrHeapExhausted)
	assert.Equal(t, uint64(1), h.Stats().Exhausted)

	occ := h.Occupancy()
	assert.True(t, occ.AtCapacity())
	assert.Equal(t, 3, occ.Ready)
}

// TestHeapBoundedWait verifies AcquireEmpty waits for a release.
func TestHeapBoundedWait(t *testing.T) {
	h, _ := newTestHeap(t, 1)
	publish(t, h, 10)

	go func() {
		time.Sleep(10 * time.Millisecond)
		f, ok := h.AcquireReady(10)
		if ok {
			_ = h.Release(f.Handle)
		}
	}()

	handle, err := h.AcquireEmpty(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, Handle(0), handle)
}

// TestHeapBoundedWaitExpires verifies the wait gives up after its bound.
func TestHeapBoundedWaitExpires(t *testing.T) {
	h, _ := newTestHeap(t, 1)
	publish(t, h, 10)

	start := time.Now()
	_, err := h.AcquireEmpty(context.Background(), 20*time.Millisecond)
	assert.ErrorIs(t, err, ErrHeapExhausted)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

// TestHeapAcquireCanceled verifies context cancellation of the wait.
func TestHeapAcquireCanceled(t *testing.T) {
	h, _ := newTestHeap(t, 1)
	publish(t, h, 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := h.AcquireEmpty(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
}

// TestHeapOrdering verifies the earliest timestamp is displayed first and
// ties are broken by arrival order.
func TestHeapOrdering(t *testing.T) {
	h, _ := newTestHeap(t, 5)

	publish(t, h, 300)
	first := publish(t, h, 100)
	publish(t, h, 200)
	second := publish(t, h, 100)

	want := []struct {
		pts    clock.Tick
		handle Handle
	}{
		{100, first},
		{100, second},
		{200, -1},
		{300, -1},
	}

	for _, w := range want {
		f, ok := h.AcquireReady(1000)
		require.True(t, ok)
		assert.Equal(t, w.pts, f.PTS)
		if w.handle >= 0 {
			assert.Equal(t, w.handle, f.Handle)
		}
		require.NoError(t, h.Release(f.Handle))
	}

	_, ok := h.AcquireReady(1000)
	assert.False(t, ok)
}

// TestHeapAcquireReadyHorizon verifies pictures after the horizon stay queued.
func TestHeapAcquireReadyHorizon(t *testing.T) {
	h, _ := newTestHeap(t, 2)
	publish(t, h, 500)

	_, ok := h.AcquireReady(499)
	assert.False(t, ok)

	peeked, ok := h.Peek()
	require.True(t, ok)
	assert.Equal(t, Ready, peeked.State)

	f, ok := h.AcquireReady(500)
	require.True(t, ok)
	assert.Equal(t, peeked.Handle, f.Handle)
}

// TestHeapDiscard verifies skipping a Ready picture.
func TestHeapDiscard(t *testing.T) {
	h, _ := newTestHeap(t, 2)
	handle := publish(t, h, 1)

	require.NoError(t, h.Discard(handle))
	state, _ := h.State(handle)
	assert.Equal(t, Empty, state)
	assert.Equal(t, uint64(1), h.Stats().Skipped)

	assert.ErrorIs(t, h.Discard(handle), ErrBadState)
}

// TestHeapStateErrors tests operations on slots in the wrong state.
func TestHeapStateErrors(t *testing.T) {
	h, _ := newTestHeap(t, 2)

	assert.ErrorIs(t, h.Publish(0, 1, nil), ErrBadState)
	assert.ErrorIs(t, h.Release(0), ErrBadState)
	assert.ErrorIs(t, h.Cancel(0), ErrBadState)
	assert.ErrorIs(t, h.Publish(7, 1, nil), ErrInvalidHandle)
	assert.ErrorIs(t, h.Release(-1), ErrInvalidHandle)

	handle, err := h.AcquireEmpty(context.Background(), 0)
	require.NoError(t, err)
	planes := make([][]byte, 6)
	assert.ErrorIs(t, h.Publish(handle, 1, planes), ErrTooManyPlanes)

	require.NoError(t, h.Cancel(handle))
	assert.Equal(t, uint64(1), h.Stats().Canceled)
	assert.Equal(t, 0, h.Occupancy().Used)
}

// TestHeapCloseReleasesEverything verifies no slot stays non-Empty after a stop.
func TestHeapCloseReleasesEverything(t *testing.T) {
	h, _ := newTestHeap(t, 4)

	publish(t, h, 1)
	publish(t, h, 2)
	decoding, err := h.AcquireEmpty(context.Background(), 0)
	require.NoError(t, err)
	displayed := publish(t, h, 0)
	f, ok := h.AcquireReady(0)
	require.True(t, ok)
	require.Equal(t, displayed, f.Handle)

	flushed := h.Close()
	assert.Equal(t, 2, flushed)

	state, _ := h.State(decoding)
	assert.Equal(t, Destroying, state)

	// The producer finishing its picture learns about the stop.
	assert.ErrorIs(t, h.Publish(decoding, 3, nil), ErrClosed)
	require.NoError(t, h.Release(displayed))

	for i := 0; i < h.Capacity(); i++ {
		state, _ := h.State(Handle(i))
		assert.Equal(t, Empty, state, "slot %d", i)
	}

	_, err = h.AcquireEmpty(context.Background(), time.Second)
	assert.ErrorIs(t, err, ErrClosed)

	stats := h.Stats()
	assert.Equal(t, stats.Published, stats.Displayed+stats.Skipped)
	assert.Equal(t, uint64(2), stats.Flushed)
}

// TestHeapCloseWakesWaiters verifies a blocked producer observes the stop.
func TestHeapCloseWakesWaiters(t *testing.T) {
	h, _ := newTestHeap(t, 1)
	publish(t, h, 1)

	errCh := make(chan error, 1)
	go func() {
		_, err := h.AcquireEmpty(context.Background(), time.Minute)
		errCh <- err
	}()

	time.Sleep(5 * time.Millisecond)
	h.Close()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("producer not woken by Close")
	}
}

// TestHeapFullFor verifies the exhaustion duration tracking.
func TestHeapFullFor(t *testing.T) {
	h, tp := newTestHeap(t, 2)

	publish(t, h, 1)
	assert.Equal(t, clock.Tick(0), h.Occupancy().FullFor)

	publish(t, h, 2)
	tp.Advance(30 * time.Millisecond)
	occ := h.Occupancy()
	assert.Equal(t, clock.Tick(30000), occ.FullFor)
	assert.Equal(t, clock.Tick(1), occ.OldestPTS)
	assert.True(t, occ.HasReady)

	require.NoError(t, h.Discard(0))
	assert.Equal(t, clock.Tick(0), h.Occupancy().FullFor)
}

// TestHeapFullForIgnoresResync verifies a clock resynchronization does not
// change how long the heap has been full.
func TestHeapFullForIgnoresResync(t *testing.T) {
	h, tp := newTestHeap(t, 2)
	publish(t, h, 1)
	publish(t, h, 2)

	tp.Advance(5 * time.Millisecond)
	h.clk.AdvanceReference(h.clk.Now() + 10*1000000)
	assert.Equal(t, clock.Tick(5000), h.Occupancy().FullFor)

	h.clk.AdvanceReference(0)
	tp.Advance(5 * time.Millisecond)
	assert.Equal(t, clock.Tick(10000), h.Occupancy().FullFor)
}

// TestHeapFlush verifies Flush drops only Ready pictures.
func TestHeapFlush(t *testing.T) {
	h, _ := newTestHeap(t, 3)
	publish(t, h, 1)
	publish(t, h, 2)
	_, err := h.AcquireEmpty(context.Background(), 0)
	require.NoError(t, err)

	assert.Equal(t, 2, h.Flush())
	assert.Equal(t, 1, h.Occupancy().Used)
	assert.Equal(t, 0, h.Flush())
}

// TestHeapConcurrentCapacity verifies the heap never exceeds its capacity
// under concurrent producers and a consumer, and that every published
// picture is either displayed or skipped exactly once.
func TestHeapConcurrentCapacity(t *testing.T) {
	const (
		capacity  = 4
		producers = 4
		perWorker = 200
	)
	h, _ := newTestHeap(t, capacity)

	var maxSeen atomic.Int64
	sample := func() {
		used := int64(h.Occupancy().Used)
		for {
			cur := maxSeen.Load()
			if used <= cur || maxSeen.CompareAndSwap(cur, used) {
				return
			}
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var producersWG sync.WaitGroup
	var published atomic.Int64
	for p := 0; p < producers; p++ {
		producersWG.Add(1)
		go func(p int) {
			defer producersWG.Done()
			for i := 0; i < perWorker; i++ {
				handle, err := h.AcquireEmpty(ctx, 50*time.Millisecond)
				if errors.Is(err, ErrHeapExhausted) {
					continue
				}
				if err != nil {
					return
				}
				sample()
				if i%10 == 0 {
					_ = h.Cancel(handle)
					continue
				}
				if h.Publish(handle, clock.Tick(p*perWorker+i), nil) == nil {
					published.Add(1)
				}
			}
		}(p)
	}

	done := make(chan struct{})
	go func() {
		producersWG.Wait()
		close(done)
	}()

	for consumed := 0; ; consumed++ {
		if consumed%3 == 0 {
			if f, ok := h.Peek(); ok {
				// Single consumer: a Ready slot cannot change under us.
				require.NoError(t, h.Discard(f.Handle))
				continue
			}
		} else if f, ok := h.AcquireReady(1 << 40); ok {
			sample()
			require.NoError(t, h.Release(f.Handle))
			continue
		}

		select {
		case <-done:
		default:
			time.Sleep(time.Microsecond)
			continue
		}
		if _, ok := h.Peek(); !ok {
			break
		}
	}

	assert.LessOrEqual(t, maxSeen.Load(), int64(capacity))
	assert.LessOrEqual(t, h.Stats().PeakUsed, capacity)

	stats := h.Stats()
	assert.Equal(t, uint64(published.Load()), stats.Published)
	assert.Equal(t, stats.Published, stats.Displayed+stats.Skipped)
	assert.Equal(t, 0, h.Occupancy().Used)
}
