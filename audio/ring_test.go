package audio

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/playsync/clock"
	"github.com/opd-ai/playsync/limits"
)

func TestNewRingBufferCapacity(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		wantErr  bool
	}{
		{"default fifo size", limits.AoutFifoSize, false},
		{"one", 1, false},
		{"fifteen", 15, false},
		{"zero", 0, true},
		{"negative", -1, true},
		{"not power of two minus one", 10, true},
		{"power of two", 512, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewRingBuffer(tt.capacity)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidCapacity)
				assert.Nil(t, r)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.capacity, r.Cap())
			assert.Equal(t, 0, r.Len())
		})
	}
}

func TestRingBufferFIFO(t *testing.T) {
	r, err := NewRingBuffer(7)
	require.NoError(t, err)

	// Several passes so positions wrap around the mask.
	for pass := 0; pass < 5; pass++ {
		n := 3 + pass
		if n > r.Cap() {
			n = r.Cap()
		}
		for i := 0; i < n; i++ {
			require.NoError(t, r.Push(Chunk{PTS: clock.Tick(pass*100 + i)}))
		}
		assert.Equal(t, n, r.Len())

		head, err := r.Peek()
		require.NoError(t, err)
		assert.Equal(t, clock.Tick(pass*100), head.PTS)

		for i := 0; i < n; i++ {
			c, err := r.Pop()
			require.NoError(t, err)
			assert.Equal(t, clock.Tick(pass*100+i), c.PTS)
		}
		assert.Equal(t, 0, r.Len())
	}
}

func TestRingBufferFullAndEmpty(t *testing.T) {
	r, err := NewRingBuffer(3)
	require.NoError(t, err)

	_, err = r.Pop()
	assert.ErrorIs(t, err, ErrBufferEmpty)
	_, err = r.Peek()
	assert.ErrorIs(t, err, ErrBufferEmpty)

	for i := 0; i < 3; i++ {
		require.NoError(t, r.Push(Chunk{PTS: clock.Tick(i)}))
	}
	assert.ErrorIs(t, r.Push(Chunk{PTS: 99}), ErrBufferFull)
	assert.Equal(t, 3, r.Len())

	c, err := r.Pop()
	require.NoError(t, err)
	assert.Equal(t, clock.Tick(0), c.PTS)
	assert.NoError(t, r.Push(Chunk{PTS: 3}))
	assert.ErrorIs(t, r.Push(Chunk{PTS: 4}), ErrBufferFull)

	assert.Equal(t, 3, r.Reset())
	assert.Equal(t, 0, r.Len())
}

func TestRingBufferConcurrentSPSC(t *testing.T) {
	const total = 10000
	r, err := NewRingBuffer(15)
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < total; {
			if r.Push(Chunk{PTS: clock.Tick(i)}) == nil {
				i++
			}
		}
	}()

	got := make([]clock.Tick, 0, total)
	for len(got) < total {
		c, err := r.Pop()
		if err != nil {
			continue
		}
		assert.LessOrEqual(t, r.Len(), r.Cap())
		got = append(got, c.PTS)
	}
	wg.Wait()

	for i, pts := range got {
		if pts != clock.Tick(i) {
			t.Fatalf("chunk %d has pts %d", i, pts)
		}
	}
}

func TestChunkDuration(t *testing.T) {
	c := Chunk{
		PTS:      1000,
		Samples:  make([]int16, 2*441),
		Channels: 2,
		Rate:     44100,
	}
	assert.Equal(t, 441, c.Frames())
	assert.Equal(t, clock.Tick(10000), c.Duration(1000000))
	assert.Equal(t, clock.Tick(11000), c.End(1000000))

	assert.Equal(t, clock.Tick(0), Chunk{Samples: make([]int16, 4)}.Duration(1000000))
	assert.Equal(t, 0, Chunk{Samples: make([]int16, 4)}.Frames())
}
