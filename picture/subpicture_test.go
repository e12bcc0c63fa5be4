package picture

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubpictureActiveWindow(t *testing.T) {
	s := NewSubpictureStore(4)
	require.NoError(t, s.Add(Subpicture{Begin: 100, End: 200, Text: "hello"}))

	assert.Empty(t, s.Active(99))
	active := s.Active(100)
	require.Len(t, active, 1)
	assert.Equal(t, "hello", active[0].Text)
	assert.Len(t, s.Active(199), 1)

	// Expired entries are freed.
	assert.Empty(t, s.Active(200))
	assert.Equal(t, 0, s.Len())
}

func TestSubpictureOrderedByBegin(t *testing.T) {
	s := NewSubpictureStore(4)
	require.NoError(t, s.Add(Subpicture{Begin: 50, End: 500, Text: "second", Channel: 2}))
	require.NoError(t, s.Add(Subpicture{Begin: 10, End: 500, Text: "first", Channel: 1}))

	active := s.Active(60)
	require.Len(t, active, 2)
	assert.Equal(t, "first", active[0].Text)
	assert.Equal(t, "second", active[1].Text)
}

func TestSubpictureEphemeralReplacement(t *testing.T) {
	s := NewSubpictureStore(4)
	require.NoError(t, s.Add(Subpicture{Begin: 0, Text: "one", Ephemeral: true}))
	require.NoError(t, s.Add(Subpicture{Begin: 0, Text: "other channel", Channel: 3, Ephemeral: true}))
	require.NoError(t, s.Add(Subpicture{Begin: 1000, Text: "two", Ephemeral: true}))

	active := s.Active(500)
	require.Len(t, active, 2)
	assert.Equal(t, "one", active[0].Text)

	active = s.Active(1000)
	require.Len(t, active, 2)
	texts := []string{active[0].Text, active[1].Text}
	assert.ElementsMatch(t, []string{"other channel", "two"}, texts)
}

func TestSubpictureEndChannel(t *testing.T) {
	s := NewSubpictureStore(2)
	require.NoError(t, s.Add(Subpicture{Begin: 10, Text: "caption", Ephemeral: true}))

	s.EndChannel(0, 40)
	assert.Len(t, s.Active(39), 1)
	assert.Empty(t, s.Active(40))
	assert.Equal(t, 0, s.Len())
}

func TestSubpictureErrors(t *testing.T) {
	s := NewSubpictureStore(1)

	err := s.Add(Subpicture{Begin: 10, End: 5})
	assert.ErrorIs(t, err, ErrInvalidSubpicture)

	require.NoError(t, s.Add(Subpicture{Begin: 0, End: 10}))
	err = s.Add(Subpicture{Begin: 0, End: 10})
	assert.ErrorIs(t, err, ErrSubpicturesExhausted)

	s.Clear()
	assert.Equal(t, 0, s.Len())
	assert.NoError(t, s.Add(Subpicture{Begin: 0, End: 10}))
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{Empty, "empty"},
		{Decoding, "decoding"},
		{Ready, "ready"},
		{Displaying, "displaying"},
		{Destroying, "destroying"},
		{State(42), "state(42)"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.state.String())
	}
}
