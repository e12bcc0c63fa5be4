package picture

import (
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/playsync/clock"
)

// Subpicture is a timed overlay, typically a caption, composited with the
// pictures displayed between Begin and End.
type Subpicture struct {
	Begin clock.Tick
	// End is ignored while Ephemeral is set.
	End     clock.Tick
	Text    string
	Channel int
	// Ephemeral subpictures stay visible until the next subpicture of the
	// same channel begins.
	Ephemeral bool
}

// visibleAt reports whether the subpicture is shown at date.
func (sp Subpicture) visibleAt(date clock.Tick) bool {
	if date < sp.Begin {
		return false
	}
	return sp.Ephemeral || date < sp.End
}

// SubpictureStore holds a bounded set of subpictures.
type SubpictureStore struct {
	mu    sync.Mutex
	slots []Subpicture
	used  []bool
}

// NewSubpictureStore creates a store with capacity slots.
func NewSubpictureStore(capacity int) *SubpictureStore {
	if capacity < 0 {
		capacity = 0
	}
	return &SubpictureStore{
		slots: make([]Subpicture, capacity),
		used:  make([]bool, capacity),
	}
}

// Add stores a subpicture. An ephemeral subpicture ends the previous
// ephemeral one of its channel at its own Begin date.
func (s *SubpictureStore) Add(sp Subpicture) error {
	if !sp.Ephemeral && sp.End < sp.Begin {
		return fmt.Errorf("%w: ends at %d before beginning at %d", ErrInvalidSubpicture, sp.End, sp.Begin)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if sp.Ephemeral {
		s.endChannelLocked(sp.Channel, sp.Begin)
	}
	for i := range s.slots {
		if !s.used[i] {
			s.slots[i] = sp
			s.used[i] = true
			return nil
		}
	}

	logrus.WithFields(logrus.Fields{
		"function": "SubpictureStore.Add",
		"channel":  sp.Channel,
		"capacity": len(s.slots),
	}).Debug("No free subpicture slot")

	return fmt.Errorf("%w: capacity %d", ErrSubpicturesExhausted, len(s.slots))
}

// EndChannel ends the ephemeral subpicture of a channel at date.
func (s *SubpictureStore) EndChannel(channel int, date clock.Tick) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endChannelLocked(channel, date)
}

// Active returns the subpictures visible at date, ordered by Begin, and
// frees the slots of the ones that already ended.
func (s *SubpictureStore) Active(date clock.Tick) []Subpicture {
	s.mu.Lock()
	defer s.mu.Unlock()

	var active []Subpicture
	for i := range s.slots {
		if !s.used[i] {
			continue
		}
		sp := s.slots[i]
		if !sp.Ephemeral && sp.End <= date {
			s.used[i] = false
			continue
		}
		if sp.visibleAt(date) {
			active = append(active, sp)
		}
	}
	sort.SliceStable(active, func(a, b int) bool {
		return active[a].Begin < active[b].Begin
	})
	return active
}

// Len returns the number of stored subpictures.
func (s *SubpictureStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, u := range s.used {
		if u {
			n++
		}
	}
	return n
}

// Clear removes every subpicture.
func (s *SubpictureStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.used {
		s.used[i] = false
	}
}

func (s *SubpictureStore) endChannelLocked(channel int, date clock.Tick) {
	for i := range s.slots {
		if s.used[i] && s.slots[i].Ephemeral && s.slots[i].Channel == channel {
			s.slots[i].Ephemeral = false
			s.slots[i].End = date
			if date <= s.slots[i].Begin {
				s.used[i] = false
			}
		}
	}
}
