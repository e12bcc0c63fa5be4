package output

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/opd-ai/playsync/audio"
	"github.com/opd-ai/playsync/clock"
	"github.com/opd-ai/playsync/picture"
	"github.com/opd-ai/playsync/synchro"
)

// State is the state of an output loop.
type State uint32

const (
	// Idle outputs have nothing queued.
	Idle State = iota
	// WaitingForDue outputs hold a candidate that is not due yet.
	WaitingForDue
	// Presenting outputs are handing a frame to their collaborator.
	Presenting
	// Stopped outputs have terminated.
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case WaitingForDue:
		return "waiting_for_due"
	case Presenting:
		return "presenting"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", uint32(s))
	}
}

// stateCell holds a State. Once Stopped it never changes again.
type stateCell struct {
	v atomic.Uint32

	initOnce  sync.Once
	closeOnce sync.Once
	done      chan struct{}
}

func (c *stateCell) load() State {
	return State(c.v.Load())
}

func (c *stateCell) set(s State) {
	for {
		cur := c.v.Load()
		if State(cur) == Stopped || c.v.CompareAndSwap(cur, uint32(s)) {
			return
		}
	}
}

func (c *stateCell) stop() {
	c.v.Store(uint32(Stopped))
	c.stopped()
	c.closeOnce.Do(func() { close(c.done) })
}

// stopped returns a channel closed once the state is Stopped.
func (c *stateCell) stopped() <-chan struct{} {
	c.initOnce.Do(func() { c.done = make(chan struct{}) })
	return c.done
}

// withStop returns a context canceled when ctx is done or when the cell is
// stopped, so loops sleeping on the context notice Stop at once.
func (c *stateCell) withStop(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stopped := c.stopped()
	go func() {
		select {
		case <-stopped:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// Renderer displays pictures. PresentPicture must not block for long and
// must not keep the frame planes after returning.
type Renderer interface {
	PresentPicture(f picture.Frame, subs []picture.Subpicture)
}

// IdleRenderer is implemented by renderers that show an idle screen when no
// picture arrived for a while.
type IdleRenderer interface {
	PresentIdle()
}

// AudioSink plays audio.
type AudioSink interface {
	PlayChunk(c audio.Chunk)
	// PlaySilence fills an under-run with d ticks of silence.
	PlaySilence(d clock.Tick)
}

// StepResult describes one evaluation of an output.
type StepResult struct {
	State    State
	Decision synchro.Decision
	// Handled is set when a frame was presented or skipped.
	Handled bool
	// PTS of the handled or pending frame.
	PTS clock.Tick
	// Wait is how long the loop may sleep before the next step.
	Wait time.Duration
}
