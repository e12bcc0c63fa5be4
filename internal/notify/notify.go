// Package notify provides a broadcast signal that can be waited on with a
// timeout or a context, which sync.Cond cannot do.
package notify

import (
	"context"
	"sync"
	"time"
)

// Signal wakes every waiter at once. The zero value is ready to use.
//
// Waiters take the channel returned by C before checking their condition and
// then select on it; Broadcast closes that channel and installs a fresh one,
// so a broadcast between the check and the select is never lost.
type Signal struct {
	mu sync.Mutex
	ch chan struct{}
}

// C returns the channel closed by the next Broadcast.
func (s *Signal) C() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ch == nil {
		s.ch = make(chan struct{})
	}
	return s.ch
}

// Broadcast wakes every goroutine waiting on a channel obtained from C.
func (s *Signal) Broadcast() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ch != nil {
		close(s.ch)
	}
	s.ch = make(chan struct{})
}

// Result tells why Wait returned.
type Result int

const (
	// Signaled means the channel was closed.
	Signaled Result = iota
	// TimedOut means the timeout elapsed first.
	TimedOut
	// Canceled means the context was done first.
	Canceled
)

// Wait blocks until ch is closed, d elapses or ctx is done. A non-positive d
// only checks the channel and the context without blocking.
func Wait(ctx context.Context, ch <-chan struct{}, d time.Duration) Result {
	if d <= 0 {
		select {
		case <-ch:
			return Signaled
		case <-ctx.Done():
			return Canceled
		default:
			return TimedOut
		}
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ch:
		return Signaled
	case <-ctx.Done():
		return Canceled
	case <-timer.C:
		return TimedOut
	}
}
