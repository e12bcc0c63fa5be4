package playsync

import (
	"errors"

	"github.com/opd-ai/playsync/audio"
	"github.com/opd-ai/playsync/picture"
)

// Lifecycle errors.
var (
	// ErrNotRunning is returned by Stop when the player is not running.
	ErrNotRunning = errors.New("player is not running")

	// ErrAlreadyRunning is returned by Run when the player is running.
	ErrAlreadyRunning = errors.New("player is already running")

	// ErrNoRenderer indicates Options without a Renderer.
	ErrNoRenderer = errors.New("no renderer configured")

	// ErrNoSink indicates Options without an audio Sink.
	ErrNoSink = errors.New("no audio sink configured")
)

// Capacity errors of the underlying buffers, re-exported so callers only
// need this package to classify submit failures.
var (
	ErrHeapExhausted = picture.ErrHeapExhausted
	ErrClosed        = picture.ErrClosed
	ErrBufferFull    = audio.ErrBufferFull
	ErrBufferEmpty   = audio.ErrBufferEmpty
)
