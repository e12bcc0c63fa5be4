package picture

import "errors"

// Heap errors.
var (
	// ErrHeapExhausted indicates every picture slot stayed non-Empty for the
	// whole allowed wait.
	ErrHeapExhausted = errors.New("picture heap exhausted")

	// ErrClosed indicates the heap was closed by a stop request.
	ErrClosed = errors.New("picture heap closed")

	// ErrInvalidHandle indicates a handle outside the heap.
	ErrInvalidHandle = errors.New("invalid picture handle")

	// ErrBadState indicates an operation on a slot in the wrong state.
	ErrBadState = errors.New("picture slot in wrong state")

	// ErrTooManyPlanes indicates a picture with more planes than allowed.
	ErrTooManyPlanes = errors.New("too many picture planes")
)

// Subpicture errors.
var (
	// ErrSubpicturesExhausted indicates every subpicture slot is in use.
	ErrSubpicturesExhausted = errors.New("subpicture slots exhausted")

	// ErrInvalidSubpicture indicates a subpicture ending before it begins.
	ErrInvalidSubpicture = errors.New("invalid subpicture")
)
