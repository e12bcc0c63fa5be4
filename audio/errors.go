package audio

import "errors"

// Ring buffer errors.
var (
	// ErrBufferFull indicates the ring holds as many chunks as its capacity.
	ErrBufferFull = errors.New("audio buffer full")

	// ErrBufferEmpty indicates no chunk is queued. For an output this is an
	// under-run.
	ErrBufferEmpty = errors.New("audio buffer empty")

	// ErrInvalidCapacity indicates a capacity whose successor is not a power
	// of two.
	ErrInvalidCapacity = errors.New("invalid audio buffer capacity")
)
