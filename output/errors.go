package output

import "errors"

// ErrStopped is returned when running an output that was already stopped.
var ErrStopped = errors.New("output stopped")
