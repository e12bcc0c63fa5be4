// Package limits provides the centralized capacity and timing constants of the
// presentation core, together with small validation helpers.
//
// # Timing
//
// All timings are expressed in presentation clock ticks, ClockFreq ticks per
// second (one tick is one microsecond by default):
//
//   - VoutIdleSleep (20ms): sleep of the video output with nothing to display.
//   - VoutMwaitTolerance (20ms): how early the output wakes up before a deadline.
//   - VoutDisplayDelay (500ms): lateness after which a picture is dropped.
//   - DefaultPTSDelay (200ms): delay added to every timestamp.
//
// # Capacities
//
//   - VoutMaxPictures (8): size of the picture heap.
//   - VoutMaxSubpictures (8): number of simultaneous subpictures.
//   - AoutFifoSize (511): chunks per audio fifo. AoutFifoSize+1 is a power of
//     two so the ring indices wrap with a bitmask.
//
// # Validation
//
//	if err := limits.ValidateFifoSize(size); err != nil {
//	    // errors.Is(err, limits.ErrNotPowerOfTwo)
//	}
//
// These constants are only defaults: running components read their values
// from a config.Snapshot built once at startup.
package limits
