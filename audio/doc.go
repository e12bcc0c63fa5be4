// Package audio holds the audio side of the presentation core: timestamped
// sample chunks and the fixed-capacity ring buffer that carries them from the
// audio decoder to the audio output.
//
// The ring is lock-free for a single producer and a single consumer:
//
//	ring, err := audio.NewRingBuffer(511)
//	if err != nil {
//	    return err
//	}
//	if err := ring.Push(chunk); errors.Is(err, audio.ErrBufferFull) {
//	    // the decoder decides whether to drop or retry
//	}
//
// The ring itself never blocks. Waiting for room or for data is up to the
// caller.
package audio
