// Package codec adapts audio decoders to the presentation core: it turns
// compressed packets from the input stage into timestamped audio chunks for
// the audio ring buffer. Decoding relies on the pure Go pion/opus decoder.
package codec
