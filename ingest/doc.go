// Package ingest is the input-stage adapter of the presentation core. It
// depacketizes RTP, restores sequence order, unwraps the 32-bit media
// timestamps onto the presentation timeline and enforces the input memory
// budget (InputMaxAllocation) and packet size limit (InputMaxPacketSize).
//
// The budget is independent of the picture heap: a full heap makes decoders
// drop pictures, while an exhausted input budget makes the depacketizer
// reject packets with ErrBudgetExceeded.
package ingest
