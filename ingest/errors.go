package ingest

import "errors"

// Input errors.
var (
	// ErrEmptyPacket indicates a zero-length packet.
	ErrEmptyPacket = errors.New("empty packet")

	// ErrPacketTooLarge indicates a packet above InputMaxPacketSize.
	ErrPacketTooLarge = errors.New("packet too large")

	// ErrBudgetExceeded indicates the buffered payloads would exceed
	// InputMaxAllocation.
	ErrBudgetExceeded = errors.New("input memory budget exceeded")

	// ErrUnexpectedSSRC indicates a packet from another synchronization source.
	ErrUnexpectedSSRC = errors.New("unexpected SSRC")

	// ErrDuplicate indicates a packet already received or already released.
	ErrDuplicate = errors.New("duplicate or expired packet")
)
