// Package output runs the output loops of the presentation core: one for
// video, one for audio. Each loop is a small state machine
//
//	Idle → WaitingForDue → Presenting → Idle
//
// with a terminal Stopped state. A loop peeks at its earliest frame, asks the
// synchronization policy what to do with it, and then presents it, drops it
// or sleeps until it is due. Sleeps are bounded waits on a change signal, so
// a newly published frame or a stop request wakes the loop early.
//
// Step performs a single evaluation without sleeping and is what tests drive
// with a controlled clock; Run loops over Step until its context is done.
package output
