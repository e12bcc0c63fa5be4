// Package synchro decides when pictures are decoded, displayed, delayed or
// dropped.
//
// Policy is consulted by the outputs for every candidate frame. It is a pure
// function of the frame deadline, the clock and the heap occupancy:
//
//	policy := synchro.NewPolicy(cfg)
//	d := policy.Decide(policy.Deadline(frame.PTS), clk.Now(), heap.Occupancy())
//	switch d.Action {
//	case synchro.Display:
//	case synchro.Skip:
//	case synchro.Wait:
//	}
//
// Advisor is consulted by video decoders before decoding a picture, and
// trades B and P pictures for punctuality when the machine is too slow.
package synchro
