// Package picture implements the bounded picture heap and the subpicture
// store of the video output.
//
// # Picture heap
//
// The heap is an arena of VoutMaxPictures pre-allocated slots addressed by
// integer Handle. Each slot carries an explicit state:
//
//	Empty → Decoding → Ready → Displaying → Empty
//	                   Ready → Empty            (skipped)
//	        Decoding → Empty                    (canceled)
//	        Decoding → Destroying → Empty       (heap closed meanwhile)
//
// A decoder reserves a slot, fills it and publishes it with its timestamp:
//
//	h, err := heap.AcquireEmpty(ctx, wait)
//	if errors.Is(err, picture.ErrHeapExhausted) {
//	    // drop the picture, the output is behind
//	}
//	err = heap.Publish(h, pts, planes)
//
// The output picks the earliest Ready picture (ties broken by arrival
// order), displays it and releases the slot:
//
//	f, ok := heap.AcquireReady(horizon)
//	if ok {
//	    render(f)
//	    heap.Release(f.Handle)
//	}
//
// The number of non-Empty slots never exceeds the capacity.
//
// # Subpictures
//
// SubpictureStore keeps up to VoutMaxSubpictures timed overlays. Ephemeral
// subpictures, as produced by roll-up captions, stay visible until the next
// one of the same channel begins.
package picture
