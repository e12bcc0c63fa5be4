// Package playsync is the presentation synchronization core of a media
// player: it takes decoded pictures, audio chunks and captions from decode
// goroutines and hands each of them to an output at its deadline on a shared
// presentation clock.
//
// # Getting Started
//
// Create a player with a renderer and an audio sink, run it, and submit
// decoded media from your decoders:
//
//	options := playsync.NewOptions()
//	options.Renderer = myRenderer
//	options.Sink = mySink
//
//	player, err := playsync.New(options)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	go player.Run(ctx)
//	defer player.Stop()
//
//	err = player.SubmitDecodedPicture(ctx, pts, planes)
//	if errors.Is(err, playsync.ErrHeapExhausted) {
//	    // the output is behind; the picture was dropped
//	}
//
// # Components
//
// The player wires together:
//
//   - [clock.Clock]: the presentation clock, resynchronized by the input stage
//   - [picture.Heap]: a fixed arena of picture slots between decoders and output
//   - [audio.RingBuffer]: a lock-free single-producer single-consumer chunk queue
//   - [synchro.Policy]: the display, wait or skip decision for each frame
//   - [output.VideoOutput] and [output.AudioOutput]: the output loops
//
// Every timing and capacity limit comes from one immutable [config.Snapshot].
//
// # Adapters
//
// SubmitOpus decodes Opus packets through the codec package before queueing
// them. SubmitCaption and SubmitCEA608 turn closed captions into
// subpictures. The ingest package places RTP packets on the player timeline
// for callers that receive pictures from the network.
//
// # Deterministic Testing
//
// Options.TimeProvider replaces the system clock, so tests can move the
// presentation clock by hand and drive the outputs with Step:
//
//	options.TimeProvider = mockTime
//	player, _ := playsync.New(options)
//	player.SubmitDecodedPicture(ctx, 0, planes)
//	player.Video().Step()
package playsync
