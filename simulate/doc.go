// Package simulate provides in-memory collaborators and synthetic streams
// for deterministic testing and demos of the presentation core.
//
// # Overview
//
// The outputs hand their frames to a Renderer and an AudioSink supplied by
// the caller. This package implements both in memory and keeps a log of what
// they received, so tests can verify presentation order and timing without
// a display or a sound card.
//
// # Usage
//
//	renderer := simulate.NewRenderer(clk)
//	sink := simulate.NewSink()
//	player, err := playsync.New(cfg, renderer, sink)
//
//	src := simulate.NewSource(simulate.DefaultSourceConfig(), 0)
//	frame := src.NextFrame()
//	err = player.SubmitDecodedPicture(ctx, frame.PTS, frame.Planes)
//
//	for _, p := range renderer.Log() {
//	    fmt.Println(p.PTS, p.Subpictures)
//	}
//
// # Thread Safety
//
// Renderer and Sink are safe for concurrent use. Source is not.
package simulate
