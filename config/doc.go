// Package config builds the immutable configuration snapshot of the player.
//
// Every tunable limit that used to be scattered across global constants and
// environment variables is collected once into a Snapshot:
//
//	cfg, err := config.Load("playsync.yaml")
//	if err != nil {
//	    return err
//	}
//	cfg, err = config.FromEnv(cfg, os.LookupEnv)
//
// A Snapshot is a plain value. Components copy it at construction time and
// never write to it, so it needs no synchronization.
//
// # File format
//
//	clock_freq: 1000000
//	input:
//	  pts_delay: 200ms
//	audio:
//	  fifo_size: 511
//	video:
//	  max_pictures: 8
//	  display_delay: 500ms
//	  mwait_tolerance: 20ms
//	decoder:
//	  synchro: IP+
//
// Validation failures wrap ErrInvalidConfig and the underlying
// limits.ErrOutOfRange or limits.ErrNotPowerOfTwo.
package config
