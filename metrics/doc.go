// Package metrics exposes the counters and gauges of the presentation core
// to Prometheus and produces periodic summary reports.
//
// The collectors are registered with the default Prometheus registry, so a
// binary only needs to serve promhttp.Handler(). The Record and Set helpers
// are called by the outputs and the input adapters; Reporter samples a
// player-wide Report on a fixed interval.
package metrics
