// Package main runs a presentation pipeline fed by a synthetic stream and
// exposes its counters on a Prometheus endpoint.
//
// The video stream can be routed through the RTP input stage, so the reorder
// buffer, timestamp unwrapping and clock resynchronization are exercised the
// way a network source would.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/opd-ai/playsync"
	"github.com/opd-ai/playsync/config"
	"github.com/opd-ai/playsync/metrics"
)

// CLIConfig holds the command-line configuration.
type CLIConfig struct {
	configPath     string
	logLevel       string
	logJSON        bool
	metricsAddr    string
	duration       time.Duration
	reportInterval time.Duration
	rtp            bool
	reorderDepth   int
	decodeTime     time.Duration
	lead           time.Duration
	captions       bool
	help           bool
}

// parseCLIFlags parses command-line flags and returns the configuration.
func parseCLIFlags(args []string) (*CLIConfig, *flag.FlagSet, error) {
	cfg := &CLIConfig{}
	fs := flag.NewFlagSet("playsync", flag.ContinueOnError)

	fs.StringVar(&cfg.configPath, "config", "", "YAML configuration file (default: built-in limits)")
	fs.StringVar(&cfg.logLevel, "log-level", "info", "Log level (trace, debug, info, warn, error)")
	fs.BoolVar(&cfg.logJSON, "log-json", false, "Log in JSON")
	fs.StringVar(&cfg.metricsAddr, "metrics-addr", ":9090", "Prometheus listen address, empty to disable")
	fs.DurationVar(&cfg.duration, "duration", 0, "Stop after this long (0: until interrupted)")
	fs.DurationVar(&cfg.reportInterval, "report-interval", 5*time.Second, "Interval between reports")
	fs.BoolVar(&cfg.rtp, "rtp", false, "Route video through the RTP input stage")
	fs.IntVar(&cfg.reorderDepth, "reorder-depth", 8, "RTP packets held to restore order")
	fs.DurationVar(&cfg.decodeTime, "decode-time", 5*time.Millisecond, "Simulated decoding time per picture")
	fs.DurationVar(&cfg.lead, "lead", 100*time.Millisecond, "How far ahead of the clock decoders run")
	fs.BoolVar(&cfg.captions, "captions", true, "Submit a caption every second")
	fs.BoolVar(&cfg.help, "help", false, "Show help message")

	if err := fs.Parse(args); err != nil {
		return nil, fs, err
	}
	return cfg, fs, nil
}

// validateCLIConfig validates the CLI configuration.
func validateCLIConfig(cfg *CLIConfig) error {
	if _, err := logrus.ParseLevel(cfg.logLevel); err != nil {
		return fmt.Errorf("invalid log level %q", cfg.logLevel)
	}
	if cfg.duration < 0 {
		return fmt.Errorf("duration cannot be negative")
	}
	if cfg.reportInterval <= 0 {
		return fmt.Errorf("report interval must be positive")
	}
	if cfg.reorderDepth < 0 {
		return fmt.Errorf("reorder depth cannot be negative")
	}
	if cfg.decodeTime < 0 || cfg.lead < 0 {
		return fmt.Errorf("decode time and lead cannot be negative")
	}
	return nil
}

// setupLogging configures the global logger.
func setupLogging(cfg *CLIConfig) {
	level, _ := logrus.ParseLevel(cfg.logLevel)
	logrus.SetLevel(level)
	if cfg.logJSON {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}

// loadSnapshot builds the configuration from the file, if any, and the
// PLAYSYNC_* environment.
func loadSnapshot(path string, lookup func(string) (string, bool)) (config.Snapshot, error) {
	base := config.Default()
	if path != "" {
		var err error
		base, err = config.Load(path)
		if err != nil {
			return config.Snapshot{}, err
		}
	}
	return config.FromEnv(base, lookup)
}

func main() {
	cli, fs, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}
	if cli.help {
		fmt.Println("playsync: presentation synchronization demo")
		fmt.Println()
		fmt.Printf("Usage:\n  %s [options]\n\nOptions:\n", os.Args[0])
		fs.SetOutput(os.Stdout)
		fs.PrintDefaults()
		return
	}
	if err := validateCLIConfig(cli); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(2)
	}
	setupLogging(cli)

	if err := run(cli); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "main",
			"error":    err.Error(),
		}).Error("Playback failed")
		os.Exit(1)
	}
}

func run(cli *CLIConfig) error {
	snapshot, err := loadSnapshot(cli.configPath, os.LookupEnv)
	if err != nil {
		return err
	}

	options := playsync.NewOptions()
	options.Config = snapshot
	options.Renderer = &logRenderer{}
	options.Sink = &logSink{}

	player, err := playsync.New(options)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	if cli.duration > 0 {
		ctx, cancel = context.WithTimeout(ctx, cli.duration)
		defer cancel()
	}

	reporter := metrics.NewReporter(player.Report, cli.reportInterval)
	reporter.OnReport(logReport)
	if err := reporter.Start(); err != nil {
		return err
	}
	defer reporter.Stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return player.Run(ctx)
	})

	prod := newProducer(player, cli)
	g.Go(func() error {
		return prod.video(ctx)
	})
	g.Go(func() error {
		return prod.audio(ctx)
	})

	if cli.metricsAddr != "" {
		srv := &http.Server{
			Addr:              cli.metricsAddr,
			Handler:           metricsMux(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logrus.WithFields(logrus.Fields{
				"function": "run",
				"addr":     cli.metricsAddr,
			}).Info("Serving metrics")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	err = g.Wait()
	logReport(reporter.Collect())
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func metricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func logReport(r metrics.Report) {
	logrus.WithFields(logrus.Fields{
		"function":        "report",
		"displayed":       r.Displayed,
		"skipped":         r.Skipped,
		"late":            r.Late,
		"backpressure":    r.Backpressure,
		"dropped_decoded": r.DroppedDecoded,
		"heap":            fmt.Sprintf("%d/%d", r.HeapUsed, r.HeapCapacity),
		"fps":             fmt.Sprintf("%.1f", r.FPS),
		"audio_played":    r.AudioPlayed,
		"underruns":       r.AudioUnderruns,
		"drop_rate":       fmt.Sprintf("%.1f%%", 100*r.DropRate()),
	}).Info("Playback report")
}
