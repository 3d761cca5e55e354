// Package main provides the CLI entry point for flowbench, a set of
// micro-benchmark harnesses for a block-based dataflow runtime.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/weiihann/flowbench/config"
	"github.com/weiihann/flowbench/flowgraph"
	"github.com/weiihann/flowbench/harness"
	"github.com/weiihann/flowbench/metrics"
)

func main() {
	level := new(slog.LevelVar)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	root := newRootCmd(logger, level)
	if err := root.ExecuteContext(ctx); err != nil {
		logger.Error("flowbench failed", slog.String("error", err.Error()))
		stop()
		os.Exit(1)
	}
}

// app holds the global flags and the state derived from them.
type app struct {
	logger *slog.Logger
	level  *slog.LevelVar

	configPath  string
	logLevel    string
	scheduler   string
	metricsFile string
	seed        int64
	timeout     time.Duration

	cfg     *config.Config
	metrics *metrics.Metrics
}

func newRootCmd(logger *slog.Logger, level *slog.LevelVar) *cobra.Command {
	a := &app{logger: logger, level: level}

	root := &cobra.Command{
		Use:   "flowbench",
		Short: "Dataflow runtime micro-benchmarks",
		Long: `Flowbench builds pipes × stages flowgraphs of pre-built blocks,
times one blocking run of the graph and prints one fixed-width result row
per run on stdout. Logs go to stderr.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.load,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "",
		"Runtime config file (default: "+config.DefaultFile+" if present)")
	flags.StringVar(&a.logLevel, "log-level", "",
		"Log level: debug, info, warn, error (overrides config)")
	flags.StringVar(&a.scheduler, "scheduler", string(flowgraph.SchedulerTPB),
		"Scheduler: tpb (goroutine per block), single (one OS thread)")
	flags.StringVar(&a.metricsFile, "metrics-file", "",
		"Write prometheus metrics to this file after the runs")
	flags.Int64Var(&a.seed, "seed", 0,
		"Random seed for copy sizes and filter taps (0 = fixed default)")
	flags.DurationVar(&a.timeout, "timeout", 0,
		"Abort a run that takes longer than this (0 = wait indefinitely)")

	root.AddCommand(
		newBenchCmd(a, harness.NullRand,
			"Null source, randomized copy stages, null sink"),
		newBenchCmd(a, harness.FIRRand,
			"Randomized copy stages alternating with FIR filters"),
		newBenchCmd(a, harness.NullRandLatency,
			"null-rand with tx/rx trace events for latency measurement"),
		newBenchCmd(a, harness.Msg,
			"Chains of message relays timed per burst"),
		newSweepCmd(a),
		newSummaryCmd(a),
		newLatencyCmd(a),
	)

	root.SetGlobalNormalizationFunc(normalizeFlag)

	return root
}

// normalizeFlag accepts dashed spellings of the underscore flag names.
func normalizeFlag(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	switch name {
	case "max-copy":
		name = "max_copy"
	case "burst-size":
		name = "burst_size"
	}

	return pflag.NormalizedName(name)
}

// load resolves the runtime configuration and the log level.
func (a *app) load(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}

	if f := cmd.Flag("log-level"); f != nil && f.Changed {
		cfg.LogLevel = a.logLevel
	}

	lvl, err := cfg.Level()
	if err != nil {
		return err
	}

	a.level.Set(lvl)
	a.cfg = cfg

	return nil
}

func (a *app) newRunner() (*harness.Runner, error) {
	sched, err := flowgraph.ParseScheduler(a.scheduler)
	if err != nil {
		return nil, err
	}

	a.metrics = metrics.New()

	rt := flowgraph.NewRuntime(
		flowgraph.WithBufferSize(a.cfg.BufferSize),
		flowgraph.WithQueueSize(a.cfg.QueueSize),
		flowgraph.WithScheduler(sched),
		flowgraph.WithLogger(a.logger),
		flowgraph.WithObserver(a.metrics),
	)

	a.logger.Debug("runtime configured",
		slog.String("scheduler", string(sched)),
		slog.Int("buffer_size", a.cfg.BufferSize),
		slog.Int("queue_size", a.cfg.QueueSize),
		slog.Int64("seed", a.seed),
	)

	r := harness.NewRunner(rt, a.logger)
	r.Timeout = a.timeout
	r.Observer = a.metrics

	return r, nil
}

func (a *app) writeMetrics() error {
	if a.metricsFile == "" || a.metrics == nil {
		return nil
	}

	if err := a.metrics.WriteFile(a.metricsFile); err != nil {
		return err
	}

	a.logger.Info("metrics written", slog.String("path", a.metricsFile))

	return nil
}

// closeAll runs every closer and joins their errors.
func closeAll(closers []func() error) error {
	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		errs = append(errs, closers[i]())
	}

	return errors.Join(errs...)
}

func openOutput(path string) (*os.File, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}

	return f, nil
}
