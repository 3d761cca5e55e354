package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/weiihann/flowbench/harness"
	"github.com/weiihann/flowbench/report"
	"github.com/weiihann/flowbench/tracing"
	"github.com/weiihann/flowbench/workload"
)

type sweepConfig struct {
	variant     string
	pipes       []int
	stages      []int
	samples     []string
	maxCopy     []string
	burstSizes  []int
	repetitions int
	runs        int
	shuffle     bool
	planPath    string
	writePlan   string
}

func newSweepCmd(a *app) *cobra.Command {
	var cfg sweepConfig

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run a harness over a grid of configurations",
		Long: `Run the cartesian product of the given pipes, stages, samples,
max_copy and burst sizes, repeated --runs times, printing one row per
run. The plan can be written to a JSONL file instead (--write-plan) and
replayed later (--plan).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.sweep(cmd, cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfg.variant, "variant", string(harness.NullRand),
		"Harness variant to sweep")
	flags.IntSliceVar(&cfg.pipes, "pipes", nil, "Pipe counts (default 5)")
	flags.IntSliceVar(&cfg.stages, "stages", nil, "Stage counts (default 6)")
	flags.StringSliceVar(&cfg.samples, "samples", nil,
		"Sample counts (default 15000000)")
	flags.StringSliceVar(&cfg.maxCopy, "max_copy", nil,
		"Copy bounds (default 0xffffffff)")
	flags.IntSliceVar(&cfg.burstSizes, "burst_size", nil,
		"Burst sizes of the msg harness (default 0)")
	flags.IntVar(&cfg.repetitions, "repetitions", 100,
		"Repetitions per msg configuration")
	flags.IntVar(&cfg.runs, "runs", 1, "Runs per configuration")
	flags.BoolVar(&cfg.shuffle, "shuffle", false,
		"Shuffle the run order (seeded by --seed)")
	flags.StringVar(&cfg.planPath, "plan", "",
		"Replay a JSONL plan instead of generating one")
	flags.StringVar(&cfg.writePlan, "write-plan", "",
		"Write the generated plan to this file and exit")

	cmd.MarkFlagsMutuallyExclusive("plan", "write-plan")

	return cmd
}

func (a *app) sweep(cmd *cobra.Command, cfg sweepConfig) error {
	points, err := a.plan(cfg)
	if err != nil {
		return err
	}

	if cfg.writePlan != "" {
		return nil
	}

	runner, err := a.newRunner()
	if err != nil {
		return err
	}

	src := workload.NewSource(a.seed)
	out := cmd.OutOrStdout()
	emit := func(r harness.Result) error { return report.WriteRow(out, r) }

	a.logger.Info("starting sweep", slog.Int("points", len(points)))

	for i, pt := range points {
		v, err := harness.ParseVariant(pt.Variant)
		if err != nil {
			return fmt.Errorf("point %d: %w", i, err)
		}

		p := harness.DefaultParams(v)
		p.Run = pt.Run
		p.Pipes = pt.Pipes
		p.Stages = pt.Stages

		if v.IsMessage() {
			p.Repetitions = pt.Repetitions
			p.BurstSize = pt.BurstSize
		} else {
			p.Samples = pt.Samples
			p.MaxCopy = pt.MaxCopy
		}

		if err := runner.Execute(cmd.Context(), v, p, src,
			tracing.RuntimeTracer{}, emit); err != nil {
			return fmt.Errorf("point %d: %w", i, err)
		}
	}

	a.logger.Info("sweep complete")

	return a.writeMetrics()
}

// plan reads the plan file, or generates the plan from the flags and
// optionally writes it out.
func (a *app) plan(cfg sweepConfig) ([]workload.Point, error) {
	if cfg.planPath != "" {
		f, err := os.Open(cfg.planPath)
		if err != nil {
			return nil, fmt.Errorf("open plan %s: %w", cfg.planPath, err)
		}
		defer f.Close()

		return workload.ReadPlan(f)
	}

	if _, err := harness.ParseVariant(cfg.variant); err != nil {
		return nil, err
	}

	samples, err := parseCounts(cfg.samples)
	if err != nil {
		return nil, fmt.Errorf("--samples: %w", err)
	}

	maxCopy, err := parseCounts(cfg.maxCopy)
	if err != nil {
		return nil, fmt.Errorf("--max_copy: %w", err)
	}

	gen := workload.NewGenerator(workload.Config{
		Variant:     cfg.variant,
		Pipes:       cfg.pipes,
		Stages:      cfg.stages,
		Samples:     samples,
		MaxCopy:     maxCopy,
		BurstSizes:  cfg.burstSizes,
		Repetitions: cfg.repetitions,
		Runs:        cfg.runs,
		Shuffle:     cfg.shuffle,
		Seed:        a.seed,
	})

	if cfg.writePlan == "" {
		return gen.Points(), nil
	}

	f, err := openOutput(cfg.writePlan)
	if err != nil {
		return nil, err
	}

	summary, err := gen.Generate(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("generate plan: %w", err)
	}

	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close plan file: %w", err)
	}

	a.logger.Info("plan written",
		slog.String("path", cfg.writePlan),
		slog.Int("points", summary.TotalPoints),
		slog.Int("configurations", summary.Configurations),
		slog.Int("runs", summary.Runs),
	)

	return nil, nil
}

// parseCounts parses decimal or 0x-prefixed item counts.
func parseCounts(values []string) ([]uint64, error) {
	counts := make([]uint64, 0, len(values))

	for _, s := range values {
		n, err := strconv.ParseUint(s, 0, 64)
		if err != nil {
			return nil, err
		}

		counts = append(counts, n)
	}

	return counts, nil
}
