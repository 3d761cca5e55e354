package main

import (
	"errors"
	"fmt"
	"runtime/trace"

	"github.com/spf13/cobra"

	"github.com/weiihann/flowbench/harness"
	"github.com/weiihann/flowbench/report"
	"github.com/weiihann/flowbench/tracing"
	"github.com/weiihann/flowbench/workload"
)

// latencyFlags select where null-rand-latency sends its trace events.
type latencyFlags struct {
	traceFile     string
	goTrace       string
	everyCrossing bool
}

func newBenchCmd(a *app, v harness.Variant, short string) *cobra.Command {
	p := harness.DefaultParams(v)

	var lat latencyFlags

	cmd := &cobra.Command{
		Use:   string(v),
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.bench(cmd, v, p, lat)
		},
	}

	flags := cmd.Flags()
	flags.IntVarP(&p.Run, "run", "r", p.Run,
		"Run index, echoed in the result row")
	flags.IntVarP(&p.Pipes, "pipes", "p", p.Pipes,
		"Number of independent parallel chains")
	flags.IntVarP(&p.Stages, "stages", "s", p.Stages,
		"Processing stages per chain")

	if v.IsMessage() {
		flags.IntVarP(&p.Repetitions, "repetitions", "R", p.Repetitions,
			"Timed repetitions, one row each")
		flags.IntVarP(&p.BurstSize, "burst_size", "b", p.BurstSize,
			"Data messages posted to each chain head per repetition")

		return cmd
	}

	flags.Uint64VarP(&p.Samples, "samples", "n", p.Samples,
		"Items every chain carries from source to sink")
	flags.Uint64VarP(&p.MaxCopy, "max_copy", "m", p.MaxCopy,
		"Upper bound on items a copy stage moves per work call")

	switch v {
	case harness.FIRRand:
		flags.IntVar(&p.Taps, "taps", p.Taps, "FIR filter length")
	case harness.NullRandLatency:
		flags.Uint64Var(&p.Granularity, "granularity", p.Granularity,
			"Items between trace events")
		flags.BoolVar(&lat.everyCrossing, "every-crossing", false,
			"Emit one event per crossed boundary instead of one per work call")
		flags.StringVar(&lat.traceFile, "trace-file", "",
			"Write tx/rx events as JSON lines to this file")
		flags.StringVar(&lat.goTrace, "go-trace", "",
			"Write a runtime execution trace (go tool trace) to this file")
	}

	return cmd
}

func (a *app) bench(
	cmd *cobra.Command,
	v harness.Variant,
	p harness.Params,
	lat latencyFlags,
) (err error) {
	runner, err := a.newRunner()
	if err != nil {
		return err
	}

	tracer := tracing.Discard

	if v == harness.NullRandLatency {
		if lat.everyCrossing {
			p.Policy = tracing.PolicyEveryCrossing
		}

		t, closers, openErr := lat.open()
		if openErr != nil {
			return openErr
		}
		defer func() {
			err = errors.Join(err, closeAll(closers))
		}()

		tracer = t
	}

	out := cmd.OutOrStdout()

	if err := runner.Execute(cmd.Context(), v, p, workload.NewSource(a.seed), tracer,
		func(r harness.Result) error {
			return report.WriteRow(out, r)
		}); err != nil {
		return err
	}

	return a.writeMetrics()
}

// open builds the tracer for a latency run and the functions that flush
// and close its outputs.
func (l latencyFlags) open() (tracing.Tracer, []func() error, error) {
	tracers := []tracing.Tracer{tracing.RuntimeTracer{}}

	var closers []func() error

	if l.goTrace != "" {
		f, err := openOutput(l.goTrace)
		if err != nil {
			return nil, nil, err
		}

		if err := trace.Start(f); err != nil {
			f.Close()
			return nil, nil, fmt.Errorf("start runtime trace: %w", err)
		}

		closers = append(closers, func() error {
			trace.Stop()
			return f.Close()
		})
	}

	if l.traceFile != "" {
		f, err := openOutput(l.traceFile)
		if err != nil {
			closeAll(closers)
			return nil, nil, err
		}

		jt := tracing.NewJSONLTracer(f)
		tracers = append(tracers, jt)

		closers = append(closers, func() error {
			if err := jt.Flush(); err != nil {
				f.Close()
				return err
			}

			return f.Close()
		})
	}

	return tracing.Multi(tracers...), closers, nil
}
