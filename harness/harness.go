package harness

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/weiihann/flowbench/flowgraph"
	"github.com/weiihann/flowbench/tracing"
	"github.com/weiihann/flowbench/workload"
)

// RunObserver is notified of every measured run.
type RunObserver interface {
	ObserveRun(variant string, elapsed time.Duration)
}

// Runner executes built graphs on a flowgraph runtime and times them.
type Runner struct {
	Runtime *flowgraph.Runtime
	Logger  *slog.Logger
	// Timeout bounds each run. Zero waits indefinitely.
	Timeout  time.Duration
	Observer RunObserver
}

// NewRunner creates a Runner on rt.
func NewRunner(rt *flowgraph.Runtime, logger *slog.Logger) *Runner {
	return &Runner{
		Runtime: rt,
		Logger:  logger.With(slog.String("scheduler", string(rt.Scheduler()))),
	}
}

// Run executes a data-flow graph once and returns its timed result. The
// sinks are checked against the expected item count; a mismatch fails the
// run and no result is reported.
func (r *Runner) Run(ctx context.Context, g *Graph, p Params) (Result, error) {
	r.Logger.Info("running flowgraph",
		slog.String("variant", string(g.Variant)),
		slog.Int("run", p.Run),
		slog.Int("pipes", p.Pipes),
		slog.Int("stages", p.Stages),
		slog.Uint64("samples", p.Samples),
		slog.Uint64("max_copy", p.MaxCopy),
	)

	elapsed, err := r.timed(ctx, g)
	if err != nil {
		return Result{}, err
	}

	r.Logger.Info("flowgraph finished", slog.Duration("elapsed", elapsed))

	return Result{
		Variant:   g.Variant,
		Run:       p.Run,
		Pipes:     p.Pipes,
		Stages:    p.Stages,
		Samples:   p.Samples,
		MaxCopy:   p.MaxCopy,
		Scheduler: string(r.Runtime.Scheduler()),
		Elapsed:   elapsed,
	}, nil
}

// RunMsg executes a message graph p.Repetitions times. Before each
// repetition every chain head gets p.BurstSize data messages followed by
// one Done message. emit is called with each repetition's result as soon
// as it is measured.
func (r *Runner) RunMsg(
	ctx context.Context,
	g *Graph,
	p Params,
	emit func(Result) error,
) error {
	r.Logger.Info("running message flowgraph",
		slog.Int("run", p.Run),
		slog.Int("pipes", p.Pipes),
		slog.Int("stages", p.Stages),
		slog.Int("repetitions", p.Repetitions),
		slog.Int("burst_size", p.BurstSize),
	)

	for rep := range max(p.Repetitions, 0) {
		if err := post(g, p.BurstSize); err != nil {
			return err
		}

		elapsed, err := r.timed(ctx, g)
		if err != nil {
			return fmt.Errorf("repetition %d: %w", rep, err)
		}

		r.Logger.Debug("repetition finished",
			slog.Int("repetition", rep),
			slog.Duration("elapsed", elapsed),
		)

		if err := emit(Result{
			Variant:    g.Variant,
			Run:        p.Run,
			Pipes:      p.Pipes,
			Stages:     p.Stages,
			Repetition: rep,
			BurstSize:  p.BurstSize,
			Scheduler:  string(r.Runtime.Scheduler()),
			Elapsed:    elapsed,
		}); err != nil {
			return err
		}
	}

	return nil
}

// Execute builds the graph of variant v, runs it and emits every result.
func (r *Runner) Execute(
	ctx context.Context,
	v Variant,
	p Params,
	src *workload.Source,
	tracer tracing.Tracer,
	emit func(Result) error,
) error {
	g, err := Build(v, p, src, tracer)
	if err != nil {
		return fmt.Errorf("build %s: %w", v, err)
	}

	if v.IsMessage() {
		return r.RunMsg(ctx, g, p, emit)
	}

	res, err := r.Run(ctx, g, p)
	if err != nil {
		return err
	}

	return emit(res)
}

// timed runs g to completion between two monotonic timestamps and
// verifies its sinks.
func (r *Runner) timed(ctx context.Context, g *Graph) (time.Duration, error) {
	start := time.Now()

	if err := r.wait(ctx, g.Flowgraph); err != nil {
		return 0, fmt.Errorf("run %s: %w", g.Variant, err)
	}

	elapsed := time.Since(start)

	if err := g.Verify(); err != nil {
		return 0, fmt.Errorf("verify %s: %w", g.Variant, err)
	}

	if r.Observer != nil {
		r.Observer.ObserveRun(string(g.Variant), elapsed)
	}

	return elapsed, nil
}

func (r *Runner) wait(ctx context.Context, fg *flowgraph.Flowgraph) error {
	if r.Timeout <= 0 {
		return r.Runtime.Run(ctx, fg)
	}

	h, err := r.Runtime.Start(ctx, fg)
	if err != nil {
		return err
	}

	return h.WaitTimeout(r.Timeout)
}

func post(g *Graph, burst int) error {
	for _, c := range g.Chains {
		for i := range max(burst, 0) {
			if err := g.Flowgraph.Post(c.Head, "in", flowgraph.F64(float64(i))); err != nil {
				return fmt.Errorf("post burst: %w", err)
			}
		}

		if err := g.Flowgraph.Post(c.Head, "in", flowgraph.DoneMessage()); err != nil {
			return fmt.Errorf("post done: %w", err)
		}
	}

	return nil
}
