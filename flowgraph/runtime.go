package flowgraph

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Observer receives throughput counts from running blocks.
type Observer interface {
	Block(name string) BlockObserver
}

// BlockObserver counts what one block emits.
type BlockObserver interface {
	Items(n int)
	Messages(n int)
}

type nopObserver struct{}

func (nopObserver) Block(string) BlockObserver { return nopObserver{} }
func (nopObserver) Items(int)                  {}
func (nopObserver) Messages(int)               {}

// Runtime runs flowgraphs to completion.
type Runtime struct {
	bufferSize int
	queueSize  int
	scheduler  Scheduler
	logger     *slog.Logger
	observer   Observer
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithBufferSize sets the maximum number of items per stream chunk.
func WithBufferSize(n int) Option {
	return func(rt *Runtime) { rt.bufferSize = n }
}

// WithQueueSize sets how many chunks or messages an edge holds before
// the sender blocks.
func WithQueueSize(n int) Option {
	return func(rt *Runtime) { rt.queueSize = n }
}

// WithScheduler selects the scheduler.
func WithScheduler(s Scheduler) Option {
	return func(rt *Runtime) { rt.scheduler = s }
}

// WithLogger sets the logger used for block lifecycle events.
func WithLogger(l *slog.Logger) Option {
	return func(rt *Runtime) { rt.logger = l }
}

// WithObserver installs a throughput observer.
func WithObserver(o Observer) Option {
	return func(rt *Runtime) { rt.observer = o }
}

// NewRuntime returns a Runtime with the given options applied over the
// defaults (8192-item chunks, 64-deep queues, thread-per-block).
func NewRuntime(opts ...Option) *Runtime {
	rt := &Runtime{
		bufferSize: 8192,
		queueSize:  64,
		scheduler:  SchedulerTPB,
		logger:     slog.New(slog.DiscardHandler),
		observer:   nopObserver{},
	}

	for _, opt := range opts {
		opt(rt)
	}

	if rt.bufferSize <= 0 {
		rt.bufferSize = 1
	}

	if rt.queueSize <= 0 {
		rt.queueSize = 1
	}

	return rt
}

// Scheduler returns the configured scheduler.
func (rt *Runtime) Scheduler() Scheduler { return rt.scheduler }

// Run starts fg and blocks until every block finished or ctx ends.
func (rt *Runtime) Run(ctx context.Context, fg *Flowgraph) error {
	h, err := rt.Start(ctx, fg)
	if err != nil {
		return err
	}

	return h.Wait()
}

// Start launches fg and returns immediately. Messages posted to fg
// before Start are delivered first.
func (rt *Runtime) Start(ctx context.Context, fg *Flowgraph) (*Handle, error) {
	pending, err := fg.acquire()
	if err != nil {
		return nil, err
	}

	runs := rt.wire(fg, pending)

	runCtx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(runCtx)
	restore := rt.scheduler.apply()

	for _, br := range runs {
		g.Go(func() error { return br.run(gctx) })
	}

	h := &Handle{cancel: cancel, done: make(chan struct{})}

	go func() {
		err := g.Wait()

		restore()
		cancel()
		fg.release()

		h.err = err
		close(h.done)
	}()

	return h, nil
}

func (rt *Runtime) wire(fg *Flowgraph, pending [][][]Message) []*blockRun {
	blocks := fg.Blocks()
	runs := make([]*blockRun, len(blocks))

	for i, b := range blocks {
		br := &blockRun{
			block:     b,
			kernel:    b.kernel,
			pending:   pending[i],
			inboxes:   make([]*messageInbox, len(b.messageInputs)),
			msgOut:    make([][]*messageInbox, len(b.messageOutputs)),
			queueSize: rt.queueSize,
			obs:       rt.observer.Block(b.Name()),
			logger:    rt.logger.With(slog.String("block", b.Name())),
		}

		br.io.inputs = make([]*StreamInput, len(b.streamInputs))
		br.io.outputs = make([]*StreamOutput, len(b.streamOutputs))
		br.io.messages = make([][]Message, len(b.messageInputs))

		for j := range br.inboxes {
			br.inboxes[j] = newMessageInbox(rt.queueSize)
		}

		runs[i] = br
	}

	for _, e := range fg.StreamEdges() {
		edge := newStreamEdge(rt.bufferSize, rt.queueSize)
		runs[e.Src].io.outputs[e.SrcPort] = &StreamOutput{edge: edge, buf: edge.take()}
		runs[e.Dst].io.inputs[e.DstPort] = &StreamInput{edge: edge}
	}

	for _, e := range fg.MessageEdges() {
		src := runs[e.Src]
		src.msgOut[e.SrcPort] = append(src.msgOut[e.SrcPort], runs[e.Dst].inboxes[e.DstPort])
	}

	return runs
}

// Handle tracks a started run.
type Handle struct {
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Done is closed once the run ended.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the run ended and returns its error.
func (h *Handle) Wait() error {
	<-h.done
	return h.err
}

// WaitTimeout is Wait with a deadline. When d elapses first the run is
// stopped and an error wrapping context.DeadlineExceeded is returned.
func (h *Handle) WaitTimeout(d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-h.done:
		return h.err
	case <-timer.C:
		h.Stop()
		<-h.done

		return fmt.Errorf("flowgraph did not finish within %s: %w",
			d, context.DeadlineExceeded)
	}
}

// Stop cancels the run. Blocks return at their next blocking point.
func (h *Handle) Stop() { h.cancel() }
