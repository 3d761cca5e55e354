package blocks

import (
	"context"

	"github.com/weiihann/flowbench/flowgraph"
	"github.com/weiihann/flowbench/tracing"
)

// LatencySource is a NullSource that fires a tracing.EventTx whenever
// its produced-item counter crosses a multiple of the granularity.
type LatencySource struct {
	id          uint64
	granularity uint64
	policy      tracing.Policy
	tracer      tracing.Tracer
	produced    uint64
}

// NewLatencySource creates a LatencySource block with output "out". id
// tags its events and should match the sink of the same pipe.
func NewLatencySource(
	id, granularity uint64,
	policy tracing.Policy,
	tracer tracing.Tracer,
) *flowgraph.TypedBlock[*LatencySource] {
	return flowgraph.NewTypedBlock("LatencySource", &LatencySource{
		id:          id,
		granularity: granularity,
		policy:      policy,
		tracer:      tracer,
	}, flowgraph.WithStreamOutput("out"))
}

// Init implements flowgraph.Initializer.
func (s *LatencySource) Init(context.Context) error {
	s.produced = 0
	return nil
}

// Work implements flowgraph.Kernel.
func (s *LatencySource) Work(_ context.Context, io *flowgraph.WorkIO) error {
	out := io.Output(0)
	o := out.Slice()
	clear(o)

	before := s.produced
	s.produced += uint64(len(o))
	out.Produce(len(o))

	s.policy.Fire(before, s.produced, s.granularity, func(bucket uint64) {
		s.tracer.Trace(tracing.EventTx, s.id, bucket)
	})

	return nil
}

// Produced returns the number of items produced in the last run.
func (s *LatencySource) Produced() uint64 { return s.produced }

// LatencySink is a NullSink that fires a tracing.EventRx whenever its
// received-item counter crosses a multiple of the granularity.
type LatencySink struct {
	id          uint64
	granularity uint64
	policy      tracing.Policy
	tracer      tracing.Tracer
	received    uint64
}

// NewLatencySink creates a LatencySink block with input "in".
func NewLatencySink(
	id, granularity uint64,
	policy tracing.Policy,
	tracer tracing.Tracer,
) *flowgraph.TypedBlock[*LatencySink] {
	return flowgraph.NewTypedBlock("LatencySink", &LatencySink{
		id:          id,
		granularity: granularity,
		policy:      policy,
		tracer:      tracer,
	}, flowgraph.WithStreamInput("in"))
}

// Init implements flowgraph.Initializer.
func (s *LatencySink) Init(context.Context) error {
	s.received = 0
	return nil
}

// Work implements flowgraph.Kernel.
func (s *LatencySink) Work(_ context.Context, io *flowgraph.WorkIO) error {
	in := io.Input(0)
	n := len(in.Slice())
	in.Consume(n)

	before := s.received
	s.received += uint64(n)

	s.policy.Fire(before, s.received, s.granularity, func(bucket uint64) {
		s.tracer.Trace(tracing.EventRx, s.id, bucket)
	})

	if in.Finished() {
		io.Finished = true
	}

	return nil
}

// Received returns the number of items consumed in the last run.
func (s *LatencySink) Received() uint64 { return s.received }
