package harness

import (
	"fmt"

	"github.com/weiihann/flowbench/blocks"
	"github.com/weiihann/flowbench/flowgraph"
	"github.com/weiihann/flowbench/tracing"
	"github.com/weiihann/flowbench/workload"
)

// Chain is one pipe of a built graph.
type Chain struct {
	// Source is the producing block: the null or latency source of a data
	// pipe, the head relay of a message pipe.
	Source flowgraph.BlockID
	// Head is the bounding stage of a data pipe. Posts of the message
	// harness go to Head, which equals Source there.
	Head flowgraph.BlockID
	// Stages holds the blocks of each processing stage, in order.
	Stages [][]flowgraph.BlockID
	Sink   flowgraph.BlockID
}

// Graph is a built harness flowgraph together with what the runner needs
// to drive and check it.
type Graph struct {
	Variant   Variant
	Flowgraph *flowgraph.Flowgraph
	Chains    []Chain

	// Expected is the item (or message) count every sink must see.
	Expected uint64

	received []func() uint64
}

// Verify checks every sink against Expected.
func (g *Graph) Verify() error {
	for i, received := range g.received {
		if got := received(); got != g.Expected {
			return fmt.Errorf("pipe %d: sink received %d, want %d",
				i, got, g.Expected)
		}
	}

	return nil
}

// Build dispatches to the builder of variant v. tracer is only used by
// NullRandLatency and may be nil otherwise.
func Build(
	v Variant,
	p Params,
	src *workload.Source,
	tracer tracing.Tracer,
) (*Graph, error) {
	switch v {
	case NullRand:
		return BuildNullRand(p, src)
	case FIRRand:
		return BuildFIRRand(p, src)
	case NullRandLatency:
		return BuildNullRandLatency(p, src, tracer)
	case Msg:
		return BuildMsg(p)
	default:
		return nil, fmt.Errorf("build: unknown variant %q", v)
	}
}

// BuildNullRand builds Pipes chains of
// NullSource → Head(Samples) → CopyRand × Stages → NullSink.
func BuildNullRand(p Params, src *workload.Source) (*Graph, error) {
	src = orDefaultSource(src)

	g := newGraph(NullRand, p.Samples)

	for range max(p.Pipes, 0) {
		source := g.Flowgraph.Add(blocks.NewNullSource().Block)

		sink := blocks.NewNullSink()
		g.received = append(g.received, sink.Kernel.Received)

		if err := g.chain(source, p, sink.Block, copyStage(p, src)); err != nil {
			return nil, err
		}
	}

	return g, nil
}

// BuildFIRRand builds Pipes chains of
// NullSource → Head(Samples) → (CopyRand → FIR) × Stages → NullSink.
// Every FIR shares one set of Taps random taps, so each stage drops
// Taps-1 items and a sink expects Samples - Stages*(Taps-1).
func BuildFIRRand(p Params, src *workload.Source) (*Graph, error) {
	src = orDefaultSource(src)

	ntaps := p.Taps
	if ntaps <= 0 {
		ntaps = DefaultTaps
	}

	taps := src.Taps(ntaps)

	lost := uint64(max(p.Stages, 0)) * uint64(ntaps-1)
	expected := uint64(0)
	if p.Samples > lost {
		expected = p.Samples - lost
	}

	g := newGraph(FIRRand, expected)

	for range max(p.Pipes, 0) {
		source := g.Flowgraph.Add(blocks.NewNullSource().Block)

		sink := blocks.NewNullSink()
		g.received = append(g.received, sink.Kernel.Received)

		err := g.chain(source, p, sink.Block, func() ([]*flowgraph.Block, error) {
			fir, err := blocks.NewFIR(taps)
			if err != nil {
				return nil, fmt.Errorf("build fir stage: %w", err)
			}

			return []*flowgraph.Block{
				blocks.NewCopyRand(p.MaxCopy, src.Rand()).Block,
				fir.Block,
			}, nil
		})
		if err != nil {
			return nil, err
		}
	}

	return g, nil
}

// BuildNullRandLatency is BuildNullRand with a LatencySource and a
// LatencySink per pipe, both tagged with the pipe index.
func BuildNullRandLatency(
	p Params,
	src *workload.Source,
	tracer tracing.Tracer,
) (*Graph, error) {
	src = orDefaultSource(src)

	if tracer == nil {
		tracer = tracing.Discard
	}

	granularity := p.Granularity
	if granularity == 0 {
		granularity = tracing.DefaultGranularity
	}

	g := newGraph(NullRandLatency, p.Samples)

	for pipe := range max(p.Pipes, 0) {
		id := uint64(pipe)
		source := g.Flowgraph.Add(
			blocks.NewLatencySource(id, granularity, p.Policy, tracer).Block)

		sink := blocks.NewLatencySink(id, granularity, p.Policy, tracer)
		g.received = append(g.received, sink.Kernel.Received)

		if err := g.chain(source, p, sink.Block, copyStage(p, src)); err != nil {
			return nil, err
		}
	}

	return g, nil
}

// BuildMsg builds Pipes chains of a head relay, Stages relays and a
// message sink, connected "out" → "in". Chain heads receive the posted
// bursts; each sink expects BurstSize data messages per run.
func BuildMsg(p Params) (*Graph, error) {
	g := newGraph(Msg, uint64(max(p.BurstSize, 0)))

	for range max(p.Pipes, 0) {
		head := g.Flowgraph.Add(blocks.NewMessageForward().Block)
		chain := Chain{Source: head, Head: head}

		prev := head
		for range max(p.Stages, 0) {
			relay := g.Flowgraph.Add(blocks.NewMessageForward().Block)
			if err := g.Flowgraph.ConnectMessage(prev, "out", relay, "in"); err != nil {
				return nil, fmt.Errorf("connect relay: %w", err)
			}

			chain.Stages = append(chain.Stages, []flowgraph.BlockID{relay})
			prev = relay
		}

		sink := blocks.NewMessageSink()
		chain.Sink = g.Flowgraph.Add(sink.Block)
		g.received = append(g.received, sink.Kernel.Received)

		if err := g.Flowgraph.ConnectMessage(prev, "out", chain.Sink, "in"); err != nil {
			return nil, fmt.Errorf("connect sink: %w", err)
		}

		g.Chains = append(g.Chains, chain)
	}

	return g, nil
}

func newGraph(v Variant, expected uint64) *Graph {
	return &Graph{
		Variant:   v,
		Flowgraph: flowgraph.New(),
		Expected:  expected,
	}
}

// chain adds source → Head(Samples) → stage × Stages → sink, where stage
// returns the blocks of one processing stage, connected in order.
func (g *Graph) chain(
	source flowgraph.BlockID,
	p Params,
	sink *flowgraph.Block,
	stage func() ([]*flowgraph.Block, error),
) error {
	fg := g.Flowgraph
	head := fg.Add(blocks.NewHead(p.Samples).Block)

	if err := connect(fg, source, head); err != nil {
		return err
	}

	chain := Chain{Source: source, Head: head}
	prev := head

	for range max(p.Stages, 0) {
		bs, err := stage()
		if err != nil {
			return err
		}

		ids := make([]flowgraph.BlockID, len(bs))
		for i, b := range bs {
			ids[i] = fg.Add(b)
			if err := connect(fg, prev, ids[i]); err != nil {
				return err
			}
			prev = ids[i]
		}

		chain.Stages = append(chain.Stages, ids)
	}

	chain.Sink = fg.Add(sink)
	if err := connect(fg, prev, chain.Sink); err != nil {
		return err
	}

	g.Chains = append(g.Chains, chain)

	return nil
}

func orDefaultSource(src *workload.Source) *workload.Source {
	if src == nil {
		return workload.NewSource(workload.DefaultSeed)
	}

	return src
}

func copyStage(p Params, src *workload.Source) func() ([]*flowgraph.Block, error) {
	return func() ([]*flowgraph.Block, error) {
		return []*flowgraph.Block{
			blocks.NewCopyRand(p.MaxCopy, src.Rand()).Block,
		}, nil
	}
}

func connect(fg *flowgraph.Flowgraph, src, dst flowgraph.BlockID) error {
	if err := fg.ConnectStream(src, "out", dst, "in"); err != nil {
		return fmt.Errorf("connect stream: %w", err)
	}

	return nil
}
