// Package blocks holds the pre-built blocks the benchmark harnesses
// compose: bounded and unbounded sources, a randomized copy stage, a FIR
// filter, discarding sinks, latency-instrumented source and sink, and
// message relays.
package blocks

import (
	"context"
	mrand "math/rand"

	"github.com/weiihann/flowbench/flowgraph"
)

// NullSource produces zeros until its consumer finishes.
type NullSource struct{}

// NewNullSource creates a NullSource block with output "out".
func NewNullSource() *flowgraph.TypedBlock[*NullSource] {
	return flowgraph.NewTypedBlock("NullSource", &NullSource{},
		flowgraph.WithStreamOutput("out"))
}

// Work implements flowgraph.Kernel.
func (*NullSource) Work(_ context.Context, io *flowgraph.WorkIO) error {
	out := io.Output(0)
	o := out.Slice()
	clear(o)
	out.Produce(len(o))

	return nil
}

// Head forwards exactly N items, then finishes. It is the bounding stage
// that ends an otherwise infinite chain.
type Head struct {
	n         uint64
	remaining uint64
}

// NewHead creates a Head block forwarding n items from "in" to "out".
func NewHead(n uint64) *flowgraph.TypedBlock[*Head] {
	return flowgraph.NewTypedBlock("Head", &Head{n: n, remaining: n},
		flowgraph.WithStreamInput("in"),
		flowgraph.WithStreamOutput("out"))
}

// Init implements flowgraph.Initializer.
func (h *Head) Init(context.Context) error {
	h.remaining = h.n
	return nil
}

// Work implements flowgraph.Kernel.
func (h *Head) Work(_ context.Context, io *flowgraph.WorkIO) error {
	in, out := io.Input(0), io.Output(0)
	i, o := in.Slice(), out.Slice()

	m := min(h.remaining, uint64(len(i)), uint64(len(o)))
	if m > 0 {
		copy(o[:m], i[:m])
		in.Consume(int(m))
		out.Produce(int(m))
		h.remaining -= m
	}

	if h.remaining == 0 || in.Finished() {
		io.Finished = true
	}

	return nil
}

// Remaining returns how many items Head still has to forward.
func (h *Head) Remaining() uint64 { return h.remaining }

// CopyRand copies a random number of items, between 1 and
// min(maxCopy, available input, available output), per work call. It
// stresses the runtime with irregular transfer sizes.
type CopyRand struct {
	maxCopy uint64
	rng     *mrand.Rand
}

// NewCopyRand creates a CopyRand block. rng is owned by the block.
func NewCopyRand(maxCopy uint64, rng *mrand.Rand) *flowgraph.TypedBlock[*CopyRand] {
	return flowgraph.NewTypedBlock("CopyRand", &CopyRand{maxCopy: maxCopy, rng: rng},
		flowgraph.WithStreamInput("in"),
		flowgraph.WithStreamOutput("out"))
}

// Work implements flowgraph.Kernel.
func (c *CopyRand) Work(_ context.Context, io *flowgraph.WorkIO) error {
	in, out := io.Input(0), io.Output(0)
	i, o := in.Slice(), out.Slice()

	m := int(min(c.maxCopy, uint64(len(i)), uint64(len(o))))
	if m > 0 {
		m = c.rng.Intn(m) + 1
		copy(o[:m], i[:m])
		in.Consume(m)
		out.Produce(m)
		io.CallAgain = true
	}

	if in.Finished() {
		io.Finished = true
	}

	return nil
}

// NullSink discards its input and counts it.
type NullSink struct {
	received uint64
}

// NewNullSink creates a NullSink block with input "in".
func NewNullSink() *flowgraph.TypedBlock[*NullSink] {
	return flowgraph.NewTypedBlock("NullSink", &NullSink{},
		flowgraph.WithStreamInput("in"))
}

// Init implements flowgraph.Initializer.
func (s *NullSink) Init(context.Context) error {
	s.received = 0
	return nil
}

// Work implements flowgraph.Kernel.
func (s *NullSink) Work(_ context.Context, io *flowgraph.WorkIO) error {
	in := io.Input(0)
	n := len(in.Slice())
	in.Consume(n)
	s.received += uint64(n)

	if in.Finished() {
		io.Finished = true
	}

	return nil
}

// Received returns the number of items consumed in the last run.
func (s *NullSink) Received() uint64 { return s.received }

// VectorSink keeps everything it receives. Used to check stage output.
type VectorSink struct {
	items []float32
}

// NewVectorSink creates a VectorSink block with input "in".
func NewVectorSink() *flowgraph.TypedBlock[*VectorSink] {
	return flowgraph.NewTypedBlock("VectorSink", &VectorSink{},
		flowgraph.WithStreamInput("in"))
}

// Init implements flowgraph.Initializer.
func (s *VectorSink) Init(context.Context) error {
	s.items = s.items[:0]
	return nil
}

// Work implements flowgraph.Kernel.
func (s *VectorSink) Work(_ context.Context, io *flowgraph.WorkIO) error {
	in := io.Input(0)
	i := in.Slice()
	s.items = append(s.items, i...)
	in.Consume(len(i))

	if in.Finished() {
		io.Finished = true
	}

	return nil
}

// Items returns the received items.
func (s *VectorSink) Items() []float32 { return s.items }

// VectorSource emits a fixed slice of items, then finishes.
type VectorSource struct {
	items []float32
	off   int
}

// NewVectorSource creates a VectorSource block with output "out".
func NewVectorSource(items []float32) *flowgraph.TypedBlock[*VectorSource] {
	return flowgraph.NewTypedBlock("VectorSource", &VectorSource{items: items},
		flowgraph.WithStreamOutput("out"))
}

// Init implements flowgraph.Initializer.
func (s *VectorSource) Init(context.Context) error {
	s.off = 0
	return nil
}

// Work implements flowgraph.Kernel.
func (s *VectorSource) Work(_ context.Context, io *flowgraph.WorkIO) error {
	out := io.Output(0)
	n := copy(out.Slice(), s.items[s.off:])
	out.Produce(n)
	s.off += n

	if s.off == len(s.items) {
		io.Finished = true
	}

	return nil
}
