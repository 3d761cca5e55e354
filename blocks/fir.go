package blocks

import (
	"context"
	"errors"
	"slices"

	"gonum.org/v1/gonum/blas/blas32"

	"github.com/weiihann/flowbench/flowgraph"
)

// ErrNoTaps is returned when a filter is built without taps.
var ErrNoTaps = errors.New("fir: at least one tap is required")

// FIR is a real-valued FIR filter without padding: the first output is
// emitted once len(taps) inputs have arrived, so a stream of n items
// yields n-len(taps)+1 outputs.
type FIR struct {
	rtaps   []float32 // taps in reverse order
	hist    []float32
	scratch []float32
}

// NewFIR creates a FIR block with input "in" and output "out".
func NewFIR(taps []float32) (*flowgraph.TypedBlock[*FIR], error) {
	if len(taps) == 0 {
		return nil, ErrNoTaps
	}

	rtaps := slices.Clone(taps)
	slices.Reverse(rtaps)

	return flowgraph.NewTypedBlock("Fir", &FIR{rtaps: rtaps},
		flowgraph.WithStreamInput("in"),
		flowgraph.WithStreamOutput("out")), nil
}

// History returns the number of inputs consumed before the first output.
func (f *FIR) History() int { return len(f.rtaps) - 1 }

// Init implements flowgraph.Initializer.
func (f *FIR) Init(context.Context) error {
	f.hist = f.hist[:0]
	return nil
}

// Work implements flowgraph.Kernel.
func (f *FIR) Work(_ context.Context, io *flowgraph.WorkIO) error {
	in, out := io.Input(0), io.Output(0)
	need := f.History()

	if fill := need - len(f.hist); fill > 0 {
		i := in.Slice()
		k := min(fill, len(i))
		f.hist = append(f.hist, i[:k]...)
		in.Consume(k)
	}

	i, o := in.Slice(), out.Slice()

	n := min(len(i), len(o))
	if len(f.hist) == need && n > 0 {
		window := append(f.scratch[:0], f.hist...)
		window = append(window, i[:n]...)

		taps := blas32.Vector{N: len(f.rtaps), Inc: 1, Data: f.rtaps}
		for k := 0; k < n; k++ {
			x := blas32.Vector{N: len(f.rtaps), Inc: 1, Data: window[k : k+len(f.rtaps)]}
			o[k] = blas32.Dot(taps, x)
		}

		f.hist = append(f.hist[:0], window[n:]...)
		f.scratch = window

		in.Consume(n)
		out.Produce(n)
	}

	if in.Finished() {
		io.Finished = true
	}

	return nil
}
