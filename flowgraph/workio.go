package flowgraph

// StreamInput is a block's view of one stream input during Work.
type StreamInput struct {
	buf    []float32
	off    int
	closed bool
	edge   *streamEdge
}

// Slice returns the items available for reading. It may be a prefix of
// what the producer has written so far.
func (in *StreamInput) Slice() []float32 {
	return in.buf[in.off:]
}

// Consume marks the first n items of Slice as read. A slice obtained
// before Consume must not be used after it.
func (in *StreamInput) Consume(n int) {
	if n < 0 || n > len(in.buf)-in.off {
		panic("flowgraph: consume beyond available input")
	}

	in.off += n
	if in.off == len(in.buf) && in.edge != nil {
		in.edge.recycle(in.buf)
		in.buf, in.off = nil, 0
	}
}

// Finished reports that the producer finished and every item it wrote
// is already in Slice.
func (in *StreamInput) Finished() bool {
	return in.closed && in.off == len(in.buf)
}

func (in *StreamInput) receive(chunk []float32, ok bool) {
	if !ok {
		in.closed = true
		return
	}

	in.buf, in.off = chunk, 0
}

// StreamOutput is a block's view of one stream output during Work.
type StreamOutput struct {
	buf  []float32
	edge *streamEdge
	dead bool
}

// Slice returns writable space. Items written there become visible
// downstream once passed to Produce.
func (out *StreamOutput) Slice() []float32 {
	return out.buf[len(out.buf):cap(out.buf)]
}

// Produce commits the first n items of Slice.
func (out *StreamOutput) Produce(n int) {
	if n < 0 || len(out.buf)+n > cap(out.buf) {
		panic("flowgraph: produce beyond available output")
	}

	out.buf = out.buf[:len(out.buf)+n]
}

// WorkIO is passed to Kernel.Work. Kernels set CallAgain when they want
// another call without waiting for new input, and Finished once they are
// done for this run.
type WorkIO struct {
	CallAgain bool
	Finished  bool

	inputs   []*StreamInput
	outputs  []*StreamOutput
	messages [][]Message
	post     func(port int, m Message) error
}

// Input returns stream input i.
func (io *WorkIO) Input(i int) *StreamInput { return io.inputs[i] }

// Output returns stream output i.
func (io *WorkIO) Output(i int) *StreamOutput { return io.outputs[i] }

// NumInputs returns the number of stream inputs.
func (io *WorkIO) NumInputs() int { return len(io.inputs) }

// NumOutputs returns the number of stream outputs.
func (io *WorkIO) NumOutputs() int { return len(io.outputs) }

// Messages returns the messages received on message input i since the
// previous call. They are discarded after Work returns.
func (io *WorkIO) Messages(i int) []Message { return io.messages[i] }

// Post sends m on message output port, blocking while a receiver's
// queue is full.
func (io *WorkIO) Post(port int, m Message) error {
	return io.post(port, m)
}
