package flowgraph

import "context"

// Mocker drives a single block in the calling goroutine, without a
// runtime. It is meant for testing kernels: feed inputs, run, then
// inspect what the kernel produced and posted.
type Mocker struct {
	block   *Block
	io      WorkIO
	outputs [][]float32
	posted  [][]Message
	calls   int
}

// NewMocker prepares b with outputs of chunkSize items per call.
func NewMocker(b *Block, chunkSize int) *Mocker {
	m := &Mocker{
		block:   b,
		outputs: make([][]float32, len(b.streamOutputs)),
		posted:  make([][]Message, len(b.messageOutputs)),
	}

	m.io.inputs = make([]*StreamInput, len(b.streamInputs))
	for i := range m.io.inputs {
		m.io.inputs[i] = &StreamInput{}
	}

	m.io.outputs = make([]*StreamOutput, len(b.streamOutputs))
	for i := range m.io.outputs {
		m.io.outputs[i] = &StreamOutput{buf: make([]float32, 0, chunkSize)}
	}

	m.io.messages = make([][]Message, len(b.messageInputs))
	m.io.post = func(port int, msg Message) error {
		m.posted[port] = append(m.posted[port], msg)
		return nil
	}

	return m
}

// Feed appends items to stream input i.
func (m *Mocker) Feed(i int, items []float32) {
	in := m.io.inputs[i]
	in.buf = append(append([]float32(nil), in.buf[in.off:]...), items...)
	in.off = 0
}

// CloseInput marks stream input i as finished upstream.
func (m *Mocker) CloseInput(i int) {
	m.io.inputs[i].closed = true
}

// Deliver queues messages on message input i for the next call.
func (m *Mocker) Deliver(i int, msgs ...Message) {
	m.io.messages[i] = append(m.io.messages[i], msgs...)
}

// Init calls the kernel's Init hook, if any.
func (m *Mocker) Init(ctx context.Context) error {
	if k, ok := m.block.kernel.(Initializer); ok {
		return k.Init(ctx)
	}

	return nil
}

// Run calls Work until the kernel finishes or stops making progress.
// Kernels that never finish, such as sources, are driven with Step.
func (m *Mocker) Run(ctx context.Context) error {
	for !m.io.Finished {
		progressed, err := m.Step(ctx)
		if err != nil {
			return err
		}

		if !progressed {
			return nil
		}
	}

	return nil
}

// Step makes one Work call and reports whether the kernel consumed,
// produced or posted anything, or asked to be called again.
func (m *Mocker) Step(ctx context.Context) (bool, error) {
	before := m.progress()

	m.io.CallAgain = false
	if err := m.block.kernel.Work(ctx, &m.io); err != nil {
		return false, err
	}

	m.calls++

	for i := range m.io.messages {
		m.io.messages[i] = m.io.messages[i][:0]
	}

	produced := false
	for i, out := range m.io.outputs {
		if len(out.buf) > 0 {
			m.outputs[i] = append(m.outputs[i], out.buf...)
			out.buf = out.buf[:0]
			produced = true
		}
	}

	return produced || m.io.CallAgain || m.progress() != before, nil
}

func (m *Mocker) progress() int {
	n := 0
	for _, in := range m.io.inputs {
		n += in.off
	}

	for _, p := range m.posted {
		n += len(p)
	}

	return n
}

// Output returns everything produced on stream output i so far.
func (m *Mocker) Output(i int) []float32 { return m.outputs[i] }

// Posted returns everything posted on message output i so far.
func (m *Mocker) Posted(i int) []Message { return m.posted[i] }

// Finished reports whether the kernel set Finished.
func (m *Mocker) Finished() bool { return m.io.Finished }

// WorkCalls returns the number of Work calls made.
func (m *Mocker) WorkCalls() int { return m.calls }
