package flowgraph

import (
	"context"
	"fmt"
)

// Kernel is the processing logic of a block. Work is called repeatedly
// by the runtime while the block has input, output space, messages, or
// asked to be called again. It reports progress through io.
type Kernel interface {
	Work(ctx context.Context, io *WorkIO) error
}

// Initializer is implemented by kernels that reset state before each run.
type Initializer interface {
	Init(ctx context.Context) error
}

// Deinitializer is implemented by kernels that need a hook once the
// block finished.
type Deinitializer interface {
	Deinit(ctx context.Context) error
}

// BlockID identifies a block inside one Flowgraph.
type BlockID int

// Block couples a kernel with its declared ports.
type Block struct {
	id       BlockID
	typeName string
	kernel   Kernel

	streamInputs   []string
	streamOutputs  []string
	messageInputs  []string
	messageOutputs []string

	// messages posted before a run, per message input
	pending [][]Message
}

// BlockOption declares ports on a block.
type BlockOption func(*Block)

// WithStreamInput declares a stream input port.
func WithStreamInput(name string) BlockOption {
	return func(b *Block) { b.streamInputs = append(b.streamInputs, name) }
}

// WithStreamOutput declares a stream output port.
func WithStreamOutput(name string) BlockOption {
	return func(b *Block) { b.streamOutputs = append(b.streamOutputs, name) }
}

// WithMessageInput declares a message input port.
func WithMessageInput(name string) BlockOption {
	return func(b *Block) { b.messageInputs = append(b.messageInputs, name) }
}

// WithMessageOutput declares a message output port.
func WithMessageOutput(name string) BlockOption {
	return func(b *Block) { b.messageOutputs = append(b.messageOutputs, name) }
}

// NewBlock creates a block of the given type name around k.
func NewBlock(typeName string, k Kernel, opts ...BlockOption) *Block {
	b := &Block{
		id:       -1,
		typeName: typeName,
		kernel:   k,
	}

	for _, opt := range opts {
		opt(b)
	}

	b.pending = make([][]Message, len(b.messageInputs))

	return b
}

// TypedBlock keeps the concrete kernel next to its block so callers can
// inspect kernel state after a run.
type TypedBlock[K Kernel] struct {
	*Block
	Kernel K
}

// NewTypedBlock is NewBlock with the concrete kernel retained.
func NewTypedBlock[K Kernel](typeName string, k K, opts ...BlockOption) *TypedBlock[K] {
	return &TypedBlock[K]{Block: NewBlock(typeName, k, opts...), Kernel: k}
}

// ID returns the block id, or -1 before the block is added to a graph.
func (b *Block) ID() BlockID { return b.id }

// TypeName returns the block type, e.g. "CopyRand".
func (b *Block) TypeName() string { return b.typeName }

// Name returns the instance name, e.g. "CopyRand_3".
func (b *Block) Name() string {
	if b.id < 0 {
		return b.typeName
	}

	return fmt.Sprintf("%s_%d", b.typeName, b.id)
}

// Kernel returns the block's kernel.
func (b *Block) Kernel() Kernel { return b.kernel }

// StreamInputs returns the declared stream input names.
func (b *Block) StreamInputs() []string { return b.streamInputs }

// StreamOutputs returns the declared stream output names.
func (b *Block) StreamOutputs() []string { return b.streamOutputs }

// MessageInputs returns the declared message input names.
func (b *Block) MessageInputs() []string { return b.messageInputs }

// MessageOutputs returns the declared message output names.
func (b *Block) MessageOutputs() []string { return b.messageOutputs }

func portIndex(ports []string, name string) (int, bool) {
	for i, p := range ports {
		if p == name {
			return i, true
		}
	}

	return -1, false
}
