// Package flowgraph is a small dataflow runtime: blocks connected by
// stream edges (float32 items) and message edges, run to completion
// with one goroutine per block.
//
// Stream edges carry owned chunks of items through bounded channels, so
// a kernel only ever touches memory no other goroutine holds. When a
// block finishes, its outputs are closed and its upstream producers are
// told to stop, which lets a bounding stage terminate an infinite source.
package flowgraph

import (
	"fmt"
	"sync"
)

// Edge connects an output port of one block to an input port of another.
type Edge struct {
	Src     BlockID
	SrcPort int
	Dst     BlockID
	DstPort int
}

// Flowgraph is an ordered set of blocks and the edges between them.
type Flowgraph struct {
	mu       sync.Mutex
	running  bool
	blocks   []*Block
	streams  []Edge
	messages []Edge
}

// New returns an empty Flowgraph.
func New() *Flowgraph {
	return &Flowgraph{}
}

// Add registers b with the graph and returns its id. A block belongs to
// exactly one graph.
func (fg *Flowgraph) Add(b *Block) BlockID {
	fg.mu.Lock()
	defer fg.mu.Unlock()

	b.id = BlockID(len(fg.blocks))
	fg.blocks = append(fg.blocks, b)

	return b.id
}

// Len returns the number of blocks.
func (fg *Flowgraph) Len() int {
	fg.mu.Lock()
	defer fg.mu.Unlock()

	return len(fg.blocks)
}

// Blocks returns the blocks in insertion order.
func (fg *Flowgraph) Blocks() []*Block {
	fg.mu.Lock()
	defer fg.mu.Unlock()

	return append([]*Block(nil), fg.blocks...)
}

// Block returns the block with the given id.
func (fg *Flowgraph) Block(id BlockID) (*Block, error) {
	fg.mu.Lock()
	defer fg.mu.Unlock()

	return fg.block(id)
}

func (fg *Flowgraph) block(id BlockID) (*Block, error) {
	if id < 0 || int(id) >= len(fg.blocks) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownBlock, id)
	}

	return fg.blocks[id], nil
}

// StreamEdges returns the stream connections.
func (fg *Flowgraph) StreamEdges() []Edge {
	fg.mu.Lock()
	defer fg.mu.Unlock()

	return append([]Edge(nil), fg.streams...)
}

// MessageEdges returns the message connections.
func (fg *Flowgraph) MessageEdges() []Edge {
	fg.mu.Lock()
	defer fg.mu.Unlock()

	return append([]Edge(nil), fg.messages...)
}

// ConnectStream connects stream output srcPort of src to stream input
// dstPort of dst. Each stream port takes exactly one connection.
func (fg *Flowgraph) ConnectStream(
	src BlockID, srcPort string,
	dst BlockID, dstPort string,
) error {
	fg.mu.Lock()
	defer fg.mu.Unlock()

	if fg.running {
		return ErrRunning
	}

	e, err := fg.resolve(src, srcPort, dst, dstPort, true)
	if err != nil {
		return err
	}

	for _, s := range fg.streams {
		if s.Src == e.Src && s.SrcPort == e.SrcPort {
			return fmt.Errorf("%w: %s.%s",
				ErrAlreadyConnected, fg.blocks[src].Name(), srcPort)
		}
		if s.Dst == e.Dst && s.DstPort == e.DstPort {
			return fmt.Errorf("%w: %s.%s",
				ErrAlreadyConnected, fg.blocks[dst].Name(), dstPort)
		}
	}

	fg.streams = append(fg.streams, e)

	return nil
}

// ConnectMessage connects message output srcPort of src to message input
// dstPort of dst. Message outputs may fan out and inputs may fan in.
func (fg *Flowgraph) ConnectMessage(
	src BlockID, srcPort string,
	dst BlockID, dstPort string,
) error {
	fg.mu.Lock()
	defer fg.mu.Unlock()

	if fg.running {
		return ErrRunning
	}

	e, err := fg.resolve(src, srcPort, dst, dstPort, false)
	if err != nil {
		return err
	}

	fg.messages = append(fg.messages, e)

	return nil
}

func (fg *Flowgraph) resolve(
	src BlockID, srcPort string,
	dst BlockID, dstPort string,
	stream bool,
) (Edge, error) {
	sb, err := fg.block(src)
	if err != nil {
		return Edge{}, err
	}

	db, err := fg.block(dst)
	if err != nil {
		return Edge{}, err
	}

	outs, ins := sb.messageOutputs, db.messageInputs
	if stream {
		outs, ins = sb.streamOutputs, db.streamInputs
	}

	sp, ok := portIndex(outs, srcPort)
	if !ok {
		return Edge{}, fmt.Errorf("%w: %s has no output %q",
			ErrUnknownPort, sb.Name(), srcPort)
	}

	dp, ok := portIndex(ins, dstPort)
	if !ok {
		return Edge{}, fmt.Errorf("%w: %s has no input %q",
			ErrUnknownPort, db.Name(), dstPort)
	}

	return Edge{Src: src, SrcPort: sp, Dst: dst, DstPort: dp}, nil
}

// Post queues m on message input port of block id. Queued messages are
// delivered, in order, at the start of the next run. The queue is
// unbounded.
func (fg *Flowgraph) Post(id BlockID, port string, m Message) error {
	fg.mu.Lock()
	defer fg.mu.Unlock()

	if fg.running {
		return ErrRunning
	}

	b, err := fg.block(id)
	if err != nil {
		return err
	}

	p, ok := portIndex(b.messageInputs, port)
	if !ok {
		return fmt.Errorf("%w: %s has no message input %q",
			ErrUnknownPort, b.Name(), port)
	}

	b.pending[p] = append(b.pending[p], m)

	return nil
}

// Validate checks that every stream port is connected. Message ports may
// be left open: posts to an open output are dropped, and an open input
// only receives what is posted to it directly.
func (fg *Flowgraph) Validate() error {
	fg.mu.Lock()
	defer fg.mu.Unlock()

	return fg.validate()
}

func (fg *Flowgraph) validate() error {
	type port struct {
		block BlockID
		index int
	}

	outs := make(map[port]bool, len(fg.streams))
	ins := make(map[port]bool, len(fg.streams))

	for _, e := range fg.streams {
		outs[port{e.Src, e.SrcPort}] = true
		ins[port{e.Dst, e.DstPort}] = true
	}

	for _, b := range fg.blocks {
		for i, name := range b.streamOutputs {
			if !outs[port{b.id, i}] {
				return fmt.Errorf("%w: %s.%s", ErrUnconnected, b.Name(), name)
			}
		}

		for i, name := range b.streamInputs {
			if !ins[port{b.id, i}] {
				return fmt.Errorf("%w: %s.%s", ErrUnconnected, b.Name(), name)
			}
		}
	}

	return nil
}

// acquire marks the graph running and hands out the pending posts.
func (fg *Flowgraph) acquire() ([][][]Message, error) {
	fg.mu.Lock()
	defer fg.mu.Unlock()

	if fg.running {
		return nil, ErrRunning
	}

	if err := fg.validate(); err != nil {
		return nil, err
	}

	fg.running = true

	pending := make([][][]Message, len(fg.blocks))
	for i, b := range fg.blocks {
		pending[i] = b.pending
		b.pending = make([][]Message, len(b.messageInputs))
	}

	return pending, nil
}

func (fg *Flowgraph) release() {
	fg.mu.Lock()
	fg.running = false
	fg.mu.Unlock()
}
