package flowgraph

import (
	"context"
	"sync"
)

// streamEdge carries chunks from one producer to one consumer. Chunk
// ownership moves with the channel send; spent chunks travel back on
// free for reuse.
type streamEdge struct {
	ch       chan []float32
	free     chan []float32
	stop     chan struct{}
	stopOnce sync.Once
	size     int
}

func newStreamEdge(bufferSize, queueSize int) *streamEdge {
	return &streamEdge{
		ch:   make(chan []float32, queueSize),
		free: make(chan []float32, queueSize+2),
		stop: make(chan struct{}),
		size: bufferSize,
	}
}

func (e *streamEdge) take() []float32 {
	select {
	case c := <-e.free:
		return c[:0]
	default:
		return make([]float32, 0, e.size)
	}
}

func (e *streamEdge) recycle(c []float32) {
	if cap(c) != e.size {
		return
	}

	select {
	case e.free <- c:
	default:
	}
}

// halt tells the producer that nobody reads this edge anymore.
func (e *streamEdge) halt() {
	e.stopOnce.Do(func() { close(e.stop) })
}

// messageInbox is the per-run queue of one message input.
type messageInbox struct {
	ch       chan Message
	stop     chan struct{}
	stopOnce sync.Once
}

func newMessageInbox(queueSize int) *messageInbox {
	return &messageInbox{
		ch:   make(chan Message, queueSize),
		stop: make(chan struct{}),
	}
}

func (m *messageInbox) halt() {
	m.stopOnce.Do(func() { close(m.stop) })
}

// deliver blocks until the inbox accepts msg. Messages to a finished
// block are dropped.
func (m *messageInbox) deliver(ctx context.Context, msg Message) error {
	select {
	case m.ch <- msg:
		return nil
	case <-m.stop:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
