package blocks

import (
	"context"

	"github.com/weiihann/flowbench/flowgraph"
)

// MessageForward relays every message from "in" to "out". On the done
// message it forwards it and finishes, so done travels down a relay
// chain and shuts every relay.
type MessageForward struct {
	forwarded uint64
}

// NewMessageForward creates a MessageForward block.
func NewMessageForward() *flowgraph.TypedBlock[*MessageForward] {
	return flowgraph.NewTypedBlock("MessageForward", &MessageForward{},
		flowgraph.WithMessageInput("in"),
		flowgraph.WithMessageOutput("out"))
}

// Init implements flowgraph.Initializer.
func (f *MessageForward) Init(context.Context) error {
	f.forwarded = 0
	return nil
}

// Work implements flowgraph.Kernel.
func (f *MessageForward) Work(_ context.Context, io *flowgraph.WorkIO) error {
	for _, m := range io.Messages(0) {
		if err := io.Post(0, m); err != nil {
			return err
		}

		if m.IsDone() {
			io.Finished = true
			return nil
		}

		f.forwarded++
	}

	return nil
}

// Forwarded returns the number of data messages relayed in the last run.
func (f *MessageForward) Forwarded() uint64 { return f.forwarded }

// MessageSink counts data messages and finishes on done.
type MessageSink struct {
	received uint64
}

// NewMessageSink creates a MessageSink block with input "in".
func NewMessageSink() *flowgraph.TypedBlock[*MessageSink] {
	return flowgraph.NewTypedBlock("MessageSink", &MessageSink{},
		flowgraph.WithMessageInput("in"))
}

// Init implements flowgraph.Initializer.
func (s *MessageSink) Init(context.Context) error {
	s.received = 0
	return nil
}

// Work implements flowgraph.Kernel.
func (s *MessageSink) Work(_ context.Context, io *flowgraph.WorkIO) error {
	for _, m := range io.Messages(0) {
		if m.IsDone() {
			io.Finished = true
			return nil
		}

		s.received++
	}

	return nil
}

// Received returns the number of data messages received in the last run.
func (s *MessageSink) Received() uint64 { return s.received }
