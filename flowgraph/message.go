package flowgraph

import "fmt"

// MessageKind distinguishes payload messages from control messages.
type MessageKind uint8

const (
	// Data is a payload message.
	Data MessageKind = iota
	// Done asks the receiving block to finish. Relays forward it before
	// finishing so it travels to the end of a chain.
	Done
)

// Message is the unit carried on message ports.
type Message struct {
	Kind  MessageKind
	Value any
}

// F64 returns a data message carrying v.
func F64(v float64) Message {
	return Message{Kind: Data, Value: v}
}

// DoneMessage returns the termination control message.
func DoneMessage() Message {
	return Message{Kind: Done, Value: int64(1)}
}

// IsDone reports whether m is the termination control message.
func (m Message) IsDone() bool {
	return m.Kind == Done
}

func (m Message) String() string {
	if m.Kind == Done {
		return "done"
	}

	return fmt.Sprintf("%v", m.Value)
}
