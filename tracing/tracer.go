package tracing

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"runtime/trace"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event names.
const (
	EventTx = "tx"
	EventRx = "rx"
)

// Event is one trace point. Time is the offset from the tracer's start.
type Event struct {
	Session string        `json:"session,omitempty"`
	Name    string        `json:"event"`
	Block   uint64        `json:"block"`
	Bucket  uint64        `json:"bucket"`
	Time    time.Duration `json:"time_ns"`
}

// Tracer receives trace events. Implementations are safe for concurrent
// use and must not block for long: events are emitted from work calls.
type Tracer interface {
	Trace(name string, block, bucket uint64)
}

// Discard drops every event.
var Discard Tracer = discard{}

type discard struct{}

func (discard) Trace(string, uint64, uint64) {}

// RuntimeTracer logs events into the Go execution tracer, where they show
// up as user log entries in `go tool trace`. It costs nothing while no
// trace is being collected.
type RuntimeTracer struct{}

// Trace implements Tracer.
func (RuntimeTracer) Trace(name string, block, bucket uint64) {
	if !trace.IsEnabled() {
		return
	}

	trace.Log(context.Background(), "flowbench/"+name,
		fmt.Sprintf("block=%d bucket=%d", block, bucket))
}

// Recorder keeps events in memory.
type Recorder struct {
	mu     sync.Mutex
	start  time.Time
	events []Event
}

// NewRecorder returns an empty Recorder whose clock starts now.
func NewRecorder() *Recorder {
	return &Recorder{start: time.Now()}
}

// Trace implements Tracer.
func (r *Recorder) Trace(name string, block, bucket uint64) {
	now := time.Since(r.start)

	r.mu.Lock()
	r.events = append(r.events, Event{Name: name, Block: block, Bucket: bucket, Time: now})
	r.mu.Unlock()
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]Event(nil), r.events...)
}

// JSONLTracer writes one JSON object per event. Every event carries the
// tracer's session id so traces of several runs can be concatenated.
type JSONLTracer struct {
	mu      sync.Mutex
	w       *bufio.Writer
	enc     *json.Encoder
	session string
	start   time.Time
	err     error
}

// NewJSONLTracer returns a tracer writing to w.
func NewJSONLTracer(w io.Writer) *JSONLTracer {
	bw := bufio.NewWriter(w)

	return &JSONLTracer{
		w:       bw,
		enc:     json.NewEncoder(bw),
		session: uuid.NewString(),
		start:   time.Now(),
	}
}

// Session returns the session id.
func (t *JSONLTracer) Session() string { return t.session }

// Trace implements Tracer. The first write error is kept and returned
// by Flush; later events are dropped.
func (t *JSONLTracer) Trace(name string, block, bucket uint64) {
	now := time.Since(t.start)

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.err != nil {
		return
	}

	t.err = t.enc.Encode(Event{
		Session: t.session,
		Name:    name,
		Block:   block,
		Bucket:  bucket,
		Time:    now,
	})
}

// Flush writes buffered events.
func (t *JSONLTracer) Flush() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.err != nil {
		return fmt.Errorf("write trace event: %w", t.err)
	}

	return t.w.Flush()
}

// Multi fans events out to several tracers.
func Multi(tracers ...Tracer) Tracer {
	return multi(tracers)
}

type multi []Tracer

func (m multi) Trace(name string, block, bucket uint64) {
	for _, t := range m {
		t.Trace(name, block, bucket)
	}
}
