// Package harness builds the benchmark flowgraphs (pipes × stages chains)
// and times their execution.
package harness

import (
	"fmt"

	"github.com/weiihann/flowbench/tracing"
)

// Variant names one harness.
type Variant string

const (
	// NullRand chains randomized copy stages between a bounded null
	// source and a null sink.
	NullRand Variant = "null-rand"
	// FIRRand alternates randomized copy stages with FIR filters.
	FIRRand Variant = "fir-rand"
	// NullRandLatency is NullRand with a tracing source and sink.
	NullRandLatency Variant = "null-rand-latency"
	// Msg chains message relays and times bursts of messages.
	Msg Variant = "msg"
)

// Variants returns the supported variant names.
func Variants() []string {
	return []string{
		string(NullRand), string(FIRRand), string(NullRandLatency), string(Msg),
	}
}

// ParseVariant validates a variant name.
func ParseVariant(name string) (Variant, error) {
	for _, v := range Variants() {
		if v == name {
			return Variant(name), nil
		}
	}

	return "", fmt.Errorf("unknown variant %q (want one of %v)", name, Variants())
}

// IsMessage reports whether v runs message relays instead of streams.
func (v Variant) IsMessage() bool { return v == Msg }

// DefaultTaps is the FIR length of the fir-rand harness.
const DefaultTaps = 64

// Params are the read-only run parameters of one harness invocation.
type Params struct {
	Run     int
	Pipes   int
	Stages  int
	Samples uint64
	MaxCopy uint64

	// message harness
	Repetitions int
	BurstSize   int

	// fir-rand
	Taps int

	// null-rand-latency
	Granularity uint64
	Policy      tracing.Policy
}

// DefaultParams returns the defaults of variant v.
func DefaultParams(v Variant) Params {
	p := Params{
		Pipes:       5,
		Stages:      6,
		Samples:     15_000_000,
		MaxCopy:     0xffffffff,
		Taps:        DefaultTaps,
		Granularity: tracing.DefaultGranularity,
		Policy:      tracing.PolicyBoundary,
	}

	switch v {
	case NullRandLatency:
		p.MaxCopy = 512
	case Msg:
		p.Run = 1
		p.Repetitions = 100
	}

	return p
}
