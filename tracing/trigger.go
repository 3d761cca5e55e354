// Package tracing emits coarse-grained latency events from the latency
// harness: a source fires "tx" and a sink fires "rx" whenever their item
// counters cross a multiple of a fixed granularity. Pairing tx and rx
// events for the same pipe and bucket yields end-to-end latency.
package tracing

import "fmt"

// DefaultGranularity is the item interval between trace events.
const DefaultGranularity = 32768

// Policy decides which boundary crossings within one work call fire.
type Policy int

const (
	// PolicyBoundary fires at most one event per work call, tagged with
	// the bucket the counter ends in, whenever the start and end buckets
	// differ. Further boundaries crossed in the same call are not
	// reported.
	PolicyBoundary Policy = iota
	// PolicyEveryCrossing fires one event for every crossed boundary.
	PolicyEveryCrossing
)

// ParsePolicy maps "boundary" and "every" to a Policy.
func ParsePolicy(name string) (Policy, error) {
	switch name {
	case "boundary", "":
		return PolicyBoundary, nil
	case "every":
		return PolicyEveryCrossing, nil
	default:
		return 0, fmt.Errorf("unknown trigger policy %q", name)
	}
}

func (p Policy) String() string {
	if p == PolicyEveryCrossing {
		return "every"
	}

	return "boundary"
}

// Triggered reports whether counters before and after lie in different
// buckets of size g. A zero granularity never triggers.
func Triggered(before, after, g uint64) bool {
	if g == 0 {
		return false
	}

	return (before/g)^(after/g) != 0
}

// Fire calls fn with the bucket index of every event due for a work
// call that moved the counter from before to after.
func (p Policy) Fire(before, after, g uint64, fn func(bucket uint64)) {
	if !Triggered(before, after, g) {
		return
	}

	if p == PolicyBoundary {
		fn(after / g)
		return
	}

	for b := before/g + 1; b <= after/g; b++ {
		fn(b)
	}
}
