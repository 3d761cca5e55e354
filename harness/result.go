package harness

import "time"

// Result is one measured run (or one repetition of the message harness).
type Result struct {
	Variant    Variant       `json:"variant"`
	Run        int           `json:"run"`
	Pipes      int           `json:"pipes"`
	Stages     int           `json:"stages"`
	Samples    uint64        `json:"samples,omitempty"`
	MaxCopy    uint64        `json:"max_copy,omitempty"`
	Repetition int           `json:"repetition,omitempty"`
	BurstSize  int           `json:"burst_size,omitempty"`
	Scheduler  string        `json:"scheduler,omitempty"`
	Elapsed    time.Duration `json:"elapsed_ns"`
}

// Seconds returns the elapsed time in seconds, derived from nanoseconds.
func (r Result) Seconds() float64 {
	return float64(r.Elapsed.Nanoseconds()) / 1e9
}
