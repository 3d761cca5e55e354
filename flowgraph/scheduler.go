package flowgraph

import (
	"fmt"
	"runtime"
)

// Scheduler selects how block goroutines are spread over OS threads.
type Scheduler string

const (
	// SchedulerTPB runs one goroutine per block on all available
	// processors.
	SchedulerTPB Scheduler = "tpb"
	// SchedulerSingle runs one goroutine per block with GOMAXPROCS set to
	// 1 for the duration of the run.
	SchedulerSingle Scheduler = "single"
)

// Schedulers lists the supported scheduler names.
func Schedulers() []string {
	return []string{string(SchedulerTPB), string(SchedulerSingle)}
}

// ParseScheduler validates a scheduler name.
func ParseScheduler(name string) (Scheduler, error) {
	switch Scheduler(name) {
	case SchedulerTPB, SchedulerSingle:
		return Scheduler(name), nil
	default:
		return "", fmt.Errorf("unknown scheduler %q (want one of %v)",
			name, Schedulers())
	}
}

// apply configures the Go scheduler and returns the function that
// restores the previous setting.
func (s Scheduler) apply() func() {
	if s != SchedulerSingle {
		return func() {}
	}

	prev := runtime.GOMAXPROCS(1)

	return func() { runtime.GOMAXPROCS(prev) }
}
