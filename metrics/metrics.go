// Package metrics collects flowbench throughput and run timings as
// Prometheus metrics on a private registry, written out as a text file
// after the benchmark so a node exporter textfile collector can pick it
// up.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/weiihann/flowbench/flowgraph"
)

// Metrics holds the flowbench collectors.
type Metrics struct {
	registry *prometheus.Registry

	BlockItems    *prometheus.CounterVec
	BlockMessages *prometheus.CounterVec
	RunDuration   *prometheus.HistogramVec
	Runs          *prometheus.CounterVec
}

// New creates the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		BlockItems: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowbench_block_items_total",
				Help: "Stream items handed downstream per block",
			},
			[]string{"block"},
		),
		BlockMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowbench_block_messages_total",
				Help: "Messages posted per block",
			},
			[]string{"block"},
		),
		RunDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "flowbench_run_duration_seconds",
				Help:    "Wall-clock duration of one flowgraph run",
				Buckets: prometheus.ExponentialBuckets(0.0001, 4, 12),
			},
			[]string{"variant"},
		),
		Runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowbench_runs_total",
				Help: "Completed flowgraph runs",
			},
			[]string{"variant"},
		),
	}
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Block implements flowgraph.Observer.
func (m *Metrics) Block(name string) flowgraph.BlockObserver {
	return blockCounters{
		items:    m.BlockItems.WithLabelValues(name),
		messages: m.BlockMessages.WithLabelValues(name),
	}
}

// ObserveRun records one completed run.
func (m *Metrics) ObserveRun(variant string, elapsed time.Duration) {
	m.RunDuration.WithLabelValues(variant).Observe(elapsed.Seconds())
	m.Runs.WithLabelValues(variant).Inc()
}

// WriteFile writes the registry in the text exposition format.
func (m *Metrics) WriteFile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics %s: %w", path, err)
	}

	return nil
}

type blockCounters struct {
	items    prometheus.Counter
	messages prometheus.Counter
}

func (c blockCounters) Items(n int)    { c.items.Add(float64(n)) }
func (c blockCounters) Messages(n int) { c.messages.Add(float64(n)) }
