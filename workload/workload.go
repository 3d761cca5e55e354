// Package workload generates deterministic sweep plans for flowbench and
// the seeded random sources the benchmark blocks draw from. A plan is a
// JSONL file with one harness invocation per line.
package workload

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	mrand "math/rand"
)

// Point is one harness invocation in a sweep.
type Point struct {
	Variant     string `json:"variant"`
	Run         int    `json:"run"`
	Pipes       int    `json:"pipes"`
	Stages      int    `json:"stages"`
	Samples     uint64 `json:"samples,omitempty"`
	MaxCopy     uint64 `json:"max_copy,omitempty"`
	Repetitions int    `json:"repetitions,omitempty"`
	BurstSize   int    `json:"burst_size,omitempty"`
}

// Summary contains statistics about the generated plan.
type Summary struct {
	TotalPoints    int
	Configurations int
	Runs           int
}

// Config controls plan generation. Empty lists fall back to the harness
// defaults.
type Config struct {
	Variant     string
	Pipes       []int
	Stages      []int
	Samples     []uint64
	MaxCopy     []uint64
	BurstSizes  []int
	Repetitions int
	Runs        int
	Shuffle     bool
	Seed        int64
}

// Generator produces deterministic plans from a Config.
type Generator struct {
	cfg Config
	rng *mrand.Rand
}

// NewGenerator creates a Generator from the given Config.
func NewGenerator(cfg Config) *Generator {
	seed := cfg.Seed
	if seed == 0 {
		seed = DefaultSeed
	}

	return &Generator{
		cfg: cfg,
		rng: mrand.New(mrand.NewSource(seed)),
	}
}

// IsMessage reports whether variant is the message harness.
func IsMessage(variant string) bool {
	return variant == "msg"
}

// Points returns the cartesian product of the configured parameters,
// repeated Runs times, optionally shuffled.
func (g *Generator) Points() []Point {
	pipes := orDefault(g.cfg.Pipes, 5)
	stages := orDefault(g.cfg.Stages, 6)
	runs := max(g.cfg.Runs, 1)

	var points []Point

	for run := 0; run < runs; run++ {
		for _, p := range pipes {
			for _, s := range stages {
				if IsMessage(g.cfg.Variant) {
					for _, b := range orDefault(g.cfg.BurstSizes, 0) {
						points = append(points, Point{
							Variant:     g.cfg.Variant,
							Run:         run,
							Pipes:       p,
							Stages:      s,
							Repetitions: max(g.cfg.Repetitions, 1),
							BurstSize:   b,
						})
					}

					continue
				}

				for _, n := range orDefault(g.cfg.Samples, 15_000_000) {
					for _, m := range orDefault(g.cfg.MaxCopy, 0xffffffff) {
						points = append(points, Point{
							Variant: g.cfg.Variant,
							Run:     run,
							Pipes:   p,
							Stages:  s,
							Samples: n,
							MaxCopy: m,
						})
					}
				}
			}
		}
	}

	if g.cfg.Shuffle {
		g.rng.Shuffle(len(points), func(i, j int) {
			points[i], points[j] = points[j], points[i]
		})
	}

	return points
}

// Generate writes the plan as JSONL to w and returns a Summary.
func (g *Generator) Generate(w io.Writer) (Summary, error) {
	enc := json.NewEncoder(w)

	points := g.Points()
	summary := Summary{Runs: max(g.cfg.Runs, 1)}

	for _, p := range points {
		if err := enc.Encode(p); err != nil {
			return summary, fmt.Errorf("encode point: %w", err)
		}

		summary.TotalPoints++
	}

	summary.Configurations = summary.TotalPoints / summary.Runs

	return summary, nil
}

// ReadPlan parses a JSONL plan.
func ReadPlan(r io.Reader) ([]Point, error) {
	var points []Point

	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++

		if len(scanner.Bytes()) == 0 {
			continue
		}

		var p Point
		if err := json.Unmarshal(scanner.Bytes(), &p); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}

		points = append(points, p)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}

	return points, nil
}

func orDefault[T any](values []T, def T) []T {
	if len(values) == 0 {
		return []T{def}
	}

	return values
}
