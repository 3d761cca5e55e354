// Package report renders harness results: the fixed-width rows printed
// after every run, and markdown or JSON summaries of collected rows and
// trace latencies.
package report

import (
	"cmp"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"slices"
	"strings"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/weiihann/flowbench/harness"
)

// Summary aggregates the runs of one configuration. Times are seconds.
type Summary struct {
	Variant   harness.Variant `json:"variant,omitempty"`
	Pipes     int             `json:"pipes"`
	Stages    int             `json:"stages"`
	Samples   uint64          `json:"samples,omitempty"`
	MaxCopy   uint64          `json:"max_copy,omitempty"`
	BurstSize int             `json:"burst_size,omitempty"`
	Count     int             `json:"count"`
	Mean      float64         `json:"mean"`
	StdDev    float64         `json:"stddev"`
	Min       float64         `json:"min"`
	Max       float64         `json:"max"`
	// Throughput is items (or messages) per second over all pipes.
	Throughput float64 `json:"throughput"`
}

type summaryKey struct {
	variant   harness.Variant
	pipes     int
	stages    int
	samples   uint64
	maxCopy   uint64
	burstSize int
}

// Summarize groups results by configuration (run and repetition indices
// are ignored) and computes elapsed-time statistics per group. Groups are
// ordered by pipes, stages, samples, max_copy and burst size.
func Summarize(results []harness.Result) []Summary {
	groups := make(map[summaryKey][]float64)

	for _, r := range results {
		k := summaryKey{r.Variant, r.Pipes, r.Stages, r.Samples, r.MaxCopy, r.BurstSize}
		groups[k] = append(groups[k], r.Seconds())
	}

	summaries := make([]Summary, 0, len(groups))

	for k, secs := range groups {
		s := Summary{
			Variant:   k.variant,
			Pipes:     k.pipes,
			Stages:    k.stages,
			Samples:   k.samples,
			MaxCopy:   k.maxCopy,
			BurstSize: k.burstSize,
			Count:     len(secs),
			Mean:      stat.Mean(secs, nil),
			Min:       slices.Min(secs),
			Max:       slices.Max(secs),
		}

		if len(secs) > 1 {
			s.StdDev = stat.StdDev(secs, nil)
		}

		items := float64(k.samples)
		if k.variant.IsMessage() {
			items = float64(k.burstSize)
		}
		if s.Mean > 0 {
			s.Throughput = float64(k.pipes) * items / s.Mean
		}

		summaries = append(summaries, s)
	}

	slices.SortFunc(summaries, func(a, b Summary) int {
		return cmp.Or(
			cmp.Compare(a.Variant, b.Variant),
			cmp.Compare(a.Pipes, b.Pipes),
			cmp.Compare(a.Stages, b.Stages),
			cmp.Compare(a.Samples, b.Samples),
			cmp.Compare(a.MaxCopy, b.MaxCopy),
			cmp.Compare(a.BurstSize, b.BurstSize),
		)
	})

	return summaries
}

// Generate writes a markdown table of summaries.
func Generate(w io.Writer, summaries []Summary) error {
	if len(summaries) == 0 {
		return fmt.Errorf("no results to report")
	}

	fastest := findFastest(summaries)

	fmt.Fprintln(w, "## Benchmark Results")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "| Variant | Pipes | Stages | Samples | Max Copy | Burst "+
		"| Runs | Mean | StdDev | Min | Max | Throughput | Relative |")
	fmt.Fprintln(w, "|---------|-------|--------|---------|----------|-------"+
		"|------|------|--------|-----|-----|------------|----------|")

	for _, s := range summaries {
		relative := 1.0
		if fastest > 0 && s.Mean > 0 {
			relative = s.Mean / fastest
		}

		fmt.Fprintf(w, "| %s | %d | %d | %s | %s | %s | %d | %s | %s | %s | %s | %s | %.2fx |\n",
			variantName(s.Variant),
			s.Pipes,
			s.Stages,
			formatCount(s.Samples),
			formatCount(s.MaxCopy),
			formatCount(uint64(s.BurstSize)),
			s.Count,
			formatSeconds(s.Mean),
			formatSeconds(s.StdDev),
			formatSeconds(s.Min),
			formatSeconds(s.Max),
			formatRate(s.Throughput),
			relative,
		)
	}

	return nil
}

// GenerateJSON writes summaries as JSON to w.
func GenerateJSON(w io.Writer, summaries []Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(summaries)
}

// LatencyStats describes a set of trace latencies.
type LatencyStats struct {
	Count  int           `json:"count"`
	Mean   time.Duration `json:"mean_ns"`
	StdDev time.Duration `json:"stddev_ns"`
	Min    time.Duration `json:"min_ns"`
	P50    time.Duration `json:"p50_ns"`
	P90    time.Duration `json:"p90_ns"`
	P99    time.Duration `json:"p99_ns"`
	Max    time.Duration `json:"max_ns"`
}

// SummarizeLatency computes LatencyStats over lat.
func SummarizeLatency(lat []time.Duration) LatencyStats {
	if len(lat) == 0 {
		return LatencyStats{}
	}

	xs := make([]float64, len(lat))
	for i, d := range lat {
		xs[i] = float64(d)
	}

	slices.Sort(xs)

	q := func(p float64) time.Duration {
		return time.Duration(stat.Quantile(p, stat.Empirical, xs, nil))
	}

	s := LatencyStats{
		Count: len(xs),
		Mean:  time.Duration(math.Round(stat.Mean(xs, nil))),
		Min:   time.Duration(xs[0]),
		P50:   q(0.5),
		P90:   q(0.9),
		P99:   q(0.99),
		Max:   time.Duration(xs[len(xs)-1]),
	}

	if len(xs) > 1 {
		s.StdDev = time.Duration(math.Round(stat.StdDev(xs, nil)))
	}

	return s
}

// GenerateLatency writes a markdown table of trace latency statistics.
func GenerateLatency(w io.Writer, lat []time.Duration) error {
	if len(lat) == 0 {
		return fmt.Errorf("no latencies to report")
	}

	s := SummarizeLatency(lat)

	fmt.Fprintln(w, "## Latency")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "| Events | Mean | StdDev | Min | p50 | p90 | p99 | Max |")
	fmt.Fprintln(w, "|--------|------|--------|-----|-----|-----|-----|-----|")
	fmt.Fprintf(w, "| %d | %s | %s | %s | %s | %s | %s | %s |\n",
		s.Count, s.Mean, s.StdDev, s.Min, s.P50, s.P90, s.P99, s.Max)

	return nil
}

func findFastest(summaries []Summary) float64 {
	fastest := math.Inf(1)
	for _, s := range summaries {
		if s.Mean > 0 && s.Mean < fastest {
			fastest = s.Mean
		}
	}

	if math.IsInf(fastest, 1) {
		return 0
	}

	return fastest
}

func variantName(v harness.Variant) string {
	if v == "" {
		return "-"
	}

	return string(v)
}

func formatSeconds(s float64) string {
	if s < 1 {
		return fmt.Sprintf("%.2fms", s*1000)
	}

	return fmt.Sprintf("%.3fs", s)
}

func formatCount(n uint64) string {
	if n == 0 {
		return "-"
	}

	return trimScaled(float64(n), "")
}

func formatRate(r float64) string {
	if r <= 0 {
		return "-"
	}

	return trimScaled(r, "/s")
}

func trimScaled(v float64, suffix string) string {
	units := []string{"", "K", "M", "G", "T"}
	unit := 0

	for v >= 1000 && unit < len(units)-1 {
		v /= 1000
		unit++
	}

	formatted := fmt.Sprintf("%.1f", v)
	formatted = strings.TrimRight(formatted, "0")
	formatted = strings.TrimRight(formatted, ".")

	return formatted + units[unit] + suffix
}
