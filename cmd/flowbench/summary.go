package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/weiihann/flowbench/harness"
	"github.com/weiihann/flowbench/report"
	"github.com/weiihann/flowbench/tracing"
)

func newSummaryCmd(a *app) *cobra.Command {
	var (
		variant    string
		outputJSON bool
	)

	cmd := &cobra.Command{
		Use:   "summary [rows-file...]",
		Short: "Summarize result rows per configuration",
		Long: `Read result rows (from files, or stdin when none are given) and print
mean, standard deviation, min and max elapsed time per configuration.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := harness.ParseVariant(variant)
			if err != nil {
				return err
			}

			var results []harness.Result

			err = eachInput(cmd, args, func(name string, r io.Reader) error {
				rows, err := report.ParseRows(r, v)
				if err != nil {
					return fmt.Errorf("parse %s: %w", name, err)
				}

				results = append(results, rows...)

				return nil
			})
			if err != nil {
				return err
			}

			a.logger.Debug("rows read", slog.Int("rows", len(results)))

			summaries := report.Summarize(results)
			if outputJSON {
				return report.GenerateJSON(cmd.OutOrStdout(), summaries)
			}

			return report.Generate(cmd.OutOrStdout(), summaries)
		},
	}

	cmd.Flags().StringVar(&variant, "variant", string(harness.NullRand),
		"Variant that produced the rows (selects the row layout)")
	cmd.Flags().BoolVar(&outputJSON, "json", false,
		"Output results as JSON instead of table")

	return cmd
}

func newLatencyCmd(a *app) *cobra.Command {
	var outputJSON bool

	cmd := &cobra.Command{
		Use:   "latency [trace-file...]",
		Short: "Pair tx/rx trace events and report latencies",
		Long: `Read JSONL trace events written by null-rand-latency --trace-file
(from files, or stdin when none are given), pair each rx event with the
tx event of the same block and bucket, and print latency statistics.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var events []tracing.Event

			err := eachInput(cmd, args, func(name string, r io.Reader) error {
				evs, err := tracing.ReadEvents(r)
				if err != nil {
					return fmt.Errorf("read %s: %w", name, err)
				}

				events = append(events, evs...)

				return nil
			})
			if err != nil {
				return err
			}

			lat := tracing.Latencies(events)

			a.logger.Debug("events paired",
				slog.Int("events", len(events)),
				slog.Int("latencies", len(lat)),
			)

			if outputJSON {
				return writeLatencyJSON(cmd.OutOrStdout(), lat)
			}

			return report.GenerateLatency(cmd.OutOrStdout(), lat)
		},
	}

	cmd.Flags().BoolVar(&outputJSON, "json", false,
		"Output statistics as JSON instead of table")

	return cmd
}

func writeLatencyJSON(w io.Writer, lat []time.Duration) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(report.SummarizeLatency(lat))
}

// eachInput calls fn for every named file, or once for stdin when no
// files are given.
func eachInput(
	cmd *cobra.Command,
	paths []string,
	fn func(name string, r io.Reader) error,
) error {
	if len(paths) == 0 {
		return fn("stdin", cmd.InOrStdin())
	}

	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open %s: %w", path, err)
		}

		err = fn(path, f)
		f.Close()

		if err != nil {
			return err
		}
	}

	return nil
}
