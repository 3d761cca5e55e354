package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/weiihann/flowbench/harness"
)

const (
	dataRowFormat = "%4d, %4d,  %4d,   %15d,%10d,   %20.15f"
	msgRowFormat  = "%4d, %4d,  %4d,   %4d,       %4d,       %20.12f"
	rowFields     = 6
)

// FormatRow renders a data-flow result as
// run, pipes, stages, samples, max_copy, elapsed seconds.
func FormatRow(r harness.Result) string {
	return fmt.Sprintf(dataRowFormat,
		r.Run, r.Pipes, r.Stages, r.Samples, r.MaxCopy, r.Seconds())
}

// FormatMsgRow renders a message result as
// run, pipes, stages, repetition, burst_size, elapsed seconds.
func FormatMsgRow(r harness.Result) string {
	return fmt.Sprintf(msgRowFormat,
		r.Run, r.Pipes, r.Stages, r.Repetition, r.BurstSize, r.Seconds())
}

// WriteRow writes the row of r, in the format of its variant, followed by
// a newline.
func WriteRow(w io.Writer, r harness.Result) error {
	row := FormatRow(r)
	if r.Variant.IsMessage() {
		row = FormatMsgRow(r)
	}

	if _, err := fmt.Fprintln(w, row); err != nil {
		return fmt.Errorf("write row: %w", err)
	}

	return nil
}

// ParseRows reads rows written by WriteRow for variant v. Blank lines and
// lines starting with '#' are skipped.
func ParseRows(r io.Reader, v harness.Variant) ([]harness.Result, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = rowFields

	var results []harness.Result

	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}

		res, err := parseRow(rec, v)
		if err != nil {
			line, _ := cr.FieldPos(0)
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		results = append(results, res)
	}

	return results, nil
}

func parseRow(rec []string, v harness.Variant) (harness.Result, error) {
	ints := make([]uint64, rowFields-1)

	for i := range ints {
		n, err := strconv.ParseUint(strings.TrimSpace(rec[i]), 10, 64)
		if err != nil {
			return harness.Result{}, fmt.Errorf("field %d: %w", i+1, err)
		}
		ints[i] = n
	}

	secs, err := strconv.ParseFloat(strings.TrimSpace(rec[rowFields-1]), 64)
	if err != nil {
		return harness.Result{}, fmt.Errorf("elapsed: %w", err)
	}

	res := harness.Result{
		Variant: v,
		Run:     int(ints[0]),
		Pipes:   int(ints[1]),
		Stages:  int(ints[2]),
		Elapsed: time.Duration(math.Round(secs * 1e9)),
	}

	if v.IsMessage() {
		res.Repetition = int(ints[3])
		res.BurstSize = int(ints[4])
	} else {
		res.Samples = ints[3]
		res.MaxCopy = ints[4]
	}

	return res, nil
}
