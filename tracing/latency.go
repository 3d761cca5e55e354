package tracing

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"
)

// ReadEvents parses a JSONL trace.
func ReadEvents(r io.Reader) ([]Event, error) {
	var events []Event

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	line := 0

	for scanner.Scan() {
		line++

		if len(scanner.Bytes()) == 0 {
			continue
		}

		var ev Event
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		events = append(events, ev)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read trace: %w", err)
	}

	return events, nil
}

type pairKey struct {
	session string
	block   uint64
	bucket  uint64
}

// Latencies joins tx and rx events on session, block and bucket and
// returns rx - tx for every matched pair, ordered by session, block and
// bucket. Unmatched events are ignored.
func Latencies(events []Event) []time.Duration {
	tx := make(map[pairKey]time.Duration)

	for _, ev := range events {
		if ev.Name == EventTx {
			k := pairKey{ev.Session, ev.Block, ev.Bucket}
			if _, ok := tx[k]; !ok {
				tx[k] = ev.Time
			}
		}
	}

	type match struct {
		key pairKey
		lat time.Duration
	}

	var matches []match

	seen := make(map[pairKey]bool)

	for _, ev := range events {
		if ev.Name != EventRx {
			continue
		}

		k := pairKey{ev.Session, ev.Block, ev.Bucket}
		start, ok := tx[k]
		if !ok || seen[k] {
			continue
		}

		seen[k] = true
		matches = append(matches, match{k, ev.Time - start})
	}

	sort.Slice(matches, func(i, j int) bool {
		a, b := matches[i].key, matches[j].key
		if a.session != b.session {
			return a.session < b.session
		}
		if a.block != b.block {
			return a.block < b.block
		}

		return a.bucket < b.bucket
	})

	out := make([]time.Duration, len(matches))
	for i, m := range matches {
		out[i] = m.lat
	}

	return out
}
