package tracing

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTriggered(t *testing.T) {
	const g = 32768

	tests := []struct {
		name          string
		before, after uint64
		want          bool
	}{
		{"last item before boundary", g - 1, g, true},
		{"zero-length call", 5 * g, 5 * g, false},
		{"within bucket", 1, g - 1, false},
		{"from boundary", g, g + 10, false},
		{"spans several buckets", 10, 3*g + 1, true},
		{"k-th boundary", 7*g - 1, 7 * g, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Triggered(tt.before, tt.after, g))
		})
	}
}

func TestTriggeredZeroGranularity(t *testing.T) {
	assert.False(t, Triggered(0, 100, 0))
}

func TestPolicyFire(t *testing.T) {
	collect := func(p Policy, before, after uint64) []uint64 {
		var buckets []uint64
		p.Fire(before, after, 10, func(b uint64) { buckets = append(buckets, b) })
		return buckets
	}

	assert.Equal(t, []uint64{4}, collect(PolicyBoundary, 9, 41))
	assert.Equal(t, []uint64{1, 2, 3, 4}, collect(PolicyEveryCrossing, 9, 41))
	assert.Nil(t, collect(PolicyBoundary, 11, 19))
	assert.Nil(t, collect(PolicyEveryCrossing, 20, 20))
	assert.Equal(t, []uint64{2}, collect(PolicyEveryCrossing, 19, 20))
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("every")
	require.NoError(t, err)
	assert.Equal(t, PolicyEveryCrossing, p)

	p, err = ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyBoundary, p)

	_, err = ParsePolicy("sometimes")
	assert.Error(t, err)
}

func TestJSONLRoundTripAndLatencies(t *testing.T) {
	var buf bytes.Buffer
	tr := NewJSONLTracer(&buf)

	tr.Trace(EventTx, 0, 1)
	tr.Trace(EventTx, 1, 1)
	time.Sleep(2 * time.Millisecond)
	tr.Trace(EventRx, 1, 1)
	tr.Trace(EventRx, 0, 1)
	tr.Trace(EventRx, 0, 2) // no tx
	require.NoError(t, tr.Flush())

	events, err := ReadEvents(&buf)
	require.NoError(t, err)
	require.Len(t, events, 5)

	for _, ev := range events {
		assert.Equal(t, tr.Session(), ev.Session)
	}

	lat := Latencies(events)
	require.Len(t, lat, 2)

	for _, l := range lat {
		assert.GreaterOrEqual(t, l, 2*time.Millisecond)
	}
}

func TestLatenciesPairsPerSession(t *testing.T) {
	events := []Event{
		{Session: "a", Name: EventTx, Block: 0, Bucket: 1, Time: 10},
		{Session: "b", Name: EventTx, Block: 0, Bucket: 1, Time: 100},
		{Session: "b", Name: EventRx, Block: 0, Bucket: 1, Time: 150},
		{Session: "a", Name: EventRx, Block: 0, Bucket: 1, Time: 30},
		{Session: "a", Name: EventRx, Block: 0, Bucket: 1, Time: 90},
	}

	assert.Equal(t, []time.Duration{20, 50}, Latencies(events))
}

func TestReadEventsInvalid(t *testing.T) {
	_, err := ReadEvents(strings.NewReader("{\"event\":\"tx\"}\n{oops\n"))
	assert.Error(t, err)
}

func TestRecorderConcurrent(t *testing.T) {
	rec := NewRecorder()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(block uint64) {
			defer wg.Done()
			for b := uint64(0); b < 100; b++ {
				rec.Trace(EventTx, block, b)
			}
		}(uint64(i))
	}
	wg.Wait()

	assert.Len(t, rec.Events(), 800)
}

func TestMultiAndDiscard(t *testing.T) {
	a, b := NewRecorder(), NewRecorder()
	m := Multi(a, b, Discard, RuntimeTracer{})

	m.Trace(EventRx, 3, 9)

	assert.Len(t, a.Events(), 1)
	assert.Len(t, b.Events(), 1)
}
