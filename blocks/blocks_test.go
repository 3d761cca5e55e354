package blocks

import (
	"context"
	mrand "math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiihann/flowbench/flowgraph"
	"github.com/weiihann/flowbench/tracing"
)

func ramp(n int) []float32 {
	items := make([]float32, n)
	for i := range items {
		items[i] = float32(i + 1)
	}

	return items
}

func TestHeadStopsAtLimit(t *testing.T) {
	head := NewHead(250)
	m := flowgraph.NewMocker(head.Block, 100)
	require.NoError(t, m.Init(context.Background()))

	m.Feed(0, ramp(1000))
	require.NoError(t, m.Run(context.Background()))

	assert.True(t, m.Finished())
	assert.Equal(t, ramp(250), m.Output(0))
	assert.Equal(t, uint64(0), head.Kernel.Remaining())
}

func TestHeadFinishesOnShortInput(t *testing.T) {
	head := NewHead(250)
	m := flowgraph.NewMocker(head.Block, 100)

	m.Feed(0, ramp(40))
	m.CloseInput(0)
	require.NoError(t, m.Run(context.Background()))

	assert.True(t, m.Finished())
	assert.Len(t, m.Output(0), 40)
}

func TestHeadZeroFinishesImmediately(t *testing.T) {
	m := flowgraph.NewMocker(NewHead(0).Block, 16)
	m.Feed(0, ramp(10))

	_, err := m.Step(context.Background())
	require.NoError(t, err)

	assert.True(t, m.Finished())
	assert.Empty(t, m.Output(0))
}

func TestCopyRandRespectsMaxCopy(t *testing.T) {
	const maxCopy = 7

	cr := NewCopyRand(maxCopy, mrand.New(mrand.NewSource(1)))
	m := flowgraph.NewMocker(cr.Block, 1024)

	m.Feed(0, ramp(500))
	m.CloseInput(0)

	var out []float32

	for !m.Finished() {
		before := len(m.Output(0))

		progressed, err := m.Step(context.Background())
		require.NoError(t, err)

		copied := len(m.Output(0)) - before
		assert.LessOrEqual(t, copied, maxCopy)

		if !progressed {
			break
		}
	}

	out = m.Output(0)
	assert.True(t, m.Finished())
	assert.Equal(t, ramp(500), out)
	assert.Greater(t, m.WorkCalls(), 500/maxCopy)
}

func TestCopyRandSameSeedSameCalls(t *testing.T) {
	calls := func() int {
		m := flowgraph.NewMocker(NewCopyRand(64, mrand.New(mrand.NewSource(9))).Block, 1024)
		m.Feed(0, ramp(4096))
		m.CloseInput(0)
		require.NoError(t, m.Run(context.Background()))

		return m.WorkCalls()
	}

	assert.Equal(t, calls(), calls())
}

func TestNullSinkCounts(t *testing.T) {
	snk := NewNullSink()
	m := flowgraph.NewMocker(snk.Block, 0)

	m.Feed(0, ramp(123))
	m.CloseInput(0)
	require.NoError(t, m.Run(context.Background()))

	assert.True(t, m.Finished())
	assert.Equal(t, uint64(123), snk.Kernel.Received())

	require.NoError(t, m.Init(context.Background()))
	assert.Equal(t, uint64(0), snk.Kernel.Received())
}

func TestNullSourceFillsOutput(t *testing.T) {
	m := flowgraph.NewMocker(NewNullSource().Block, 64)

	for i := 0; i < 3; i++ {
		_, err := m.Step(context.Background())
		require.NoError(t, err)
	}

	assert.Len(t, m.Output(0), 192)
	assert.False(t, m.Finished())
}

func TestFIRValidConvolution(t *testing.T) {
	taps := []float32{1, 2, 3}
	fir, err := NewFIR(taps)
	require.NoError(t, err)

	m := flowgraph.NewMocker(fir.Block, 2)
	require.NoError(t, m.Init(context.Background()))

	m.Feed(0, []float32{1, 0, 0, 1, 1})
	m.CloseInput(0)
	require.NoError(t, m.Run(context.Background()))

	// y[n] = 1*x[n] + 2*x[n-1] + 3*x[n-2] for n >= 2
	assert.Equal(t, []float32{3, 1, 3}, m.Output(0))
	assert.True(t, m.Finished())
	assert.Equal(t, 2, fir.Kernel.History())
}

func TestFIRAcrossFeeds(t *testing.T) {
	taps := []float32{0.5, 0.25, 0.125, 1}
	input := ramp(50)

	whole, err := NewFIR(taps)
	require.NoError(t, err)
	mw := flowgraph.NewMocker(whole.Block, 1000)
	mw.Feed(0, input)
	mw.CloseInput(0)
	require.NoError(t, mw.Run(context.Background()))

	split, err := NewFIR(taps)
	require.NoError(t, err)
	ms := flowgraph.NewMocker(split.Block, 3)
	for i := 0; i < len(input); i += 7 {
		ms.Feed(0, input[i:min(i+7, len(input))])
		require.NoError(t, ms.Run(context.Background()))
	}
	ms.CloseInput(0)
	require.NoError(t, ms.Run(context.Background()))

	assert.Len(t, mw.Output(0), len(input)-len(taps)+1)
	assert.InDeltaSlice(t, toF64(mw.Output(0)), toF64(ms.Output(0)), 1e-4)
}

func TestFIRRequiresTaps(t *testing.T) {
	_, err := NewFIR(nil)
	assert.ErrorIs(t, err, ErrNoTaps)
}

func toF64(xs []float32) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = float64(x)
	}

	return out
}

func TestLatencySourceFiresOnBoundary(t *testing.T) {
	rec := tracing.NewRecorder()
	src := NewLatencySource(4, 100, tracing.PolicyBoundary, rec)
	m := flowgraph.NewMocker(src.Block, 60)

	for i := 0; i < 5; i++ {
		_, err := m.Step(context.Background())
		require.NoError(t, err)
	}

	// counters 0->60->120->180->240->300 cross 100, 200, 300
	events := rec.Events()
	require.Len(t, events, 3)

	for i, ev := range events {
		assert.Equal(t, tracing.EventTx, ev.Name)
		assert.Equal(t, uint64(4), ev.Block)
		assert.Equal(t, uint64(i+1), ev.Bucket)
	}

	assert.Equal(t, uint64(300), src.Kernel.Produced())
}

func TestLatencySinkPolicies(t *testing.T) {
	tests := []struct {
		policy tracing.Policy
		want   []uint64
	}{
		{tracing.PolicyBoundary, []uint64{3}},
		{tracing.PolicyEveryCrossing, []uint64{1, 2, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.policy.String(), func(t *testing.T) {
			rec := tracing.NewRecorder()
			snk := NewLatencySink(0, 10, tt.policy, rec)
			m := flowgraph.NewMocker(snk.Block, 0)

			// one work call spanning three boundaries
			m.Feed(0, ramp(35))
			m.CloseInput(0)
			require.NoError(t, m.Run(context.Background()))

			var got []uint64
			for _, ev := range rec.Events() {
				assert.Equal(t, tracing.EventRx, ev.Name)
				got = append(got, ev.Bucket)
			}

			assert.Equal(t, tt.want, got)
			assert.Equal(t, uint64(35), snk.Kernel.Received())
		})
	}
}

func TestMessageForwardRelaysAndFinishes(t *testing.T) {
	fwd := NewMessageForward()
	m := flowgraph.NewMocker(fwd.Block, 0)

	m.Deliver(0, flowgraph.F64(1), flowgraph.F64(2), flowgraph.DoneMessage(), flowgraph.F64(3))
	require.NoError(t, m.Run(context.Background()))

	posted := m.Posted(0)
	require.Len(t, posted, 3)
	assert.True(t, posted[2].IsDone())
	assert.True(t, m.Finished())
	assert.Equal(t, uint64(2), fwd.Kernel.Forwarded())
}

func TestMessageSinkCounts(t *testing.T) {
	snk := NewMessageSink()
	m := flowgraph.NewMocker(snk.Block, 0)

	m.Deliver(0, flowgraph.F64(1), flowgraph.F64(2))
	require.NoError(t, m.Run(context.Background()))
	assert.False(t, m.Finished())

	m.Deliver(0, flowgraph.DoneMessage())
	require.NoError(t, m.Run(context.Background()))

	assert.True(t, m.Finished())
	assert.Equal(t, uint64(2), snk.Kernel.Received())
}
