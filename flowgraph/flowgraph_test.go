package flowgraph_test

import (
	"context"
	"errors"
	mrand "math/rand"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiihann/flowbench/blocks"
	"github.com/weiihann/flowbench/flowgraph"
)

func ramp(n int) []float32 {
	items := make([]float32, n)
	for i := range items {
		items[i] = float32(i)
	}

	return items
}

func TestConnectErrors(t *testing.T) {
	fg := flowgraph.New()
	src := fg.Add(blocks.NewNullSource().Block)
	snk := fg.Add(blocks.NewNullSink().Block)

	err := fg.ConnectStream(src, "output", snk, "in")
	assert.ErrorIs(t, err, flowgraph.ErrUnknownPort)

	err = fg.ConnectStream(src, "out", 42, "in")
	assert.ErrorIs(t, err, flowgraph.ErrUnknownBlock)

	require.NoError(t, fg.ConnectStream(src, "out", snk, "in"))

	other := fg.Add(blocks.NewNullSink().Block)
	err = fg.ConnectStream(src, "out", other, "in")
	assert.ErrorIs(t, err, flowgraph.ErrAlreadyConnected)

	err = fg.ConnectMessage(src, "out", snk, "in")
	assert.ErrorIs(t, err, flowgraph.ErrUnknownPort)
}

func TestValidateDanglingPort(t *testing.T) {
	fg := flowgraph.New()
	src := fg.Add(blocks.NewNullSource().Block)
	head := fg.Add(blocks.NewHead(10).Block)
	require.NoError(t, fg.ConnectStream(src, "out", head, "in"))

	err := fg.Validate()
	assert.ErrorIs(t, err, flowgraph.ErrUnconnected)

	err = flowgraph.NewRuntime().Run(context.Background(), fg)
	assert.ErrorIs(t, err, flowgraph.ErrUnconnected)
}

func TestEmptyGraphFinishes(t *testing.T) {
	err := flowgraph.NewRuntime().Run(context.Background(), flowgraph.New())
	assert.NoError(t, err)
}

func TestCopyChainPreservesItems(t *testing.T) {
	input := ramp(10_000)

	fg := flowgraph.New()
	src := blocks.NewVectorSource(input)
	snk := blocks.NewVectorSink()

	prev := fg.Add(src.Block)
	rng := mrand.New(mrand.NewSource(3))

	for i := 0; i < 4; i++ {
		c := fg.Add(blocks.NewCopyRand(37, mrand.New(mrand.NewSource(rng.Int63()))).Block)
		require.NoError(t, fg.ConnectStream(prev, "out", c, "in"))
		prev = c
	}

	require.NoError(t, fg.ConnectStream(prev, "out", fg.Add(snk.Block), "in"))

	rt := flowgraph.NewRuntime(flowgraph.WithBufferSize(128), flowgraph.WithQueueSize(2))
	require.NoError(t, rt.Run(context.Background(), fg))

	assert.Equal(t, input, snk.Kernel.Items())
}

func TestHeadBoundsInfiniteSource(t *testing.T) {
	const (
		pipes   = 3
		samples = 100_000
	)

	fg := flowgraph.New()
	sinks := make([]*flowgraph.TypedBlock[*blocks.NullSink], pipes)

	for p := 0; p < pipes; p++ {
		src := fg.Add(blocks.NewNullSource().Block)
		head := fg.Add(blocks.NewHead(samples).Block)
		sinks[p] = blocks.NewNullSink()
		snk := fg.Add(sinks[p].Block)

		require.NoError(t, fg.ConnectStream(src, "out", head, "in"))
		require.NoError(t, fg.ConnectStream(head, "out", snk, "in"))
	}

	h, err := flowgraph.NewRuntime(flowgraph.WithBufferSize(1000)).Start(context.Background(), fg)
	require.NoError(t, err)
	require.NoError(t, h.WaitTimeout(30*time.Second))

	for _, s := range sinks {
		assert.Equal(t, uint64(samples), s.Kernel.Received())
	}
}

func TestMessageChainRerun(t *testing.T) {
	fg := flowgraph.New()
	head := fg.Add(blocks.NewMessageForward().Block)
	prev := head

	for i := 0; i < 3; i++ {
		relay := fg.Add(blocks.NewMessageForward().Block)
		require.NoError(t, fg.ConnectMessage(prev, "out", relay, "in"))
		prev = relay
	}

	sink := blocks.NewMessageSink()
	require.NoError(t, fg.ConnectMessage(prev, "out", fg.Add(sink.Block), "in"))

	rt := flowgraph.NewRuntime(flowgraph.WithQueueSize(4))

	for rep, burst := range []int{10, 0, 25} {
		for i := 0; i < burst; i++ {
			require.NoError(t, fg.Post(head, "in", flowgraph.F64(1.23)))
		}
		require.NoError(t, fg.Post(head, "in", flowgraph.DoneMessage()))

		h, err := rt.Start(context.Background(), fg)
		require.NoError(t, err)
		require.NoError(t, h.WaitTimeout(10*time.Second), "repetition %d", rep)

		assert.Equal(t, uint64(burst), sink.Kernel.Received(), "repetition %d", rep)
	}
}

func TestPostUnknownPort(t *testing.T) {
	fg := flowgraph.New()
	id := fg.Add(blocks.NewMessageForward().Block)

	err := fg.Post(id, "system", flowgraph.DoneMessage())
	assert.ErrorIs(t, err, flowgraph.ErrUnknownPort)
}

func TestWaitTimeoutStopsHungGraph(t *testing.T) {
	fg := flowgraph.New()
	src := fg.Add(blocks.NewNullSource().Block)
	snk := fg.Add(blocks.NewNullSink().Block)
	require.NoError(t, fg.ConnectStream(src, "out", snk, "in"))

	h, err := flowgraph.NewRuntime().Start(context.Background(), fg)
	require.NoError(t, err)

	_, err = flowgraph.NewRuntime().Start(context.Background(), fg)
	assert.ErrorIs(t, err, flowgraph.ErrRunning)

	err = h.WaitTimeout(50 * time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// the graph is released once the stopped run ended
	h, err = flowgraph.NewRuntime().Start(context.Background(), fg)
	require.NoError(t, err)
	h.Stop()
	assert.ErrorIs(t, h.Wait(), context.Canceled)
}

func TestContextDeadline(t *testing.T) {
	fg := flowgraph.New()
	fg.Add(blocks.NewMessageForward().Block)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := flowgraph.NewRuntime().Run(ctx, fg)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

type failingKernel struct{}

var errBoom = errors.New("boom")

func (failingKernel) Work(context.Context, *flowgraph.WorkIO) error { return errBoom }

func TestKernelErrorStopsRun(t *testing.T) {
	fg := flowgraph.New()
	src := fg.Add(blocks.NewNullSource().Block)
	bad := fg.Add(flowgraph.NewBlock("Failing", failingKernel{},
		flowgraph.WithStreamInput("in")))
	require.NoError(t, fg.ConnectStream(src, "out", bad, "in"))

	err := flowgraph.NewRuntime().Run(context.Background(), fg)
	require.Error(t, err)
	assert.ErrorIs(t, err, errBoom)
	assert.Contains(t, err.Error(), "Failing_1")
}

type countingObserver struct {
	mu    sync.Mutex
	items map[string]int
}

type countingBlock struct {
	o    *countingObserver
	name string
}

func (o *countingObserver) Block(name string) flowgraph.BlockObserver {
	return countingBlock{o: o, name: name}
}

func (c countingBlock) Items(n int) {
	c.o.mu.Lock()
	c.o.items[c.name] += n
	c.o.mu.Unlock()
}

func (c countingBlock) Messages(int) {}

func TestObserverAndSingleScheduler(t *testing.T) {
	obs := &countingObserver{items: make(map[string]int)}

	fg := flowgraph.New()
	src := fg.Add(blocks.NewVectorSource(ramp(5000)).Block)
	snk := fg.Add(blocks.NewNullSink().Block)
	require.NoError(t, fg.ConnectStream(src, "out", snk, "in"))

	procs := runtime.GOMAXPROCS(0)

	rt := flowgraph.NewRuntime(
		flowgraph.WithObserver(obs),
		flowgraph.WithScheduler(flowgraph.SchedulerSingle),
		flowgraph.WithBufferSize(512),
	)
	require.NoError(t, rt.Run(context.Background(), fg))

	assert.Equal(t, procs, runtime.GOMAXPROCS(0))
	assert.Equal(t, 5000, obs.items["VectorSource_0"])
}

func TestParseScheduler(t *testing.T) {
	s, err := flowgraph.ParseScheduler("single")
	require.NoError(t, err)
	assert.Equal(t, flowgraph.SchedulerSingle, s)

	_, err = flowgraph.ParseScheduler("smol")
	assert.Error(t, err)
}
