package flowgraph

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
)

// blockRun is the per-run state of one block, owned by its goroutine.
type blockRun struct {
	block     *Block
	kernel    Kernel
	io        WorkIO
	pending   [][]Message
	inboxes   []*messageInbox
	msgOut    [][]*messageInbox
	queueSize int
	obs       BlockObserver
	logger    *slog.Logger
}

func (br *blockRun) run(ctx context.Context) error {
	name := br.block.Name()

	defer br.shutdown()

	br.io.post = func(port int, m Message) error {
		if port < 0 || port >= len(br.msgOut) {
			return fmt.Errorf("%w: %s message output %d",
				ErrUnknownPort, name, port)
		}

		for _, inbox := range br.msgOut[port] {
			if err := inbox.deliver(ctx, m); err != nil {
				return err
			}
		}

		br.obs.Messages(1)

		return nil
	}

	if k, ok := br.kernel.(Initializer); ok {
		if err := k.Init(ctx); err != nil {
			return fmt.Errorf("init %s: %w", name, err)
		}
	}

	br.logger.DebugContext(ctx, "block started")

	calls := 0

	for {
		if err := br.await(ctx); err != nil {
			return err
		}

		br.io.CallAgain = false

		if err := br.kernel.Work(ctx, &br.io); err != nil {
			return fmt.Errorf("block %s: %w", name, err)
		}

		calls++

		for i := range br.io.messages {
			br.io.messages[i] = br.io.messages[i][:0]
		}

		if err := br.flush(ctx); err != nil {
			return err
		}

		if br.io.Finished || br.outputsDead() || br.inputsExhausted() {
			break
		}
	}

	if k, ok := br.kernel.(Deinitializer); ok {
		if err := k.Deinit(ctx); err != nil {
			return fmt.Errorf("deinit %s: %w", name, err)
		}
	}

	br.logger.DebugContext(ctx, "block finished", slog.Int("work_calls", calls))

	return nil
}

// shutdown closes outputs towards consumers and tells producers to stop.
func (br *blockRun) shutdown() {
	for _, out := range br.io.outputs {
		close(out.edge.ch)
	}

	for _, in := range br.io.inputs {
		in.edge.halt()
	}

	for _, inbox := range br.inboxes {
		inbox.halt()
	}
}

func (br *blockRun) source() bool {
	return len(br.io.inputs) == 0 && len(br.inboxes) == 0
}

func (br *blockRun) outputsDead() bool {
	if len(br.io.outputs) == 0 {
		return false
	}

	for _, out := range br.io.outputs {
		if !out.dead {
			return false
		}
	}

	return true
}

// inputsExhausted reports a stream-only block whose inputs all finished
// and that did not ask for another call.
func (br *blockRun) inputsExhausted() bool {
	if len(br.io.inputs) == 0 || len(br.inboxes) > 0 || br.io.CallAgain {
		return false
	}

	for _, in := range br.io.inputs {
		if !in.Finished() {
			return false
		}
	}

	return true
}

// await gathers whatever is available without blocking and only blocks
// when the block has nothing to work on.
func (br *blockRun) await(ctx context.Context) error {
	ready := br.io.CallAgain || br.source()

	for _, in := range br.io.inputs {
		if len(in.Slice()) > 0 {
			ready = true
			continue
		}

		if in.closed {
			continue
		}

		select {
		case c, ok := <-in.edge.ch:
			in.receive(c, ok)
			ready = true
		default:
		}
	}

	if br.collectMessages() {
		ready = true
	}

	if ready {
		return ctx.Err()
	}

	return br.wait(ctx)
}

func (br *blockRun) collectMessages() bool {
	got := false

	for i, inbox := range br.inboxes {
		if len(br.pending[i]) > 0 {
			br.io.messages[i] = append(br.io.messages[i], br.pending[i]...)
			br.pending[i] = nil
			got = true
		}

	drain:
		for len(br.io.messages[i]) < br.queueSize {
			select {
			case m := <-inbox.ch:
				br.io.messages[i] = append(br.io.messages[i], m)
				got = true
			default:
				break drain
			}
		}
	}

	return got
}

func (br *blockRun) wait(ctx context.Context) error {
	if len(br.io.inputs) > 1 || len(br.inboxes) > 1 || len(br.io.outputs) > 1 {
		return br.waitAny(ctx)
	}

	var (
		inCh  <-chan []float32
		msgCh <-chan Message
		stop  <-chan struct{}
	)

	if len(br.io.inputs) == 1 && !br.io.inputs[0].closed {
		inCh = br.io.inputs[0].edge.ch
	}

	if len(br.inboxes) == 1 {
		msgCh = br.inboxes[0].ch
	}

	if len(br.io.outputs) == 1 && !br.io.outputs[0].dead {
		stop = br.io.outputs[0].edge.stop
	}

	select {
	case c, ok := <-inCh:
		br.io.inputs[0].receive(c, ok)
	case m := <-msgCh:
		br.io.messages[0] = append(br.io.messages[0], m)
	case <-stop:
		br.io.outputs[0].dead = true
	case <-ctx.Done():
		return ctx.Err()
	}

	return nil
}

// waitAny is the general form of wait for blocks with several ports.
func (br *blockRun) waitAny(ctx context.Context) error {
	cases := []reflect.SelectCase{{
		Dir:  reflect.SelectRecv,
		Chan: reflect.ValueOf(ctx.Done()),
	}}
	actions := []func(v reflect.Value, ok bool){nil}

	for _, in := range br.io.inputs {
		if in.closed {
			continue
		}

		cases = append(cases, reflect.SelectCase{
			Dir: reflect.SelectRecv, Chan: reflect.ValueOf(in.edge.ch),
		})
		actions = append(actions, func(v reflect.Value, ok bool) {
			if !ok {
				in.receive(nil, false)
				return
			}
			in.receive(v.Interface().([]float32), true)
		})
	}

	for i, inbox := range br.inboxes {
		cases = append(cases, reflect.SelectCase{
			Dir: reflect.SelectRecv, Chan: reflect.ValueOf(inbox.ch),
		})
		actions = append(actions, func(v reflect.Value, _ bool) {
			br.io.messages[i] = append(br.io.messages[i], v.Interface().(Message))
		})
	}

	for _, out := range br.io.outputs {
		if out.dead {
			continue
		}

		cases = append(cases, reflect.SelectCase{
			Dir: reflect.SelectRecv, Chan: reflect.ValueOf(out.edge.stop),
		})
		actions = append(actions, func(reflect.Value, bool) { out.dead = true })
	}

	chosen, v, ok := reflect.Select(cases)
	if chosen == 0 {
		return ctx.Err()
	}

	actions[chosen](v, ok)

	return nil
}

// flush hands produced chunks downstream. Output to a consumer that
// already finished is dropped.
func (br *blockRun) flush(ctx context.Context) error {
	for _, out := range br.io.outputs {
		n := len(out.buf)

		if out.dead {
			out.buf = out.buf[:0]
			continue
		}

		if n == 0 {
			select {
			case <-out.edge.stop:
				out.dead = true
			default:
			}

			continue
		}

		select {
		case out.edge.ch <- out.buf:
			out.buf = out.edge.take()
			br.obs.Items(n)
		case <-out.edge.stop:
			out.dead = true
			out.buf = out.buf[:0]
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return nil
}
