package node

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/flowgrid/internal/datacell"
)

// echo copies its input to its output.
type echo struct {
	*Base
	starts, stops atomic.Int32
	compute       func(ctx context.Context) error
}

func newEcho(t *testing.T) *echo {
	t.Helper()
	n := &echo{}
	n.Base = NewBase(Info{ID: uuid.New(), Name: "echo", Class: "echo"}, nil,
		WithStartHook(func(context.Context) error { n.starts.Add(1); return nil }),
		WithStopHook(func(context.Context) error { n.stops.Add(1); return nil }),
	)
	_, err := AddInput[string](n.Base, "in", "value to copy")
	require.NoError(t, err)
	_, err = AddOutput[string](n.Base, "out", "copied value")
	require.NoError(t, err)
	return n
}

func (n *echo) Compute(ctx context.Context) error {
	if n.compute != nil {
		return n.compute(ctx)
	}
	v, ok, err := ReadInput[string](n.Base, "in")
	if err != nil || !ok {
		return err
	}
	return WriteOutput(n.Base, "out", v)
}

func TestLifecycle_StartStopIdempotent(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	ctx := context.Background()
	n := newEcho(t)
	require.Equal(t, StateRegistered, n.State())

	// --- Act & Assert ---
	require.NoError(t, n.Start(ctx))
	require.NoError(t, n.Start(ctx))
	assert.Equal(t, StateStarted, n.State())
	assert.Equal(t, int32(1), n.starts.Load())

	require.NoError(t, n.Stop(ctx))
	require.NoError(t, n.Stop(ctx))
	assert.Equal(t, StateStopped, n.State())
	assert.Equal(t, int32(1), n.stops.Load())

	require.NoError(t, n.Start(ctx), "start after stop is a no-op")
	assert.Equal(t, StateStopped, n.State())
	assert.Equal(t, int32(1), n.starts.Load())
}

func TestLifecycle_StopWithoutStartSkipsHook(t *testing.T) {
	t.Parallel()

	n := newEcho(t)
	require.NoError(t, n.Stop(context.Background()))

	assert.Equal(t, StateStopped, n.State())
	assert.Zero(t, n.stops.Load())
}

func TestLifecycle_FailedStartStaysRegistered(t *testing.T) {
	t.Parallel()

	boom := errors.New("port in use")
	b := NewBase(Info{Name: "srv"}, nil, WithStartHook(func(context.Context) error { return boom }))

	err := b.Start(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Equal(t, StateRegistered, b.State())
}

func TestAddPort(t *testing.T) {
	t.Parallel()

	t.Run("duplicate name", func(t *testing.T) {
		n := newEcho(t)
		_, err := AddOutput[int](n.Base, "in", "")
		assert.ErrorIs(t, err, ErrDuplicatePort)
	})

	t.Run("after start", func(t *testing.T) {
		n := newEcho(t)
		require.NoError(t, n.Start(context.Background()))
		_, err := AddInput[int](n.Base, "late", "")
		assert.ErrorIs(t, err, ErrNotRegistered)
	})

	t.Run("declaration order", func(t *testing.T) {
		n := newEcho(t)
		names := []string{}
		for _, p := range n.Ports() {
			names = append(names, p.Name())
		}
		assert.Equal(t, []string{"in", "out"}, names)
		assert.Len(t, n.Inputs(), 1)
		assert.Len(t, n.Outputs(), 1)
	})
}

func TestPortData(t *testing.T) {
	t.Parallel()

	n := newEcho(t)

	t.Run("empty input", func(t *testing.T) {
		c, err := n.GetInputData("in")
		require.NoError(t, err)
		assert.Nil(t, c)
	})

	t.Run("unknown names", func(t *testing.T) {
		_, err := n.GetInputData("nope")
		assert.ErrorIs(t, err, ErrUnknownPort)
		_, err = n.GetInputData("out")
		assert.ErrorIs(t, err, ErrUnknownPort, "outputs are not readable as inputs")
		err = n.SetOutputData("nope", datacell.New("x"))
		assert.ErrorIs(t, err, ErrUnknownPort)
	})

	t.Run("type mismatch keeps previous value", func(t *testing.T) {
		require.NoError(t, n.SetOutputData("out", datacell.New("first")))
		err := n.SetOutputData("out", datacell.New(42))
		require.ErrorIs(t, err, datacell.ErrTypeMismatch)

		p, err := n.Output("out")
		require.NoError(t, err)
		assert.Equal(t, "first", p.Get().String())
	})
}

func TestExecute(t *testing.T) {
	t.Parallel()

	t.Run("refuses nodes that are not started", func(t *testing.T) {
		n := newEcho(t)
		err := Execute(context.Background(), n)
		assert.ErrorIs(t, err, ErrNotStarted)
	})

	t.Run("computes and returns to idle", func(t *testing.T) {
		ctx := context.Background()
		n := newEcho(t)
		require.NoError(t, n.Start(ctx))
		in, err := n.Input("in")
		require.NoError(t, err)
		require.NoError(t, in.Put(datacell.New("hello")))

		require.NoError(t, Execute(ctx, n))

		assert.Equal(t, StateIdle, n.State())
		out, err := n.Output("out")
		require.NoError(t, err)
		assert.Equal(t, "hello", out.Get().String())
	})

	t.Run("recovers panics", func(t *testing.T) {
		ctx := context.Background()
		n := newEcho(t)
		n.compute = func(context.Context) error { panic("kaboom") }
		require.NoError(t, n.Start(ctx))

		err := Execute(ctx, n)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "kaboom")
		assert.Equal(t, StateIdle, n.State())
	})

	t.Run("never runs concurrently with itself", func(t *testing.T) {
		ctx := context.Background()
		n := newEcho(t)
		var active, maxActive atomic.Int32
		n.compute = func(context.Context) error {
			cur := active.Add(1)
			for {
				prev := maxActive.Load()
				if cur <= prev || maxActive.CompareAndSwap(prev, cur) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			active.Add(-1)
			return nil
		}
		require.NoError(t, n.Start(ctx))

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, Execute(ctx, n))
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(1), maxActive.Load())
	})

	t.Run("consumes only the inputs compute was given", func(t *testing.T) {
		ctx := context.Background()
		n := newEcho(t)
		in, err := n.Input("in")
		require.NoError(t, err)
		n.compute = func(context.Context) error {
			v, _, err := ReadInput[string](n.Base, "in")
			require.NoError(t, err)
			assert.Equal(t, "first", v)
			// A value delivered by an upstream node while this one computes.
			return in.Put(datacell.New("second"))
		}
		require.NoError(t, n.Start(ctx))
		require.NoError(t, in.Put(datacell.New("first")))

		require.NoError(t, Execute(ctx, n, ConsumeInputs()))

		got, ok, err := ReadInput[string](n.Base, "in")
		require.NoError(t, err)
		assert.True(t, ok, "the later delivery survives")
		assert.Equal(t, "second", got)
	})

	t.Run("consumes inputs even when compute fails", func(t *testing.T) {
		ctx := context.Background()
		n := newEcho(t)
		n.compute = func(context.Context) error { return errors.New("nope") }
		require.NoError(t, n.Start(ctx))
		in, err := n.Input("in")
		require.NoError(t, err)
		require.NoError(t, in.Put(datacell.New("x")))

		require.Error(t, Execute(ctx, n, ConsumeInputs()))

		assert.Nil(t, in.Get())
		assert.Equal(t, StateIdle, n.State())
	})
}

func TestDecodeConfig(t *testing.T) {
	t.Parallel()

	type cfg struct {
		URL     string        `flow:"url"`
		Timeout time.Duration `flow:"timeout"`
		Retries int           `flow:"retries"`
	}

	t.Run("weakly typed", func(t *testing.T) {
		var c cfg
		err := DecodeConfig(map[string]any{"url": "http://x", "timeout": "2s", "retries": "3"}, &c)
		require.NoError(t, err)
		assert.Equal(t, cfg{URL: "http://x", Timeout: 2 * time.Second, Retries: 3}, c)
	})

	t.Run("unknown keys rejected", func(t *testing.T) {
		var c cfg
		err := DecodeConfig(map[string]any{"uri": "http://x"}, &c)
		assert.ErrorContains(t, err, "uri")
	})
}
