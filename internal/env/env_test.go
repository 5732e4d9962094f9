package env

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/flowgrid/internal/modload"
	"github.com/vk/flowgrid/internal/registry"
)

func newTestEnv(opts ...Option) *Env {
	opts = append([]Option{WithLogger(slog.New(slog.DiscardHandler))}, opts...)
	return Create(registry.New(), opts...)
}

func TestWait_NothingInFlight(t *testing.T) {
	t.Parallel()

	e := newTestEnv()

	done := make(chan struct{})
	go func() {
		e.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait blocked with no passes open")
	}
	assert.Zero(t, e.Pending())
}

func TestPass_DrainsNestedTasks(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	e := newTestEnv(WithWorkers(2))
	var ran atomic.Int32
	p := e.BeginPass("nested")

	// --- Act ---
	// Each task fans out into two more, three levels deep.
	var spawn func(depth int)
	spawn = func(depth int) {
		ran.Add(1)
		if depth == 0 {
			return
		}
		for range 2 {
			p.Go(func() { spawn(depth - 1) })
		}
	}
	p.Go(func() { spawn(3) })
	p.Seal()
	e.Wait()

	// --- Assert ---
	assert.Equal(t, int32(15), ran.Load())
	assert.Zero(t, e.Pending())
	assert.Equal(t, int64(1), e.Completed())
}

func TestPass_GoDoesNotBlockWhenWorkersBusy(t *testing.T) {
	t.Parallel()

	e := newTestEnv(WithWorkers(1))
	release := make(chan struct{})
	p := e.BeginPass("busy")

	submitted := make(chan struct{})
	go func() {
		for range 5 {
			p.Go(func() { <-release })
		}
		close(submitted)
	}()

	select {
	case <-submitted:
	case <-time.After(time.Second):
		t.Fatal("Go blocked on a saturated pool")
	}
	assert.Equal(t, 1, e.Pending())

	close(release)
	p.Seal()
	e.Wait()
	assert.Zero(t, e.Pending())
}

func TestPass_WorkerBound(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	e := newTestEnv(WithWorkers(3))
	var current, peak atomic.Int32
	p := e.BeginPass("bound")

	// --- Act ---
	for range 20 {
		p.Go(func() {
			n := current.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			current.Add(-1)
		})
	}
	p.Seal()
	e.Wait()

	// --- Assert ---
	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.Positive(t, peak.Load())
}

func TestWaitContext_Cancelled(t *testing.T) {
	t.Parallel()

	e := newTestEnv()
	release := make(chan struct{})
	p := e.BeginPass("stuck")
	p.Go(func() { <-release })
	p.Seal()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := e.WaitContext(ctx)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	close(release)
	require.NoError(t, e.WaitContext(context.Background()))
}

func TestSeal_Idempotent(t *testing.T) {
	t.Parallel()

	e := newTestEnv()
	p := e.BeginPass("twice")
	p.Seal()
	p.Seal()

	<-p.Done()
	assert.Equal(t, int64(1), e.Completed())
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func TestLoadModulesAndClose(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/mods/a.test", []byte("x"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/mods/b.test", []byte("x"), 0o644))

	var order []string
	opener := modload.OpenerFunc(func(_ context.Context, path string) (registry.Module, io.Closer, error) {
		mod := registry.ModuleFunc(func(*registry.Factory) error { return nil })
		return mod, closerFunc(func() error {
			order = append(order, path)
			if path == "/mods/b.test" {
				return errors.New("b refused to close")
			}
			return nil
		}), nil
	})
	loader := modload.New(modload.WithFs(fs), modload.WithOpener(".test", opener), modload.WithLogger(slog.New(slog.DiscardHandler)))
	e := newTestEnv(WithModuleLoader(loader))

	// --- Act ---
	report, err := e.LoadModules(context.Background(), "/mods")
	require.NoError(t, err)
	closeErr := e.Close()

	// --- Assert ---
	assert.Len(t, report.Loaded, 2)
	assert.Equal(t, []string{"/mods/b.test", "/mods/a.test"}, order, "closers run in reverse load order")
	assert.ErrorContains(t, closeErr, "b refused to close")
	assert.NoError(t, e.Close(), "a second close has nothing left to release")
}
