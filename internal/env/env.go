// Package env is the execution environment shared by graphs. It owns the
// logger, the node class factory, the modules loaded from disk, and a
// bounded pool of workers that graph passes submit node tasks to.
//
// Work is tracked per pass. A graph opens a pass with BeginPass, submits
// tasks with Pass.Go (which never blocks the caller), and seals it once its
// roots are dispatched. Wait blocks until every pass that was open at the
// time of the call has drained, including tasks those passes spawn while
// draining.
package env

import (
	"context"
	"io"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/hashicorp/go-multierror"
	"github.com/vk/flowgrid/internal/modload"
	"github.com/vk/flowgrid/internal/registry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"
)

const tracerName = "github.com/vk/flowgrid"

// Env is created once per program run and shared by its graphs.
type Env struct {
	factory *registry.Factory
	logger  *slog.Logger
	loader  *modload.Loader
	tracer  trace.Tracer
	workers int
	sem     *semaphore.Weighted

	mu      sync.Mutex
	passes  map[*Pass]struct{}
	closers []io.Closer

	completed atomic.Int64
}

// Option configures an Env.
type Option func(*Env)

// WithLogger sets the logger handed to nodes and used for environment
// diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Env) { e.logger = logger }
}

// WithWorkers bounds how many node tasks run at once. Values below one are
// ignored.
func WithWorkers(n int) Option {
	return func(e *Env) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithModuleLoader replaces the loader used by LoadModules.
func WithModuleLoader(l *modload.Loader) Option {
	return func(e *Env) { e.loader = l }
}

// WithTracerProvider sets where graph and node spans go. The default is the
// global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Env) { e.tracer = tp.Tracer(tracerName) }
}

// Create builds an environment around factory.
func Create(factory *registry.Factory, opts ...Option) *Env {
	e := &Env{
		factory: factory,
		logger:  slog.Default(),
		workers: runtime.NumCPU(),
		passes:  make(map[*Pass]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.tracer == nil {
		e.tracer = otel.GetTracerProvider().Tracer(tracerName)
	}
	if e.loader == nil {
		e.loader = modload.New(modload.WithLogger(e.logger))
	}
	e.sem = semaphore.NewWeighted(int64(e.workers))
	e.logger.Debug("Environment created.", "workers", e.workers)
	return e
}

func (e *Env) Factory() *registry.Factory { return e.factory }
func (e *Env) Logger() *slog.Logger       { return e.logger }
func (e *Env) Tracer() trace.Tracer       { return e.tracer }
func (e *Env) Workers() int               { return e.workers }

// Completed is the number of passes that have drained since creation.
func (e *Env) Completed() int64 { return e.completed.Load() }

// LoadModules installs the modules found in dir into the factory. Modules
// that fail are reported and skipped; see modload.Loader.Load.
func (e *Env) LoadModules(ctx context.Context, dir string) (*modload.Report, error) {
	report, err := e.loader.Load(ctx, dir, e.factory)
	if report != nil && len(report.Closers) > 0 {
		e.mu.Lock()
		e.closers = append(e.closers, report.Closers...)
		e.mu.Unlock()
	}
	return report, err
}

// Wait blocks until every pass open at the time of the call has drained.
// With nothing in flight it returns immediately.
func (e *Env) Wait() {
	for _, p := range e.openPasses() {
		<-p.done
	}
}

// WaitContext is Wait with cancellation.
func (e *Env) WaitContext(ctx context.Context) error {
	for _, p := range e.openPasses() {
		select {
		case <-p.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Pending reports how many passes have not drained yet.
func (e *Env) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.passes)
}

func (e *Env) openPasses() []*Pass {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*Pass, 0, len(e.passes))
	for p := range e.passes {
		out = append(out, p)
	}
	return out
}

// Close releases module resources. Work still in flight is not cancelled.
func (e *Env) Close() error {
	e.mu.Lock()
	closers := e.closers
	e.closers = nil
	e.mu.Unlock()

	var result *multierror.Error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
