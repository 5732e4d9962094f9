package app

import (
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/spf13/afero"
	"github.com/vk/flowgrid/internal/env"
	"github.com/vk/flowgrid/internal/logging"
	"github.com/vk/flowgrid/internal/registry"
	"go.opentelemetry.io/otel/trace"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW     io.Writer
	config   *Config
	logger   *slog.Logger
	level    logging.Level
	fs       afero.Fs
	modules  []registry.Module
	tracer   trace.TracerProvider
	env      *env.Env
	failures atomic.Int64

	httpServer *http.Server
}

// Option configures an App.
type Option func(*App)

// WithModules replaces the compiled-in node classes.
func WithModules(mods ...registry.Module) Option {
	return func(a *App) { a.modules = mods }
}

// WithFs sets the filesystem flow and module files are read from.
func WithFs(fs afero.Fs) Option {
	return func(a *App) { a.fs = fs }
}

// WithTracerProvider routes graph and node spans to tp.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(a *App) { a.tracer = tp }
}

// NewApp is the constructor for the main application. It returns an App
// with its own isolated logger; nothing is loaded until Run.
func NewApp(outW io.Writer, cfg *Config, opts ...Option) *App {
	logger, level := newLogger(cfg, outW)
	a := &App{
		outW:    outW,
		config:  cfg,
		logger:  logger,
		level:   level,
		fs:      afero.NewOsFs(),
		modules: coreModules,
	}
	for _, opt := range opts {
		opt(a)
	}
	logger.Debug("Logger configured successfully.")
	return a
}

// Logger returns the application's logger.
func (a *App) Logger() *slog.Logger {
	return a.logger
}

// Failures returns how many node computations failed so far.
func (a *App) Failures() int64 {
	return a.failures.Load()
}
