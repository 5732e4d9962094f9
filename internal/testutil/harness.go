package testutil

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/vk/flowgrid/internal/env"
	"github.com/vk/flowgrid/internal/flowfile"
	"github.com/vk/flowgrid/internal/graph"
	"github.com/vk/flowgrid/internal/logging"
	"github.com/vk/flowgrid/internal/modload"
	"github.com/vk/flowgrid/internal/registry"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// DumpLogs writes captured output to the test log when FLOW_TEST_LOGS=true.
func DumpLogs(t *testing.T, logs string) {
	t.Helper()
	if os.Getenv("FLOW_TEST_LOGS") == "true" {
		t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logs)
	}
}

// HarnessResult holds the outcome of running a flow.
type HarnessResult struct {
	LogOutput string
	// Err is the first load or lifecycle error. Compute failures do not
	// end a run and are collected in ComputeErrors instead.
	Err           error
	ComputeErrors []error
	Graph         *graph.Graph
	Env           *env.Env
	// Modules is the report of loading Harness.ModulesDir, if set.
	Modules *modload.Report
}

// Harness runs a flow description end to end: parse, build, start, run the
// requested number of passes, stop and close.
type Harness struct {
	Modules      []registry.Module
	GraphOptions []graph.Option
	Workers      int
	// Passes defaults to one.
	Passes int
	// ModulesDir, when set, is loaded into the environment before the
	// flow is built, using the loader ModuleLoader returns if that is set.
	ModulesDir   string
	ModuleLoader func(logger *slog.Logger) *modload.Loader
}

// RunFlow runs an HCL flow once with the given modules installed.
func RunFlow(t *testing.T, flowHCL string, mods ...registry.Module) *HarnessResult {
	t.Helper()
	return Harness{Modules: mods}.Run(context.Background(), t, "main.hcl", flowHCL)
}

// Run executes src, whose format follows filename's extension.
func (h Harness) Run(ctx context.Context, t *testing.T, filename, src string) *HarnessResult {
	t.Helper()

	logBuffer := &SafeBuffer{}
	logger := logging.New(logging.LevelDebug, "text", logBuffer)

	factory := registry.New()
	result := &HarnessResult{}
	defer func() {
		result.LogOutput = logBuffer.String()
		DumpLogs(t, result.LogOutput)
	}()

	if err := factory.Install(h.Modules...); err != nil {
		result.Err = err
		return result
	}
	opts := []env.Option{env.WithLogger(logger), env.WithWorkers(h.Workers)}
	if h.ModuleLoader != nil {
		opts = append(opts, env.WithModuleLoader(h.ModuleLoader(logger)))
	}
	e := env.Create(factory, opts...)
	result.Env = e
	defer e.Close()

	if h.ModulesDir != "" {
		report, err := e.LoadModules(ctx, h.ModulesDir)
		result.Modules = report
		if err != nil {
			result.Err = err
			return result
		}
	}

	desc, err := flowfile.Parse([]byte(src), filename)
	if err != nil {
		result.Err = err
		return result
	}
	name := desc.Name
	if name == "" {
		name = "main"
	}

	g := graph.New(name, e, h.GraphOptions...)
	result.Graph = g
	var mu sync.Mutex
	g.OnError.Bind("harness", func(err error) {
		mu.Lock()
		result.ComputeErrors = append(result.ComputeErrors, err)
		mu.Unlock()
	})

	if err := g.Load(ctx, desc); err != nil {
		result.Err = err
		return result
	}
	if err := g.StartAll(ctx); err != nil {
		result.Err = err
		return result
	}

	passes := h.Passes
	if passes < 1 {
		passes = 1
	}
	for range passes {
		g.Run(ctx)
		e.Wait()
	}

	if err := g.StopAll(ctx); err != nil {
		result.Err = err
	}
	return result
}
