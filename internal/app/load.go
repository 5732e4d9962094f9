package app

import (
	"context"
	"fmt"

	"github.com/mitchellh/go-homedir"
	"github.com/vk/flowgrid/internal/env"
	"github.com/vk/flowgrid/internal/flowdesc"
	"github.com/vk/flowgrid/internal/flowfile"
	"github.com/vk/flowgrid/internal/modload"
	"github.com/vk/flowgrid/internal/nodeplugin"
	"github.com/vk/flowgrid/internal/registry"
)

func (a *App) loadFlow() (*flowdesc.Description, error) {
	a.logger.Debug("Loading flow...", "flow_path", a.config.FlowPath)
	desc, err := flowfile.Load(a.fs, a.config.FlowPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load flow: %w", err)
	}
	a.logger.Info("Flow loaded successfully.", "name", desc.Name, "nodes", len(desc.Nodes), "edges", len(desc.Edges))
	return desc, nil
}

// newEnv creates the environment with the compiled-in classes installed and
// the modules directory loaded. The caller owns the returned Env and must
// Close it.
func (a *App) newEnv(ctx context.Context) (*env.Env, error) {
	factory := registry.New()
	if err := factory.Install(a.modules...); err != nil {
		return nil, fmt.Errorf("failed to register built-in modules: %w", err)
	}
	a.logger.Debug("All Go modules registered.", "count", len(a.modules), "classes", factory.Len())

	loader := modload.New(
		modload.WithFs(a.fs),
		modload.WithLogger(a.logger),
		modload.WithOpener(".flowmod", nodeplugin.Opener{Logger: a.logger, Level: a.level}),
	)
	opts := []env.Option{
		env.WithLogger(a.logger),
		env.WithWorkers(a.config.Workers),
		env.WithModuleLoader(loader),
	}
	if a.tracer != nil {
		opts = append(opts, env.WithTracerProvider(a.tracer))
	}
	e := env.Create(factory, opts...)

	if a.config.ModulesPath == "" {
		return e, nil
	}
	dir, err := homedir.Expand(a.config.ModulesPath)
	if err != nil {
		_ = e.Close()
		return nil, fmt.Errorf("failed to expand modules path: %w", err)
	}
	report, err := e.LoadModules(ctx, dir)
	if err != nil {
		_ = e.Close()
		return nil, fmt.Errorf("failed to load modules: %w", err)
	}
	a.logger.Debug("Modules directory processed.", "loaded", len(report.Loaded), "skipped", len(report.Skipped))
	return e, nil
}
