package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/vk/flowgrid/internal/ctxlog"
	"github.com/vk/flowgrid/internal/graph"
)

// Run executes the main application logic: build the graph described by
// the flow file, start its nodes, run one pass (or keep running passes
// with Loop until ctx is cancelled or the process is interrupted), then
// stop the nodes and release the environment.
//
// Node computation failures are logged and counted but do not fail Run;
// only load, start and stop failures do.
func (a *App) Run(ctx context.Context) (err error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	desc, err := a.loadFlow()
	if err != nil {
		return err
	}

	e, err := a.newEnv(ctx)
	if err != nil {
		return err
	}
	a.env = e
	defer func() {
		if closeErr := e.Close(); closeErr != nil {
			err = multierror.Append(err, fmt.Errorf("failed to close environment: %w", closeErr))
		}
	}()

	g := graph.New("main", e, a.config.graphOptions()...)
	g.OnError.Bind("Log", func(err error) {
		a.failures.Add(1)
		a.logger.Error("Caught graph exception.", "error", err)
	})

	if err := g.Load(ctx, desc); err != nil {
		return fmt.Errorf("failed to build graph: %w", err)
	}
	a.logger.Debug("Graph built.", "nodes", g.Len(), "edges", len(g.Edges()))

	if a.config.Describe {
		fmt.Fprintln(a.outW, g.Describe())
		return nil
	}

	if g.Len() == 0 {
		a.logger.Warn("No nodes found in flow, execution not required.")
		return nil
	}

	if a.config.HealthcheckPort > 0 {
		a.startHealthcheckServer(a.config.HealthcheckPort)
		defer func() {
			if closeErr := a.closeHealthcheckServer(); closeErr != nil {
				err = multierror.Append(err, closeErr)
			}
		}()
	}

	if err := g.StartAll(ctx); err != nil {
		stopErr := g.StopAll(context.Background())
		return multierror.Append(fmt.Errorf("failed to start nodes: %w", err), stopErr).ErrorOrNil()
	}
	defer func() {
		if stopErr := g.StopAll(context.Background()); stopErr != nil {
			err = multierror.Append(err, fmt.Errorf("failed to stop nodes: %w", stopErr))
		}
	}()

	a.logger.Info("Starting execution.", "workers", e.Workers(), "loop", a.config.Loop)
	if err := a.runPasses(ctx, g); err != nil {
		return err
	}

	if n := a.failures.Load(); n > 0 {
		a.logger.Warn("Execution finished with errors.", "passes", e.Completed(), "failures", n)
	} else {
		a.logger.Info("Execution finished.", "passes", e.Completed())
	}
	return nil
}

func (a *App) runPasses(ctx context.Context, g *graph.Graph) error {
	if !a.config.Loop {
		g.Run(ctx)
		return a.env.WaitContext(ctx)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(a.config.LoopInterval)
	defer ticker.Stop()
loop:
	for {
		g.Run(ctx)
		if err := a.env.WaitContext(ctx); err != nil {
			break
		}
		select {
		case <-ctx.Done():
			break loop
		case <-ticker.C:
		}
	}

	a.logger.Info("Loop interrupted, draining in-flight passes.")
	// Dispatched tasks still finish; nodes must not be stopped underneath
	// them.
	a.env.Wait()
	return nil
}
