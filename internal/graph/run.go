package graph

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/vk/flowgrid/internal/env"
	"github.com/vk/flowgrid/internal/node"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// pass is the bookkeeping for one Run.
type pass struct {
	g    *Graph
	work *env.Pass

	dependents map[uuid.UUID][]node.Node
	pending    map[uuid.UUID]*atomic.Int32
	skipped    map[uuid.UUID]*atomic.Bool
}

// Run schedules one pass over the graph and returns without waiting for it.
// Every node computes at most once per pass, after all of its upstream
// nodes. Use the environment's Wait, or the returned pass's Done channel,
// to wait for completion.
func (g *Graph) Run(ctx context.Context) *env.Pass {
	g.mu.RLock()
	p := &pass{
		g:          g,
		dependents: make(map[uuid.UUID][]node.Node, len(g.nodes)),
		pending:    make(map[uuid.UUID]*atomic.Int32, len(g.nodes)),
		skipped:    make(map[uuid.UUID]*atomic.Bool, len(g.nodes)),
	}
	var roots []node.Node
	for _, n := range g.nodes {
		id := n.ID()
		deps, _ := g.topo.Dependencies(id)
		counter := &atomic.Int32{}
		counter.Store(int32(len(deps)))
		p.pending[id] = counter
		p.skipped[id] = &atomic.Bool{}
		if len(deps) == 0 {
			roots = append(roots, n)
		}
		dependents, _ := g.topo.Dependents(id)
		for _, d := range dependents {
			p.dependents[id] = append(p.dependents[id], g.byID[d])
		}
	}
	size := len(g.nodes)
	g.mu.RUnlock()

	p.work = g.env.BeginPass(g.name)
	ctx, span := g.env.Tracer().Start(ctx, "graph.run", trace.WithAttributes(
		attribute.String("graph.name", g.name),
		attribute.Int("graph.nodes", size),
	))
	go func() {
		<-p.work.Done()
		span.End()
	}()

	g.env.Logger().Debug("Graph pass started.", "graph", g.name, "nodes", size, "roots", len(roots))
	for _, n := range roots {
		p.work.Go(func() { p.visit(ctx, n) })
	}
	p.work.Seal()
	return p.work
}

func (p *pass) visit(ctx context.Context, n node.Node) {
	id := n.ID()
	logger := p.g.env.Logger()

	switch {
	case p.skipped[id].Load():
		logger.Debug("Node skipped, an upstream node failed.", "graph", p.g.name, "node", n.Name())
		p.skipDependents(id)
	case !runnable(n.State()):
		logger.Debug("Node passed over, not started.", "graph", p.g.name, "node", n.Name(), "state", n.State())
	default:
		if err := p.compute(ctx, n); err != nil && p.g.failure == SkipDependents {
			p.skipDependents(id)
		}
	}

	for _, d := range p.dependents[id] {
		if p.pending[d.ID()].Add(-1) == 0 {
			p.work.Go(func() { p.visit(ctx, d) })
		}
	}
}

func runnable(s node.State) bool {
	return s == node.StateStarted || s == node.StateIdle || s == node.StateComputing
}

func (p *pass) skipDependents(id uuid.UUID) {
	for _, d := range p.dependents[id] {
		p.skipped[d.ID()].Store(true)
	}
}

// compute runs one node and reports its failure. A node stopped while the
// pass was underway is treated like one that never started.
func (p *pass) compute(ctx context.Context, n node.Node) error {
	ctx, span := p.g.env.Tracer().Start(ctx, "node.compute", trace.WithAttributes(
		attribute.String("node.id", n.ID().String()),
		attribute.String("node.name", n.Name()),
		attribute.String("node.class", n.Class()),
	))
	defer span.End()

	var opts []node.ExecuteOption
	if p.g.retention == ClearInputs {
		opts = append(opts, node.ConsumeInputs())
	}
	err := node.Execute(ctx, n, opts...)
	if err == nil {
		p.g.env.Logger().Debug("Node computed.", "graph", p.g.name, "node", n.Name())
		return nil
	}
	if errors.Is(err, node.ErrNotStarted) {
		return nil
	}

	cerr := &ComputeError{NodeID: n.ID(), Name: n.Name(), Class: n.Class(), Err: err}
	span.RecordError(cerr)
	span.SetStatus(codes.Error, err.Error())
	p.g.env.Logger().Debug("Node compute failed.", "graph", p.g.name, "node", n.Name(), "error", err)
	p.g.OnError.Broadcast(cerr)
	return cerr
}
