package graph

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/vk/flowgrid/internal/dag"
	"github.com/vk/flowgrid/internal/datacell"
	"github.com/vk/flowgrid/internal/env"
	"github.com/vk/flowgrid/internal/event"
	"github.com/vk/flowgrid/internal/node"
	"github.com/vk/flowgrid/internal/port"
	"github.com/xlab/treeprint"
)

// FailurePolicy decides what happens downstream of a failed node.
type FailurePolicy int

const (
	// ContinueDependents runs dependents anyway; they see whatever their
	// inputs held before the failure.
	ContinueDependents FailurePolicy = iota
	// SkipDependents passes over every descendant of a failed node for the
	// rest of the pass.
	SkipDependents
)

// ParseFailurePolicy reads "continue" or "skip".
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch s {
	case "continue", "":
		return ContinueDependents, nil
	case "skip":
		return SkipDependents, nil
	}
	return 0, fmt.Errorf("unknown failure policy %q, want continue or skip", s)
}

// InputRetention decides whether input values outlive the pass that
// consumed them.
type InputRetention int

const (
	// RetainInputs keeps the last value on each input.
	RetainInputs InputRetention = iota
	// ClearInputs empties a node's inputs after it computes.
	ClearInputs
)

// ParseInputRetention reads "retain" or "clear".
func ParseInputRetention(s string) (InputRetention, error) {
	switch s {
	case "retain", "":
		return RetainInputs, nil
	case "clear":
		return ClearInputs, nil
	}
	return 0, fmt.Errorf("unknown input retention %q, want retain or clear", s)
}

// Option configures a Graph.
type Option func(*Graph)

func WithFailurePolicy(p FailurePolicy) Option {
	return func(g *Graph) { g.failure = p }
}

func WithInputRetention(r InputRetention) Option {
	return func(g *Graph) { g.retention = r }
}

// Edge is one output-to-input connection.
type Edge struct {
	From     node.Node
	FromPort *port.Port
	To       node.Node
	ToPort   *port.Port
}

func (e Edge) String() string {
	return fmt.Sprintf("%s.%s -> %s.%s", e.From.Name(), e.FromPort.Name(), e.To.Name(), e.ToPort.Name())
}

// Graph is a set of nodes wired together, bound to an environment.
type Graph struct {
	name string
	env  *env.Env

	// OnError receives a *ComputeError for every failed compute.
	OnError *event.Dispatcher[error]

	failure   FailurePolicy
	retention InputRetention

	mu     sync.RWMutex
	nodes  []node.Node
	byID   map[uuid.UUID]node.Node
	byName map[string]node.Node
	edges  []Edge
	topo   *dag.Graph[uuid.UUID]
}

// New creates an empty graph.
func New(name string, e *env.Env, opts ...Option) *Graph {
	g := &Graph{
		name:    name,
		env:     e,
		OnError: event.NewDispatcher[error](),
		byID:    make(map[uuid.UUID]node.Node),
		byName:  make(map[string]node.Node),
		topo:    dag.New[uuid.UUID](),
	}
	g.OnError.OnPanic = func(label string, recovered any) {
		e.Logger().Error("Error handler panicked.", "graph", name, "handler", label, "panic", recovered)
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Graph) Name() string  { return g.name }
func (g *Graph) Env() *env.Env { return g.env }

// Len is the number of nodes.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// Nodes returns the nodes in the order they were declared.
func (g *Graph) Nodes() []node.Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return slices.Clone(g.nodes)
}

// Edges returns the connections in the order they were declared.
func (g *Graph) Edges() []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return slices.Clone(g.edges)
}

// Node finds a node by name, or by ID in its string form.
func (g *Graph) Node(ref string) (node.Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.lookup(ref, g.byName, g.byID)
}

func (g *Graph) lookup(ref string, byName map[string]node.Node, byID map[uuid.UUID]node.Node) (node.Node, bool) {
	if n, ok := byName[ref]; ok {
		return n, true
	}
	if id, err := uuid.Parse(ref); err == nil {
		n, ok := byID[id]
		return n, ok
	}
	return nil, false
}

// Visit calls fn for each node in declaration order. fn runs without the
// graph lock held.
func (g *Graph) Visit(fn func(node.Node)) {
	for _, n := range g.Nodes() {
		fn(n)
	}
}

// StartAll starts every node. All nodes are attempted; the failures are
// returned together.
func (g *Graph) StartAll(ctx context.Context) error {
	var result *multierror.Error
	g.Visit(func(n node.Node) {
		if err := n.Start(ctx); err != nil {
			result = multierror.Append(result, err)
		}
	})
	return result.ErrorOrNil()
}

// StopAll stops every node, collecting failures like StartAll.
func (g *Graph) StopAll(ctx context.Context) error {
	var result *multierror.Error
	g.Visit(func(n node.Node) {
		if err := n.Stop(ctx); err != nil {
			result = multierror.Append(result, err)
		}
	})
	return result.ErrorOrNil()
}

// Describe renders the graph as a tree: nodes in dependency order, each
// with its ports and outgoing edges.
func (g *Graph) Describe() string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	tree := treeprint.NewWithRoot(fmt.Sprintf("graph %s (%d nodes, %d edges)", g.name, len(g.nodes), len(g.edges)))
	order, err := g.topo.TopologicalOrder()
	if err != nil {
		order = make([]uuid.UUID, 0, len(g.nodes))
		for _, n := range g.nodes {
			order = append(order, n.ID())
		}
	}

	for _, id := range order {
		n := g.byID[id]
		branch := tree.AddMetaBranch(n.Class(), n.Name())
		for _, p := range n.Ports() {
			branch.AddMetaNode(p.Direction().String(), fmt.Sprintf("%s %s", p.Name(), datacell.TypeName(p.Type())))
		}
		for _, e := range g.edges {
			if e.From.ID() == id {
				branch.AddMetaNode("edge", e.String())
			}
		}
	}
	return tree.String()
}
