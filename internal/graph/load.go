package graph

import (
	"context"
	"fmt"
	"math"
	"reflect"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/vk/flowgrid/internal/ctyconv"
	"github.com/vk/flowgrid/internal/dag"
	"github.com/vk/flowgrid/internal/datacell"
	"github.com/vk/flowgrid/internal/flowdesc"
	"github.com/vk/flowgrid/internal/node"
	"github.com/vk/flowgrid/internal/port"
	"github.com/vk/flowgrid/internal/portaddr"
)

// staging holds a graph under construction. It only replaces the live
// fields once everything checks out.
type staging struct {
	nodes  []node.Node
	byID   map[uuid.UUID]node.Node
	byName map[string]node.Node
	edges  []Edge
	topo   *dag.Graph[uuid.UUID]
	fed    map[*port.Port]Edge
	// broken holds the names and ids of nodes that failed to build, so
	// edges touching them are not reported a second time.
	broken map[string]bool
	errs   *multierror.Error
}

func (s *staging) fail(format string, args ...any) {
	s.errs = multierror.Append(s.errs, fmt.Errorf(format, args...))
}

// Load creates, configures and wires the nodes of desc. It either succeeds
// completely or leaves the graph empty and returns a *BuildError listing
// every problem found. Nodes are left in the Registered state; call
// StartAll before Run.
func (g *Graph) Load(ctx context.Context, desc *flowdesc.Description) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	logger := g.env.Logger().With("graph", g.name)
	buildErr := func(errs *multierror.Error) error {
		logger.Debug("Graph build failed.", "problems", len(errs.Errors))
		return &BuildError{Graph: g.name, Err: errs}
	}

	if len(g.nodes) > 0 {
		return buildErr(multierror.Append(nil, fmt.Errorf("%w: graph is already loaded", ErrMalformedDescription)))
	}
	if desc == nil {
		return buildErr(multierror.Append(nil, fmt.Errorf("%w: no description", ErrMalformedDescription)))
	}
	if err := desc.Validate(); err != nil {
		return buildErr(multierror.Append(nil, fmt.Errorf("%w: %w", ErrMalformedDescription, err)))
	}

	s := &staging{
		byID:   make(map[uuid.UUID]node.Node),
		byName: make(map[string]node.Node),
		topo:   dag.New[uuid.UUID](),
		fed:    make(map[*port.Port]Edge),
		broken: make(map[string]bool),
	}

	for _, spec := range desc.Nodes {
		if err := ctx.Err(); err != nil {
			return err
		}
		g.createNode(s, spec)
	}
	for i, es := range desc.Edges {
		g.connect(s, i, es)
	}
	if s.errs == nil {
		if err := s.topo.DetectCycles(); err != nil {
			s.fail("%w: %w", ErrCycleDetected, err)
		}
	}
	if s.errs != nil {
		return buildErr(s.errs)
	}

	g.nodes, g.byID, g.byName, g.edges, g.topo = s.nodes, s.byID, s.byName, s.edges, s.topo
	logger.Info("Graph loaded.", "nodes", len(g.nodes), "edges", len(g.edges))
	return nil
}

func (g *Graph) createNode(s *staging, spec flowdesc.NodeSpec) {
	n, err := g.newNode(spec)
	if err != nil {
		s.errs = multierror.Append(s.errs, err)
		s.broken[spec.Name] = true
		if spec.ID != "" {
			s.broken[spec.ID] = true
		}
		return
	}
	s.nodes = append(s.nodes, n)
	s.byID[n.ID()] = n
	s.byName[n.Name()] = n
	s.topo.AddNode(n.ID())
}

// newNode creates one node, configures it and seeds its inputs.
func (g *Graph) newNode(spec flowdesc.NodeSpec) (node.Node, error) {
	id, _ := spec.ParseID()
	n, err := g.env.Factory().Create(spec.Class, id, spec.Name, g.env)
	if err != nil {
		return nil, fmt.Errorf("node %q: %w", spec.Name, err)
	}

	if len(spec.Config) > 0 {
		c, ok := n.(node.Configurable)
		if !ok {
			return nil, fmt.Errorf("%w: node %q: class %q takes no configuration", ErrMalformedDescription, spec.Name, spec.Class)
		}
		if err := c.Configure(spec.Config); err != nil {
			return nil, fmt.Errorf("%w: node %q: invalid configuration: %w", ErrMalformedDescription, spec.Name, err)
		}
	}

	for _, name := range ctyconv.SortedKeys(spec.Inputs) {
		p, err := n.Input(name)
		if err != nil {
			return nil, fmt.Errorf("%w: seeding input: %w", ErrMalformedDescription, err)
		}
		v, err := coerce(spec.Inputs[name], p.Type())
		if err != nil {
			return nil, fmt.Errorf("%w: node %q: seeding input %q: %w", ErrMalformedDescription, spec.Name, name, err)
		}
		if err := p.Put(datacell.Of(v)); err != nil {
			return nil, fmt.Errorf("%w: node %q: seeding input %q: %w", ErrMalformedDescription, spec.Name, name, err)
		}
	}
	return n, nil
}

func (g *Graph) connect(s *staging, i int, es flowdesc.EdgeSpec) {
	from, fromPort, ok := g.endpoint(s, i, es.From)
	if !ok {
		return
	}
	to, toPort, ok := g.endpoint(s, i, es.To)
	if !ok {
		return
	}

	if !fromPort.IsOutput() {
		s.fail("%w: edge #%d: %s is an input and cannot feed another port", ErrIncompatibleEdge, i+1, es.From)
		return
	}
	if !toPort.IsInput() {
		s.fail("%w: edge #%d: %s is an output and cannot be fed", ErrIncompatibleEdge, i+1, es.To)
		return
	}
	if prev, taken := s.fed[toPort]; taken {
		s.fail("%w: edge #%d: %s is already fed by %s", ErrIncompatibleEdge, i+1, es.To, prev)
		return
	}
	if err := fromPort.Connect(toPort); err != nil {
		s.fail("%w: edge #%d %s: %w", ErrIncompatibleEdge, i+1, es, err)
		return
	}
	if err := s.topo.AddEdge(from.ID(), to.ID()); err != nil {
		s.fail("%w: edge #%d %s: %w", ErrCycleDetected, i+1, es, err)
		return
	}

	edge := Edge{From: from, FromPort: fromPort, To: to, ToPort: toPort}
	s.fed[toPort] = edge
	s.edges = append(s.edges, edge)
}

// endpoint resolves one side of an edge. Problems are recorded on s.
func (g *Graph) endpoint(s *staging, i int, ref portaddr.Ref) (node.Node, *port.Port, bool) {
	if s.broken[ref.Node] {
		return nil, nil, false
	}
	n, ok := g.lookup(ref.Node, s.byName, s.byID)
	if !ok {
		s.fail("%w: edge #%d: unknown node %q", ErrMalformedDescription, i+1, ref.Node)
		return nil, nil, false
	}
	for _, p := range n.Ports() {
		if p.Name() == ref.Port {
			return n, p, true
		}
	}
	s.fail("%w: edge #%d: node %q: %w: %q", ErrMalformedDescription, i+1, n.Name(), node.ErrUnknownPort, ref.Port)
	return nil, nil, false
}

// coerce converts numbers decoded from a description (ints from YAML,
// float64 from HCL) to a numeric port's declared type. A conversion that
// would truncate, wrap or overflow is refused. Anything else is passed
// through and left to the port's type check.
func coerce(v any, want reflect.Type) (any, error) {
	if v == nil || want == port.Any {
		return v, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Type() == want || !isNumeric(rv.Kind()) || !isNumeric(want.Kind()) {
		return v, nil
	}
	out := rv.Convert(want)
	if isFloat(rv.Kind()) && isFloat(want.Kind()) {
		// Rounding to a narrower float is fine; overflowing to infinity is not.
		if math.IsInf(out.Float(), 0) && !math.IsInf(rv.Float(), 0) {
			return nil, fmt.Errorf("%w: %v overflows %s", port.ErrTypeMismatch, v, datacell.TypeName(want))
		}
		return out.Interface(), nil
	}
	if out.Convert(rv.Type()).Interface() != v {
		return nil, fmt.Errorf("%w: %v does not fit %s without loss", port.ErrTypeMismatch, v, datacell.TypeName(want))
	}
	return out.Interface(), nil
}

func isFloat(k reflect.Kind) bool {
	return k == reflect.Float32 || k == reflect.Float64
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
