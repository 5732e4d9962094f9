// Package flowdesc is the format-agnostic description of a graph: which
// nodes to create, how to configure them, and which ports to connect. The
// flowfile package reads descriptions from disk; graph.Load builds them.
package flowdesc

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/vk/flowgrid/internal/portaddr"
)

// Description is a whole graph.
type Description struct {
	Name  string     `yaml:"name" json:"name"`
	Nodes []NodeSpec `yaml:"nodes" json:"nodes"`
	Edges []EdgeSpec `yaml:"edges" json:"edges"`
}

// NodeSpec describes one node. ID is optional; a fresh one is generated
// when it is empty.
type NodeSpec struct {
	ID     string         `yaml:"id,omitempty" json:"id,omitempty"`
	Class  string         `yaml:"class" json:"class"`
	Name   string         `yaml:"name" json:"name"`
	Config map[string]any `yaml:"config,omitempty" json:"config,omitempty"`
	// Inputs seeds input ports before the first pass.
	Inputs map[string]any `yaml:"inputs,omitempty" json:"inputs,omitempty"`
}

// EdgeSpec connects an output port to an input port.
type EdgeSpec struct {
	From portaddr.Ref `yaml:"from" json:"from"`
	To   portaddr.Ref `yaml:"to" json:"to"`
}

func (e EdgeSpec) String() string { return e.From.String() + " -> " + e.To.String() }

// ParseID returns the node's UUID, or uuid.Nil when none was given.
func (s NodeSpec) ParseID() (uuid.UUID, error) {
	if s.ID == "" {
		return uuid.Nil, nil
	}
	return uuid.Parse(s.ID)
}

// Validate reports every structural problem in the description. It does not
// look at classes or ports; that happens when the graph is built.
func (d *Description) Validate() error {
	var result *multierror.Error

	names := make(map[string]int)
	ids := make(map[uuid.UUID]int)
	for i, n := range d.Nodes {
		where := fmt.Sprintf("node #%d", i+1)
		if n.Name != "" {
			where = fmt.Sprintf("node %q", n.Name)
		}

		if n.Class == "" {
			result = multierror.Append(result, fmt.Errorf("%s: missing class", where))
		}
		switch {
		case n.Name == "":
			result = multierror.Append(result, fmt.Errorf("%s: missing name", where))
		case !portaddr.ValidName(n.Name):
			result = multierror.Append(result, fmt.Errorf("%s: invalid name", where))
		default:
			if prev, ok := names[n.Name]; ok {
				result = multierror.Append(result, fmt.Errorf("%s: duplicate name, first used by node #%d", where, prev+1))
			} else {
				names[n.Name] = i
			}
		}

		id, err := n.ParseID()
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: malformed id %q: %w", where, n.ID, err))
			continue
		}
		if id == uuid.Nil {
			continue
		}
		if prev, ok := ids[id]; ok {
			result = multierror.Append(result, fmt.Errorf("%s: duplicate id %s, first used by node #%d", where, id, prev+1))
		} else {
			ids[id] = i
		}
	}

	for i, e := range d.Edges {
		if e.From.IsZero() || e.To.IsZero() {
			result = multierror.Append(result, fmt.Errorf("edge #%d: both endpoints are required", i+1))
		}
	}

	return result.ErrorOrNil()
}
