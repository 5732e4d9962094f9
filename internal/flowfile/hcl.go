package flowfile

import (
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vk/flowgrid/internal/ctyconv"
	"github.com/vk/flowgrid/internal/flowdesc"
	"github.com/vk/flowgrid/internal/portaddr"
	"github.com/zclconf/go-cty/cty"
)

// fileRoot is the top level of an HCL flow file.
type fileRoot struct {
	Name  *string      `hcl:"name,optional"`
	Nodes []*nodeBlock `hcl:"node,block"`
	Edges []*edgeBlock `hcl:"edge,block"`
}

// nodeBlock is `node "<class>" "<name>" { ... }`.
type nodeBlock struct {
	Class  string         `hcl:"class,label"`
	Name   string         `hcl:"name,label"`
	ID     *string        `hcl:"id,optional"`
	Config hcl.Expression `hcl:"config,optional"`
	Inputs hcl.Expression `hcl:"inputs,optional"`
}

// edgeBlock is `edge { from = a.out  to = b.in }`. Endpoints are either bare
// traversals or strings.
type edgeBlock struct {
	From hcl.Expression `hcl:"from"`
	To   hcl.Expression `hcl:"to"`
}

func parseHCL(src []byte, filename string) (*flowdesc.Description, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", filename, diags)
	}

	var root fileRoot
	if diags := gohcl.DecodeBody(file.Body, nil, &root); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", filename, diags)
	}

	desc := &flowdesc.Description{}
	if root.Name != nil {
		desc.Name = *root.Name
	}

	for _, nb := range root.Nodes {
		spec := flowdesc.NodeSpec{Class: nb.Class, Name: nb.Name}
		if nb.ID != nil {
			spec.ID = *nb.ID
		}
		var err error
		if spec.Config, err = objectAttr(nb.Config); err != nil {
			return nil, fmt.Errorf("node %q config: %w", nb.Name, err)
		}
		if spec.Inputs, err = objectAttr(nb.Inputs); err != nil {
			return nil, fmt.Errorf("node %q inputs: %w", nb.Name, err)
		}
		desc.Nodes = append(desc.Nodes, spec)
	}

	for i, eb := range root.Edges {
		from, err := portRef(eb.From)
		if err != nil {
			return nil, fmt.Errorf("edge #%d from: %w", i+1, err)
		}
		to, err := portRef(eb.To)
		if err != nil {
			return nil, fmt.Errorf("edge #%d to: %w", i+1, err)
		}
		desc.Edges = append(desc.Edges, flowdesc.EdgeSpec{From: from, To: to})
	}

	return desc, nil
}

// objectAttr evaluates an optional object-valued attribute into Go values.
func objectAttr(expr hcl.Expression) (map[string]any, error) {
	if expr == nil {
		return nil, nil
	}
	val, diags := expr.Value(nil)
	if diags.HasErrors() {
		return nil, diags
	}
	if val.IsNull() {
		return nil, nil
	}
	if !val.Type().IsObjectType() && !val.Type().IsMapType() {
		return nil, fmt.Errorf("want an object, got %s", val.Type().FriendlyName())
	}
	return ctyconv.MapToGo(val)
}

// portRef reads an edge endpoint. `a.out` is taken as a traversal; a quoted
// string is parsed, which is how endpoints naming a node by UUID are written.
func portRef(expr hcl.Expression) (portaddr.Ref, error) {
	if traversal, diags := hcl.AbsTraversalForExpr(expr); !diags.HasErrors() {
		parts := make([]string, 0, len(traversal))
		for _, step := range traversal {
			switch s := step.(type) {
			case hcl.TraverseRoot:
				parts = append(parts, s.Name)
			case hcl.TraverseAttr:
				parts = append(parts, s.Name)
			default:
				return portaddr.Ref{}, fmt.Errorf("unsupported reference step at %s", step.SourceRange())
			}
		}
		return portaddr.Parse(strings.Join(parts, "."))
	}

	val, diags := expr.Value(nil)
	if diags.HasErrors() {
		return portaddr.Ref{}, diags
	}
	if val.IsNull() || val.Type() != cty.String {
		return portaddr.Ref{}, fmt.Errorf("want a node.port reference or string")
	}
	return portaddr.Parse(val.AsString())
}
