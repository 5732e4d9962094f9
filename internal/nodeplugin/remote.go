package nodeplugin

import (
	"context"
	"fmt"

	"github.com/vk/flowgrid/internal/datacell"
	"github.com/vk/flowgrid/internal/node"
	"github.com/vk/flowgrid/internal/port"
	"github.com/vk/flowgrid/internal/registry"
)

// Module registers a proxy class for every class in a manifest.
type Module struct {
	Source   string
	Manifest Manifest
	Provider Provider
}

// Register implements registry.Module.
func (m *Module) Register(f *registry.Factory) error {
	for _, spec := range m.Manifest.Classes {
		if err := spec.Validate(); err != nil {
			return err
		}
		ctor := func(info node.Info, env node.Env) (node.Node, error) {
			return newRemoteNode(info, env, spec, m.Provider)
		}
		if err := f.RegisterNodeClass(spec.Key, spec.Category, ctor); err != nil {
			return err
		}
	}
	return nil
}

// remoteNode forwards Compute to the module process.
type remoteNode struct {
	*node.Base
	spec     ClassSpec
	provider Provider
	config   map[string]any
}

func newRemoteNode(info node.Info, env node.Env, spec ClassSpec, provider Provider) (*remoteNode, error) {
	n := &remoteNode{
		Base:     node.NewBase(info, env),
		spec:     spec,
		provider: provider,
	}
	for _, ps := range spec.Inputs {
		if err := declare(n.Base, ps, port.Input); err != nil {
			return nil, err
		}
	}
	for _, ps := range spec.Outputs {
		if err := declare(n.Base, ps, port.Output); err != nil {
			return nil, err
		}
	}
	return n, nil
}

func declare(b *node.Base, ps PortSpec, dir port.Direction) error {
	typ, err := GoType(ps.Type)
	if err != nil {
		return err
	}
	_, err = b.AddPort(ps.Name, dir, typ, ps.Description)
	return err
}

// Configure keeps the raw configuration; it is sent with every request.
func (n *remoteNode) Configure(raw map[string]any) error {
	n.config = raw
	return nil
}

func (n *remoteNode) Compute(ctx context.Context) error {
	req := ComputeRequest{
		Class:    n.spec.Key,
		NodeID:   n.ID().String(),
		NodeName: n.Name(),
		Config:   make(map[string]Value, len(n.config)),
		Inputs:   make(map[string]Value),
	}
	for k, v := range n.config {
		w, err := EncodeGo(v)
		if err != nil {
			return fmt.Errorf("config %q: %w", k, err)
		}
		req.Config[k] = w
	}
	for _, ps := range n.spec.Inputs {
		c, err := n.GetInputData(ps.Name)
		if err != nil {
			return err
		}
		if c == nil || c.Value() == nil {
			continue
		}
		w, err := EncodeGo(c.Value())
		if err != nil {
			return fmt.Errorf("input %q: %w", ps.Name, err)
		}
		req.Inputs[ps.Name] = w
	}

	resp, err := n.provider.Compute(req)
	if err != nil {
		return fmt.Errorf("remote compute of %q: %w", n.spec.Key, err)
	}

	for _, ps := range n.spec.Outputs {
		w, ok := resp.Outputs[ps.Name]
		if !ok {
			continue
		}
		val, err := Decode(w)
		if err != nil {
			return fmt.Errorf("output %q: %w", ps.Name, err)
		}
		native, err := toPortValue(val, ps.Type)
		if err != nil {
			return fmt.Errorf("output %q: %w", ps.Name, err)
		}
		if err := n.SetOutputData(ps.Name, datacell.Of(native)); err != nil {
			return err
		}
	}
	return nil
}
