// Package constant provides the "constant" node class, a source that emits
// a configured value on every pass.
package constant

import (
	"context"
	"fmt"

	"github.com/vk/flowgrid/internal/node"
	"github.com/vk/flowgrid/internal/registry"
)

const Key = "constant"

// Module implements the registry.Module interface for this package.
type Module struct{}

// Config is the node's configuration.
type Config struct {
	Value any `flow:"value"`
}

type Node struct {
	*node.Base
	cfg Config
	set bool
}

func New(info node.Info, env node.Env) (node.Node, error) {
	n := &Node{Base: node.NewBase(info, env)}
	if _, err := node.AddOutput[any](n.Base, "out", "the configured value"); err != nil {
		return nil, err
	}
	return n, nil
}

func (n *Node) Configure(raw map[string]any) error {
	if err := node.DecodeConfig(raw, &n.cfg); err != nil {
		return err
	}
	_, n.set = raw["value"]
	return nil
}

func (n *Node) Compute(context.Context) error {
	if !n.set {
		return fmt.Errorf("no value configured")
	}
	return node.WriteOutput(n.Base, "out", n.cfg.Value)
}

// Register registers the class with the factory.
func (Module) Register(f *registry.Factory) error {
	return f.RegisterNodeClass(Key, "Input", New)
}
