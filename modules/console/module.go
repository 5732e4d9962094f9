// Package console provides the "console" node class, which logs whatever
// arrives on its input.
package console

import (
	"context"

	"github.com/vk/flowgrid/internal/node"
	"github.com/vk/flowgrid/internal/registry"
)

// Key is the class key.
const Key = "console"

// Module implements the registry.Module interface for this package.
type Module struct{}

// Node logs the text form of its input cell at info level on every pass.
type Node struct {
	*node.Base
}

// New creates a console node.
func New(info node.Info, env node.Env) (node.Node, error) {
	n := &Node{Base: node.NewBase(info, env)}
	if _, err := node.AddInput[any](n.Base, "in", "value to print"); err != nil {
		return nil, err
	}
	return n, nil
}

func (n *Node) Compute(context.Context) error {
	c, err := n.GetInputData("in")
	if err != nil {
		return err
	}
	if c == nil {
		n.Logger().Debug("Nothing to print, input is empty.")
		return nil
	}
	n.Logger().Info("Result", "value", c.String())
	return nil
}

// Register registers the class with the factory.
func (Module) Register(f *registry.Factory) error {
	return f.RegisterNodeClass(Key, "Output", New)
}
