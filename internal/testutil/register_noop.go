package testutil

import (
	"context"

	"github.com/vk/flowgrid/internal/node"
	"github.com/vk/flowgrid/internal/registry"
)

// NoOpModule registers a "noop" class with one input and one output of type
// any that does nothing. It is useful for tests about wiring that never
// look at values.
type NoOpModule struct{}

type noopNode struct{ *node.Base }

func (*noopNode) Compute(context.Context) error { return nil }

// Register registers the "noop" class.
func (NoOpModule) Register(f *registry.Factory) error {
	return f.RegisterNodeClass("noop", "Test", func(info node.Info, env node.Env) (node.Node, error) {
		n := &noopNode{Base: node.NewBase(info, env)}
		if _, err := node.AddInput[any](n.Base, "in", ""); err != nil {
			return nil, err
		}
		if _, err := node.AddOutput[any](n.Base, "out", ""); err != nil {
			return nil, err
		}
		return n, nil
	})
}

var _ registry.Module = NoOpModule{}
