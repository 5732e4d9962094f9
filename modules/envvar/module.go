// Package envvar provides the "env" node class, which reads one variable
// from the process environment.
package envvar

import (
	"context"
	"fmt"
	"os"

	"github.com/vk/flowgrid/internal/node"
	"github.com/vk/flowgrid/internal/registry"
)

const Key = "env"

// Module implements the registry.Module interface for this package.
type Module struct{}

// Config names the variable to read. Default is used when it is unset.
type Config struct {
	Name    string  `flow:"name"`
	Default *string `flow:"default"`
}

type Node struct {
	*node.Base
	cfg    Config
	lookup func(string) (string, bool)
}

func New(info node.Info, env node.Env) (node.Node, error) {
	n := &Node{Base: node.NewBase(info, env), lookup: os.LookupEnv}
	if _, err := node.AddOutput[string](n.Base, "value", "the variable's value, or the default"); err != nil {
		return nil, err
	}
	if _, err := node.AddOutput[bool](n.Base, "present", "whether the variable is set"); err != nil {
		return nil, err
	}
	return n, nil
}

func (n *Node) Configure(raw map[string]any) error {
	if err := node.DecodeConfig(raw, &n.cfg); err != nil {
		return err
	}
	if n.cfg.Name == "" {
		return fmt.Errorf("name is required")
	}
	return nil
}

func (n *Node) Compute(context.Context) error {
	value, present := n.lookup(n.cfg.Name)
	if !present && n.cfg.Default != nil {
		value = *n.cfg.Default
	}
	if err := node.WriteOutput(n.Base, "present", present); err != nil {
		return err
	}
	if !present && n.cfg.Default == nil {
		n.Logger().Debug("Environment variable not set.", "variable", n.cfg.Name)
		return nil
	}
	return node.WriteOutput(n.Base, "value", value)
}

// Register registers the class with the factory.
func (Module) Register(f *registry.Factory) error {
	return f.RegisterNodeClass(Key, "Input", New)
}
