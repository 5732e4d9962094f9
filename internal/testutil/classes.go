package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/vk/flowgrid/internal/node"
	"github.com/vk/flowgrid/internal/registry"
)

// ErrDeliberate is returned by the "test.fail" class.
var ErrDeliberate = errors.New("deliberate failure")

// Probe backs a family of test node classes and records what they saw.
//
//	test.source  config value, out "out" (any): writes value every pass
//	test.text    config value, out "out" (string)
//	test.relay   in "in" (any), out "out" (any): copies when in holds a value
//	test.echo    in "in" (string), out "out" (string)
//	test.sink    in "in" (any): records the value, nil when empty
//	test.fail    in "in" (any), out "out" (any): always fails
//	test.panic   in "in" (any): panics
//	test.numbers in "int" (int), "i8" (int8), "u8" (uint8), "f32" (float32):
//	             records the int input
type Probe struct {
	mu       sync.Mutex
	seen     map[string][]any
	computes map[string]int
}

func NewProbe() *Probe {
	return &Probe{seen: make(map[string][]any), computes: make(map[string]int)}
}

func (p *Probe) record(name string, v any, keep bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.computes[name]++
	if keep {
		p.seen[name] = append(p.seen[name], v)
	}
}

// Values returns what a sink node received, one entry per compute.
func (p *Probe) Values(name string) []any {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]any(nil), p.seen[name]...)
}

// Computes returns how many times a node computed.
func (p *Probe) Computes(name string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.computes[name]
}

type probeNode struct {
	*node.Base
	probe   *Probe
	compute func(n *probeNode) error
	probeConfig
}

type probeConfig struct {
	Value   any    `flow:"value"`
	Message string `flow:"message"`
}

func (n *probeNode) Configure(raw map[string]any) error {
	return node.DecodeConfig(raw, &n.probeConfig)
}

func (n *probeNode) Compute(context.Context) error {
	return n.compute(n)
}

// Register implements registry.Module.
func (p *Probe) Register(f *registry.Factory) error {
	classes := []struct {
		key     string
		ports   func(b *node.Base) error
		compute func(n *probeNode) error
	}{
		{
			key:   "test.source",
			ports: outputs[any]("out"),
			compute: func(n *probeNode) error {
				p.record(n.Name(), nil, false)
				return node.WriteOutput(n.Base, "out", n.Value)
			},
		},
		{
			key:   "test.text",
			ports: outputs[string]("out"),
			compute: func(n *probeNode) error {
				p.record(n.Name(), nil, false)
				s, _ := n.Value.(string)
				return node.WriteOutput(n.Base, "out", s)
			},
		},
		{
			key:     "test.relay",
			ports:   both[any](),
			compute: copyThrough[any](p),
		},
		{
			key:     "test.echo",
			ports:   both[string](),
			compute: copyThrough[string](p),
		},
		{
			key:   "test.sink",
			ports: inputs[any]("in"),
			compute: func(n *probeNode) error {
				v, _, err := node.ReadInput[any](n.Base, "in")
				p.record(n.Name(), v, true)
				return err
			},
		},
		{
			key:   "test.fail",
			ports: both[any](),
			compute: func(n *probeNode) error {
				p.record(n.Name(), nil, false)
				if n.Message != "" {
					return errors.New(n.Message)
				}
				return ErrDeliberate
			},
		},
		{
			key:   "test.panic",
			ports: inputs[any]("in"),
			compute: func(n *probeNode) error {
				p.record(n.Name(), nil, false)
				panic("test.panic was asked to panic")
			},
		},
		{
			key: "test.numbers",
			ports: func(b *node.Base) error {
				if err := inputs[int]("int")(b); err != nil {
					return err
				}
				if err := inputs[int8]("i8")(b); err != nil {
					return err
				}
				if err := inputs[uint8]("u8")(b); err != nil {
					return err
				}
				return inputs[float32]("f32")(b)
			},
			compute: func(n *probeNode) error {
				v, ok, err := node.ReadInput[int](n.Base, "int")
				p.record(n.Name(), v, ok)
				return err
			},
		},
	}

	for _, c := range classes {
		err := f.RegisterNodeClass(c.key, "Test", func(info node.Info, env node.Env) (node.Node, error) {
			n := &probeNode{Base: node.NewBase(info, env), probe: p, compute: c.compute}
			if err := c.ports(n.Base); err != nil {
				return nil, err
			}
			return n, nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func copyThrough[T any](p *Probe) func(n *probeNode) error {
	return func(n *probeNode) error {
		v, ok, err := node.ReadInput[T](n.Base, "in")
		p.record(n.Name(), v, ok)
		if err != nil || !ok {
			return err
		}
		return node.WriteOutput(n.Base, "out", v)
	}
}

func inputs[T any](names ...string) func(b *node.Base) error {
	return func(b *node.Base) error {
		for _, name := range names {
			if _, err := node.AddInput[T](b, name, ""); err != nil {
				return err
			}
		}
		return nil
	}
}

func outputs[T any](names ...string) func(b *node.Base) error {
	return func(b *node.Base) error {
		for _, name := range names {
			if _, err := node.AddOutput[T](b, name, ""); err != nil {
				return err
			}
		}
		return nil
	}
}

func both[T any]() func(b *node.Base) error {
	return func(b *node.Base) error {
		if err := inputs[T]("in")(b); err != nil {
			return err
		}
		return outputs[T]("out")(b)
	}
}
