package node

import (
	"fmt"
	"reflect"

	"github.com/vk/flowgrid/internal/datacell"
	"github.com/vk/flowgrid/internal/port"
)

// AddInput declares an input port of type T.
func AddInput[T any](b *Base, name, description string) (*port.Port, error) {
	return b.AddPort(name, port.Input, reflect.TypeFor[T](), description)
}

// AddOutput declares an output port of type T.
func AddOutput[T any](b *Base, name, description string) (*port.Port, error) {
	return b.AddPort(name, port.Output, reflect.TypeFor[T](), description)
}

// AddPort declares a port with a type only known at runtime, as plugin
// classes do. Port names are unique across inputs and outputs.
func (b *Base) AddPort(name string, dir port.Direction, typ reflect.Type, description string) (*port.Port, error) {
	if name == "" {
		return nil, fmt.Errorf("node %q: port name cannot be empty", b.info.Name)
	}
	if s := b.State(); s != StateRegistered {
		return nil, fmt.Errorf("node %q: adding port %q while %s: %w", b.info.Name, name, s, ErrNotRegistered)
	}

	b.portsMu.Lock()
	defer b.portsMu.Unlock()

	if _, ok := b.byName[name]; ok {
		return nil, fmt.Errorf("node %q: %w %q", b.info.Name, ErrDuplicatePort, name)
	}
	p := port.New(name, dir, typ, description)
	b.ports = append(b.ports, p)
	b.byName[name] = p
	return p, nil
}

// Ports returns all ports in declaration order.
func (b *Base) Ports() []*port.Port {
	b.portsMu.RLock()
	defer b.portsMu.RUnlock()
	out := make([]*port.Port, len(b.ports))
	copy(out, b.ports)
	return out
}

// Inputs returns the input ports in declaration order.
func (b *Base) Inputs() []*port.Port {
	return b.filter(port.Input)
}

// Outputs returns the output ports in declaration order.
func (b *Base) Outputs() []*port.Port {
	return b.filter(port.Output)
}

func (b *Base) filter(dir port.Direction) []*port.Port {
	var out []*port.Port
	for _, p := range b.Ports() {
		if p.Direction() == dir {
			out = append(out, p)
		}
	}
	return out
}

// Input looks up an input port by name.
func (b *Base) Input(name string) (*port.Port, error) {
	return b.lookup(name, port.Input)
}

// Output looks up an output port by name.
func (b *Base) Output(name string) (*port.Port, error) {
	return b.lookup(name, port.Output)
}

func (b *Base) lookup(name string, dir port.Direction) (*port.Port, error) {
	b.portsMu.RLock()
	p, ok := b.byName[name]
	b.portsMu.RUnlock()

	if !ok || p.Direction() != dir {
		return nil, fmt.Errorf("node %q: %w: no %s named %q", b.info.Name, ErrUnknownPort, dir, name)
	}
	return p, nil
}

// GetInputData returns the cell currently on an input, or nil if nothing
// has arrived.
func (b *Base) GetInputData(name string) (*datacell.Cell, error) {
	p, err := b.Input(name)
	if err != nil {
		return nil, err
	}
	return p.Get(), nil
}

// SetOutputData places c on an output, making it visible to every
// connected input.
func (b *Base) SetOutputData(name string, c *datacell.Cell) error {
	p, err := b.Output(name)
	if err != nil {
		return err
	}
	if err := p.Put(c); err != nil {
		return fmt.Errorf("node %q: %w", b.info.Name, err)
	}
	return nil
}

// ReadInput extracts the value on an input as T. The boolean is false when
// the input is empty.
func ReadInput[T any](b *Base, name string) (T, bool, error) {
	var zero T
	c, err := b.GetInputData(name)
	if err != nil || c == nil {
		return zero, false, err
	}
	v, err := datacell.Get[T](c)
	if err != nil {
		return zero, false, fmt.Errorf("node %q: input %q: %w", b.info.Name, name, err)
	}
	return v, true, nil
}

// WriteOutput wraps v in a cell and places it on an output.
func WriteOutput[T any](b *Base, name string, v T) error {
	return b.SetOutputData(name, datacell.New(v))
}
