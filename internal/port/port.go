// Package port implements the typed slots through which nodes exchange
// data cells. An input holds at most one pending cell; an output holds the
// last cell it produced and forwards each new one to its connected inputs.
package port

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/vk/flowgrid/internal/datacell"
)

// ErrTypeMismatch is datacell.ErrTypeMismatch, re-exported for callers that
// only deal with ports.
var ErrTypeMismatch = datacell.ErrTypeMismatch

// Any is the declared type of a port that accepts every cell.
var Any = datacell.AnyType

// Direction tells inputs and outputs apart.
type Direction int

const (
	Input Direction = iota
	Output
)

func (d Direction) String() string {
	if d == Output {
		return "output"
	}
	return "input"
}

// Port is a named, typed slot owned by one node.
type Port struct {
	name        string
	dir         Direction
	typ         reflect.Type
	description string

	mu    sync.RWMutex
	cell  *datacell.Cell
	links []*Port
}

// New creates an empty port. A nil typ is treated as Any.
func New(name string, dir Direction, typ reflect.Type, description string) *Port {
	if typ == nil {
		typ = Any
	}
	return &Port{
		name:        name,
		dir:         dir,
		typ:         typ,
		description: description,
	}
}

func (p *Port) Name() string         { return p.name }
func (p *Port) Direction() Direction { return p.dir }
func (p *Port) Type() reflect.Type   { return p.typ }
func (p *Port) Description() string  { return p.description }
func (p *Port) IsInput() bool        { return p.dir == Input }
func (p *Port) IsOutput() bool       { return p.dir == Output }

// Put stores c, replacing what was there. A cell whose type does not fit
// the declared type is rejected and the previous cell is kept. Outputs
// forward the accepted cell to every connected input.
func (p *Port) Put(c *datacell.Cell) error {
	if c == nil {
		return fmt.Errorf("port %q: cannot store a nil cell", p.name)
	}
	if !datacell.Accepts(p.typ, c.Type()) {
		return fmt.Errorf("port %q: %w: declared %s, got %s", p.name, ErrTypeMismatch, datacell.TypeName(p.typ), datacell.TypeName(c.Type()))
	}

	p.mu.Lock()
	p.cell = c
	links := p.links
	p.mu.Unlock()

	for _, dst := range links {
		if err := dst.Put(c); err != nil {
			return fmt.Errorf("forwarding from %q: %w", p.name, err)
		}
	}
	return nil
}

// Get returns the current cell, or nil when nothing has arrived yet.
func (p *Port) Get() *datacell.Cell {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cell
}

// Clear empties the slot.
func (p *Port) Clear() {
	p.mu.Lock()
	p.cell = nil
	p.mu.Unlock()
}

// ClearIf empties the slot only if it still holds c, and reports whether
// it did. A cell that arrived after c was read is kept.
func (p *Port) ClearIf(c *datacell.Cell) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cell != c || c == nil {
		return false
	}
	p.cell = nil
	return true
}

// Connect links an output to an input. The link is fixed: there is no
// disconnect, since wiring only happens while a graph is being built.
func (p *Port) Connect(dst *Port) error {
	if p.dir != Output {
		return fmt.Errorf("port %q is an %s and cannot be an edge source", p.name, p.dir)
	}
	if dst.dir != Input {
		return fmt.Errorf("port %q is an %s and cannot be an edge destination", dst.name, dst.dir)
	}
	if !Compatible(p.typ, dst.typ) {
		return fmt.Errorf("%w: %s (%s) -> %s (%s)", ErrTypeMismatch, p.name, datacell.TypeName(p.typ), dst.name, datacell.TypeName(dst.typ))
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for _, l := range p.links {
		if l == dst {
			return nil
		}
	}
	p.links = append(p.links, dst)
	return nil
}

// Links returns the inputs fed by this output.
func (p *Port) Links() []*Port {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*Port, len(p.links))
	copy(out, p.links)
	return out
}

// Compatible reports whether an edge src -> dst is allowed: the types are
// identical or the destination takes the type-erased form.
func Compatible(src, dst reflect.Type) bool {
	return src == dst || dst == Any
}
