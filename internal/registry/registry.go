package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/vk/flowgrid/internal/node"
)

var (
	ErrDuplicateRegistration = errors.New("node class already registered")
	ErrUnknownNodeType       = errors.New("unknown node type")
)

// Constructor builds a new node of one class. It must return the node in
// the Registered state with all of its ports declared.
type Constructor func(info node.Info, env node.Env) (node.Node, error)

// Class describes one registered node class.
type Class struct {
	Key      string
	Category string
	New      Constructor
}

// Module is implemented by anything that contributes node classes.
type Module interface {
	Register(f *Factory) error
}

// ModuleFunc adapts a plain function to Module.
type ModuleFunc func(f *Factory) error

// Register calls fn(f).
func (fn ModuleFunc) Register(f *Factory) error {
	return fn(f)
}

// Factory maps class keys to constructors. Reads may happen concurrently
// from any number of graphs; writes are serialized.
type Factory struct {
	mu      sync.RWMutex
	classes map[string]*Class
}

// New creates an empty Factory.
func New() *Factory {
	return &Factory{classes: make(map[string]*Class)}
}

// RegisterNodeClass associates key with ctor.
func (f *Factory) RegisterNodeClass(key, category string, ctor Constructor) error {
	if key == "" {
		return errors.New("node class key cannot be empty")
	}
	if ctor == nil {
		return fmt.Errorf("node class %q: constructor cannot be nil", key)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.classes[key]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateRegistration, key)
	}
	f.classes[key] = &Class{Key: key, Category: category, New: ctor}
	return nil
}

// Create instantiates a node of class key.
func (f *Factory) Create(key string, id uuid.UUID, name string, env node.Env) (node.Node, error) {
	f.mu.RLock()
	class, ok := f.classes[key]
	f.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownNodeType, key)
	}

	if id == uuid.Nil {
		id = uuid.New()
	}
	n, err := class.New(node.Info{ID: id, Name: name, Class: key}, env)
	if err != nil {
		return nil, fmt.Errorf("constructing %q node %q: %w", key, name, err)
	}
	if n == nil {
		return nil, fmt.Errorf("constructing %q node %q: constructor returned nil", key, name)
	}
	if s := n.State(); s != node.StateRegistered {
		return nil, fmt.Errorf("constructing %q node %q: constructor returned a node in state %s", key, name, s)
	}
	return n, nil
}

// Has reports whether key is registered.
func (f *Factory) Has(key string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.classes[key]
	return ok
}

// Len returns the number of registered classes.
func (f *Factory) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.classes)
}

// Classes returns a snapshot of the registered classes sorted by key.
func (f *Factory) Classes() []Class {
	f.mu.RLock()
	out := make([]Class, 0, len(f.classes))
	for _, c := range f.classes {
		out = append(out, *c)
	}
	f.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Install registers each module in turn. A module is applied all or
// nothing: it registers into a scratch factory first, and its classes are
// merged only if none of them collide with existing keys.
func (f *Factory) Install(mods ...Module) error {
	for _, mod := range mods {
		staging := New()
		if err := mod.Register(staging); err != nil {
			return err
		}
		if err := f.merge(staging); err != nil {
			return err
		}
	}
	return nil
}

func (f *Factory) merge(other *Factory) error {
	other.mu.RLock()
	defer other.mu.RUnlock()
	f.mu.Lock()
	defer f.mu.Unlock()

	for key := range other.classes {
		if _, ok := f.classes[key]; ok {
			return fmt.Errorf("%w: %q", ErrDuplicateRegistration, key)
		}
	}
	for key, c := range other.classes {
		f.classes[key] = c
	}
	return nil
}
