package modload

import (
	"context"
	"fmt"
	"io"
	"plugin"

	"github.com/vk/flowgrid/internal/apiversion"
	"github.com/vk/flowgrid/internal/registry"
)

// Symbols looked up in a shared-object module.
const (
	EntrySymbol   = "RegisterNodeClasses"
	VersionSymbol = "FlowAPIVersion"
)

// SharedObjectOpener loads modules built with -buildmode=plugin. The
// object must export
//
//	func RegisterNodeClasses(*registry.Factory) error
//
// and may export `var FlowAPIVersion string`. Shared objects cannot be
// unloaded, so no closer is returned.
type SharedObjectOpener struct{}

func (SharedObjectOpener) Open(_ context.Context, path string) (registry.Module, io.Closer, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, nil, err
	}

	if sym, err := p.Lookup(VersionSymbol); err == nil {
		declared, ok := sym.(*string)
		if !ok {
			return nil, nil, fmt.Errorf("%s has type %T, want *string", VersionSymbol, sym)
		}
		if err := apiversion.Check(*declared); err != nil {
			return nil, nil, err
		}
	}

	sym, err := p.Lookup(EntrySymbol)
	if err != nil {
		return nil, nil, err
	}
	register, ok := sym.(func(*registry.Factory) error)
	if !ok {
		return nil, nil, fmt.Errorf("%s has type %T, want func(*registry.Factory) error", EntrySymbol, sym)
	}
	return registry.ModuleFunc(register), nil, nil
}
