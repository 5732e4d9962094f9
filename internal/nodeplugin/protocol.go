// Package nodeplugin lets node classes live in a separate executable. The
// host launches the module binary with hashicorp/go-plugin, asks it for a
// manifest of the classes it provides, and registers a proxy class for each
// one. A proxy node ships its configuration and inputs to the module on
// every Compute and places the returned values on its outputs.
//
// Values cross the process boundary as cty JSON together with their type,
// so the module side works with cty.Value exactly like HCL-based code does.
package nodeplugin

import (
	"fmt"
	"reflect"

	"github.com/hashicorp/go-plugin"
	"github.com/vk/flowgrid/internal/port"
)

// PluginName is the name the node-class plugin is dispensed under.
const PluginName = "nodes"

// Handshake is shared by the host and every module binary. A binary started
// without the cookie refuses to run as a plugin.
var Handshake = plugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "FLOWGRID_MODULE",
	MagicCookieValue: "7f2d9c1e-node-classes",
}

// PluginMap is the plugin set for both sides of the connection.
func PluginMap(impl Provider) map[string]plugin.Plugin {
	return map[string]plugin.Plugin{PluginName: &ModulePlugin{Impl: impl}}
}

// Port type names understood on the wire.
const (
	TypeString = "string"
	TypeNumber = "number"
	TypeBool   = "bool"
	TypeAny    = "any"
)

// PortSpec describes one port of a remote class.
type PortSpec struct {
	Name        string
	Type        string
	Description string
}

// ClassSpec describes one node class served by a module.
type ClassSpec struct {
	Key      string
	Category string
	Inputs   []PortSpec
	Outputs  []PortSpec
}

// Manifest is what a module reports about itself.
type Manifest struct {
	APIVersion string
	Classes    []ClassSpec
}

// ComputeRequest asks a module to run one pass of a node.
type ComputeRequest struct {
	Class    string
	NodeID   string
	NodeName string
	Config   map[string]Value
	Inputs   map[string]Value
}

// ComputeResponse carries the values produced for output ports. Outputs
// left out of the map are not written.
type ComputeResponse struct {
	Outputs map[string]Value
}

// Provider is implemented by the module side, and by the RPC client that
// stands in for it on the host side.
type Provider interface {
	Manifest() (Manifest, error)
	Compute(req ComputeRequest) (ComputeResponse, error)
}

// GoType maps a wire port type onto the Go type declared on the proxy port.
func GoType(name string) (reflect.Type, error) {
	switch name {
	case TypeString:
		return reflect.TypeFor[string](), nil
	case TypeNumber:
		return reflect.TypeFor[float64](), nil
	case TypeBool:
		return reflect.TypeFor[bool](), nil
	case TypeAny, "":
		return port.Any, nil
	}
	return nil, fmt.Errorf("unknown port type %q", name)
}

// Validate checks a spec for problems that would only show up at wiring
// time otherwise.
func (s ClassSpec) Validate() error {
	if s.Key == "" {
		return fmt.Errorf("class with empty key")
	}
	seen := make(map[string]bool)
	for _, group := range [][]PortSpec{s.Inputs, s.Outputs} {
		for _, p := range group {
			if p.Name == "" {
				return fmt.Errorf("class %q: port with empty name", s.Key)
			}
			if seen[p.Name] {
				return fmt.Errorf("class %q: duplicate port %q", s.Key, p.Name)
			}
			seen[p.Name] = true
			if _, err := GoType(p.Type); err != nil {
				return fmt.Errorf("class %q port %q: %w", s.Key, p.Name, err)
			}
		}
	}
	return nil
}
