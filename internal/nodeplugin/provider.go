package nodeplugin

import (
	"fmt"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-plugin"
	"github.com/vk/flowgrid/internal/apiversion"
	"github.com/zclconf/go-cty/cty"
)

// ComputeFunc implements one remote class. It receives the node's
// configuration and whichever inputs currently hold a value, and returns
// values for the outputs it wants to write.
type ComputeFunc func(config, inputs map[string]cty.Value) (map[string]cty.Value, error)

// Class pairs a spec with its implementation.
type Class struct {
	Spec    ClassSpec
	Compute ComputeFunc
}

// ClassSet is a Provider backed by in-process compute functions. Module
// binaries build one and hand it to Serve.
type ClassSet []Class

// Manifest lists the specs in the set.
func (s ClassSet) Manifest() (Manifest, error) {
	m := Manifest{APIVersion: apiversion.Current}
	for _, c := range s {
		if err := c.Spec.Validate(); err != nil {
			return Manifest{}, err
		}
		m.Classes = append(m.Classes, c.Spec)
	}
	return m, nil
}

// Compute dispatches a request to the class it names.
func (s ClassSet) Compute(req ComputeRequest) (ComputeResponse, error) {
	for _, c := range s {
		if c.Spec.Key != req.Class {
			continue
		}
		config, err := DecodeMap(req.Config)
		if err != nil {
			return ComputeResponse{}, fmt.Errorf("config: %w", err)
		}
		inputs, err := DecodeMap(req.Inputs)
		if err != nil {
			return ComputeResponse{}, fmt.Errorf("inputs: %w", err)
		}
		outputs, err := c.Compute(config, inputs)
		if err != nil {
			return ComputeResponse{}, err
		}
		encoded, err := EncodeMap(outputs)
		if err != nil {
			return ComputeResponse{}, fmt.Errorf("outputs: %w", err)
		}
		return ComputeResponse{Outputs: encoded}, nil
	}
	return ComputeResponse{}, fmt.Errorf("module does not provide class %q", req.Class)
}

// Serve runs the module side of the protocol. It blocks for the lifetime of
// the process and is meant to be the whole of a module binary's main.
func Serve(p Provider) {
	plugin.Serve(&plugin.ServeConfig{
		HandshakeConfig: Handshake,
		Plugins:         PluginMap(p),
		Logger: hclog.New(&hclog.LoggerOptions{
			Name:       "flowmod",
			Level:      hclog.Info,
			JSONFormat: true,
		}),
	})
}
