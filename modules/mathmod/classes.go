// Package mathmod is a small set of arithmetic node classes served from a
// separate module binary (cmd/flow-mathmod). It doubles as the reference for
// writing out-of-process modules.
package mathmod

import (
	"fmt"

	"github.com/vk/flowgrid/internal/nodeplugin"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// Classes returns the classes this module provides.
func Classes() nodeplugin.ClassSet {
	return nodeplugin.ClassSet{
		{
			Spec: nodeplugin.ClassSpec{
				Key:      "math.add",
				Category: "Math",
				Inputs: []nodeplugin.PortSpec{
					{Name: "a", Type: nodeplugin.TypeNumber, Description: "left operand"},
					{Name: "b", Type: nodeplugin.TypeNumber, Description: "right operand"},
				},
				Outputs: []nodeplugin.PortSpec{
					{Name: "sum", Type: nodeplugin.TypeNumber, Description: "a + b"},
				},
			},
			Compute: add,
		},
		{
			Spec: nodeplugin.ClassSpec{
				Key:      "math.scale",
				Category: "Math",
				Inputs: []nodeplugin.PortSpec{
					{Name: "in", Type: nodeplugin.TypeNumber},
				},
				Outputs: []nodeplugin.PortSpec{
					{Name: "out", Type: nodeplugin.TypeNumber, Description: "in multiplied by the configured factor"},
				},
			},
			Compute: scale,
		},
	}
}

func add(_, inputs map[string]cty.Value) (map[string]cty.Value, error) {
	a, aok := inputs["a"]
	b, bok := inputs["b"]
	if !aok || !bok {
		return nil, nil
	}
	return map[string]cty.Value{"sum": a.Add(b)}, nil
}

func scale(config, inputs map[string]cty.Value) (map[string]cty.Value, error) {
	in, ok := inputs["in"]
	if !ok {
		return nil, nil
	}
	raw, ok := config["factor"]
	if !ok {
		return nil, fmt.Errorf("factor is required")
	}
	factor, err := convert.Convert(raw, cty.Number)
	if err != nil {
		return nil, fmt.Errorf("factor: %w", err)
	}
	if factor.IsNull() {
		return nil, fmt.Errorf("factor is null")
	}
	return map[string]cty.Value{"out": in.Multiply(factor)}, nil
}
