package nodeplugin

import (
	"fmt"

	"github.com/vk/flowgrid/internal/ctyconv"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// Value is a cty value in transit: its type and its JSON encoding.
type Value struct {
	Type []byte
	JSON []byte
}

// Encode serializes a cty value.
func Encode(val cty.Value) (Value, error) {
	ty := val.Type()
	typeJSON, err := ctyjson.MarshalType(ty)
	if err != nil {
		return Value{}, fmt.Errorf("encoding type: %w", err)
	}
	valueJSON, err := ctyjson.Marshal(val, ty)
	if err != nil {
		return Value{}, fmt.Errorf("encoding value: %w", err)
	}
	return Value{Type: typeJSON, JSON: valueJSON}, nil
}

// EncodeGo converts a native Go value to cty and serializes it.
func EncodeGo(v any) (Value, error) {
	val, err := ctyconv.ToCty(v)
	if err != nil {
		return Value{}, err
	}
	return Encode(val)
}

// Decode reverses Encode.
func Decode(w Value) (cty.Value, error) {
	ty, err := ctyjson.UnmarshalType(w.Type)
	if err != nil {
		return cty.NilVal, fmt.Errorf("decoding type: %w", err)
	}
	val, err := ctyjson.Unmarshal(w.JSON, ty)
	if err != nil {
		return cty.NilVal, fmt.Errorf("decoding value: %w", err)
	}
	return val, nil
}

// EncodeMap serializes every value of m.
func EncodeMap(m map[string]cty.Value) (map[string]Value, error) {
	out := make(map[string]Value, len(m))
	for k, v := range m {
		w, err := Encode(v)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", k, err)
		}
		out[k] = w
	}
	return out, nil
}

// DecodeMap reverses EncodeMap.
func DecodeMap(m map[string]Value) (map[string]cty.Value, error) {
	out := make(map[string]cty.Value, len(m))
	for k, w := range m {
		v, err := Decode(w)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", k, err)
		}
		out[k] = v
	}
	return out, nil
}

// toPortValue converts a decoded value into the Go value a port of the
// given wire type expects.
func toPortValue(val cty.Value, typeName string) (any, error) {
	if val.IsNull() {
		return nil, fmt.Errorf("null value for %s port", typeName)
	}
	switch typeName {
	case TypeString:
		var s string
		err := gocty.FromCtyValue(val, &s)
		return s, err
	case TypeNumber:
		var f float64
		err := gocty.FromCtyValue(val, &f)
		return f, err
	case TypeBool:
		var b bool
		err := gocty.FromCtyValue(val, &b)
		return b, err
	}
	return ctyconv.ToGo(val)
}
