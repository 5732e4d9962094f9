// Package ctyconv converts between native Go values and cty.Value. HCL
// graph descriptions decode into cty, node ports carry native Go values,
// and the plugin wire format is cty JSON; this package sits between them.
package ctyconv

import (
	"fmt"
	"math/big"
	"reflect"
	"sort"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"
)

// ToGo converts a cty.Value into its most natural Go counterpart: string,
// float64, bool, map[string]any or []any. Null and unknown values become nil.
func ToGo(val cty.Value) (any, error) {
	if !val.IsKnown() || val.IsNull() {
		return nil, nil
	}

	ty := val.Type()
	switch {
	case ty == cty.String:
		return val.AsString(), nil
	case ty == cty.Number:
		f, _ := val.AsBigFloat().Float64()
		return f, nil
	case ty == cty.Bool:
		return val.True(), nil
	case ty.IsObjectType() || ty.IsMapType():
		out := make(map[string]any)
		for it := val.ElementIterator(); it.Next(); {
			k, v := it.Element()
			native, err := ToGo(v)
			if err != nil {
				return nil, err
			}
			out[k.AsString()] = native
		}
		return out, nil
	case ty.IsTupleType() || ty.IsListType() || ty.IsSetType():
		out := make([]any, 0, val.LengthInt())
		for it := val.ElementIterator(); it.Next(); {
			_, v := it.Element()
			native, err := ToGo(v)
			if err != nil {
				return nil, err
			}
			out = append(out, native)
		}
		return out, nil
	case ty == cty.DynamicPseudoType:
		return nil, nil
	}
	return nil, fmt.Errorf("unsupported cty type for conversion: %s", ty.FriendlyName())
}

// ToCty converts a native Go value into a cty.Value. Loosely typed
// containers (map[string]any, []any) become objects and tuples; anything
// else goes through gocty's implied type.
func ToCty(data any) (cty.Value, error) {
	if data == nil {
		return cty.NullVal(cty.DynamicPseudoType), nil
	}

	switch v := data.(type) {
	case cty.Value:
		return v, nil
	case string:
		return cty.StringVal(v), nil
	case bool:
		return cty.BoolVal(v), nil
	case float64:
		return cty.NumberFloatVal(v), nil
	case float32:
		return cty.NumberFloatVal(float64(v)), nil
	case int:
		return cty.NumberIntVal(int64(v)), nil
	case int64:
		return cty.NumberIntVal(v), nil
	case *big.Float:
		return cty.NumberVal(v), nil
	case map[string]any:
		if len(v) == 0 {
			return cty.EmptyObjectVal, nil
		}
		attrs := make(map[string]cty.Value, len(v))
		for key, elem := range v {
			cv, err := ToCty(elem)
			if err != nil {
				return cty.NilVal, fmt.Errorf("key %q: %w", key, err)
			}
			attrs[key] = cv
		}
		return cty.ObjectVal(attrs), nil
	case []any:
		if len(v) == 0 {
			return cty.EmptyTupleVal, nil
		}
		elems := make([]cty.Value, 0, len(v))
		for i, elem := range v {
			cv, err := ToCty(elem)
			if err != nil {
				return cty.NilVal, fmt.Errorf("index %d: %w", i, err)
			}
			elems = append(elems, cv)
		}
		return cty.TupleVal(elems), nil
	}

	rv := reflect.ValueOf(data)
	if rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String && rv.Type().Elem().Kind() == reflect.Interface {
		generic := make(map[string]any, rv.Len())
		for _, k := range rv.MapKeys() {
			generic[k.String()] = rv.MapIndex(k).Interface()
		}
		return ToCty(generic)
	}

	ty, err := gocty.ImpliedType(data)
	if err != nil {
		return cty.NilVal, fmt.Errorf("unsupported type for conversion to cty.Value: %T", data)
	}
	val, err := gocty.ToCtyValue(data, ty)
	if err != nil {
		return cty.NilVal, fmt.Errorf("converting %T to cty.Value: %w", data, err)
	}
	return val, nil
}

// MapToGo converts an object or map value into map[string]any. A null
// value yields a nil map.
func MapToGo(val cty.Value) (map[string]any, error) {
	native, err := ToGo(val)
	if err != nil {
		return nil, err
	}
	if native == nil {
		return nil, nil
	}
	m, ok := native.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected an object, got %s", val.Type().FriendlyName())
	}
	return m, nil
}

// SortedKeys returns the keys of m in lexical order.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
