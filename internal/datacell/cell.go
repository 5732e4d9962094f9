// Package datacell implements the value carrier that moves between node
// ports: one payload plus the reflect.Type it was stored under. Extraction
// is checked against that tag instead of relying on a bare type assertion.
package datacell

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/davecgh/go-spew/spew"
	"github.com/mitchellh/copystructure"
	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

var (
	// ErrTypeMismatch is returned when a cell is read or placed as a type
	// other than the one it carries.
	ErrTypeMismatch = errors.New("type mismatch")
	// ErrEmpty is returned when reading from a nil cell.
	ErrEmpty = errors.New("empty cell")
)

// AnyType is the reflect type of `any`. A port declared with it accepts
// every cell.
var AnyType = reflect.TypeFor[any]()

// Cell is an immutable, type-tagged value.
type Cell struct {
	typ   reflect.Type
	value any
}

// New wraps v and tags it with T. When T is an interface type the dynamic
// type of v is recorded instead, so New[any]("x") is tagged string.
func New[T any](v T) *Cell {
	typ := reflect.TypeFor[T]()
	if typ.Kind() == reflect.Interface {
		return Of(v)
	}
	return &Cell{typ: typ, value: clone(v)}
}

// Of wraps v and tags it with its dynamic type. A nil v has a nil tag.
func Of(v any) *Cell {
	return &Cell{typ: reflect.TypeOf(v), value: clone(v)}
}

// Type returns the tag recorded at construction.
func (c *Cell) Type() reflect.Type {
	if c == nil {
		return nil
	}
	return c.typ
}

// Value returns a copy of the raw payload without any type check.
func (c *Cell) Value() any {
	if c == nil {
		return nil
	}
	return clone(c.value)
}

// TryGet returns the payload if a consumer expecting the given type may
// read it.
func (c *Cell) TryGet(expected reflect.Type) (any, error) {
	if c == nil {
		return nil, ErrEmpty
	}
	if !Accepts(expected, c.typ) {
		return nil, fmt.Errorf("%w: expected %s, cell holds %s", ErrTypeMismatch, TypeName(expected), TypeName(c.typ))
	}
	return clone(c.value), nil
}

// Get is the generic form of TryGet.
func Get[T any](c *Cell) (T, error) {
	var zero T
	v, err := c.TryGet(reflect.TypeFor[T]())
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, nil
	}
	return v.(T), nil
}

// Accepts reports whether a slot declared as expected can hold a value
// tagged actual.
func Accepts(expected, actual reflect.Type) bool {
	if expected == nil || expected == AnyType {
		return true
	}
	if actual == nil {
		return expected.Kind() == reflect.Interface
	}
	if actual == expected {
		return true
	}
	return expected.Kind() == reflect.Interface && actual.Implements(expected)
}

// TypeName renders a type for messages, including the nil tag.
func TypeName(t reflect.Type) string {
	if t == nil {
		return "nil"
	}
	return t.String()
}

var dumper = spew.ConfigState{
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	DisableMethods:          true,
	SortKeys:                true,
}

// String renders the payload for logs. It never fails: anything that
// cannot be rendered comes back as "<type>".
func (c *Cell) String() (s string) {
	if c == nil {
		return "<empty>"
	}
	defer func() {
		if r := recover(); r != nil {
			s = placeholder(c.typ)
		}
	}()

	switch v := c.value.(type) {
	case nil:
		return "<nil>"
	case string:
		return v
	case cty.Value:
		if !v.IsWhollyKnown() {
			return placeholder(c.typ)
		}
		b, err := ctyjson.Marshal(v, v.Type())
		if err != nil {
			return placeholder(c.typ)
		}
		return string(b)
	case fmt.Stringer:
		return v.String()
	case error:
		return v.Error()
	}
	return dumper.Sprint(c.value)
}

func placeholder(t reflect.Type) string {
	return "<" + TypeName(t) + ">"
}

// clone deep-copies maps and slices so a producer cannot mutate a value
// after handing it to a port. Other kinds are either immutable or opaque
// and are shared as-is. copystructure drops unexported struct fields, so a
// copy that no longer matches the original is discarded and the value is
// shared instead.
func clone(v any) any {
	if v == nil {
		return nil
	}
	switch reflect.TypeOf(v).Kind() {
	case reflect.Map, reflect.Slice:
		cp, err := copystructure.Copy(v)
		if err != nil || !reflect.DeepEqual(v, cp) {
			return v
		}
		return cp
	}
	return v
}
