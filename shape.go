package typedargs

import (
	"reflect"
	"strings"
	"time"
)

// shapeKind is the closed classification of a field's declared type. It
// drives coercion, arity and container reconstruction. Adding a kind means
// extending the dispatch in synthesize and bindValue, nothing else.
type shapeKind int

const (
	shapeUnsupported shapeKind = iota
	shapePrimitive
	shapeOptional
	shapeList
	shapeSet
	shapeTupleFixed
	shapeTupleVariadic
	shapeLiteral
	shapeOptionalLiteral
	shapeCustom // user-supplied coercion, no automatic handling
)

// typeShape describes a classified field type. It is derived from the
// declared reflect.Type (plus the choices tag) and never stored on its
// own; classify is a pure function of its inputs.
type typeShape struct {
	kind    shapeKind
	typ     reflect.Type   // the declared type
	elems   []reflect.Type // element type(s); one per position for fixed tuples
	choices []string       // raw choice tokens for literal-flavored shapes
}

var (
	typString   = reflect.TypeOf("")
	typBool     = reflect.TypeOf(false)
	typInt      = reflect.TypeOf(int(0))
	typInt64    = reflect.TypeOf(int64(0))
	typUint     = reflect.TypeOf(uint(0))
	typUint64   = reflect.TypeOf(uint64(0))
	typFloat64  = reflect.TypeOf(float64(0))
	typDuration = reflect.TypeOf(time.Duration(0))
	typAny      = reflect.TypeOf((*interface{})(nil)).Elem()
)

var primitiveTypes = map[reflect.Type]struct{}{
	typString:   {},
	typBool:     {},
	typInt:      {},
	typInt64:    {},
	typUint:     {},
	typUint64:   {},
	typFloat64:  {},
	typDuration: {},
}

// elemType normalizes a declared element type. An unspecified element
// (interface{}) defaults to string.
func elemType(t reflect.Type) (reflect.Type, bool) {
	if t == typAny {
		return typString, true
	}
	_, ok := primitiveTypes[t]
	return t, ok
}

// classify maps a declared field type (plus an optional choices tag) onto
// a typeShape. Classification failures that no override can repair, such
// as empty tuples and malformed choice sets, are returned as errors;
// everything else unrecognized comes back as shapeUnsupported so that an
// explicit coercion function can still claim the field.
func classify(field string, t reflect.Type, choices []string) (typeShape, error) {
	if choices != nil {
		return classifyLiteral(field, t, choices)
	}

	switch t.Kind() {
	case reflect.Array:
		if t.Len() == 0 {
			return typeShape{}, &EmptyTupleError{Field: field}
		}
		elem, ok := elemType(t.Elem())
		if !ok {
			return typeShape{kind: shapeUnsupported, typ: t}, nil
		}
		elems := make([]reflect.Type, t.Len())
		for i := range elems {
			elems[i] = elem
		}
		return typeShape{kind: shapeTupleFixed, typ: t, elems: elems}, nil

	case reflect.Struct:
		return classifyTuple(field, t)

	case reflect.Ptr:
		if elem, ok := elemType(t.Elem()); ok {
			return typeShape{kind: shapeOptional, typ: t, elems: []reflect.Type{elem}}, nil
		}

	case reflect.Slice:
		if elem, ok := elemType(t.Elem()); ok {
			return typeShape{kind: shapeList, typ: t, elems: []reflect.Type{elem}}, nil
		}

	case reflect.Map:
		if isSetType(t) {
			elem, _ := elemType(t.Key())
			return typeShape{kind: shapeSet, typ: t, elems: []reflect.Type{elem}}, nil
		}

	default:
		if elem, ok := elemType(t); ok {
			return typeShape{kind: shapePrimitive, typ: t, elems: []reflect.Type{elem}}, nil
		}
	}

	return typeShape{kind: shapeUnsupported, typ: t}, nil
}

// classifyLiteral handles every shape carrying a choices tag: plain
// literals, optional literals and homogeneous collections of literals.
// Each choice token must parse as the element type, otherwise the choice
// set mixes kinds and the build fails.
func classifyLiteral(field string, t reflect.Type, choices []string) (typeShape, error) {
	if len(choices) == 0 {
		return typeShape{}, &MixedLiteralKindError{Field: field, Choice: "", Elem: t}
	}

	kind := shapeLiteral
	elem := t
	switch t.Kind() {
	case reflect.Ptr:
		kind = shapeOptionalLiteral
		elem = t.Elem()
	case reflect.Slice:
		kind = shapeList
		elem = t.Elem()
	case reflect.Map:
		if !isSetType(t) {
			return typeShape{kind: shapeUnsupported, typ: t}, nil
		}
		kind = shapeSet
		elem = t.Key()
	}

	elem, ok := elemType(elem)
	if !ok {
		return typeShape{kind: shapeUnsupported, typ: t}, nil
	}
	coerce, ok := coercerFor(elem)
	if !ok {
		return typeShape{kind: shapeUnsupported, typ: t}, nil
	}
	for _, c := range choices {
		if _, err := coerce(c); err != nil {
			return typeShape{}, &MixedLiteralKindError{Field: field, Choice: c, Elem: elem}
		}
	}
	return typeShape{kind: kind, typ: t, elems: []reflect.Type{elem}, choices: choices}, nil
}

// classifyTuple handles plain struct fields. A struct of exported
// primitive fields is a fixed tuple, one position per field. A struct
// with a single slice field is the variadic form: every supplied token is
// coerced through the slice's element type.
func classifyTuple(field string, t reflect.Type) (typeShape, error) {
	if t.NumField() == 0 {
		return typeShape{}, &EmptyTupleError{Field: field}
	}

	if t.NumField() == 1 && t.Field(0).Type.Kind() == reflect.Slice {
		f := t.Field(0)
		if f.PkgPath != "" {
			return typeShape{kind: shapeUnsupported, typ: t}, nil
		}
		elem, ok := elemType(f.Type.Elem())
		if !ok {
			return typeShape{kind: shapeUnsupported, typ: t}, nil
		}
		return typeShape{kind: shapeTupleVariadic, typ: t, elems: []reflect.Type{elem}}, nil
	}

	elems := make([]reflect.Type, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.PkgPath != "" || f.Anonymous {
			return typeShape{kind: shapeUnsupported, typ: t}, nil
		}
		elem, ok := elemType(f.Type)
		if !ok {
			return typeShape{kind: shapeUnsupported, typ: t}, nil
		}
		elems = append(elems, elem)
	}
	return typeShape{kind: shapeTupleFixed, typ: t, elems: elems}, nil
}

func isSetType(t reflect.Type) bool {
	if t.Kind() != reflect.Map {
		return false
	}
	if _, ok := primitiveTypes[t.Key()]; !ok {
		return false
	}
	v := t.Elem()
	return v == typBool || (v.Kind() == reflect.Struct && v.NumField() == 0)
}

// String renders the resolved shape deterministically; the rendering is
// part of generated help output and must stay stable.
func (s typeShape) String() string {
	switch s.kind {
	case shapePrimitive:
		return s.elems[0].String()
	case shapeOptional:
		return "*" + s.elems[0].String()
	case shapeLiteral:
		return s.choiceString()
	case shapeOptionalLiteral:
		return "*" + s.choiceString()
	case shapeList:
		if s.choices != nil {
			return "[]" + s.choiceString()
		}
		return "[]" + s.elems[0].String()
	case shapeSet:
		if s.choices != nil {
			return "set[" + s.choiceString() + "]"
		}
		return "set[" + s.elems[0].String() + "]"
	case shapeTupleFixed:
		if s.typ.Kind() == reflect.Array {
			return s.typ.String()
		}
		names := make([]string, len(s.elems))
		for i, e := range s.elems {
			names[i] = e.String()
		}
		return "(" + strings.Join(names, ", ") + ")"
	case shapeTupleVariadic:
		return "(" + s.elems[0].String() + ", ...)"
	case shapeCustom:
		return "custom"
	default:
		return "unsupported"
	}
}

func (s typeShape) choiceString() string {
	return "{" + strings.Join(s.choices, "|") + "}"
}

// variadic reports whether the shape consumes zero or more tokens.
func (s typeShape) variadic() bool {
	switch s.kind {
	case shapeTupleVariadic:
		return true
	case shapeList, shapeSet:
		return true
	}
	return false
}

// optionalLike reports whether the absent value is a legal final state,
// which exempts the field from the required rule.
func (s typeShape) optionalLike() bool {
	return s.kind == shapeOptional || s.kind == shapeOptionalLiteral
}

// isBool reports whether the shape is a bare boolean, which gets flag
// semantics instead of a value-carrying argument.
func (s typeShape) isBool() bool {
	return s.kind == shapePrimitive && s.elems[0] == typBool
}
