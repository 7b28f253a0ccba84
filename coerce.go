package typedargs

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// A coerceFunc turns one raw command-line token into a typed value.
type coerceFunc func(string) (interface{}, error)

// parseStrictBool accepts only the canonical spellings "true" and "false"
// (case-insensitive). strconv.ParseBool is deliberately not used here: it
// accepts "1", "t" and friends, and the whole point of a typed boolean
// argument is that nothing but true/false gets through.
func parseStrictBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean value %q (expected true or false)", s)
}

// coercerFor returns the token coercion function for a supported
// primitive element type.
func coercerFor(t reflect.Type) (coerceFunc, bool) {
	switch t {
	case typString:
		return func(s string) (interface{}, error) { return s, nil }, true
	case typBool:
		return func(s string) (interface{}, error) { return parseStrictBool(s) }, true
	case typInt:
		return func(s string) (interface{}, error) { return strconv.Atoi(s) }, true
	case typInt64:
		return func(s string) (interface{}, error) { return strconv.ParseInt(s, 10, 64) }, true
	case typUint:
		return func(s string) (interface{}, error) {
			result, err := strconv.ParseUint(s, 10, 32)
			return uint(result), err
		}, true
	case typUint64:
		return func(s string) (interface{}, error) { return strconv.ParseUint(s, 10, 64) }, true
	case typFloat64:
		return func(s string) (interface{}, error) { return strconv.ParseFloat(s, 64) }, true
	case typDuration:
		return func(s string) (interface{}, error) { return time.ParseDuration(s) }, true
	}
	return nil, false
}

// tupleEnforcer coerces tuple tokens position by position. In the cycling
// form (variadic tuples) the element types wrap around, so a single
// element type applies to every supplied position.
type tupleEnforcer struct {
	fns   []coerceFunc
	cycle bool
}

func newTupleEnforcer(elems []reflect.Type, cycle bool) (*tupleEnforcer, error) {
	fns := make([]coerceFunc, len(elems))
	for i, e := range elems {
		fn, ok := coercerFor(e)
		if !ok {
			return nil, fmt.Errorf("no coercion for tuple element type %s", e)
		}
		fns[i] = fn
	}
	return &tupleEnforcer{fns: fns, cycle: cycle}, nil
}

func (e *tupleEnforcer) coerce(pos int, token string) (interface{}, error) {
	i := pos
	if e.cycle {
		i = pos % len(e.fns)
	} else if pos >= len(e.fns) {
		return nil, fmt.Errorf("too many values (expected %d)", len(e.fns))
	}
	v, err := e.fns[i](token)
	if err != nil {
		return nil, fmt.Errorf("value %d: %w", pos+1, err)
	}
	return v, nil
}

// deepCopy clones a value so that bound arguments never alias a shared
// default. Scalars are returned as-is; pointers, slices, maps, arrays and
// structs are cloned recursively.
func deepCopy(v reflect.Value) reflect.Value {
	switch v.Kind() {
	case reflect.Ptr:
		if v.IsNil() {
			return v
		}
		out := reflect.New(v.Type().Elem())
		out.Elem().Set(deepCopy(v.Elem()))
		return out
	case reflect.Slice:
		if v.IsNil() {
			return v
		}
		out := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		for i := 0; i < v.Len(); i++ {
			out.Index(i).Set(deepCopy(v.Index(i)))
		}
		return out
	case reflect.Map:
		if v.IsNil() {
			return v
		}
		out := reflect.MakeMapWithSize(v.Type(), v.Len())
		iter := v.MapRange()
		for iter.Next() {
			out.SetMapIndex(deepCopy(iter.Key()), deepCopy(iter.Value()))
		}
		return out
	case reflect.Array:
		out := reflect.New(v.Type()).Elem()
		for i := 0; i < v.Len(); i++ {
			out.Index(i).Set(deepCopy(v.Index(i)))
		}
		return out
	case reflect.Struct:
		out := reflect.New(v.Type()).Elem()
		for i := 0; i < v.NumField(); i++ {
			if v.Type().Field(i).PkgPath != "" {
				continue
			}
			out.Field(i).Set(deepCopy(v.Field(i)))
		}
		return out
	case reflect.Interface:
		if v.IsNil() {
			return v
		}
		return deepCopy(v.Elem())
	}
	return v
}

// deepCopyAny is the interface-level convenience wrapper around deepCopy.
func deepCopyAny(v interface{}) interface{} {
	if v == nil {
		return nil
	}
	return deepCopy(reflect.ValueOf(v)).Interface()
}
