package typedargs

import (
	"fmt"
	"reflect"
	"strings"
)

// InvalidParamsError is returned when the value passed to New is not a
// pointer to a struct embedding ArgSet.
type InvalidParamsError struct {
	Type reflect.Type
}

func (e *InvalidParamsError) Error() string {
	const outputFmt = "typedargs: got %s, need a pointer to a struct embedding typedargs.ArgSet"
	if e.Type == nil {
		return fmt.Sprintf(outputFmt, "<nil>")
	}
	if e.Type.Kind() != reflect.Ptr {
		return fmt.Sprintf(outputFmt, "non-pointer "+e.Type.String())
	}
	return fmt.Sprintf(outputFmt, e.Type.String())
}

// UnsupportedTypeError is returned from New when a field's type does not
// match any automatically handled shape and no explicit coercion function
// was supplied for it.
type UnsupportedTypeError struct {
	Field string
	Type  reflect.Type
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf(
		"typedargs: field %q has type %s which is not handled automatically; "+
			"register it explicitly via AddArguments with the Type option",
		e.Field, e.Type)
}

// EmptyTupleError is returned from New for zero-length array or empty
// struct fields, which carry no element type to coerce against.
type EmptyTupleError struct {
	Field string
}

func (e *EmptyTupleError) Error() string {
	return fmt.Sprintf("typedargs: field %q declares an empty tuple", e.Field)
}

// MixedLiteralKindError is returned from New when an entry of a choices
// tag does not parse as the field's element type.
type MixedLiteralKindError struct {
	Field  string
	Choice string
	Elem   reflect.Type
}

func (e *MixedLiteralKindError) Error() string {
	return fmt.Sprintf("typedargs: field %q: choice %q is not a valid %s",
		e.Field, e.Choice, e.Elem)
}

// UnrecognizedArgumentError is returned by Parse when tokens are left over
// and known-only mode is off.
type UnrecognizedArgumentError struct {
	Args []string
}

func (e *UnrecognizedArgumentError) Error() string {
	return fmt.Sprintf("unrecognized arguments: %s", strings.Join(e.Args, " "))
}

// NotYetParsedError is returned when argument values are read before a
// successful Parse, ParseKnown, FromMap or Load call.
type NotYetParsedError struct {
	Op string
}

func (e *NotYetParsedError) Error() string {
	return fmt.Sprintf("typedargs: %s called before arguments were parsed", e.Op)
}

// MissingRequiredFieldError is returned by FromMap when the input record
// does not cover every required field that has no value yet.
type MissingRequiredFieldError struct {
	Missing []string
}

func (e *MissingRequiredFieldError) Error() string {
	switch len(e.Missing) {
	case 1:
		return fmt.Sprintf("typedargs: input does not include required argument %q", e.Missing[0])
	default:
		return fmt.Sprintf("typedargs: input does not include required arguments %q", strings.Join(e.Missing, ", "))
	}
}
