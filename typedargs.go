package typedargs

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
)

// ErrorHandling defines how Parse behaves on failure, mirroring the
// stdlib flag package split.
type ErrorHandling int

const (
	// ExitOnError prints the usage message and the error to the
	// configured output and exits with status 2. This is the default.
	ExitOnError ErrorHandling = iota
	// ContinueOnError returns the error to the caller.
	ContinueOnError
)

// ArgSet is the embeddable core of a typed argument struct. Embed it
// (directly or through another argument struct) and initialize the whole
// value with New:
//
//	type TrainArgs struct {
//		typedargs.ArgSet
//
//		LearningRate float64 `help:"Learning rate for the optimizer"`
//		Epochs       int     `default:"10"`
//		Seed         *int
//		Layers       []int
//		Mode         string `choices:"fast,slow"`
//		Verbose      bool
//	}
//
//	args := &TrainArgs{}
//	set, err := typedargs.New(args)
//	...
//	set.Parse(nil) // nil means os.Args[1:]
//
// Field types determine everything: pointers are optional, slices are
// variadic, maps with struct{} or bool values are sets, arrays and plain
// structs of primitives are fixed tuples, a choices tag turns the field
// into a closed enumeration. A field with no default and a non-optional,
// non-boolean type is required.
//
// ArgSet itself carries no state, so argument structs stay plain data
// and compare cleanly with reflect.DeepEqual. The parser built by New is
// associated with the embedded instance through its address.
type ArgSet struct {
	// The padding byte keeps ArgSet non-zero-sized, so every embedded
	// instance has a unique address to key the parser registry with.
	_ byte
}

// parsers associates each initialized ArgSet with its parser.
var parsers sync.Map // *ArgSet -> *parser

type parser struct {
	target      reflect.Value // the leaf struct
	targetIface interface{}   // the original pointer, for hook dispatch
	specs       []*argSpec
	byName      map[string]*argSpec
	backend     *backend
	extras      map[string]interface{} // values of override-only arguments
	bound       map[string]bool
	extraArgs   []string
	parsed      bool

	prog         string
	out          io.Writer
	log          logr.Logger
	dashNames    bool
	explicitBool bool
	onError      ErrorHandling
	exit         func(int) // test seam around os.Exit
}

// An Option configures parser construction.
type Option func(*parser)

// DashNames converts underscores in derived flag names to dashes.
func DashNames() Option {
	return func(p *parser) { p.dashNames = true }
}

// ExplicitBool makes boolean flags demand an explicit true/false token
// instead of toggling on presence.
func ExplicitBool() Option {
	return func(p *parser) { p.explicitBool = true }
}

// WithLogger replaces the logger used for non-fatal warnings.
func WithLogger(l logr.Logger) Option {
	return func(p *parser) { p.log = l }
}

// WithErrorHandling selects the Parse failure behavior.
func WithErrorHandling(h ErrorHandling) Option {
	return func(p *parser) { p.onError = h }
}

// WithProg overrides the program name shown in the usage message.
func WithProg(name string) Option {
	return func(p *parser) { p.prog = name }
}

// WithOutput redirects usage and error output (stderr by default).
func WithOutput(w io.Writer) Option {
	return func(p *parser) { p.out = w }
}

// New resolves the argument schema of target, runs its AddArguments hook
// if present, and synthesizes the complete argument specification. The
// target must be a pointer to a struct embedding ArgSet. All shape and
// declaration problems surface here, before any parsing.
func New(target interface{}, opts ...Option) (*ArgSet, error) {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Ptr || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return nil, &InvalidParamsError{Type: reflect.TypeOf(target)}
	}

	p := &parser{
		target:      rv.Elem(),
		targetIface: target,
		byName:      map[string]*argSpec{},
		extras:      map[string]interface{}{},
		bound:       map[string]bool{},
		prog:        filepath.Base(os.Args[0]),
		out:         os.Stderr,
		log:         stdr.New(log.New(os.Stderr, "", log.Lmsgprefix)),
		exit:        os.Exit,
	}
	for _, opt := range opts {
		opt(p)
	}

	as := findArgSet(p.target)
	if as == nil {
		return nil, &InvalidParamsError{Type: reflect.TypeOf(target)}
	}

	fields, err := resolveSchema(p.target.Type())
	if err != nil {
		return nil, err
	}

	b := newBuilder()
	if adder, ok := target.(ArgumentAdder); ok {
		adder.AddArguments(b)
	}

	for i := range fields {
		fs := &fields[i]
		spec, err := p.synthesize(fs, b.overrides[fs.name])
		if err != nil {
			return nil, err
		}
		p.specs = append(p.specs, spec)
		p.byName[spec.name] = spec
	}
	// Override-only arguments follow the declared ones, in registration
	// order.
	for _, name := range b.order {
		if _, ok := p.byName[name]; ok {
			continue
		}
		spec := p.synthesizeExtra(b.overrides[name])
		p.specs = append(p.specs, spec)
		p.byName[spec.name] = spec
	}

	p.backend, err = newBackend(p.prog, p.specs)
	if err != nil {
		return nil, err
	}

	parsers.Store(as, p)
	return as, nil
}

// MustParse is the one-call form: it builds the parser and parses
// os.Args[1:], panicking on construction errors. Parse failures follow
// the configured error handling (exit by default).
func MustParse(target interface{}, opts ...Option) *ArgSet {
	as, err := New(target, opts...)
	if err != nil {
		panic(err)
	}
	if err := as.Parse(nil); err != nil {
		panic(err)
	}
	return as
}

func (a *ArgSet) parser() (*parser, error) {
	if a != nil {
		if v, ok := parsers.Load(a); ok {
			return v.(*parser), nil
		}
	}
	return nil, fmt.Errorf("typedargs: ArgSet not initialized, construct it with New")
}

// Parse scans the given tokens (os.Args[1:] when nil), coerces every
// value into its declared type, binds the results onto the argument
// struct and runs the ProcessArgs hook. Leftover tokens are fatal.
func (a *ArgSet) Parse(args []string) error {
	return a.parse(args, false)
}

// ParseKnown is like Parse but tolerates unrecognized tokens, which are
// collected and available via ExtraArgs.
func (a *ArgSet) ParseKnown(args []string) error {
	return a.parse(args, true)
}

func (a *ArgSet) parse(args []string, knownOnly bool) error {
	p, err := a.parser()
	if err != nil {
		return err
	}
	if args == nil {
		args = os.Args[1:]
	}

	res, err := p.backend.scan(args)
	if err == ErrHelp {
		if p.onError == ContinueOnError {
			return ErrHelp
		}
		fmt.Fprint(os.Stdout, p.backend.usage())
		p.exit(0)
		return nil
	}
	if err != nil {
		return p.fail(err)
	}
	if !knownOnly && len(res.extra) > 0 {
		return p.fail(&UnrecognizedArgumentError{Args: res.extra})
	}
	p.extraArgs = res.extra

	for _, spec := range p.specs {
		if err := p.bindSpec(spec, res); err != nil {
			return p.fail(err)
		}
	}

	if post, ok := p.targetIface.(PostProcessor); ok {
		if err := post.ProcessArgs(); err != nil {
			return p.fail(fmt.Errorf("processing arguments failed: %w", err))
		}
	}

	p.parsed = true
	return nil
}

// fail reports a parse error according to the configured handling.
func (p *parser) fail(err error) error {
	if p.onError == ContinueOnError {
		return err
	}
	fmt.Fprint(p.out, p.backend.usage())
	fmt.Fprintf(p.out, "error: %v\n", err)
	p.exit(2)
	return err
}

// bindSpec turns one argument's raw scan result into its final typed
// value and stores it. Raw sequences become sets or tuples where the
// declared shape demands it; every stored value is deep-copied so bound
// state never aliases a shared default.
func (p *parser) bindSpec(spec *argSpec, res *scanResult) error {
	if spec.boolFlag {
		val := spec.toggleTo
		if !res.present[spec.name] {
			if def, ok := spec.def.(bool); ok {
				val = def
			} else {
				val = false
			}
		}
		return p.store(spec, val)
	}

	if !res.present[spec.name] {
		if spec.hasDefault {
			return p.store(spec, deepCopyAny(spec.def))
		}
		// Optional shapes bind the absent value; anything else without a
		// default was either caught by the required check or keeps its
		// zero value.
		return nil
	}

	raw := res.values[spec.name]
	if spec.nargs == 1 {
		v, err := p.coerceOne(spec, 0, raw[0])
		if err != nil {
			return err
		}
		return p.store(spec, v)
	}

	vals := make([]interface{}, len(raw))
	for i, tok := range raw {
		v, err := p.coerceOne(spec, i, tok)
		if err != nil {
			return err
		}
		vals[i] = v
	}
	rv, err := p.containerize(spec, vals)
	if err != nil {
		return err
	}
	return p.storeValue(spec, rv)
}

func (p *parser) coerceOne(spec *argSpec, pos int, token string) (interface{}, error) {
	var (
		v   interface{}
		err error
	)
	if spec.enforcer != nil {
		v, err = spec.enforcer.coerce(pos, token)
	} else {
		v, err = spec.coerce(token)
	}
	if err != nil {
		return nil, fmt.Errorf("invalid value %q for flag --%s: %w", token, spec.flag, err)
	}
	if spec.choices != nil {
		if err := checkChoice(spec, v); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// checkChoice compares the coerced (typed) value against the permitted
// set.
func checkChoice(spec *argSpec, v interface{}) error {
	for _, c := range spec.choices {
		if c == v {
			return nil
		}
	}
	parts := make([]string, len(spec.choices))
	for i, c := range spec.choices {
		parts[i] = fmt.Sprintf("%v", c)
	}
	return fmt.Errorf("invalid choice %v for flag --%s (choose from %s)",
		v, spec.flag, strings.Join(parts, ", "))
}

// containerize assembles coerced element values into the declared
// container kind. The backend only ever produces ordered sequences; the
// conversion to sets and tuples happens here, after parsing.
func (p *parser) containerize(spec *argSpec, vals []interface{}) (reflect.Value, error) {
	if spec.typ == nil {
		// Override-only arguments keep the ordered sequence.
		return reflect.ValueOf(vals), nil
	}
	switch spec.shape.kind {
	case shapeSet:
		out := reflect.MakeMapWithSize(spec.typ, len(vals))
		elem := spec.typ.Elem()
		for _, v := range vals {
			out.SetMapIndex(reflect.ValueOf(v).Convert(spec.typ.Key()), zeroSetValue(elem))
		}
		return out, nil
	case shapeTupleFixed:
		if len(vals) != len(spec.shape.elems) {
			return reflect.Value{}, fmt.Errorf("flag --%s requires %d values, got %d",
				spec.flag, len(spec.shape.elems), len(vals))
		}
		out := reflect.New(spec.typ).Elem()
		for i, v := range vals {
			pos := out.Index(i)
			if spec.typ.Kind() == reflect.Struct {
				pos = out.Field(i)
			}
			pos.Set(reflect.ValueOf(v).Convert(pos.Type()))
		}
		return out, nil
	case shapeTupleVariadic:
		out := reflect.New(spec.typ).Elem()
		slot := out.Field(0)
		slice := reflect.MakeSlice(slot.Type(), len(vals), len(vals))
		for i, v := range vals {
			slice.Index(i).Set(reflect.ValueOf(v).Convert(slot.Type().Elem()))
		}
		slot.Set(slice)
		return out, nil
	default: // list shapes
		out := reflect.MakeSlice(spec.typ, len(vals), len(vals))
		for i, v := range vals {
			out.Index(i).Set(reflect.ValueOf(v).Convert(spec.typ.Elem()))
		}
		return out, nil
	}
}

func zeroSetValue(elem reflect.Type) reflect.Value {
	if elem == typBool {
		return reflect.ValueOf(true)
	}
	return reflect.New(elem).Elem()
}

// store coerces an interface-level value into the argument's declared
// type and binds it.
func (p *parser) store(spec *argSpec, v interface{}) error {
	if spec.index == nil {
		p.extras[spec.name] = deepCopyAny(v)
		p.bound[spec.name] = true
		return nil
	}
	field := p.target.FieldByIndex(spec.index)
	rv := reflect.ValueOf(v)
	switch {
	case v == nil:
		field.Set(reflect.Zero(field.Type()))
	case rv.Type() == field.Type():
		field.Set(deepCopy(rv))
	case spec.shape.optionalLike() && rv.Type() == field.Type().Elem():
		ptr := reflect.New(field.Type().Elem())
		ptr.Elem().Set(rv)
		field.Set(ptr)
	case rv.Type().ConvertibleTo(field.Type()):
		field.Set(rv.Convert(field.Type()))
	default:
		return fmt.Errorf("cannot assign %T to field %s (%s)", v, spec.name, field.Type())
	}
	p.bound[spec.name] = true
	return nil
}

func (p *parser) storeValue(spec *argSpec, rv reflect.Value) error {
	if spec.index == nil {
		p.extras[spec.name] = deepCopy(rv).Interface()
		p.bound[spec.name] = true
		return nil
	}
	field := p.target.FieldByIndex(spec.index)
	field.Set(deepCopy(rv))
	p.bound[spec.name] = true
	return nil
}

// Get returns the current value of the named argument. It fails with
// NotYetParsedError before a successful parse or import.
func (a *ArgSet) Get(name string) (interface{}, error) {
	p, err := a.parser()
	if err != nil {
		return nil, err
	}
	if !p.parsed {
		return nil, &NotYetParsedError{Op: "Get"}
	}
	spec, ok := p.byName[destName(name)]
	if !ok {
		return nil, fmt.Errorf("typedargs: unknown argument %q", name)
	}
	return p.value(spec), nil
}

func (p *parser) value(spec *argSpec) interface{} {
	if spec.index == nil {
		return p.extras[spec.name]
	}
	return p.target.FieldByIndex(spec.index).Interface()
}

// ExtraArgs returns the tokens left unparsed by the last ParseKnown call.
func (a *ArgSet) ExtraArgs() []string {
	p, err := a.parser()
	if err != nil {
		return nil
	}
	return p.extraArgs
}

// Usage returns the generated usage message.
func (a *ArgSet) Usage() string {
	p, err := a.parser()
	if err != nil {
		return ""
	}
	return p.backend.usage()
}

// String renders the parsed argument map, one sorted name=value pair per
// line. Before parsing it identifies the value as unparsed instead.
func (a *ArgSet) String() string {
	m, err := a.AsMap()
	if err != nil {
		return "typedargs.ArgSet(unparsed)"
	}
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s=%v", name, m[name])
	}
	return "{" + strings.Join(parts, " ") + "}"
}
