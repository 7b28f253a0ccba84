package typedargs

import (
	"fmt"
	"reflect"
	"strings"
)

// ArgumentAdder is implemented by argument structs that want to override
// or extend the synthesized argument set. AddArguments runs once per
// instance, after schema resolution and before flag registration.
type ArgumentAdder interface {
	AddArguments(b *Builder)
}

// PostProcessor is implemented by argument structs that want a hook after
// values are bound; an error aborts the whole parse.
type PostProcessor interface {
	ProcessArgs() error
}

// An ArgOption customizes a single argument registered via AddArgument.
// Options the user sets win over synthesized values; everything left
// unset is filled in from the field's declared type, tag and default.
type ArgOption func(*argOverride)

// Type supplies an explicit token coercion function. It is the escape
// hatch for field types outside the automatically handled set.
func Type(fn func(string) (interface{}, error)) ArgOption {
	return func(o *argOverride) {
		o.coerce = fn
		o.hasCoerce = true
	}
}

// Default overrides the argument's default value.
func Default(v interface{}) ArgOption {
	return func(o *argOverride) {
		o.def = v
		o.hasDefault = true
	}
}

// Required overrides the synthesized required flag.
func Required(r bool) ArgOption {
	return func(o *argOverride) {
		o.required = r
		o.hasRequired = true
	}
}

// NArgs fixes the number of tokens the argument consumes.
func NArgs(n int) ArgOption {
	return func(o *argOverride) {
		o.nargs = n
		o.hasNArgs = true
	}
}

// Variadic makes the argument consume zero or more tokens.
func Variadic() ArgOption {
	return func(o *argOverride) {
		o.nargs = nargsVariadic
		o.hasNArgs = true
	}
}

// Choices restricts the argument to the given typed values. Comparison
// happens after coercion.
func Choices(vals ...interface{}) ArgOption {
	return func(o *argOverride) {
		o.choices = vals
		o.hasChoices = true
	}
}

// Help replaces the synthesized help text entirely.
func Help(s string) ArgOption {
	return func(o *argOverride) {
		o.help = s
		o.hasHelp = true
	}
}

// Flag overrides the flag spelling (without leading dashes).
func Flag(name string) ArgOption {
	return func(o *argOverride) {
		o.flag = strings.TrimLeft(name, "-")
	}
}

type argOverride struct {
	name        string
	flag        string
	coerce      coerceFunc
	hasCoerce   bool
	def         interface{}
	hasDefault  bool
	required    bool
	hasRequired bool
	nargs       int
	hasNArgs    bool
	choices     []interface{}
	hasChoices  bool
	help        string
	hasHelp     bool
}

// Builder buffers user argument overrides during the AddArguments hook.
type Builder struct {
	overrides map[string]*argOverride
	order     []string
}

func newBuilder() *Builder {
	return &Builder{overrides: map[string]*argOverride{}}
}

// AddArgument registers an override for the named argument. The name may
// be given with or without leading dashes. A name that does not match any
// declared field creates a new argument, appended after all declared
// ones in registration order; its parsed value is retrieved via Get.
func (b *Builder) AddArgument(name string, opts ...ArgOption) {
	dest := destName(name)
	o, ok := b.overrides[dest]
	if !ok {
		o = &argOverride{name: dest}
		b.overrides[dest] = o
		b.order = append(b.order, dest)
	}
	for _, opt := range opts {
		opt(o)
	}
}

// destName normalizes a flag spelling into the argument name: leading
// dashes stripped, dashes folded to underscores.
func destName(name string) string {
	return strings.ReplaceAll(strings.TrimLeft(name, "-"), "-", "_")
}

// Token arities. Zero means presence-only (implicit booleans); positive
// values consume exactly that many tokens.
const nargsVariadic = -1

// argSpec is the fully resolved argument specification handed to the
// parsing backend. Exactly one exists per argument name.
type argSpec struct {
	name       string
	flag       string // canonical spelling without dashes
	shape      typeShape
	coerce     coerceFunc     // element coercion for non-tuple shapes
	enforcer   *tupleEnforcer // position-aware coercion for tuple shapes
	def        interface{}
	hasDefault bool
	required   bool
	nargs      int
	choices    []interface{} // typed, compared post-coercion
	boolFlag   bool          // presence toggles instead of carrying a value
	toggleTo   bool          // value stored when a boolFlag is present
	help       string
	declared   bool  // came from the struct hierarchy
	index      []int // field index path; nil for override-only arguments
	typ        reflect.Type
}

// synthesize combines a declared field with its user override into a
// complete argSpec. Overrides win field by field wherever they were
// explicitly set.
func (p *parser) synthesize(fs *fieldSpec, ov *argOverride) (*argSpec, error) {
	shape, err := classify(fs.name, fs.typ, fs.choices)
	if err != nil {
		return nil, err
	}
	if shape.kind == shapeUnsupported {
		if ov == nil || !ov.hasCoerce {
			return nil, &UnsupportedTypeError{Field: fs.name, Type: fs.typ}
		}
		shape = typeShape{kind: shapeCustom, typ: fs.typ}
	}

	spec := &argSpec{
		name:     fs.name,
		flag:     fs.name,
		shape:    shape,
		declared: true,
		index:    fs.index,
		typ:      fs.typ,
	}
	if fs.flagTag != "" {
		spec.flag = fs.flagTag
	}
	if p.dashNames {
		spec.flag = strings.ReplaceAll(spec.flag, "_", "-")
	}

	if err := p.resolveCoercion(spec, ov); err != nil {
		return nil, err
	}
	if err := p.resolveDefault(spec, fs, ov); err != nil {
		return nil, err
	}
	p.resolveRequired(spec, ov)
	p.resolveArity(spec, ov)
	if err := p.resolveChoices(spec, ov); err != nil {
		return nil, err
	}
	p.resolveBool(spec, ov)
	p.resolveHelp(spec, fs.help, ov)

	if ov != nil && ov.flag != "" {
		spec.flag = ov.flag
	}
	return spec, nil
}

// synthesizeExtra builds an argSpec for an argument that exists only as a
// user override, with no declared field behind it.
func (p *parser) synthesizeExtra(ov *argOverride) *argSpec {
	spec := &argSpec{
		name:  ov.name,
		flag:  ov.name,
		shape: typeShape{kind: shapeCustom},
	}
	if p.dashNames {
		spec.flag = strings.ReplaceAll(spec.flag, "_", "-")
	}
	if ov.flag != "" {
		spec.flag = ov.flag
	}
	spec.coerce = func(s string) (interface{}, error) { return s, nil }
	if ov.hasCoerce {
		spec.coerce = ov.coerce
	}
	if ov.hasDefault {
		spec.def = ov.def
		spec.hasDefault = true
	}
	spec.required = !spec.hasDefault
	if ov.hasRequired {
		spec.required = ov.required
	}
	spec.nargs = 1
	if ov.hasNArgs {
		spec.nargs = ov.nargs
	}
	if ov.hasChoices {
		spec.choices = ov.choices
	}
	spec.help = p.autoHelp(spec, "")
	if ov.hasHelp {
		spec.help = ov.help
	}
	return spec
}

func (p *parser) resolveCoercion(spec *argSpec, ov *argOverride) error {
	if ov != nil && ov.hasCoerce {
		spec.coerce = ov.coerce
		return nil
	}
	switch spec.shape.kind {
	case shapeTupleFixed:
		enf, err := newTupleEnforcer(spec.shape.elems, false)
		if err != nil {
			return err
		}
		spec.enforcer = enf
	case shapeTupleVariadic:
		enf, err := newTupleEnforcer(spec.shape.elems, true)
		if err != nil {
			return err
		}
		spec.enforcer = enf
	default:
		fn, ok := coercerFor(spec.shape.elems[0])
		if !ok {
			return &UnsupportedTypeError{Field: spec.name, Type: spec.typ}
		}
		spec.coerce = fn
	}
	return nil
}

func (p *parser) resolveDefault(spec *argSpec, fs *fieldSpec, ov *argOverride) error {
	if ov != nil && ov.hasDefault {
		spec.def = ov.def
		spec.hasDefault = true
		return nil
	}
	if fs.hasDefault {
		def, err := p.parseDefaultTag(spec, fs.defaultTag)
		if err != nil {
			return fmt.Errorf("field %q: invalid default %q: %w", fs.name, fs.defaultTag, err)
		}
		spec.def = def
		spec.hasDefault = true
		return nil
	}
	// A non-zero value present at construction acts as the declared
	// default, the way a preset struct literal reads.
	field := p.target.FieldByIndex(fs.index)
	if !field.IsZero() {
		spec.def = field.Interface()
		spec.hasDefault = true
	}
	return nil
}

// parseDefaultTag coerces the raw default tag through the field's own
// coercion machinery. Container shapes take a comma-separated list.
func (p *parser) parseDefaultTag(spec *argSpec, raw string) (interface{}, error) {
	switch spec.shape.kind {
	case shapeList, shapeSet, shapeTupleFixed, shapeTupleVariadic:
		var tokens []string
		if raw != "" {
			tokens = strings.Split(raw, ",")
		}
		vals := make([]interface{}, len(tokens))
		for i, tok := range tokens {
			var v interface{}
			var err error
			if spec.enforcer != nil {
				v, err = spec.enforcer.coerce(i, strings.TrimSpace(tok))
			} else {
				v, err = spec.coerce(strings.TrimSpace(tok))
			}
			if err != nil {
				return nil, err
			}
			vals[i] = v
		}
		rv, err := p.containerize(spec, vals)
		if err != nil {
			return nil, err
		}
		return rv.Interface(), nil
	case shapeOptional, shapeOptionalLiteral:
		v, err := spec.coerce(raw)
		if err != nil {
			return nil, err
		}
		ptr := reflect.New(spec.typ.Elem())
		ptr.Elem().Set(reflect.ValueOf(v).Convert(spec.typ.Elem()))
		return ptr.Interface(), nil
	default:
		return spec.coerce(raw)
	}
}

func (p *parser) resolveRequired(spec *argSpec, ov *argOverride) {
	spec.required = !spec.hasDefault && !spec.shape.optionalLike() && !spec.shape.isBool()
	if ov != nil && ov.hasRequired {
		spec.required = ov.required
	}
}

func (p *parser) resolveArity(spec *argSpec, ov *argOverride) {
	switch {
	case spec.shape.variadic():
		spec.nargs = nargsVariadic
	case spec.shape.kind == shapeTupleFixed:
		spec.nargs = len(spec.shape.elems)
	case spec.shape.isBool() && !p.explicitBool:
		spec.nargs = 0
	default:
		spec.nargs = 1
	}
	if ov != nil && ov.hasNArgs {
		spec.nargs = ov.nargs
	}
}

func (p *parser) resolveChoices(spec *argSpec, ov *argOverride) error {
	if ov != nil && ov.hasChoices {
		spec.choices = ov.choices
		return nil
	}
	if spec.shape.choices == nil {
		return nil
	}
	choices := make([]interface{}, len(spec.shape.choices))
	for i, c := range spec.shape.choices {
		v, err := spec.coerce(c)
		if err != nil {
			return &MixedLiteralKindError{Field: spec.name, Choice: c, Elem: spec.shape.elems[0]}
		}
		choices[i] = v
	}
	spec.choices = choices
	return nil
}

func (p *parser) resolveBool(spec *argSpec, ov *argOverride) {
	if !spec.shape.isBool() {
		return
	}
	if p.explicitBool {
		if spec.choices == nil {
			spec.choices = []interface{}{true, false}
		}
		return
	}
	spec.boolFlag = true
	def, _ := spec.def.(bool)
	spec.toggleTo = !def
}

func (p *parser) resolveHelp(spec *argSpec, comment string, ov *argOverride) {
	if ov != nil && ov.hasHelp {
		spec.help = ov.help
		return
	}
	spec.help = p.autoHelp(spec, comment)
}

// autoHelp composes the deterministic help line:
// "(<type>, required)" or "(<type>, default=<value>)", followed by the
// field's own help tag when present.
func (p *parser) autoHelp(spec *argSpec, comment string) string {
	var b strings.Builder
	b.WriteByte('(')
	if spec.typ != nil {
		b.WriteString(spec.shape.String())
		b.WriteString(", ")
	}
	if spec.required {
		b.WriteString("required")
	} else {
		fmt.Fprintf(&b, "default=%s", p.renderDefault(spec))
	}
	b.WriteByte(')')
	if comment != "" {
		b.WriteByte(' ')
		b.WriteString(comment)
	}
	return b.String()
}

func (p *parser) renderDefault(spec *argSpec) string {
	if spec.hasDefault {
		if rv := reflect.ValueOf(spec.def); rv.Kind() == reflect.Ptr && !rv.IsNil() {
			return fmt.Sprintf("%v", rv.Elem().Interface())
		}
		return fmt.Sprintf("%v", spec.def)
	}
	if spec.shape.isBool() {
		return "false"
	}
	return "<nil>"
}
