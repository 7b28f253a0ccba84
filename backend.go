package typedargs

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrHelp is returned by Parse in ContinueOnError mode when -h or --help
// is requested.
var ErrHelp = errors.New("help requested")

// backend is the flag registration and token scanning facility. It owns
// the spelling table and the usage message; it never coerces values, it
// only slices the token stream into raw per-argument string sequences.
type backend struct {
	prog  string
	specs []*argSpec
	flags map[string]*argSpec
}

func newBackend(prog string, specs []*argSpec) (*backend, error) {
	b := &backend{prog: prog, specs: specs, flags: make(map[string]*argSpec, len(specs))}
	for _, spec := range specs {
		if _, ok := b.flags[spec.flag]; ok {
			return nil, fmt.Errorf("typedargs: duplicate flag --%s", spec.flag)
		}
		b.flags[spec.flag] = spec
	}
	return b, nil
}

// scanResult holds raw parse output: ordered tokens per argument name and
// a presence marker for zero-arity flags.
type scanResult struct {
	values  map[string][]string
	present map[string]bool
	extra   []string
}

func (b *backend) scan(tokens []string) (*scanResult, error) {
	res := &scanResult{
		values:  map[string][]string{},
		present: map[string]bool{},
	}

	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		if tok == "--" {
			res.extra = append(res.extra, tokens[i+1:]...)
			break
		}

		name, inline, hasInline := splitInline(tok)
		spec := b.lookup(name)
		if spec == nil {
			if isHelpToken(name) {
				return nil, ErrHelp
			}
			res.extra = append(res.extra, tok)
			continue
		}
		res.present[spec.name] = true

		switch {
		case spec.nargs == 0:
			if hasInline {
				return nil, fmt.Errorf("flag --%s does not take a value", spec.flag)
			}
			res.values[spec.name] = nil

		case spec.nargs == nargsVariadic:
			if hasInline {
				res.values[spec.name] = []string{inline}
				continue
			}
			var vals []string
			for i+1 < len(tokens) && b.looksLikeValue(tokens[i+1]) {
				i++
				vals = append(vals, tokens[i])
			}
			res.values[spec.name] = vals

		case spec.nargs == 1:
			if hasInline {
				res.values[spec.name] = []string{inline}
				continue
			}
			if i+1 >= len(tokens) || !b.looksLikeValue(tokens[i+1]) {
				return nil, fmt.Errorf("flag needs an argument: --%s", spec.flag)
			}
			i++
			res.values[spec.name] = []string{tokens[i]}

		default:
			if hasInline {
				return nil, fmt.Errorf("flag --%s takes %d values", spec.flag, spec.nargs)
			}
			vals := make([]string, 0, spec.nargs)
			for len(vals) < spec.nargs {
				if i+1 >= len(tokens) || !b.looksLikeValue(tokens[i+1]) {
					return nil, fmt.Errorf("flag --%s requires %d values, got %d",
						spec.flag, spec.nargs, len(vals))
				}
				i++
				vals = append(vals, tokens[i])
			}
			res.values[spec.name] = vals
		}
	}

	if err := b.checkRequired(res); err != nil {
		return nil, err
	}
	return res, nil
}

func (b *backend) lookup(name string) *argSpec {
	if !strings.HasPrefix(name, "-") {
		return nil
	}
	return b.flags[strings.TrimLeft(name, "-")]
}

// looksLikeValue distinguishes value tokens from flag tokens so that
// variadic and multi-token arguments stop at the next flag. Negative
// numbers are values even though they start with a dash.
func (b *backend) looksLikeValue(tok string) bool {
	if !strings.HasPrefix(tok, "-") || tok == "-" {
		return true
	}
	if _, err := strconv.ParseFloat(tok, 64); err == nil {
		return true
	}
	return false
}

func (b *backend) checkRequired(res *scanResult) error {
	var missing []string
	for _, spec := range b.specs {
		if spec.required && !res.present[spec.name] {
			missing = append(missing, "--"+spec.flag)
		}
	}
	switch len(missing) {
	case 0:
		return nil
	case 1:
		return fmt.Errorf("missing required flag %q or its value", missing[0])
	default:
		return fmt.Errorf("missing required flags %q or their values", strings.Join(missing, ", "))
	}
}

func splitInline(tok string) (name, value string, ok bool) {
	if !strings.HasPrefix(tok, "-") {
		return tok, "", false
	}
	if i := strings.IndexByte(tok, '='); i >= 0 {
		return tok[:i], tok[i+1:], true
	}
	return tok, "", false
}

func isHelpToken(name string) bool {
	switch name {
	case "-h", "--h", "-help", "--help":
		return true
	}
	return false
}

// usage renders the full usage message from the argSpec table, in
// registration order.
func (b *backend) usage() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Usage of %s:\n", b.prog)
	for _, spec := range b.specs {
		fmt.Fprintf(&sb, "  --%s%s\n", spec.flag, b.metavar(spec))
		if spec.help != "" {
			fmt.Fprintf(&sb, "        %s\n", spec.help)
		}
	}
	return sb.String()
}

func (b *backend) metavar(spec *argSpec) string {
	if len(spec.choices) > 0 {
		parts := make([]string, len(spec.choices))
		for i, c := range spec.choices {
			parts[i] = fmt.Sprintf("%v", c)
		}
		set := "{" + strings.Join(parts, "|") + "}"
		if spec.nargs == nargsVariadic {
			return " [" + set + " ...]"
		}
		return " " + set
	}
	switch {
	case spec.nargs == 0:
		return ""
	case spec.nargs == nargsVariadic:
		return " [value ...]"
	case spec.nargs > 1:
		return strings.Repeat(" value", spec.nargs)
	}
	return " value"
}
