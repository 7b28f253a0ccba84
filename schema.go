package typedargs

import (
	"reflect"
	"strings"
	"unicode"
)

// A fieldSpec is one declared argument candidate resolved from the struct
// hierarchy. The table of fieldSpecs is built once at construction and is
// immutable afterwards.
type fieldSpec struct {
	name       string // argument name, snake_case of the Go field name
	goName     string
	index      []int // index path from the leaf struct
	typ        reflect.Type
	help       string
	flagTag    string   // explicit flag name override, "" if absent
	defaultTag string   // raw default from the tag
	hasDefault bool     // the tag was present (even if empty)
	choices    []string // nil when no choices tag
	owner      reflect.Type
}

var argSetType = reflect.TypeOf(ArgSet{})

// isSchemaLayer reports whether a struct type belongs to the argument
// schema family, i.e. embeds ArgSet directly or through other layers.
// Fields declared on structs outside the family are never merged.
func isSchemaLayer(t reflect.Type) bool {
	if t.Kind() != reflect.Struct {
		return false
	}
	if t == argSetType {
		return true
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Anonymous && isSchemaLayer(f.Type) {
			return true
		}
	}
	return false
}

type schemaLayer struct {
	typ    reflect.Type
	prefix []int
}

// resolveSchema walks the leaf struct and its embedded schema layers
// breadth first and returns the merged, ordered field table. The leaf's
// own fields are collected before any layer is visited, and a name that
// is already present is never overwritten by a deeper layer, so outer
// declarations always shadow embedded ones no matter the visit order.
func resolveSchema(leaf reflect.Type) ([]fieldSpec, error) {
	var (
		specs   []fieldSpec
		seen    = map[string]struct{}{}
		visited = map[reflect.Type]struct{}{}
		queue   = []schemaLayer{{typ: leaf}}
	)

	for len(queue) > 0 {
		layer := queue[0]
		queue = queue[1:]

		if _, ok := visited[layer.typ]; ok {
			continue
		}
		visited[layer.typ] = struct{}{}
		if layer.typ == argSetType {
			continue
		}

		for i := 0; i < layer.typ.NumField(); i++ {
			f := layer.typ.Field(i)
			index := appendIndex(layer.prefix, i)

			if f.Anonymous {
				if isSchemaLayer(f.Type) {
					queue = append(queue, schemaLayer{typ: f.Type, prefix: index})
				}
				continue
			}
			if f.PkgPath != "" || f.Type.Kind() == reflect.Func {
				continue
			}
			if f.Tag.Get("flag") == "-" {
				continue
			}

			name := snakeCase(f.Name)
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}

			spec := fieldSpec{
				name:    name,
				goName:  f.Name,
				index:   index,
				typ:     f.Type,
				help:    f.Tag.Get("help"),
				flagTag: f.Tag.Get("flag"),
				owner:   layer.typ,
			}
			if def, ok := f.Tag.Lookup("default"); ok {
				spec.defaultTag = def
				spec.hasDefault = true
			}
			if raw, ok := f.Tag.Lookup("choices"); ok {
				spec.choices = splitChoices(raw)
			}
			specs = append(specs, spec)
		}
	}

	return specs, nil
}

func appendIndex(prefix []int, i int) []int {
	index := make([]int, len(prefix), len(prefix)+1)
	copy(index, prefix)
	return append(index, i)
}

func splitChoices(raw string) []string {
	parts := strings.Split(raw, ",")
	choices := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			choices = append(choices, p)
		}
	}
	return choices
}

// findArgSet locates the embedded ArgSet within the leaf struct value,
// descending through embedded layers.
func findArgSet(v reflect.Value) *ArgSet {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.Anonymous {
			continue
		}
		if f.Type == argSetType {
			return v.Field(i).Addr().Interface().(*ArgSet)
		}
		if isSchemaLayer(f.Type) {
			if as := findArgSet(v.Field(i)); as != nil {
				return as
			}
		}
	}
	return nil
}

// snakeCase converts a Go field name to its argument name, e.g.
// "LearningRate" -> "learning_rate" and "HTTPPort" -> "http_port".
func snakeCase(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			prevLower := i > 0 && (unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1]))
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if i > 0 && (prevLower || nextLower) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
