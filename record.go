package typedargs

import (
	"encoding/json"
	"fmt"
	"os"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/typedargs/typedargs/internal/gitinfo"
)

// reproducibilityKey is the record key carrying write-only provenance
// metadata; it is stripped on Load and never bound to an argument.
const reproducibilityKey = "reproducibility"

// AsMap returns every resolved argument's current value keyed by name.
// It fails with NotYetParsedError before a successful parse or import.
// Calling it twice without intervening mutation returns equal maps.
func (a *ArgSet) AsMap() (map[string]interface{}, error) {
	p, err := a.parser()
	if err != nil {
		return nil, err
	}
	if !p.parsed {
		return nil, &NotYetParsedError{Op: "AsMap"}
	}
	m := make(map[string]interface{}, len(p.specs))
	for _, spec := range p.specs {
		m[spec.name] = p.value(spec)
	}
	return m, nil
}

// FromMap binds argument values from a record keyed by argument name.
// Every required argument that has no value yet must be covered by the
// record, otherwise MissingRequiredFieldError names the gaps. Keys that
// match no settable argument are logged and skipped, not fatal. On
// success the instance counts as parsed.
func (a *ArgSet) FromMap(values map[string]interface{}) error {
	p, err := a.parser()
	if err != nil {
		return err
	}

	var missing []string
	for _, spec := range p.specs {
		if !spec.required || p.bound[spec.name] {
			continue
		}
		if _, ok := values[spec.name]; !ok {
			missing = append(missing, spec.name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return &MissingRequiredFieldError{Missing: missing}
	}

	for key, value := range values {
		spec, ok := p.byName[key]
		if !ok {
			p.log.Info("ignoring value for unknown argument", "name", key)
			continue
		}
		if err := p.bindLoose(spec, value); err != nil {
			p.log.Info("ignoring unsettable argument value", "name", key, "reason", err.Error())
			continue
		}
		p.bound[spec.name] = true
	}

	p.parsed = true
	return nil
}

// bindLoose assigns an imported value to an argument, converting the
// loosely typed forms a JSON round trip produces (float64 numbers,
// []interface{} sequences, objects for sets and tuple structs).
func (p *parser) bindLoose(spec *argSpec, value interface{}) error {
	if spec.index == nil {
		p.extras[spec.name] = deepCopyAny(value)
		return nil
	}
	field := p.target.FieldByIndex(spec.index)
	rv, err := convertLoose(field.Type(), value)
	if err != nil {
		return err
	}
	field.Set(rv)
	return nil
}

func convertLoose(t reflect.Type, value interface{}) (reflect.Value, error) {
	if value == nil {
		return reflect.Zero(t), nil
	}
	rv := reflect.ValueOf(value)
	if rv.Type() == t {
		return deepCopy(rv), nil
	}

	switch t.Kind() {
	case reflect.Ptr:
		if rv.Kind() == reflect.Ptr {
			rv = rv.Elem()
		}
		elem, err := convertLoose(t.Elem(), rv.Interface())
		if err != nil {
			return reflect.Value{}, err
		}
		out := reflect.New(t.Elem())
		out.Elem().Set(elem)
		return out, nil

	case reflect.Slice:
		items, err := sequenceOf(value)
		if err != nil {
			return reflect.Value{}, err
		}
		out := reflect.MakeSlice(t, len(items), len(items))
		for i, item := range items {
			ev, err := convertLoose(t.Elem(), item)
			if err != nil {
				return reflect.Value{}, err
			}
			out.Index(i).Set(ev)
		}
		return out, nil

	case reflect.Array:
		items, err := sequenceOf(value)
		if err != nil {
			return reflect.Value{}, err
		}
		if len(items) != t.Len() {
			return reflect.Value{}, fmt.Errorf("need %d values, got %d", t.Len(), len(items))
		}
		out := reflect.New(t).Elem()
		for i, item := range items {
			ev, err := convertLoose(t.Elem(), item)
			if err != nil {
				return reflect.Value{}, err
			}
			out.Index(i).Set(ev)
		}
		return out, nil

	case reflect.Map:
		return convertLooseSet(t, value)

	case reflect.Struct:
		return convertLooseStruct(t, value)
	}

	if rv.Type().ConvertibleTo(t) && isScalarKind(rv.Kind()) && isScalarKind(t.Kind()) {
		return rv.Convert(t), nil
	}
	return reflect.Value{}, fmt.Errorf("cannot convert %T to %s", value, t)
}

// convertLooseSet rebuilds a set from either a native map, a JSON object
// (keys stringified) or a plain sequence of members.
func convertLooseSet(t reflect.Type, value interface{}) (reflect.Value, error) {
	out := reflect.MakeMap(t)
	addKey := func(item interface{}) error {
		kv, err := convertLoose(t.Key(), item)
		if err != nil {
			return err
		}
		out.SetMapIndex(kv, zeroSetValue(t.Elem()))
		return nil
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Map:
		coerce, _ := coercerFor(t.Key())
		iter := rv.MapRange()
		for iter.Next() {
			key := iter.Key().Interface()
			if s, ok := key.(string); ok && t.Key() != typString && coerce != nil {
				parsed, err := coerce(s)
				if err != nil {
					return reflect.Value{}, err
				}
				key = parsed
			}
			if err := addKey(key); err != nil {
				return reflect.Value{}, err
			}
		}
		return out, nil
	case reflect.Slice:
		items, err := sequenceOf(value)
		if err != nil {
			return reflect.Value{}, err
		}
		for _, item := range items {
			if err := addKey(item); err != nil {
				return reflect.Value{}, err
			}
		}
		return out, nil
	}
	return reflect.Value{}, fmt.Errorf("cannot convert %T to %s", value, t)
}

// convertLooseStruct rebuilds a tuple struct from a native struct value,
// a JSON object keyed by field name, or a positional sequence.
func convertLooseStruct(t reflect.Type, value interface{}) (reflect.Value, error) {
	out := reflect.New(t).Elem()

	if m, ok := value.(map[string]interface{}); ok {
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			item, ok := m[f.Name]
			if !ok {
				continue
			}
			fv, err := convertLoose(f.Type, item)
			if err != nil {
				return reflect.Value{}, err
			}
			out.Field(i).Set(fv)
		}
		return out, nil
	}

	items, err := sequenceOf(value)
	if err != nil {
		return reflect.Value{}, err
	}
	if len(items) != t.NumField() {
		return reflect.Value{}, fmt.Errorf("need %d values, got %d", t.NumField(), len(items))
	}
	for i, item := range items {
		fv, err := convertLoose(t.Field(i).Type, item)
		if err != nil {
			return reflect.Value{}, err
		}
		out.Field(i).Set(fv)
	}
	return out, nil
}

func sequenceOf(value interface{}) ([]interface{}, error) {
	if items, ok := value.([]interface{}); ok {
		return items, nil
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("%T is not a sequence", value)
	}
	items := make([]interface{}, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	return items, nil
}

func isScalarKind(k reflect.Kind) bool {
	switch k {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// reproducibilityInfo gathers write-only provenance metadata: the literal
// invocation, a timestamp, and git facts when a repository is detected.
func reproducibilityInfo() map[string]interface{} {
	info := map[string]interface{}{
		"command_line": strings.Join(os.Args, " "),
		"time":         time.Now().Format(time.ANSIC),
	}
	if !gitinfo.Present() {
		return info
	}
	if root, err := gitinfo.Root(); err == nil {
		info["git_root"] = root
	}
	if url, err := gitinfo.URL(true); err == nil {
		info["git_url"] = url
	}
	if dirty, err := gitinfo.HasUncommittedChanges(); err == nil {
		info["git_has_uncommitted_changes"] = dirty
	}
	return info
}

// Save writes every argument value plus the reproducibility block as
// UTF-8 JSON with 4-space indentation and lexicographically sorted keys.
func (a *ArgSet) Save(path string) error {
	m, err := a.AsMap()
	if err != nil {
		return err
	}
	m[reproducibilityKey] = reproducibilityInfo()
	data, err := json.MarshalIndent(m, "", "    ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// Load reads a record written by Save and imports it via FromMap. The
// reproducibility block is provenance only and is dropped, never bound.
func (a *ArgSet) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	delete(m, reproducibilityKey)
	return a.FromMap(m)
}
