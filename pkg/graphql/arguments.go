package graphql

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strings"
)

// Arg is one key/value pair of an argument object.
type Arg struct {
	Key   string
	Value any
}

// Args is an argument object whose keys render in insertion order.
//
// Values may be nil, bools, numbers, strings, slices, Args, or maps with
// string keys. Plain maps render with their keys sorted.
type Args []Arg

// NewArgs builds Args from alternating keys and values:
//
//	NewArgs("tenantId", "t1", "deviceId", nil)
//
// A non-string key or a trailing key without a value is kept as an invalid
// entry and reported when the document is rendered.
func NewArgs(kv ...any) Args {
	args := make(Args, 0, len(kv)/2+1)
	for i := 0; i < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok || i+1 >= len(kv) {
			args = append(args, Arg{Value: kv[i]})
			continue
		}
		args = args.Set(key, kv[i+1])
	}
	return args
}

// Set returns args with key bound to value. An existing key keeps its
// position.
func (a Args) Set(key string, value any) Args {
	for i := range a {
		if a[i].Key == key {
			a[i].Value = value
			return a
		}
	}
	return append(a, Arg{Key: key, Value: value})
}

// Get returns the value bound to key.
func (a Args) Get(key string) (any, bool) {
	for _, arg := range a {
		if arg.Key == key {
			return arg.Value, true
		}
	}
	return nil, false
}

// rootArgs writes the argument list of a call. The root object is laid out
// one level shallower than the call and its first key sits directly after
// the opening parenthesis.
func (r renderer) rootArgs(b *strings.Builder, args Args, depth int) error {
	d := depth - 1
	for i, arg := range args {
		if i > 0 {
			b.WriteByte('\n')
			b.WriteString(r.pad(d))
		}
		if err := r.pair(b, i, arg, d); err != nil {
			return err
		}
	}
	return nil
}

func (r renderer) pair(b *strings.Builder, i int, arg Arg, depth int) error {
	if arg.Key == "" {
		return fmt.Errorf("argument %d has no valid key (value %v)", i, arg.Value)
	}
	b.WriteString(arg.Key)
	b.WriteString(": ")
	return r.value(b, arg.Value, depth)
}

// object writes a multi-line object literal whose keys are indented at depth
// and whose closing brace sits one level shallower.
func (r renderer) object(b *strings.Builder, args Args, depth int) error {
	if len(args) == 0 {
		b.WriteString("{}")
		return nil
	}
	b.WriteString("{\n")
	for i, arg := range args {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(r.pad(depth))
		if err := r.pair(b, i, arg, depth); err != nil {
			return err
		}
	}
	b.WriteByte('\n')
	b.WriteString(r.pad(depth - 1))
	b.WriteByte('}')
	return nil
}

func (r renderer) list(b *strings.Builder, rv reflect.Value, depth int) error {
	b.WriteByte('[')
	for i := 0; i < rv.Len(); i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		if err := r.value(b, rv.Index(i).Interface(), depth); err != nil {
			return err
		}
	}
	b.WriteByte(']')
	return nil
}

// value writes a single argument value. Nested objects are rendered one
// level deeper than depth.
func (r renderer) value(b *strings.Builder, v any, depth int) error {
	switch x := v.(type) {
	case nil:
		b.WriteString("null")
		return nil
	case Args:
		return r.object(b, x, depth+1)
	case map[string]any:
		return r.object(b, sortedArgs(x), depth+1)
	case json.Number:
		b.WriteString(x.String())
		return nil
	case string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return scalar(b, x)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			b.WriteString("null")
			return nil
		}
		return r.value(b, rv.Elem().Interface(), depth)
	case reflect.Slice, reflect.Array:
		return r.list(b, rv, depth)
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return fmt.Errorf("unsupported map key type %s", rv.Type().Key())
		}
		m := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			m[iter.Key().String()] = iter.Value().Interface()
		}
		return r.object(b, sortedArgs(m), depth+1)
	case reflect.String, reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return scalar(b, v)
	}
	return fmt.Errorf("unsupported value of type %T", v)
}

// scalar writes v as a JSON literal without HTML escaping.
func scalar(b *strings.Builder, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	b.Write(bytes.TrimRight(buf.Bytes(), "\n"))
	return nil
}

func sortedArgs(m map[string]any) Args {
	args := make(Args, 0, len(m))
	for _, k := range slices.Sorted(maps.Keys(m)) {
		args = append(args, Arg{Key: k, Value: m[k]})
	}
	return args
}

