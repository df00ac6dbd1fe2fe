package reference

import (
	"fmt"
	"reflect"
	"strconv"
	"unicode/utf8"
)

// PropertyGetter lets a host type control property derivation. The second
// result reports whether the property exists.
type PropertyGetter interface {
	Property(key string) (any, bool)
}

// Property reads key from obj. It never fails: anything it cannot resolve
// is absent and yields nil.
//
// Supported shapes, in order: PropertyGetter, map[string]any, strings
// ("length"), maps with string keys, structs (exported fields matched by a
// `ref:"name"` tag or by field name), and slices or arrays (integer index
// or "length"). Pointers and interfaces are followed.
func Property(obj any, key string) any {
	switch o := obj.(type) {
	case nil:
		return nil
	case PropertyGetter:
		v, ok := o.Property(key)
		if !ok {
			return nil
		}
		return v
	case map[string]any:
		return o[key]
	case string:
		if key == "length" {
			return utf8.RuneCountInString(o)
		}
		return nil
	}

	rv := reflect.ValueOf(obj)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil
		}
		v := rv.MapIndex(reflect.ValueOf(key).Convert(rv.Type().Key()))
		if !v.IsValid() {
			return nil
		}
		return v.Interface()

	case reflect.Struct:
		return structField(rv, key)

	case reflect.Slice, reflect.Array:
		if key == "length" {
			return rv.Len()
		}
		i, err := strconv.Atoi(key)
		if err != nil || i < 0 || i >= rv.Len() {
			return nil
		}
		return rv.Index(i).Interface()
	}

	return nil
}

func structField(rv reflect.Value, key string) any {
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		if !f.IsExported() {
			continue
		}
		name := f.Name
		if tag, ok := f.Tag.Lookup("ref"); ok {
			if tag == "-" {
				continue
			}
			name = tag
		}
		if name == key {
			return rv.Field(i).Interface()
		}
	}
	return nil
}

// ToString renders a value the way concatenation sees it. nil is empty.
func ToString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case fmt.Stringer:
		return x.String()
	case error:
		return x.Error()
	}
	return fmt.Sprint(v)
}
