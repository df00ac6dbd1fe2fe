package bytecode

import (
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strings"

	"github.com/chazu/stencil/vm"
	"github.com/chazu/stencil/vm/reference"
)

// Registry maps helper names to helpers for Link.
type Registry struct {
	helpers map[string]vm.Helper
}

// NewRegistry creates a registry holding the builtin helpers.
func NewRegistry() *Registry {
	r := &Registry{helpers: make(map[string]vm.Helper)}
	r.Register("concat", helperConcat)
	r.Register("upper", stringHelper(strings.ToUpper))
	r.Register("lower", stringHelper(strings.ToLower))
	r.Register("eq", helperEq)
	r.Register("not", helperNot)
	r.Register("if", helperIf)
	r.Register("len", helperLen)
	r.Register("join", helperJoin)
	r.Register("default", helperDefault)
	return r
}

// Register adds or replaces the helper called name.
func (r *Registry) Register(name string, h vm.Helper) {
	r.helpers[name] = h
}

// Lookup returns the helper called name.
func (r *Registry) Lookup(name string) (vm.Helper, bool) {
	h, ok := r.helpers[name]
	return h, ok
}

// Names returns the registered helper names in sorted order.
func (r *Registry) Names() []string {
	return slices.Sorted(maps.Keys(r.helpers))
}

// ---------------------------------------------------------------------------
// Builtin helpers
// ---------------------------------------------------------------------------
//
// Builtins return computed references over their arguments so the result
// follows later changes to the inputs.

func compute(args *vm.Arguments, fn func() any) reference.Reference {
	return reference.Compute(fn, args.References()...)
}

// concat joins every positional argument.
func helperConcat(_ *vm.VM, args *vm.Arguments) reference.Reference {
	return reference.Concat(args.Positional()...)
}

func stringHelper(fn func(string) string) vm.Helper {
	return func(_ *vm.VM, args *vm.Arguments) reference.Reference {
		return compute(args, func() any {
			return fn(reference.ToString(args.At(0).Value()))
		})
	}
}

// eq reports whether its two positional arguments are equal.
func helperEq(_ *vm.VM, args *vm.Arguments) reference.Reference {
	return compute(args, func() any {
		return equal(args.At(0).Value(), args.At(1).Value())
	})
}

func helperNot(_ *vm.VM, args *vm.Arguments) reference.Reference {
	return compute(args, func() any {
		return !truthy(args.At(0).Value())
	})
}

// if picks its second or third argument by the truth of its first.
func helperIf(_ *vm.VM, args *vm.Arguments) reference.Reference {
	return compute(args, func() any {
		if truthy(args.At(0).Value()) {
			return args.At(1).Value()
		}
		return args.At(2).Value()
	})
}

func helperLen(_ *vm.VM, args *vm.Arguments) reference.Reference {
	return compute(args, func() any {
		return length(args.At(0).Value())
	})
}

// join joins the elements of its first argument with the named argument
// sep, default ",".
func helperJoin(_ *vm.VM, args *vm.Arguments) reference.Reference {
	return compute(args, func() any {
		sep := ","
		if args.Has("sep") {
			sep = reference.ToString(args.Named("sep").Value())
		}
		var parts []string
		each(args.At(0).Value(), func(v any) {
			parts = append(parts, reference.ToString(v))
		})
		return strings.Join(parts, sep)
	})
}

// default returns its first argument unless it is empty, then its second.
func helperDefault(_ *vm.VM, args *vm.Arguments) reference.Reference {
	return compute(args, func() any {
		if v := args.At(0).Value(); truthy(v) {
			return v
		}
		return args.At(1).Value()
	})
}

// truthy follows template conventions: nil, false, zero, the empty string
// and empty collections are false.
func truthy(v any) bool {
	if v == nil {
		return false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool:
		return rv.Bool()
	case reflect.String, reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len() > 0
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint() != 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() != 0
	case reflect.Pointer, reflect.Interface:
		return !rv.IsNil()
	}
	return true
}

func length(v any) int {
	if s, ok := v.(string); ok {
		return len([]rune(s))
	}
	if v == nil {
		return 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len()
	}
	return 0
}

func each(v any, fn func(any)) {
	if v == nil {
		return
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			fn(rv.Index(i).Interface())
		}
	default:
		fn(v)
	}
}

// equal compares numbers by value regardless of their Go type, since
// images decode integers as int64 or uint64 depending on the format.
func equal(a, b any) bool {
	if x, ok := number(a); ok {
		if y, ok := number(b); ok {
			return x == y
		}
	}
	if isComparable(a) && isComparable(b) {
		return a == b
	}
	return reflect.DeepEqual(a, b)
}

func number(v any) (float64, bool) {
	if v == nil {
		return 0, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}

func isComparable(v any) bool {
	return v == nil || reflect.TypeOf(v).Comparable()
}

func (r *Registry) String() string {
	return fmt.Sprintf("Registry(%s)", strings.Join(r.Names(), ", "))
}
