package vm

import (
	"github.com/chazu/stencil/vm/reference"
)

// Arguments is the bundle of call-site references handed to a helper.
type Arguments struct {
	positional []reference.Reference
	names      []string
	named      map[string]reference.Reference
}

// NewArguments creates a bundle. names and named are parallel.
func NewArguments(positional []reference.Reference, names []string, named []reference.Reference) *Arguments {
	a := &Arguments{positional: positional, names: names}
	if len(names) > 0 {
		a.named = make(map[string]reference.Reference, len(names))
		for i, name := range names {
			a.named[name] = named[i]
		}
	}
	return a
}

// Len returns the number of positional arguments.
func (a *Arguments) Len() int { return len(a.positional) }

// At returns positional argument i, or reference.Undefined.
func (a *Arguments) At(i int) reference.Reference {
	if i < 0 || i >= len(a.positional) {
		return reference.Undefined
	}
	return a.positional[i]
}

// Positional returns the positional arguments in call order.
func (a *Arguments) Positional() []reference.Reference { return a.positional }

// Names returns the named argument names in call order.
func (a *Arguments) Names() []string { return a.names }

// Named returns the named argument, or reference.Undefined.
func (a *Arguments) Named(name string) reference.Reference {
	if r, ok := a.named[name]; ok {
		return r
	}
	return reference.Undefined
}

// Has reports whether a named argument was passed.
func (a *Arguments) Has(name string) bool {
	_, ok := a.named[name]
	return ok
}

// Tag combines the tags of every argument.
func (a *Arguments) Tag() reference.Tag {
	return reference.CombineReferences(a.References())
}

// References returns every argument reference, positional first.
func (a *Arguments) References() []reference.Reference {
	refs := make([]reference.Reference, 0, len(a.positional)+len(a.names))
	refs = append(refs, a.positional...)
	for _, name := range a.names {
		refs = append(refs, a.named[name])
	}
	return refs
}
