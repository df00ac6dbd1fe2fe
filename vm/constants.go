package vm

import (
	"fmt"

	"github.com/chazu/stencil/vm/reference"
)

// Constants resolves integer handles to runtime values. The pool is read
// only while a program runs.
type Constants interface {
	// ResolveHandle returns the value registered under h.
	ResolveHandle(h Handle) any

	// GetString returns the string constant h.
	GetString(h Handle) string
}

// Helper computes a reference from call-site arguments.
type Helper func(vm *VM, args *Arguments) reference.Reference

// ConstantPool is the default Constants implementation: a string table and
// a handle table built before execution.
type ConstantPool struct {
	strings []string
	handles []any
}

// NewConstantPool creates an empty pool.
func NewConstantPool() *ConstantPool {
	return &ConstantPool{}
}

// AddString adds s to the string table and returns its handle. If the
// string already exists, returns the existing handle.
func (p *ConstantPool) AddString(s string) Handle {
	for i, existing := range p.strings {
		if existing == s {
			return Handle(i)
		}
	}
	p.strings = append(p.strings, s)
	return Handle(len(p.strings) - 1)
}

// Register adds v to the handle table and returns its handle.
func (p *ConstantPool) Register(v any) Handle {
	p.handles = append(p.handles, v)
	return Handle(len(p.handles) - 1)
}

// Strings returns the string table.
func (p *ConstantPool) Strings() []string { return p.strings }

// Handles returns the handle table.
func (p *ConstantPool) Handles() []any { return p.handles }

func (p *ConstantPool) GetString(h Handle) string {
	if h < 0 || int(h) >= len(p.strings) {
		panic(&ContractError{
			Msg:      "unresolved string constant",
			Expected: fmt.Sprintf("string handle in [0, %d)", len(p.strings)),
			Actual:   fmt.Sprintf("handle %d", h),
		})
	}
	return p.strings[h]
}

func (p *ConstantPool) ResolveHandle(h Handle) any {
	if h < 0 || int(h) >= len(p.handles) {
		panic(&ContractError{
			Msg:      "unresolved handle",
			Expected: fmt.Sprintf("handle in [0, %d)", len(p.handles)),
			Actual:   fmt.Sprintf("handle %d", h),
		})
	}
	return p.handles[h]
}
