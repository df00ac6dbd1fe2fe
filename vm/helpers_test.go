package vm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chazu/stencil/vm/reference"
)

// newTestVM returns a VM over a fresh constant pool.
func newTestVM(opts ...Option) (*VM, *ConstantPool) {
	pool := NewConstantPool()
	vm := New(append([]Option{WithConstants(pool)}, opts...)...)
	return vm, pool
}

// ev evaluates a single instruction built from op and its operands.
func ev(vm *VM, op Opcode, operands ...int) {
	ins := Instruction{Op: op}
	ptrs := []*int{&ins.Op1, &ins.Op2, &ins.Op3}
	for i, operand := range operands {
		*ptrs[i] = operand
	}
	vm.Evaluate(ins)
}

// contractError runs f and returns the ContractError it panics with.
func contractError(t *testing.T, f func()) (ce *ContractError) {
	t.Helper()
	defer func() {
		r := recover()
		require.NotNil(t, r, "expected a contract violation")
		var ok bool
		ce, ok = r.(*ContractError)
		require.True(t, ok, "expected *ContractError, got %T: %v", r, r)
	}()
	f()
	return nil
}

func popRef(t *testing.T, vm *VM) reference.Reference {
	t.Helper()
	v := vm.Stack().Pop()
	require.Equal(t, KindReference, v.Kind(), "expected a reference, got %s", v.Describe())
	return v.Reference()
}
