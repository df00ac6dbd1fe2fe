package vm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/stencil/vm/reference"
)

// ---------------------------------------------------------------------------
// Stack
// ---------------------------------------------------------------------------

func TestStackPushPop(t *testing.T) {
	s := NewStack(0)
	a, b := RefValue(reference.True), HandleValue(7)
	s.Push(a)
	s.Push(b)
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, b, s.Peek())
	assert.Equal(t, b, s.Pop())
	assert.Equal(t, a, s.Pop())
	assert.Equal(t, 0, s.Len())
}

func TestStackPopEmpty(t *testing.T) {
	s := NewStack(0)
	ce := contractError(t, func() { s.Pop() })
	assert.Equal(t, "stack underflow", ce.Msg)
	assert.Equal(t, "empty stack", ce.Actual)

	contractError(t, func() { s.Peek() })
}

func TestStackPopN(t *testing.T) {
	s := NewStack(0)
	for i := 0; i < 4; i++ {
		s.Push(HandleValue(Handle(i)))
	}
	got := s.PopN(3)
	require.Len(t, got, 3)
	for i, v := range got {
		h, _ := v.Handle()
		assert.Equal(t, Handle(i+1), h, "PopN keeps push order")
	}
	assert.Equal(t, 1, s.Len())
	assert.Empty(t, s.PopN(0))

	ce := contractError(t, func() { s.PopN(2) })
	assert.Equal(t, "2 values", ce.Expected)
	assert.Equal(t, "1 values", ce.Actual)
}

func TestStackLimit(t *testing.T) {
	s := NewStack(2)
	s.Push(Null)
	s.Push(Null)

	defer func() {
		r := recover()
		err, ok := r.(error)
		require.True(t, ok)
		assert.True(t, errors.Is(err, ErrStackOverflow))
	}()
	s.Push(Null)
}

func TestStackValuesIsCopy(t *testing.T) {
	s := NewStack(0)
	s.Push(HandleValue(1))
	vals := s.Values()
	vals[0] = Null
	h, ok := s.Peek().Handle()
	assert.True(t, ok)
	assert.Equal(t, Handle(1), h)

	s.Reset()
	assert.Equal(t, 0, s.Len())
}

// ---------------------------------------------------------------------------
// Registers
// ---------------------------------------------------------------------------

func TestRegisters(t *testing.T) {
	vm, _ := newTestVM()
	for r := RegisterS0; r < registerCount; r++ {
		assert.True(t, vm.Register(r).IsNull(), "%s starts empty", r)
		vm.LoadValue(r, HandleValue(Handle(r)))
	}
	for r := RegisterS0; r < registerCount; r++ {
		h, _ := vm.Register(r).Handle()
		assert.Equal(t, Handle(r), h)
	}

	assert.Equal(t, "v0", RegisterV0.String())
	assert.Equal(t, "r9", Register(9).String())
	contractError(t, func() { vm.LoadValue(Register(9), Null) })
	contractError(t, func() { vm.Register(-1) })
}

// ---------------------------------------------------------------------------
// Dispatch table
// ---------------------------------------------------------------------------

func TestEveryOpcodeHasHandler(t *testing.T) {
	for _, op := range AllOpcodes() {
		assert.True(t, Opcodes.Has(op), "%s has no handler", op)
	}
}

func TestExpressionFamilyIsMut(t *testing.T) {
	for _, op := range AllOpcodes() {
		if op.IsExpression() {
			assert.Equal(t, Mut, Opcodes.Purity(op), "%s", op)
		}
	}
	assert.Equal(t, Pure, Opcodes.Purity(OpDup))
	assert.Equal(t, "pure", Pure.String())
	assert.Equal(t, "mut", Mut.String())
}

func TestOpcodeTableRejectsDuplicates(t *testing.T) {
	table := &OpcodeTable{}
	table.Add(OpNop, func(*VM, Instruction) {}, Pure)
	assert.Panics(t, func() { table.Add(OpNop, func(*VM, Instruction) {}, Pure) })
	assert.Panics(t, func() { table.Add(Opcode(0xEE), func(*VM, Instruction) {}, Pure) })
}

func TestOpcodeTableMissingHandler(t *testing.T) {
	table := &OpcodeTable{}
	vm := New(WithOpcodeTable(table))
	ce := contractError(t, func() { ev(vm, OpDup) })
	assert.Equal(t, "Dup", ce.Op)
	assert.Equal(t, "no handler registered", ce.Msg)
	assert.Equal(t, Mut, table.Purity(OpDup))
}

func TestCustomOpcodeTable(t *testing.T) {
	table := &OpcodeTable{}
	called := 0
	table.Add(OpNop, func(vm *VM, ins Instruction) { called++ }, Pure)
	vm := New(WithOpcodeTable(table))
	ev(vm, OpNop)
	assert.Equal(t, 1, called)
}
