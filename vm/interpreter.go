package vm

import (
	"fmt"
)

// ---------------------------------------------------------------------------
// Stack: the operand stack
// ---------------------------------------------------------------------------

// Stack is the growable operand stack. Popping an empty stack is a contract
// violation.
type Stack struct {
	values []Value
	limit  int // 0 = unlimited
}

// NewStack creates a stack. A positive limit caps its depth.
func NewStack(limit int) *Stack {
	return &Stack{values: make([]Value, 0, 64), limit: limit}
}

// Push appends v.
func (s *Stack) Push(v Value) {
	if s.limit > 0 && len(s.values) >= s.limit {
		panic(fmt.Errorf("%w: limit %d", ErrStackOverflow, s.limit))
	}
	s.values = append(s.values, v)
}

// Pop removes and returns the top value.
func (s *Stack) Pop() Value {
	n := len(s.values)
	if n == 0 {
		panic(&ContractError{Msg: "stack underflow", Expected: "a value", Actual: "empty stack"})
	}
	v := s.values[n-1]
	s.values[n-1] = Null
	s.values = s.values[:n-1]
	return v
}

// PopN removes the top n values and returns them in push order.
func (s *Stack) PopN(n int) []Value {
	if n < 0 || n > len(s.values) {
		panic(&ContractError{
			Msg:      "stack underflow",
			Expected: fmt.Sprintf("%d values", n),
			Actual:   fmt.Sprintf("%d values", len(s.values)),
		})
	}
	at := len(s.values) - n
	out := make([]Value, n)
	copy(out, s.values[at:])
	clear(s.values[at:])
	s.values = s.values[:at]
	return out
}

// Peek returns the top value without removing it.
func (s *Stack) Peek() Value {
	if len(s.values) == 0 {
		panic(&ContractError{Msg: "stack underflow", Expected: "a value", Actual: "empty stack"})
	}
	return s.values[len(s.values)-1]
}

// Len returns the stack depth.
func (s *Stack) Len() int { return len(s.values) }

// Values returns a copy of the stack, bottom first.
func (s *Stack) Values() []Value {
	out := make([]Value, len(s.values))
	copy(out, s.values)
	return out
}

// Reset empties the stack.
func (s *Stack) Reset() {
	clear(s.values)
	s.values = s.values[:0]
}

// ---------------------------------------------------------------------------
// Registers
// ---------------------------------------------------------------------------

// Register names a slot in the register file.
type Register int

const (
	RegisterS0 Register = iota // saved
	RegisterS1                 // saved
	RegisterT0                 // temporary
	RegisterT1                 // temporary
	RegisterV0                 // return value

	registerCount
)

var registerNames = [registerCount]string{"s0", "s1", "t0", "t1", "v0"}

func (r Register) String() string {
	if r >= 0 && r < registerCount {
		return registerNames[r]
	}
	return fmt.Sprintf("r%d", int(r))
}

// Valid reports whether r names a register.
func (r Register) Valid() bool { return r >= 0 && r < registerCount }

// ---------------------------------------------------------------------------
// Dispatch table
// ---------------------------------------------------------------------------

// Purity classifies a handler for optimizers and validators. It does not
// change how the VM runs the handler.
type Purity uint8

const (
	Pure Purity = iota // touches nothing but the operand stack
	Mut                // may change scope, registers, or host state
)

func (p Purity) String() string {
	if p == Pure {
		return "pure"
	}
	return "mut"
}

// Evaluator implements one opcode.
type Evaluator func(vm *VM, ins Instruction)

type opcodeEntry struct {
	evaluate Evaluator
	purity   Purity
}

// OpcodeTable maps every opcode to its handler.
type OpcodeTable struct {
	entries [opcodeCount]opcodeEntry
}

// Opcodes is the table the VM dispatches through. Handler files register
// into it from init.
var Opcodes = &OpcodeTable{}

// Add registers the handler for op. Registering an opcode twice panics.
func (t *OpcodeTable) Add(op Opcode, fn Evaluator, purity Purity) {
	if !op.Valid() {
		panic(fmt.Sprintf("opcode table: unknown opcode 0x%02X", byte(op)))
	}
	if t.entries[op].evaluate != nil {
		panic(fmt.Sprintf("opcode table: %s registered twice", op))
	}
	t.entries[op] = opcodeEntry{evaluate: fn, purity: purity}
}

// Has reports whether op has a handler.
func (t *OpcodeTable) Has(op Opcode) bool {
	return op.Valid() && t.entries[op].evaluate != nil
}

// Purity returns the purity tag of op.
func (t *OpcodeTable) Purity(op Opcode) Purity {
	if !t.Has(op) {
		return Mut
	}
	return t.entries[op].purity
}

// Evaluate runs the handler for ins.
func (t *OpcodeTable) Evaluate(vm *VM, ins Instruction) {
	if !t.Has(ins.Op) {
		panic(&ContractError{Op: ins.Op.String(), Msg: "no handler registered"})
	}
	t.entries[ins.Op].evaluate(vm, ins)
}
