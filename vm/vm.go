package vm

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"

	"github.com/chazu/stencil/vm/reference"
)

// ---------------------------------------------------------------------------
// VM: the stencil expression machine
// ---------------------------------------------------------------------------

// VM holds the execution substrate the opcode handlers work on: the operand
// stack, the register file, the scope stack, and the constant pool.
//
// A VM is single threaded. Each handler runs to completion; the host loop
// may check for cancellation between instructions only.
type VM struct {
	ID string

	stack     *Stack
	registers [registerCount]Value
	scopes    []*Scope
	constants Constants
	table     *OpcodeTable

	log   commonlog.Logger
	trace bool
}

// Option configures a VM.
type Option interface{ apply(vm *VM) }

type optionFunc func(vm *VM)

func (f optionFunc) apply(vm *VM) { f(vm) }

// WithStackLimit caps the operand stack depth. 0 means unlimited.
func WithStackLimit(limit int) Option {
	return optionFunc(func(vm *VM) { vm.stack = NewStack(limit) })
}

// WithTrace logs every dispatched instruction at debug level.
func WithTrace(on bool) Option {
	return optionFunc(func(vm *VM) { vm.trace = on })
}

// WithLogger replaces the default "stencil.vm" logger.
func WithLogger(log commonlog.Logger) Option {
	return optionFunc(func(vm *VM) { vm.log = log })
}

// WithConstants installs a constant pool for direct Evaluate calls.
// Execute replaces it with the program's pool.
func WithConstants(c Constants) Option {
	return optionFunc(func(vm *VM) { vm.constants = c })
}

// WithOpcodeTable dispatches through t instead of Opcodes.
func WithOpcodeTable(t *OpcodeTable) Option {
	return optionFunc(func(vm *VM) { vm.table = t })
}

// New creates a VM with an empty stack and no scope.
func New(opts ...Option) *VM {
	vm := &VM{
		ID:    uuid.NewString(),
		stack: NewStack(0),
		table: Opcodes,
		log:   commonlog.GetLogger("stencil.vm"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt.apply(vm)
		}
	}
	return vm
}

// ---------------------------------------------------------------------------
// VM-facing operations
// ---------------------------------------------------------------------------

// Stack returns the operand stack.
func (vm *VM) Stack() *Stack { return vm.stack }

// Constants returns the constant pool.
func (vm *VM) Constants() Constants {
	if vm.constants == nil {
		panic(&ContractError{Msg: "no constant pool installed"})
	}
	return vm.constants
}

// LoadValue stores v in register r.
func (vm *VM) LoadValue(r Register, v Value) {
	if !r.Valid() {
		panic(&ContractError{Msg: "unknown register", Expected: "register", Actual: r.String()})
	}
	vm.registers[r] = v
}

// Register returns the contents of register r.
func (vm *VM) Register(r Register) Value {
	if !r.Valid() {
		panic(&ContractError{Msg: "unknown register", Expected: "register", Actual: r.String()})
	}
	return vm.registers[r]
}

// Scope returns the current scope.
func (vm *VM) Scope() *Scope {
	if len(vm.scopes) == 0 {
		panic(&ContractError{Msg: "no active scope", Expected: "Scope", Actual: "empty scope stack"})
	}
	return vm.scopes[len(vm.scopes)-1]
}

// ScopeDepth returns the number of scopes on the scope stack.
func (vm *VM) ScopeDepth() int { return len(vm.scopes) }

// ReferenceForSymbol reads local symbol from the current scope.
func (vm *VM) ReferenceForSymbol(symbol int) reference.Reference {
	return vm.Scope().ReferenceForSymbol(symbol)
}

// PushRootScope installs a fresh scope with size empty symbols, no self,
// no blocks, and no partial map.
func (vm *VM) PushRootScope(size int) *Scope {
	s := NewScope(size)
	vm.scopes = append(vm.scopes, s)
	return s
}

// PushChildScope installs a copy of the current scope.
func (vm *VM) PushChildScope() *Scope {
	s := vm.Scope().Child()
	vm.scopes = append(vm.scopes, s)
	return s
}

// PushScope installs s, typically a scope captured by a block.
func (vm *VM) PushScope(s *Scope) {
	if s == nil {
		panic(&ContractError{Msg: "push nil scope", Expected: "Scope", Actual: "Null"})
	}
	vm.scopes = append(vm.scopes, s)
}

// PopScope removes and returns the current scope.
func (vm *VM) PopScope() *Scope {
	s := vm.Scope()
	vm.scopes[len(vm.scopes)-1] = nil
	vm.scopes = vm.scopes[:len(vm.scopes)-1]
	return s
}

// Reset clears the stack, registers and scopes.
func (vm *VM) Reset() {
	vm.stack.Reset()
	vm.registers = [registerCount]Value{}
	clear(vm.scopes)
	vm.scopes = vm.scopes[:0]
}

// ---------------------------------------------------------------------------
// Dispatch
// ---------------------------------------------------------------------------

// Evaluate runs a single decoded instruction. Contract violations panic
// with a *ContractError naming the opcode.
func (vm *VM) Evaluate(ins Instruction) {
	defer annotate(ins.Op)
	vm.table.Evaluate(vm, ins)
}

func annotate(op Opcode) {
	if r := recover(); r != nil {
		if ce, ok := r.(*ContractError); ok && ce.Op == "" {
			ce.Op = op.String()
		}
		panic(r)
	}
}

// run is the dispatch loop of Execute. A panic ends it with the error
// recovered makes of it; pc and steps report how far it got.
func (vm *VM) run(ctx context.Context, prog *Program, pc, steps *int, log commonlog.Logger) (err error) {
	var op Opcode
	defer func() {
		if r := recover(); r != nil {
			err = recovered(op, r)
		}
	}()

	for *pc < len(prog.Code) {
		if err := ctx.Err(); err != nil {
			return err
		}
		ins, next, err := prog.Decode(*pc)
		if err != nil {
			return err
		}
		if vm.trace {
			log.Debugf("[%04d] %-28s sp=%d", *pc, ins, vm.stack.Len())
		}
		op = ins.Op
		vm.Evaluate(ins)
		*steps++
		*pc = next
	}
	return nil
}

// Result is the state a program leaves behind.
type Result struct {
	RunID string
	Value Value   // register v0
	Stack []Value // operand stack, bottom first
	Steps int     // instructions dispatched
}

// Top returns the top of the result stack, or Null.
func (r Result) Top() Value {
	if len(r.Stack) == 0 {
		return Null
	}
	return r.Stack[len(r.Stack)-1]
}

// Execute runs prog from its first instruction to its end. The stack,
// registers and scopes are left as the program leaves them so callers can
// read results and run follow-up programs.
//
// Contract violations, stack overflow, any other panic (as a *Fault) and
// cancellation of ctx abort the run and are returned as errors annotated
// with the failing pc.
func (vm *VM) Execute(ctx context.Context, prog *Program) (Result, error) {
	if prog.Constants != nil {
		vm.constants = prog.Constants
	}

	runID := uuid.NewString()
	log := commonlog.NewKeyValueLogger(vm.log, "vm", vm.ID, "run", runID)
	log.Info("run started", "bytes", len(prog.Code))

	var pc, steps int
	err := vm.run(ctx, prog, &pc, &steps, log)

	res := Result{
		RunID: runID,
		Value: vm.registers[RegisterV0],
		Stack: vm.stack.Values(),
		Steps: steps,
	}
	if err != nil {
		err = fmt.Errorf("pc %d: %w", pc, err)
		log.Error("run aborted", "error", err.Error(), "steps", steps)
		return res, err
	}

	log.Info("run finished", "steps", steps)
	return res, nil
}
