package vm

import (
	"fmt"
	"strconv"

	"github.com/chazu/stencil/vm/reference"
)

// ---------------------------------------------------------------------------
// Support opcodes
// ---------------------------------------------------------------------------
//
// These move values between the constant pool, the registers and the
// stack so that expression sequences can be written as complete programs.

func init() {
	Opcodes.Add(OpNop, func(*VM, Instruction) {}, Pure)
	Opcodes.Add(OpPop, evalPop, Pure)
	Opcodes.Add(OpDup, evalDup, Pure)
	Opcodes.Add(OpPushNull, evalPushNull, Pure)
	Opcodes.Add(OpPrimitiveReference, evalPrimitiveReference, Pure)
	Opcodes.Add(OpPushSelf, evalPushSelf, Mut)
	Opcodes.Add(OpBindSelf, evalBindSelf, Mut)
	Opcodes.Add(OpPushScope, evalPushScope, Mut)
	Opcodes.Add(OpPushBlock, evalPushBlock, Mut)
	Opcodes.Add(OpPushCompilable, evalPushCompilable, Mut)
	Opcodes.Add(OpPushSymbolTable, evalPushSymbolTable, Mut)
	Opcodes.Add(OpPushArgs, evalPushArgs, Mut)
	Opcodes.Add(OpFetch, evalFetch, Mut)
	Opcodes.Add(OpLoad, evalLoad, Mut)
	Opcodes.Add(OpPushChildScope, evalPushChildScope, Mut)
	Opcodes.Add(OpPopScope, evalPopScope, Mut)
	Opcodes.Add(OpBindPartial, evalBindPartial, Mut)
}

func evalPop(vm *VM, ins Instruction) {
	vm.stack.PopN(ins.Op1)
}

func evalDup(vm *VM, ins Instruction) {
	vm.stack.Push(vm.stack.Peek())
}

func evalPushNull(vm *VM, ins Instruction) {
	vm.stack.Push(Null)
}

func evalPrimitiveReference(vm *VM, ins Instruction) {
	v := vm.Constants().ResolveHandle(Handle(ins.Op1))
	vm.stack.Push(RefValue(reference.Const(v)))
}

func evalPushSelf(vm *VM, ins Instruction) {
	vm.stack.Push(RefValue(vm.Scope().Self()))
}

func evalBindSelf(vm *VM, ins Instruction) {
	self := Check(ins.Op, vm.stack.Pop(), CheckReference).Reference()
	vm.Scope().BindSelf(self)
}

func evalPushScope(vm *VM, ins Instruction) {
	vm.stack.Push(ScopeValue(vm.Scope()))
}

func evalPushBlock(vm *VM, ins Instruction) {
	vm.stack.Push(HandleValue(Handle(ins.Op1)))
}

func evalPushCompilable(vm *VM, ins Instruction) {
	resolved := vm.Constants().ResolveHandle(Handle(ins.Op1))
	block, ok := resolved.(CompilableBlock)
	if !ok {
		panic(&ContractError{Op: ins.Op.String(), Msg: "constant is not a block", Expected: "CompilableBlock", Actual: describeConstant(resolved)})
	}
	vm.stack.Push(CompilableValue(block))
}

func evalPushSymbolTable(vm *VM, ins Instruction) {
	resolved := vm.Constants().ResolveHandle(Handle(ins.Op1))
	table, ok := resolved.(SymbolTable)
	if !ok {
		panic(&ContractError{Op: ins.Op.String(), Msg: "constant is not a symbol table", Expected: "SymbolTable", Actual: describeConstant(resolved)})
	}
	vm.stack.Push(TableValue(table))
}

// PushArgs pops named references (in name order) above positional ones.
// A negative names operand means no named arguments.
func evalPushArgs(vm *VM, ins Instruction) {
	var names []string
	if ins.Op2 >= 0 {
		resolved := vm.Constants().ResolveHandle(Handle(ins.Op2))
		var ok bool
		if names, ok = resolved.([]string); !ok {
			panic(&ContractError{Op: ins.Op.String(), Msg: "constant is not a name list", Expected: "[]string", Actual: describeConstant(resolved)})
		}
	}

	named := popReferences(vm, ins.Op, len(names))
	positional := popReferences(vm, ins.Op, ins.Op1)
	vm.stack.Push(ArgsValue(NewArguments(positional, names, named)))
}

func popReferences(vm *VM, op Opcode, n int) []reference.Reference {
	if n < 0 {
		panic(&ContractError{Op: op.String(), Msg: "negative count", Expected: "count >= 0", Actual: itoa(n)})
	}
	out := make([]reference.Reference, n)
	for i := n; i > 0; i-- {
		out[i-1] = Check(op, vm.stack.Pop(), CheckReference).Reference()
	}
	return out
}

func evalFetch(vm *VM, ins Instruction) {
	vm.stack.Push(vm.Register(Register(ins.Op1)))
}

func evalLoad(vm *VM, ins Instruction) {
	vm.LoadValue(Register(ins.Op1), vm.stack.Pop())
}

func evalPushChildScope(vm *VM, ins Instruction) {
	vm.PushChildScope()
}

func evalPopScope(vm *VM, ins Instruction) {
	vm.PopScope()
}

func evalBindPartial(vm *VM, ins Instruction) {
	name := vm.Constants().GetString(Handle(ins.Op1))
	ref := Check(ins.Op, vm.stack.Pop(), CheckReference).Reference()
	vm.Scope().BindPartial(name, ref)
}

func describeConstant(v any) string {
	if v == nil {
		return "nothing"
	}
	return fmt.Sprintf("%T", v)
}

func itoa(n int) string { return strconv.Itoa(n) }
