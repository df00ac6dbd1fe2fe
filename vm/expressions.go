package vm

import (
	"github.com/chazu/stencil/vm/reference"
)

// ---------------------------------------------------------------------------
// Expression opcodes
// ---------------------------------------------------------------------------
//
// Block operands travel as three stack slots. Producers push table, then
// scope, then block; consumers pop block, scope, table. GetBlock pushes
// three Nulls for an unbound block so the shape never depends on presence.

func init() {
	Opcodes.Add(OpHelper, evalHelper, Mut)
	Opcodes.Add(OpGetVariable, evalGetVariable, Mut)
	Opcodes.Add(OpSetVariable, evalSetVariable, Mut)
	Opcodes.Add(OpSetBlock, evalSetBlock, Mut)
	Opcodes.Add(OpResolveMaybeLocal, evalResolveMaybeLocal, Mut)
	Opcodes.Add(OpRootScope, evalRootScope, Mut)
	Opcodes.Add(OpGetProperty, evalGetProperty, Mut)
	Opcodes.Add(OpGetBlock, evalGetBlock, Mut)
	Opcodes.Add(OpHasBlock, evalHasBlock, Mut)
	Opcodes.Add(OpHasBlockParams, evalHasBlockParams, Mut)
	Opcodes.Add(OpConcat, evalConcat, Mut)
}

func evalHelper(vm *VM, ins Instruction) {
	resolved := vm.Constants().ResolveHandle(Handle(ins.Op1))
	helper := asHelper(resolved)
	if helper == nil {
		panic(&ContractError{Op: ins.Op.String(), Msg: "constant is not a helper", Expected: "Helper", Actual: describeConstant(resolved)})
	}
	args := Check(ins.Op, vm.stack.Pop(), CheckArguments).Arguments()

	value := helper(vm, args)
	if value == nil {
		value = reference.Undefined
	}
	vm.LoadValue(RegisterV0, RefValue(value))
}

func asHelper(v any) Helper {
	switch h := v.(type) {
	case Helper:
		return h
	case func(*VM, *Arguments) reference.Reference:
		return h
	}
	return nil
}

func evalGetVariable(vm *VM, ins Instruction) {
	expr := vm.ReferenceForSymbol(ins.Op1)
	vm.stack.Push(RefValue(expr))
}

func evalSetVariable(vm *VM, ins Instruction) {
	expr := Check(ins.Op, vm.stack.Pop(), CheckReference).Reference()
	vm.Scope().BindSymbol(ins.Op1, expr)
}

func evalSetBlock(vm *VM, ins Instruction) {
	block := Check(ins.Op, vm.stack.Pop(), CheckOr(CheckOption(CheckHandle), CheckCompilableBlock))
	scope := Check(ins.Op, vm.stack.Pop(), CheckOption(CheckScope)).Scope()
	table := Check(ins.Op, vm.stack.Pop(), CheckOption(CheckBlockSymbolTable)).BlockSymbolTable()

	if table == nil {
		vm.Scope().BindBlock(ins.Op1, nil)
		return
	}
	vm.Scope().BindBlock(ins.Op1, &ScopeBlock{Block: block, Scope: scope, Table: table})
}

func evalResolveMaybeLocal(vm *VM, ins Instruction) {
	name := vm.Constants().GetString(Handle(ins.Op1))
	scope := vm.Scope()

	ref, ok := scope.PartialMap()[name]
	if !ok || ref == nil {
		ref = scope.Self().Get(name)
	}
	vm.stack.Push(RefValue(ref))
}

func evalRootScope(vm *VM, ins Instruction) {
	vm.PushRootScope(ins.Op1)
}

func evalGetProperty(vm *VM, ins Instruction) {
	key := vm.Constants().GetString(Handle(ins.Op1))
	expr := Check(ins.Op, vm.stack.Pop(), CheckReference).Reference()
	vm.stack.Push(RefValue(expr.Get(key)))
}

func evalGetBlock(vm *VM, ins Instruction) {
	block := vm.Scope().GetBlock(ins.Op1)
	if block == nil {
		vm.stack.Push(Null)
		vm.stack.Push(Null)
		vm.stack.Push(Null)
		return
	}
	vm.stack.Push(TableValue(block.Table))
	vm.stack.Push(ScopeValue(block.Scope))
	vm.stack.Push(block.Block)
}

func evalHasBlock(vm *VM, ins Instruction) {
	hasBlock := vm.Scope().GetBlock(ins.Op1) != nil
	vm.stack.Push(RefValue(reference.Bool(hasBlock)))
}

// Only the table matters here, but the whole triple is popped so callers
// can share the GetBlock sequence with SetBlock.
func evalHasBlockParams(vm *VM, ins Instruction) {
	Check(ins.Op, vm.stack.Pop(), CheckOption(CheckOr(CheckHandle, CheckCompilableBlock)))
	Check(ins.Op, vm.stack.Pop(), CheckOption(CheckScope))
	tv := Check(ins.Op, vm.stack.Pop(), CheckOption(CheckSymbolTable))

	table := tv.BlockSymbolTable()
	Assert(ins.Op, tv.IsNull() || table != nil, "Option<BlockSymbolTable>", tv)

	vm.stack.Push(RefValue(reference.Bool(table.HasParameters())))
}

func evalConcat(vm *VM, ins Instruction) {
	parts := popReferences(vm, ins.Op, ins.Op1)
	vm.stack.Push(RefValue(reference.Concat(parts...)))
}
