// Package vm implements the stencil expression virtual machine.
//
// This package contains:
//   - the tagged operand Value and the operand Stack
//   - the register file
//   - Scope frames and captured ScopeBlocks
//   - the constant pool contract
//   - the opcode dispatch table and its expression opcode family
//   - the check layer that turns stack-shape violations into ContractErrors
package vm
