package vm

import (
	"encoding/binary"
	"fmt"
)

// ---------------------------------------------------------------------------
// Opcode definitions
// ---------------------------------------------------------------------------

// Opcode identifies an instruction. Opcodes are dense so the dispatch table
// can be a fixed array.
type Opcode byte

// Support operations
const (
	OpNop                Opcode = iota // no operation
	OpPop                              // discard op1 values
	OpDup                              // duplicate top of stack
	OpPushNull                         // push Null
	OpPrimitiveReference               // push a constant reference to constant op1
	OpPushSelf                         // push the scope's self reference
	OpBindSelf                         // pop a reference into the scope's self
	OpPushScope                        // push the current scope
	OpPushBlock                        // push compiled block handle op1
	OpPushCompilable                   // push the CompilableBlock constant op1
	OpPushSymbolTable                  // push the SymbolTable constant op1
	OpPushArgs                         // pop op1 positional refs and the named refs listed by constant op2
	OpFetch                            // push register op1
	OpLoad                             // pop into register op1
	OpPushChildScope                   // push a child of the current scope
	OpPopScope                         // pop the current scope
	OpBindPartial                      // pop a reference into dynamic local named by string op1
)

// Expression operations
const (
	OpHelper            Opcode = iota + OpBindPartial + 1 // call helper op1 with popped Arguments, result in v0
	OpGetVariable                                         // push local op1
	OpSetVariable                                         // pop into local op1
	OpSetBlock                                            // pop block, scope, table into block symbol op1
	OpResolveMaybeLocal                                   // push dynamic local or self property named by string op1
	OpRootScope                                           // install a root scope with op1 symbols
	OpGetProperty                                         // replace top reference with its property named by string op1
	OpGetBlock                                            // push table, scope, block of block symbol op1
	OpHasBlock                                            // push whether block symbol op1 is bound
	OpHasBlockParams                                      // pop block, scope, table; push whether the table has params
	OpConcat                                              // pop op1 references, push their concatenation

	opcodeCount
)

// OpcodeInfo provides metadata about each opcode for disassembly and
// validation.
type OpcodeInfo struct {
	Name      string // human-readable name
	StackPop  int    // values popped (-1 = depends on operands)
	StackPush int    // values pushed
	Operands  int    // number of encoded operands
}

var opcodeInfoTable = [opcodeCount]OpcodeInfo{
	OpNop:                {"Nop", 0, 0, 0},
	OpPop:                {"Pop", -1, 0, 1},
	OpDup:                {"Dup", 1, 2, 0},
	OpPushNull:           {"PushNull", 0, 1, 0},
	OpPrimitiveReference: {"PrimitiveReference", 0, 1, 1},
	OpPushSelf:           {"PushSelf", 0, 1, 0},
	OpBindSelf:           {"BindSelf", 1, 0, 0},
	OpPushScope:          {"PushScope", 0, 1, 0},
	OpPushBlock:          {"PushBlock", 0, 1, 1},
	OpPushCompilable:     {"PushCompilable", 0, 1, 1},
	OpPushSymbolTable:    {"PushSymbolTable", 0, 1, 1},
	OpPushArgs:           {"PushArgs", -1, 1, 2},
	OpFetch:              {"Fetch", 0, 1, 1},
	OpLoad:               {"Load", 1, 0, 1},
	OpPushChildScope:     {"PushChildScope", 0, 0, 0},
	OpPopScope:           {"PopScope", 0, 0, 0},
	OpBindPartial:        {"BindPartial", 1, 0, 1},

	OpHelper:            {"Helper", 1, 0, 1},
	OpGetVariable:       {"GetVariable", 0, 1, 1},
	OpSetVariable:       {"SetVariable", 1, 0, 1},
	OpSetBlock:          {"SetBlock", 3, 0, 1},
	OpResolveMaybeLocal: {"ResolveMaybeLocal", 0, 1, 1},
	OpRootScope:         {"RootScope", 0, 0, 1},
	OpGetProperty:       {"GetProperty", 1, 1, 1},
	OpGetBlock:          {"GetBlock", 0, 3, 1},
	OpHasBlock:          {"HasBlock", 0, 1, 1},
	OpHasBlockParams:    {"HasBlockParams", 3, 1, 0},
	OpConcat:            {"Concat", -1, 1, 1},
}

var opcodesByName = func() map[string]Opcode {
	m := make(map[string]Opcode, opcodeCount)
	for op, info := range opcodeInfoTable {
		m[info.Name] = Opcode(op)
	}
	return m
}()

// GetOpcodeInfo returns metadata for op.
func GetOpcodeInfo(op Opcode) OpcodeInfo {
	if op.Valid() {
		return opcodeInfoTable[op]
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN(0x%02X)", byte(op))}
}

// LookupOpcode finds an opcode by name.
func LookupOpcode(name string) (Opcode, bool) {
	op, ok := opcodesByName[name]
	return op, ok
}

// AllOpcodes returns every defined opcode in numeric order.
func AllOpcodes() []Opcode {
	ops := make([]Opcode, opcodeCount)
	for i := range ops {
		ops[i] = Opcode(i)
	}
	return ops
}

// Valid reports whether op is a defined opcode.
func (op Opcode) Valid() bool { return op < opcodeCount }

func (op Opcode) String() string { return GetOpcodeInfo(op).Name }

// Operands returns the number of operands encoded after op.
func (op Opcode) Operands() int { return GetOpcodeInfo(op).Operands }

// IsExpression reports whether op belongs to the expression family.
func (op Opcode) IsExpression() bool {
	return op >= OpHelper && op < opcodeCount
}

// ---------------------------------------------------------------------------
// Instructions and programs
// ---------------------------------------------------------------------------

// OperandSize is the encoded width of one operand: a little-endian int32.
const OperandSize = 4

// Instruction is a decoded opcode with its operands. Unused operands are 0.
type Instruction struct {
	Op            Opcode
	Op1, Op2, Op3 int
}

// Size returns the encoded length of the instruction in bytes.
func (ins Instruction) Size() int {
	return 1 + ins.Op.Operands()*OperandSize
}

func (ins Instruction) String() string {
	switch ins.Op.Operands() {
	case 0:
		return ins.Op.String()
	case 1:
		return fmt.Sprintf("%s %d", ins.Op, ins.Op1)
	case 2:
		return fmt.Sprintf("%s %d %d", ins.Op, ins.Op1, ins.Op2)
	default:
		return fmt.Sprintf("%s %d %d %d", ins.Op, ins.Op1, ins.Op2, ins.Op3)
	}
}

// Program is an encoded instruction stream plus the constants it refers
// to.
type Program struct {
	Code      []byte
	Constants Constants
}

// NewProgram creates an empty program over constants.
func NewProgram(constants Constants) *Program {
	return &Program{Code: make([]byte, 0, 64), Constants: constants}
}

// Emit appends op and its operands and returns the instruction's offset.
// Operand count must match the opcode's metadata.
func (p *Program) Emit(op Opcode, operands ...int) int {
	if !op.Valid() {
		panic(fmt.Sprintf("emit: unknown opcode 0x%02X", byte(op)))
	}
	if len(operands) != op.Operands() {
		panic(fmt.Sprintf("emit: %s takes %d operands, got %d", op, op.Operands(), len(operands)))
	}
	offset := len(p.Code)
	p.Code = append(p.Code, byte(op))
	for _, operand := range operands {
		p.Code = binary.LittleEndian.AppendUint32(p.Code, uint32(int32(operand)))
	}
	return offset
}

// Decode reads the instruction at pc and returns it with the offset of the
// next instruction.
func (p *Program) Decode(pc int) (Instruction, int, error) {
	if pc < 0 || pc >= len(p.Code) {
		return Instruction{}, pc, fmt.Errorf("decode: pc %d out of range", pc)
	}
	op := Opcode(p.Code[pc])
	if !op.Valid() {
		return Instruction{}, pc, fmt.Errorf("decode: unknown opcode 0x%02X at %d", byte(op), pc)
	}
	ins := Instruction{Op: op}
	next := pc + ins.Size()
	if next > len(p.Code) {
		return Instruction{}, pc, fmt.Errorf("decode: truncated %s at %d", op, pc)
	}
	operands := [3]*int{&ins.Op1, &ins.Op2, &ins.Op3}
	for i := 0; i < op.Operands(); i++ {
		at := pc + 1 + i*OperandSize
		*operands[i] = int(int32(binary.LittleEndian.Uint32(p.Code[at:])))
	}
	return ins, next, nil
}

// Instructions decodes the whole program.
func (p *Program) Instructions() ([]Instruction, error) {
	var out []Instruction
	for pc := 0; pc < len(p.Code); {
		ins, next, err := p.Decode(pc)
		if err != nil {
			return nil, err
		}
		out = append(out, ins)
		pc = next
	}
	return out, nil
}
