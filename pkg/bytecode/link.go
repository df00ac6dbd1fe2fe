package bytecode

import (
	"errors"
	"fmt"

	"github.com/tliron/commonlog"

	"github.com/chazu/stencil/vm"
)

var log = commonlog.GetLogger("stencil.bytecode")

var (
	// ErrUnknownHelper is returned when a helper constant names no
	// registered helper.
	ErrUnknownHelper = errors.New("unknown helper")

	// ErrBadOperand is returned when an operand refers past the end of the
	// string or constant table.
	ErrBadOperand = errors.New("bad operand")

	// ErrBadTable is returned for a block table constant without a
	// parameters list.
	ErrBadTable = errors.New("bad symbol table")
)

// operandKind says what table an operand indexes.
type operandKind uint8

const (
	operandInt operandKind = iota
	operandString
	operandConstant
	operandOptionalConstant // -1 means none
	operandRegister
)

var operandKinds = map[vm.Opcode][]operandKind{
	vm.OpPrimitiveReference: {operandConstant},
	vm.OpPushCompilable:     {operandConstant},
	vm.OpPushSymbolTable:    {operandConstant},
	vm.OpPushArgs:           {operandInt, operandOptionalConstant},
	vm.OpFetch:              {operandRegister},
	vm.OpLoad:               {operandRegister},
	vm.OpBindPartial:        {operandString},
	vm.OpHelper:             {operandConstant},
	vm.OpResolveMaybeLocal:  {operandString},
	vm.OpGetProperty:        {operandString},
}

// Link resolves img against reg and encodes it into a runnable program.
// Helpers are looked up by name; string and constant operands are checked
// against the image's tables.
func Link(img *Image, reg *Registry) (*vm.Program, error) {
	if img.Version != FormatVersion {
		return nil, fmt.Errorf("link: unsupported image version %d", img.Version)
	}

	pool := vm.NewConstantPool()
	for i, s := range img.Strings {
		if h := pool.AddString(s); int(h) != i {
			return nil, fmt.Errorf("link: strings.%d: duplicate of strings.%d (%q)", i, h, s)
		}
	}
	for i, c := range img.Constants {
		v, err := resolveConstant(c, reg)
		if err != nil {
			return nil, fmt.Errorf("link: constants.%d: %w", i, err)
		}
		pool.Register(v)
	}

	prog := vm.NewProgram(pool)
	for i, line := range img.Code {
		op, operands, err := ParseInstr(line)
		if err != nil {
			return nil, fmt.Errorf("link: code.%d: %w", i, err)
		}
		if err := checkOperands(op, operands, len(img.Strings), len(img.Constants)); err != nil {
			return nil, fmt.Errorf("link: code.%d: %w", i, err)
		}
		prog.Emit(op, operands...)
	}

	log.Debugf("linked %q: %d instructions, %d bytes, %d strings, %d constants",
		img.Name, len(img.Code), len(prog.Code), len(img.Strings), len(img.Constants))
	return prog, nil
}

func resolveConstant(c Constant, reg *Registry) (any, error) {
	switch {
	case c.Helper != "":
		h, ok := reg.Lookup(c.Helper)
		if !ok {
			return nil, fmt.Errorf("%w %q", ErrUnknownHelper, c.Helper)
		}
		return h, nil
	case c.Names != nil:
		return append([]string(nil), c.Names...), nil
	case c.Table != nil:
		if c.Table.Program {
			return &vm.ProgramSymbolTable{Symbols: c.Table.Symbols}, nil
		}
		if c.Table.Parameters == nil {
			return nil, fmt.Errorf("%w: block table has no parameters list", ErrBadTable)
		}
		return &vm.BlockSymbolTable{Parameters: c.Table.Parameters}, nil
	case c.Block != nil:
		return &vm.PrecompiledBlock{
			Handle: vm.Handle(c.Block.Handle),
			Table:  &vm.BlockSymbolTable{Parameters: c.Block.Parameters},
		}, nil
	}
	return c.Value, nil
}

func checkOperands(op vm.Opcode, operands []int, nstrings, nconstants int) error {
	for i, kind := range operandKinds[op] {
		n := operands[i]
		switch kind {
		case operandString:
			if n < 0 || n >= nstrings {
				return fmt.Errorf("%w: %s string %d not in [0, %d)", ErrBadOperand, op, n, nstrings)
			}
		case operandConstant:
			if n < 0 || n >= nconstants {
				return fmt.Errorf("%w: %s constant %d not in [0, %d)", ErrBadOperand, op, n, nconstants)
			}
		case operandOptionalConstant:
			if n >= nconstants {
				return fmt.Errorf("%w: %s constant %d not in [0, %d)", ErrBadOperand, op, n, nconstants)
			}
		case operandRegister:
			if !vm.Register(n).Valid() {
				return fmt.Errorf("%w: %s register %d", ErrBadOperand, op, n)
			}
		}
	}
	return nil
}
