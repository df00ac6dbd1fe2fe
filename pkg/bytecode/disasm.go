package bytecode

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/chazu/stencil/vm"
)

// Disassemble returns a human-readable listing of prog.
func Disassemble(prog *vm.Program) string {
	return DisassembleWithName(prog, "")
}

// DisassembleWithName returns a human-readable listing with a name header.
func DisassembleWithName(prog *vm.Program, name string) string {
	var sb strings.Builder

	// Header
	if name != "" {
		sb.WriteString(fmt.Sprintf("; === %s ===\n", name))
	}
	sb.WriteString(fmt.Sprintf("; Stencil Bytecode v%d\n", FormatVersion))
	sb.WriteString(fmt.Sprintf("; Size: %d bytes\n\n", len(prog.Code)))

	pool, _ := prog.Constants.(*vm.ConstantPool)
	if pool != nil && len(pool.Strings()) > 0 {
		sb.WriteString("; Strings:\n")
		for i, s := range pool.Strings() {
			sb.WriteString(fmt.Sprintf(";   [%3d] %q\n", i, truncate(s, 40)))
		}
		sb.WriteString("\n")
	}
	if pool != nil && len(pool.Handles()) > 0 {
		sb.WriteString("; Constants:\n")
		for i, v := range pool.Handles() {
			sb.WriteString(fmt.Sprintf(";   [%3d] %s\n", i, describeConstant(v)))
		}
		sb.WriteString("\n")
	}

	// Code section
	sb.WriteString("; Code:\n")
	for pc := 0; pc < len(prog.Code); {
		ins, next, err := prog.Decode(pc)
		if err != nil {
			sb.WriteString(fmt.Sprintf("%04X  ??? ; %v\n", pc, err))
			break
		}
		if note := annotate(ins, prog.Constants); note != "" {
			sb.WriteString(fmt.Sprintf("%04X  %-28s ; %s\n", pc, ins, note))
		} else {
			sb.WriteString(fmt.Sprintf("%04X  %s\n", pc, ins))
		}
		pc = next
	}

	return sb.String()
}

// annotate describes the table entry an instruction's operands refer to.
func annotate(ins vm.Instruction, constants vm.Constants) string {
	pool, _ := constants.(*vm.ConstantPool)
	kinds := operandKinds[ins.Op]
	operands := []int{ins.Op1, ins.Op2, ins.Op3}

	var notes []string
	for i, kind := range kinds {
		n := operands[i]
		switch kind {
		case operandString:
			if pool != nil && n >= 0 && n < len(pool.Strings()) {
				notes = append(notes, fmt.Sprintf("%q", truncate(pool.Strings()[n], 20)))
			}
		case operandConstant, operandOptionalConstant:
			if pool != nil && n >= 0 && n < len(pool.Handles()) {
				notes = append(notes, describeConstant(pool.Handles()[n]))
			}
		case operandRegister:
			notes = append(notes, vm.Register(n).String())
		}
	}
	return strings.Join(notes, ", ")
}

func describeConstant(v any) string {
	switch x := v.(type) {
	case nil:
		return "undefined"
	case string:
		return fmt.Sprintf("%q", truncate(x, 20))
	case vm.Helper:
		return "helper"
	case []string:
		return fmt.Sprintf("names %v", x)
	case *vm.BlockSymbolTable:
		return fmt.Sprintf("table params=%v", x.Parameters)
	case *vm.ProgramSymbolTable:
		return fmt.Sprintf("program table symbols=%v", x.Symbols)
	case *vm.PrecompiledBlock:
		var params []int
		if t := x.SymbolTable(); t != nil {
			params = t.Parameters
		}
		return fmt.Sprintf("block handle=%d params=%v", x.Handle, params)
	}
	return fmt.Sprintf("%v", v)
}

// truncate shortens strings longer than n runes for readability. Callers
// quote the result, which escapes special characters.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-3]) + "..."
}
