package vm

import (
	"fmt"

	"github.com/chazu/stencil/vm/reference"
)

// ---------------------------------------------------------------------------
// Operand values
// ---------------------------------------------------------------------------

// Kind tags the payload of an operand Value.
type Kind uint8

const (
	KindNull        Kind = iota // absent; valid wherever an option is expected
	KindReference               // reference.Reference
	KindScope                   // *Scope
	KindHandle                  // compiled block Handle
	KindCompilable              // CompilableBlock
	KindSymbolTable             // SymbolTable
	KindArguments               // *Arguments
)

var kindNames = [...]string{
	KindNull:        "Null",
	KindReference:   "Reference",
	KindScope:       "Scope",
	KindHandle:      "Handle",
	KindCompilable:  "CompilableBlock",
	KindSymbolTable: "SymbolTable",
	KindArguments:   "Arguments",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// Value is one operand stack entry or register. The zero Value is Null.
type Value struct {
	kind    Kind
	handle  Handle
	payload any
}

// Null is the absent operand.
var Null = Value{}

// RefValue wraps a reference. A nil reference becomes Null.
func RefValue(r reference.Reference) Value {
	if r == nil {
		return Null
	}
	return Value{kind: KindReference, payload: r}
}

// ScopeValue wraps a scope. A nil scope becomes Null.
func ScopeValue(s *Scope) Value {
	if s == nil {
		return Null
	}
	return Value{kind: KindScope, payload: s}
}

// HandleValue wraps a compiled block handle.
func HandleValue(h Handle) Value {
	return Value{kind: KindHandle, handle: h}
}

// CompilableValue wraps a not-yet-compiled block. A nil block becomes Null.
func CompilableValue(b CompilableBlock) Value {
	if b == nil {
		return Null
	}
	return Value{kind: KindCompilable, payload: b}
}

// TableValue wraps a symbol table. A nil table becomes Null.
func TableValue(t SymbolTable) Value {
	switch x := t.(type) {
	case nil:
		return Null
	case *BlockSymbolTable:
		if x == nil {
			return Null
		}
	case *ProgramSymbolTable:
		if x == nil {
			return Null
		}
	}
	return Value{kind: KindSymbolTable, payload: t}
}

// ArgsValue wraps an argument bundle. A nil bundle becomes Null.
func ArgsValue(a *Arguments) Value {
	if a == nil {
		return Null
	}
	return Value{kind: KindArguments, payload: a}
}

// Kind returns the payload tag.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is the absent operand.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Reference returns the wrapped reference, or nil.
func (v Value) Reference() reference.Reference {
	r, _ := v.payload.(reference.Reference)
	return r
}

// Scope returns the wrapped scope, or nil.
func (v Value) Scope() *Scope {
	s, _ := v.payload.(*Scope)
	return s
}

// Handle returns the wrapped handle and whether v holds one.
func (v Value) Handle() (Handle, bool) {
	return v.handle, v.kind == KindHandle
}

// Compilable returns the wrapped compilable block, or nil.
func (v Value) Compilable() CompilableBlock {
	b, _ := v.payload.(CompilableBlock)
	return b
}

// SymbolTable returns the wrapped symbol table, or nil.
func (v Value) SymbolTable() SymbolTable {
	t, _ := v.payload.(SymbolTable)
	return t
}

// BlockSymbolTable returns the wrapped table if it is a block table.
func (v Value) BlockSymbolTable() *BlockSymbolTable {
	t, _ := v.payload.(*BlockSymbolTable)
	return t
}

// Arguments returns the wrapped argument bundle, or nil.
func (v Value) Arguments() *Arguments {
	a, _ := v.payload.(*Arguments)
	return a
}

// Describe names the shape of v for contract error messages.
func (v Value) Describe() string {
	switch v.kind {
	case KindSymbolTable:
		switch v.payload.(type) {
		case *BlockSymbolTable:
			return "BlockSymbolTable"
		case *ProgramSymbolTable:
			return "ProgramSymbolTable"
		}
	case KindReference:
		return fmt.Sprintf("Reference(%T)", v.payload)
	}
	return v.kind.String()
}

func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindReference:
		return fmt.Sprintf("ref(%s)", reference.ToString(v.Reference().Value()))
	case KindHandle:
		return fmt.Sprintf("handle(%d)", v.handle)
	case KindScope:
		return fmt.Sprintf("scope(%d symbols)", v.Scope().Size())
	case KindSymbolTable:
		if t := v.BlockSymbolTable(); t != nil {
			return fmt.Sprintf("table(params=%v)", t.Parameters)
		}
		return v.Describe()
	}
	return v.kind.String()
}
