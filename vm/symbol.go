package vm

// ---------------------------------------------------------------------------
// Symbol tables
// ---------------------------------------------------------------------------

// SymbolTable describes the compile-time symbols of a program or block.
// The two implementations are ProgramSymbolTable and BlockSymbolTable.
type SymbolTable interface {
	symbolTable()
}

// ProgramSymbolTable is the table of a top-level template.
type ProgramSymbolTable struct {
	Symbols []string // symbol names by index, for debugging
	HasEval bool     // true if the template uses dynamic partial lookup
}

func (*ProgramSymbolTable) symbolTable() {}

// BlockSymbolTable is the table of a block. Parameters holds the symbol
// indices the block binds its parameters to.
type BlockSymbolTable struct {
	Parameters []int
}

func (*BlockSymbolTable) symbolTable() {}

// HasParameters reports whether the block declares any block params.
func (t *BlockSymbolTable) HasParameters() bool {
	return t != nil && len(t.Parameters) > 0
}
