package vm

// Handle is an opaque integer key into the constant pool or the compiled
// block heap of the host.
type Handle int

// CompilableBlock is a block the host compiler has not necessarily
// compiled yet.
type CompilableBlock interface {
	// SymbolTable returns the block's symbol table.
	SymbolTable() *BlockSymbolTable

	// Compile returns the handle of the compiled block, compiling it on
	// first use.
	Compile() Handle
}

// PrecompiledBlock is a CompilableBlock whose handle is already known.
type PrecompiledBlock struct {
	Handle Handle
	Table  *BlockSymbolTable
}

func (b *PrecompiledBlock) SymbolTable() *BlockSymbolTable { return b.Table }
func (b *PrecompiledBlock) Compile() Handle                { return b.Handle }
