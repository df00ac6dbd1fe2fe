package vm

import (
	"fmt"
	"maps"

	"github.com/chazu/stencil/vm/reference"
)

// ---------------------------------------------------------------------------
// ScopeBlock
// ---------------------------------------------------------------------------

// ScopeBlock is a block bound into a scope: the block itself (a Handle or
// CompilableBlock operand), the scope it closes over, and its symbol
// table. A binding is either a complete ScopeBlock or nil.
type ScopeBlock struct {
	Block Value
	Scope *Scope
	Table *BlockSymbolTable
}

// ---------------------------------------------------------------------------
// Scope
// ---------------------------------------------------------------------------

// slot holds either a reference or a block binding. An empty slot reads as
// reference.Undefined and as an absent block.
type slot struct {
	ref   reference.Reference
	block *ScopeBlock
}

// Scope is the lexical environment of one frame. Symbols are dense indices
// assigned by the compiler; locals and blocks share one index space, so a
// symbol names either a local or a block. Reading a local's symbol as a
// block (HasBlock, GetBlock) or a block's symbol as a local (GetVariable)
// is a contract violation, not absence. An unbound symbol reads as both an
// Undefined local and an absent block.
//
// Scopes are shared by pointer. A ScopeBlock keeps the scope it captured
// alive after the frame that created it is gone.
type Scope struct {
	slots    []slot
	self     reference.Reference
	partials map[string]reference.Reference
}

// NewScope creates a scope with size empty symbol slots and no self.
func NewScope(size int) *Scope {
	if size < 0 {
		panic(&ContractError{Msg: fmt.Sprintf("negative scope size %d", size)})
	}
	return &Scope{slots: make([]slot, size)}
}

// Child copies the bindings of s into a new scope. Captured references and
// blocks are shared; the slot array and partial map are not.
func (s *Scope) Child() *Scope {
	c := &Scope{
		slots:    make([]slot, len(s.slots)),
		self:     s.self,
		partials: maps.Clone(s.partials),
	}
	copy(c.slots, s.slots)
	return c
}

// Size returns the number of symbol slots.
func (s *Scope) Size() int { return len(s.slots) }

func (s *Scope) slot(symbol int) *slot {
	if symbol < 0 || symbol >= len(s.slots) {
		panic(&ContractError{
			Msg:      "symbol out of range",
			Expected: fmt.Sprintf("symbol in [0, %d)", len(s.slots)),
			Actual:   fmt.Sprintf("symbol %d", symbol),
		})
	}
	return &s.slots[symbol]
}

// ReferenceForSymbol returns the reference bound to symbol, or
// reference.Undefined if nothing was bound.
func (s *Scope) ReferenceForSymbol(symbol int) reference.Reference {
	sl := s.slot(symbol)
	if sl.block != nil {
		panic(&ContractError{
			Msg:      "symbol is bound to a block",
			Expected: "Reference",
			Actual:   fmt.Sprintf("ScopeBlock at symbol %d", symbol),
		})
	}
	if sl.ref == nil {
		return reference.Undefined
	}
	return sl.ref
}

// BindSymbol binds ref to symbol.
func (s *Scope) BindSymbol(symbol int, ref reference.Reference) {
	if ref == nil {
		ref = reference.Undefined
	}
	*s.slot(symbol) = slot{ref: ref}
}

// GetBlock returns the block bound to symbol, or nil.
func (s *Scope) GetBlock(symbol int) *ScopeBlock {
	sl := s.slot(symbol)
	if sl.ref != nil && sl.ref != reference.Undefined {
		panic(&ContractError{
			Msg:      "symbol is bound to a reference",
			Expected: "Option<ScopeBlock>",
			Actual:   fmt.Sprintf("Reference at symbol %d", symbol),
		})
	}
	return sl.block
}

// BindBlock binds block to symbol. A nil block clears the binding.
func (s *Scope) BindBlock(symbol int, block *ScopeBlock) {
	if block != nil && (block.Scope == nil || block.Table == nil || block.Block.IsNull()) {
		panic(&ContractError{
			Msg:      "partial block binding",
			Expected: "(block, scope, table)",
			Actual:   fmt.Sprintf("(%s, %v, %v)", block.Block.Describe(), block.Scope != nil, block.Table != nil),
		})
	}
	*s.slot(symbol) = slot{block: block}
}

// Self returns the self reference. Reading self before it was bound is a
// contract violation.
func (s *Scope) Self() reference.Reference {
	if s.self == nil {
		panic(&ContractError{Msg: "self is not bound", Expected: "Reference", Actual: "nothing"})
	}
	return s.self
}

// HasSelf reports whether self was bound.
func (s *Scope) HasSelf() bool { return s.self != nil }

// BindSelf binds the self reference.
func (s *Scope) BindSelf(self reference.Reference) {
	s.self = self
}

// PartialMap returns the dynamic locals of the scope, or nil if the frame
// declares none.
func (s *Scope) PartialMap() map[string]reference.Reference {
	return s.partials
}

// BindPartialMap replaces the dynamic locals.
func (s *Scope) BindPartialMap(m map[string]reference.Reference) {
	s.partials = m
}

// BindPartial binds one dynamic local, creating the map if needed.
func (s *Scope) BindPartial(name string, ref reference.Reference) {
	if s.partials == nil {
		s.partials = make(map[string]reference.Reference)
	}
	s.partials[name] = ref
}
