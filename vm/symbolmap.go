package vm

import "github.com/fernlang/fern/immix"

// SymbolMap interns names to unique Symbol pointers. Interning the
// same name twice yields the same pointer; nothing is ever removed.
type SymbolMap struct {
	byName map[string]immix.RawPtr[Symbol]
	arena  *Arena
}

// NewSymbolMap creates an empty interning map with its own arena.
func NewSymbolMap() *SymbolMap {
	return &SymbolMap{
		byName: make(map[string]immix.RawPtr[Symbol], 256),
		arena:  NewArena(),
	}
}

// Lookup returns the symbol for a name, interning it on first use.
func (m *SymbolMap) Lookup(name string) immix.RawPtr[Symbol] {
	if sym, ok := m.byName[name]; ok {
		return sym
	}
	sym := m.arena.allocSymbol(name)
	m.byName[name] = sym
	return sym
}

// Len returns the number of interned symbols.
func (m *SymbolMap) Len() int {
	return len(m.byName)
}
