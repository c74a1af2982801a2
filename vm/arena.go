package vm

import (
	"unsafe"

	"github.com/fernlang/fern/immix"
)

// Arena is a non-moving, never-collected heap with the same block
// structure as the object heap. Symbols and their name bytes live
// here, which is what makes symbol pointers stable for the
// interpreter's lifetime.
type Arena struct {
	heap *immix.Heap
}

// NewArena creates an empty arena.
func NewArena() *Arena {
	return &Arena{heap: immix.NewHeap()}
}

// allocSymbol copies name into the arena and allocates a Symbol whose
// string components point at the copy. Arena exhaustion is fatal: the
// interpreter cannot run without its names.
func (a *Arena) allocSymbol(name string) immix.RawPtr[Symbol] {
	var nameAddr uintptr

	if len(name) > 0 {
		p, err := a.heap.AllocArray(uintptr(len(name)), TypeByteArray)
		if err != nil {
			panic("vm: symbol arena exhausted: " + err.Error())
		}
		copy(unsafe.Slice((*byte)(p), len(name)), name)
		nameAddr = uintptr(p)
	}

	sym, err := immix.AllocObject(a.heap, TypeSymbol, Symbol{
		nameAddr: nameAddr,
		nameLen:  uint32(len(name)),
	})
	if err != nil {
		panic("vm: symbol arena exhausted: " + err.Error())
	}
	return sym
}
