package vm

import (
	"unsafe"

	"github.com/fernlang/fern/immix"
)

// ScopedPtr is a dereferenceable pointer to a heap object. One is only
// obtainable through a live MutatorView - from an allocation or from a
// CellPtr presented with the view - which is this runtime's analogue
// of the read barrier: no safe dereference path exists that does not
// pass through a mutator scope.
//
// ScopedPtr values must not be stored inside heap objects or kept
// beyond the mutator task that produced them; the at-rest form is
// CellPtr / TaggedCellPtr.
type ScopedPtr[T any] struct {
	p *T
}

// Get returns the object pointer.
func (s ScopedPtr[T]) Get() *T { return s.p }

// addr returns the object address.
func (s ScopedPtr[T]) addr() uintptr {
	return uintptr(unsafe.Pointer(s.p))
}

// IsSame reports pointer identity.
func (s ScopedPtr[T]) IsSame(other ScopedPtr[T]) bool {
	return s.p == other.p
}

// scopedFromAddr rebuilds a ScopedPtr from a stored address, vouched
// for by the live view.
func scopedFromAddr[T any](v *MutatorView, addr uintptr) ScopedPtr[T] {
	v.assertActive()
	if addr == 0 {
		panic("vm: scoped pointer from zero address")
	}
	return ScopedPtr[T]{p: (*T)(unsafe.Pointer(addr))}
}

// CellPtr is the at-rest form of a typed object pointer: a plain
// address stored inside a heap object, invisible to the host garbage
// collector. Reading it back into a ScopedPtr requires a live view.
type CellPtr[T any] struct {
	cell uintptr
}

// NewCellPtr stores a scoped pointer at rest.
func NewCellPtr[T any](source ScopedPtr[T]) CellPtr[T] {
	return CellPtr[T]{cell: source.addr()}
}

// Get lends the pointer back out under the view's scope.
func (c *CellPtr[T]) Get(v *MutatorView) ScopedPtr[T] {
	return scopedFromAddr[T](v, c.cell)
}

// Set replaces the stored pointer.
func (c *CellPtr[T]) Set(source ScopedPtr[T]) {
	c.cell = source.addr()
}

// TaggedCellPtr is the at-rest form of a tagged value: one word inside
// a heap object. The zero value is nil.
type TaggedCellPtr struct {
	cell TaggedPtr
}

// TaggedCellFromPtr wraps a raw tagged word.
func TaggedCellFromPtr(ptr TaggedPtr) TaggedCellPtr {
	return TaggedCellPtr{cell: ptr}
}

// Get lends the value out under the view's scope.
func (c *TaggedCellPtr) Get(v *MutatorView) TaggedScopedPtr {
	v.assertActive()
	return TaggedScopedPtr{ptr: c.cell}
}

// GetPtr returns the raw tagged word without scope proof. Pointer
// arithmetic only: decoding it requires a view.
func (c *TaggedCellPtr) GetPtr() TaggedPtr { return c.cell }

// Set stores a scoped value.
func (c *TaggedCellPtr) Set(source TaggedScopedPtr) {
	c.cell = source.ptr
}

// SetToPtr stores a raw tagged word.
func (c *TaggedCellPtr) SetToPtr(ptr TaggedPtr) { c.cell = ptr }

// SetToNil stores nil.
func (c *TaggedCellPtr) SetToNil() { c.cell = 0 }

// IsNil reports whether the cell holds nil.
func (c *TaggedCellPtr) IsNil() bool { return c.cell.IsNil() }

// TaggedScopedPtr is the in-use form of a tagged value: obtained
// through a live view, safe to decode and dereference. Equality of two
// TaggedScopedPtr values is identity of the underlying word.
type TaggedScopedPtr struct {
	ptr TaggedPtr
}

// Ptr returns the underlying tagged word.
func (t TaggedScopedPtr) Ptr() TaggedPtr { return t.ptr }

// IsNil reports whether the value is nil.
func (t TaggedScopedPtr) IsNil() bool { return t.ptr.IsNil() }

// IsNumber reports whether the value is an inline integer.
func (t TaggedScopedPtr) IsNumber() bool { return t.ptr.IsNumber() }

// IsSymbol reports whether the value is a Symbol.
func (t TaggedScopedPtr) IsSymbol() bool { return t.ptr.IsSymbol() }

// IsPair reports whether the value is a Pair.
func (t TaggedScopedPtr) IsPair() bool { return t.ptr.IsPair() }

// TypeID resolves the value's concrete type, consulting the object
// header for OBJECT-tagged pointers.
func (t TaggedScopedPtr) TypeID() immix.TypeID {
	return fatFromTagged(t.ptr).typeID
}

// Number decodes an inline integer. Panics on the wrong tag.
func (t TaggedScopedPtr) Number() int { return t.ptr.Number() }

// Pair dereferences a PAIR pointer. Panics on the wrong tag.
func (t TaggedScopedPtr) Pair() *Pair {
	if !t.ptr.IsPair() {
		panic("TaggedScopedPtr.Pair: not a pair")
	}
	return (*Pair)(unsafe.Pointer(t.ptr.addr()))
}

// Symbol dereferences a SYMBOL pointer. Panics on the wrong tag.
func (t TaggedScopedPtr) Symbol() *Symbol {
	if !t.ptr.IsSymbol() {
		panic("TaggedScopedPtr.Symbol: not a symbol")
	}
	return (*Symbol)(unsafe.Pointer(t.ptr.addr()))
}

// objectAs dereferences an OBJECT pointer after checking its header tag.
func objectAs[T any](t TaggedScopedPtr, want immix.TypeID, what string) *T {
	if !t.ptr.IsObjectPtr() || immix.HeaderOf(unsafe.Pointer(t.ptr.addr())).TypeID() != want {
		panic("TaggedScopedPtr." + what + ": wrong type")
	}
	return (*T)(unsafe.Pointer(t.ptr.addr()))
}

// Function dereferences a Function object. Panics on the wrong type.
func (t TaggedScopedPtr) Function() *Function {
	return objectAs[Function](t, TypeFunction, "Function")
}

// Partial dereferences a Partial object. Panics on the wrong type.
func (t TaggedScopedPtr) Partial() *Partial {
	return objectAs[Partial](t, TypePartial, "Partial")
}

// Upvalue dereferences an Upvalue object. Panics on the wrong type.
func (t TaggedScopedPtr) Upvalue() *Upvalue {
	return objectAs[Upvalue](t, TypeUpvalue, "Upvalue")
}

// Text dereferences a String object. Panics on the wrong type.
func (t TaggedScopedPtr) Text() *Text {
	return objectAs[Text](t, TypeString, "Text")
}

// List dereferences a List object. Panics on the wrong type.
func (t TaggedScopedPtr) List() *List {
	return objectAs[List](t, TypeList, "List")
}

// ArrayU16 dereferences an ArrayU16 object. Panics on the wrong type.
func (t TaggedScopedPtr) ArrayU16() *Array[uint16] {
	return objectAs[Array[uint16]](t, TypeArrayU16, "ArrayU16")
}

// Dict dereferences a Dict object. Panics on the wrong type.
func (t TaggedScopedPtr) Dict() *Dict {
	return objectAs[Dict](t, TypeDict, "Dict")
}

// Func-typed scoped views used when pushing heap objects around.
func scopedOf[T any](p *T) ScopedPtr[T] { return ScopedPtr[T]{p: p} }
