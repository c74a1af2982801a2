package vm

import (
	"unsafe"

	"github.com/fernlang/fern/immix"
)

// Memory owns the interpreter's heap and symbol arena. Its lifecycle
// is: construct, run mutator tasks any number of times, drop. A future
// collector runs between mutator tasks; while any MutatorView is live
// no collection can happen, which is what makes ScopedPtr dereferences
// sound.
type Memory struct {
	heap *immix.Heap
	syms *SymbolMap
}

// NewMemory creates an empty heap and symbol arena.
func NewMemory() *Memory {
	return &Memory{
		heap: immix.NewHeap(),
		syms: NewSymbolMap(),
	}
}

// Mutator is a unit of work given exclusive mutator access to the
// heap. Input and Output must be at-rest types: they must not carry
// ScopedPtr or TaggedScopedPtr values out of the scope.
type Mutator[I, O any] interface {
	Run(v *MutatorView, input I) (O, error)
}

// MutatorView is the scope token lent to a mutator task. All safe
// allocation and dereference goes through it; when the task returns
// the view is deactivated and any retained copy panics on use.
type MutatorView struct {
	mem    *Memory
	active bool
}

// Mutate runs a mutator task against the memory, lending it a view
// for the duration of the call.
func Mutate[I, O any](m *Memory, task Mutator[I, O], input I) (O, error) {
	view := &MutatorView{mem: m, active: true}
	defer func() { view.active = false }()
	return task.Run(view, input)
}

// MutatorFunc adapts a function to the Mutator interface.
type MutatorFunc[I, O any] func(v *MutatorView, input I) (O, error)

// Run implements Mutator.
func (f MutatorFunc[I, O]) Run(v *MutatorView, input I) (O, error) {
	return f(v, input)
}

// assertActive panics if the view escaped its mutator task. A
// deactivated view witnesses a broken invariant, not an anticipated
// condition.
func (v *MutatorView) assertActive() {
	if !v.active {
		panic("vm: mutator view used outside its scope")
	}
}

// Nil returns the nil value.
func (v *MutatorView) Nil() TaggedScopedPtr {
	v.assertActive()
	return TaggedScopedPtr{}
}

// Number returns an inline integer value. Integers outside the tagged
// range are rejected; a boxed numeric type is the future promotion
// path.
func (v *MutatorView) Number(n int) (TaggedScopedPtr, error) {
	v.assertActive()
	t, ok := taggedNumber(n)
	if !ok {
		return TaggedScopedPtr{}, newError(KindArithmeticOverflow, "integer outside tagged range")
	}
	return TaggedScopedPtr{ptr: t}, nil
}

// LookupSym interns a name and returns its symbol value. Symbols live
// in the non-moving arena, so the result is stable across scopes.
func (v *MutatorView) LookupSym(name string) TaggedScopedPtr {
	v.assertActive()
	raw := v.mem.syms.Lookup(name)
	return TaggedScopedPtr{ptr: taggedSymbol(raw.Addr())}
}

// SymbolName resolves a symbol value back to its name.
func (v *MutatorView) SymbolName(sym TaggedScopedPtr) string {
	v.assertActive()
	return sym.Symbol().asStr()
}

// Alloc places an object on the heap and returns a scoped pointer
// to it.
func Alloc[T heapObject](v *MutatorView, obj T) (ScopedPtr[T], error) {
	v.assertActive()
	raw, err := immix.AllocObject(v.mem.heap, obj.typeID(), obj)
	if err != nil {
		return ScopedPtr[T]{}, wrapAllocErr(err)
	}
	return ScopedPtr[T]{p: raw.Deref()}, nil
}

// AllocTagged places an object on the heap and returns it as a tagged
// value, encoded under the tag its type demands.
func AllocTagged[T heapObject](v *MutatorView, obj T) (TaggedScopedPtr, error) {
	sp, err := Alloc(v, obj)
	if err != nil {
		return TaggedScopedPtr{}, err
	}
	return TaggedScopedPtr{ptr: tagForTypeID(obj.typeID(), sp.addr())}, nil
}

// AsTagged re-encodes an existing scoped object pointer as a tagged
// value, reading the header for the tag.
func AsTagged[T any](v *MutatorView, sp ScopedPtr[T]) TaggedScopedPtr {
	v.assertActive()
	id := immix.HeaderOf(unsafe.Pointer(sp.p)).TypeID()
	return TaggedScopedPtr{ptr: tagForTypeID(id, sp.addr())}
}

// allocArrayBytes grabs a zeroed byte region for array backing
// storage.
func (v *MutatorView) allocArrayBytes(size uintptr) (uintptr, error) {
	v.assertActive()
	p, err := v.mem.heap.AllocArray(size, TypeByteArray)
	if err != nil {
		return 0, wrapAllocErr(err)
	}
	return uintptr(p), nil
}
