package immix

import "unsafe"

// RawPtr is a non-null typed pointer to a heap object. It carries no
// dereference safety: callers must only dereference through a live
// mutator scope. The address is held as a uintptr deliberately - heap
// object memory is invisible to the Go garbage collector, and liveness
// is the heap's responsibility, not the pointer's.
type RawPtr[T any] struct {
	addr uintptr
}

// NewRawPtr wraps a pointer produced by the allocator.
func NewRawPtr[T any](p unsafe.Pointer) RawPtr[T] {
	if p == nil {
		panic("immix: RawPtr from nil pointer")
	}
	return RawPtr[T]{addr: uintptr(p)}
}

// RawPtrFromAddr rebuilds a RawPtr from a stored address.
func RawPtrFromAddr[T any](addr uintptr) RawPtr[T] {
	if addr == 0 {
		panic("immix: RawPtr from zero address")
	}
	return RawPtr[T]{addr: addr}
}

// Deref returns the object pointer. Only safe inside a mutator scope.
func (p RawPtr[T]) Deref() *T {
	return (*T)(unsafe.Pointer(p.addr))
}

// Addr returns the object address.
func (p RawPtr[T]) Addr() uintptr { return p.addr }

// AsUnsafe returns the object address as an unsafe.Pointer.
func (p RawPtr[T]) AsUnsafe() unsafe.Pointer {
	return unsafe.Pointer(p.addr)
}

// Header returns the object's header.
func (p RawPtr[T]) Header() *Header {
	return HeaderOf(p.AsUnsafe())
}
