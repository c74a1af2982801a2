package vm

import "github.com/fernlang/fern/immix"

// Array is a growable typed vector with a runtime borrow flag. The
// flag substitutes a runtime check for what the scope discipline
// cannot see: a slice view of the contents must not outlive a
// mutation that could reallocate the backing store.
//
// Borrow protocol: zero means unborrowed; positive counts shared read
// borrows; -1 is an active exclusive borrow. Any violating access
// fails with a borrow error.
type Array[T any] struct {
	length uint32
	data   RawArray[T]
	borrow int32
}

const borrowExclusive int32 = -1

func (a Array[T]) typeID() immix.TypeID {
	var t T
	switch any(t).(type) {
	case TaggedCellPtr:
		return TypeList
	case Opcode:
		return TypeArrayOpcode
	case uint16:
		return TypeArrayU16
	case CallFrame:
		return TypeCallFrame
	case byte:
		return TypeByteArray
	default:
		return TypeArray
	}
}

// AllocArrayObject places an empty Array of the given type on the
// heap.
func AllocArrayObject[T any](v *MutatorView) (ScopedPtr[Array[T]], error) {
	return Alloc(v, Array[T]{})
}

// AllocArrayWithCapacity places an Array with pre-sized backing
// storage on the heap.
func AllocArrayWithCapacity[T any](v *MutatorView, capacity uint32) (ScopedPtr[Array[T]], error) {
	sp, err := Alloc(v, Array[T]{})
	if err != nil {
		return ScopedPtr[Array[T]]{}, err
	}
	if capacity > 0 {
		if err := sp.Get().data.resize(v, capacity); err != nil {
			return ScopedPtr[Array[T]]{}, err
		}
	}
	return sp, nil
}

// Length returns the element count.
func (a *Array[T]) Length() uint32 { return a.length }

// Capacity returns the backing store's element capacity.
func (a *Array[T]) Capacity() uint32 { return a.data.Capacity() }

func (a *Array[T]) beginRead() error {
	if a.borrow < 0 {
		return newError(KindBorrow, "array is exclusively borrowed")
	}
	a.borrow++
	return nil
}

func (a *Array[T]) endRead() { a.borrow-- }

func (a *Array[T]) beginWrite() error {
	if a.borrow != 0 {
		return newError(KindBorrow, "array is borrowed")
	}
	a.borrow = borrowExclusive
	return nil
}

func (a *Array[T]) endWrite() { a.borrow = 0 }

// ensureCapacity grows the backing store to hold at least needed
// elements, doubling from the default initial capacity.
func (a *Array[T]) ensureCapacity(v *MutatorView, needed uint32) error {
	capacity := a.data.Capacity()
	if needed <= capacity {
		return nil
	}
	newCapacity := max(capacity*2, defaultArrayCapacity)
	for newCapacity < needed {
		newCapacity *= 2
	}
	return a.data.resize(v, newCapacity)
}

// Push appends an element, growing the backing store on full.
func (a *Array[T]) Push(v *MutatorView, item T) error {
	v.assertActive()
	if err := a.beginWrite(); err != nil {
		return err
	}
	defer a.endWrite()

	if err := a.ensureCapacity(v, a.length+1); err != nil {
		return err
	}
	a.data.asSlice()[a.length] = item
	a.length++
	return nil
}

// Pop removes and returns the last element.
func (a *Array[T]) Pop(v *MutatorView) (T, error) {
	var zero T
	v.assertActive()
	if err := a.beginWrite(); err != nil {
		return zero, err
	}
	defer a.endWrite()

	if a.length == 0 {
		return zero, newError(KindBounds, "pop from empty array")
	}
	a.length--
	return a.data.asSlice()[a.length], nil
}

// Top returns the last element without removing it.
func (a *Array[T]) Top(v *MutatorView) (T, error) {
	var zero T
	v.assertActive()
	if err := a.beginRead(); err != nil {
		return zero, err
	}
	defer a.endRead()

	if a.length == 0 {
		return zero, newError(KindBounds, "top of empty array")
	}
	return a.data.asSlice()[a.length-1], nil
}

// Get returns the element at index.
func (a *Array[T]) Get(v *MutatorView, index uint32) (T, error) {
	var zero T
	v.assertActive()
	if err := a.beginRead(); err != nil {
		return zero, err
	}
	defer a.endRead()

	if index >= a.length {
		return zero, newError(KindBounds, "array index out of bounds")
	}
	return a.data.asSlice()[index], nil
}

// Set replaces the element at index.
func (a *Array[T]) Set(v *MutatorView, index uint32, item T) error {
	v.assertActive()
	if err := a.beginWrite(); err != nil {
		return err
	}
	defer a.endWrite()

	if index >= a.length {
		return newError(KindBounds, "array index out of bounds")
	}
	a.data.asSlice()[index] = item
	return nil
}

// Fill extends the array to the given length, writing item into every
// new slot. A length at or below the current one is a no-op.
func (a *Array[T]) Fill(v *MutatorView, length uint32, item T) error {
	v.assertActive()
	if err := a.beginWrite(); err != nil {
		return err
	}
	defer a.endWrite()

	if length <= a.length {
		return nil
	}
	if err := a.ensureCapacity(v, length); err != nil {
		return err
	}
	slice := a.data.asSlice()
	for i := a.length; i < length; i++ {
		slice[i] = item
	}
	a.length = length
	return nil
}

// Truncate shortens the array to the given length. A longer length is
// a no-op.
func (a *Array[T]) Truncate(v *MutatorView, length uint32) error {
	v.assertActive()
	if err := a.beginWrite(); err != nil {
		return err
	}
	defer a.endWrite()

	if length < a.length {
		a.length = length
	}
	return nil
}

// Clear empties the array, keeping the backing store.
func (a *Array[T]) Clear(v *MutatorView) error {
	return a.Truncate(v, 0)
}

// AccessSlice lends the contents out as a mutable slice under an
// exclusive borrow for the duration of f. The slice must not escape f,
// and no other array operation may run within it.
func (a *Array[T]) AccessSlice(v *MutatorView, f func(slice []T) error) error {
	v.assertActive()
	if err := a.beginWrite(); err != nil {
		return err
	}
	defer a.endWrite()

	return f(a.data.asSlice()[:a.length])
}

// ReadSlice lends the contents out as a read-only view under a shared
// borrow for the duration of f.
func (a *Array[T]) ReadSlice(v *MutatorView, f func(slice []T) error) error {
	v.assertActive()
	if err := a.beginRead(); err != nil {
		return err
	}
	defer a.endRead()

	return f(a.data.asSlice()[:a.length])
}
