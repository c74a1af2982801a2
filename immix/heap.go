package immix

import "unsafe"

// blockList tracks the blocks backing a heap: the head block currently
// being bump-allocated into, an overflow block reserved for medium
// objects that miss the head's hole, and the rest - blocks that are
// full or were retired because an allocation did not fit.
type blockList struct {
	head     *BumpBlock
	overflow *BumpBlock
	rest     []*BumpBlock
}

// AllocRaw is the low-level allocation surface consumed by the layers
// above: typed object allocation and zeroed byte-array allocation,
// both header-prefixed. HeaderOf and ObjectOf complete the contract
// as free functions, being pure pointer arithmetic.
type AllocRaw interface {
	Alloc(objSize uintptr, id TypeID) (unsafe.Pointer, error)
	AllocArray(objSize uintptr, id TypeID) (unsafe.Pointer, error)
}

// Heap routes object allocations into bump blocks and places a header
// in front of every object. It is single-mutator: callers serialize
// access through the runtime's mutator scope.
type Heap struct {
	blocks blockList
}

var _ AllocRaw = (*Heap)(nil)

// NewHeap creates an empty heap. No blocks are allocated until the
// first object arrives.
func NewHeap() *Heap {
	return &Heap{}
}

// Alloc allocates space for an object of objSize bytes, writes its
// header, and returns a pointer to the (uninitialized) object region
// past the header.
func (h *Heap) Alloc(objSize uintptr, id TypeID) (unsafe.Pointer, error) {
	return h.allocWithHeader(objSize, id, false)
}

// AllocArray allocates a zero-initialized region of objSize bytes with
// the given type tag. Callers layer typed arrays over the raw bytes.
func (h *Heap) AllocArray(objSize uintptr, id TypeID) (unsafe.Pointer, error) {
	return h.allocWithHeader(objSize, id, true)
}

func (h *Heap) allocWithHeader(objSize uintptr, id TypeID, zero bool) (unsafe.Pointer, error) {
	allocSize := HeaderSize + alignUp(objSize)

	class := SizeClassForSize(allocSize)
	if class == SizeLarge {
		// large objects are deferred to a future large-object list
		return nil, ErrBadRequest
	}

	space, err := h.findSpace(allocSize, class)
	if err != nil {
		return nil, err
	}

	hdr := (*Header)(space)
	*hdr = NewHeader(uint32(objSize), id, class)

	obj := unsafe.Add(space, HeaderSize)
	if zero {
		bs := unsafe.Slice((*byte)(obj), objSize)
		for i := range bs {
			bs[i] = 0
		}
	}
	return obj, nil
}

// findSpace locates allocSize bytes of room, growing the block list as
// needed. Medium objects that miss the head's current hole go to the
// overflow block rather than fragmenting the head.
func (h *Heap) findSpace(allocSize uintptr, class SizeClass) (unsafe.Pointer, error) {
	head := h.blocks.head

	if head == nil {
		var err error
		if head, err = NewBumpBlock(); err != nil {
			return nil, err
		}
		h.blocks.head = head
		return headAlloc(head, allocSize), nil
	}

	if class == SizeMedium && allocSize > head.CurrentHoleSize() {
		return h.overflowAlloc(allocSize)
	}

	if space := head.InnerAlloc(allocSize); space != nil {
		return space, nil
	}

	// head exhausted: retire it and start a fresh one
	h.blocks.rest = append(h.blocks.rest, head)
	fresh, err := NewBumpBlock()
	if err != nil {
		return nil, err
	}
	h.blocks.head = fresh
	return headAlloc(fresh, allocSize), nil
}

// overflowAlloc places a medium object in the overflow block,
// retiring the overflow block when the object does not fit.
func (h *Heap) overflowAlloc(allocSize uintptr) (unsafe.Pointer, error) {
	ov := h.blocks.overflow

	if ov == nil {
		var err error
		if ov, err = NewBumpBlock(); err != nil {
			return nil, err
		}
		h.blocks.overflow = ov
		return headAlloc(ov, allocSize), nil
	}

	if space := ov.InnerAlloc(allocSize); space != nil {
		return space, nil
	}

	h.blocks.rest = append(h.blocks.rest, ov)
	fresh, err := NewBumpBlock()
	if err != nil {
		return nil, err
	}
	h.blocks.overflow = fresh
	return headAlloc(fresh, allocSize), nil
}

// headAlloc allocates from a freshly created block. The size-class
// check already proved the object fits, so failure is a broken
// invariant, not an error.
func headAlloc(b *BumpBlock, allocSize uintptr) unsafe.Pointer {
	space := b.InnerAlloc(allocSize)
	if space == nil {
		panic("immix: fresh block rejected an in-capacity allocation")
	}
	return space
}

// BlockCount returns how many blocks the heap currently holds.
func (h *Heap) BlockCount() int {
	n := len(h.blocks.rest)
	if h.blocks.head != nil {
		n++
	}
	if h.blocks.overflow != nil {
		n++
	}
	return n
}

// AllocObject allocates a copy of obj on the heap, headers and all,
// returning a typed raw pointer to it.
func AllocObject[T any](h *Heap, id TypeID, obj T) (RawPtr[T], error) {
	space, err := h.Alloc(unsafe.Sizeof(obj), id)
	if err != nil {
		return RawPtr[T]{}, err
	}
	*(*T)(space) = obj
	return NewRawPtr[T](space), nil
}
