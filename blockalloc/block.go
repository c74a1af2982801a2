// Package blockalloc provides power-of-two sized, self-aligned memory
// blocks, the raw material for the mark-region heap.
//
// A Block's base address is aligned to its own size, so any interior
// pointer can recover the block base with a single mask:
//
//	base = addr &^ (size - 1)
package blockalloc

import (
	"errors"
	"unsafe"
)

// Allocation errors.
var (
	// ErrBadRequest is returned when the requested size is not a power
	// of two, is zero, or exceeds MaxBlockSize.
	ErrBadRequest = errors.New("blockalloc: size must be a non-zero power of two")

	// ErrOOM is returned when the underlying allocator cannot supply
	// the requested memory.
	ErrOOM = errors.New("blockalloc: out of memory")
)

// MaxBlockSize bounds a single block request. Anything larger is almost
// certainly a caller bug rather than a real allocation pattern.
const MaxBlockSize = 1 << 30

// Block is a contiguous, size-aligned region of memory. The Block owns
// its memory: the backing buffer is pinned by the buf reference and is
// released when the Block becomes unreachable.
//
// The Go runtime does not move heap allocations, so the base address is
// stable for the Block's lifetime and may be held as a bare uintptr by
// callers that manage their own liveness.
type Block struct {
	buf  []byte
	base uintptr
	size uintptr
}

// New allocates a block of the given size. The size must be a power of
// two; the returned block's base address satisfies base & (size-1) == 0.
func New(size uintptr) (*Block, error) {
	if size == 0 || size > MaxBlockSize || size&(size-1) != 0 {
		return nil, ErrBadRequest
	}

	// Go has no aligned-allocation primitive, so over-allocate by one
	// alignment unit and slide to the first self-aligned address.
	buf, err := allocBuf(int(size * 2))
	if err != nil {
		return nil, err
	}

	raw := uintptr(unsafe.Pointer(unsafe.SliceData(buf)))
	base := (raw + size - 1) &^ (size - 1)

	return &Block{
		buf:  buf,
		base: base,
		size: size,
	}, nil
}

// allocBuf wraps make so an unsatisfiable request surfaces as ErrOOM
// instead of a runtime panic escaping to the caller.
func allocBuf(n int) (buf []byte, err error) {
	defer func() {
		if recover() != nil {
			buf = nil
			err = ErrOOM
		}
	}()
	buf = make([]byte, n)
	return buf, nil
}

// AsPtr returns the block's aligned base address.
func (b *Block) AsPtr() unsafe.Pointer {
	return unsafe.Pointer(b.base)
}

// Base returns the aligned base address as a uintptr.
func (b *Block) Base() uintptr {
	return b.base
}

// Size returns the block size in bytes.
func (b *Block) Size() uintptr {
	return b.size
}

// Bytes returns the block's memory as a byte slice of length Size.
func (b *Block) Bytes() []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(b.base)), b.size)
}

// BaseOf recovers the block base address from any pointer into a block
// of the given size.
func BaseOf(addr, size uintptr) uintptr {
	return addr &^ (size - 1)
}
