package immix

import (
	"unsafe"

	"github.com/fernlang/fern/blockalloc"
)

// BumpBlock is a block with a downward bump cursor over its current
// hole. Invariant: BlockCapacity >= cursor >= limit >= 0, and cursor
// is always a multiple of AllocAlign.
type BumpBlock struct {
	cursor uintptr
	limit  uintptr
	block  *blockalloc.Block
	meta   *BlockMeta
}

// NewBumpBlock allocates a fresh block with an empty mark table and
// the cursor at the top of usable space.
func NewBumpBlock() (*BumpBlock, error) {
	block, err := blockalloc.New(BlockSize)
	if err != nil {
		return nil, wrapBlockErr(err)
	}
	return &BumpBlock{
		cursor: BlockCapacity,
		limit:  0,
		block:  block,
		meta:   metaFor(block.Base()),
	}, nil
}

// InnerAlloc bump-allocates size bytes downward within the current
// hole, falling back to the hole finder when the hole is too small.
// Returns nil when the block is exhausted.
func (b *BumpBlock) InnerAlloc(size uintptr) unsafe.Pointer {
	for {
		if b.cursor-b.limit >= size {
			candidate := (b.cursor - size) &^ uintptr(alignMask)
			if candidate >= b.limit {
				b.cursor = candidate
				return unsafe.Pointer(b.block.Base() + candidate)
			}
		}

		cursor, limit, ok := b.meta.FindNextAvailableHole(b.limit, size)
		if !ok {
			return nil
		}
		b.cursor = cursor
		b.limit = limit
	}
}

// CurrentHoleSize returns the bytes remaining in the current hole.
func (b *BumpBlock) CurrentHoleSize() uintptr {
	return b.cursor - b.limit
}

// Recycle repositions the cursor at the top of the block so the next
// allocation searches the mark table for holes. The collector calls
// this after marking to return a partially live block to service.
func (b *BumpBlock) Recycle() {
	b.cursor = BlockCapacity
	b.limit = BlockCapacity
}

// Meta returns the block's line-mark table.
func (b *BumpBlock) Meta() *BlockMeta {
	return b.meta
}

// Base returns the block's base address.
func (b *BumpBlock) Base() uintptr {
	return b.block.Base()
}

// Contains reports whether addr lies within this block.
func (b *BumpBlock) Contains(addr uintptr) bool {
	return blockalloc.BaseOf(addr, BlockSize) == b.block.Base()
}
