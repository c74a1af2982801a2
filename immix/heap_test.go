package immix

import (
	"errors"
	"testing"
	"unsafe"
)

const testTypeID TypeID = 7

func TestHeapAllocRoundTrip(t *testing.T) {
	h := NewHeap()

	ptr, err := AllocObject(h, testTypeID, uint64(0xDEADBEEF))
	if err != nil {
		t.Fatal(err)
	}
	if got := *ptr.Deref(); got != 0xDEADBEEF {
		t.Errorf("object = %#x, want 0xDEADBEEF", got)
	}

	hdr := ptr.Header()
	if hdr.TypeID() != testTypeID {
		t.Errorf("TypeID = %d, want %d", hdr.TypeID(), testTypeID)
	}
	if hdr.Size() != 8 {
		t.Errorf("Size = %d, want 8", hdr.Size())
	}
	if hdr.SizeClass() != SizeSmall {
		t.Errorf("SizeClass = %d, want SizeSmall", hdr.SizeClass())
	}
	if hdr.IsMarked() {
		t.Error("fresh object reports marked")
	}

	// header <-> object pointer arithmetic is a bijection
	if got := ObjectOf(HeaderOf(ptr.AsUnsafe())); got != ptr.AsUnsafe() {
		t.Errorf("ObjectOf(HeaderOf(p)) = %p, want %p", got, ptr.AsUnsafe())
	}
}

func TestHeapManyObjects(t *testing.T) {
	h := NewHeap()

	var ptrs []RawPtr[uint64]
	const n = 3 * BlockSize / 32 // spans several blocks

	for i := 0; i < n; i++ {
		ptr, err := AllocObject(h, testTypeID, uint64(i))
		if err != nil {
			t.Fatalf("alloc %d: %v", i, err)
		}
		ptrs = append(ptrs, ptr)
	}

	for i, ptr := range ptrs {
		if *ptr.Deref() != uint64(i) {
			t.Fatalf("object %d corrupted: got %d", i, *ptr.Deref())
		}
	}

	if h.BlockCount() < 2 {
		t.Errorf("BlockCount = %d, want several", h.BlockCount())
	}
}

func TestHeapMark(t *testing.T) {
	h := NewHeap()

	ptr, err := AllocObject(h, testTypeID, uint64(1))
	if err != nil {
		t.Fatal(err)
	}

	hdr := ptr.Header()
	hdr.SetMark()
	if !hdr.IsMarked() {
		t.Error("SetMark did not stick")
	}
	hdr.ClearMark()
	if hdr.IsMarked() {
		t.Error("ClearMark did not stick")
	}
}

func TestHeapLargeObjectRejected(t *testing.T) {
	h := NewHeap()

	// The largest accepted payload exactly fills a fresh block.
	maxPayload := uintptr(BlockCapacity) - HeaderSize
	if _, err := h.Alloc(maxPayload, testTypeID); err != nil {
		t.Fatalf("Alloc(%d): %v", maxPayload, err)
	}

	if _, err := h.Alloc(maxPayload+1, testTypeID); !errors.Is(err, ErrBadRequest) {
		t.Errorf("Alloc(%d): err = %v, want ErrBadRequest", maxPayload+1, err)
	}
}

func TestHeapMediumUsesOverflow(t *testing.T) {
	h := NewHeap()

	// Shrink the head block's hole below a medium object's size.
	holeBefore := uintptr(0)
	for {
		if _, err := h.Alloc(8, testTypeID); err != nil {
			t.Fatal(err)
		}
		if h.blocks.head.CurrentHoleSize() < 4*LineSize {
			holeBefore = h.blocks.head.CurrentHoleSize()
			break
		}
	}

	// A medium object bigger than the remaining hole must route to the
	// overflow block, leaving the head untouched.
	if _, err := h.Alloc(8*LineSize, testTypeID); err != nil {
		t.Fatal(err)
	}
	if h.blocks.overflow == nil {
		t.Fatal("medium allocation did not create an overflow block")
	}
	if h.blocks.head.CurrentHoleSize() != holeBefore {
		t.Error("medium allocation consumed head block space")
	}

	// Small allocations keep using the head block.
	if _, err := h.Alloc(8, testTypeID); err != nil {
		t.Fatal(err)
	}
	if h.blocks.head.CurrentHoleSize() >= holeBefore {
		t.Error("small allocation did not come from the head block")
	}
}

func TestHeapOverflowRetiresOnMiss(t *testing.T) {
	h := NewHeap()

	// Shrink the head's hole so medium objects miss it.
	if _, err := h.Alloc(8, testTypeID); err != nil {
		t.Fatal(err)
	}
	for h.blocks.head.CurrentHoleSize() >= BlockCapacity/2 {
		if _, err := h.Alloc(8, testTypeID); err != nil {
			t.Fatal(err)
		}
	}

	medium := uintptr(BlockCapacity) - HeaderSize
	if _, err := h.Alloc(medium, testTypeID); err != nil {
		t.Fatal(err)
	}
	first := h.blocks.overflow

	// The next block-filling medium object cannot fit the now-full
	// overflow block: it must retire into rest and be replaced.
	if _, err := h.Alloc(medium, testTypeID); err != nil {
		t.Fatal(err)
	}
	if h.blocks.overflow == first {
		t.Error("full overflow block was not retired")
	}

	found := false
	for _, b := range h.blocks.rest {
		if b == first {
			found = true
		}
	}
	if !found {
		t.Error("retired overflow block missing from rest")
	}
}

func TestHeapAllocArrayZeroed(t *testing.T) {
	h := NewHeap()

	// Dirty a block region first so reuse would show through.
	p, err := h.Alloc(256, testTypeID)
	if err != nil {
		t.Fatal(err)
	}
	bs := unsafe.Slice((*byte)(p), 256)
	for i := range bs {
		bs[i] = 0xFF
	}

	ap, err := h.AllocArray(256, testTypeID)
	if err != nil {
		t.Fatal(err)
	}
	abs := unsafe.Slice((*byte)(ap), 256)
	for i, b := range abs {
		if b != 0 {
			t.Fatalf("array byte %d = %#x, want 0", i, b)
		}
	}

	if HeaderOf(ap).TypeID() != testTypeID {
		t.Error("array header lost its type tag")
	}
}
