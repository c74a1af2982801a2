package immix

import "unsafe"

// TypeID identifies the concrete type of a heap object. The closed set
// of values is defined by the runtime that owns the heap; the allocator
// only stores and returns them.
type TypeID uint16

// Mark is the per-object liveness flag written by the collector.
type Mark uint8

const (
	// MarkAllocated is the state of a freshly allocated object, before
	// any collection has considered it.
	MarkAllocated Mark = iota
	// MarkUnmarked means the last trace did not reach the object.
	MarkUnmarked
	// MarkMarked means the last trace proved the object live.
	MarkMarked
)

// SizeClass buckets allocations by how they interact with lines.
type SizeClass uint8

const (
	// SizeSmall objects fit within a single line.
	SizeSmall SizeClass = iota
	// SizeMedium objects span lines but fit within a block.
	SizeMedium
	// SizeLarge objects exceed block capacity. This heap rejects them.
	SizeLarge
)

// SizeClassForSize buckets a total allocation size (header included).
func SizeClassForSize(size uintptr) SizeClass {
	switch {
	case size <= LineSize:
		return SizeSmall
	case size <= BlockCapacity:
		return SizeMedium
	default:
		return SizeLarge
	}
}

// Header precedes every heap object. Given an object pointer, the
// header is at object − HeaderSize; given a header pointer, the object
// is at header + HeaderSize.
type Header struct {
	size      uint32
	typeID    TypeID
	sizeClass SizeClass
	mark      Mark
}

// HeaderSize is the distance between a header and its object, padded
// so objects keep double-word alignment.
const HeaderSize = (unsafe.Sizeof(Header{}) + alignMask) &^ alignMask

// NewHeader builds a header for an object of the given payload size.
func NewHeader(objSize uint32, id TypeID, class SizeClass) Header {
	return Header{
		size:      objSize,
		typeID:    id,
		sizeClass: class,
		mark:      MarkAllocated,
	}
}

// Size returns the object payload size in bytes, header excluded.
func (h *Header) Size() uint32 { return h.size }

// TypeID returns the object's type tag.
func (h *Header) TypeID() TypeID { return h.typeID }

// SizeClass returns the allocation's size class.
func (h *Header) SizeClass() SizeClass { return h.sizeClass }

// SetMark stamps the object as live.
func (h *Header) SetMark() { h.mark = MarkMarked }

// ClearMark resets the object to unmarked ahead of a trace.
func (h *Header) ClearMark() { h.mark = MarkUnmarked }

// IsMarked reports whether the last trace reached the object.
func (h *Header) IsMarked() bool { return h.mark == MarkMarked }

// HeaderOf returns the header for an object pointer. Pointer arithmetic
// only; dereferencing the result outside a mutator scope is on the
// caller.
func HeaderOf(obj unsafe.Pointer) *Header {
	return (*Header)(unsafe.Add(obj, -int(HeaderSize)))
}

// ObjectOf returns the object pointer for a header.
func ObjectOf(h *Header) unsafe.Pointer {
	return unsafe.Add(unsafe.Pointer(h), HeaderSize)
}
