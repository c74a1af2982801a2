package vm

import (
	"math/bits"
	"unsafe"

	"github.com/fernlang/fern/immix"
)

// TaggedPtr is the single-word at-rest value representation. The two
// least significant bits carry the type tag; object addresses are
// double-word aligned so those bits are always free.
//
//	00  OBJECT  concrete type is in the object header
//	01  PAIR
//	10  SYMBOL
//	11  INT     signed integer inlined in the upper bits
//
// The all-zero word is nil.
type TaggedPtr uintptr

const (
	tagObject uintptr = 0b00
	tagPair   uintptr = 0b01
	tagSymbol uintptr = 0b10
	tagNumber uintptr = 0b11

	tagBits = 2
	tagMask = (1 << tagBits) - 1
)

// Inline integer range: the payload keeps wordsize−2 bits, signed.
const (
	numberBits = bits.UintSize - tagBits

	// MaxTaggedNumber is the largest inline integer.
	MaxTaggedNumber = 1<<(numberBits-1) - 1
	// MinTaggedNumber is the smallest inline integer.
	MinTaggedNumber = -(1 << (numberBits - 1))
)

// TaggedNil returns the nil value.
func TaggedNil() TaggedPtr { return 0 }

// taggedNumber encodes an inline integer, reporting false when the
// value does not fit the tagged range. Overflow is the caller's error
// to surface; a boxed big-number type would be the promotion path.
func taggedNumber(n int) (TaggedPtr, bool) {
	if n > MaxTaggedNumber || n < MinTaggedNumber {
		return 0, false
	}
	return TaggedPtr(uintptr(n)<<tagBits | tagNumber), true
}

// taggedObject encodes an OBJECT pointer from an object address.
func taggedObject(addr uintptr) TaggedPtr {
	if addr&tagMask != 0 {
		panic("vm: unaligned object address")
	}
	return TaggedPtr(addr)
}

// taggedPair encodes a PAIR pointer.
func taggedPair(addr uintptr) TaggedPtr {
	if addr&tagMask != 0 {
		panic("vm: unaligned pair address")
	}
	return TaggedPtr(addr | tagPair)
}

// taggedSymbol encodes a SYMBOL pointer.
func taggedSymbol(addr uintptr) TaggedPtr {
	if addr&tagMask != 0 {
		panic("vm: unaligned symbol address")
	}
	return TaggedPtr(addr | tagSymbol)
}

// tag returns the low tag bits.
func (t TaggedPtr) tag() uintptr { return uintptr(t) & tagMask }

// addr returns the pointer payload with the tag stripped.
func (t TaggedPtr) addr() uintptr { return uintptr(t) &^ uintptr(tagMask) }

// IsNil reports whether t is the nil value.
func (t TaggedPtr) IsNil() bool { return t == 0 }

// IsNumber reports whether t is an inline integer.
func (t TaggedPtr) IsNumber() bool { return t.tag() == tagNumber }

// IsPair reports whether t points at a Pair.
func (t TaggedPtr) IsPair() bool { return t.tag() == tagPair }

// IsSymbol reports whether t points at a Symbol.
func (t TaggedPtr) IsSymbol() bool { return t.tag() == tagSymbol }

// IsObjectPtr reports whether t is a non-nil OBJECT pointer.
func (t TaggedPtr) IsObjectPtr() bool { return t.tag() == tagObject && t != 0 }

// Number decodes an inline integer with sign extension.
// Panics if t is not a number.
func (t TaggedPtr) Number() int {
	if !t.IsNumber() {
		panic("TaggedPtr.Number: not a number")
	}
	return int(uintptr(t)) >> tagBits
}

// FatPtr is the two-word intermediate representation: the type made
// explicit alongside the untagged pointer payload. OBJECT pointers are
// resolved to their concrete header type when a FatPtr is built, so
// building one from a TaggedPtr reads the header and is only safe
// inside a mutator scope.
type FatPtr struct {
	typeID immix.TypeID
	addr   uintptr
	number int
}

// fatFromTagged decodes a TaggedPtr. For OBJECT pointers this
// dereferences the header; corruption there is unrecoverable and
// surfaces as a panic, not an error.
func fatFromTagged(t TaggedPtr) FatPtr {
	switch {
	case t.IsNil():
		return FatPtr{typeID: TypeNil}
	case t.IsPair():
		return FatPtr{typeID: TypePair, addr: t.addr()}
	case t.IsSymbol():
		return FatPtr{typeID: TypeSymbol, addr: t.addr()}
	case t.IsNumber():
		return FatPtr{typeID: TypeInteger, number: t.Number()}
	default:
		hdr := immix.HeaderOf(unsafe.Pointer(t.addr()))
		return FatPtr{typeID: hdr.TypeID(), addr: t.addr()}
	}
}

// TypeID returns the pointer's concrete type.
func (f FatPtr) TypeID() immix.TypeID { return f.typeID }

// tagged re-encodes the FatPtr as a single word. Round-tripping a
// TaggedPtr through FatPtr is bit-exact.
func (f FatPtr) tagged() TaggedPtr {
	switch f.typeID {
	case TypeNil:
		return TaggedNil()
	case TypePair:
		return taggedPair(f.addr)
	case TypeSymbol:
		return taggedSymbol(f.addr)
	case TypeInteger:
		t, ok := taggedNumber(f.number)
		if !ok {
			panic("FatPtr.tagged: number out of tagged range")
		}
		return t
	default:
		return taggedObject(f.addr)
	}
}

// tagForTypeID encodes an object address under the tag its type
// demands.
func tagForTypeID(id immix.TypeID, addr uintptr) TaggedPtr {
	switch id {
	case TypePair:
		return taggedPair(addr)
	case TypeSymbol:
		return taggedSymbol(addr)
	default:
		return taggedObject(addr)
	}
}
