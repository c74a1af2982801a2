package vm

import (
	"unsafe"

	"github.com/fernlang/fern/immix"
)

// Text is an immutable heap string: raw string components whose bytes
// live in a heap byte array. Unlike symbols, texts are ordinary
// collectable objects and two equal texts are distinct values.
type Text struct {
	addr   uintptr
	length uint32
}

func (Text) typeID() immix.TypeID { return TypeString }

// AllocText copies s onto the heap as a Text object.
func AllocText(v *MutatorView, s string) (ScopedPtr[Text], error) {
	var addr uintptr
	if len(s) > 0 {
		bytesAddr, err := v.allocArrayBytes(uintptr(len(s)))
		if err != nil {
			return ScopedPtr[Text]{}, err
		}
		copy(unsafe.Slice((*byte)(unsafe.Pointer(bytesAddr)), len(s)), s)
		addr = bytesAddr
	}
	return Alloc(v, Text{addr: addr, length: uint32(len(s))})
}

// AsStr returns the text's contents under a live view.
func (t *Text) AsStr(v *MutatorView) string {
	v.assertActive()
	if t.length == 0 {
		return ""
	}
	return unsafe.String((*byte)(unsafe.Pointer(t.addr)), t.length)
}
