package vm

import (
	"hash/fnv"
	"unsafe"

	"github.com/fernlang/fern/immix"
)

// Symbol is an interned name: the raw components of a string whose
// bytes live in the symbol arena. Two symbols with the same name are
// the same object, so symbol equality is pointer equality.
type Symbol struct {
	nameAddr uintptr
	nameLen  uint32
}

func (Symbol) typeID() immix.TypeID { return TypeSymbol }

// asStr reconstructs the name. The backing bytes live as long as the
// interning map, which outlives any mutator scope, so this carries no
// scope parameter.
func (s *Symbol) asStr() string {
	if s.nameLen == 0 {
		return ""
	}
	return unsafe.String((*byte)(unsafe.Pointer(s.nameAddr)), s.nameLen)
}

// AsStr returns the symbol's name under a live view.
func (s *Symbol) AsStr(v *MutatorView) string {
	v.assertActive()
	return s.asStr()
}

// hash returns the FNV-1a hash of the symbol's name bytes.
func (s *Symbol) hash() uint64 {
	h := fnv.New64a()
	h.Write(unsafe.Slice((*byte)(unsafe.Pointer(s.nameAddr)), s.nameLen))
	return h.Sum64()
}
