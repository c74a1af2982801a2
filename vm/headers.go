package vm

import "github.com/fernlang/fern/immix"

// The closed set of heap object types. Values of these ids are written
// into object headers; OBJECT-tagged pointers consult them to recover
// the concrete type.
const (
	TypeNil immix.TypeID = iota
	TypePair
	TypeSymbol
	TypeInteger
	TypeString
	TypeArray
	TypeByteArray
	TypeDict
	TypeFunction
	TypePartial
	TypeUpvalue
	TypeCallFrame
	TypeByteCode
	TypeInstructionStream
	TypeList
	TypeArrayOpcode
	TypeArrayU16
	TypeThread
)

var typeNames = map[immix.TypeID]string{
	TypeNil:               "nil",
	TypePair:              "Pair",
	TypeSymbol:            "Symbol",
	TypeInteger:           "Integer",
	TypeString:            "String",
	TypeArray:             "Array",
	TypeByteArray:         "ByteArray",
	TypeDict:              "Dict",
	TypeFunction:          "Function",
	TypePartial:           "Partial",
	TypeUpvalue:           "Upvalue",
	TypeCallFrame:         "CallFrame",
	TypeByteCode:          "ByteCode",
	TypeInstructionStream: "InstructionStream",
	TypeList:              "List",
	TypeArrayOpcode:       "ArrayOpcode",
	TypeArrayU16:          "ArrayU16",
	TypeThread:            "Thread",
}

// TypeName returns a printable name for a type id.
func TypeName(id immix.TypeID) string {
	if name, ok := typeNames[id]; ok {
		return name
	}
	return "unknown"
}

// heapObject is implemented by every type that can live on the heap.
// The method supplies the header type tag at allocation time.
type heapObject interface {
	typeID() immix.TypeID
}
