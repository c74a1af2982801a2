package vm

import (
	"fmt"

	"github.com/fernlang/fern/immix"
)

// Register indexes into the current frame's 256-register window.
type Register = uint8

// LiteralID indexes into a function's literals pool.
type LiteralID = uint16

// UpvalueID indexes into a closure's environment list.
type UpvalueID = uint8

// JumpOffset is a signed instruction-count displacement.
type JumpOffset = int16

// jumpUnknown is the placeholder offset emitted for forward jumps
// before their target is known.
const jumpUnknown JumpOffset = 0x7FFF

// Opcode is one fixed-width 32-bit instruction: an 8-bit operator in
// the low byte, then either three 8-bit register operands or one 8-bit
// register and a 16-bit literal id / jump offset in the top half-word.
type Opcode uint32

// Operator numbers.
const (
	opNoOp uint8 = iota
	opReturn
	opLoadLiteral
	opIsNil
	opIsAtom
	opFirstOfPair
	opSecondOfPair
	opMakePair
	opIsIdentical
	opJump
	opJumpIfTrue
	opJumpIfNotTrue
	opLoadNil
	opLoadGlobal
	opStoreGlobal
	opCall
	opMakeClosure
	opLoadInteger
	opCopyRegister
	opAdd
	opSubtract
	opMultiply
	opDivideInteger
	opGetUpvalue
	opSetUpvalue
	opCloseUpvalues
)

var opNames = map[uint8]string{
	opNoOp:          "NOOP",
	opReturn:        "RETURN",
	opLoadLiteral:   "LOAD_LITERAL",
	opIsNil:         "IS_NIL",
	opIsAtom:        "IS_ATOM",
	opFirstOfPair:   "FIRST_OF_PAIR",
	opSecondOfPair:  "SECOND_OF_PAIR",
	opMakePair:      "MAKE_PAIR",
	opIsIdentical:   "IS_IDENTICAL",
	opJump:          "JUMP",
	opJumpIfTrue:    "JUMP_IF_TRUE",
	opJumpIfNotTrue: "JUMP_IF_NOT_TRUE",
	opLoadNil:       "LOAD_NIL",
	opLoadGlobal:    "LOAD_GLOBAL",
	opStoreGlobal:   "STORE_GLOBAL",
	opCall:          "CALL",
	opMakeClosure:   "MAKE_CLOSURE",
	opLoadInteger:   "LOAD_INTEGER",
	opCopyRegister:  "COPY_REGISTER",
	opAdd:           "ADD",
	opSubtract:      "SUBTRACT",
	opMultiply:      "MULTIPLY",
	opDivideInteger: "DIVIDE_INTEGER",
	opGetUpvalue:    "GET_UPVALUE",
	opSetUpvalue:    "SET_UPVALUE",
	opCloseUpvalues: "CLOSE_UPVALUES",
}

// Packing helpers.

func makeOp0(op uint8) Opcode {
	return Opcode(op)
}

func makeOp1(op uint8, a Register) Opcode {
	return Opcode(op) | Opcode(a)<<8
}

func makeOp3(op uint8, a, b, c Register) Opcode {
	return Opcode(op) | Opcode(a)<<8 | Opcode(b)<<16 | Opcode(c)<<24
}

func makeOpImm(op uint8, a Register, imm uint16) Opcode {
	return Opcode(op) | Opcode(a)<<8 | Opcode(imm)<<16
}

func (o Opcode) operator() uint8  { return uint8(o) }
func (o Opcode) regA() Register   { return Register(o >> 8) }
func (o Opcode) regB() Register   { return Register(o >> 16) }
func (o Opcode) regC() Register   { return Register(o >> 24) }
func (o Opcode) imm16() uint16    { return uint16(o >> 16) }
func (o Opcode) offset() JumpOffset {
	return JumpOffset(o >> 16)
}

// withOffset replaces the 16-bit offset field, preserving the
// operator and register byte.
func (o Opcode) withOffset(offset JumpOffset) Opcode {
	return o&0x0000FFFF | Opcode(uint16(offset))<<16
}

// Instruction constructors.

func OpNoOp() Opcode                          { return makeOp0(opNoOp) }
func OpReturn(reg Register) Opcode            { return makeOp1(opReturn, reg) }
func OpLoadNil(dest Register) Opcode          { return makeOp1(opLoadNil, dest) }
func OpLoadLiteral(dest Register, id LiteralID) Opcode {
	return makeOpImm(opLoadLiteral, dest, id)
}
func OpLoadInteger(dest Register, value int16) Opcode {
	return makeOpImm(opLoadInteger, dest, uint16(value))
}
func OpIsNil(dest, test Register) Opcode  { return makeOp3(opIsNil, dest, test, 0) }
func OpIsAtom(dest, test Register) Opcode { return makeOp3(opIsAtom, dest, test, 0) }
func OpFirstOfPair(dest, reg Register) Opcode {
	return makeOp3(opFirstOfPair, dest, reg, 0)
}
func OpSecondOfPair(dest, reg Register) Opcode {
	return makeOp3(opSecondOfPair, dest, reg, 0)
}
func OpMakePair(dest, reg1, reg2 Register) Opcode {
	return makeOp3(opMakePair, dest, reg1, reg2)
}
func OpIsIdentical(dest, test1, test2 Register) Opcode {
	return makeOp3(opIsIdentical, dest, test1, test2)
}
func OpJump(offset JumpOffset) Opcode { return makeOpImm(opJump, 0, uint16(offset)) }
func OpJumpIfTrue(test Register, offset JumpOffset) Opcode {
	return makeOpImm(opJumpIfTrue, test, uint16(offset))
}
func OpJumpIfNotTrue(test Register, offset JumpOffset) Opcode {
	return makeOpImm(opJumpIfNotTrue, test, uint16(offset))
}
func OpLoadGlobal(dest, name Register) Opcode {
	return makeOp3(opLoadGlobal, dest, name, 0)
}
func OpStoreGlobal(src, name Register) Opcode {
	return makeOp3(opStoreGlobal, src, name, 0)
}
func OpCall(function, dest Register, argCount uint8) Opcode {
	return makeOp3(opCall, function, dest, argCount)
}
func OpMakeClosure(dest, function Register) Opcode {
	return makeOp3(opMakeClosure, dest, function, 0)
}
func OpCopyRegister(dest, src Register) Opcode {
	return makeOp3(opCopyRegister, dest, src, 0)
}
func OpAdd(dest, reg1, reg2 Register) Opcode { return makeOp3(opAdd, dest, reg1, reg2) }
func OpSubtract(dest, left, right Register) Opcode {
	return makeOp3(opSubtract, dest, left, right)
}
func OpMultiply(dest, reg1, reg2 Register) Opcode {
	return makeOp3(opMultiply, dest, reg1, reg2)
}
func OpDivideInteger(dest, num, denom Register) Opcode {
	return makeOp3(opDivideInteger, dest, num, denom)
}
func OpGetUpvalue(dest Register, src UpvalueID) Opcode {
	return makeOp3(opGetUpvalue, dest, src, 0)
}
func OpSetUpvalue(dest UpvalueID, src Register) Opcode {
	return makeOp3(opSetUpvalue, dest, src, 0)
}
func OpCloseUpvalues(first Register, count uint8) Opcode {
	return makeOp3(opCloseUpvalues, first, count, 0)
}

// String disassembles a single instruction.
func (o Opcode) String() string {
	name, ok := opNames[o.operator()]
	if !ok {
		return fmt.Sprintf("UNKNOWN_%02X", o.operator())
	}

	switch o.operator() {
	case opNoOp:
		return name
	case opReturn, opLoadNil:
		return fmt.Sprintf("%s r%d", name, o.regA())
	case opLoadLiteral:
		return fmt.Sprintf("%s r%d lit=%d", name, o.regA(), o.imm16())
	case opLoadInteger:
		return fmt.Sprintf("%s r%d %d", name, o.regA(), int16(o.imm16()))
	case opJump:
		return fmt.Sprintf("%s %+d", name, o.offset())
	case opJumpIfTrue, opJumpIfNotTrue:
		return fmt.Sprintf("%s r%d %+d", name, o.regA(), o.offset())
	case opCall:
		return fmt.Sprintf("%s fn=r%d dest=r%d argc=%d", name, o.regA(), o.regB(), o.regC())
	case opCloseUpvalues:
		return fmt.Sprintf("%s first=r%d count=%d", name, o.regA(), o.regB())
	case opGetUpvalue:
		return fmt.Sprintf("%s r%d upval=%d", name, o.regA(), o.regB())
	case opSetUpvalue:
		return fmt.Sprintf("%s upval=%d r%d", name, o.regA(), o.regB())
	case opMakePair, opIsIdentical, opAdd, opSubtract, opMultiply, opDivideInteger:
		return fmt.Sprintf("%s r%d r%d r%d", name, o.regA(), o.regB(), o.regC())
	default:
		return fmt.Sprintf("%s r%d r%d", name, o.regA(), o.regB())
	}
}

// OpcodeFromBits validates and wraps a raw 32-bit instruction word,
// for deserializers rebuilding bytecode from storage.
func OpcodeFromBits(bits uint32) (Opcode, error) {
	op := Opcode(bits)
	if _, ok := opNames[op.operator()]; !ok {
		return 0, errEvalf("unknown operator %#02x in instruction word", op.operator())
	}
	return op, nil
}

// Bits returns the raw instruction word.
func (o Opcode) Bits() uint32 { return uint32(o) }

// ByteCode is a function's instruction sequence plus the literals too
// wide to inline in an instruction word.
type ByteCode struct {
	code     Array[Opcode]
	literals List
}

func (ByteCode) typeID() immix.TypeID { return TypeByteCode }

// AllocByteCode places a blank ByteCode on the heap.
func AllocByteCode(v *MutatorView) (ScopedPtr[ByteCode], error) {
	return Alloc(v, ByteCode{})
}

// Push appends an instruction.
func (bc *ByteCode) Push(v *MutatorView, op Opcode) error {
	return bc.code.Push(v, op)
}

// PushLiteral appends a value to the literals pool, returning its id.
func (bc *ByteCode) PushLiteral(v *MutatorView, literal TaggedScopedPtr) (LiteralID, error) {
	id := bc.literals.Length()
	if id > 0xFFFF {
		return 0, errEval("too many literals in function")
	}
	if err := ListPush(v, &bc.literals, literal); err != nil {
		return 0, err
	}
	return LiteralID(id), nil
}

// PushLoadLiteral appends a LOAD_LITERAL of the given pool entry.
func (bc *ByteCode) PushLoadLiteral(v *MutatorView, dest Register, id LiteralID) error {
	return bc.Push(v, OpLoadLiteral(dest, id))
}

// UpdateJumpOffset patches the offset of an already-emitted jump, for
// forward jumps whose target is only discovered later.
func (bc *ByteCode) UpdateJumpOffset(v *MutatorView, instruction uint32, offset JumpOffset) error {
	op, err := bc.code.Get(v, instruction)
	if err != nil {
		return err
	}
	switch op.operator() {
	case opJump, opJumpIfTrue, opJumpIfNotTrue:
		return bc.code.Set(v, instruction, op.withOffset(offset))
	default:
		return errEval("attempt to patch a non-jump instruction")
	}
}

// Literal returns a pool entry.
func (bc *ByteCode) Literal(v *MutatorView, id LiteralID) (TaggedScopedPtr, error) {
	return ListGet(v, &bc.literals, uint32(id))
}

// LastInstruction returns the index of the most recently pushed
// instruction.
func (bc *ByteCode) LastInstruction() uint32 {
	return bc.code.Length() - 1
}

// NextInstruction returns the index the next push will occupy.
func (bc *ByteCode) NextInstruction() uint32 {
	return bc.code.Length()
}

// CodeBits copies out the raw instruction words, for serializers.
func (bc *ByteCode) CodeBits(v *MutatorView) ([]uint32, error) {
	var bits []uint32
	err := bc.code.ReadSlice(v, func(code []Opcode) error {
		bits = make([]uint32, len(code))
		for i, op := range code {
			bits[i] = op.Bits()
		}
		return nil
	})
	return bits, err
}

// LiteralCount returns the size of the literals pool.
func (bc *ByteCode) LiteralCount() uint32 {
	return bc.literals.Length()
}

// Disassemble renders the instruction sequence for inspection.
func (bc *ByteCode) Disassemble(v *MutatorView) (string, error) {
	out := ""
	err := bc.code.ReadSlice(v, func(code []Opcode) error {
		for i, op := range code {
			if i > 0 {
				out += "\n"
			}
			out += fmt.Sprintf("%04d  %s", i, op)
		}
		return nil
	})
	return out, err
}

// InstructionStream is a cursor over the bytecode of the executing
// frame. The VM keeps the invariant that the stream always points at
// the same bytecode as the top call frame.
type InstructionStream struct {
	code CellPtr[ByteCode]
	ip   uint32
}

func (InstructionStream) typeID() immix.TypeID { return TypeInstructionStream }

// AllocInstructionStream places a stream over the given bytecode on
// the heap.
func AllocInstructionStream(v *MutatorView, code ScopedPtr[ByteCode]) (ScopedPtr[InstructionStream], error) {
	return Alloc(v, InstructionStream{
		code: NewCellPtr(code),
	})
}

// SwitchFrame repoints the stream at a frame's bytecode and resumes at
// ip.
func (is *InstructionStream) SwitchFrame(code ScopedPtr[ByteCode], ip uint32) {
	is.code.Set(code)
	is.ip = ip
}

// GetNextOpcode fetches the instruction under the cursor and advances.
func (is *InstructionStream) GetNextOpcode(v *MutatorView) (Opcode, error) {
	code := is.code.Get(v)
	op, err := code.Get().code.Get(v, is.ip)
	if err != nil {
		return 0, err
	}
	is.ip++
	return op, nil
}

// GetLiteral reads from the current bytecode's literals pool.
func (is *InstructionStream) GetLiteral(v *MutatorView, id LiteralID) (TaggedScopedPtr, error) {
	return is.code.Get(v).Get().Literal(v, id)
}

// Jump displaces the cursor relative to the next instruction.
func (is *InstructionStream) Jump(offset JumpOffset) {
	is.ip = uint32(int64(is.ip) + int64(offset))
}

// NextIP returns the index of the next instruction to execute.
func (is *InstructionStream) NextIP() uint32 {
	return is.ip
}
