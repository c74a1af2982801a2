package vm

import "github.com/fernlang/fern/immix"

// Register window layout: register 0 receives the return value,
// register 1 carries the closure environment, arguments start at 2.
const (
	ReturnReg   Register = 0
	EnvReg      Register = 1
	FirstArgReg Register = 2

	// windowSize is the register window each function sees.
	windowSize = 256
)

// defaultEvalBudget is the instruction count executed per eval slice.
const defaultEvalBudget = 1024

// CallFrame records what a call must restore on return: the function,
// the instruction index to resume at, and the absolute stack index
// where the function's register window begins.
type CallFrame struct {
	function CellPtr[Function]
	ip       uint32
	base     uint32
}

// CallFrameList is the call stack. It lives apart from the register
// stack, which keeps the stack math simple.
type CallFrameList = Array[CallFrame]

// Upvalue is a handle to a variable captured by a closure. While the
// variable's frame is live the upvalue redirects through its absolute
// stack location; when the frame exits, CloseUpvalues copies the value
// in and flips closed. The location is an index rather than a pointer
// because the register stack's backing store may be reallocated.
type Upvalue struct {
	value    TaggedCellPtr
	closed   bool
	location uint32
}

func (Upvalue) typeID() immix.TypeID { return TypeUpvalue }

// allocUpvalue places an open upvalue for an absolute stack location.
func allocUpvalue(v *MutatorView, location uint32) (ScopedPtr[Upvalue], error) {
	return Alloc(v, Upvalue{location: location})
}

// get dereferences the upvalue.
func (u *Upvalue) get(v *MutatorView, stack *List) (TaggedPtr, error) {
	if u.closed {
		return u.value.GetPtr(), nil
	}
	cell, err := stack.Get(v, u.location)
	if err != nil {
		return 0, err
	}
	return cell.GetPtr(), nil
}

// set writes through the upvalue, to the captured slot or the stack
// depending on closedness.
func (u *Upvalue) set(v *MutatorView, stack *List, ptr TaggedPtr) error {
	if u.closed {
		u.value.SetToPtr(ptr)
		return nil
	}
	return stack.Set(v, u.location, TaggedCellFromPtr(ptr))
}

// close copies the stack slot into the upvalue. Closing an already
// closed upvalue is a no-op.
func (u *Upvalue) close(v *MutatorView, stack *List) error {
	if u.closed {
		return nil
	}
	cell, err := stack.Get(v, u.location)
	if err != nil {
		return err
	}
	u.value.SetToPtr(cell.GetPtr())
	u.closed = true
	return nil
}

// IsClosed reports whether the upvalue has been closed.
func (u *Upvalue) IsClosed() bool { return u.closed }

// Thread is an execution thread: the register stack, the call frame
// stack, the open-upvalue side table, thread-local globals and the
// instruction cursor.
type Thread struct {
	frames    CellPtr[CallFrameList]
	stack     CellPtr[List]
	stackBase uint32
	upvalues  CellPtr[Dict]
	globals   CellPtr[Dict]
	instr     CellPtr[InstructionStream]
}

func (Thread) typeID() immix.TypeID { return TypeThread }

// AllocThread places a thread with a minimal register stack on the
// heap, not yet associated with any bytecode.
func AllocThread(v *MutatorView) (ScopedPtr[Thread], error) {
	frames, err := AllocArrayWithCapacity[CallFrame](v, 16)
	if err != nil {
		return ScopedPtr[Thread]{}, err
	}

	stack, err := AllocListWithCapacity(v, windowSize)
	if err != nil {
		return ScopedPtr[Thread]{}, err
	}
	if err := stack.Get().Fill(v, windowSize, TaggedCellPtr{}); err != nil {
		return ScopedPtr[Thread]{}, err
	}

	upvalues, err := AllocDict(v)
	if err != nil {
		return ScopedPtr[Thread]{}, err
	}
	globals, err := AllocDict(v)
	if err != nil {
		return ScopedPtr[Thread]{}, err
	}

	blank, err := AllocByteCode(v)
	if err != nil {
		return ScopedPtr[Thread]{}, err
	}
	instr, err := AllocInstructionStream(v, blank)
	if err != nil {
		return ScopedPtr[Thread]{}, err
	}

	return Alloc(v, Thread{
		frames:   NewCellPtr(frames),
		stack:    NewCellPtr(stack),
		upvalues: NewCellPtr(upvalues),
		globals:  NewCellPtr(globals),
		instr:    NewCellPtr(instr),
	})
}

// Globals returns the thread's global bindings.
func (t *Thread) Globals(v *MutatorView) *Dict {
	return t.globals.Get(v).Get()
}

// windowGet reads a register of the current frame's window.
func windowGet(v *MutatorView, stack *List, base uint32, reg Register) (TaggedPtr, error) {
	cell, err := stack.Get(v, base+uint32(reg))
	if err != nil {
		return 0, err
	}
	return cell.GetPtr(), nil
}

// windowSet writes a register of the current frame's window.
func windowSet(v *MutatorView, stack *List, base uint32, reg Register, ptr TaggedPtr) error {
	return stack.Set(v, base+uint32(reg), TaggedCellFromPtr(ptr))
}

// upvalueLookup finds the open Upvalue anchored at an absolute stack
// location, if any.
func (t *Thread) upvalueLookup(v *MutatorView, location uint32) (TaggedScopedPtr, *Upvalue, bool, error) {
	locKey, err := v.Number(int(location))
	if err != nil {
		return TaggedScopedPtr{}, nil, false, err
	}
	upvalues := t.upvalues.Get(v).Get()
	entry, ok, err := upvalues.Lookup(v, locKey)
	if err != nil || !ok {
		return locKey, nil, false, err
	}
	return locKey, entry.Upvalue(), true, nil
}

// upvalueLookupOrAlloc finds or creates the Upvalue for a location,
// anchoring new ones in the side table so later captures of the same
// variable share identity.
func (t *Thread) upvalueLookupOrAlloc(v *MutatorView, location uint32) (*Upvalue, error) {
	locKey, existing, ok, err := t.upvalueLookup(v, location)
	if err != nil {
		return nil, err
	}
	if ok {
		return existing, nil
	}

	fresh, err := allocUpvalue(v, location)
	if err != nil {
		return nil, err
	}
	upvalues := t.upvalues.Get(v).Get()
	if err := upvalues.Assoc(v, locKey, AsTagged(v, fresh)); err != nil {
		return nil, err
	}
	return fresh.Get(), nil
}

// envUpvalueLookup resolves an upvalue id through the current closure
// environment list.
func envUpvalueLookup(v *MutatorView, env TaggedPtr, id UpvalueID) (*Upvalue, error) {
	scoped := TaggedScopedPtr{ptr: env}
	if scoped.IsNil() || scoped.TypeID() != TypeList {
		return nil, errEval("no closure environment in this frame")
	}
	entry, err := ListGet(v, scoped.List(), uint32(id))
	if err != nil {
		return nil, err
	}
	return entry.Upvalue(), nil
}

// evalNextInstr executes one instruction. done is true when the
// outermost frame returned, with result carrying the returned value.
func (t *Thread) evalNextInstr(v *MutatorView) (done bool, result TaggedScopedPtr, err error) {
	frames := t.frames.Get(v).Get()
	stack := t.stack.Get(v).Get()
	globals := t.globals.Get(v).Get()
	instr := t.instr.Get(v).Get()
	base := t.stackBase

	op, err := instr.GetNextOpcode(v)
	if err != nil {
		return false, TaggedScopedPtr{}, err
	}

	switch op.operator() {
	case opNoOp:
		// do nothing

	case opReturn:
		// propagate the value in the named register through slot 0,
		// pop the frame and restore the caller's world
		value, err := windowGet(v, stack, base, op.regA())
		if err != nil {
			return false, TaggedScopedPtr{}, err
		}
		if err := windowSet(v, stack, base, ReturnReg, value); err != nil {
			return false, TaggedScopedPtr{}, err
		}
		if _, err := frames.Pop(v); err != nil {
			return false, TaggedScopedPtr{}, err
		}

		if frames.Length() == 0 {
			return true, TaggedScopedPtr{ptr: value}, nil
		}

		frame, err := frames.Top(v)
		if err != nil {
			return false, TaggedScopedPtr{}, err
		}
		t.stackBase = frame.base
		if err := stack.Truncate(v, frame.base+windowSize); err != nil {
			return false, TaggedScopedPtr{}, err
		}
		instr.SwitchFrame(frame.function.Get(v).Get().Code(v), frame.ip)

	case opLoadLiteral:
		literal, err := instr.GetLiteral(v, op.imm16())
		if err != nil {
			return false, TaggedScopedPtr{}, err
		}
		if err := windowSet(v, stack, base, op.regA(), literal.ptr); err != nil {
			return false, TaggedScopedPtr{}, err
		}

	case opLoadNil:
		if err := windowSet(v, stack, base, op.regA(), TaggedNil()); err != nil {
			return false, TaggedScopedPtr{}, err
		}

	case opLoadInteger:
		value, ok := taggedNumber(int(int16(op.imm16())))
		if !ok {
			panic("vm: inline integer outside tagged range")
		}
		if err := windowSet(v, stack, base, op.regA(), value); err != nil {
			return false, TaggedScopedPtr{}, err
		}

	case opIsNil:
		test, err := windowGet(v, stack, base, op.regB())
		if err != nil {
			return false, TaggedScopedPtr{}, err
		}
		if err := t.setBoolResult(v, stack, base, op.regA(), test.IsNil()); err != nil {
			return false, TaggedScopedPtr{}, err
		}

	case opIsAtom:
		test, err := windowGet(v, stack, base, op.regB())
		if err != nil {
			return false, TaggedScopedPtr{}, err
		}
		atom := !test.IsNil() && !test.IsPair()
		if err := t.setBoolResult(v, stack, base, op.regA(), atom); err != nil {
			return false, TaggedScopedPtr{}, err
		}

	case opFirstOfPair, opSecondOfPair:
		value, err := windowGet(v, stack, base, op.regB())
		if err != nil {
			return false, TaggedScopedPtr{}, err
		}
		var out TaggedPtr
		switch {
		case value.IsPair():
			pair := (TaggedScopedPtr{ptr: value}).Pair()
			if op.operator() == opFirstOfPair {
				out = pair.First.GetPtr()
			} else {
				out = pair.Second.GetPtr()
			}
		case value.IsNil():
			out = TaggedNil()
		default:
			return false, TaggedScopedPtr{}, newError(KindTypeMismatch, "argument is not a list")
		}
		if err := windowSet(v, stack, base, op.regA(), out); err != nil {
			return false, TaggedScopedPtr{}, err
		}

	case opMakePair:
		first, err := windowGet(v, stack, base, op.regB())
		if err != nil {
			return false, TaggedScopedPtr{}, err
		}
		second, err := windowGet(v, stack, base, op.regC())
		if err != nil {
			return false, TaggedScopedPtr{}, err
		}
		pair, err := AllocPair(v, TaggedScopedPtr{ptr: first}, TaggedScopedPtr{ptr: second})
		if err != nil {
			return false, TaggedScopedPtr{}, err
		}
		if err := windowSet(v, stack, base, op.regA(), pair.ptr); err != nil {
			return false, TaggedScopedPtr{}, err
		}

	case opIsIdentical:
		test1, err := windowGet(v, stack, base, op.regB())
		if err != nil {
			return false, TaggedScopedPtr{}, err
		}
		test2, err := windowGet(v, stack, base, op.regC())
		if err != nil {
			return false, TaggedScopedPtr{}, err
		}
		if err := t.setBoolResult(v, stack, base, op.regA(), test1 == test2); err != nil {
			return false, TaggedScopedPtr{}, err
		}

	case opJump:
		instr.Jump(op.offset())

	case opJumpIfTrue, opJumpIfNotTrue:
		test, err := windowGet(v, stack, base, op.regA())
		if err != nil {
			return false, TaggedScopedPtr{}, err
		}
		isTrue := test == v.LookupSym("true").ptr
		if isTrue == (op.operator() == opJumpIfTrue) {
			instr.Jump(op.offset())
		}

	case opLoadGlobal:
		name, err := windowGet(v, stack, base, op.regB())
		if err != nil {
			return false, TaggedScopedPtr{}, err
		}
		if !name.IsSymbol() {
			return false, TaggedScopedPtr{}, newError(KindTypeMismatch, "global names must be symbols")
		}
		nameVal := TaggedScopedPtr{ptr: name}
		binding, ok, err := globals.Lookup(v, nameVal)
		if err != nil {
			return false, TaggedScopedPtr{}, err
		}
		if !ok {
			return false, TaggedScopedPtr{}, newError(KindUnboundName,
				nameVal.Symbol().AsStr(v)+" is not bound to a value")
		}
		if err := windowSet(v, stack, base, op.regA(), binding.ptr); err != nil {
			return false, TaggedScopedPtr{}, err
		}

	case opStoreGlobal:
		name, err := windowGet(v, stack, base, op.regB())
		if err != nil {
			return false, TaggedScopedPtr{}, err
		}
		if !name.IsSymbol() {
			return false, TaggedScopedPtr{}, newError(KindTypeMismatch, "global names must be symbols")
		}
		src, err := windowGet(v, stack, base, op.regA())
		if err != nil {
			return false, TaggedScopedPtr{}, err
		}
		if err := globals.Assoc(v, TaggedScopedPtr{ptr: name}, TaggedScopedPtr{ptr: src}); err != nil {
			return false, TaggedScopedPtr{}, err
		}

	case opCopyRegister:
		src, err := windowGet(v, stack, base, op.regB())
		if err != nil {
			return false, TaggedScopedPtr{}, err
		}
		if err := windowSet(v, stack, base, op.regA(), src); err != nil {
			return false, TaggedScopedPtr{}, err
		}

	case opAdd, opSubtract, opMultiply, opDivideInteger:
		if err := t.arithmeticOp(v, stack, base, op); err != nil {
			return false, TaggedScopedPtr{}, err
		}

	case opGetUpvalue:
		env, err := windowGet(v, stack, base, EnvReg)
		if err != nil {
			return false, TaggedScopedPtr{}, err
		}
		upvalue, err := envUpvalueLookup(v, env, op.regB())
		if err != nil {
			return false, TaggedScopedPtr{}, err
		}
		value, err := upvalue.get(v, stack)
		if err != nil {
			return false, TaggedScopedPtr{}, err
		}
		if err := windowSet(v, stack, base, op.regA(), value); err != nil {
			return false, TaggedScopedPtr{}, err
		}

	case opSetUpvalue:
		env, err := windowGet(v, stack, base, EnvReg)
		if err != nil {
			return false, TaggedScopedPtr{}, err
		}
		upvalue, err := envUpvalueLookup(v, env, op.regA())
		if err != nil {
			return false, TaggedScopedPtr{}, err
		}
		src, err := windowGet(v, stack, base, op.regB())
		if err != nil {
			return false, TaggedScopedPtr{}, err
		}
		if err := upvalue.set(v, stack, src); err != nil {
			return false, TaggedScopedPtr{}, err
		}

	case opCloseUpvalues:
		first := op.regA()
		count := op.regB()
		for i := uint32(0); i < uint32(count); i++ {
			reg := uint32(first) + i
			// the return and environment slots cannot be closed over
			if reg < uint32(FirstArgReg) {
				continue
			}
			if err := t.closeUpvalueAt(v, stack, base+reg); err != nil {
				return false, TaggedScopedPtr{}, err
			}
		}

	case opCall:
		if err := t.callOp(v, frames, stack, instr, op); err != nil {
			return false, TaggedScopedPtr{}, err
		}

	case opMakeClosure:
		if err := t.makeClosureOp(v, frames, stack, op); err != nil {
			return false, TaggedScopedPtr{}, err
		}

	default:
		panic("vm: unknown opcode")
	}

	return false, TaggedScopedPtr{}, nil
}

// setBoolResult writes the symbol "true" or nil, the VM's boolean
// convention.
func (t *Thread) setBoolResult(v *MutatorView, stack *List, base uint32, dest Register, b bool) error {
	out := TaggedNil()
	if b {
		out = v.LookupSym("true").ptr
	}
	return windowSet(v, stack, base, dest, out)
}

// closeUpvalueAt closes the upvalue anchored at an absolute stack
// location, if one exists, and unanchors it from the side table.
func (t *Thread) closeUpvalueAt(v *MutatorView, stack *List, location uint32) error {
	locKey, upvalue, ok, err := t.upvalueLookup(v, location)
	if err != nil || !ok {
		return err
	}
	if err := upvalue.close(v, stack); err != nil {
		return err
	}
	return t.upvalues.Get(v).Get().Dissoc(v, locKey)
}

// arithmeticOp executes the integer binary operators with overflow
// checking against the tagged integer range.
func (t *Thread) arithmeticOp(v *MutatorView, stack *List, base uint32, op Opcode) error {
	left, err := windowGet(v, stack, base, op.regB())
	if err != nil {
		return err
	}
	right, err := windowGet(v, stack, base, op.regC())
	if err != nil {
		return err
	}
	if !left.IsNumber() || !right.IsNumber() {
		return newError(KindTypeMismatch, "arithmetic on non-integer operands")
	}

	a, b := left.Number(), right.Number()
	var result int
	switch op.operator() {
	case opAdd:
		result = a + b
		if (b > 0 && result < a) || (b < 0 && result > a) {
			return newError(KindArithmeticOverflow, "integer addition overflow")
		}
	case opSubtract:
		result = a - b
		if (b < 0 && result < a) || (b > 0 && result > a) {
			return newError(KindArithmeticOverflow, "integer subtraction overflow")
		}
	case opMultiply:
		result = a * b
		if a != 0 && (result/a != b || (a == -1 && b == MinTaggedNumber)) {
			return newError(KindArithmeticOverflow, "integer multiplication overflow")
		}
	case opDivideInteger:
		if b == 0 {
			return newError(KindArithmeticOverflow, "integer division by zero")
		}
		result = a / b
	}

	value, ok := taggedNumber(result)
	if !ok {
		return newError(KindArithmeticOverflow, "result outside tagged integer range")
	}
	return windowSet(v, stack, base, op.regA(), value)
}

// callOp implements Call: activate a Function or Partial, or bake a
// new Partial when too few arguments were supplied.
func (t *Thread) callOp(v *MutatorView, frames *CallFrameList, stack *List, instr *InstructionStream, op Opcode) error {
	funcReg := op.regA()
	dest := op.regB()
	argCount := op.regC()
	base := t.stackBase

	binding, err := windowGet(v, stack, base, funcReg)
	if err != nil {
		return err
	}
	bindingVal := TaggedScopedPtr{ptr: binding}

	switch bindingVal.TypeID() {
	case TypeFunction:
		f := bindingVal.Function()
		arity := f.Arity()

		if argCount < arity {
			// too few args: bake a Partial instead of entering
			cells, err := t.readArgCells(v, stack, base, dest, argCount)
			if err != nil {
				return err
			}
			partial, err := AllocPartial(v, scopedOf(f), v.Nil(), cells)
			if err != nil {
				return err
			}
			return windowSet(v, stack, base, dest, AsTagged(v, partial).ptr)
		}
		if argCount > arity {
			return newError(KindArityMismatch,
				"function "+f.Name(v)+" applied to too many arguments")
		}
		return t.newCallFrame(v, frames, stack, instr, scopedOf(f), dest)

	case TypePartial:
		p := bindingVal.Partial()
		arity := p.Arity()

		if argCount == 0 && arity > 0 {
			// no args supplied: the partial is unchanged
			return windowSet(v, stack, base, dest, binding)
		}
		if argCount < arity {
			cells, err := t.readArgCells(v, stack, base, dest, argCount)
			if err != nil {
				return err
			}
			clone, err := AllocPartialClone(v, scopedOf(p), cells)
			if err != nil {
				return err
			}
			return windowSet(v, stack, base, dest, AsTagged(v, clone).ptr)
		}
		if argCount > arity {
			return newError(KindArityMismatch,
				"partial "+p.Function(v).Get().Name(v)+" applied to too many arguments")
		}

		used := p.Used()
		if int(dest)+int(FirstArgReg)+int(used)+int(argCount) > windowSize {
			return errEval("call escapes the register window")
		}

		// the callee's env slot is the partial's environment
		if err := windowSet(v, stack, base, dest+EnvReg, p.ClosureEnv()); err != nil {
			return err
		}

		// shunt the call's own arguments up to make room for the
		// partially applied ones
		fromReg := uint32(dest) + uint32(FirstArgReg)
		toReg := fromReg + uint32(used)
		for i := int(argCount) - 1; i >= 0; i-- {
			cell, err := stack.Get(v, base+fromReg+uint32(i))
			if err != nil {
				return err
			}
			if err := stack.Set(v, base+toReg+uint32(i), cell); err != nil {
				return err
			}
		}

		// then lay the partial's accumulated arguments below them
		args := p.Args(v).Get()
		var cells []TaggedCellPtr
		err := args.ReadSlice(v, func(items []TaggedCellPtr) error {
			cells = append(cells[:0], items...)
			return nil
		})
		if err != nil {
			return err
		}
		for i, cell := range cells {
			if err := stack.Set(v, base+fromReg+uint32(i), cell); err != nil {
				return err
			}
		}

		return t.newCallFrame(v, frames, stack, instr, p.Function(v), dest)

	default:
		return newError(KindNotCallable, "type "+TypeName(bindingVal.TypeID())+" is not callable")
	}
}

// readArgCells copies the argument registers of a call site.
func (t *Thread) readArgCells(v *MutatorView, stack *List, base uint32, dest Register, argCount uint8) ([]TaggedCellPtr, error) {
	cells := make([]TaggedCellPtr, 0, argCount)
	start := base + uint32(dest) + uint32(FirstArgReg)
	for i := uint32(0); i < uint32(argCount); i++ {
		cell, err := stack.Get(v, start+i)
		if err != nil {
			return nil, err
		}
		cells = append(cells, cell)
	}
	return cells, nil
}

// newCallFrame pushes a frame whose window is based at the call's
// result slot, grows the register stack under it and redirects the
// instruction stream.
func (t *Thread) newCallFrame(v *MutatorView, frames *CallFrameList, stack *List, instr *InstructionStream, f ScopedPtr[Function], dest Register) error {
	// save the resume point in the calling frame
	returnIP := instr.NextIP()
	err := frames.AccessSlice(v, func(fs []CallFrame) error {
		if len(fs) == 0 {
			panic("vm: call with no active frame")
		}
		fs[len(fs)-1].ip = returnIP
		return nil
	})
	if err != nil {
		return err
	}

	newBase := t.stackBase + uint32(dest)
	if err := frames.Push(v, CallFrame{
		function: NewCellPtr(f),
		ip:       0,
		base:     newBase,
	}); err != nil {
		return err
	}

	// the argument registers are already in place relative to the new
	// base; make sure the full window exists above them
	if err := stack.Fill(v, newBase+windowSize, TaggedCellPtr{}); err != nil {
		return err
	}

	t.stackBase = newBase
	instr.SwitchFrame(f.Get().Code(v), 0)
	return nil
}

// makeClosureOp builds a Partial with an upvalue environment for a
// function that refers to nonlocal variables.
func (t *Thread) makeClosureOp(v *MutatorView, frames *CallFrameList, stack *List, op Opcode) error {
	dest := op.regA()
	funcReg := op.regB()
	base := t.stackBase

	binding, err := windowGet(v, stack, base, funcReg)
	if err != nil {
		return err
	}
	bindingVal := TaggedScopedPtr{ptr: binding}
	if bindingVal.TypeID() != TypeFunction {
		return newError(KindTypeMismatch, "cannot make a closure from a non-function")
	}
	f := bindingVal.Function()

	nonlocals := f.Nonlocals(v)
	env, err := AllocListWithCapacity(v, nonlocals.Length())
	if err != nil {
		return err
	}

	var compounds []uint16
	err = nonlocals.ReadSlice(v, func(items []uint16) error {
		compounds = append(compounds[:0], items...)
		return nil
	})
	if err != nil {
		return err
	}

	for _, compound := range compounds {
		// nonlocal descriptors pack (frame offset << 8 | register)
		frameOffset := uint32(compound >> 8)
		windowOffset := uint32(compound & 0xFF)

		frame, err := frames.Get(v, frames.Length()-frameOffset)
		if err != nil {
			return err
		}
		location := frame.base + windowOffset

		upvalue, err := t.upvalueLookupOrAlloc(v, location)
		if err != nil {
			return err
		}
		if err := ListPush(v, env.Get(), AsTagged(v, scopedOf(upvalue))); err != nil {
			return err
		}
	}

	partial, err := AllocPartial(v, scopedOf(f), AsTagged(v, env), nil)
	if err != nil {
		return err
	}
	return windowSet(v, stack, base, dest, AsTagged(v, partial).ptr)
}

// evalSlice executes up to maxInstr instructions.
func (t *Thread) evalSlice(v *MutatorView, maxInstr uint32) (done bool, result TaggedScopedPtr, err error) {
	for i := uint32(0); i < maxInstr; i++ {
		done, result, err = t.evalNextInstr(v)
		if err != nil || done {
			return done, result, err
		}
	}
	return false, TaggedScopedPtr{}, nil
}

// QuickEval runs a zero-argument function to completion and returns
// its result, with the default per-slice instruction budget.
func (t *Thread) QuickEval(v *MutatorView, function ScopedPtr[Function]) (TaggedScopedPtr, error) {
	return t.EvalWithBudget(v, function, defaultEvalBudget)
}

// EvalWithBudget runs a zero-argument function to completion,
// executing at most budget instructions per slice. An embedder that
// wants preemption points can drive evalSlice directly.
func (t *Thread) EvalWithBudget(v *MutatorView, function ScopedPtr[Function], budget uint32) (TaggedScopedPtr, error) {
	frames := t.frames.Get(v).Get()
	stack := t.stack.Get(v).Get()
	instr := t.instr.Get(v).Get()

	if err := frames.Push(v, CallFrame{
		function: NewCellPtr(function),
		ip:       0,
		base:     0,
	}); err != nil {
		return TaggedScopedPtr{}, err
	}
	t.stackBase = 0
	if err := stack.Fill(v, windowSize, TaggedCellPtr{}); err != nil {
		return TaggedScopedPtr{}, err
	}
	instr.SwitchFrame(function.Get().Code(v), 0)

	for {
		done, result, err := t.evalSlice(v, budget)
		if err != nil {
			t.unwind(v, frames)
			return TaggedScopedPtr{}, err
		}
		if done {
			return result, nil
		}
	}
}

// unwind clears the call stack after an error, restoring the thread
// to a consistent state for the next evaluation.
func (t *Thread) unwind(v *MutatorView, frames *CallFrameList) {
	_ = frames.Clear(v)
	t.stackBase = 0
}
