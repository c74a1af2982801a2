package vm

import "github.com/fernlang/fern/immix"

// ArrayU16 carries a function's packed nonlocal descriptors.
type ArrayU16 = Array[uint16]

// Function is a compiled function: a name (or nil for lambdas), the
// parameter names kept for introspection, the arity, the bytecode,
// and the nonlocal reference list used to build closures. Each
// nonlocal descriptor packs a relative frame depth in the high byte
// and a register index in the low byte.
type Function struct {
	name         TaggedCellPtr
	arity        uint8
	code         CellPtr[ByteCode]
	paramNames   CellPtr[List]
	nonlocalRefs TaggedCellPtr
}

func (Function) typeID() immix.TypeID { return TypeFunction }

// AllocFunction places a Function on the heap. nonlocals may be the
// nil value when the function closes over nothing.
func AllocFunction(
	v *MutatorView,
	name TaggedScopedPtr,
	paramNames ScopedPtr[List],
	code ScopedPtr[ByteCode],
	nonlocals TaggedScopedPtr,
) (ScopedPtr[Function], error) {
	f := Function{
		arity:      uint8(paramNames.Get().Length()),
		code:       NewCellPtr(code),
		paramNames: NewCellPtr(paramNames),
	}
	f.name.Set(name)
	f.nonlocalRefs.Set(nonlocals)
	return Alloc(v, f)
}

// Name returns the function's printable name.
func (f *Function) Name(v *MutatorView) string {
	name := f.name.Get(v)
	if name.IsSymbol() {
		return name.Symbol().AsStr(v)
	}
	return "<lambda>"
}

// NameValue returns the function's name value: a symbol or nil.
func (f *Function) NameValue(v *MutatorView) TaggedScopedPtr {
	return f.name.Get(v)
}

// Arity returns the number of arguments required to activate the
// function.
func (f *Function) Arity() uint8 { return f.arity }

// Code returns the function's bytecode.
func (f *Function) Code(v *MutatorView) ScopedPtr[ByteCode] {
	return f.code.Get(v)
}

// ParamNames returns the parameter name list.
func (f *Function) ParamNames(v *MutatorView) ScopedPtr[List] {
	return f.paramNames.Get(v)
}

// IsClosure reports whether the function refers to nonlocal variables
// and therefore needs a closure environment at runtime.
func (f *Function) IsClosure() bool {
	return !f.nonlocalRefs.IsNil()
}

// Nonlocals returns the nonlocal descriptor array. Only valid for
// closures.
func (f *Function) Nonlocals(v *MutatorView) *ArrayU16 {
	return f.nonlocalRefs.Get(v).ArrayU16()
}

// Partial is a function application object: the callee, the arguments
// applied so far, and (for closures) the captured environment. It
// represents an under-applied function, a closure, or both.
type Partial struct {
	function CellPtr[Function]
	arity    uint8
	used     uint8
	args     CellPtr[List]
	env      TaggedCellPtr
}

func (Partial) typeID() immix.TypeID { return TypePartial }

// AllocPartial builds a Partial over a function from an optional
// closure environment (the nil value when absent) and the argument
// cells applied so far.
func AllocPartial(
	v *MutatorView,
	function ScopedPtr[Function],
	env TaggedScopedPtr,
	args []TaggedCellPtr,
) (ScopedPtr[Partial], error) {
	argList, err := AllocListWithCapacity(v, uint32(len(args)))
	if err != nil {
		return ScopedPtr[Partial]{}, err
	}
	for _, cell := range args {
		if err := argList.Get().Push(v, cell); err != nil {
			return ScopedPtr[Partial]{}, err
		}
	}

	p := Partial{
		function: NewCellPtr(function),
		arity:    function.Get().Arity() - uint8(len(args)),
		used:     uint8(len(args)),
		args:     NewCellPtr(argList),
	}
	p.env.Set(env)
	return Alloc(v, p)
}

// AllocPartialClone bakes a new Partial from an existing one plus
// newly supplied argument cells. The closure environment, if any, is
// shared by pointer.
func AllocPartialClone(
	v *MutatorView,
	source ScopedPtr[Partial],
	newArgs []TaggedCellPtr,
) (ScopedPtr[Partial], error) {
	src := source.Get()
	srcArgs := src.args.Get(v)

	argList, err := AllocListWithCapacity(v, srcArgs.Get().Length()+uint32(len(newArgs)))
	if err != nil {
		return ScopedPtr[Partial]{}, err
	}
	err = srcArgs.Get().ReadSlice(v, func(cells []TaggedCellPtr) error {
		for _, cell := range cells {
			if err := argList.Get().Push(v, cell); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return ScopedPtr[Partial]{}, err
	}
	for _, cell := range newArgs {
		if err := argList.Get().Push(v, cell); err != nil {
			return ScopedPtr[Partial]{}, err
		}
	}

	used := uint8(argList.Get().Length())
	p := Partial{
		function: src.function,
		arity:    src.function.Get(v).Get().Arity() - used,
		used:     used,
		args:     NewCellPtr(argList),
	}
	p.env.SetToPtr(src.env.GetPtr())
	return Alloc(v, p)
}

// Arity returns the number of arguments still required to activate
// the function.
func (p *Partial) Arity() uint8 { return p.arity }

// Used returns the number of arguments applied so far.
func (p *Partial) Used() uint8 { return p.used }

// Args returns the applied-argument list.
func (p *Partial) Args(v *MutatorView) ScopedPtr[List] {
	return p.args.Get(v)
}

// ClosureEnv returns the raw environment cell: nil or a List of
// Upvalues.
func (p *Partial) ClosureEnv() TaggedPtr {
	return p.env.GetPtr()
}

// Function returns the wrapped function.
func (p *Partial) Function(v *MutatorView) ScopedPtr[Function] {
	return p.function.Get(v)
}
