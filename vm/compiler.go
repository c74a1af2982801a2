package vm

import "sort"

// bindingKind says where a name resolves to.
type bindingKind int

const (
	// bindLocal: a register in the current function's window.
	bindLocal bindingKind = iota
	// bindUpvalue: a slot in the closure environment.
	bindUpvalue
	// bindGlobal: late-bound through the globals dict.
	bindGlobal
)

// variable is a named register with compile-time metadata about how
// closures use it.
type variable struct {
	register   Register
	closedOver bool
}

// scope maps names to variables for one binding level: parameters at
// the outermost level, one more per let.
type scope struct {
	bindings map[string]*variable
}

func newScope() *scope {
	return &scope{bindings: make(map[string]*variable)}
}

// pushBinding binds a symbol to a register in this scope.
func (s *scope) pushBinding(v *MutatorView, name TaggedScopedPtr, reg Register) error {
	if !name.IsSymbol() {
		return errEval("a binding name must be a symbol")
	}
	s.bindings[name.Symbol().AsStr(v)] = &variable{register: reg}
	return nil
}

// pushBindings binds a block of names to consecutive registers,
// returning the next free register.
func (s *scope) pushBindings(v *MutatorView, names []TaggedScopedPtr, startReg Register) (Register, error) {
	reg := startReg
	for _, name := range names {
		if err := s.pushBinding(v, name, reg); err != nil {
			return 0, err
		}
		reg++
	}
	return reg, nil
}

// nonlocal records where an enclosing function's variable lives
// relative to this function's frame: the upvalue slot assigned to it,
// the frame depth, and the register within that frame.
type nonlocal struct {
	upvalueID     UpvalueID
	frameOffset   uint8
	frameRegister Register
}

// variables is the per-function binding state: nested scopes, the
// parent function's variables for nonlocal resolution, and the
// nonlocal reference table accumulated while compiling.
type variables struct {
	parent      *variables
	scopes      []*scope
	nonlocals   map[string]*nonlocal
	nextUpvalue UpvalueID
}

func newVariables(parent *variables) *variables {
	return &variables{
		parent:    parent,
		nonlocals: make(map[string]*nonlocal),
	}
}

// lookupBinding resolves a name against the scope stack and ancestor
// functions. A hit in an ancestor allocates an upvalue slot and marks
// the ancestor's variable as closed over.
func (vars *variables) lookupBinding(v *MutatorView, name TaggedScopedPtr) (bindingKind, Register, UpvalueID, error) {
	if !name.IsSymbol() {
		return 0, 0, 0, errEval("cannot look up a non-symbol binding")
	}
	nameStr := name.Symbol().AsStr(v)

	frameOffset := 0
	for level := vars; level != nil; level = level.parent {
		for i := len(level.scopes) - 1; i >= 0; i-- {
			va, ok := level.scopes[i].bindings[nameStr]
			if !ok {
				continue
			}
			if frameOffset == 0 {
				return bindLocal, va.register, 0, nil
			}
			if _, exists := vars.nonlocals[nameStr]; !exists {
				vars.nonlocals[nameStr] = &nonlocal{
					upvalueID:     vars.acquireUpvalueID(),
					frameOffset:   uint8(frameOffset),
					frameRegister: va.register,
				}
				va.closedOver = true
			}
		}
		frameOffset++
	}

	if nl, ok := vars.nonlocals[nameStr]; ok {
		return bindUpvalue, 0, nl.upvalueID, nil
	}
	return bindGlobal, 0, 0, nil
}

func (vars *variables) acquireUpvalueID() UpvalueID {
	id := vars.nextUpvalue
	vars.nextUpvalue++
	return id
}

// getNonlocals builds the function's nonlocal descriptor array, in
// upvalue id order, or the nil value when the function closes over
// nothing. Each descriptor packs (frame offset << 8 | register).
func (vars *variables) getNonlocals(v *MutatorView) (TaggedScopedPtr, error) {
	if vars.nextUpvalue == 0 {
		return v.Nil(), nil
	}

	ordered := make([]*nonlocal, 0, len(vars.nonlocals))
	for _, nl := range vars.nonlocals {
		ordered = append(ordered, nl)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].upvalueID < ordered[j].upvalueID
	})

	list, err := AllocArrayWithCapacity[uint16](v, uint32(len(ordered)))
	if err != nil {
		return TaggedScopedPtr{}, err
	}
	for _, nl := range ordered {
		compound := uint16(nl.frameOffset)<<8 | uint16(nl.frameRegister)
		if err := list.Get().Push(v, compound); err != nil {
			return TaggedScopedPtr{}, err
		}
	}
	return AsTagged(v, list), nil
}

// popScope drops the innermost scope, returning the CloseUpvalues
// instructions for any binding a closure captured. Consecutive
// registers coalesce into a single instruction.
func (vars *variables) popScope() []Opcode {
	if len(vars.scopes) == 0 {
		return nil
	}
	last := vars.scopes[len(vars.scopes)-1]
	vars.scopes = vars.scopes[:len(vars.scopes)-1]

	var regs []int
	for _, va := range last.bindings {
		if va.closedOver {
			regs = append(regs, int(va.register))
		}
	}
	if len(regs) == 0 {
		return nil
	}
	sort.Ints(regs)

	var closings []Opcode
	first := regs[0]
	count := 1
	for _, reg := range regs[1:] {
		if reg == first+count {
			count++
			continue
		}
		closings = append(closings, OpCloseUpvalues(Register(first), uint8(count)))
		first = reg
		count = 1
	}
	closings = append(closings, OpCloseUpvalues(Register(first), uint8(count)))
	return closings
}

// compiler compiles one function. Register allocation follows the
// expression nesting: register slots are pushed as expressions are
// entered and popped as they are exited, which is simple rather than
// optimal.
type compiler struct {
	bytecode ScopedPtr[ByteCode]
	nextReg  int
	vars     *variables
}

func newCompiler(v *MutatorView, parent *variables) (*compiler, error) {
	bytecode, err := AllocByteCode(v)
	if err != nil {
		return nil, err
	}
	return &compiler{
		bytecode: bytecode,
		// register 0 is the return slot, register 1 the closure env
		nextReg: int(FirstArgReg),
		vars:    newVariables(parent),
	}, nil
}

// Compile compiles a single expression into an anonymous
// zero-argument Function.
func Compile(v *MutatorView, ast TaggedScopedPtr) (ScopedPtr[Function], error) {
	c, err := newCompiler(v, nil)
	if err != nil {
		return ScopedPtr[Function]{}, err
	}
	return c.compileFunction(v, v.Nil(), nil, []TaggedScopedPtr{ast})
}

// compileFunction compiles a parameterized function body into a
// Function object.
func (c *compiler) compileFunction(v *MutatorView, name TaggedScopedPtr, params []TaggedScopedPtr, exprs []TaggedScopedPtr) (ScopedPtr[Function], error) {
	if !name.IsNil() && !name.IsSymbol() {
		return ScopedPtr[Function]{}, errEval("a function name must be nil or a symbol")
	}
	if len(params) > 254 {
		return ScopedPtr[Function]{}, errEval("a function cannot have more than 254 parameters")
	}
	if len(exprs) == 0 {
		return ScopedPtr[Function]{}, errEval("a function must have at least one expression")
	}

	paramList, err := ListFromSlice(v, params)
	if err != nil {
		return ScopedPtr[Function]{}, err
	}

	paramScope := newScope()
	nextReg, err := paramScope.pushBindings(v, params, Register(c.nextReg))
	if err != nil {
		return ScopedPtr[Function]{}, err
	}
	c.nextReg = int(nextReg)
	c.vars.scopes = append(c.vars.scopes, paramScope)

	var resultReg Register
	for _, expr := range exprs {
		resultReg, err = c.compileEval(v, expr)
		if err != nil {
			return ScopedPtr[Function]{}, err
		}
	}

	for _, closing := range c.vars.popScope() {
		if err := c.push(v, closing); err != nil {
			return ScopedPtr[Function]{}, err
		}
	}
	if err := c.push(v, OpReturn(resultReg)); err != nil {
		return ScopedPtr[Function]{}, err
	}

	nonlocals, err := c.vars.getNonlocals(v)
	if err != nil {
		return ScopedPtr[Function]{}, err
	}
	return AllocFunction(v, name, paramList, c.bytecode, nonlocals)
}

// compileEval compiles any expression, returning the register its
// result lands in.
func (c *compiler) compileEval(v *MutatorView, ast TaggedScopedPtr) (Register, error) {
	switch {
	case ast.IsPair():
		pair := ast.Pair()
		return c.compileApply(v, pair.First.Get(v), pair.Second.Get(v))

	case ast.IsSymbol():
		switch ast.Symbol().AsStr(v) {
		case "nil":
			dest, err := c.acquireReg()
			if err != nil {
				return 0, err
			}
			if err := c.push(v, OpLoadNil(dest)); err != nil {
				return 0, err
			}
			return dest, nil

		case "true":
			return c.pushLoadLiteral(v, v.LookupSym("true"))

		default:
			kind, reg, upvalID, err := c.vars.lookupBinding(v, ast)
			if err != nil {
				return 0, err
			}
			switch kind {
			case bindLocal:
				return reg, nil

			case bindUpvalue:
				dest, err := c.acquireReg()
				if err != nil {
					return 0, err
				}
				if err := c.push(v, OpGetUpvalue(dest, upvalID)); err != nil {
					return 0, err
				}
				return dest, nil

			default:
				// late-bound global: load the name, then look it up
				// in place
				name, err := c.pushLoadLiteral(v, ast)
				if err != nil {
					return 0, err
				}
				dest := name // reuse the register
				if err := c.push(v, OpLoadGlobal(dest, name)); err != nil {
					return 0, err
				}
				return dest, nil
			}
		}

	case ast.IsNumber():
		n := ast.Number()
		if n >= -32768 && n <= 32767 {
			dest, err := c.acquireReg()
			if err != nil {
				return 0, err
			}
			if err := c.push(v, OpLoadInteger(dest, int16(n))); err != nil {
				return 0, err
			}
			return dest, nil
		}
		return c.pushLoadLiteral(v, ast)

	default:
		return c.pushLoadLiteral(v, ast)
	}
}

// compileApply compiles a function or special-form application.
func (c *compiler) compileApply(v *MutatorView, function, args TaggedScopedPtr) (Register, error) {
	if !function.IsSymbol() {
		// dynamic value in function position
		return c.compileApplyCall(v, function, args)
	}

	switch function.Symbol().AsStr(v) {
	case "quote":
		value, err := valueFromOnePair(v, args)
		if err != nil {
			return 0, err
		}
		return c.pushLoadLiteral(v, value)
	case "atom?":
		return c.pushOp2(v, args, OpIsAtom)
	case "nil?":
		return c.pushOp2(v, args, OpIsNil)
	case "car":
		return c.pushOp2(v, args, OpFirstOfPair)
	case "cdr":
		return c.pushOp2(v, args, OpSecondOfPair)
	case "cons":
		return c.pushOp3(v, args, OpMakePair)
	case "is?", "==":
		return c.pushOp3(v, args, OpIsIdentical)
	case "+":
		return c.pushOp3(v, args, OpAdd)
	case "-":
		return c.pushOp3(v, args, OpSubtract)
	case "*":
		return c.pushOp3(v, args, OpMultiply)
	case "/":
		return c.pushOp3(v, args, OpDivideInteger)
	case "cond":
		return c.compileApplyCond(v, args)
	case "if":
		return c.compileApplyIf(v, args)
	case "begin", "do":
		return c.compileApplyBegin(v, args)
	case "set":
		return c.compileApplyAssign(v, args)
	case "def":
		return c.compileNamedFunction(v, args)
	case "lambda", "\\":
		return c.compileAnonymousFunction(v, args)
	case "let":
		return c.compileApplyLet(v, args)
	default:
		return c.compileApplyCall(v, function, args)
	}
}

// compileApplyCond compiles (cond test expr test expr ...): each test
// in turn, the matching expression's value as the result, nil when
// nothing matched.
func (c *compiler) compileApplyCond(v *MutatorView, args TaggedScopedPtr) (Register, error) {
	bytecode := c.bytecode.Get()

	dest, err := c.acquireReg()
	if err != nil {
		return 0, err
	}

	var endJumps []uint32
	lastCondJump := int64(-1)

	head := args
	for head.IsPair() {
		condExpr := head.Pair().First.Get(v)
		head = head.Pair().Second.Get(v)
		if !head.IsPair() {
			return 0, errEval("unexpected end of cond list")
		}
		thenExpr := head.Pair().First.Get(v)
		head = head.Pair().Second.Get(v)

		// point the previous test's miss jump at this test
		if lastCondJump >= 0 {
			offset := bytecode.NextInstruction() - uint32(lastCondJump) - 1
			if err := bytecode.UpdateJumpOffset(v, uint32(lastCondJump), JumpOffset(offset)); err != nil {
				return 0, err
			}
		}

		c.resetReg(int(dest) + 1)
		test, err := c.compileEval(v, condExpr)
		if err != nil {
			return 0, err
		}
		if err := c.push(v, OpJumpIfNotTrue(test, jumpUnknown)); err != nil {
			return 0, err
		}
		lastCondJump = int64(bytecode.LastInstruction())

		c.resetReg(int(dest) + 1)
		exprResult, err := c.compileEval(v, thenExpr)
		if err != nil {
			return 0, err
		}
		if exprResult != dest {
			if err := c.push(v, OpCopyRegister(dest, exprResult)); err != nil {
				return 0, err
			}
		}
		if err := c.push(v, OpJump(jumpUnknown)); err != nil {
			return 0, err
		}
		endJumps = append(endJumps, bytecode.LastInstruction())
	}
	if !head.IsNil() {
		return 0, errEval("cond clauses must form a proper list")
	}

	// default to nil when no test passed
	if lastCondJump >= 0 {
		offset := bytecode.NextInstruction() - uint32(lastCondJump) - 1
		if err := bytecode.UpdateJumpOffset(v, uint32(lastCondJump), JumpOffset(offset)); err != nil {
			return 0, err
		}
	}
	if err := c.push(v, OpLoadNil(dest)); err != nil {
		return 0, err
	}

	for _, addr := range endJumps {
		offset := bytecode.NextInstruction() - addr - 1
		if err := bytecode.UpdateJumpOffset(v, addr, JumpOffset(offset)); err != nil {
			return 0, err
		}
	}

	c.resetReg(int(dest) + 1)
	return dest, nil
}

// compileApplyIf compiles (if test then) and (if test then else) as
// sugar for the equivalent cond.
func (c *compiler) compileApplyIf(v *MutatorView, args TaggedScopedPtr) (Register, error) {
	items, err := vecFromPairs(v, args)
	if err != nil {
		return 0, err
	}
	if len(items) < 2 || len(items) > 3 {
		return 0, errEval("if takes a test, a consequent and an optional alternative")
	}

	bytecode := c.bytecode.Get()
	dest, err := c.acquireReg()
	if err != nil {
		return 0, err
	}

	test, err := c.compileEval(v, items[0])
	if err != nil {
		return 0, err
	}
	if err := c.push(v, OpJumpIfNotTrue(test, jumpUnknown)); err != nil {
		return 0, err
	}
	missJump := bytecode.LastInstruction()

	c.resetReg(int(dest) + 1)
	thenResult, err := c.compileEval(v, items[1])
	if err != nil {
		return 0, err
	}
	if thenResult != dest {
		if err := c.push(v, OpCopyRegister(dest, thenResult)); err != nil {
			return 0, err
		}
	}
	if err := c.push(v, OpJump(jumpUnknown)); err != nil {
		return 0, err
	}
	endJump := bytecode.LastInstruction()

	offset := bytecode.NextInstruction() - missJump - 1
	if err := bytecode.UpdateJumpOffset(v, missJump, JumpOffset(offset)); err != nil {
		return 0, err
	}

	c.resetReg(int(dest) + 1)
	if len(items) == 3 {
		elseResult, err := c.compileEval(v, items[2])
		if err != nil {
			return 0, err
		}
		if elseResult != dest {
			if err := c.push(v, OpCopyRegister(dest, elseResult)); err != nil {
				return 0, err
			}
		}
	} else {
		if err := c.push(v, OpLoadNil(dest)); err != nil {
			return 0, err
		}
	}

	offset = bytecode.NextInstruction() - endJump - 1
	if err := bytecode.UpdateJumpOffset(v, endJump, JumpOffset(offset)); err != nil {
		return 0, err
	}

	c.resetReg(int(dest) + 1)
	return dest, nil
}

// compileApplyBegin compiles (begin expr ...): every expression in
// order, the last one's value as the result.
func (c *compiler) compileApplyBegin(v *MutatorView, args TaggedScopedPtr) (Register, error) {
	items, err := vecFromPairs(v, args)
	if err != nil {
		return 0, err
	}
	if len(items) == 0 {
		return 0, errEval("begin requires at least one expression")
	}

	dest, err := c.acquireReg()
	if err != nil {
		return 0, err
	}

	for i, expr := range items {
		c.resetReg(int(dest) + 1)
		src, err := c.compileEval(v, expr)
		if err != nil {
			return 0, err
		}
		if i == len(items)-1 && src != dest {
			if err := c.push(v, OpCopyRegister(dest, src)); err != nil {
				return 0, err
			}
		}
	}

	c.resetReg(int(dest) + 1)
	return dest, nil
}

// compileApplyAssign compiles (set <identifier-expr> <expr>),
// binding the value of the second to the symbol value of the first.
func (c *compiler) compileApplyAssign(v *MutatorView, args TaggedScopedPtr) (Register, error) {
	first, second, err := valuesFromTwoPairs(v, args)
	if err != nil {
		return 0, err
	}
	src, err := c.compileEval(v, second)
	if err != nil {
		return 0, err
	}
	name, err := c.compileEval(v, first)
	if err != nil {
		return 0, err
	}
	if err := c.push(v, OpStoreGlobal(src, name)); err != nil {
		return 0, err
	}
	return src, nil
}

// compileAnonymousFunction compiles (lambda (params) expr ...),
// materializing a MakeClosure when the function captures nonlocals.
func (c *compiler) compileAnonymousFunction(v *MutatorView, args TaggedScopedPtr) (Register, error) {
	items, err := vecFromPairs(v, args)
	if err != nil {
		return 0, err
	}
	if len(items) < 2 {
		return 0, errEval("a lambda needs a parameter list and at least one expression")
	}

	params, err := vecFromPairs(v, items[0])
	if err != nil {
		return 0, err
	}

	fnObj, err := compileFunctionObj(v, c.vars, v.Nil(), params, items[1:])
	if err != nil {
		return 0, err
	}

	dest, err := c.pushLoadLiteral(v, AsTagged(v, fnObj))
	if err != nil {
		return 0, err
	}
	if fnObj.Get().IsClosure() {
		if err := c.push(v, OpMakeClosure(dest, dest)); err != nil {
			return 0, err
		}
	}
	return dest, nil
}

// compileNamedFunction compiles (def name (params) expr ...), binding
// the function to a global.
func (c *compiler) compileNamedFunction(v *MutatorView, args TaggedScopedPtr) (Register, error) {
	items, err := vecFromPairs(v, args)
	if err != nil {
		return 0, err
	}
	if len(items) < 3 {
		return 0, errEval("a definition needs a name, a parameter list and at least one expression")
	}

	fnName := items[0]
	params, err := vecFromPairs(v, items[1])
	if err != nil {
		return 0, err
	}

	fnObj, err := compileFunctionObj(v, c.vars, fnName, params, items[2:])
	if err != nil {
		return 0, err
	}

	name, err := c.pushLoadLiteral(v, fnName)
	if err != nil {
		return 0, err
	}
	src, err := c.pushLoadLiteral(v, AsTagged(v, fnObj))
	if err != nil {
		return 0, err
	}
	if fnObj.Get().IsClosure() {
		if err := c.push(v, OpMakeClosure(src, src)); err != nil {
			return 0, err
		}
	}
	if err := c.push(v, OpStoreGlobal(src, name)); err != nil {
		return 0, err
	}
	return src, nil
}

// compileApplyCall compiles (f arg ...): result and environment slots
// first, arguments in consecutive registers, the callee last so its
// register is discarded after the call.
func (c *compiler) compileApplyCall(v *MutatorView, functionExpr, args TaggedScopedPtr) (Register, error) {
	dest, err := c.acquireReg()
	if err != nil {
		return 0, err
	}
	// the callee's closure environment slot
	if _, err := c.acquireReg(); err != nil {
		return 0, err
	}

	argList, err := vecFromPairs(v, args)
	if err != nil {
		return 0, err
	}
	if len(argList) > 254 {
		return 0, errEval("a call cannot have more than 254 arguments")
	}

	for _, arg := range argList {
		src, err := c.compileEval(v, arg)
		if err != nil {
			return 0, err
		}
		// a bound variable's register sits below the call window;
		// copy it up into argument position
		if src <= dest {
			argReg, err := c.acquireReg()
			if err != nil {
				return 0, err
			}
			if err := c.push(v, OpCopyRegister(argReg, src)); err != nil {
				return 0, err
			}
		}
	}

	function, err := c.compileEval(v, functionExpr)
	if err != nil {
		return 0, err
	}
	if err := c.push(v, OpCall(function, dest, uint8(len(argList)))); err != nil {
		return 0, err
	}

	c.resetReg(int(dest) + 1)
	return dest, nil
}

// compileApplyLet compiles non-recursive (let ((name expr) ...) body
// ...).
func (c *compiler) compileApplyLet(v *MutatorView, args TaggedScopedPtr) (Register, error) {
	letExpr, err := vecFromPairs(v, args)
	if err != nil {
		return 0, err
	}
	if len(letExpr) < 2 {
		return 0, errEval("a let expression needs bindings and a body")
	}

	bindingForms, err := vecFromPairs(v, letExpr[0])
	if err != nil {
		return 0, err
	}
	names := make([]TaggedScopedPtr, 0, len(bindingForms))
	inits := make([]TaggedScopedPtr, 0, len(bindingForms))
	for _, form := range bindingForms {
		name, init, err := valuesFromTwoPairs(v, form)
		if err != nil {
			return 0, err
		}
		names = append(names, name)
		inits = append(inits, init)
	}

	dest, err := c.acquireReg()
	if err != nil {
		return 0, err
	}

	letScope := newScope()
	nextReg, err := letScope.pushBindings(v, names, Register(c.nextReg))
	if err != nil {
		return 0, err
	}
	c.nextReg = int(nextReg)
	c.vars.scopes = append(c.vars.scopes, letScope)

	for i := range names {
		src, err := c.compileEval(v, inits[i])
		if err != nil {
			return 0, err
		}
		bindReg, err := c.compileEval(v, names[i])
		if err != nil {
			return 0, err
		}
		if err := c.push(v, OpCopyRegister(bindReg, src)); err != nil {
			return 0, err
		}
	}

	for _, expr := range letExpr[1:] {
		src, err := c.compileEval(v, expr)
		if err != nil {
			return 0, err
		}
		if err := c.push(v, OpCopyRegister(dest, src)); err != nil {
			return 0, err
		}
	}

	for _, closing := range c.vars.popScope() {
		if err := c.push(v, closing); err != nil {
			return 0, err
		}
	}

	c.resetReg(int(dest) + 1)
	return dest, nil
}

// push appends an instruction to the function bytecode.
func (c *compiler) push(v *MutatorView, op Opcode) error {
	return c.bytecode.Get().Push(v, op)
}

// pushOp2 compiles a unary operator: result register, one evaluated
// argument.
func (c *compiler) pushOp2(v *MutatorView, args TaggedScopedPtr, op func(dest, reg Register) Opcode) (Register, error) {
	result, err := c.acquireReg()
	if err != nil {
		return 0, err
	}
	arg, err := valueFromOnePair(v, args)
	if err != nil {
		return 0, err
	}
	reg, err := c.compileEval(v, arg)
	if err != nil {
		return 0, err
	}
	if err := c.push(v, op(result, reg)); err != nil {
		return 0, err
	}
	c.resetReg(int(result) + 1)
	return result, nil
}

// pushOp3 compiles a binary operator: result register, two evaluated
// arguments.
func (c *compiler) pushOp3(v *MutatorView, args TaggedScopedPtr, op func(dest, reg1, reg2 Register) Opcode) (Register, error) {
	result, err := c.acquireReg()
	if err != nil {
		return 0, err
	}
	first, second, err := valuesFromTwoPairs(v, args)
	if err != nil {
		return 0, err
	}
	reg1, err := c.compileEval(v, first)
	if err != nil {
		return 0, err
	}
	reg2, err := c.compileEval(v, second)
	if err != nil {
		return 0, err
	}
	if err := c.push(v, op(result, reg1, reg2)); err != nil {
		return 0, err
	}
	c.resetReg(int(result) + 1)
	return result, nil
}

// pushLoadLiteral adds a literal to the pool and emits its load.
func (c *compiler) pushLoadLiteral(v *MutatorView, literal TaggedScopedPtr) (Register, error) {
	result, err := c.acquireReg()
	if err != nil {
		return 0, err
	}
	id, err := c.bytecode.Get().PushLiteral(v, literal)
	if err != nil {
		return 0, err
	}
	if err := c.bytecode.Get().PushLoadLiteral(v, result, id); err != nil {
		return 0, err
	}
	return result, nil
}

// acquireReg hands out the next register. Every expression result
// gets its own slot; reset reclaims them when a subexpression tree is
// exited.
func (c *compiler) acquireReg() (Register, error) {
	if c.nextReg > 255 {
		return 0, errEval("function too complex: out of registers")
	}
	reg := Register(c.nextReg)
	c.nextReg++
	return reg, nil
}

// resetReg rewinds the register allocator so slots above reg are
// reused.
func (c *compiler) resetReg(reg int) {
	c.nextReg = reg
}

// compileFunctionObj compiles a nested function against a parent
// binding environment.
func compileFunctionObj(v *MutatorView, parent *variables, name TaggedScopedPtr, params, exprs []TaggedScopedPtr) (ScopedPtr[Function], error) {
	c, err := newCompiler(v, parent)
	if err != nil {
		return ScopedPtr[Function]{}, err
	}
	return c.compileFunction(v, name, params, exprs)
}
