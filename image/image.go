// Package image serializes compiled functions to portable CBOR
// images and rebuilds them into a live heap. An image captures the
// full compilation result: instruction words, literals pool (with
// nested functions), parameter names and nonlocal descriptors.
package image

import (
	"fmt"

	"github.com/fernlang/fern/vm"
)

// Literal value kinds.
const (
	KindNil      = "nil"
	KindInt      = "int"
	KindSymbol   = "symbol"
	KindString   = "string"
	KindPair     = "pair"
	KindFunction = "function"
)

// Literal is one literals-pool entry in portable form. Pairs nest for
// quoted list structure; functions nest for inner definitions.
type Literal struct {
	Kind     string          `cbor:"kind"`
	Int      int64           `cbor:"int,omitempty"`
	Str      string          `cbor:"str,omitempty"`
	First    *Literal        `cbor:"first,omitempty"`
	Second   *Literal        `cbor:"second,omitempty"`
	Function *FunctionImage  `cbor:"function,omitempty"`
}

// FunctionImage is a compiled function in portable form.
type FunctionImage struct {
	Name      string    `cbor:"name,omitempty"`
	Params    []string  `cbor:"params"`
	Code      []uint32  `cbor:"code"`
	Literals  []Literal `cbor:"literals"`
	Nonlocals []uint16  `cbor:"nonlocals,omitempty"`
}

// Snapshot captures a compiled function as a portable image.
func Snapshot(v *vm.MutatorView, fn *vm.Function) (*FunctionImage, error) {
	img := &FunctionImage{
		Params: []string{},
	}

	name := fn.NameValue(v)
	if name.IsSymbol() {
		img.Name = name.Symbol().AsStr(v)
	}

	params := fn.ParamNames(v).Get()
	for i := uint32(0); i < params.Length(); i++ {
		param, err := vm.ListGet(v, params, i)
		if err != nil {
			return nil, err
		}
		img.Params = append(img.Params, param.Symbol().AsStr(v))
	}

	code := fn.Code(v).Get()
	bits, err := code.CodeBits(v)
	if err != nil {
		return nil, err
	}
	img.Code = bits

	for id := uint32(0); id < code.LiteralCount(); id++ {
		value, err := code.Literal(v, vm.LiteralID(id))
		if err != nil {
			return nil, err
		}
		lit, err := snapshotLiteral(v, value)
		if err != nil {
			return nil, err
		}
		img.Literals = append(img.Literals, *lit)
	}

	if fn.IsClosure() {
		err := fn.Nonlocals(v).ReadSlice(v, func(compounds []uint16) error {
			img.Nonlocals = append(img.Nonlocals, compounds...)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	return img, nil
}

// snapshotLiteral converts one pool value to portable form.
func snapshotLiteral(v *vm.MutatorView, value vm.TaggedScopedPtr) (*Literal, error) {
	switch value.TypeID() {
	case vm.TypeNil:
		return &Literal{Kind: KindNil}, nil

	case vm.TypeInteger:
		return &Literal{Kind: KindInt, Int: int64(value.Number())}, nil

	case vm.TypeSymbol:
		return &Literal{Kind: KindSymbol, Str: value.Symbol().AsStr(v)}, nil

	case vm.TypeString:
		return &Literal{Kind: KindString, Str: value.Text().AsStr(v)}, nil

	case vm.TypePair:
		pair := value.Pair()
		first, err := snapshotLiteral(v, pair.First.Get(v))
		if err != nil {
			return nil, err
		}
		second, err := snapshotLiteral(v, pair.Second.Get(v))
		if err != nil {
			return nil, err
		}
		return &Literal{Kind: KindPair, First: first, Second: second}, nil

	case vm.TypeFunction:
		inner, err := Snapshot(v, value.Function())
		if err != nil {
			return nil, err
		}
		return &Literal{Kind: KindFunction, Function: inner}, nil

	default:
		return nil, fmt.Errorf("image: literal type %s cannot be serialized",
			vm.TypeName(value.TypeID()))
	}
}

// Rehydrate rebuilds a live Function from a portable image.
func Rehydrate(v *vm.MutatorView, img *FunctionImage) (vm.ScopedPtr[vm.Function], error) {
	var none vm.ScopedPtr[vm.Function]

	code, err := vm.AllocByteCode(v)
	if err != nil {
		return none, err
	}

	for i := range img.Literals {
		value, err := rehydrateLiteral(v, &img.Literals[i])
		if err != nil {
			return none, err
		}
		if _, err := code.Get().PushLiteral(v, value); err != nil {
			return none, err
		}
	}

	for _, bits := range img.Code {
		op, err := vm.OpcodeFromBits(bits)
		if err != nil {
			return none, err
		}
		if err := code.Get().Push(v, op); err != nil {
			return none, err
		}
	}

	params := make([]vm.TaggedScopedPtr, 0, len(img.Params))
	for _, param := range img.Params {
		params = append(params, v.LookupSym(param))
	}
	paramList, err := vm.ListFromSlice(v, params)
	if err != nil {
		return none, err
	}

	nonlocals := v.Nil()
	if len(img.Nonlocals) > 0 {
		arr, err := vm.AllocArrayWithCapacity[uint16](v, uint32(len(img.Nonlocals)))
		if err != nil {
			return none, err
		}
		for _, compound := range img.Nonlocals {
			if err := arr.Get().Push(v, compound); err != nil {
				return none, err
			}
		}
		nonlocals = vm.AsTagged(v, arr)
	}

	name := v.Nil()
	if img.Name != "" {
		name = v.LookupSym(img.Name)
	}

	return vm.AllocFunction(v, name, paramList, code, nonlocals)
}

// rehydrateLiteral rebuilds one pool value.
func rehydrateLiteral(v *vm.MutatorView, lit *Literal) (vm.TaggedScopedPtr, error) {
	var none vm.TaggedScopedPtr

	switch lit.Kind {
	case KindNil:
		return v.Nil(), nil

	case KindInt:
		return v.Number(int(lit.Int))

	case KindSymbol:
		return v.LookupSym(lit.Str), nil

	case KindString:
		text, err := vm.AllocText(v, lit.Str)
		if err != nil {
			return none, err
		}
		return vm.AsTagged(v, text), nil

	case KindPair:
		if lit.First == nil || lit.Second == nil {
			return none, fmt.Errorf("image: malformed pair literal")
		}
		first, err := rehydrateLiteral(v, lit.First)
		if err != nil {
			return none, err
		}
		second, err := rehydrateLiteral(v, lit.Second)
		if err != nil {
			return none, err
		}
		return vm.AllocPair(v, first, second)

	case KindFunction:
		if lit.Function == nil {
			return none, fmt.Errorf("image: malformed function literal")
		}
		fn, err := Rehydrate(v, lit.Function)
		if err != nil {
			return none, err
		}
		return vm.AsTagged(v, fn), nil

	default:
		return none, fmt.Errorf("image: unknown literal kind %q", lit.Kind)
	}
}
