package vm

import "github.com/fernlang/fern/immix"

// Pair is a cons cell: two tagged value cells plus the source
// positions of the expressions that produced them, kept for error
// reporting on ASTs.
type Pair struct {
	First     TaggedCellPtr
	Second    TaggedCellPtr
	firstPos  SourcePos
	secondPos SourcePos
}

func (Pair) typeID() immix.TypeID { return TypePair }

// AllocPair places a cons of two values on the heap, returning it as a
// tagged value.
func AllocPair(v *MutatorView, first, second TaggedScopedPtr) (TaggedScopedPtr, error) {
	pair := Pair{}
	pair.First.Set(first)
	pair.Second.Set(second)
	return AllocTagged(v, pair)
}

// SetFirstPos records the source position of the first cell's
// expression.
func (p *Pair) SetFirstPos(pos SourcePos) { p.firstPos = pos }

// SetSecondPos records the source position of the second cell's
// expression.
func (p *Pair) SetSecondPos(pos SourcePos) { p.secondPos = pos }

// FirstPos returns the source position of the first cell, if known.
func (p *Pair) FirstPos() SourcePos { return p.firstPos }

// Append sets the pair's second cell to a new pair whose first cell is
// value, returning the new pair: the primitive for building lists
// front to back.
func (p *Pair) Append(v *MutatorView, value TaggedScopedPtr) (ScopedPtr[Pair], error) {
	tail, err := Alloc(v, Pair{})
	if err != nil {
		return ScopedPtr[Pair]{}, err
	}
	tail.Get().First.Set(value)
	p.Second.SetToPtr(taggedPair(tail.addr()))
	return tail, nil
}

// Dot sets the pair's second cell directly, building a dotted pair.
func (p *Pair) Dot(value TaggedScopedPtr) {
	p.Second.Set(value)
}

// valueFromOnePair unwraps a one-element list (v).
func valueFromOnePair(v *MutatorView, args TaggedScopedPtr) (TaggedScopedPtr, error) {
	if !args.IsPair() {
		return TaggedScopedPtr{}, errEval("expected a one-element list")
	}
	pair := args.Pair()
	if !pair.Second.IsNil() {
		return TaggedScopedPtr{}, errEval("expected exactly one element")
	}
	return pair.First.Get(v), nil
}

// valuesFromTwoPairs unwraps a two-element list (v1 v2).
func valuesFromTwoPairs(v *MutatorView, args TaggedScopedPtr) (TaggedScopedPtr, TaggedScopedPtr, error) {
	if !args.IsPair() {
		return TaggedScopedPtr{}, TaggedScopedPtr{}, errEval("expected a two-element list")
	}
	first := args.Pair()
	rest := first.Second.Get(v)
	if !rest.IsPair() {
		return TaggedScopedPtr{}, TaggedScopedPtr{}, errEval("expected a two-element list")
	}
	second := rest.Pair()
	if !second.Second.IsNil() {
		return TaggedScopedPtr{}, TaggedScopedPtr{}, errEval("expected exactly two elements")
	}
	return first.First.Get(v), second.First.Get(v), nil
}

// vecFromPairs flattens a proper list into a slice of values. nil
// flattens to an empty slice.
func vecFromPairs(v *MutatorView, list TaggedScopedPtr) ([]TaggedScopedPtr, error) {
	var items []TaggedScopedPtr

	head := list
	for !head.IsNil() {
		if !head.IsPair() {
			return nil, errEval("expected a proper list")
		}
		pair := head.Pair()
		items = append(items, pair.First.Get(v))
		head = pair.Second.Get(v)
	}
	return items, nil
}
