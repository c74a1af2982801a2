package vm

import "testing"

// testHelper runs a test body inside a mutator scope.
func testHelper(t *testing.T, f func(v *MutatorView) error) {
	t.Helper()
	mem := NewMemory()
	task := MutatorFunc[struct{}, struct{}](func(v *MutatorView, _ struct{}) (struct{}, error) {
		return struct{}{}, f(v)
	})
	if _, err := Mutate(mem, task, struct{}{}); err != nil {
		t.Fatal(err)
	}
}

func TestTaggedNil(t *testing.T) {
	n := TaggedNil()
	if !n.IsNil() {
		t.Error("TaggedNil is not nil")
	}
	if n.IsNumber() || n.IsPair() || n.IsSymbol() || n.IsObjectPtr() {
		t.Error("TaggedNil matched a non-nil tag")
	}
	if uintptr(n) != 0 {
		t.Error("nil must be the all-zero word")
	}
}

func TestTaggedNumberRoundTrip(t *testing.T) {
	values := []int{0, 1, -1, 42, -42, 32767, -32768, MaxTaggedNumber, MinTaggedNumber}

	for _, n := range values {
		tagged, ok := taggedNumber(n)
		if !ok {
			t.Fatalf("taggedNumber(%d) rejected an in-range value", n)
		}
		if !tagged.IsNumber() {
			t.Errorf("taggedNumber(%d) lost its tag", n)
		}
		if got := tagged.Number(); got != n {
			t.Errorf("Number() = %d, want %d", got, n)
		}
	}
}

func TestTaggedNumberRange(t *testing.T) {
	if _, ok := taggedNumber(MaxTaggedNumber + 1); ok {
		t.Error("accepted a value above the tagged range")
	}
	if _, ok := taggedNumber(MinTaggedNumber - 1); ok {
		t.Error("accepted a value below the tagged range")
	}
}

func TestTaggedPointerRoundTrips(t *testing.T) {
	testHelper(t, func(v *MutatorView) error {
		// PAIR
		pair, err := AllocPair(v, v.Nil(), v.Nil())
		if err != nil {
			return err
		}
		if !pair.IsPair() {
			t.Error("allocated pair is not PAIR-tagged")
		}

		// SYMBOL
		sym := v.LookupSym("roundtrip")
		if !sym.IsSymbol() {
			t.Error("symbol is not SYMBOL-tagged")
		}

		// OBJECT (anything that is not pair/symbol/int)
		text, err := AllocText(v, "words")
		if err != nil {
			return err
		}
		obj := AsTagged(v, text)
		if !obj.Ptr().IsObjectPtr() {
			t.Error("text is not OBJECT-tagged")
		}

		// decode through FatPtr and re-encode: bit-for-bit identity
		for _, tagged := range []TaggedPtr{pair.Ptr(), sym.Ptr(), obj.Ptr(), TaggedNil()} {
			fat := fatFromTagged(tagged)
			if back := fat.tagged(); back != tagged {
				t.Errorf("FatPtr round trip: %#x -> %#x", uintptr(tagged), uintptr(back))
			}
		}

		n, err := v.Number(123456)
		if err != nil {
			return err
		}
		fat := fatFromTagged(n.Ptr())
		if fat.TypeID() != TypeInteger || fat.tagged() != n.Ptr() {
			t.Error("number FatPtr round trip failed")
		}
		return nil
	})
}

func TestTaggedTypeIDs(t *testing.T) {
	testHelper(t, func(v *MutatorView) error {
		pair, err := AllocPair(v, v.Nil(), v.Nil())
		if err != nil {
			return err
		}
		text, err := AllocText(v, "x")
		if err != nil {
			return err
		}
		num, err := v.Number(7)
		if err != nil {
			return err
		}

		checks := []struct {
			value TaggedScopedPtr
			want  string
		}{
			{v.Nil(), "nil"},
			{num, "Integer"},
			{v.LookupSym("x"), "Symbol"},
			{pair, "Pair"},
			{AsTagged(v, text), "String"},
		}
		for _, check := range checks {
			if got := TypeName(check.value.TypeID()); got != check.want {
				t.Errorf("TypeID = %s, want %s", got, check.want)
			}
		}
		return nil
	})
}

func TestScopeEscapePanics(t *testing.T) {
	mem := NewMemory()
	var escaped *MutatorView

	task := MutatorFunc[struct{}, struct{}](func(v *MutatorView, _ struct{}) (struct{}, error) {
		escaped = v
		return struct{}{}, nil
	})
	if _, err := Mutate(mem, task, struct{}{}); err != nil {
		t.Fatal(err)
	}

	defer func() {
		if recover() == nil {
			t.Error("using a view outside its task did not panic")
		}
	}()
	escaped.Nil()
}
