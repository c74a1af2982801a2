package vm

import "testing"

func TestSymbolInternIdempotent(t *testing.T) {
	syms := NewSymbolMap()

	first := syms.Lookup("lambda")
	second := syms.Lookup("lambda")
	if first.Addr() != second.Addr() {
		t.Error("interning the same name twice yielded different pointers")
	}

	other := syms.Lookup("mu")
	if other.Addr() == first.Addr() {
		t.Error("distinct names interned to the same pointer")
	}
	if syms.Len() != 2 {
		t.Errorf("Len = %d, want 2", syms.Len())
	}
}

func TestSymbolNameRoundTrip(t *testing.T) {
	testHelper(t, func(v *MutatorView) error {
		names := []string{"x", "set!", "make-adder", "+", "", "日本語"}
		for _, name := range names {
			sym := v.LookupSym(name)
			if got := sym.Symbol().AsStr(v); got != name {
				t.Errorf("AsStr = %q, want %q", got, name)
			}
		}
		return nil
	})
}

func TestSymbolEqualityIsIdentity(t *testing.T) {
	testHelper(t, func(v *MutatorView) error {
		a := v.LookupSym("same")
		b := v.LookupSym("same")
		if a != b {
			t.Error("equal names are not identical values")
		}
		if a == v.LookupSym("other") {
			t.Error("different names compare identical")
		}
		return nil
	})
}

func TestSymbolHashStable(t *testing.T) {
	testHelper(t, func(v *MutatorView) error {
		sym := v.LookupSym("stable")
		h1 := sym.Symbol().hash()
		h2 := sym.Symbol().hash()
		if h1 != h2 {
			t.Error("hash is not stable")
		}
		if sym.Symbol().hash() == v.LookupSym("unstable").Symbol().hash() {
			t.Error("suspicious hash collision between distinct short names")
		}
		return nil
	})
}
