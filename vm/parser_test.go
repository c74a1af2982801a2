package vm

import "testing"

// roundTrip parses source and prints the result back.
func roundTrip(t *testing.T, v *MutatorView, source string) string {
	t.Helper()
	expr, err := Parse(v, source)
	if err != nil {
		t.Fatalf("Parse(%q): %v", source, err)
	}
	return PrintValue(v, expr)
}

func TestParsePrintRoundTrip(t *testing.T) {
	cases := []struct {
		source string
		want   string
	}{
		{"nil", "nil"},
		{"42", "42"},
		{"-7", "-7"},
		{"foo", "foo"},
		{"(a b c)", "(a b c)"},
		{"(a (b c) d)", "(a (b c) d)"},
		{"(a . b)", "(a . b)"},
		{"(a b . c)", "(a b . c)"},
		{"()", "nil"},
		{"(1 2 3)", "(1 2 3)"},
		{`"hello world"`, `"hello world"`},
		{"'x", "(quote x)"},
		{"'(a b)", "(quote (a b))"},
		{"( a ; comment\n b )", "(a b)"},
	}

	testHelper(t, func(v *MutatorView) error {
		for _, c := range cases {
			if got := roundTrip(t, v, c.source); got != c.want {
				t.Errorf("round trip %q = %q, want %q", c.source, got, c.want)
			}
		}
		return nil
	})
}

// (a . (b . (c . nil))) is structurally (a b c).
func TestDottedNestEquivalence(t *testing.T) {
	testHelper(t, func(v *MutatorView) error {
		nested := roundTrip(t, v, "(a . (b . (c . nil)))")
		flat := roundTrip(t, v, "(a b c)")
		if nested != flat {
			t.Errorf("dotted nest printed %q, flat printed %q", nested, flat)
		}
		return nil
	})
}

func TestParseErrors(t *testing.T) {
	bad := []string{
		"(a b",
		")",
		"(a . )",
		"(. a)",
		"(a . b c)",
		"(a))",
		`"unterminated`,
	}

	testHelper(t, func(v *MutatorView) error {
		for _, source := range bad {
			if _, err := Parse(v, source); err == nil {
				t.Errorf("Parse(%q) succeeded, want error", source)
			}
		}
		return nil
	})
}

func TestParseAll(t *testing.T) {
	testHelper(t, func(v *MutatorView) error {
		exprs, err := ParseAll(v, "(a) (b) 3")
		if err != nil {
			return err
		}
		if len(exprs) != 3 {
			t.Fatalf("ParseAll returned %d exprs, want 3", len(exprs))
		}
		if PrintValue(v, exprs[2]) != "3" {
			t.Error("third expression is not 3")
		}
		return nil
	})
}

func TestParsePositions(t *testing.T) {
	testHelper(t, func(v *MutatorView) error {
		expr, err := Parse(v, "(first\n  second)")
		if err != nil {
			return err
		}
		pair := expr.Pair()
		if pos := pair.FirstPos(); pos.Line != 1 || pos.Col != 2 {
			t.Errorf("first element pos = %d:%d, want 1:2", pos.Line, pos.Col)
		}
		rest := pair.Second.Get(v).Pair()
		if pos := rest.FirstPos(); pos.Line != 2 || pos.Col != 3 {
			t.Errorf("second element pos = %d:%d, want 2:3", pos.Line, pos.Col)
		}
		return nil
	})
}

func TestSymbolsWithSigns(t *testing.T) {
	testHelper(t, func(v *MutatorView) error {
		for _, source := range []string{"-", "+", "-x", "1+"} {
			expr, err := Parse(v, source)
			if err != nil {
				return err
			}
			if !expr.IsSymbol() {
				t.Errorf("%q should parse as a symbol", source)
			}
		}
		return nil
	})
}
