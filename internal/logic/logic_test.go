package logic

import (
	"errors"
	"math"
	"strconv"
	"testing"

	"github.com/danielpatrickdp/gatekeeper/internal/interval"
)

// deg is a bare truth degree used as a trace element.
type deg float64

func (d deg) Val() interval.Valuation { return float64(d) }
func (d deg) String() string          { return strconv.FormatFloat(float64(d), 'g', -1, 64) }

func sig(name string, values ...float64) Signal[deg] {
	steps := make([]deg, len(values))
	for i, v := range values {
		steps[i] = deg(v)
	}
	return NewSignal(name, steps)
}

func interp(maxTime int) *Interpreter[deg] {
	cfg := DefaultConfig()
	cfg.MaxTime = maxTime
	return NewInterpreter[deg](cfg)
}

func mustInterpret(t *testing.T, in *Interpreter[deg], p Prop[deg], at int) float64 {
	t.Helper()
	v, err := in.Interpret(p, at)
	if err != nil {
		t.Fatalf("Interpret(%s, %d): %v", p, at, err)
	}
	return v
}

func near(a, b, tol float64) bool { return math.Abs(a-b) <= tol }

// #region interpreter

func TestInterpretBaseCases(t *testing.T) {
	in := interp(4)
	x := Var(sig("x", 0.2, 0.7, 1, 0))
	y := Var(sig("y", 0.9, 0.1, 0.5, 0.3))

	for at := 0; at < 4; at++ {
		if v := mustInterpret(t, in, True[deg](), at); v != 1 {
			t.Fatalf("True at %d = %g", at, v)
		}
		px := mustInterpret(t, in, x, at)
		py := mustInterpret(t, in, y, at)
		if v := mustInterpret(t, in, Not(x), at); v != 1-px {
			t.Fatalf("Not(x) at %d = %g, want %g", at, v, 1-px)
		}
		if v := mustInterpret(t, in, And(x, y), at); v != math.Min(px, py) {
			t.Fatalf("And(x, y) at %d = %g, want %g", at, v, math.Min(px, py))
		}
	}
	if v := mustInterpret(t, in, False[deg](), 0); v != 0 {
		t.Fatalf("False = %g", v)
	}
}

func TestUntilBoundary(t *testing.T) {
	in := interp(2)
	p := Var(sig("p", 1, 0))
	q := Var(sig("q", 0, 1))

	v := mustInterpret(t, in, Until(p, q), 0)
	if !near(v, 1, 1e-2) {
		t.Fatalf("p U q at 0 = %g, want ~1", v)
	}
}

func TestUntilRequiresHoldOnPrefix(t *testing.T) {
	in := interp(3)
	p := Var(sig("p", 1, 0.25, 1))
	q := Var(sig("q", 0, 0, 1))

	// q only holds at 2, and p dips to 0.25 on the way there.
	v := mustInterpret(t, in, Until(p, q), 0)
	if !near(v, 0.25, 1e-6) {
		t.Fatalf("p U q at 0 = %g, want 0.25", v)
	}
}

func TestUntilSameOperands(t *testing.T) {
	in := interp(3)
	p := Var(sig("p", 0.4, 0.9, 0.1))
	for at := 0; at < 3; at++ {
		want := mustInterpret(t, in, p, at)
		if v := mustInterpret(t, in, Until(p, p), at); v != want {
			t.Fatalf("p U p at %d = %g, want %g", at, v, want)
		}
	}
}

func TestUntilPastHorizonIsFalse(t *testing.T) {
	in := interp(2)
	q := Var(sig("q", 1, 1, 1))
	if v := mustInterpret(t, in, Eventually(q), 2); v != 0 {
		t.Fatalf("eventually at the horizon = %g, want 0", v)
	}
}

func TestEventuallyAndAlways(t *testing.T) {
	in := interp(4)
	x := Var(sig("x", 1, 1, 0.2, 1))

	if v := mustInterpret(t, in, Always(x), 0); !near(v, 0.2, 1e-9) {
		t.Fatalf("always(x) at 0 = %g, want 0.2", v)
	}
	if v := mustInterpret(t, in, Always(x), 3); !near(v, 1, 1e-9) {
		t.Fatalf("always(x) at 3 = %g, want 1", v)
	}
	if v := mustInterpret(t, in, Eventually(x), 2); !near(v, 1, 1e-9) {
		t.Fatalf("eventually(x) at 2 = %g, want 1", v)
	}
}

func TestNextUnderNonStrictUntil(t *testing.T) {
	in := interp(3)
	x := Var(sig("x", 0, 0.6, 0))
	// ⊥ U x can only be satisfied at t' = t, where the prefix is empty.
	if v := mustInterpret(t, in, Next(x), 0); !near(v, 0, 1e-9) {
		t.Fatalf("next(x) at 0 = %g", v)
	}
	if v := mustInterpret(t, in, Next(x), 1); !near(v, 0.6, 1e-9) {
		t.Fatalf("next(x) at 1 = %g", v)
	}
}

func TestRelations(t *testing.T) {
	in := interp(1)
	cases := []struct {
		name string
		p    Prop[deg]
		want float64
	}{
		{"le equal", Le(sig("x", 2), sig("y", 2)), 1},
		{"le smaller", Le(sig("x", 1), sig("y", 3)), 1},
		{"le larger", Le(sig("x", 3), sig("y", 1)), 0.5},
		{"le both zero", Le(sig("x", 0), sig("y", 0)), 1},
		{"eq both zero", Eq(sig("x", 0), sig("y", 0)), 1},
		{"lt both zero", Lt(sig("x", 0), sig("y", 0)), 0},
		{"eq apart", Eq(sig("x", 3), sig("y", 1)), 0.5},
		{"lt smaller", Lt(sig("x", 1), sig("y", 3)), 0.5},
		{"le zero sum", Le(sig("x", 1), sig("y", -1)), 0},
	}
	for _, c := range cases {
		if v := mustInterpret(t, in, c.p, 0); !near(v, c.want, 1e-12) {
			t.Errorf("%s: %s = %g, want %g", c.name, c.p, v, c.want)
		}
	}
}

func TestOutOfRangePropagates(t *testing.T) {
	in := interp(5)
	x := Var(sig("x", 1, 1))

	_, err := in.Interpret(x, 2)
	var oor *IndexOutOfRangeError
	if !errors.As(err, &oor) {
		t.Fatalf("expected *IndexOutOfRangeError, got %v", err)
	}
	if oor.Index != 2 || oor.Len != 2 || oor.Signal != "x" {
		t.Fatalf("unexpected error fields %+v", oor)
	}

	// Until sweeps to MaxTime, past the end of the signal.
	_, err = in.Interpret(Eventually(x), 0)
	if !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("expected out-of-range from Until, got %v", err)
	}
	if _, ok := err.(*IndexOutOfRangeError); !ok {
		t.Fatalf("Until should not wrap the error, got %T", err)
	}
}

// #endregion interpreter

// #region algebra

func TestDisplay(t *testing.T) {
	x := sig("x", 1)
	y := sig("y", 0)
	cases := []struct {
		p    Prop[deg]
		want string
	}{
		{True[deg](), "⊤"},
		{Var(x), "x"},
		{Var(sig("", 1, 0.5)), "[1, 0.5]"},
		{Le(x, y), "x ≤ y"},
		{Lt(x, y), "x < y"},
		{Eq(x, y), "x = y"},
		{Not(Var(x)), "¬(x)"},
		{And(Var(x), Var(y)), "(x) ∧ (y)"},
		{Until(Var(x), Var(y)), "(x) U (y)"},
		{Always(Var(x)), "¬((⊤) U (¬(x)))"},
		{Or(Var(x), Var(y)), "¬((¬(x)) ∧ (¬(y)))"},
		{Next(Var(x)), "(¬(⊤)) U (x)"},
	}
	for _, c := range cases {
		if got := c.p.String(); got != c.want {
			t.Errorf("got %q, want %q", got, c.want)
		}
	}
}

func TestEqualAndHash(t *testing.T) {
	a := Always(Le(sig("x", 1, 2), sig("y", 2, 2)))
	b := Always(Le(sig("x", 1, 2), sig("y", 2, 2)))
	if !Equal(a, b) {
		t.Fatal("structurally equal formulas compare unequal")
	}
	if Hash(a) != Hash(b) {
		t.Fatal("equal formulas hash differently")
	}

	others := []Prop[deg]{
		Always(Lt(sig("x", 1, 2), sig("y", 2, 2))),
		Always(Le(sig("x", 1, 3), sig("y", 2, 2))),
		Always(Le(sig("z", 1, 2), sig("y", 2, 2))),
		Eventually(Le(sig("x", 1, 2), sig("y", 2, 2))),
		Le(sig("x", 1, 2), sig("y", 2, 2)),
	}
	for _, o := range others {
		if Equal(a, o) {
			t.Errorf("%s should differ from %s", o, a)
		}
		if Hash(a) == Hash(o) {
			t.Errorf("hash collision between %s and %s", o, a)
		}
	}
}

func TestBuildersInferAtomType(t *testing.T) {
	x := VarExpr[deg]{Signal: sig("x", 0.3, 1)}
	top := TrueExpr[deg]{}

	// no explicit instantiation: T comes from the variant values
	p := Or(Implies(x, top), Release(Not(top), Eventually(x)))
	q := Or(Implies(x, top), Release(Not(top), Eventually(x)))
	if !Equal(p, q) || Hash(p) != Hash(q) {
		t.Fatalf("identically built formulas differ: %s", p)
	}
	if v := mustInterpret(t, interp(2), Always(Next(x)), 0); !near(v, 0.3, 1e-6) {
		t.Fatalf("always(next(x)) at 0 = %g", v)
	}
}

func TestVarCopiesSteps(t *testing.T) {
	steps := []deg{0.5, 0.5}
	p := Var(Signal[deg]{Name: "x", Steps: steps})
	steps[0] = 0

	v := mustInterpret(t, interp(2), p, 0)
	if v != 0.5 {
		t.Fatalf("formula saw caller mutation: %g", v)
	}
}

// #endregion algebra

// #region parser

func bindings() map[string]Signal[deg] {
	return map[string]Signal[deg]{
		"a":     sig("", 1, 0),
		"b":     sig("", 0, 1),
		"speed": sig("", 3, 4),
		"limit": sig("", 5, 5),
	}
}

func TestParseRoundTrip(t *testing.T) {
	texts := []string{
		"a",
		"⊤",
		"¬(a)",
		"(a) ∧ (b)",
		"(a) U (b)",
		"speed ≤ limit",
		"¬((⊤) U (¬(speed ≤ limit)))",
		"((a) U (b)) ∧ (¬(speed = limit))",
		"G (a -> F b)",
		"a R b",
		"X (speed < limit) | !a",
		"always(eventually(a) && b)",
	}
	env := bindings()
	for _, text := range texts {
		p, err := Parse(text, env)
		if err != nil {
			t.Fatalf("Parse(%q): %v", text, err)
		}
		rendered := p.String()
		again, err := Parse(rendered, env)
		if err != nil {
			t.Fatalf("Parse(%q) of rendered %q: %v", text, rendered, err)
		}
		if !Equal(p, again) {
			t.Fatalf("%q: reparse of %q is not equal", text, rendered)
		}
		if again.String() != rendered {
			t.Fatalf("%q: rendered %q then %q", text, rendered, again.String())
		}
		if Hash(p) != Hash(again) {
			t.Fatalf("%q: hash changed across round trip", text)
		}
	}
}

func TestParseSugarMatchesBuilders(t *testing.T) {
	env := bindings()
	a := Var(NewSignal("a", env["a"].Steps))
	b := Var(NewSignal("b", env["b"].Steps))

	cases := []struct {
		text string
		want Prop[deg]
	}{
		{"G !(a & b)", Always(Not(And(a, b)))},
		{"eventually b", Eventually(b)},
		{"a -> b", Implies(a, b)},
		{"a | b & a", Or(a, And(b, a))},
		{"a U b U a", Until(Until(a, b), a)},
		{"a R b", Release(a, b)},
		{"next a", Next(a)},
		{"true & false", And(True[deg](), False[deg]())},
	}
	for _, c := range cases {
		got, err := Parse(c.text, env)
		if err != nil {
			t.Fatalf("Parse(%q): %v", c.text, err)
		}
		if !Equal(got, c.want) {
			t.Errorf("Parse(%q) = %s, want %s", c.text, got, c.want)
		}
	}
}

func TestParseErrors(t *testing.T) {
	env := bindings()
	cases := []string{
		"",
		"missing",
		"(a",
		"a b",
		"a ∧",
		"speed ≤",
		"a # b",
	}
	for _, text := range cases {
		_, err := Parse(text, env)
		var pe *ParseError
		if !errors.As(err, &pe) {
			t.Errorf("Parse(%q): expected *ParseError, got %v", text, err)
		}
	}
}

// #endregion parser
