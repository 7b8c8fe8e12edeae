package logic

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"
)

// #region prop

// Prop is a formula over signals of T. The set of variants is closed; every
// value is immutable once built.
type Prop[T Atomic] interface {
	String() string
	prop(T)
}

// Relation selects a pointwise comparison between two signals.
type Relation int

const (
	RelLe Relation = iota
	RelLt
	RelEq
)

func (r Relation) symbol() string {
	switch r {
	case RelLt:
		return "<"
	case RelEq:
		return "="
	default:
		return "≤"
	}
}

type TrueExpr[T Atomic] struct{}

type VarExpr[T Atomic] struct {
	Signal Signal[T]
}

type CmpExpr[T Atomic] struct {
	Rel         Relation
	Left, Right Signal[T]
}

type NotExpr[T Atomic] struct {
	Inner Prop[T]
}

type AndExpr[T Atomic] struct {
	Left, Right Prop[T]
}

// UntilExpr holds Hold until Goal becomes true.
type UntilExpr[T Atomic] struct {
	Hold, Goal Prop[T]
}

func (TrueExpr[T]) prop(T)  {}
func (VarExpr[T]) prop(T)   {}
func (CmpExpr[T]) prop(T)   {}
func (NotExpr[T]) prop(T)   {}
func (AndExpr[T]) prop(T)   {}
func (UntilExpr[T]) prop(T) {}

func (TrueExpr[T]) String() string { return "⊤" }

func (e VarExpr[T]) String() string { return e.Signal.String() }

func (e CmpExpr[T]) String() string {
	return e.Left.String() + " " + e.Rel.symbol() + " " + e.Right.String()
}

func (e NotExpr[T]) String() string { return "¬(" + e.Inner.String() + ")" }

func (e AndExpr[T]) String() string {
	return "(" + e.Left.String() + ") ∧ (" + e.Right.String() + ")"
}

func (e UntilExpr[T]) String() string {
	return "(" + e.Hold.String() + ") U (" + e.Goal.String() + ")"
}

// #endregion prop

// #region builders

func True[T Atomic]() Prop[T] { return TrueExpr[T]{} }

func False[T Atomic]() Prop[T] { return Not(True[T]()) }

func Var[T Atomic](s Signal[T]) Prop[T] {
	return VarExpr[T]{Signal: NewSignal(s.Name, s.Steps)}
}

func Le[T Atomic](x, y Signal[T]) Prop[T] { return cmp(RelLe, x, y) }
func Lt[T Atomic](x, y Signal[T]) Prop[T] { return cmp(RelLt, x, y) }
func Eq[T Atomic](x, y Signal[T]) Prop[T] { return cmp(RelEq, x, y) }

func cmp[T Atomic](rel Relation, x, y Signal[T]) Prop[T] {
	return CmpExpr[T]{
		Rel:   rel,
		Left:  NewSignal(x.Name, x.Steps),
		Right: NewSignal(y.Name, y.Steps),
	}
}

func Not[T Atomic](p Prop[T]) Prop[T] { return NotExpr[T]{Inner: p} }

func And[T Atomic](p, q Prop[T]) Prop[T] { return AndExpr[T]{Left: p, Right: q} }

func Until[T Atomic](p, q Prop[T]) Prop[T] { return UntilExpr[T]{Hold: p, Goal: q} }

// Or is ¬(¬p ∧ ¬q).
func Or[T Atomic](p, q Prop[T]) Prop[T] { return Not(And(Not(p), Not(q))) }

// Implies is ¬p ∨ q.
func Implies[T Atomic](p, q Prop[T]) Prop[T] { return Or(Not(p), q) }

// Eventually is ⊤ U p.
func Eventually[T Atomic](p Prop[T]) Prop[T] { return Until(True[T](), p) }

// Always is ¬eventually(¬p).
func Always[T Atomic](p Prop[T]) Prop[T] { return Not(Eventually(Not(p))) }

// Next is ⊥ U p.
func Next[T Atomic](p Prop[T]) Prop[T] { return Until(False[T](), p) }

// Release is ¬(¬p U ¬q).
func Release[T Atomic](p, q Prop[T]) Prop[T] { return Not(Until(Not(p), Not(q))) }

// #endregion builders

// #region structure

// Equal compares two formulas by structure and by the values of their
// signals.
func Equal[T Atomic](a, b Prop[T]) bool {
	switch x := a.(type) {
	case TrueExpr[T]:
		_, ok := b.(TrueExpr[T])
		return ok
	case VarExpr[T]:
		y, ok := b.(VarExpr[T])
		return ok && x.Signal.equal(y.Signal)
	case CmpExpr[T]:
		y, ok := b.(CmpExpr[T])
		return ok && x.Rel == y.Rel && x.Left.equal(y.Left) && x.Right.equal(y.Right)
	case NotExpr[T]:
		y, ok := b.(NotExpr[T])
		return ok && Equal(x.Inner, y.Inner)
	case AndExpr[T]:
		y, ok := b.(AndExpr[T])
		return ok && Equal(x.Left, y.Left) && Equal(x.Right, y.Right)
	case UntilExpr[T]:
		y, ok := b.(UntilExpr[T])
		return ok && Equal(x.Hold, y.Hold) && Equal(x.Goal, y.Goal)
	}
	return false
}

// Hash is a structural hash consistent with Equal.
func Hash[T Atomic](p Prop[T]) uint64 {
	d := xxhash.New()
	hashInto(d, p)
	return d.Sum64()
}

const (
	tagTrue byte = iota + 1
	tagVar
	tagCmp
	tagNot
	tagAnd
	tagUntil
)

func hashInto[T Atomic](d *xxhash.Digest, p Prop[T]) {
	switch x := p.(type) {
	case TrueExpr[T]:
		d.Write([]byte{tagTrue})
	case VarExpr[T]:
		d.Write([]byte{tagVar})
		hashSignal(d, x.Signal)
	case CmpExpr[T]:
		d.Write([]byte{tagCmp, byte(x.Rel)})
		hashSignal(d, x.Left)
		hashSignal(d, x.Right)
	case NotExpr[T]:
		d.Write([]byte{tagNot})
		hashInto(d, x.Inner)
	case AndExpr[T]:
		d.Write([]byte{tagAnd})
		hashInto(d, x.Left)
		hashInto(d, x.Right)
	case UntilExpr[T]:
		d.Write([]byte{tagUntil})
		hashInto(d, x.Hold)
		hashInto(d, x.Goal)
	}
}

func hashSignal[T Atomic](d *xxhash.Digest, s Signal[T]) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(len(s.Name)))
	d.Write(buf[:])
	d.WriteString(s.Name)
	binary.LittleEndian.PutUint64(buf[:], uint64(len(s.Steps)))
	d.Write(buf[:])
	for _, step := range s.Steps {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(step.Val()))
		d.Write(buf[:])
	}
}

// #endregion structure
