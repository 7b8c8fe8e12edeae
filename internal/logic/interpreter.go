package logic

import (
	"fmt"
	"log"
	"math"

	"github.com/danielpatrickdp/gatekeeper/internal/bounds"
	"github.com/danielpatrickdp/gatekeeper/internal/interval"
)

// Interpreter assigns Gödel fuzzy truth degrees to formulas. It holds no
// state between calls: Interpret is a pure function of (formula, time).
type Interpreter[T Atomic] struct {
	config Config
}

// NewInterpreter creates an interpreter with the given config.
func NewInterpreter[T Atomic](config Config) *Interpreter[T] {
	return &Interpreter[T]{config: config}
}

// Config returns the interpreter's config.
func (in *Interpreter[T]) Config() Config { return in.config }

// #region interpret

// Interpret returns the degree to which p holds at time t.
// An *IndexOutOfRangeError from any signal read is returned unwrapped.
func (in *Interpreter[T]) Interpret(p Prop[T], t interval.Time) (interval.Valuation, error) {
	switch e := p.(type) {
	case TrueExpr[T]:
		return 1, nil
	case VarExpr[T]:
		atom, err := e.Signal.At(t)
		if err != nil {
			return 0, err
		}
		return atom.Val(), nil
	case CmpExpr[T]:
		x, err := e.Left.At(t)
		if err != nil {
			return 0, err
		}
		y, err := e.Right.At(t)
		if err != nil {
			return 0, err
		}
		return compare(e.Rel, x.Val(), y.Val()), nil
	case NotExpr[T]:
		v, err := in.Interpret(e.Inner, t)
		if err != nil {
			return 0, err
		}
		return 1 - v, nil
	case AndExpr[T]:
		l, err := in.Interpret(e.Left, t)
		if err != nil {
			return 0, err
		}
		r, err := in.Interpret(e.Right, t)
		if err != nil {
			return 0, err
		}
		return math.Min(l, r), nil
	case UntilExpr[T]:
		return in.until(e, t)
	}
	return 0, fmt.Errorf("logic: unknown formula variant %T", p)
}

// #endregion interpret

// #region relations

// lessEq is 1 - max(0, (x-y)/(x+y)), clamped to [0, 1].
// When x+y is 0 the quotient is undefined: x <= y is fully true and
// anything else fully false. Two zero readings are therefore fully true.
func lessEq(x, y interval.Valuation) interval.Valuation {
	sum := x + y
	if sum == 0 {
		if x <= y {
			return 1
		}
		return 0
	}
	v := 1 - math.Max(0, (x-y)/sum)
	return math.Max(0, math.Min(1, v))
}

func compare(rel Relation, x, y interval.Valuation) interval.Valuation {
	switch rel {
	case RelEq:
		return math.Min(lessEq(x, y), lessEq(y, x))
	case RelLt:
		eq := math.Min(lessEq(x, y), lessEq(y, x))
		return math.Min(lessEq(x, y), 1-eq)
	default:
		return lessEq(x, y)
	}
}

// #endregion relations

// #region until

// until computes
//
//	sup_{t' in [t, MaxTime)} min(Goal(t'), inf_{t'' in [t, t')} Hold(t''))
//
// with both extrema approximated by bisection. The inner infimum over an
// empty prefix is 1. For t >= MaxTime the outer window is empty and the
// result is the search prior's lower end.
func (in *Interpreter[T]) until(e UntilExpr[T], t interval.Time) (interval.Valuation, error) {
	// p U p: the sweep peaks at t' = t, where the prefix is empty.
	if Equal(e.Hold, e.Goal) {
		return in.Interpret(e.Goal, t)
	}

	outer, err := interval.NewWindow(t, max(t, in.config.MaxTime))
	if err != nil {
		return 0, err
	}

	_, holdTrivial := e.Hold.(TrueExpr[T])
	candidate := func(u UntilExpr[T], tp interval.Time) (interval.Valuation, error) {
		goal, err := in.Interpret(u.Goal, tp)
		if err != nil {
			return 0, err
		}
		if holdTrivial {
			return goal, nil
		}
		prefix, err := interval.NewWindow(t, tp)
		if err != nil {
			return 0, err
		}
		hold, err := bounds.Infimum[Prop[T]](in.config.Bounds, in.Interpret, u.Hold, prefix)
		if err != nil {
			return 0, err
		}
		return math.Min(goal, hold.Value), nil
	}

	est, err := bounds.Supremum[UntilExpr[T]](in.config.Bounds, candidate, e, outer)
	if err != nil {
		return 0, err
	}
	if in.config.Debug {
		log.Printf("[EVAL] %s at %d over %v = %.6f (%d iterations, %d samples)",
			e, t, outer, est.Value, est.Iterations, est.Samples)
	}
	return est.Value, nil
}

// #endregion until
