package interval

import (
	"errors"
	"fmt"
	"math"
)

// #region errors

// ErrInvalid is matched by both interval and window construction failures.
var ErrInvalid = errors.New("invalid interval")

// InvalidIntervalError reports an interval whose lower bound exceeds its upper bound.
type InvalidIntervalError struct {
	Lower float64
	Upper float64
}

func (e *InvalidIntervalError) Error() string {
	return fmt.Sprintf("interval: lower bound %g is greater than upper bound %g", e.Lower, e.Upper)
}

func (e *InvalidIntervalError) Is(target error) bool { return target == ErrInvalid }

// InvalidWindowError reports a time window whose start is after its end.
type InvalidWindowError struct {
	Start Time
	End   Time
}

func (e *InvalidWindowError) Error() string {
	return fmt.Sprintf("time window: start %d is greater than end %d", e.Start, e.End)
}

func (e *InvalidWindowError) Is(target error) bool { return target == ErrInvalid }

// #endregion errors

// #region interval

// Interval is a closed range [Lower, Upper] with Lower <= Upper.
// The zero value is the degenerate interval [0, 0].
type Interval struct {
	lower float64
	upper float64
}

// New builds an interval. It never reorders its arguments: lower > upper, or
// either bound being NaN, is an *InvalidIntervalError.
func New(lower, upper float64) (Interval, error) {
	if math.IsNaN(lower) || math.IsNaN(upper) || lower > upper {
		return Interval{}, &InvalidIntervalError{Lower: lower, Upper: upper}
	}
	return Interval{lower: lower, upper: upper}, nil
}

// Must is New for bounds known to be ordered. It panics otherwise.
func Must(lower, upper float64) Interval {
	iv, err := New(lower, upper)
	if err != nil {
		panic(err)
	}
	return iv
}

// Full spans every finite float64.
func Full() Interval {
	return Interval{lower: -math.MaxFloat64, upper: math.MaxFloat64}
}

// Unit is [0, 1], the range of a well-formed valuation.
func Unit() Interval {
	return Interval{lower: 0, upper: 1}
}

func (iv Interval) Lower() float64 { return iv.lower }
func (iv Interval) Upper() float64 { return iv.upper }

// Width is Upper - Lower. It may be +Inf for very wide intervals.
func (iv Interval) Width() float64 { return iv.upper - iv.lower }

// Contains reports whether x lies in the closed interval.
func (iv Interval) Contains(x float64) bool {
	return iv.lower <= x && x <= iv.upper
}

// Midpoint is SafeMidpoint of the bounds.
func (iv Interval) Midpoint() float64 {
	return SafeMidpoint(iv.lower, iv.upper)
}

// Split bisects the interval at its midpoint.
func (iv Interval) Split() (Interval, Interval) {
	mid := iv.Midpoint()
	return Interval{lower: iv.lower, upper: mid}, Interval{lower: mid, upper: iv.upper}
}

// Intersect narrows iv by other. Disjoint inputs yield an *InvalidIntervalError
// carrying the crossed bounds so callers can see how far they crossed.
func (iv Interval) Intersect(other Interval) (Interval, error) {
	return New(math.Max(iv.lower, other.lower), math.Min(iv.upper, other.upper))
}

func (iv Interval) String() string {
	return fmt.Sprintf("[%g, %g]", iv.lower, iv.upper)
}

// #endregion interval

// #region midpoint

// SafeMidpoint returns a finite midpoint of [lower, upper] for finite
// lower <= upper, including bounds at the extremes of the float64 range.
// The result is always clamped into [lower, upper].
func SafeMidpoint(lower, upper float64) float64 {
	d := upper - lower
	var mid float64
	if math.IsInf(d, 0) {
		// upper - lower overflowed; halve first.
		mid = lower/2 + upper/2
	} else {
		mid = lower + d/2
	}
	return math.Max(lower, math.Min(upper, mid))
}

// #endregion midpoint
