package interval

import "fmt"

// Time indexes one step of a recorded trace.
type Time = int

// Valuation is a degree of truth, nominally in [0, 1].
type Valuation = float64

// #region bound-type

// BoundType selects which extremum a search is after.
type BoundType int

const (
	Supremum BoundType = iota // least upper bound
	Infimum                   // greatest lower bound
)

func (b BoundType) String() string {
	switch b {
	case Supremum:
		return "supremum"
	case Infimum:
		return "infimum"
	default:
		return fmt.Sprintf("BoundType(%d)", int(b))
	}
}

// #endregion bound-type

// #region time-window

// TimeWindow is the half-open range of steps [Start, End).
// Start == End is the empty window.
type TimeWindow struct {
	start Time
	end   Time
}

// NewWindow builds a window; start > end is an *InvalidWindowError.
func NewWindow(start, end Time) (TimeWindow, error) {
	if start > end {
		return TimeWindow{}, &InvalidWindowError{Start: start, End: end}
	}
	return TimeWindow{start: start, end: end}, nil
}

func (w TimeWindow) Start() Time { return w.start }
func (w TimeWindow) End() Time   { return w.end }

// Len is the number of steps in the window.
func (w TimeWindow) Len() int { return w.end - w.start }

// Empty reports whether the window holds no steps.
func (w TimeWindow) Empty() bool { return w.start == w.end }

// Span is the closed real range [Start, End-1] covered by the window's steps.
// It must not be called on an empty window.
func (w TimeWindow) Span() Interval {
	return Interval{lower: float64(w.start), upper: float64(w.end - 1)}
}

func (w TimeWindow) String() string {
	return fmt.Sprintf("[%d, %d)", w.start, w.end)
}

// #endregion time-window
