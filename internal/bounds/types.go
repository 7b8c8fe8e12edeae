package bounds

import (
	"fmt"

	"github.com/danielpatrickdp/gatekeeper/internal/interval"
)

// #region evaluator

// Evaluator is a pure function of (formula, time). The approximator never
// assumes anything else about it.
type Evaluator[F any] func(formula F, t interval.Time) (interval.Valuation, error)

// #endregion evaluator

// #region config

// Config controls a single bound search.
type Config struct {
	Epsilon       float64           // stop when upper - lower < Epsilon
	MaxIterations int               // bisection budget, 0 = unbounded
	Prior         interval.Interval // value range the function can attain
	Lipschitz     float64           // max |f(t+1) - f(t)|, 0 = unknown
	Debug         bool

	// Observe, when set, sees global_bound after every tightening.
	Observe func(iteration int, global interval.Interval)
}

// DefaultConfig returns the internal defaults: EPSILON 1e-6, a 22000-step
// budget and a prior covering every finite float64.
func DefaultConfig() Config {
	return Config{
		Epsilon:       1e-6,
		MaxIterations: 22000,
		Prior:         interval.Full(),
	}
}

// #endregion config

// #region estimate

// Estimate is the outcome of one search.
type Estimate struct {
	Kind       interval.BoundType
	Value      interval.Valuation // safe end of Bound: Lower for Supremum, Upper for Infimum
	Bound      interval.Interval  // final global_bound
	Iterations int                // bisections performed
	Samples    int                // distinct steps evaluated
	Converged  bool
	Empty      bool // window had no steps; Value is the no-evidence sentinel
	Warning    *NonConvergenceWarning
}

// #endregion estimate

// #region warning

// NonConvergenceWarning reports a search that stopped before its bound
// narrowed below Epsilon. It is not fatal: the Estimate still carries the
// best bound found.
type NonConvergenceWarning struct {
	Kind       interval.BoundType
	Window     interval.TimeWindow
	Bound      interval.Interval
	Iterations int
	Reason     string
}

const (
	reasonBudget  = "iteration budget exhausted"
	reasonCrossed = "sampled value crossed global bound"
)

func (w *NonConvergenceWarning) Error() string {
	return fmt.Sprintf("%s over %v did not converge after %d iterations (%s): bound %v",
		w.Kind, w.Window, w.Iterations, w.Reason, w.Bound)
}

// #endregion warning
