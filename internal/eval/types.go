package eval

import "github.com/danielpatrickdp/gatekeeper/internal/logic"

// #region eval-config
// EvalConfig holds the interpreter settings and the safety threshold.
type EvalConfig struct {
	Logic   logic.Config // MaxTime 0 means the trajectory length
	Epsilon float64      // pass when the mean degree exceeds 1 - Epsilon
	Workers int          // concurrent per-step interpretations, <= 0 means 1
}

// DefaultEvalConfig returns the defaults used by the gatekeeper.
func DefaultEvalConfig() EvalConfig {
	return EvalConfig{
		Logic:   logic.DefaultConfig(),
		Epsilon: 1e-5,
		Workers: 4,
	}
}

// #endregion eval-config

// #region eval-metric
// EvalMetric captures a single measurement over a trajectory.
type EvalMetric struct {
	Name  string
	Value float64
	Pass  bool
}

// #endregion eval-metric

// #region eval-result
// EvalResult is the safety verdict for one trajectory.
type EvalResult struct {
	Passed  bool
	Degree  float64 // mean truth degree of the formula over all steps
	Steps   int
	Degrees []float64 // truth degree of the formula at each step
	Metrics []EvalMetric
	Reason  string
}

// #endregion eval-result
