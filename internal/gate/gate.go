package gate

import (
	"fmt"

	"github.com/danielpatrickdp/gatekeeper/internal/eval"
)

// #region gate
// Gate turns evaluation results into commit/reject decisions.
type Gate struct {
	config GateConfig
}

// NewGate creates a gate with the given configuration.
func NewGate(config GateConfig) *Gate {
	return &Gate{config: config}
}

// Evaluate judges the result of a single validation stage. An unsafe
// trajectory is a hard veto; otherwise the stage passes.
func (g *Gate) Evaluate(stage Stage, result eval.EvalResult) GateDecision {
	if !result.Passed {
		veto := VetoSignal{Type: vetoFor(stage), Reason: result.Reason}
		return GateDecision{
			Action:      "reject",
			Reason:      fmt.Sprintf("hard veto (%s): %s", stage, veto.Reason),
			Vetoed:      true,
			VetoSignals: []VetoSignal{veto},
			Degree:      result.Degree,
		}
	}
	return GateDecision{
		Action: "commit",
		Reason: fmt.Sprintf("passed %s: degree=%.6f", stage, result.Degree),
		Degree: result.Degree,
	}
}

// Decide judges a complete shadow/world pair the way a round does: the world
// result only matters once the shadow passed.
func (g *Gate) Decide(shadow eval.EvalResult, world *eval.EvalResult) GateDecision {
	d := g.Evaluate(StageValidateShadow, shadow)
	if d.Vetoed {
		return d
	}
	if world == nil {
		return GateDecision{
			Action: "reject",
			Reason: "shadow passed but no world trajectory was recorded",
			Degree: shadow.Degree,
		}
	}
	return g.Evaluate(StageValidateWorld, *world)
}

// #endregion gate

// #region helpers
func vetoFor(stage Stage) VetoType {
	if stage == StageValidateWorld {
		return VetoWorldUnsafe
	}
	return VetoShadowUnsafe
}

// #endregion helpers
