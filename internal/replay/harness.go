package replay

import (
	"context"
	"fmt"

	"github.com/danielpatrickdp/gatekeeper/internal/eval"
	"github.com/danielpatrickdp/gatekeeper/internal/gate"
	"github.com/danielpatrickdp/gatekeeper/internal/traffic"
)

// #region types
// Step is one recorded proposal: the trajectory its shadow produced and, if
// it got that far, the trajectory the world produced.
type Step struct {
	StepID string
	Action string
	Shadow []traffic.TrajectoryEntry
	World  []traffic.TrajectoryEntry // nil when the world was never run
}

// ReplayConfig bundles the gate and the safety formula for a replay run.
type ReplayConfig struct {
	GateConfig gate.GateConfig
	Spec       string
}

// DefaultReplayConfig returns the gatekeeper defaults with the crash-free
// formula.
func DefaultReplayConfig() ReplayConfig {
	return ReplayConfig{
		GateConfig: gate.DefaultGateConfig(),
		Spec:       traffic.DefaultSpec,
	}
}

// ReplayResult captures the outcome of judging one recorded step.
type ReplayResult struct {
	StepID string
	Action string // "commit" | "shadow_reject" | "world_reject" | "incomplete"
	Reason string

	Shadow   eval.EvalResult
	World    *eval.EvalResult // nil if the shadow was rejected or no world was recorded
	Decision gate.GateDecision
}

// ReplaySummary provides aggregate stats from a replay run.
type ReplaySummary struct {
	TotalSteps    int
	Commits       int
	ShadowRejects int
	WorldRejects  int
	Incomplete    int
	CommitRate    float64
}

// #endregion types

// #region replay
// Replay re-judges recorded trajectories with the current gate and formula:
// shadow -> world -> commit/reject. It never runs a simulation.
func Replay(ctx context.Context, steps []Step, config ReplayConfig) ([]ReplayResult, error) {
	spec, err := traffic.Spec(config.Spec)
	if err != nil {
		return nil, err
	}
	gateInst := gate.NewGate(config.GateConfig)
	harness := eval.NewEvalHarness[traffic.TrajectoryEntry](config.GateConfig.Eval)

	results := make([]ReplayResult, 0, len(steps))
	for _, step := range steps {
		// 1. Shadow
		shadow, err := harness.Run(ctx, step.Shadow, spec(step.Shadow))
		if err != nil {
			return results, fmt.Errorf("step %s shadow: %w", step.StepID, err)
		}
		if !shadow.Passed {
			decision := gateInst.Decide(shadow, nil)
			results = append(results, ReplayResult{
				StepID:   step.StepID,
				Action:   "shadow_reject",
				Reason:   decision.Reason,
				Shadow:   shadow,
				Decision: decision,
			})
			continue
		}

		// 2. World
		if step.World == nil {
			decision := gateInst.Decide(shadow, nil)
			results = append(results, ReplayResult{
				StepID:   step.StepID,
				Action:   "incomplete",
				Reason:   decision.Reason,
				Shadow:   shadow,
				Decision: decision,
			})
			continue
		}
		world, err := harness.Run(ctx, step.World, spec(step.World))
		if err != nil {
			return results, fmt.Errorf("step %s world: %w", step.StepID, err)
		}

		// 3. Decide
		decision := gateInst.Decide(shadow, &world)
		action := "commit"
		if decision.Action != "commit" {
			action = "world_reject"
		}
		results = append(results, ReplayResult{
			StepID:   step.StepID,
			Action:   action,
			Reason:   decision.Reason,
			Shadow:   shadow,
			World:    &world,
			Decision: decision,
		})
	}
	return results, nil
}

// Summarize computes aggregate stats from replay results.
func Summarize(results []ReplayResult) ReplaySummary {
	s := ReplaySummary{TotalSteps: len(results)}
	for _, r := range results {
		switch r.Action {
		case "commit":
			s.Commits++
		case "shadow_reject":
			s.ShadowRejects++
		case "world_reject":
			s.WorldRejects++
		case "incomplete":
			s.Incomplete++
		}
	}
	if s.TotalSteps > 0 {
		s.CommitRate = float64(s.Commits) / float64(s.TotalSteps)
	}
	return s
}

// #endregion replay
