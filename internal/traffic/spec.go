package traffic

import (
	"fmt"

	"github.com/danielpatrickdp/gatekeeper/internal/gate"
	"github.com/danielpatrickdp/gatekeeper/internal/logic"
)

// SafeSignal is the name formulas use for the per-step crash-free degree.
const SafeSignal = "safe"

// DefaultSpec requires every remaining step of the horizon to be crash free.
const DefaultSpec = "always(safe)"

// Bindings names the trajectory as the signal "safe".
func Bindings(trajectory []TrajectoryEntry) map[string]logic.Signal[TrajectoryEntry] {
	return map[string]logic.Signal[TrajectoryEntry]{
		SafeSignal: logic.NewSignal(SafeSignal, trajectory),
	}
}

// Spec compiles formula text into a gate.SpecFunc. The text is checked once
// here so that instantiating it per trajectory cannot fail.
func Spec(text string) (gate.SpecFunc[TrajectoryEntry], error) {
	if _, err := logic.Parse(text, Bindings(nil)); err != nil {
		return nil, fmt.Errorf("safety spec: %w", err)
	}
	return func(trajectory []TrajectoryEntry) logic.Prop[TrajectoryEntry] {
		return logic.MustParse(text, Bindings(trajectory))
	}, nil
}
