package controller

import (
	"math/rand/v2"

	"github.com/danielpatrickdp/gatekeeper/internal/gate"
	"github.com/danielpatrickdp/gatekeeper/internal/traffic"
)

var (
	_ gate.Policy[traffic.Lights, traffic.Observation] = (*Random)(nil)
	_ gate.Policy[traffic.Lights, traffic.Observation] = (*Fixed)(nil)
)

// #region random
// Random flips an independent coin per light. It ignores the observation.
type Random struct {
	seed      uint64
	rng       *rand.Rand
	proposals int
}

// NewRandom creates a seeded random policy.
func NewRandom(seed uint64) *Random {
	return &Random{
		seed: seed,
		rng:  rand.New(rand.NewPCG(seed, ^seed)),
	}
}

// SelectAction proposes a random green set.
func (r *Random) SelectAction(traffic.Observation) traffic.Lights {
	r.proposals++
	var set traffic.Lights
	for _, l := range traffic.AllLights {
		if r.rng.IntN(2) == 1 {
			set = set.With(l)
		}
	}
	return set
}

// Reset clears the per-round proposal count. The random stream continues so
// a new round does not repeat the proposals of the last one.
func (r *Random) Reset() { r.proposals = 0 }

// Proposals is the number of actions proposed since the last Reset.
func (r *Random) Proposals() int { return r.proposals }

// #endregion random

// #region fixed
// Fixed always proposes the same lights.
type Fixed struct {
	Action traffic.Lights
}

func (f *Fixed) SelectAction(traffic.Observation) traffic.Lights { return f.Action }

func (f *Fixed) Reset() {}

// #endregion fixed
