package traffic

import (
	"fmt"
	"math/rand/v2"

	"github.com/danielpatrickdp/gatekeeper/internal/gate"
)

// Simulation drives an Intersection with random arrivals. It implements
// gate.Environment with Lights as the action.
type Simulation struct {
	config       Config
	intersection *Intersection
	src          *rand.PCG
	rng          *rand.Rand
}

var _ gate.Environment[Lights, Observation, TrajectoryEntry] = (*Simulation)(nil)

// NewSimulation creates a simulation over an empty intersection.
func NewSimulation(config Config) *Simulation {
	return NewSimulationWith(config, NewIntersection(config))
}

// NewSimulationWith wraps an existing intersection, e.g. one with cars
// already placed.
func NewSimulationWith(config Config, intersection *Intersection) *Simulation {
	src := rand.NewPCG(config.Seed, config.Seed^0x9e3779b97f4a7c15)
	return &Simulation{
		config:       config,
		intersection: intersection,
		src:          src,
		rng:          rand.New(src),
	}
}

// RestoreSimulation resumes a simulation saved with State. The config seed
// is ignored in favor of the saved random stream.
func RestoreSimulation(config Config, state WorldState) (*Simulation, error) {
	sim := NewSimulationWith(config, RestoreIntersection(config, state))
	if len(state.RNG) > 0 {
		if err := sim.src.UnmarshalBinary(state.RNG); err != nil {
			return nil, fmt.Errorf("restore rng: %w", err)
		}
	}
	return sim, nil
}

// State captures the simulation for RestoreSimulation.
func (s *Simulation) State() (WorldState, error) {
	rng, err := s.src.MarshalBinary()
	if err != nil {
		return WorldState{}, fmt.Errorf("encode rng: %w", err)
	}
	in := s.intersection
	return WorldState{
		Green:      in.green,
		Cars:       in.Cars(),
		NextID:     in.nextID,
		Crashes:    in.crashes,
		Throughput: in.throughput,
		RNG:        rng,
	}, nil
}

// Intersection exposes the simulated intersection.
func (s *Simulation) Intersection() *Intersection { return s.intersection }

// Apply switches the lights.
func (s *Simulation) Apply(action Lights) {
	s.intersection.SetLights(action)
}

// Snapshot copies the intersection and the random stream, so the copy
// replays exactly what the original would do next.
func (s *Simulation) Snapshot() gate.Environment[Lights, Observation, TrajectoryEntry] {
	src := *s.src
	return &Simulation{
		config:       s.config,
		intersection: s.intersection.Clone(),
		src:          &src,
		rng:          rand.New(&src),
	}
}

// Observe reports the lights, the cars on each approach and how many of
// them face a red light.
func (s *Simulation) Observe() Observation {
	obs := Observation{
		Green:   s.intersection.Green(),
		Crashes: s.intersection.NumCrashes(),
	}
	for _, c := range s.intersection.cars {
		obs.Cars[c.Light]++
		if !obs.Green.Has(c.Light) {
			obs.Waiting[c.Light]++
		}
	}
	return obs
}

// RunRecordingTrajectory holds action for horizon steps. Each step drives
// DriveStepsPerLightswitch advances and records the crashes and throughput
// that occurred during it.
func (s *Simulation) RunRecordingTrajectory(action Lights, horizon int) []TrajectoryEntry {
	s.Apply(action)
	trajectory := make([]TrajectoryEntry, 0, horizon)
	crashes, throughput := s.intersection.NumCrashes(), s.intersection.TotalThroughput()
	for range horizon {
		s.drive()
		entry := TrajectoryEntry{
			NumCrashesLocal:   s.intersection.NumCrashes() - crashes,
			NumCarsThroughput: s.intersection.TotalThroughput() - throughput,
		}
		trajectory = append(trajectory, entry)
		crashes, throughput = s.intersection.NumCrashes(), s.intersection.TotalThroughput()
	}
	return trajectory
}

func (s *Simulation) drive() {
	for range s.config.DriveStepsPerLightswitch {
		if s.rng.IntN(2) == 0 {
			s.spawnRandomCar()
		}
		s.intersection.Advance()
	}
}

func (s *Simulation) spawnRandomCar() {
	if s.rng.IntN(2) == 0 && len(s.intersection.cars) < s.config.MaxCars {
		s.intersection.SpawnCar(AllLights[s.rng.IntN(len(AllLights))])
	}
}
