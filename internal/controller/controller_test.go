package controller

import (
	"context"
	"errors"
	"testing"

	"github.com/danielpatrickdp/gatekeeper/internal/gate"
	"github.com/danielpatrickdp/gatekeeper/internal/traffic"
)

func TestRandomIsSeeded(t *testing.T) {
	a, b := NewRandom(7), NewRandom(7)
	for i := 0; i < 50; i++ {
		if x, y := a.SelectAction(traffic.Observation{}), b.SelectAction(traffic.Observation{}); x != y {
			t.Fatalf("proposal %d differs: %s vs %s", i, x, y)
		}
	}
	if a.Proposals() != 50 {
		t.Fatalf("expected 50 proposals, got %d", a.Proposals())
	}
	a.Reset()
	if a.Proposals() != 0 {
		t.Fatal("Reset should clear the proposal count")
	}
}

func TestRandomCoversAllLights(t *testing.T) {
	r := NewRandom(3)
	var seen traffic.Lights
	for i := 0; i < 200; i++ {
		seen |= r.SelectAction(traffic.Observation{})
	}
	if seen != traffic.NewLights(traffic.AllLights[:]...) {
		t.Fatalf("expected every light to turn green at some point, got %s", seen)
	}
}

// #region gatekeeper-scenarios

func crashingWorld() *traffic.Simulation {
	cfg := traffic.DefaultConfig()
	cfg.MaxCars = 0
	in := traffic.NewIntersection(cfg)
	in.SetLights(traffic.NewLights(traffic.N, traffic.E))
	in.SpawnCar(traffic.N)
	in.Advance()
	in.SpawnCar(traffic.E)
	return traffic.NewSimulationWith(cfg, in)
}

func gateConfig() gate.GateConfig {
	cfg := gate.DefaultGateConfig()
	cfg.Horizon = 8
	cfg.MaxAttempts = 5
	return cfg
}

func TestGatekeeperRejectsCrashingLights(t *testing.T) {
	spec, err := traffic.Spec(traffic.DefaultSpec)
	if err != nil {
		t.Fatalf("Spec: %v", err)
	}
	world := crashingWorld()
	policy := &Fixed{Action: traffic.NewLights(traffic.N, traffic.E)}

	gk := gate.New[traffic.Lights, traffic.Observation, traffic.TrajectoryEntry](gateConfig(), world, policy, spec)
	result, err := gk.Run(context.Background())

	if !errors.Is(err, gate.ErrNoSafeAction) {
		t.Fatalf("expected ErrNoSafeAction, got %v (result %+v)", err, result)
	}
	if world.Intersection().NumCrashes() != 0 || len(world.Intersection().Cars()) != 2 {
		t.Fatal("a rejected action must not touch the world")
	}
}

func TestGatekeeperCommitsSafeLights(t *testing.T) {
	spec, err := traffic.Spec(traffic.DefaultSpec)
	if err != nil {
		t.Fatalf("Spec: %v", err)
	}
	world := crashingWorld()
	// N only: the E car waits at its stop line.
	policy := &Fixed{Action: traffic.NewLights(traffic.N)}

	gk := gate.New[traffic.Lights, traffic.Observation, traffic.TrajectoryEntry](gateConfig(), world, policy, spec)
	result, err := gk.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Attempts != 1 || result.Action != traffic.NewLights(traffic.N) {
		t.Fatalf("expected first proposal committed, got %+v", result)
	}
	if world.Intersection().Green() != traffic.NewLights(traffic.N) {
		t.Fatal("world should run under the committed lights")
	}
	if world.Intersection().NumCrashes() != 0 {
		t.Fatal("committed action crashed")
	}
}

func TestGatekeeperEmptyRoadCommitsRandom(t *testing.T) {
	spec, err := traffic.Spec(traffic.DefaultSpec)
	if err != nil {
		t.Fatalf("Spec: %v", err)
	}
	cfg := traffic.DefaultConfig()
	cfg.MaxCars = 0
	world := traffic.NewSimulation(cfg)

	gk := gate.New[traffic.Lights, traffic.Observation, traffic.TrajectoryEntry](gateConfig(), world, NewRandom(1), spec)
	result, err := gk.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Attempts != 1 || result.World.Degree != 1 {
		t.Fatalf("an empty road is always safe, got %+v", result)
	}
}

// #endregion gatekeeper-scenarios
