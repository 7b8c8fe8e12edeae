package traffic

import (
	"errors"
	"slices"
	"testing"

	"github.com/danielpatrickdp/gatekeeper/internal/logic"
)

var perpendicularPairs = [][2]Light{
	{N, E}, {E, N}, {S, E}, {E, S},
	{N, W}, {W, N}, {S, W}, {W, S},
}

func greenIntersection(ls ...Light) *Intersection {
	in := NewIntersection(DefaultConfig())
	in.SetLights(NewLights(ls...))
	return in
}

// #region intersection-tests

func TestAdvanceWithOneCrash(t *testing.T) {
	cfg := DefaultConfig()
	for _, pair := range perpendicularPairs {
		in := greenIntersection(pair[0], pair[1])
		in.SpawnCar(pair[0])
		in.Advance()
		in.SpawnCar(pair[1])
		for range cfg.LightCoord + 3 {
			in.Advance()
		}
		if in.NumCrashes() != 1 {
			t.Errorf("%v/%v: expected 1 crash, got %d", pair[0], pair[1], in.NumCrashes())
		}
		if len(in.Cars()) != 0 {
			t.Errorf("%v/%v: crashed cars should be removed, %d left", pair[0], pair[1], len(in.Cars()))
		}
	}
}

func TestAdvanceWithTwoCrashes(t *testing.T) {
	cfg := DefaultConfig()
	for _, pair := range perpendicularPairs {
		in := greenIntersection(pair[0], pair[1])
		in.SpawnCar(pair[0])
		in.Advance()
		in.SpawnCar(pair[0])
		in.SpawnCar(pair[1])
		in.Advance()
		in.SpawnCar(pair[1])
		for range cfg.RoadLength - 2 {
			in.Advance()
		}
		if in.NumCrashes() != 2 {
			t.Errorf("%v/%v: expected 2 crashes, got %d", pair[0], pair[1], in.NumCrashes())
		}
		if len(in.Cars()) != 0 {
			t.Errorf("%v/%v: expected all 4 cars removed, %d left", pair[0], pair[1], len(in.Cars()))
		}
	}
}

func TestCrashLeavesBystander(t *testing.T) {
	cfg := DefaultConfig()
	for _, pair := range perpendicularPairs {
		in := greenIntersection(pair[0], pair[1])
		in.SpawnCar(pair[0])
		in.Advance()
		in.SpawnCar(pair[1])
		bystander := in.SpawnCar(pair[0])
		for range cfg.RoadLength - 2 {
			in.Advance()
		}
		cars := in.Cars()
		if len(cars) != 1 || cars[0].ID != bystander.ID || cars[0].Light != pair[0] {
			t.Errorf("%v/%v: expected only the bystander left, got %+v", pair[0], pair[1], cars)
		}
	}
}

func TestCarLeavesRoad(t *testing.T) {
	cfg := DefaultConfig()
	for _, l := range AllLights {
		in := greenIntersection(l)
		in.SpawnCar(l)
		for range cfg.RoadLength {
			in.Advance()
		}
		if len(in.Cars()) != 0 {
			t.Errorf("%v: car should have left the road", l)
		}
		if in.TotalThroughput() != 1 {
			t.Errorf("%v: expected throughput 1, got %d", l, in.TotalThroughput())
		}
	}
}

func TestRedLightHoldsCars(t *testing.T) {
	in := greenIntersection(N)
	in.SpawnCar(E)
	for range 20 {
		in.Advance()
	}
	cars := in.Cars()
	if len(cars) != 1 || cars[0].Position != 0 {
		t.Fatalf("car on red should wait at 0, got %+v", cars)
	}
}

func TestParallelApproachesNeverCrash(t *testing.T) {
	in := greenIntersection(N, S)
	in.SpawnCar(N)
	in.Advance()
	in.SpawnCar(S)
	for range 12 {
		in.Advance()
	}
	if in.NumCrashes() != 0 || in.TotalThroughput() != 2 {
		t.Fatalf("expected 0 crashes and 2 through, got %d and %d", in.NumCrashes(), in.TotalThroughput())
	}
}

func TestCloneIsIndependent(t *testing.T) {
	in := greenIntersection(N)
	in.SpawnCar(N)
	cp := in.Clone()
	cp.Advance()
	cp.SpawnCar(S)

	if in.Cars()[0].Position != 0 || len(in.Cars()) != 1 {
		t.Fatalf("clone mutated the original: %+v", in.Cars())
	}
}

// #endregion intersection-tests

// #region simulation-tests

func TestRecordedCrashAtConflictStep(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxCars = 0
	cfg.DriveStepsPerLightswitch = 1

	in := greenIntersection(N, E)
	in.SpawnCar(N)
	in.Advance()
	in.SpawnCar(E)
	sim := NewSimulationWith(cfg, in)

	traj := sim.RunRecordingTrajectory(NewLights(N, E), 8)
	if len(traj) != 8 {
		t.Fatalf("expected 8 entries, got %d", len(traj))
	}
	for i, e := range traj {
		want := 0
		if i == 4 {
			want = 1
		}
		if e.NumCrashesLocal != want {
			t.Fatalf("entry %d: expected %d crashes, got %s", i, want, e)
		}
	}
	if traj[4].Val() != 0.5 {
		t.Fatalf("crash step should have degree 0.5, got %g", traj[4].Val())
	}
	if sim.Intersection().NumCrashes() != 1 || len(sim.Intersection().Cars()) != 0 {
		t.Fatal("expected one crash with both cars removed")
	}
}

func TestSnapshotReplaysSameFuture(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Seed = 42
	world := NewSimulation(cfg)
	world.RunRecordingTrajectory(NewLights(N, S), 5)

	carsBefore := world.Intersection().Cars()
	shadow := world.Snapshot()
	action := NewLights(E, W)
	predicted := shadow.RunRecordingTrajectory(action, 30)

	if !slices.Equal(world.Intersection().Cars(), carsBefore) {
		t.Fatal("running the shadow changed the world")
	}
	actual := world.RunRecordingTrajectory(action, 30)
	if !slices.Equal(predicted, actual) {
		t.Fatalf("shadow and world diverged:\n%v\n%v", predicted, actual)
	}
}

func TestRestoreResumesSameFuture(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Seed = 7
	world := NewSimulation(cfg)
	world.RunRecordingTrajectory(NewLights(N), 12)

	state, err := world.State()
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	cfg.Seed = 99 // ignored once the stream is restored
	resumed, err := RestoreSimulation(cfg, state)
	if err != nil {
		t.Fatalf("RestoreSimulation: %v", err)
	}
	if resumed.Intersection().Green() != NewLights(N) {
		t.Fatalf("lights not restored: %v", resumed.Intersection().Green())
	}
	if !slices.Equal(resumed.Intersection().Cars(), world.Intersection().Cars()) {
		t.Fatal("cars not restored")
	}

	action := NewLights(S, W)
	want := world.RunRecordingTrajectory(action, 20)
	got := resumed.RunRecordingTrajectory(action, 20)
	if !slices.Equal(got, want) {
		t.Fatalf("restored simulation diverged:\n%v\n%v", got, want)
	}
	if resumed.Intersection().TotalThroughput() != world.Intersection().TotalThroughput() {
		t.Fatal("throughput counters diverged")
	}

	if _, err := RestoreSimulation(cfg, WorldState{RNG: []byte("garbage")}); err == nil {
		t.Fatal("expected error for a corrupt rng state")
	}
}

func TestSpawnsRespectMaxCars(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxCars = 3
	sim := NewSimulation(cfg)
	sim.RunRecordingTrajectory(0, 200)

	if n := len(sim.Intersection().Cars()); n > 3 {
		t.Fatalf("expected at most 3 cars, got %d", n)
	}
	obs := sim.Observe()
	total := 0
	for _, n := range obs.Cars {
		total += n
	}
	if total != len(sim.Intersection().Cars()) {
		t.Fatalf("observation counts %d cars, intersection has %d", total, len(sim.Intersection().Cars()))
	}
}

func TestObserveCountsOnlyRedApproachesAsWaiting(t *testing.T) {
	sim := NewSimulationWith(DefaultConfig(), greenIntersection(N))
	sim.Intersection().SpawnCar(N)
	sim.Intersection().SpawnCar(E)
	sim.Intersection().SpawnCar(E)

	obs := sim.Observe()
	if obs.Cars[N] != 1 || obs.Cars[E] != 2 {
		t.Fatalf("unexpected per-approach counts %v", obs.Cars)
	}
	if obs.Waiting[N] != 0 {
		t.Fatalf("car on a green approach counted as waiting: %v", obs.Waiting)
	}
	if obs.Waiting[E] != 2 {
		t.Fatalf("expected 2 cars waiting on E, got %v", obs.Waiting)
	}
}

func TestTrajectoryEntryString(t *testing.T) {
	e := TrajectoryEntry{NumCrashesLocal: 2, NumCarsThroughput: 3}
	want := "TrajectoryEntry(num_crashes_local=2, num_cars_throughput=3)"
	if e.String() != want {
		t.Fatalf("got %q", e.String())
	}
	if v := e.Val(); v != 1.0/3 {
		t.Fatalf("expected 1/3, got %g", v)
	}
}

// #endregion simulation-tests

// #region lights-and-spec-tests

func TestLightsRoundTrip(t *testing.T) {
	set := NewLights(E, N)
	if set.String() != "{N,E}" {
		t.Fatalf("got %s", set)
	}
	parsed, err := ParseLights("n, e")
	if err != nil {
		t.Fatalf("ParseLights: %v", err)
	}
	if parsed != set {
		t.Fatalf("expected %s, got %s", set, parsed)
	}
	if empty, err := ParseLights("{}"); err != nil || empty != 0 {
		t.Fatalf("expected all-red, got %s (%v)", empty, err)
	}
	if _, err := ParseLights("N,Q"); err == nil {
		t.Fatal("expected error for unknown light")
	}
	if set.Without(N) != NewLights(E) {
		t.Fatal("Without did not remove N")
	}
}

func TestPerpendicularsAreCrossing(t *testing.T) {
	for _, l := range AllLights {
		near, far := l.Perpendiculars()
		for _, p := range []Light{near, far} {
			if p == l {
				t.Fatalf("%v listed as its own perpendicular", l)
			}
			pn, pf := p.Perpendiculars()
			if pn != l && pf != l {
				t.Fatalf("%v crosses %v but not the other way", l, p)
			}
		}
	}
}

func TestSpecCompiles(t *testing.T) {
	spec, err := Spec(DefaultSpec)
	if err != nil {
		t.Fatalf("Spec: %v", err)
	}
	p := spec([]TrajectoryEntry{{}, {NumCrashesLocal: 1}})
	if p.String() != "¬((⊤) U (¬(safe)))" {
		t.Fatalf("unexpected formula %s", p)
	}

	_, err = Spec("always(collisions)")
	var pe *logic.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *logic.ParseError, got %v", err)
	}
}

// #endregion lights-and-spec-tests
