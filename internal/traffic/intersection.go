package traffic

import (
	"log"
	"slices"
)

// #region intersection
// Intersection is four single-lane approaches crossing at one box. Cars on a
// green approach advance one cell per step; cars on red wait.
type Intersection struct {
	roadLength int
	lightCoord int
	debug      bool

	cars       []Car
	green      Lights
	nextID     int
	crashes    int
	throughput int
}

// NewIntersection creates an empty all-red intersection.
func NewIntersection(config Config) *Intersection {
	return &Intersection{
		roadLength: config.RoadLength,
		lightCoord: config.LightCoord,
		debug:      config.Debug,
	}
}

// RestoreIntersection rebuilds an intersection from a saved state.
func RestoreIntersection(config Config, state WorldState) *Intersection {
	in := NewIntersection(config)
	in.green = state.Green
	in.cars = slices.Clone(state.Cars)
	in.nextID = state.NextID
	in.crashes = state.Crashes
	in.throughput = state.Throughput
	return in
}

// Clone returns an independent copy.
func (in *Intersection) Clone() *Intersection {
	cp := *in
	cp.cars = slices.Clone(in.cars)
	return &cp
}

func (in *Intersection) NumCrashes() int      { return in.crashes }
func (in *Intersection) TotalThroughput() int { return in.throughput }
func (in *Intersection) Green() Lights        { return in.green }

// Cars returns a copy of the cars currently on the roads.
func (in *Intersection) Cars() []Car { return slices.Clone(in.cars) }

// SetLights replaces the green set.
func (in *Intersection) SetLights(green Lights) { in.green = green }

// SpawnCar places a new car at the start of an approach.
func (in *Intersection) SpawnCar(l Light) Car {
	car := Car{ID: in.nextID, Light: l}
	in.nextID++
	in.cars = append(in.cars, car)
	return car
}

// Advance moves green cars, resolves crashes, then removes cars that left
// the road.
func (in *Intersection) Advance() {
	for i := range in.cars {
		if in.green.Has(in.cars[i].Light) {
			in.cars[i].Position++
		}
	}
	before := in.crashes
	in.updateCrashes()
	if in.debug && in.crashes != before {
		log.Printf("[SIM] crash: %d total", in.crashes)
	}
	in.removeFarCars()
}

// #endregion intersection

// #region crashes

type crashPair struct{ a, b int }

// updateCrashes counts each colliding pair once and removes both cars.
// A car on green approach L collides with a car on a perpendicular approach
// when they occupy (LightCoord+1, LightCoord+2) or (LightCoord+2,
// LightCoord+1) as (in-lane, crossing) positions.
func (in *Intersection) updateCrashes() {
	closer := [2]int{in.lightCoord + 1, in.lightCoord + 2}
	farther := [2]int{in.lightCoord + 2, in.lightCoord + 1}

	pairs := make(map[crashPair]struct{})
	for _, inlane := range in.cars {
		if !in.green.Has(inlane.Light) {
			continue
		}
		near, far := inlane.Light.Perpendiculars()
		for _, cross := range in.cars {
			if cross.Light != near && cross.Light != far {
				continue
			}
			at := [2]int{inlane.Position, cross.Position}
			if at != closer && at != farther {
				continue
			}
			p := crashPair{inlane.ID, cross.ID}
			if p.a > p.b {
				p.a, p.b = p.b, p.a
			}
			pairs[p] = struct{}{}
		}
	}
	if len(pairs) == 0 {
		return
	}

	in.crashes += len(pairs)
	crashed := make(map[int]struct{}, 2*len(pairs))
	for p := range pairs {
		crashed[p.a] = struct{}{}
		crashed[p.b] = struct{}{}
	}
	in.cars = slices.DeleteFunc(in.cars, func(c Car) bool {
		_, hit := crashed[c.ID]
		return hit
	})
}

func (in *Intersection) removeFarCars() {
	before := len(in.cars)
	in.cars = slices.DeleteFunc(in.cars, func(c Car) bool {
		return c.Position >= in.roadLength
	})
	in.throughput += before - len(in.cars)
}

// #endregion crashes
