package traffic

import (
	"fmt"
	"strings"

	"github.com/danielpatrickdp/gatekeeper/internal/interval"
)

// #region light
// Light identifies one approach to the intersection.
type Light uint8

const (
	N Light = iota
	S
	E
	W
)

// AllLights lists the approaches in a fixed order.
var AllLights = [...]Light{N, S, E, W}

func (l Light) String() string {
	switch l {
	case N:
		return "N"
	case S:
		return "S"
	case E:
		return "E"
	case W:
		return "W"
	default:
		return fmt.Sprintf("Light(%d)", uint8(l))
	}
}

// Perpendiculars returns the crossing approaches as (nearer, farther).
func (l Light) Perpendiculars() (Light, Light) {
	switch l {
	case N:
		return E, W
	case S:
		return W, E
	case E:
		return S, N
	default:
		return N, S
	}
}

// ParseLight reads a single approach name.
func ParseLight(s string) (Light, error) {
	for _, l := range AllLights {
		if strings.EqualFold(s, l.String()) {
			return l, nil
		}
	}
	return 0, fmt.Errorf("unknown light %q", s)
}

// #endregion light

// #region lights
// Lights is the set of approaches currently green. It is the action type
// the gatekeeper validates.
type Lights uint8

// NewLights builds a set from individual lights.
func NewLights(ls ...Light) Lights {
	var set Lights
	for _, l := range ls {
		set = set.With(l)
	}
	return set
}

func (s Lights) Has(l Light) bool { return s&(1<<l) != 0 }

func (s Lights) With(l Light) Lights { return s | 1<<l }

func (s Lights) Without(l Light) Lights { return s &^ (1 << l) }

// Slice lists the green lights in N, S, E, W order.
func (s Lights) Slice() []Light {
	var out []Light
	for _, l := range AllLights {
		if s.Has(l) {
			out = append(out, l)
		}
	}
	return out
}

func (s Lights) String() string {
	names := make([]string, 0, 4)
	for _, l := range s.Slice() {
		names = append(names, l.String())
	}
	return "{" + strings.Join(names, ",") + "}"
}

// ParseLights reads a comma separated list such as "N,E". Empty input is the
// all-red set.
func ParseLights(s string) (Lights, error) {
	s = strings.Trim(strings.TrimSpace(s), "{}")
	var set Lights
	if s == "" {
		return set, nil
	}
	for _, part := range strings.Split(s, ",") {
		l, err := ParseLight(strings.TrimSpace(part))
		if err != nil {
			return 0, err
		}
		set = set.With(l)
	}
	return set, nil
}

// #endregion lights

// #region car
// Car is one vehicle on an approach. Position counts steps driven from the
// spawn point.
type Car struct {
	ID       int
	Light    Light
	Position int
}

// #endregion car

// #region trajectory-entry
// TrajectoryEntry is what one recorded step reports.
type TrajectoryEntry struct {
	NumCrashesLocal   int `json:"num_crashes_local"`
	NumCarsThroughput int `json:"num_cars_throughput"`
}

// Val is 1 for a crash-free step and falls toward 0 as crashes pile up.
func (e TrajectoryEntry) Val() interval.Valuation {
	return 1 / (1 + float64(e.NumCrashesLocal))
}

func (e TrajectoryEntry) String() string {
	return fmt.Sprintf("TrajectoryEntry(num_crashes_local=%d, num_cars_throughput=%d)",
		e.NumCrashesLocal, e.NumCarsThroughput)
}

// #endregion trajectory-entry

// #region observation
// Observation is what a policy sees before choosing lights.
type Observation struct {
	Green   Lights
	Cars    [4]int // cars per approach, indexed by Light
	Waiting [4]int // cars held by a red light, indexed by Light
	Crashes int
}

// #endregion observation

// #region world-state
// WorldState is everything needed to resume a simulation exactly where it
// stopped, including the position of its random stream.
type WorldState struct {
	Green      Lights
	Cars       []Car
	NextID     int
	Crashes    int
	Throughput int
	RNG        []byte // encoded rand.PCG
}

// #endregion world-state

// #region config
// Config holds the intersection geometry and traffic parameters.
type Config struct {
	MaxCars                  int    // spawning stops at this many cars
	DriveStepsPerLightswitch int    // advances per recorded step
	RoadLength               int    // cars at or past this position leave
	LightCoord               int    // position of the stop line
	Seed                     uint64 // spawn randomness
	Debug                    bool
}

// DefaultConfig returns a 10-cell road with the light at cell 4.
func DefaultConfig() Config {
	return Config{
		MaxCars:                  16,
		DriveStepsPerLightswitch: 1,
		RoadLength:               10,
		LightCoord:               4,
		Seed:                     1,
	}
}

// #endregion config
