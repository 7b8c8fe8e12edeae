// Package config loads gatekeeper settings from YAML and the environment.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/gatekeeper/internal/bounds"
	"github.com/danielpatrickdp/gatekeeper/internal/eval"
	"github.com/danielpatrickdp/gatekeeper/internal/gate"
	"github.com/danielpatrickdp/gatekeeper/internal/interval"
	"github.com/danielpatrickdp/gatekeeper/internal/logic"
	"github.com/danielpatrickdp/gatekeeper/internal/traffic"
)

// Config contains every gatekeeper setting. Components never read it
// directly; they receive the narrower config values built from it.
type Config struct {
	Logic      LogicConfig      `yaml:"logic"`
	Bounds     BoundsConfig     `yaml:"bounds"`
	Gate       GateConfig       `yaml:"gate"`
	Simulation SimulationConfig `yaml:"simulation"`
	Store      StoreConfig      `yaml:"store"`
}

// LogicConfig configures formula interpretation.
type LogicConfig struct {
	// MaxTimestamp is the Until horizon. 0 means the recorded trajectory
	// length; a value above gate.horizon reads past the trajectory.
	MaxTimestamp int `yaml:"max_timestamp"`

	// Epsilon sets the safety threshold: a trajectory passes when its mean
	// degree exceeds 1 - Epsilon.
	Epsilon float64 `yaml:"epsilon"`

	// Debug enables per-search and per-attempt diagnostics.
	Debug bool `yaml:"debug"`
}

// BoundsConfig configures the supremum/infimum searches.
type BoundsConfig struct {
	Epsilon       float64 `yaml:"epsilon"`
	MaxIterations int     `yaml:"max_iterations"`
	Lipschitz     float64 `yaml:"lipschitz"`
}

// GateConfig configures gating rounds.
type GateConfig struct {
	Horizon     int     `yaml:"horizon"`
	MaxAttempts int     `yaml:"max_attempts"`
	RetryRate   float64 `yaml:"retry_rate"`
	Workers     int     `yaml:"workers"`
	Spec        string  `yaml:"spec"`
}

// SimulationConfig configures the intersection.
type SimulationConfig struct {
	MaxCars                  int    `yaml:"max_cars"`
	DriveStepsPerLightswitch int    `yaml:"drive_steps_per_lightswitch"`
	RoadLength               int    `yaml:"road_length"`
	LightCoord               int    `yaml:"light_coord"`
	Seed                     uint64 `yaml:"seed"`
}

// StoreConfig locates the ledger database.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// Default returns a Config with the built-in defaults.
func Default() *Config {
	b := bounds.DefaultConfig()
	g := gate.DefaultGateConfig()
	e := eval.DefaultEvalConfig()
	s := traffic.DefaultConfig()
	return &Config{
		Logic: LogicConfig{
			Epsilon: e.Epsilon,
		},
		Bounds: BoundsConfig{
			Epsilon:       b.Epsilon,
			MaxIterations: b.MaxIterations,
		},
		Gate: GateConfig{
			Horizon:     g.Horizon,
			MaxAttempts: g.MaxAttempts,
			Workers:     e.Workers,
			Spec:        traffic.DefaultSpec,
		},
		Simulation: SimulationConfig{
			MaxCars:                  s.MaxCars,
			DriveStepsPerLightswitch: s.DriveStepsPerLightswitch,
			RoadLength:               s.RoadLength,
			LightCoord:               s.LightCoord,
			Seed:                     s.Seed,
		},
		Store: StoreConfig{
			Path: "gatekeeper.db",
		},
	}
}

// Load builds the effective configuration: defaults, then the file at path
// when path is non-empty, then environment overrides. The result is
// validated.
func Load(path string) (*Config, error) {
	config := Default()
	if path != "" {
		fileConfig, err := LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		config = fileConfig
	}
	if err := applyEnvOverrides(config); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file. Keys missing
// from the file keep their defaults; unknown keys are an error.
func LoadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	defer f.Close()

	config := Default()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(config); err != nil {
		if errors.Is(err, io.EOF) {
			return config, nil
		}
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return config, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Logic.MaxTimestamp < 0 {
		return fmt.Errorf("logic.max_timestamp must be non-negative, got %d", c.Logic.MaxTimestamp)
	}
	if c.Logic.MaxTimestamp > c.Gate.Horizon {
		return fmt.Errorf("logic.max_timestamp %d exceeds gate.horizon %d", c.Logic.MaxTimestamp, c.Gate.Horizon)
	}
	if c.Logic.Epsilon <= 0 || c.Logic.Epsilon >= 1 {
		return fmt.Errorf("logic.epsilon must be in (0, 1), got %g", c.Logic.Epsilon)
	}
	if c.Bounds.Epsilon <= 0 {
		return fmt.Errorf("bounds.epsilon must be positive, got %g", c.Bounds.Epsilon)
	}
	if c.Bounds.MaxIterations < 0 {
		return fmt.Errorf("bounds.max_iterations must be non-negative, got %d", c.Bounds.MaxIterations)
	}
	if c.Bounds.Lipschitz < 0 {
		return fmt.Errorf("bounds.lipschitz must be non-negative, got %g", c.Bounds.Lipschitz)
	}
	if c.Gate.Horizon <= 0 {
		return fmt.Errorf("gate.horizon must be positive, got %d", c.Gate.Horizon)
	}
	if c.Gate.MaxAttempts < 0 {
		return fmt.Errorf("gate.max_attempts must be non-negative, got %d", c.Gate.MaxAttempts)
	}
	if c.Gate.RetryRate < 0 {
		return fmt.Errorf("gate.retry_rate must be non-negative, got %g", c.Gate.RetryRate)
	}
	if c.Gate.Workers < 0 {
		return fmt.Errorf("gate.workers must be non-negative, got %d", c.Gate.Workers)
	}
	if _, err := traffic.Spec(c.Gate.Spec); err != nil {
		return fmt.Errorf("gate.spec: %w", err)
	}
	s := c.Simulation
	if s.MaxCars < 0 || s.DriveStepsPerLightswitch < 0 {
		return fmt.Errorf("simulation.max_cars and drive_steps_per_lightswitch must be non-negative")
	}
	if s.LightCoord < 0 || s.LightCoord+2 >= s.RoadLength {
		return fmt.Errorf("simulation.light_coord %d leaves no crossing box on a road of length %d",
			s.LightCoord, s.RoadLength)
	}
	return nil
}

// #region component-configs

// BoundsSearch builds the approximator config used inside the interpreter.
func (c *Config) BoundsSearch() bounds.Config {
	b := bounds.DefaultConfig()
	b.Epsilon = c.Bounds.Epsilon
	b.MaxIterations = c.Bounds.MaxIterations
	b.Lipschitz = c.Bounds.Lipschitz
	b.Prior = interval.Unit()
	b.Debug = c.Logic.Debug
	return b
}

// Interpreter builds the logic config.
func (c *Config) Interpreter() logic.Config {
	return logic.Config{
		MaxTime: c.Logic.MaxTimestamp,
		Debug:   c.Logic.Debug,
		Bounds:  c.BoundsSearch(),
	}
}

// Eval builds the evaluation config.
func (c *Config) Eval() eval.EvalConfig {
	return eval.EvalConfig{
		Logic:   c.Interpreter(),
		Epsilon: c.Logic.Epsilon,
		Workers: c.Gate.Workers,
	}
}

// Gatekeeper builds the gate config.
func (c *Config) Gatekeeper() gate.GateConfig {
	return gate.GateConfig{
		Horizon:     c.Gate.Horizon,
		MaxAttempts: c.Gate.MaxAttempts,
		RetryRate:   c.Gate.RetryRate,
		Debug:       c.Logic.Debug,
		Eval:        c.Eval(),
	}
}

// Traffic builds the simulation config.
func (c *Config) Traffic() traffic.Config {
	return traffic.Config{
		MaxCars:                  c.Simulation.MaxCars,
		DriveStepsPerLightswitch: c.Simulation.DriveStepsPerLightswitch,
		RoadLength:               c.Simulation.RoadLength,
		LightCoord:               c.Simulation.LightCoord,
		Seed:                     c.Simulation.Seed,
		Debug:                    c.Logic.Debug,
	}
}

// #endregion component-configs

// applyEnvOverrides applies GATEKEEPER_DEBUG and GATEKEEPER_DB.
func applyEnvOverrides(config *Config) error {
	if v := os.Getenv("GATEKEEPER_DEBUG"); v != "" {
		debug, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("GATEKEEPER_DEBUG: %w", err)
		}
		config.Logic.Debug = debug
	}
	if v := os.Getenv("GATEKEEPER_DB"); v != "" {
		config.Store.Path = v
	}
	return nil
}
