package replay

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/danielpatrickdp/gatekeeper/internal/gate"
	"github.com/danielpatrickdp/gatekeeper/internal/logging"
	"github.com/danielpatrickdp/gatekeeper/internal/traffic"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture.
type Fixture struct {
	Description     string                  `json:"description"`
	Config          FixtureConfig           `json:"config"`
	Steps           []FixtureStep           `json:"steps"`
	ExpectedResults []FixtureExpectedResult `json:"expected_results"`
}

// FixtureStep mirrors Step with JSON tags.
type FixtureStep struct {
	StepID string                    `json:"step_id"`
	Action string                    `json:"action"`
	Shadow []traffic.TrajectoryEntry `json:"shadow"`
	World  []traffic.TrajectoryEntry `json:"world,omitempty"`
}

// FixtureExpectedResult captures the expected action per step.
type FixtureExpectedResult struct {
	StepID string `json:"step_id"`
	Action string `json:"action"`
}

// FixtureConfig mirrors the parts of the gate config that affect judging.
type FixtureConfig struct {
	Spec         string  `json:"spec"`
	MaxTimestamp int     `json:"max_timestamp"`
	Epsilon      float64 `json:"epsilon"`
	Workers      int     `json:"workers"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// ToStep converts a FixtureStep to a domain Step.
func (fs *FixtureStep) ToStep() Step {
	return Step{
		StepID: fs.StepID,
		Action: fs.Action,
		Shadow: fs.Shadow,
		World:  fs.World,
	}
}

// ToSteps converts every fixture step.
func (f *Fixture) ToSteps() []Step {
	steps := make([]Step, len(f.Steps))
	for i := range f.Steps {
		steps[i] = f.Steps[i].ToStep()
	}
	return steps
}

// ToReplayConfig converts a FixtureConfig to a domain ReplayConfig. Zero
// fields keep the defaults.
func (fc *FixtureConfig) ToReplayConfig() ReplayConfig {
	config := DefaultReplayConfig()
	if fc.Spec != "" {
		config.Spec = fc.Spec
	}
	if fc.Epsilon > 0 {
		config.GateConfig.Eval.Epsilon = fc.Epsilon
	}
	if fc.Workers > 0 {
		config.GateConfig.Eval.Workers = fc.Workers
	}
	config.GateConfig.Eval.Logic.MaxTime = fc.MaxTimestamp
	return config
}

// #endregion fixture-loader

// #region fixture-export

// FromLedger rebuilds a fixture from the ledger entries of one or more
// rounds. Steps are keyed by round and attempt; the ledger keeps per-step
// valuations only, so each entry's crash count is recovered from its
// valuation and throughput is left at zero. The recorded decisions become
// the expected results.
func FromLedger(entries []logging.ProvenanceEntry, description string) (*Fixture, error) {
	f := &Fixture{Description: description}
	index := make(map[string]int)
	for _, e := range entries {
		var gr logging.GateRecord
		if err := json.Unmarshal([]byte(e.RecordJSON), &gr); err != nil {
			return nil, fmt.Errorf("round %s attempt %d: %w", e.RoundID, e.Attempt, err)
		}
		if f.Config.Spec == "" {
			f.Config = FixtureConfig{
				Spec:         gr.Thresholds.Spec,
				MaxTimestamp: gr.Thresholds.MaxTimestamp,
				Epsilon:      gr.Thresholds.Epsilon,
			}
		}

		id := fmt.Sprintf("%s/%d", e.RoundID, e.Attempt)
		i, ok := index[id]
		if !ok {
			i = len(f.Steps)
			index[id] = i
			f.Steps = append(f.Steps, FixtureStep{StepID: id, Action: e.Action})
			f.ExpectedResults = append(f.ExpectedResults, FixtureExpectedResult{StepID: id})
		}
		trajectory := entriesFromValues(gr.AtomValues)
		switch gate.Stage(e.Stage) {
		case gate.StageValidateShadow:
			f.Steps[i].Shadow = trajectory
			f.ExpectedResults[i].Action = "incomplete"
			if e.Decision != "commit" {
				f.ExpectedResults[i].Action = "shadow_reject"
			}
		case gate.StageValidateWorld:
			f.Steps[i].World = trajectory
			f.ExpectedResults[i].Action = "world_reject"
			if e.Decision == "commit" {
				f.ExpectedResults[i].Action = "commit"
			}
		}
	}

	// A window of recent entries can start mid-attempt; drop steps whose
	// shadow stage was cut off.
	keep := 0
	for i := range f.Steps {
		if f.Steps[i].Shadow == nil {
			continue
		}
		f.Steps[keep] = f.Steps[i]
		f.ExpectedResults[keep] = f.ExpectedResults[i]
		keep++
	}
	f.Steps = f.Steps[:keep]
	f.ExpectedResults = f.ExpectedResults[:keep]
	return f, nil
}

// entriesFromValues inverts TrajectoryEntry.Val.
func entriesFromValues(values []float64) []traffic.TrajectoryEntry {
	out := make([]traffic.TrajectoryEntry, len(values))
	for i, v := range values {
		if v > 0 {
			out[i].NumCrashesLocal = int(math.Round(1/v - 1))
		}
	}
	return out
}

// #endregion fixture-export
