package gate

import (
	"errors"

	"github.com/danielpatrickdp/gatekeeper/internal/eval"
	"github.com/danielpatrickdp/gatekeeper/internal/logic"
)

// ErrNoSafeAction is returned when a round exhausts MaxAttempts without
// committing.
var ErrNoSafeAction = errors.New("gate: no safe action found within attempt budget")

// #region veto-type
// VetoType enumerates hard veto categories.
type VetoType string

const (
	VetoShadowUnsafe VetoType = "shadow_unsafe"
	VetoWorldUnsafe  VetoType = "world_unsafe"
)

// #endregion veto-type

// #region veto-signal
// VetoSignal represents a detected hard veto condition.
type VetoSignal struct {
	Type   VetoType
	Reason string
}

// #endregion veto-signal

// #region stage
// Stage is a state of the gatekeeper round.
type Stage string

const (
	StageSelectAction   Stage = "select_action"
	StageValidateShadow Stage = "validate_shadow"
	StageValidateWorld  Stage = "validate_world"
	StageCommit         Stage = "commit"
)

// #endregion stage

// #region gate-config
// GateConfig holds the round parameters.
type GateConfig struct {
	Horizon     int     // steps recorded per validation
	MaxAttempts int     // proposals per round, 0 = unbounded
	RetryRate   float64 // attempts per second, 0 = unpaced
	Debug       bool
	Eval        eval.EvalConfig
}

// DefaultGateConfig returns the defaults: a 20-step horizon and at most 1000
// proposals per round.
func DefaultGateConfig() GateConfig {
	return GateConfig{
		Horizon:     20,
		MaxAttempts: 1000,
		Eval:        eval.DefaultEvalConfig(),
	}
}

// #endregion gate-config

// #region gate-decision
// GateDecision is the output of the gate evaluation.
type GateDecision struct {
	Action      string // "commit" | "reject"
	Reason      string
	Vetoed      bool
	VetoSignals []VetoSignal // non-empty if vetoed
	Degree      float64      // mean safety degree that was judged
}

// #endregion gate-decision

// #region collaborators
// Environment is the simulated system under control. Snapshot must return
// an independent copy: mutating it never affects the receiver.
type Environment[A, O any, E logic.Atomic] interface {
	Apply(action A)
	Snapshot() Environment[A, O, E]
	RunRecordingTrajectory(action A, horizon int) []E
	Observe() O
}

// Policy proposes actions from observations.
type Policy[A, O any] interface {
	SelectAction(observation O) A
	Reset()
}

// SpecFunc instantiates the safety formula over a recorded trajectory.
type SpecFunc[E logic.Atomic] func(trajectory []E) logic.Prop[E]

// #endregion collaborators

// #region records
// AttemptRecord describes one validation stage of one attempt.
type AttemptRecord struct {
	RoundID    string
	Attempt    int
	Stage      Stage
	Action     string
	AtomValues []float64 // Val() of each recorded trajectory entry
	Result     eval.EvalResult
	Decision   GateDecision
}

// Recorder receives every judged attempt, e.g. to persist a ledger.
type Recorder interface {
	RecordAttempt(rec AttemptRecord) error
}

// RoundResult summarizes a committed round.
type RoundResult[A any] struct {
	RoundID  string
	Action   A
	Attempts int
	Shadow   eval.EvalResult
	World    eval.EvalResult
	Decision GateDecision
}

// #endregion records
