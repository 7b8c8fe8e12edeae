package logging

import "time"

// #region provenance-entry
// ProvenanceEntry is a single row in the provenance_log table: one judged
// validation stage of one gatekeeper attempt.
type ProvenanceEntry struct {
	RoundID    string
	Attempt    int
	Stage      string // "validate_shadow" | "validate_world"
	Action     string
	Degree     float64
	Passed     bool
	Decision   string // "commit" | "reject"
	Reason     string
	RecordJSON string
	CreatedAt  time.Time
}

// #endregion provenance-entry

// #region gate-record
// GateRecord captures the complete gate evaluation inputs for a single stage.
// Serialized as JSON into provenance_log.record_json for replay.
type GateRecord struct {
	RoundID string `json:"round_id"`
	Attempt int    `json:"attempt"`
	Stage   string `json:"stage"`
	Action  string `json:"action"`

	// Val() of each recorded trajectory entry, and the formula's truth
	// degree at each step
	AtomValues []float64 `json:"atom_values"`
	Degrees    []float64 `json:"degrees"`

	// Evaluation outcome
	Degree  float64            `json:"degree"`
	Passed  bool               `json:"passed"`
	Metrics map[string]float64 `json:"metrics,omitempty"`

	// Thresholds active at decision time
	Thresholds GateRecordThresholds `json:"thresholds"`

	// Gate output
	GateAction string   `json:"gate_action"`
	GateVetoed bool     `json:"gate_vetoed"`
	GateVetoes []string `json:"gate_vetoes,omitempty"`
	GateReason string   `json:"gate_reason"`
}

// GateRecordThresholds captures the gate/eval config active at decision time.
type GateRecordThresholds struct {
	Spec         string  `json:"spec"`
	Horizon      int     `json:"horizon"`
	MaxTimestamp int     `json:"max_timestamp"`
	Epsilon      float64 `json:"epsilon"`
}

// #endregion gate-record
