package logging

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/danielpatrickdp/gatekeeper/internal/gate"
)

// #region log-decision
// LogDecision writes a provenance entry to the provenance_log table.
func LogDecision(db *sql.DB, entry ProvenanceEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := db.Exec(
		`INSERT INTO provenance_log (round_id, attempt, stage, action, degree, passed, decision, reason, record_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.RoundID,
		entry.Attempt,
		entry.Stage,
		entry.Action,
		entry.Degree,
		entry.Passed,
		entry.Decision,
		nullIfEmpty(entry.Reason),
		nullIfEmpty(entry.RecordJSON),
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log decision: %w", err)
	}
	return nil
}

// #endregion log-decision

// #region list-round
// ListRound returns the entries of one round in the order they were logged.
func ListRound(db *sql.DB, roundID string) ([]ProvenanceEntry, error) {
	return query(db,
		`SELECT round_id, attempt, stage, action, degree, passed, decision, reason, record_json, created_at
		 FROM provenance_log WHERE round_id = ? ORDER BY id`, roundID)
}

// ListRecent returns the newest entries across all rounds, newest first.
func ListRecent(db *sql.DB, limit int) ([]ProvenanceEntry, error) {
	return query(db,
		`SELECT round_id, attempt, stage, action, degree, passed, decision, reason, record_json, created_at
		 FROM provenance_log ORDER BY id DESC LIMIT ?`, limit)
}

func query(db *sql.DB, q string, args ...any) ([]ProvenanceEntry, error) {
	rows, err := db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("query provenance: %w", err)
	}
	defer rows.Close()

	var out []ProvenanceEntry
	for rows.Next() {
		var e ProvenanceEntry
		var reason, record sql.NullString
		var createdStr string
		if err := rows.Scan(&e.RoundID, &e.Attempt, &e.Stage, &e.Action, &e.Degree, &e.Passed,
			&e.Decision, &reason, &record, &createdStr); err != nil {
			return nil, fmt.Errorf("scan provenance: %w", err)
		}
		e.Reason = reason.String
		e.RecordJSON = record.String
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		out = append(out, e)
	}
	return out, rows.Err()
}

// #endregion list-round

// #region ledger
// Ledger persists every judged gatekeeper stage. It implements gate.Recorder.
type Ledger struct {
	db         *sql.DB
	thresholds GateRecordThresholds
}

var _ gate.Recorder = (*Ledger)(nil)

// NewLedger creates a ledger writing to db, stamping each record with
// thresholds.
func NewLedger(db *sql.DB, thresholds GateRecordThresholds) *Ledger {
	return &Ledger{db: db, thresholds: thresholds}
}

// RecordAttempt converts rec into a GateRecord and logs it.
func (l *Ledger) RecordAttempt(rec gate.AttemptRecord) error {
	gr := NewGateRecord(rec, l.thresholds)
	raw, err := json.Marshal(gr)
	if err != nil {
		return fmt.Errorf("marshal gate record: %w", err)
	}
	return LogDecision(l.db, ProvenanceEntry{
		RoundID:    rec.RoundID,
		Attempt:    rec.Attempt,
		Stage:      string(rec.Stage),
		Action:     rec.Action,
		Degree:     rec.Result.Degree,
		Passed:     rec.Result.Passed,
		Decision:   rec.Decision.Action,
		Reason:     rec.Decision.Reason,
		RecordJSON: string(raw),
	})
}

// NewGateRecord flattens an attempt into its serialized form.
func NewGateRecord(rec gate.AttemptRecord, thresholds GateRecordThresholds) GateRecord {
	gr := GateRecord{
		RoundID:    rec.RoundID,
		Attempt:    rec.Attempt,
		Stage:      string(rec.Stage),
		Action:     rec.Action,
		AtomValues: rec.AtomValues,
		Degrees:    rec.Result.Degrees,
		Degree:     rec.Result.Degree,
		Passed:     rec.Result.Passed,
		Thresholds: thresholds,
		GateAction: rec.Decision.Action,
		GateVetoed: rec.Decision.Vetoed,
		GateReason: rec.Decision.Reason,
	}
	if len(rec.Result.Metrics) > 0 {
		gr.Metrics = make(map[string]float64, len(rec.Result.Metrics))
		for _, m := range rec.Result.Metrics {
			gr.Metrics[m.Name] = m.Value
		}
	}
	for _, v := range rec.Decision.VetoSignals {
		gr.GateVetoes = append(gr.GateVetoes, string(v.Type))
	}
	return gr
}

// #endregion ledger

// #region helpers
func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
