package state

import (
	"time"

	"github.com/danielpatrickdp/gatekeeper/internal/traffic"
)

// #region world-record
// WorldRecord is one committed version of the authoritative world. Each
// gatekeeper commit produces a new record whose parent is the previous one.
type WorldRecord struct {
	VersionID   string
	ParentID    string
	RoundID     string // empty for the initial world
	Action      string
	Degree      float64 // world-validation degree of the committing round
	World       traffic.WorldState
	CreatedAt   time.Time
	MetricsJSON string
}

// #endregion world-record

// #region version-summary
// VersionSummary is the listing view of a version, without the car blob.
type VersionSummary struct {
	VersionID  string
	ParentID   string
	RoundID    string
	Action     string
	Degree     float64
	Crashes    int
	Throughput int
	CreatedAt  time.Time
}

// #endregion version-summary
