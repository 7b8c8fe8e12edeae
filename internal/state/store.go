package state

import (
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/danielpatrickdp/gatekeeper/internal/traffic"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS world_versions (
	version_id    TEXT PRIMARY KEY,
	parent_id     TEXT,
	round_id      TEXT,
	action        TEXT NOT NULL,
	degree        REAL NOT NULL,
	green         INTEGER NOT NULL,
	cars          BLOB NOT NULL,
	next_id       INTEGER NOT NULL,
	crashes       INTEGER NOT NULL,
	throughput    INTEGER NOT NULL,
	rng_state     BLOB,
	created_at    TEXT NOT NULL,
	metrics_json  TEXT,
	FOREIGN KEY (parent_id) REFERENCES world_versions(version_id)
);

CREATE TABLE IF NOT EXISTS provenance_log (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	round_id      TEXT NOT NULL,
	attempt       INTEGER NOT NULL,
	stage         TEXT NOT NULL,
	action        TEXT NOT NULL,
	degree        REAL NOT NULL,
	passed        INTEGER NOT NULL,
	decision      TEXT NOT NULL,
	reason        TEXT,
	record_json   TEXT,
	created_at    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_provenance_round ON provenance_log(round_id, id);

CREATE TABLE IF NOT EXISTS active_world (
	id            INTEGER PRIMARY KEY CHECK (id = 1),
	version_id    TEXT NOT NULL,
	FOREIGN KEY (version_id) REFERENCES world_versions(version_id)
);
`

// #endregion schema

// ErrNoWorld is returned by GetCurrent before any world was created.
var ErrNoWorld = errors.New("no active world")

// #region store-struct
// Store manages versioned world state in SQLite.
type Store struct {
	db *sql.DB
}

// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// PRAGMAs are per connection.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// NewStoreWithDB wraps an already migrated database.
func NewStoreWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

// #endregion constructor

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for the attempt ledger.
func (s *Store) DB() *sql.DB {
	return s.db
}

// #region create-initial
// CreateInitialWorld stores world as a parentless version and activates it.
func (s *Store) CreateInitialWorld(world traffic.WorldState) (WorldRecord, error) {
	rec := WorldRecord{
		VersionID: uuid.New().String(),
		Action:    world.Green.String(),
		Degree:    1,
		World:     world,
		CreatedAt: time.Now().UTC(),
	}

	tx, err := s.db.Begin()
	if err != nil {
		return WorldRecord{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := insertVersion(tx, rec); err != nil {
		return WorldRecord{}, err
	}
	_, err = tx.Exec(
		`INSERT INTO active_world (id, version_id) VALUES (1, ?)
		 ON CONFLICT(id) DO UPDATE SET version_id = excluded.version_id`,
		rec.VersionID,
	)
	if err != nil {
		return WorldRecord{}, fmt.Errorf("set active: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return WorldRecord{}, fmt.Errorf("commit: %w", err)
	}
	return rec, nil
}

// #endregion create-initial

// #region get-current
// GetCurrent reads the active world version. It returns ErrNoWorld when the
// store is empty.
func (s *Store) GetCurrent() (WorldRecord, error) {
	var versionID string
	err := s.db.QueryRow(`SELECT version_id FROM active_world WHERE id = 1`).Scan(&versionID)
	if errors.Is(err, sql.ErrNoRows) {
		return WorldRecord{}, ErrNoWorld
	}
	if err != nil {
		return WorldRecord{}, fmt.Errorf("get active: %w", err)
	}
	return s.GetVersion(versionID)
}

// #endregion get-current

// #region get-version
// GetVersion retrieves a specific world version by ID.
func (s *Store) GetVersion(id string) (WorldRecord, error) {
	var rec WorldRecord
	var parentID, roundID, metricsJSON sql.NullString
	var green int
	var carBlob, rng []byte
	var createdStr string

	err := s.db.QueryRow(
		`SELECT version_id, parent_id, round_id, action, degree, green, cars,
		        next_id, crashes, throughput, rng_state, created_at, metrics_json
		 FROM world_versions WHERE version_id = ?`, id,
	).Scan(&rec.VersionID, &parentID, &roundID, &rec.Action, &rec.Degree, &green, &carBlob,
		&rec.World.NextID, &rec.World.Crashes, &rec.World.Throughput, &rng, &createdStr, &metricsJSON)
	if err != nil {
		return WorldRecord{}, fmt.Errorf("get version %s: %w", id, err)
	}

	rec.ParentID = parentID.String
	rec.RoundID = roundID.String
	rec.MetricsJSON = metricsJSON.String
	rec.World.Green = traffic.Lights(green)
	rec.World.RNG = rng
	rec.World.Cars, err = decodeCars(carBlob)
	if err != nil {
		return WorldRecord{}, fmt.Errorf("decode cars of %s: %w", id, err)
	}
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	return rec, nil
}

// #endregion get-version

// #region commit-world
// CommitWorld inserts a new version and updates the active pointer atomically.
func (s *Store) CommitWorld(rec WorldRecord) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := insertVersion(tx, rec); err != nil {
		return err
	}
	res, err := tx.Exec(`UPDATE active_world SET version_id = ? WHERE id = 1`, rec.VersionID)
	if err != nil {
		return fmt.Errorf("update active: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNoWorld
	}

	return tx.Commit()
}

func insertVersion(tx *sql.Tx, rec WorldRecord) error {
	var parentPtr, roundPtr, metricsPtr any
	if rec.ParentID != "" {
		parentPtr = rec.ParentID
	}
	if rec.RoundID != "" {
		roundPtr = rec.RoundID
	}
	if rec.MetricsJSON != "" {
		metricsPtr = rec.MetricsJSON
	}

	_, err := tx.Exec(
		`INSERT INTO world_versions (version_id, parent_id, round_id, action, degree, green, cars,
		                             next_id, crashes, throughput, rng_state, created_at, metrics_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.VersionID, parentPtr, roundPtr, rec.Action, rec.Degree, int(rec.World.Green),
		encodeCars(rec.World.Cars), rec.World.NextID, rec.World.Crashes, rec.World.Throughput,
		rec.World.RNG, rec.CreatedAt.Format(time.RFC3339Nano), metricsPtr,
	)
	if err != nil {
		return fmt.Errorf("insert version: %w", err)
	}
	return nil
}

// #endregion commit-world

// #region rollback
// Rollback sets the active pointer to a previous version.
func (s *Store) Rollback(targetVersionID string) error {
	var exists int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM world_versions WHERE version_id = ?`, targetVersionID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check version: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("version %s not found", targetVersionID)
	}

	_, err = s.db.Exec(`UPDATE active_world SET version_id = ? WHERE id = 1`, targetVersionID)
	if err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

// #endregion rollback

// #region list-versions
// ListVersions returns the most recent world versions, newest first.
func (s *Store) ListVersions(limit int) ([]VersionSummary, error) {
	rows, err := s.db.Query(
		`SELECT version_id, parent_id, round_id, action, degree, crashes, throughput, created_at
		 FROM world_versions ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	var out []VersionSummary
	for rows.Next() {
		var v VersionSummary
		var parentID, roundID sql.NullString
		var createdStr string
		if err := rows.Scan(&v.VersionID, &parentID, &roundID, &v.Action, &v.Degree,
			&v.Crashes, &v.Throughput, &createdStr); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		v.ParentID = parentID.String
		v.RoundID = roundID.String
		v.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		out = append(out, v)
	}
	return out, rows.Err()
}

// #endregion list-versions

// #region car-encoding
// Cars are stored as consecutive (varint id, light byte, varint position)
// triples.
func encodeCars(cars []traffic.Car) []byte {
	buf := make([]byte, 0, len(cars)*4)
	for _, c := range cars {
		buf = binary.AppendVarint(buf, int64(c.ID))
		buf = append(buf, byte(c.Light))
		buf = binary.AppendVarint(buf, int64(c.Position))
	}
	return buf
}

func decodeCars(b []byte) ([]traffic.Car, error) {
	var cars []traffic.Car
	for len(b) > 0 {
		id, n := binary.Varint(b)
		if n <= 0 || n >= len(b) {
			return nil, fmt.Errorf("truncated car id")
		}
		light := traffic.Light(b[n])
		b = b[n+1:]
		pos, n := binary.Varint(b)
		if n <= 0 {
			return nil, fmt.Errorf("truncated car position")
		}
		b = b[n:]
		cars = append(cars, traffic.Car{ID: int(id), Light: light, Position: int(pos)})
	}
	return cars, nil
}

// #endregion car-encoding
