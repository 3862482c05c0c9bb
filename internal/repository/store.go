// Package repository is the durable history: an append-only SQLite time
// series of sensor rows and control events, plus the grow registry. The
// control loop is the sole writer; the API and analytics read concurrently.
package repository

import (
	"database/sql"
	"fmt"
	"sync"

	"go.uber.org/zap"

	_ "modernc.org/sqlite"
)

// Store wraps the SQLite handle. Writes are serialized through mu; WAL mode
// lets readers proceed while the writer holds the lock.
type Store struct {
	db     *sql.DB
	path   string
	logger *zap.Logger

	mu sync.Mutex
}

// NewStore opens (or creates) the database at path and runs migrations.
func NewStore(path string, logger *zap.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}

	s := &Store{db: db, path: path, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// NewMemoryStore opens an in-memory database, used by tests.
func NewMemoryStore(logger *zap.Logger) (*Store, error) {
	return NewStore(":memory:", logger)
}

const schema = `
CREATE TABLE IF NOT EXISTS grows (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	stage      TEXT NOT NULL,
	start_date TEXT NOT NULL,
	end_date   TEXT,
	is_active  INTEGER NOT NULL DEFAULT 0,
	notes      TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS sensor_data (
	id                  INTEGER PRIMARY KEY AUTOINCREMENT,
	grow_id             TEXT,
	timestamp           INTEGER NOT NULL,
	datetime            TEXT NOT NULL,
	stage               TEXT,
	temperature         REAL NOT NULL,
	humidity            REAL NOT NULL,
	vpd                 REAL NOT NULL,
	outside_temperature REAL NOT NULL DEFAULT 0,
	outside_humidity    REAL NOT NULL DEFAULT 0,
	leaf_temperature    REAL,
	leaf_vpd            REAL,
	target_humidity     REAL
);
CREATE INDEX IF NOT EXISTS idx_sensor_data_timestamp ON sensor_data(timestamp);
CREATE INDEX IF NOT EXISTS idx_sensor_data_grow ON sensor_data(grow_id, timestamp);

CREATE TABLE IF NOT EXISTS control_events (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp     INTEGER NOT NULL,
	datetime      TEXT NOT NULL,
	actuator      TEXT NOT NULL,
	action        TEXT NOT NULL,
	trigger_value REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_control_events_timestamp ON control_events(timestamp);
`

func (s *Store) migrate() error {
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
