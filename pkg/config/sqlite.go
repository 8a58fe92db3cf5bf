package config

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
	pkgerrors "github.com/pkg/errors"
)

const settingsSchema = `
CREATE TABLE IF NOT EXISTS settings (
	id INTEGER PRIMARY KEY,
	battery_care INTEGER NOT NULL,
	notifications INTEGER NOT NULL,
	start_minimized INTEGER NOT NULL,
	start_at_login INTEGER NOT NULL,
	reset_on_transition INTEGER NOT NULL
);
`

// settingsID is the primary key of the single settings row.
const settingsID = 1

var _ Backend = &SQLiteBackend{}

// SQLiteBackend stores the record as the single row of a settings table.
type SQLiteBackend struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens or creates the database at path.
func OpenSQLite(path string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to open database %s", path)
	}
	if _, err := db.Exec(settingsSchema); err != nil {
		db.Close()
		return nil, pkgerrors.Wrapf(err, "failed to init settings schema in %s", path)
	}
	return &SQLiteBackend{db: db, path: path}, nil
}

func (s *SQLiteBackend) Close() error {
	return s.db.Close()
}

func (s *SQLiteBackend) Location() string {
	return s.path
}

func (s *SQLiteBackend) Read() (EngineConfig, error) {
	row := s.db.QueryRow(`SELECT battery_care, notifications, start_minimized, start_at_login, reset_on_transition
		FROM settings WHERE id = ?`, settingsID)

	var c EngineConfig
	err := row.Scan(&c.BatteryCareEnabled, &c.NotificationsEnabled, &c.StartMinimized, &c.StartAtLogin, &c.ResetOppositeBucketOnTransition)
	if err == sql.ErrNoRows {
		return EngineConfig{}, ErrNotFound
	}
	if err != nil {
		return EngineConfig{}, pkgerrors.Wrapf(err, "failed to read settings from %s", s.path)
	}
	return c, nil
}

func (s *SQLiteBackend) Write(c EngineConfig) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO settings
		(id, battery_care, notifications, start_minimized, start_at_login, reset_on_transition)
		VALUES (?, ?, ?, ?, ?, ?)`,
		settingsID, c.BatteryCareEnabled, c.NotificationsEnabled, c.StartMinimized, c.StartAtLogin, c.ResetOppositeBucketOnTransition)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to write settings to %s", s.path)
	}
	return nil
}
