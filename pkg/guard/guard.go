// Package guard keeps a single-instance record in SQLite so that only one
// daemon runs per user.
package guard

import (
	"database/sql"
	"errors"
	"os"
	"time"

	_ "github.com/mattn/go-sqlite3"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// ErrAlreadyRunning is returned by MarkRunning when a live instance holds
// the record.
var ErrAlreadyRunning = errors.New("another instance is already running")

const schema = `
CREATE TABLE IF NOT EXISTS program_status (
	id INTEGER PRIMARY KEY,
	running INTEGER NOT NULL DEFAULT 0,
	pid INTEGER NOT NULL DEFAULT 0,
	heartbeat INTEGER NOT NULL DEFAULT 0
);
`

const statusID = 1

// Status is the stored record.
type Status struct {
	Running   bool      `json:"running"`
	PID       int       `json:"pid"`
	Heartbeat time.Time `json:"heartbeat"`
}

// Guard is a SQLite backed single-instance record.
type Guard struct {
	db         *sql.DB
	path       string
	staleAfter time.Duration
	pid        int

	now      func() time.Time
	pidAlive func(pid int) bool
}

// Open opens or creates the guard database. A record whose heartbeat is
// older than staleAfter is treated as abandoned.
func Open(path string, staleAfter time.Duration) (*Guard, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to open guard database %s", path)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, pkgerrors.Wrapf(err, "failed to init guard schema in %s", path)
	}
	return &Guard{
		db:         db,
		path:       path,
		staleAfter: staleAfter,
		pid:        os.Getpid(),
		now:        time.Now,
		pidAlive:   processAlive,
	}, nil
}

func (g *Guard) Close() error {
	return g.db.Close()
}

// processAlive reports whether pid exists. EPERM means it exists but belongs
// to someone else.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

// Status returns the stored record. A missing record is a zero Status.
func (g *Guard) Status() (Status, error) {
	row := g.db.QueryRow("SELECT running, pid, heartbeat FROM program_status WHERE id = ?", statusID)

	var (
		st        Status
		heartbeat int64
	)
	err := row.Scan(&st.Running, &st.PID, &heartbeat)
	if err == sql.ErrNoRows {
		return Status{}, nil
	}
	if err != nil {
		return Status{}, pkgerrors.Wrapf(err, "failed to read program status from %s", g.path)
	}
	if heartbeat > 0 {
		st.Heartbeat = time.Unix(heartbeat, 0)
	}
	return st, nil
}

func (g *Guard) live(st Status) bool {
	if !st.Running {
		return false
	}
	if st.PID == g.pid {
		return true
	}
	if !g.pidAlive(st.PID) {
		return false
	}
	return g.now().Sub(st.Heartbeat) <= g.staleAfter
}

// IsRunning reports whether a live instance holds the record. Records left
// by a crashed process, or with a stale heartbeat, are not live.
func (g *Guard) IsRunning() (bool, error) {
	st, err := g.Status()
	if err != nil {
		return false, err
	}
	return g.live(st), nil
}

// MarkRunning claims the record for this process. It returns
// ErrAlreadyRunning if another live instance holds it.
func (g *Guard) MarkRunning() error {
	tx, err := g.db.Begin()
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to begin transaction on %s", g.path)
	}
	defer tx.Rollback()

	var (
		st        Status
		heartbeat int64
	)
	err = tx.QueryRow("SELECT running, pid, heartbeat FROM program_status WHERE id = ?", statusID).
		Scan(&st.Running, &st.PID, &heartbeat)
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return pkgerrors.Wrapf(err, "failed to read program status from %s", g.path)
	default:
		st.Heartbeat = time.Unix(heartbeat, 0)
		if st.PID != g.pid && g.live(st) {
			return ErrAlreadyRunning
		}
		if st.Running {
			logrus.WithFields(logrus.Fields{
				"pid":       st.PID,
				"heartbeat": st.Heartbeat,
			}).Warn("reclaiming stale instance record")
		}
	}

	_, err = tx.Exec("INSERT OR REPLACE INTO program_status (id, running, pid, heartbeat) VALUES (?, 1, ?, ?)",
		statusID, g.pid, g.now().Unix())
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to write program status to %s", g.path)
	}
	return pkgerrors.Wrapf(tx.Commit(), "failed to commit program status to %s", g.path)
}

// Heartbeat refreshes the record timestamp if this process holds it.
func (g *Guard) Heartbeat() error {
	_, err := g.db.Exec("UPDATE program_status SET heartbeat = ? WHERE id = ? AND pid = ? AND running = 1",
		g.now().Unix(), statusID, g.pid)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to write heartbeat to %s", g.path)
	}
	return nil
}

// MarkStopped releases the record if this process holds it.
func (g *Guard) MarkStopped() error {
	_, err := g.db.Exec("UPDATE program_status SET running = 0 WHERE id = ? AND pid = ?", statusID, g.pid)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to clear program status in %s", g.path)
	}
	return nil
}
