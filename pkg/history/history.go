// Package history keeps an in-memory log of observed battery states, recording
// an entry only when the percentage changes from the previous entry.
package history

import (
	"time"

	"github.com/sparks/battrack/pkg/power"
)

// Entry is one recorded state change.
type Entry struct {
	ObservedAt     time.Time `json:"observedAt"`
	Percentage     int       `json:"percentage"`
	PluggedIn      bool      `json:"pluggedIn"`
	RemainingLabel string    `json:"remainingLabel"`
}

// PluggedLabel returns "Plugged" or "Unplugged".
func (e Entry) PluggedLabel() string {
	if e.PluggedIn {
		return "Plugged"
	}
	return "Unplugged"
}

// Log is an append-only, adjacent-duplicate suppressed history.
// It is not safe for concurrent use.
type Log struct {
	entries []Entry
}

// New returns an empty log.
func New() *Log {
	return &Log{}
}

// Record appends an entry for s if the log is empty or s.Percentage differs
// from the latest entry. The new entry and true are returned when appended.
func (l *Log) Record(s power.Sample) (Entry, bool) {
	if n := len(l.entries); n > 0 && l.entries[n-1].Percentage == s.Percentage {
		return Entry{}, false
	}

	e := Entry{
		ObservedAt:     s.ObservedAt,
		Percentage:     s.Percentage,
		PluggedIn:      s.PluggedIn,
		RemainingLabel: s.Remaining(),
	}
	l.entries = append(l.entries, e)
	return e, true
}

// Clear drops every entry. The next Record always appends.
func (l *Log) Clear() {
	l.entries = nil
}

// Entries returns a copy of the entries in insertion order.
func (l *Log) Entries() []Entry {
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Latest returns the most recent entry.
func (l *Log) Latest() (Entry, bool) {
	if len(l.entries) == 0 {
		return Entry{}, false
	}
	return l.entries[len(l.entries)-1], true
}

// Len returns the number of entries.
func (l *Log) Len() int {
	return len(l.entries)
}
