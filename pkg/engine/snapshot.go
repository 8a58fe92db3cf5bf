package engine

import (
	"time"

	"github.com/sparks/battrack/pkg/accounting"
	"github.com/sparks/battrack/pkg/config"
	"github.com/sparks/battrack/pkg/history"
	"github.com/sparks/battrack/pkg/power"
	"github.com/sparks/battrack/pkg/threshold"
)

// Snapshot is the state published after every tick.
type Snapshot struct {
	Available bool   `json:"available"`
	Error     string `json:"error,omitempty"`
	// Sample and Remaining are only set when the source was available.
	Sample         *power.Sample       `json:"sample,omitempty"`
	Remaining      string              `json:"remaining,omitempty"`
	Account        accounting.Account  `json:"account"`
	Latest         *history.Entry      `json:"latest,omitempty"`
	ThresholdState threshold.State     `json:"thresholdState"`
	Config         config.EngineConfig `json:"config"`
	TakenAt        time.Time           `json:"takenAt"`
}

// Thresholds describes the notification policy.
type Thresholds struct {
	LowPercent  int             `json:"lowPercent"`
	HighPercent int             `json:"highPercent"`
	Enabled     bool            `json:"enabled"`
	State       threshold.State `json:"state"`
}

func (e *Engine) buildSnapshot(sample *power.Sample, err error, now time.Time) Snapshot {
	snap := Snapshot{
		Available:      err == nil && sample != nil,
		Account:        e.accountant.Account(),
		ThresholdState: e.policy.State(),
		Config:         e.cfg.Current(),
		TakenAt:        now,
	}
	if err != nil {
		snap.Error = err.Error()
	}
	if sample != nil {
		s := *sample
		snap.Sample = &s
		snap.Remaining = s.Remaining()
	}
	if latest, ok := e.history.Latest(); ok {
		snap.Latest = &latest
	}
	return snap
}
