package power

import (
	"errors"
	"fmt"
	"time"
)

// ErrUnavailable is returned by a Source that cannot read a battery, e.g. on
// desktop hardware without a battery sensor.
var ErrUnavailable = errors.New("power source unavailable")

// Sample is a point-in-time battery reading. It is never modified after a
// Source returns it.
type Sample struct {
	Percentage int  `json:"percentage"`
	PluggedIn  bool `json:"pluggedIn"`
	// SecondsRemaining is set only while discharging below 100%.
	SecondsRemaining *int      `json:"secondsRemaining,omitempty"`
	ObservedAt       time.Time `json:"observedAt"`
}

// Source supplies battery readings.
type Source interface {
	Sample() (Sample, error)
}

// SourceFunc adapts a plain function to a Source.
type SourceFunc func() (Sample, error)

func (f SourceFunc) Sample() (Sample, error) {
	return f()
}

// Remaining returns the remaining-time label of the sample.
func (s Sample) Remaining() string {
	return RemainingLabel(s.Percentage, s.PluggedIn, s.SecondsRemaining)
}

func (s Sample) String() string {
	state := "Unplugged"
	if s.PluggedIn {
		state = "Plugged"
	}
	return fmt.Sprintf("%d%% %s (%s)", s.Percentage, state, s.Remaining())
}

func clampPercentage(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
