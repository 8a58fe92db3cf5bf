// Package threshold implements the edge-triggered low/high battery
// notification state machine.
package threshold

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/sparks/battrack/pkg/power"
)

const (
	DefaultLowPercent  = 21
	DefaultHighPercent = 80
)

// State is the current threshold band of the battery.
type State int

const (
	Normal State = iota
	Low
	High
)

func (s State) String() string {
	switch s {
	case Low:
		return "low"
	case High:
		return "high"
	default:
		return "normal"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	switch string(b) {
	case "normal":
		*s = Normal
	case "low":
		*s = Low
	case "high":
		*s = High
	default:
		return fmt.Errorf("unknown threshold state %q", b)
	}
	return nil
}

// Event is emitted on entry into a non-normal state.
type Event int

const (
	PlugInRequested Event = iota + 1
	UnplugRequested
)

func (e Event) String() string {
	switch e {
	case PlugInRequested:
		return "plug-in-requested"
	case UnplugRequested:
		return "unplug-requested"
	default:
		return "unknown"
	}
}

func (e Event) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

func (e *Event) UnmarshalText(b []byte) error {
	switch string(b) {
	case "plug-in-requested":
		*e = PlugInRequested
	case "unplug-requested":
		*e = UnplugRequested
	default:
		return fmt.Errorf("unknown threshold event %q", b)
	}
	return nil
}

// Title is the notification title shown to the user.
func (e Event) Title() string {
	switch e {
	case PlugInRequested:
		return "Plugged In"
	case UnplugRequested:
		return "Unplugged"
	default:
		return ""
	}
}

// Body is the notification body shown to the user.
func (e Event) Body() string {
	switch e {
	case PlugInRequested:
		return "Please connect the charger."
	case UnplugRequested:
		return "Please disconnect the charger."
	default:
		return ""
	}
}

// Validate checks 1 <= low < high <= 100.
func Validate(low, high int) error {
	if low < 1 || low > 100 {
		return fmt.Errorf("low threshold %d out of range [1, 100]", low)
	}
	if high < 1 || high > 100 {
		return fmt.Errorf("high threshold %d out of range [1, 100]", high)
	}
	if low >= high {
		return fmt.Errorf("low threshold %d must be below high threshold %d", low, high)
	}
	return nil
}

// Policy tracks the threshold state across samples.
// It is not safe for concurrent use.
type Policy struct {
	low     int
	high    int
	enabled bool
	state   State
}

// New returns an enabled policy in the Normal state.
func New(low, high int) (*Policy, error) {
	if err := Validate(low, high); err != nil {
		return nil, err
	}
	return &Policy{low: low, high: high, enabled: true}, nil
}

// Thresholds returns the low and high percentages.
func (p *Policy) Thresholds() (low, high int) {
	return p.low, p.high
}

// State returns the current state.
func (p *Policy) State() State {
	return p.state
}

// Enabled reports whether evaluation is enabled.
func (p *Policy) Enabled() bool {
	return p.enabled
}

// SetEnabled toggles evaluation. Disabling forces the state to Normal.
func (p *Policy) SetEnabled(enabled bool) {
	if !enabled {
		p.state = Normal
	}
	p.enabled = enabled
}

func (p *Policy) classify(s power.Sample) State {
	switch {
	case s.Percentage < p.low && !s.PluggedIn:
		return Low
	case s.Percentage > p.high && s.PluggedIn:
		return High
	default:
		return Normal
	}
}

// Evaluate moves the state machine with s and returns an event only when a
// non-normal state is entered.
func (p *Policy) Evaluate(s power.Sample) (Event, bool) {
	if !p.enabled {
		return 0, false
	}

	next := p.classify(s)
	prev := p.state
	p.state = next
	if next == prev {
		return 0, false
	}

	logrus.WithFields(logrus.Fields{
		"from":       prev.String(),
		"to":         next.String(),
		"percentage": s.Percentage,
		"pluggedIn":  s.PluggedIn,
	}).Debug("threshold state changed")

	switch next {
	case Low:
		return PlugInRequested, true
	case High:
		return UnplugRequested, true
	default:
		return 0, false
	}
}
