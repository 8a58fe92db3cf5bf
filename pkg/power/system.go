package power

import (
	"math"
	"time"

	"github.com/distatus/battery"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// SystemSource reads the first battery reported by the operating system.
type SystemSource struct {
	now func() time.Time
}

// NewSystemSource returns a Source backed by github.com/distatus/battery.
func NewSystemSource() *SystemSource {
	return &SystemSource{now: time.Now}
}

func (s *SystemSource) Sample() (Sample, error) {
	batteries, err := battery.GetAll()
	if err != nil && len(batteries) == 0 {
		return Sample{}, pkgerrors.Wrapf(ErrUnavailable, "failed to read batteries: %v", err)
	}
	if err != nil {
		// Partial errors still leave usable readings.
		logrus.WithError(err).Trace("battery reported partial errors")
	}
	if len(batteries) == 0 || batteries[0] == nil {
		return Sample{}, pkgerrors.Wrap(ErrUnavailable, "no batteries found")
	}

	// Only the first battery is tracked.
	return sampleFromBattery(batteries[0], s.now()), nil
}

func sampleFromBattery(bat *battery.Battery, now time.Time) Sample {
	percentage := 0
	if bat.Full > 0 {
		percentage = clampPercentage(int(math.Round(bat.Current / bat.Full * 100)))
	}

	pluggedIn := bat.State != battery.Discharging

	s := Sample{
		Percentage: percentage,
		PluggedIn:  pluggedIn,
		ObservedAt: now.Round(0),
	}

	if !pluggedIn && percentage < 100 && bat.ChargeRate > 0 {
		secs := int(bat.Current / bat.ChargeRate * 3600)
		s.SecondsRemaining = &secs
	}

	return s
}
