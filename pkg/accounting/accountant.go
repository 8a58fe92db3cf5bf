package accounting

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Bucket names one of the time accumulators.
type Bucket string

const (
	BucketTotal     Bucket = "total"
	BucketBattery   Bucket = "battery"
	BucketPluggedIn Bucket = "plugged"
	BucketAll       Bucket = "all"
)

// ErrInvalidBucket is returned by ParseBucket for unknown names.
var ErrInvalidBucket = fmt.Errorf("invalid bucket, must be one of %s, %s, %s, %s",
	BucketTotal, BucketBattery, BucketPluggedIn, BucketAll)

// ParseBucket parses a bucket name. It is case-insensitive.
func ParseBucket(s string) (Bucket, error) {
	switch b := Bucket(strings.ToLower(strings.TrimSpace(s))); b {
	case BucketTotal, BucketBattery, BucketPluggedIn, BucketAll:
		return b, nil
	case "plugged-in", "pluggedin":
		return BucketPluggedIn, nil
	default:
		return "", ErrInvalidBucket
	}
}

// Account is a read-only view of the accumulated time.
// TotalInUse always equals TotalOnBattery + TotalPluggedIn.
type Account struct {
	TotalInUse     time.Duration `json:"totalInUse"`
	TotalOnBattery time.Duration `json:"totalOnBattery"`
	TotalPluggedIn time.Duration `json:"totalPluggedIn"`
}

// LogrusFields returns the account as log fields.
func (a Account) LogrusFields() logrus.Fields {
	return logrus.Fields{
		"totalInUse":     a.TotalInUse.String(),
		"totalOnBattery": a.TotalOnBattery.String(),
		"totalPluggedIn": a.TotalPluggedIn.String(),
	}
}

// Accountant attributes elapsed time to the on-battery or plugged-in bucket.
// It is not safe for concurrent use; the engine serializes access.
type Accountant struct {
	onBattery time.Duration
	pluggedIn time.Duration

	resetOpposite bool

	// hasLast is false until the first tick, so the first tick is never a
	// transition.
	hasLast       bool
	lastPluggedIn bool
}

// NewAccountant returns an Accountant with all buckets at zero.
func NewAccountant() *Accountant {
	return &Accountant{}
}

// SetResetOppositeOnTransition toggles clearing the now-inactive bucket when
// the plugged state flips.
func (a *Accountant) SetResetOppositeOnTransition(enabled bool) {
	a.resetOpposite = enabled
}

// ResetOppositeOnTransition reports whether the transition reset is enabled.
func (a *Accountant) ResetOppositeOnTransition() bool {
	return a.resetOpposite
}

// Tick adds elapsed to the total and to the bucket selected by pluggedIn.
// Negative elapsed values, caused by wall-clock adjustments, count as zero.
func (a *Accountant) Tick(elapsed time.Duration, pluggedIn bool) {
	if elapsed < 0 {
		logrus.WithField("elapsed", elapsed.String()).Debug("negative elapsed time clamped to zero")
		elapsed = 0
	}

	transition := a.hasLast && a.lastPluggedIn != pluggedIn
	a.hasLast = true
	a.lastPluggedIn = pluggedIn

	if pluggedIn {
		a.pluggedIn += elapsed
		if transition && a.resetOpposite && a.onBattery != 0 {
			logrus.WithField("totalOnBattery", a.onBattery.String()).Debug("plugged in, resetting on-battery time")
			a.onBattery = 0
		}
	} else {
		a.onBattery += elapsed
		if transition && a.resetOpposite && a.pluggedIn != 0 {
			logrus.WithField("totalPluggedIn", a.pluggedIn.String()).Debug("unplugged, resetting plugged-in time")
			a.pluggedIn = 0
		}
	}
}

// Reset zeroes a bucket. Resetting a sub-bucket also removes its time from
// the total. Resetting the total zeroes every bucket. The last observed
// plugged state is kept, so the next tick can still detect a transition.
func (a *Accountant) Reset(b Bucket) error {
	switch b {
	case BucketBattery:
		a.onBattery = 0
	case BucketPluggedIn:
		a.pluggedIn = 0
	case BucketTotal, BucketAll:
		a.onBattery = 0
		a.pluggedIn = 0
	default:
		return ErrInvalidBucket
	}
	return nil
}

// Account returns a copy of the buckets.
func (a *Accountant) Account() Account {
	return Account{
		TotalInUse:     a.onBattery + a.pluggedIn,
		TotalOnBattery: a.onBattery,
		TotalPluggedIn: a.pluggedIn,
	}
}

// FormatDuration renders d as H:MM:SS, dropping sub-second precision.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	return fmt.Sprintf("%d:%02d:%02d", secs/3600, (secs%3600)/60, secs%60)
}
