package power

import (
	"testing"
	"time"

	"github.com/distatus/battery"
)

func TestSampleFromBattery(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	s := sampleFromBattery(&battery.Battery{
		State:      battery.Discharging,
		Current:    25000,
		Full:       50000,
		ChargeRate: 10000,
	}, now)
	if s.Percentage != 50 || s.PluggedIn {
		t.Fatalf("sampleFromBattery() = %+v, want 50%% unplugged", s)
	}
	if s.SecondsRemaining == nil || *s.SecondsRemaining != 9000 {
		t.Fatalf("SecondsRemaining = %v, want 9000", s.SecondsRemaining)
	}
	if !s.ObservedAt.Equal(now) {
		t.Fatalf("ObservedAt = %v, want %v", s.ObservedAt, now)
	}

	s = sampleFromBattery(&battery.Battery{
		State:   battery.Charging,
		Current: 49000,
		Full:    50000,
	}, now)
	if s.Percentage != 98 || !s.PluggedIn || s.SecondsRemaining != nil {
		t.Fatalf("sampleFromBattery() = %+v, want 98%% plugged", s)
	}
}
