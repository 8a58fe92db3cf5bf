package power

import "testing"

func TestRemainingLabel(t *testing.T) {
	secs := func(i int) *int { return &i }

	tests := []struct {
		name       string
		percentage int
		pluggedIn  bool
		seconds    *int
		want       string
	}{
		{name: "fully charged on battery", percentage: 100, pluggedIn: false, want: "Fully Charged"},
		{name: "plugged in at 30", percentage: 30, pluggedIn: true, seconds: secs(100), want: "Charging"},
		{name: "plugged in at 100", percentage: 100, pluggedIn: true, want: "Charging"},
		{name: "ninety minutes", percentage: 50, seconds: secs(5400), want: "1 H : 30 Min"},
		{name: "seconds are truncated", percentage: 50, seconds: secs(3659), want: "1 H : 0 Min"},
		{name: "under a minute", percentage: 3, seconds: secs(59), want: "0 H : 0 Min"},
		{name: "long runtime", percentage: 99, seconds: secs(36000 + 59*60), want: "10 H : 59 Min"},
		{name: "estimate missing", percentage: 40, want: "Unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RemainingLabel(tt.percentage, tt.pluggedIn, tt.seconds); got != tt.want {
				t.Errorf("RemainingLabel() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSampleRemaining(t *testing.T) {
	secs := 5400
	s := Sample{Percentage: 50, SecondsRemaining: &secs}
	if got := s.Remaining(); got != "1 H : 30 Min" {
		t.Fatalf("Remaining() = %q", got)
	}
	if got := s.String(); got != "50% Unplugged (1 H : 30 Min)" {
		t.Fatalf("String() = %q", got)
	}
}
