package threshold

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sparks/battrack/pkg/power"
)

func s(pct int, plugged bool) power.Sample {
	return power.Sample{Percentage: pct, PluggedIn: plugged}
}

func newPolicy(t *testing.T) *Policy {
	t.Helper()
	p, err := New(DefaultLowPercent, DefaultHighPercent)
	require.NoError(t, err)
	return p
}

func TestPolicy_LowFiresOnce(t *testing.T) {
	p := newPolicy(t)

	var events []Event
	var at []int
	for _, pct := range []int{25, 20, 15, 25} {
		if e, ok := p.Evaluate(s(pct, false)); ok {
			events = append(events, e)
			at = append(at, pct)
		}
	}

	assert.Equal(t, []Event{PlugInRequested}, events)
	assert.Equal(t, []int{20}, at)
	assert.Equal(t, Normal, p.State())
}

func TestPolicy_HighFiresOnce(t *testing.T) {
	p := newPolicy(t)

	var events []Event
	for _, pct := range []int{79, 80, 81, 90, 100} {
		if e, ok := p.Evaluate(s(pct, true)); ok {
			events = append(events, e)
		}
	}
	assert.Equal(t, []Event{UnplugRequested}, events)
	assert.Equal(t, High, p.State())
}

func TestPolicy_Boundaries(t *testing.T) {
	tests := []struct {
		name   string
		sample power.Sample
		want   State
	}{
		{"at low unplugged", s(21, false), Normal},
		{"below low unplugged", s(20, false), Low},
		{"below low plugged", s(5, true), Normal},
		{"at high plugged", s(80, true), Normal},
		{"above high plugged", s(81, true), High},
		{"above high unplugged", s(95, false), Normal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPolicy(t)
			p.Evaluate(tt.sample)
			assert.Equal(t, tt.want, p.State())
		})
	}
}

func TestPolicy_PluggingInLeavesLow(t *testing.T) {
	p := newPolicy(t)

	e, ok := p.Evaluate(s(15, false))
	require.True(t, ok)
	assert.Equal(t, PlugInRequested, e)

	_, ok = p.Evaluate(s(15, true))
	assert.False(t, ok)
	assert.Equal(t, Normal, p.State())

	// Unplugging again while still low re-enters Low.
	e, ok = p.Evaluate(s(15, false))
	require.True(t, ok)
	assert.Equal(t, PlugInRequested, e)
}

func TestPolicy_DirectLowToHigh(t *testing.T) {
	p, err := New(50, 60)
	require.NoError(t, err)

	_, ok := p.Evaluate(s(40, false))
	require.True(t, ok)

	e, ok := p.Evaluate(s(70, true))
	require.True(t, ok)
	assert.Equal(t, UnplugRequested, e)
}

func TestPolicy_Disabled(t *testing.T) {
	p := newPolicy(t)
	p.Evaluate(s(10, false))
	require.Equal(t, Low, p.State())

	p.SetEnabled(false)
	assert.Equal(t, Normal, p.State())
	for _, pct := range []int{5, 95} {
		_, ok := p.Evaluate(s(pct, pct > 50))
		assert.False(t, ok)
		assert.Equal(t, Normal, p.State())
	}

	p.SetEnabled(true)
	e, ok := p.Evaluate(s(10, false))
	require.True(t, ok, "re-enabling fires again for a condition that still holds")
	assert.Equal(t, PlugInRequested, e)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		low, high int
		wantErr   bool
	}{
		{21, 80, false},
		{1, 100, false},
		{0, 80, true},
		{21, 101, true},
		{50, 50, true},
		{60, 40, true},
	}
	for _, tt := range tests {
		err := Validate(tt.low, tt.high)
		if (err != nil) != tt.wantErr {
			t.Errorf("Validate(%d, %d) error = %v, wantErr %v", tt.low, tt.high, err, tt.wantErr)
		}
	}
	_, err := New(0, 10)
	assert.Error(t, err)
}

func TestEvent_Text(t *testing.T) {
	assert.Equal(t, "Plugged In", PlugInRequested.Title())
	assert.Equal(t, "Please connect the charger.", PlugInRequested.Body())
	assert.Equal(t, "Unplugged", UnplugRequested.Title())
	assert.Equal(t, "Please disconnect the charger.", UnplugRequested.Body())
}

func TestState_TextRoundTrip(t *testing.T) {
	for _, st := range []State{Normal, Low, High} {
		b, err := st.MarshalText()
		require.NoError(t, err)
		var got State
		require.NoError(t, got.UnmarshalText(b))
		assert.Equal(t, st, got)
	}
	var st State
	assert.Error(t, st.UnmarshalText([]byte("critical")))
}
