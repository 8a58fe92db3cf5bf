package power

import (
	"sync"
	"time"
)

// FakeSource replays a fixed sequence of readings. After the last reading it
// keeps returning the last one. A nil entry in Errs at index i makes the i-th
// call succeed; a non-nil entry is returned instead of a reading.
type FakeSource struct {
	mu      sync.Mutex
	samples []Sample
	errs    []error
	calls   int
	now     func() time.Time
}

// NewFakeSource returns a FakeSource replaying samples.
func NewFakeSource(samples ...Sample) *FakeSource {
	return &FakeSource{samples: samples, now: time.Now}
}

// WithErrors sets the per-call errors.
func (f *FakeSource) WithErrors(errs ...error) *FakeSource {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs = errs
	return f
}

// Push appends readings to the replay queue.
func (f *FakeSource) Push(samples ...Sample) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.samples = append(f.samples, samples...)
}

// Calls returns how many times Sample was called.
func (f *FakeSource) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *FakeSource) Sample() (Sample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	i := f.calls
	f.calls++

	if i < len(f.errs) && f.errs[i] != nil {
		return Sample{}, f.errs[i]
	}
	if len(f.samples) == 0 {
		return Sample{}, ErrUnavailable
	}
	if i >= len(f.samples) {
		i = len(f.samples) - 1
	}

	s := f.samples[i]
	if s.ObservedAt.IsZero() {
		s.ObservedAt = f.now().Round(0)
	}
	return s, nil
}

// Simulator is a development Source that discharges to low, plugs in,
// charges to high and unplugs again, one percent per reading.
type Simulator struct {
	mu         sync.Mutex
	percentage int
	pluggedIn  bool
	low, high  int
	// SecondsPerPercent drives the remaining-time estimate.
	SecondsPerPercent int
}

// NewSimulator starts at start% unplugged and turns around at low and high.
func NewSimulator(start, low, high int) *Simulator {
	return &Simulator{
		percentage:        clampPercentage(start),
		low:               low,
		high:              high,
		SecondsPerPercent: 180,
	}
}

func (s *Simulator) Sample() (Sample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// The turnaround takes effect one reading late so that the reading past
	// a threshold is reported with the old plugged state.
	if s.pluggedIn {
		if s.percentage > s.high {
			s.pluggedIn = false
		} else {
			s.percentage++
		}
	} else {
		if s.percentage < s.low {
			s.pluggedIn = true
		} else {
			s.percentage--
		}
	}
	s.percentage = clampPercentage(s.percentage)

	sample := Sample{
		Percentage: s.percentage,
		PluggedIn:  s.pluggedIn,
		ObservedAt: time.Now().Round(0),
	}
	if !s.pluggedIn && s.percentage < 100 {
		secs := s.percentage * s.SecondsPerPercent
		sample.SecondsRemaining = &secs
	}
	return sample, nil
}
