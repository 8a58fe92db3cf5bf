package daemon

import (
	"sync"
	"time"
)

// TimeSeriesRecorder records the last N heartbeat times.
type TimeSeriesRecorder struct {
	MaxRecordCount int
	// Interval is the expected spacing of records. Two records further apart
	// than Interval plus one second break continuity.
	Interval time.Duration
	records  []time.Time
	mu       *sync.Mutex
	now      func() time.Time
}

// NewTimeSeriesRecorder returns a new TimeSeriesRecorder.
func NewTimeSeriesRecorder(maxRecordCount int, interval time.Duration) *TimeSeriesRecorder {
	return &TimeSeriesRecorder{
		MaxRecordCount: maxRecordCount,
		Interval:       interval,
		records:        make([]time.Time, 0, maxRecordCount),
		mu:             &sync.Mutex{},
		now:            time.Now,
	}
}

// AddRecord adds a new record and returns the gap since the previous one,
// or zero for the first record.
func (r *TimeSeriesRecorder) AddRecord(t time.Time) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Strip monotonic clock reading.
	// This keeps gaps accurate across system sleep.
	t = t.Round(0)

	var gap time.Duration
	if n := len(r.records); n > 0 {
		gap = t.Sub(r.records[n-1])
	}

	if len(r.records) >= r.MaxRecordCount {
		r.records = r.records[1:]
	}
	r.records = append(r.records, t)
	return gap
}

// GetRecords returns a copy of the records.
func (r *TimeSeriesRecorder) GetRecords() []time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]time.Time(nil), r.records...)
}

// GetLastRecord returns the last record.
func (r *TimeSeriesRecorder) GetLastRecord() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.records) == 0 {
		return time.Time{}
	}
	return r.records[len(r.records)-1]
}

// GetRecordsIn returns the number of continuous records in the last duration.
func (r *TimeSeriesRecorder) GetRecordsIn(last time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	tolerance := r.Interval + time.Second

	// The last record must be recent.
	if n := len(r.records); n == 0 || now.Sub(r.records[n-1]) >= tolerance {
		return 0
	}

	// Walk back from the newest record while adjacent records are close.
	count := 0
	for i := len(r.records) - 1; i >= 0; i-- {
		record := r.records[i]
		if now.Sub(record) > last {
			break
		}
		if i+1 < len(r.records) && r.records[i+1].Sub(record) >= tolerance {
			break
		}
		count++
	}

	return count
}
