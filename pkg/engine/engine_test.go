package engine

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sparks/battrack/pkg/accounting"
	"github.com/sparks/battrack/pkg/config"
	"github.com/sparks/battrack/pkg/events"
	"github.com/sparks/battrack/pkg/notify"
	"github.com/sparks/battrack/pkg/power"
	"github.com/sparks/battrack/pkg/threshold"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type recordingSink struct {
	mu   sync.Mutex
	got  []notify.Notification
	fail error
}

func (r *recordingSink) Notify(n notify.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, n)
	return r.fail
}

func (r *recordingSink) Events() []threshold.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []threshold.Event
	for _, n := range r.got {
		out = append(out, n.Event)
	}
	return out
}

type recordingPublisher struct {
	mu    sync.Mutex
	names []string
}

func (p *recordingPublisher) Publish(name string, _ any) {
	p.mu.Lock()
	p.names = append(p.names, name)
	p.mu.Unlock()
}

func (p *recordingPublisher) Names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.names...)
}

type harness struct {
	engine *Engine
	source *power.FakeSource
	clock  *fakeClock
	sink   *recordingSink
	pub    *recordingPublisher
	store  *config.Store
}

func newHarness(t *testing.T, mutate func(*config.EngineConfig), samples ...power.Sample) *harness {
	t.Helper()

	backend := config.NewFileBackend(filepath.Join(t.TempDir(), "config.json"))
	c := config.Default()
	if mutate != nil {
		mutate(&c)
	}
	require.NoError(t, backend.Write(c))

	h := &harness{
		source: power.NewFakeSource(samples...),
		clock:  newFakeClock(),
		sink:   &recordingSink{},
		pub:    &recordingPublisher{},
		store:  config.NewStore(backend),
	}
	e, err := New(Options{
		Source:    h.source,
		Config:    h.store,
		Sink:      h.sink,
		Publisher: h.pub,
		Now:       h.clock.Now,
	})
	require.NoError(t, err)
	h.engine = e

	e.mu.Lock()
	e.setBaseline(h.clock.Now())
	e.mu.Unlock()
	return h
}

func (h *harness) tick(n int) {
	for i := 0; i < n; i++ {
		h.clock.Advance(time.Second)
		h.engine.Tick()
	}
}

func sample(pct int, plugged bool) power.Sample {
	return power.Sample{Percentage: pct, PluggedIn: plugged}
}

func noResetOpposite(c *config.EngineConfig) {
	c.ResetOppositeBucketOnTransition = false
}

func TestEngine_TickAccounting(t *testing.T) {
	h := newHarness(t, noResetOpposite,
		sample(50, false), sample(49, false), sample(49, true))
	h.tick(3)

	snap := h.engine.Snapshot()
	require.True(t, snap.Available)
	assert.Equal(t, 3*time.Second, snap.Account.TotalInUse)
	assert.Equal(t, 2*time.Second, snap.Account.TotalOnBattery)
	assert.Equal(t, time.Second, snap.Account.TotalPluggedIn)
	assert.Equal(t, "Charging", snap.Remaining)
	require.NotNil(t, snap.Latest)
	assert.Equal(t, 49, snap.Latest.Percentage)
	assert.Len(t, h.engine.History(), 2)
}

func TestEngine_ResetOppositeDefault(t *testing.T) {
	h := newHarness(t, nil, sample(50, false), sample(49, false), sample(49, true))
	h.tick(3)

	account := h.engine.Snapshot().Account
	assert.Equal(t, time.Duration(0), account.TotalOnBattery)
	assert.Equal(t, time.Second, account.TotalPluggedIn)
	assert.Equal(t, account.TotalOnBattery+account.TotalPluggedIn, account.TotalInUse)
}

func TestEngine_UnavailableTickIsNoop(t *testing.T) {
	h := newHarness(t, noResetOpposite, sample(60, false), sample(59, false), sample(58, false))
	h.source.WithErrors(nil, power.ErrUnavailable)

	h.tick(1)
	before := h.engine.Snapshot()

	// The outage lasts a minute.
	h.clock.Advance(time.Minute)
	h.engine.Tick()
	during := h.engine.Snapshot()
	assert.False(t, during.Available)
	assert.NotEmpty(t, during.Error)
	assert.Nil(t, during.Sample)
	assert.Equal(t, before.Account, during.Account)
	assert.Equal(t, 1, len(h.engine.History()))

	h.tick(1)
	after := h.engine.Snapshot()
	assert.True(t, after.Available)
	assert.Equal(t, 2*time.Second, after.Account.TotalOnBattery, "the outage is not attributed")
}

func TestEngine_BaselineUsesWallClock(t *testing.T) {
	h := newHarness(t, nil, sample(50, false))

	h.engine.mu.Lock()
	h.engine.setBaseline(time.Now())
	baseline := h.engine.baseline
	h.engine.mu.Unlock()

	assert.NotContains(t, baseline.String(), "m=", "baseline keeps a monotonic reading")
}

func TestEngine_SuspendAndClockStep(t *testing.T) {
	h := newHarness(t, noResetOpposite,
		sample(50, false), sample(50, false), sample(49, false), sample(49, false))
	h.tick(1)

	// Suspended for ten minutes between ticks.
	h.clock.Advance(10 * time.Minute)
	h.engine.Tick()
	assert.Equal(t, 10*time.Minute+time.Second, h.engine.Snapshot().Account.TotalOnBattery)

	// The wall clock is stepped back an hour.
	before := h.engine.Snapshot().Account
	h.clock.Advance(-time.Hour)
	h.engine.Tick()
	assert.Equal(t, before, h.engine.Snapshot().Account)

	h.tick(1)
	assert.Equal(t, before.TotalOnBattery+time.Second, h.engine.Snapshot().Account.TotalOnBattery)
}

func TestEngine_FirstTickAttributesOneInterval(t *testing.T) {
	h := newHarness(t, nil, sample(70, true))
	h.tick(1)
	assert.Equal(t, time.Second, h.engine.Snapshot().Account.TotalPluggedIn)
}

func TestEngine_NotifiesOnceOnLow(t *testing.T) {
	h := newHarness(t, nil, sample(25, false), sample(20, false), sample(15, false), sample(25, false))
	h.tick(4)

	assert.Equal(t, []threshold.Event{threshold.PlugInRequested}, h.sink.Events())
	assert.Equal(t, threshold.Normal, h.engine.Snapshot().ThresholdState)
}

func TestEngine_SinkFailureDoesNotStopTick(t *testing.T) {
	h := newHarness(t, nil, sample(10, false), sample(9, false))
	h.sink.fail = errors.New("no notification daemon")
	h.tick(2)

	assert.Len(t, h.sink.Events(), 1)
	assert.Len(t, h.engine.History(), 2)
}

func TestEngine_NotificationsDisabledSuppressesSinkOnly(t *testing.T) {
	h := newHarness(t, func(c *config.EngineConfig) { c.NotificationsEnabled = false },
		sample(15, false), sample(14, false))
	h.tick(1)

	assert.Empty(t, h.sink.Events())
	assert.Equal(t, threshold.Low, h.engine.Snapshot().ThresholdState)

	require.NoError(t, h.engine.SetNotificationsEnabled(true))
	h.tick(1)
	assert.Empty(t, h.sink.Events(), "re-enabling does not replay an old edge")
}

func TestEngine_BatteryCareDisabled(t *testing.T) {
	h := newHarness(t, func(c *config.EngineConfig) { c.BatteryCareEnabled = false },
		sample(10, false), sample(95, true))
	h.tick(2)

	assert.Empty(t, h.sink.Events())
	assert.Equal(t, threshold.Normal, h.engine.Thresholds().State)
	assert.False(t, h.engine.Thresholds().Enabled)

	require.NoError(t, h.engine.SetBatteryCareEnabled(true))
	h.tick(1)
	assert.Equal(t, []threshold.Event{threshold.UnplugRequested}, h.sink.Events())
}

func TestEngine_SettersPersist(t *testing.T) {
	h := newHarness(t, nil, sample(50, false))

	require.NoError(t, h.engine.SetStartAtLogin(true))
	require.NoError(t, h.engine.SetStartMinimized(false))
	require.NoError(t, h.engine.SetResetOppositeBucketOnTransition(false))
	assert.ErrorIs(t, h.engine.Set("bogus", true), config.ErrUnknownKey)

	other, err := h.store.Load()
	require.NoError(t, err)
	assert.True(t, other.StartAtLogin)
	assert.False(t, other.StartMinimized)
	assert.False(t, other.ResetOppositeBucketOnTransition)
	assert.False(t, h.engine.accountant.ResetOppositeOnTransition())

	assert.Equal(t, []string{events.ConfigChanged, events.ConfigChanged, events.ConfigChanged}, h.pub.Names())
}

func TestEngine_ResetAndClearHistory(t *testing.T) {
	h := newHarness(t, nil, sample(50, false), sample(49, false))
	h.tick(2)

	require.NoError(t, h.engine.Reset(accounting.BucketAll))
	assert.Equal(t, accounting.Account{}, h.engine.Snapshot().Account)
	assert.ErrorIs(t, h.engine.Reset("bogus"), accounting.ErrInvalidBucket)

	h.engine.ClearHistory()
	assert.Empty(t, h.engine.History())

	names := h.pub.Names()
	assert.Equal(t, []string{events.Snapshot, events.Snapshot, events.AccountReset, events.HistoryCleared}, names)
}

func TestEngine_ReloadConfig(t *testing.T) {
	backend := config.NewFileBackend(filepath.Join(t.TempDir(), "config.json"))
	store := config.NewStore(backend)

	var keys []string
	e, err := New(Options{
		Source:         power.NewFakeSource(sample(10, false)),
		Config:         store,
		OnConfigChange: func(key string, _ config.EngineConfig) { keys = append(keys, key) },
	})
	require.NoError(t, err)

	c := config.Default()
	c.BatteryCareEnabled = false
	require.NoError(t, backend.Write(c))

	require.NoError(t, e.ReloadConfig())
	assert.False(t, e.Config().BatteryCareEnabled)
	assert.False(t, e.Thresholds().Enabled)
	assert.Equal(t, []string{""}, keys)

	require.NoError(t, e.ReloadConfig())
	assert.Len(t, keys, 1, "unchanged reload does not fire the hook")
}

// staleBackend always reads the defaults and refuses writes.
type staleBackend struct{}

func (staleBackend) Read() (config.EngineConfig, error) { return config.Default(), nil }
func (staleBackend) Write(config.EngineConfig) error     { return errors.New("read-only file system") }
func (staleBackend) Location() string                   { return "stale" }

func TestEngine_ReloadKeepsUnsavedSetting(t *testing.T) {
	e, err := New(Options{
		Source: power.NewFakeSource(sample(10, false)),
		Config: config.NewStore(staleBackend{}),
	})
	require.NoError(t, err)

	require.Error(t, e.SetBatteryCareEnabled(false))
	assert.False(t, e.Config().BatteryCareEnabled)

	assert.Error(t, e.ReloadConfig())
	assert.False(t, e.Config().BatteryCareEnabled)
	assert.False(t, e.Thresholds().Enabled)
}

func TestEngine_RunSavesConfigOnShutdown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	store := config.NewStore(config.NewFileBackend(path))

	var (
		mu    sync.Mutex
		ticks int
	)
	e, err := New(Options{
		Source:    power.NewFakeSource(sample(50, false)),
		Config:    store,
		Interval:  10 * time.Millisecond,
		Publisher: publisherFunc(func(string, any) { mu.Lock(); ticks++; mu.Unlock() }),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return ticks >= 3
	}, 3*time.Second, 5*time.Millisecond)

	// Simulate another writer; shutdown must write the in-memory value back.
	c := config.Default()
	c.StartAtLogin = true
	require.NoError(t, config.NewFileBackend(path).Write(c))

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	got, err := config.NewFileBackend(path).Read()
	require.NoError(t, err)
	assert.False(t, got.StartAtLogin)
	assert.Greater(t, e.Snapshot().Account.TotalOnBattery, time.Duration(0))
}

type publisherFunc func(string, any)

func (f publisherFunc) Publish(name string, payload any) { f(name, payload) }

func TestNew_Validation(t *testing.T) {
	store := config.NewStore(config.NewFileBackend(filepath.Join(t.TempDir(), "config.json")))

	_, err := New(Options{Config: store})
	assert.Error(t, err)
	_, err = New(Options{Source: power.NewFakeSource()})
	assert.Error(t, err)
	_, err = New(Options{Source: power.NewFakeSource(), Config: store, LowPercent: 80, HighPercent: 20})
	assert.Error(t, err)
}
