// Package engine drives the periodic battery sampling and feeds the time
// accountant, the threshold policy and the history log.
package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sparks/battrack/pkg/accounting"
	"github.com/sparks/battrack/pkg/config"
	"github.com/sparks/battrack/pkg/events"
	"github.com/sparks/battrack/pkg/history"
	"github.com/sparks/battrack/pkg/notify"
	"github.com/sparks/battrack/pkg/power"
	"github.com/sparks/battrack/pkg/threshold"
)

const DefaultInterval = time.Second

// Reset sources reported in account.reset events.
const (
	SourceAPI      = "api"
	SourceSchedule = "schedule"
)

// Publisher receives engine events. *events.EventHub implements it.
type Publisher interface {
	Publish(name string, payload any)
}

// Options configures an Engine. Source and Config are required.
type Options struct {
	Source power.Source
	Config config.Config
	// Sink defaults to notify.LogSink.
	Sink        notify.Sink
	Publisher   Publisher
	LowPercent  int
	HighPercent int
	Interval    time.Duration
	// OnConfigChange runs after a setting changed, with the key that changed
	// or an empty key after a reload. It is called with the engine lock held
	// and must not call back into the engine.
	OnConfigChange func(key string, c config.EngineConfig)
	// Now defaults to time.Now.
	Now func() time.Time
}

// Engine owns the accountant, policy and history, and serializes every
// mutation of them behind one lock.
type Engine struct {
	mu sync.Mutex

	source    power.Source
	cfg       config.Config
	sink      notify.Sink
	publisher Publisher
	onConfig  func(string, config.EngineConfig)
	interval  time.Duration
	now       func() time.Time

	accountant *accounting.Accountant
	history    *history.Log
	policy     *threshold.Policy

	hasBaseline bool
	baseline    time.Time
	available   bool
	snapshot    Snapshot
}

func New(opts Options) (*Engine, error) {
	if opts.Source == nil {
		return nil, errors.New("power source is required")
	}
	if opts.Config == nil {
		return nil, errors.New("config is required")
	}
	if opts.LowPercent == 0 && opts.HighPercent == 0 {
		opts.LowPercent, opts.HighPercent = threshold.DefaultLowPercent, threshold.DefaultHighPercent
	}
	policy, err := threshold.New(opts.LowPercent, opts.HighPercent)
	if err != nil {
		return nil, err
	}
	if opts.Sink == nil {
		opts.Sink = notify.LogSink{}
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	e := &Engine{
		source:     opts.Source,
		cfg:        opts.Config,
		sink:       opts.Sink,
		publisher:  opts.Publisher,
		onConfig:   opts.OnConfigChange,
		interval:   opts.Interval,
		now:        opts.Now,
		accountant: accounting.NewAccountant(),
		history:    history.New(),
		policy:     policy,
		available:  true,
	}
	e.applyConfig(opts.Config.Current())
	e.snapshot = e.buildSnapshot(nil, nil, e.now())

	return e, nil
}

func (e *Engine) Interval() time.Duration {
	return e.interval
}

// applyConfig pushes the settings that affect the tick into the components.
func (e *Engine) applyConfig(c config.EngineConfig) {
	if e.policy.Enabled() != c.BatteryCareEnabled {
		e.policy.SetEnabled(c.BatteryCareEnabled)
	}
	e.accountant.SetResetOppositeOnTransition(c.ResetOppositeBucketOnTransition)
}

func (e *Engine) publish(name string, payload any) {
	if e.publisher != nil {
		e.publisher.Publish(name, payload)
	}
}

// setBaseline makes the next tick measure elapsed time from t. The
// monotonic reading is stripped so elapsed follows the wall clock and time
// spent suspended is counted. A wall clock stepped backwards yields a
// negative elapsed, which the accountant clamps to zero.
func (e *Engine) setBaseline(t time.Time) {
	e.baseline = t.Round(0)
	e.hasBaseline = true
}

// Run ticks every interval until ctx is done, then persists the in-memory
// configuration.
func (e *Engine) Run(ctx context.Context) error {
	e.mu.Lock()
	e.setBaseline(e.now())
	e.mu.Unlock()

	logrus.WithField("interval", e.interval.String()).Info("engine started")

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			ticker.Stop()
			logrus.Info("engine stopping, saving config")
			e.mu.Lock()
			err := e.cfg.Save(e.cfg.Current())
			e.mu.Unlock()
			if err != nil {
				logrus.WithError(err).Warn("failed to save config on shutdown")
			}
			return err
		case <-ticker.C:
			e.Tick()
		}
	}
}

// Tick samples the power source once and publishes the resulting snapshot.
func (e *Engine) Tick() Snapshot {
	e.mu.Lock()
	snap := e.tickLocked()
	e.mu.Unlock()

	e.publish(events.Snapshot, snap)
	return snap
}

func (e *Engine) tickLocked() Snapshot {
	now := e.now()

	sample, err := e.source.Sample()
	if err != nil {
		// Move the baseline so the outage is never attributed to a bucket.
		e.setBaseline(now)
		if e.available {
			logrus.WithError(err).Warn("power source unavailable, battery features suspended")
		} else {
			logrus.WithError(err).Trace("power source still unavailable")
		}
		e.available = false
		e.snapshot = e.buildSnapshot(nil, err, now)
		return e.snapshot
	}
	if !e.available {
		logrus.Info("power source available again")
		e.available = true
	}

	var elapsed time.Duration
	if e.hasBaseline {
		elapsed = now.Sub(e.baseline)
	}
	e.setBaseline(now)

	e.accountant.Tick(elapsed, sample.PluggedIn)

	if ev, ok := e.policy.Evaluate(sample); ok {
		e.deliver(ev, sample)
	}

	if entry, ok := e.history.Record(sample); ok {
		logrus.WithFields(logrus.Fields{
			"percentage": entry.Percentage,
			"pluggedIn":  entry.PluggedIn,
			"remaining":  entry.RemainingLabel,
		}).Debug("history entry recorded")
	}

	e.snapshot = e.buildSnapshot(&sample, nil, now)
	return e.snapshot
}

func (e *Engine) deliver(ev threshold.Event, sample power.Sample) {
	logger := logrus.WithFields(logrus.Fields{
		"event":      ev.String(),
		"percentage": sample.Percentage,
	})
	if !e.cfg.Current().NotificationsEnabled {
		logger.Debug("notifications disabled, event suppressed")
		return
	}
	if err := e.sink.Notify(notify.Notification{Event: ev, Percentage: sample.Percentage}); err != nil {
		logger.WithError(err).Warn("failed to deliver notification")
	}
}

// Snapshot returns the result of the latest tick.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	// Config and account may have changed since the tick.
	e.snapshot.Account = e.accountant.Account()
	e.snapshot.Config = e.cfg.Current()
	e.snapshot.ThresholdState = e.policy.State()
	return e.snapshot
}

// History returns a copy of the history entries.
func (e *Engine) History() []history.Entry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.history.Entries()
}

// Thresholds returns the low and high percentages and the current state.
func (e *Engine) Thresholds() Thresholds {
	e.mu.Lock()
	defer e.mu.Unlock()
	low, high := e.policy.Thresholds()
	return Thresholds{
		LowPercent:  low,
		HighPercent: high,
		Enabled:     e.policy.Enabled(),
		State:       e.policy.State(),
	}
}

// Reset zeroes a time bucket on behalf of a user request.
func (e *Engine) Reset(b accounting.Bucket) error {
	return e.ResetFrom(b, SourceAPI)
}

// ResetFrom zeroes a time bucket and reports source in the event.
func (e *Engine) ResetFrom(b accounting.Bucket, source string) error {
	e.mu.Lock()
	err := e.accountant.Reset(b)
	account := e.accountant.Account()
	e.mu.Unlock()
	if err != nil {
		return err
	}

	logrus.WithField("bucket", b).WithField("source", source).Info("account reset")
	e.publish(events.AccountReset, events.AccountResetEvent{
		Bucket: string(b),
		Source: source,
		Ts:     e.now().Unix(),
	})
	logrus.WithFields(account.LogrusFields()).Debug("account after reset")
	return nil
}

// ClearHistory drops every history entry.
func (e *Engine) ClearHistory() {
	e.mu.Lock()
	e.history.Clear()
	e.mu.Unlock()

	logrus.Info("history cleared")
	e.publish(events.HistoryCleared, events.HistoryClearedEvent{Ts: e.now().Unix()})
}

// Config returns the in-memory configuration.
func (e *Engine) Config() config.EngineConfig {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg.Current()
}

// Set changes one setting by key and persists it. A persistence failure is
// returned, but the new value stays in effect.
func (e *Engine) Set(key string, value bool) error {
	e.mu.Lock()
	err := config.SetByKey(e.cfg, key, value)
	if errors.Is(err, config.ErrUnknownKey) {
		e.mu.Unlock()
		return err
	}
	c := e.cfg.Current()
	e.applyConfig(c)
	if e.onConfig != nil {
		e.onConfig(key, c)
	}
	e.mu.Unlock()

	logrus.WithFields(c.LogrusFields()).WithField("key", key).Info("config changed")
	e.publish(events.ConfigChanged, events.ConfigChangedEvent{Key: key, Value: value, Ts: e.now().Unix()})
	return err
}

func (e *Engine) SetBatteryCareEnabled(b bool) error {
	return e.Set(config.KeyBatteryCare, b)
}

func (e *Engine) SetNotificationsEnabled(b bool) error {
	return e.Set(config.KeyNotifications, b)
}

func (e *Engine) SetStartMinimized(b bool) error {
	return e.Set(config.KeyStartMinimized, b)
}

func (e *Engine) SetStartAtLogin(b bool) error {
	return e.Set(config.KeyStartAtLogin, b)
}

func (e *Engine) SetResetOppositeBucketOnTransition(b bool) error {
	return e.Set(config.KeyResetOnTransition, b)
}

// ReloadConfig re-reads the configuration from its backend and applies it.
func (e *Engine) ReloadConfig() error {
	e.mu.Lock()
	before := e.cfg.Current()
	c, err := e.cfg.Load()
	e.applyConfig(c)
	changed := c != before
	if changed && e.onConfig != nil {
		e.onConfig("", c)
	}
	e.mu.Unlock()

	if !changed {
		logrus.Debug("config reloaded, no changes")
		return err
	}
	logrus.WithFields(c.LogrusFields()).Info("config reloaded")
	e.publish(events.ConfigChanged, events.ConfigChangedEvent{Ts: e.now().Unix()})
	return err
}
