package daemon

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sparks/battrack/pkg/accounting"
	"github.com/sparks/battrack/pkg/brightness"
	"github.com/sparks/battrack/pkg/config"
	"github.com/sparks/battrack/pkg/engine"
	"github.com/sparks/battrack/pkg/events"
	"github.com/sparks/battrack/pkg/guard"
	"github.com/sparks/battrack/pkg/notify"
	"github.com/sparks/battrack/pkg/options"
	"github.com/sparks/battrack/pkg/power"
	"github.com/sparks/battrack/pkg/utils/autostart"
)

// heartbeatHistory is how many heartbeats are kept for the info endpoint.
const heartbeatHistory = 60

// Daemon wires the engine to its storage, sinks and the HTTP API.
type Daemon struct {
	opts       *options.Options
	engine     *engine.Engine
	hub        *events.EventHub
	brightness brightness.Control
	scheduler  *Scheduler
	heartbeats *TimeSeriesRecorder
	autostart  *autostart.Entry
	startedAt  time.Time

	// streamsDone ends open event streams so the server can shut down.
	streamsDone chan struct{}
	streamsOnce sync.Once

	closers []func() error
}

// New builds a daemon from opts without starting anything.
func New(opts *options.Options) (*Daemon, error) {
	d := &Daemon{
		opts:       opts,
		hub:        events.NewEventHub(),
		heartbeats: NewTimeSeriesRecorder(heartbeatHistory, time.Duration(opts.Guard.HeartbeatSeconds)*time.Second),
		startedAt:  time.Now(),

		streamsDone: make(chan struct{}),
	}

	backend, err := d.configBackend()
	if err != nil {
		d.Close()
		return nil, err
	}
	store := config.NewStore(backend)
	logrus.WithFields(store.LogrusFields()).WithField("location", backend.Location()).Info("config loaded")

	entry, err := autostart.Default()
	if err != nil {
		logrus.WithError(err).Warn("login autostart unavailable")
	}
	d.autostart = entry

	var source power.Source
	switch opts.Daemon.Source {
	case options.SourceFake:
		logrus.Warn("using a simulated battery")
		source = power.NewSimulator(60, opts.Thresholds.LowPercent, opts.Thresholds.HighPercent)
		d.brightness = brightness.NewMemory(70)
	case options.SourceSysfs:
		source = power.NewSysfsSource(power.DefaultSysfsRoot)
		d.brightness = brightness.NewSysfs(opts.Brightness.SysfsRoot)
	default:
		source = power.NewSystemSource()
		d.brightness = brightness.NewSysfs(opts.Brightness.SysfsRoot)
	}

	d.engine, err = engine.New(engine.Options{
		Source:         source,
		Config:         store,
		Sink:           d.sinks(),
		Publisher:      d.hub,
		LowPercent:     opts.Thresholds.LowPercent,
		HighPercent:    opts.Thresholds.HighPercent,
		Interval:       time.Duration(opts.Daemon.IntervalSeconds) * time.Second,
		OnConfigChange: d.onConfigChange,
	})
	if err != nil {
		d.Close()
		return nil, err
	}
	d.syncAutostart(store.Current().StartAtLogin)

	bucket, err := accounting.ParseBucket(opts.Schedule.ResetBucket)
	if err != nil {
		d.Close()
		return nil, err
	}
	d.scheduler = NewScheduler(func() error {
		return d.engine.ResetFrom(bucket, engine.SourceSchedule)
	}, func(err error) {
		logrus.WithError(err).Error("scheduled reset failed")
	})
	if err := d.scheduler.Schedule(opts.Schedule.ResetCron); err != nil {
		d.Close()
		return nil, err
	}

	return d, nil
}

func (d *Daemon) configBackend() (config.Backend, error) {
	if d.opts.Storage.ConfigBackend == options.BackendSQLite {
		b, err := config.OpenSQLite(d.opts.Storage.ConfigPath)
		if err != nil {
			return nil, err
		}
		d.closers = append(d.closers, b.Close)
		return b, nil
	}
	return config.NewFileBackend(d.opts.Storage.ConfigPath), nil
}

func (d *Daemon) sinks() notify.Sink {
	sinks := notify.Multi{notify.LogSink{}, notify.HubSink{Hub: d.hub}}

	if d.opts.Notify.Desktop {
		desktop, err := notify.NewDesktopSink(d.opts.Notify.AppName)
		if err != nil {
			logrus.WithError(err).Warn("desktop notifications unavailable")
		} else {
			sinks = append(sinks, desktop)
		}
	}

	cmd, err := notify.NewCommandSink(d.opts.Notify.SoundLow, d.opts.Notify.SoundHigh)
	if err != nil {
		logrus.WithError(err).Warn("sound commands disabled")
	} else if !cmd.Empty() {
		sinks = append(sinks, cmd)
	}

	return sinks
}

// onConfigChange runs with the engine lock held.
func (d *Daemon) onConfigChange(key string, c config.EngineConfig) {
	if key == config.KeyStartAtLogin || key == "" {
		d.syncAutostart(c.StartAtLogin)
	}
}

func (d *Daemon) syncAutostart(enabled bool) {
	if d.autostart == nil || d.autostart.Enabled() == enabled {
		return
	}
	if err := d.autostart.Apply(enabled); err != nil {
		logrus.WithError(err).Warn("failed to update login autostart")
	}
}

// Engine returns the wrapped engine.
func (d *Daemon) Engine() *engine.Engine {
	return d.engine
}

func (d *Daemon) closeStreams() {
	d.streamsOnce.Do(func() { close(d.streamsDone) })
}

// Close releases storage handles.
func (d *Daemon) Close() {
	for _, c := range d.closers {
		if err := c(); err != nil {
			logrus.WithError(err).Warn("failed to close storage")
		}
	}
	d.closers = nil
}

func (d *Daemon) heartbeatLoop(ctx context.Context, g *guard.Guard) {
	interval := time.Duration(d.opts.Guard.HeartbeatSeconds) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	d.heartbeats.AddRecord(time.Now())
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if gap := d.heartbeats.AddRecord(now); gap > 2*interval {
				logrus.WithField("gap", gap.String()).Info("heartbeat gap detected, system probably slept")
			}
			if g == nil {
				continue
			}
			if err := g.Heartbeat(); err != nil {
				logrus.WithError(err).Warn("failed to write heartbeat")
			}
		}
	}
}

// listen removes a socket left behind by a dead daemon and listens on path.
func listen(path string) (net.Listener, error) {
	if _, err := os.Stat(path); err == nil {
		logrus.WithField("socket", path).Warn("removing stale socket")
		if err := os.Remove(path); err != nil {
			return nil, err
		}
	}
	return net.Listen("unix", path)
}

// Run starts the daemon and blocks until SIGINT or SIGTERM. It returns
// guard.ErrAlreadyRunning if another live daemon holds the guard.
func Run(opts *options.Options) error {
	staleAfter := time.Duration(opts.Guard.HeartbeatSeconds*opts.Guard.StaleAfterMissed) * time.Second
	g, err := guard.Open(opts.Storage.GuardPath, staleAfter)
	if err != nil {
		return err
	}
	defer g.Close()

	if err := g.MarkRunning(); err != nil {
		return err
	}
	defer func() {
		if err := g.MarkStopped(); err != nil {
			logrus.WithError(err).Error("failed to clear instance record")
		}
	}()

	d, err := New(opts)
	if err != nil {
		return err
	}
	defer d.Close()

	srv := &http.Server{
		Handler: d.Router(),
	}

	// Create the socket to listen on:
	l, err := listen(opts.Daemon.SocketPath)
	if err != nil {
		return err
	}
	defer os.Remove(opts.Daemon.SocketPath)

	// Serve HTTP on unix socket
	go func() {
		logrus.Infof("http server listening on %s", l.Addr().String())
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatal(err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup

	// Receive SIGHUP to reload config
	sighup := make(chan os.Signal, 1)
	signal.Notify(sighup, syscall.SIGHUP)
	defer signal.Stop(sighup)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-sighup:
				if err := d.engine.ReloadConfig(); err != nil {
					logrus.Errorf("failed to reload config: %v", err)
				}
			}
		}
	}()

	if opts.Storage.ConfigBackend == options.BackendJSON {
		err := config.Watch(ctx, opts.Storage.ConfigPath, func() {
			if err := d.engine.ReloadConfig(); err != nil {
				logrus.Errorf("failed to reload config: %v", err)
			}
		})
		if err != nil {
			logrus.WithError(err).Warn("config file watcher unavailable, use SIGHUP to reload")
		}
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		d.heartbeatLoop(ctx, g)
	}()
	go func() {
		defer wg.Done()
		if err := d.engine.Run(ctx); err != nil {
			logrus.WithError(err).Error("engine stopped with error")
		}
	}()

	d.scheduler.Start()
	if st := d.scheduler.Status(); st.Expr != "" {
		logrus.WithFields(logrus.Fields{
			"cron":    st.Expr,
			"nextRun": st.NextRun,
		}).Info("account reset scheduled")
	}

	// Handle common process-killing signals, so we can gracefully shut down:
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	// Wait for a SIGINT or SIGTERM:
	sig := <-sigc
	logrus.Infof("caught signal \"%s\": shutting down.", sig)

	logrus.Info("shutting down http server")
	d.closeStreams()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("failed to shutdown http server: %v", err)
	}
	shutdownCancel()

	d.scheduler.Stop()
	cancel()
	wg.Wait()

	logrus.Info("exiting")
	return nil
}
