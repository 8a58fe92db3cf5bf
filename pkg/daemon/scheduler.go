package daemon

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/sparks/battrack/pkg/options"
)

// idleWait is how long the run loop sleeps when nothing is scheduled. Any
// schedule change wakes it through the control channel.
const idleWait = time.Hour * 10000

var ErrNoSchedule = errors.New("no active schedule")

// TaskFunc represents a runnable task.
type TaskFunc func() error

// ScheduleStatus describes the reset schedule.
type ScheduleStatus struct {
	Expr    string    `json:"expr"`
	NextRun time.Time `json:"nextRun"`
	Running bool      `json:"running"`
}

// Scheduler runs Task at the times given by a cron expression.
type Scheduler struct {
	Task    TaskFunc    // task callback
	OnError func(error) // called on task error

	expr     string
	schedule cron.Schedule
	nextRun  time.Time

	mu      sync.Mutex
	running bool

	controlCh chan controlKind
	stopCh    chan struct{}
	now       func() time.Time
}

// internal control kinds (not user visible events)
type controlKind int

const (
	ctrlRecalculate controlKind = iota // timer needs recalculation due to schedule change
	ctrlSkip                           // next run skipped
)

func NewScheduler(task TaskFunc, onError func(error)) *Scheduler {
	if task == nil {
		panic("task function cannot be nil")
	}

	return &Scheduler{
		Task:      task,
		OnError:   onError,
		controlCh: make(chan controlKind, 4),
		stopCh:    make(chan struct{}),
		now:       time.Now,
	}
}

func (s *Scheduler) Stop() {
	select {
	case <-s.stopCh: // already closed
	default:
		close(s.stopCh)
	}
}

func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	go s.runScheduled()
}

// Schedule replaces the cron expression. An empty expression clears the
// schedule.
func (s *Scheduler) Schedule(cronExpr string) error {
	cronExpr = strings.TrimSpace(cronExpr)

	var sh cron.Schedule
	if cronExpr != "" {
		var err error
		sh, err = options.ParseCron(cronExpr)
		if err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.expr = cronExpr
	s.schedule = sh
	s.nextRun = time.Time{}
	if sh != nil {
		s.nextRun = sh.Next(s.now())
	}
	running := s.running
	s.mu.Unlock()

	if running {
		s.trySendControl(ctrlRecalculate)
	}
	return nil
}

// Skip skips the next scheduled run.
func (s *Scheduler) Skip() error {
	s.mu.Lock()
	if s.schedule == nil || s.nextRun.IsZero() {
		s.mu.Unlock()
		return ErrNoSchedule
	}
	s.nextRun = s.schedule.Next(s.nextRun)
	running := s.running
	s.mu.Unlock()

	if running {
		s.trySendControl(ctrlSkip)
	}
	return nil
}

func (s *Scheduler) Status() ScheduleStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	return ScheduleStatus{
		Expr:    s.expr,
		NextRun: s.nextRun,
		Running: s.running,
	}
}

func (s *Scheduler) runScheduled() {
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		logrus.Debug("scheduler stopped")
	}()

	logrus.Debug("scheduler started")

	for {
		schedule, nextRun := s.snapshot()

		wait := idleWait
		if schedule != nil && !nextRun.IsZero() {
			wait = nextRun.Sub(s.now())
			if wait < 0 {
				wait = 0
			}
		}
		timer := time.NewTimer(wait)

		select {
		case <-timer.C:
			if schedule == nil || nextRun.IsZero() {
				continue
			}

			logrus.Debugf("running scheduled task at %s", nextRun.Format(time.DateTime))
			go func() {
				if err := s.Task(); err != nil {
					s.sendError(err)
				}
			}()
			s.advanceNextRun(nextRun)
		case <-s.stopCh:
			timer.Stop()
			return
		case kind := <-s.controlCh: // internal control messages
			logrus.WithField("kind", kind).Debug("received control msg")
			timer.Stop()
		}
	}
}

func (s *Scheduler) snapshot() (cron.Schedule, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.schedule, s.nextRun
}

// advanceNextRun moves past ran, unless the schedule changed meanwhile.
func (s *Scheduler) advanceNextRun(ran time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.schedule == nil || !s.nextRun.Equal(ran) {
		return
	}
	s.nextRun = s.schedule.Next(ran)
}

func (s *Scheduler) sendError(err error) {
	if s.OnError == nil {
		return
	}

	go s.OnError(err)
}

func (s *Scheduler) trySendControl(kind controlKind) {
	select {
	case s.controlCh <- kind:
	default:
	}
}
