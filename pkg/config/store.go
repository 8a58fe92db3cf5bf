package config

import (
	"errors"
	"sync"

	"github.com/sirupsen/logrus"
)

var _ Config = &Store{}

// Store keeps the authoritative in-memory record and mirrors it to a Backend.
type Store struct {
	backend Backend
	mu      *sync.RWMutex
	c       EngineConfig
	// dirty is set while the backend holds an older record than c.
	dirty bool
}

// NewStore loads the record from backend, persisting defaults if needed.
// A failure to persist the defaults is logged but does not fail the store.
func NewStore(backend Backend) *Store {
	s := &Store{
		backend: backend,
		mu:      &sync.RWMutex{},
		c:       Default(),
	}
	_, _ = s.Load()
	return s
}

// Load refreshes the in-memory record from the backend. A missing, unreadable
// or corrupt record is replaced by defaults which are persisted right away.
// While an earlier write is still pending, the in-memory record wins and Load
// retries writing it instead of reading. The returned error is only non-nil
// if a write failed.
func (s *Store) Load() (EngineConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dirty {
		return s.c, s.writeLocked()
	}

	c, err := s.backend.Read()
	if err == nil {
		s.c = c
		return c, nil
	}

	if errors.Is(err, ErrNotFound) {
		logrus.WithField("location", s.backend.Location()).Info("no config found, writing defaults")
	} else {
		logrus.WithError(err).WithField("location", s.backend.Location()).Warn("failed to load config, falling back to defaults")
	}

	s.c = Default()
	return s.c, s.writeLocked()
}

// writeLocked mirrors s.c to the backend and tracks whether it is pending.
func (s *Store) writeLocked() error {
	if err := s.backend.Write(s.c); err != nil {
		s.dirty = true
		logrus.WithError(err).WithField("location", s.backend.Location()).Warn("failed to save config")
		return err
	}
	if s.dirty {
		logrus.WithField("location", s.backend.Location()).Info("pending config written")
	}
	s.dirty = false
	return nil
}

// Save replaces the in-memory record and writes it through. On write failure
// the in-memory record is kept.
func (s *Store) Save(c EngineConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.c = c
	return s.writeLocked()
}

func (s *Store) Current() EngineConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.c
}

func (s *Store) LogrusFields() logrus.Fields {
	return s.Current().LogrusFields()
}

func (s *Store) refresh() EngineConfig {
	c, _ := s.Load()
	return c
}

func (s *Store) BatteryCareEnabled() bool {
	return s.refresh().BatteryCareEnabled
}

func (s *Store) NotificationsEnabled() bool {
	return s.refresh().NotificationsEnabled
}

func (s *Store) StartMinimized() bool {
	return s.refresh().StartMinimized
}

func (s *Store) StartAtLogin() bool {
	return s.refresh().StartAtLogin
}

func (s *Store) ResetOppositeBucketOnTransition() bool {
	return s.refresh().ResetOppositeBucketOnTransition
}

func (s *Store) update(mutate func(c *EngineConfig)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	mutate(&s.c)
	return s.writeLocked()
}

func (s *Store) SetBatteryCareEnabled(b bool) error {
	return s.update(func(c *EngineConfig) { c.BatteryCareEnabled = b })
}

func (s *Store) SetNotificationsEnabled(b bool) error {
	return s.update(func(c *EngineConfig) { c.NotificationsEnabled = b })
}

func (s *Store) SetStartMinimized(b bool) error {
	return s.update(func(c *EngineConfig) { c.StartMinimized = b })
}

func (s *Store) SetStartAtLogin(b bool) error {
	return s.update(func(c *EngineConfig) { c.StartAtLogin = b })
}

func (s *Store) SetResetOppositeBucketOnTransition(b bool) error {
	return s.update(func(c *EngineConfig) { c.ResetOppositeBucketOnTransition = b })
}
