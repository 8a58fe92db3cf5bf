package config

import (
	"errors"

	"github.com/sirupsen/logrus"
)

// ErrNotFound is returned by a Backend when no record has been persisted yet.
var ErrNotFound = errors.New("config record not found")

// EngineConfig is the persisted user configuration of the engine.
type EngineConfig struct {
	BatteryCareEnabled              bool `json:"batteryCareEnabled"`
	NotificationsEnabled            bool `json:"notificationsEnabled"`
	StartMinimized                  bool `json:"startMinimized"`
	StartAtLogin                    bool `json:"startAtLogin"`
	ResetOppositeBucketOnTransition bool `json:"resetOppositeBucketOnTransition"`
}

// Default returns the configuration used when nothing has been persisted.
func Default() EngineConfig {
	return EngineConfig{
		BatteryCareEnabled:              true,
		NotificationsEnabled:            true,
		StartMinimized:                  true,
		StartAtLogin:                    false,
		ResetOppositeBucketOnTransition: true,
	}
}

func (c EngineConfig) LogrusFields() logrus.Fields {
	return logrus.Fields{
		"batteryCareEnabled":              c.BatteryCareEnabled,
		"notificationsEnabled":            c.NotificationsEnabled,
		"startMinimized":                  c.StartMinimized,
		"startAtLogin":                    c.StartAtLogin,
		"resetOppositeBucketOnTransition": c.ResetOppositeBucketOnTransition,
	}
}

// Backend reads and writes the whole configuration record.
type Backend interface {
	// Read returns ErrNotFound if nothing has been written yet.
	Read() (EngineConfig, error)
	// Write fully replaces the stored record.
	Write(EngineConfig) error
	// Location describes where the record lives, for logging.
	Location() string
}

// Config is the read-refresh-then-read, write-through configuration store.
type Config interface {
	BatteryCareEnabled() bool
	NotificationsEnabled() bool
	StartMinimized() bool
	StartAtLogin() bool
	ResetOppositeBucketOnTransition() bool

	SetBatteryCareEnabled(bool) error
	SetNotificationsEnabled(bool) error
	SetStartMinimized(bool) error
	SetStartAtLogin(bool) error
	SetResetOppositeBucketOnTransition(bool) error

	// Current returns the in-memory record without any I/O.
	Current() EngineConfig

	// Load reads the configuration from the backend.
	Load() (EngineConfig, error)
	// Save replaces the in-memory record and writes it to the backend.
	Save(EngineConfig) error
}

// Keys name the individual settings on the wire.
const (
	KeyBatteryCare       = "battery-care"
	KeyNotifications     = "notifications"
	KeyStartMinimized    = "start-minimized"
	KeyStartAtLogin      = "start-at-login"
	KeyResetOnTransition = "reset-on-transition"
)

// Keys lists every setting key in display order.
var Keys = []string{
	KeyBatteryCare,
	KeyNotifications,
	KeyStartMinimized,
	KeyStartAtLogin,
	KeyResetOnTransition,
}

// ErrUnknownKey is returned for a setting key not in Keys.
var ErrUnknownKey = errors.New("unknown config key")

// Get returns the setting named key.
func (c EngineConfig) Get(key string) (bool, error) {
	switch key {
	case KeyBatteryCare:
		return c.BatteryCareEnabled, nil
	case KeyNotifications:
		return c.NotificationsEnabled, nil
	case KeyStartMinimized:
		return c.StartMinimized, nil
	case KeyStartAtLogin:
		return c.StartAtLogin, nil
	case KeyResetOnTransition:
		return c.ResetOppositeBucketOnTransition, nil
	default:
		return false, ErrUnknownKey
	}
}

// SetByKey calls the setter of c named key.
func SetByKey(c Config, key string, value bool) error {
	switch key {
	case KeyBatteryCare:
		return c.SetBatteryCareEnabled(value)
	case KeyNotifications:
		return c.SetNotificationsEnabled(value)
	case KeyStartMinimized:
		return c.SetStartMinimized(value)
	case KeyStartAtLogin:
		return c.SetStartAtLogin(value)
	case KeyResetOnTransition:
		return c.SetResetOppositeBucketOnTransition(value)
	default:
		return ErrUnknownKey
	}
}
