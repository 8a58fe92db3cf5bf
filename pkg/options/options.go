// Package options loads the daemon options from a TOML file.
package options

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/google/shlex"
	"github.com/robfig/cron/v3"

	"github.com/sparks/battrack/pkg/accounting"
	"github.com/sparks/battrack/pkg/threshold"
)

const (
	minIntervalSeconds  = 1
	maxIntervalSeconds  = 3600
	minHeartbeatSeconds = 1
	maxHeartbeatSeconds = 600
	minStaleAfterMissed = 1
	maxStaleAfterMissed = 100
)

const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"

	SourceSystem = "system"
	SourceSysfs  = "sysfs"
	SourceFake   = "fake"
)

const DefaultSocketPath = "/tmp/battrack.sock"

type Options struct {
	Daemon     DaemonOptions     `toml:"daemon"`
	Storage    StorageOptions    `toml:"storage"`
	Thresholds ThresholdOptions  `toml:"thresholds"`
	Guard      GuardOptions      `toml:"guard"`
	Notify     NotifyOptions     `toml:"notify"`
	Schedule   ScheduleOptions   `toml:"schedule"`
	Brightness BrightnessOptions `toml:"brightness"`
}

type DaemonOptions struct {
	SocketPath      string `toml:"socket_path"`
	IntervalSeconds int    `toml:"interval_seconds"`
	// Source is one of system, sysfs or fake.
	Source string `toml:"source"`
	// FakeBattery overrides Source with a simulated battery.
	FakeBattery bool `toml:"fake_battery"`
}

type StorageOptions struct {
	// ConfigBackend is json or sqlite.
	ConfigBackend string `toml:"config_backend"`
	// ConfigPath defaults to config.json or battrack.db in the data directory,
	// depending on ConfigBackend.
	ConfigPath string `toml:"config_path"`
	GuardPath  string `toml:"guard_path"`
}

type ThresholdOptions struct {
	LowPercent  int `toml:"low_percent"`
	HighPercent int `toml:"high_percent"`
}

type GuardOptions struct {
	HeartbeatSeconds int `toml:"heartbeat_seconds"`
	StaleAfterMissed int `toml:"stale_after_missed"`
}

type NotifyOptions struct {
	Desktop bool   `toml:"desktop"`
	AppName string `toml:"app_name"`
	// SoundLow and SoundHigh are commands run on the low and high events,
	// split with shell quoting rules. Empty disables them.
	SoundLow  string `toml:"sound_low"`
	SoundHigh string `toml:"sound_high"`
}

type ScheduleOptions struct {
	// ResetCron is a cron expression for periodic account resets. Empty
	// disables the schedule.
	ResetCron   string `toml:"reset_cron"`
	ResetBucket string `toml:"reset_bucket"`
}

type BrightnessOptions struct {
	SysfsRoot string `toml:"sysfs_root"`
}

// DataDir is where battrack keeps its state unless told otherwise.
func DataDir() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "battrack")
}

// DefaultPath is the options file location.
func DefaultPath() string {
	return filepath.Join(DataDir(), "battrack.toml")
}

func DefaultOptions() *Options {
	dataDir := DataDir()
	return &Options{
		Daemon: DaemonOptions{
			SocketPath:      DefaultSocketPath,
			IntervalSeconds: 1,
			Source:          SourceSystem,
		},
		Storage: StorageOptions{
			ConfigBackend: BackendJSON,
			GuardPath:     filepath.Join(dataDir, "battrack.db"),
		},
		Thresholds: ThresholdOptions{
			LowPercent:  threshold.DefaultLowPercent,
			HighPercent: threshold.DefaultHighPercent,
		},
		Guard: GuardOptions{
			HeartbeatSeconds: 5,
			StaleAfterMissed: 3,
		},
		Notify: NotifyOptions{
			Desktop: true,
			AppName: "battrack",
		},
		Schedule: ScheduleOptions{
			ResetBucket: string(accounting.BucketAll),
		},
		Brightness: BrightnessOptions{
			SysfsRoot: "/sys/class/backlight",
		},
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (*Options, error) {
	opts := DefaultOptions()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NormalizeAndValidate(opts)
		}
		return nil, fmt.Errorf("read options: %w", err)
	}

	if err := toml.Unmarshal(data, opts); err != nil {
		return nil, fmt.Errorf("decode options %s: %w", path, err)
	}

	return NormalizeAndValidate(opts)
}

// CronParser accepts five fields, an optional leading seconds field, and
// descriptors such as @daily or @every 1h. The daemon schedules with it too,
// so anything that validates here also schedules.
var CronParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseCron parses expr with CronParser.
func ParseCron(expr string) (cron.Schedule, error) {
	return CronParser.Parse(strings.TrimSpace(expr))
}

func NormalizeAndValidate(opts *Options) (*Options, error) {
	if opts == nil {
		return nil, fmt.Errorf("options must not be nil")
	}

	sanitized := *opts

	var err error
	sanitized.Daemon.SocketPath, err = sanitizePath("daemon.socket_path", sanitized.Daemon.SocketPath)
	if err != nil {
		return nil, err
	}
	if err := validateRange("daemon.interval_seconds", sanitized.Daemon.IntervalSeconds, minIntervalSeconds, maxIntervalSeconds); err != nil {
		return nil, err
	}

	sanitized.Daemon.Source = strings.ToLower(strings.TrimSpace(sanitized.Daemon.Source))
	switch sanitized.Daemon.Source {
	case "":
		sanitized.Daemon.Source = SourceSystem
	case SourceSystem, SourceSysfs, SourceFake:
	default:
		return nil, fmt.Errorf("daemon.source must be one of %s, %s, %s, got %q", SourceSystem, SourceSysfs, SourceFake, opts.Daemon.Source)
	}
	if sanitized.Daemon.FakeBattery {
		sanitized.Daemon.Source = SourceFake
	}

	sanitized.Storage.ConfigBackend = strings.ToLower(strings.TrimSpace(sanitized.Storage.ConfigBackend))
	switch sanitized.Storage.ConfigBackend {
	case "":
		sanitized.Storage.ConfigBackend = BackendJSON
	case BackendJSON, BackendSQLite:
	default:
		return nil, fmt.Errorf("storage.config_backend must be %s or %s, got %q", BackendJSON, BackendSQLite, opts.Storage.ConfigBackend)
	}
	if strings.TrimSpace(sanitized.Storage.ConfigPath) == "" {
		name := "config.json"
		if sanitized.Storage.ConfigBackend == BackendSQLite {
			name = "battrack.db"
		}
		sanitized.Storage.ConfigPath = filepath.Join(DataDir(), name)
	}
	sanitized.Storage.ConfigPath, err = sanitizePath("storage.config_path", sanitized.Storage.ConfigPath)
	if err != nil {
		return nil, err
	}
	sanitized.Storage.GuardPath, err = sanitizePath("storage.guard_path", sanitized.Storage.GuardPath)
	if err != nil {
		return nil, err
	}

	if err := threshold.Validate(sanitized.Thresholds.LowPercent, sanitized.Thresholds.HighPercent); err != nil {
		return nil, fmt.Errorf("thresholds: %w", err)
	}

	if err := validateRange("guard.heartbeat_seconds", sanitized.Guard.HeartbeatSeconds, minHeartbeatSeconds, maxHeartbeatSeconds); err != nil {
		return nil, err
	}
	if err := validateRange("guard.stale_after_missed", sanitized.Guard.StaleAfterMissed, minStaleAfterMissed, maxStaleAfterMissed); err != nil {
		return nil, err
	}

	if strings.TrimSpace(sanitized.Notify.AppName) == "" {
		sanitized.Notify.AppName = "battrack"
	}
	for name, command := range map[string]string{
		"notify.sound_low":  sanitized.Notify.SoundLow,
		"notify.sound_high": sanitized.Notify.SoundHigh,
	} {
		if _, err := shlex.Split(command); err != nil {
			return nil, fmt.Errorf("%s %q: %w", name, command, err)
		}
	}

	sanitized.Schedule.ResetCron = strings.TrimSpace(sanitized.Schedule.ResetCron)
	if sanitized.Schedule.ResetCron != "" {
		if _, err := ParseCron(sanitized.Schedule.ResetCron); err != nil {
			return nil, fmt.Errorf("schedule.reset_cron %q: %w", sanitized.Schedule.ResetCron, err)
		}
	}
	if sanitized.Schedule.ResetBucket == "" {
		sanitized.Schedule.ResetBucket = string(accounting.BucketAll)
	}
	bucket, err := accounting.ParseBucket(sanitized.Schedule.ResetBucket)
	if err != nil {
		return nil, fmt.Errorf("schedule.reset_bucket: %w", err)
	}
	sanitized.Schedule.ResetBucket = string(bucket)

	sanitized.Brightness.SysfsRoot, err = sanitizePath("brightness.sysfs_root", sanitized.Brightness.SysfsRoot)
	if err != nil {
		return nil, err
	}

	return &sanitized, nil
}

func Save(path string, opts *Options) error {
	trimmedPath := strings.TrimSpace(path)
	if trimmedPath == "" {
		return fmt.Errorf("options path must not be empty")
	}

	sanitized, err := NormalizeAndValidate(opts)
	if err != nil {
		return err
	}

	var data bytes.Buffer
	if err := toml.NewEncoder(&data).Encode(sanitized); err != nil {
		return fmt.Errorf("encode options TOML: %w", err)
	}

	dir := filepath.Dir(trimmedPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create options directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, ".battrack-*.toml")
	if err != nil {
		return fmt.Errorf("create temp options file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		if tmpPath != "" {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data.Bytes()); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("write temp options file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp options file: %w", err)
	}
	if err := os.Rename(tmpPath, trimmedPath); err != nil {
		return fmt.Errorf("replace options file: %w", err)
	}
	tmpPath = ""

	return nil
}

func sanitizePath(name, value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", fmt.Errorf("%s must not be empty", name)
	}
	cleaned := filepath.Clean(trimmed)
	if !filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("%s must be an absolute path, got %q", name, value)
	}
	return cleaned, nil
}

func validateRange(name string, value, min, max int) error {
	if value < min || value > max {
		return fmt.Errorf("%s must be between %d and %d, got %d", name, min, max, value)
	}
	return nil
}
