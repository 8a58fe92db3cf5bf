package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	pkgerrors "github.com/pkg/errors"

	"github.com/sparks/battrack/pkg/utils/ptr"
)

var _ Backend = &FileBackend{}

// FileBackend stores the record as a JSON file.
type FileBackend struct {
	filepath string
}

func NewFileBackend(path string) *FileBackend {
	return &FileBackend{filepath: path}
}

// RawFileConfig is the on-disk form. Missing keys take their default value,
// so files written by older versions keep working.
type RawFileConfig struct {
	BatteryCareEnabled              *bool `json:"batteryCareEnabled,omitempty"`
	NotificationsEnabled            *bool `json:"notificationsEnabled,omitempty"`
	StartMinimized                  *bool `json:"startMinimized,omitempty"`
	StartAtLogin                    *bool `json:"startAtLogin,omitempty"`
	ResetOppositeBucketOnTransition *bool `json:"resetOppositeBucketOnTransition,omitempty"`
}

func NewRawFileConfig(c EngineConfig) *RawFileConfig {
	return &RawFileConfig{
		BatteryCareEnabled:              ptr.To(c.BatteryCareEnabled),
		NotificationsEnabled:            ptr.To(c.NotificationsEnabled),
		StartMinimized:                  ptr.To(c.StartMinimized),
		StartAtLogin:                    ptr.To(c.StartAtLogin),
		ResetOppositeBucketOnTransition: ptr.To(c.ResetOppositeBucketOnTransition),
	}
}

// EngineConfig fills unset fields with defaults.
func (r *RawFileConfig) EngineConfig() EngineConfig {
	def := Default()
	return EngineConfig{
		BatteryCareEnabled:              ptr.Deref(r.BatteryCareEnabled, def.BatteryCareEnabled),
		NotificationsEnabled:            ptr.Deref(r.NotificationsEnabled, def.NotificationsEnabled),
		StartMinimized:                  ptr.Deref(r.StartMinimized, def.StartMinimized),
		StartAtLogin:                    ptr.Deref(r.StartAtLogin, def.StartAtLogin),
		ResetOppositeBucketOnTransition: ptr.Deref(r.ResetOppositeBucketOnTransition, def.ResetOppositeBucketOnTransition),
	}
}

func (f *FileBackend) Location() string {
	return f.filepath
}

func (f *FileBackend) Read() (EngineConfig, error) {
	b, err := os.ReadFile(f.filepath)
	if err != nil {
		if os.IsNotExist(err) {
			return EngineConfig{}, ErrNotFound
		}
		return EngineConfig{}, pkgerrors.Wrapf(err, "failed to read file %s", f.filepath)
	}

	// An empty file is treated the same as a missing one.
	if strings.TrimSpace(string(b)) == "" {
		return EngineConfig{}, ErrNotFound
	}

	raw := RawFileConfig{}
	if err := json.Unmarshal(b, &raw); err != nil {
		return EngineConfig{}, pkgerrors.Wrapf(err, "failed to unmarshal config from file %s", f.filepath)
	}

	return raw.EngineConfig(), nil
}

// Write encodes c to a temp file in the same directory and renames it over
// the target, so readers never see a partial file.
func (f *FileBackend) Write(c EngineConfig) error {
	b, err := json.MarshalIndent(NewRawFileConfig(c), "", "  ")
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to marshal config")
	}
	b = append(b, '\n')

	dir := filepath.Dir(f.filepath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return pkgerrors.Wrapf(err, "failed to create directory %s", dir)
	}

	tmp, err := os.CreateTemp(dir, ".config-*.json")
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to create temp file in %s", dir)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return pkgerrors.Wrapf(err, "failed to write temp file %s", tmpName)
	}
	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		return pkgerrors.Wrapf(err, "failed to chmod temp file %s", tmpName)
	}
	if err := tmp.Close(); err != nil {
		return pkgerrors.Wrapf(err, "failed to close temp file %s", tmpName)
	}

	if err := os.Rename(tmpName, f.filepath); err != nil {
		return pkgerrors.Wrapf(err, "failed to rename %s to %s", tmpName, f.filepath)
	}
	return nil
}
