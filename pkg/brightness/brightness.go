// Package brightness reads and sets the display backlight level.
package brightness

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	pkgerrors "github.com/pkg/errors"
)

const DefaultSysfsRoot = "/sys/class/backlight"

var ErrNoBacklight = errors.New("no backlight found")

// Control gets and sets brightness as a percentage.
type Control interface {
	Get() (int, error)
	Set(percent int) error
}

func validatePercent(percent int) error {
	if percent < 0 || percent > 100 {
		return fmt.Errorf("brightness %d out of range [0, 100]", percent)
	}
	return nil
}

// Sysfs controls the first backlight device under root.
type Sysfs struct {
	root string
}

func NewSysfs(root string) *Sysfs {
	if root == "" {
		root = DefaultSysfsRoot
	}
	return &Sysfs{root: root}
}

func (s *Sysfs) device() (string, error) {
	matches, err := filepath.Glob(filepath.Join(s.root, "*"))
	if err != nil {
		return "", pkgerrors.Wrapf(err, "failed to glob %s", s.root)
	}
	if len(matches) == 0 {
		return "", ErrNoBacklight
	}
	sort.Strings(matches)
	return matches[0], nil
}

func (s *Sysfs) Get() (int, error) {
	dir, err := s.device()
	if err != nil {
		return 0, err
	}
	cur, err := readIntFile(filepath.Join(dir, "brightness"))
	if err != nil {
		return 0, pkgerrors.Wrapf(err, "failed to read brightness")
	}
	max, err := readIntFile(filepath.Join(dir, "max_brightness"))
	if err != nil {
		return 0, pkgerrors.Wrapf(err, "failed to read max_brightness")
	}
	if max <= 0 {
		return 0, fmt.Errorf("invalid max_brightness %d in %s", max, dir)
	}
	return int(math.Round(float64(cur) * 100 / float64(max))), nil
}

// Set writes the raw level for percent. The file usually requires root or a
// udev rule granting the video group write access.
func (s *Sysfs) Set(percent int) error {
	if err := validatePercent(percent); err != nil {
		return err
	}
	dir, err := s.device()
	if err != nil {
		return err
	}
	max, err := readIntFile(filepath.Join(dir, "max_brightness"))
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to read max_brightness")
	}
	raw := int64(math.Round(float64(percent) * float64(max) / 100))

	path := filepath.Join(dir, "brightness")
	if err := os.WriteFile(path, []byte(strconv.FormatInt(raw, 10)), 0644); err != nil {
		return pkgerrors.Wrapf(err, "failed to write %s", path)
	}
	return nil
}

func readIntFile(path string) (int64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
}

// Memory is an in-process Control used with simulated hardware.
type Memory struct {
	mu      sync.Mutex
	percent int
}

func NewMemory(percent int) *Memory {
	return &Memory{percent: percent}
}

func (m *Memory) Get() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.percent, nil
}

func (m *Memory) Set(percent int) error {
	if err := validatePercent(percent); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.percent = percent
	return nil
}
