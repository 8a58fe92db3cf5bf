package power

import (
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"
)

// DefaultSysfsRoot is where Linux exposes power supplies.
const DefaultSysfsRoot = "/sys/class/power_supply"

// SysfsSource reads BAT* and AC* entries under a power_supply directory.
type SysfsSource struct {
	root string
	now  func() time.Time
}

// NewSysfsSource returns a Source reading from root. An empty root uses
// DefaultSysfsRoot.
func NewSysfsSource(root string) *SysfsSource {
	if root == "" {
		root = DefaultSysfsRoot
	}
	return &SysfsSource{root: root, now: time.Now}
}

func (s *SysfsSource) Sample() (Sample, error) {
	matches, err := filepath.Glob(filepath.Join(s.root, "BAT*"))
	if err != nil {
		return Sample{}, pkgerrors.Wrapf(ErrUnavailable, "glob battery: %v", err)
	}
	if len(matches) == 0 {
		return Sample{}, pkgerrors.Wrapf(ErrUnavailable, "no battery under %s", s.root)
	}

	data, err := os.ReadFile(filepath.Join(matches[0], "uevent"))
	if err != nil {
		return Sample{}, pkgerrors.Wrapf(ErrUnavailable, "read uevent: %v", err)
	}
	props := parseUevent(string(data))

	percentage, err := strconv.Atoi(props["POWER_SUPPLY_CAPACITY"])
	if err != nil {
		return Sample{}, pkgerrors.Wrapf(ErrUnavailable, "parse capacity %q: %v", props["POWER_SUPPLY_CAPACITY"], err)
	}
	percentage = clampPercentage(percentage)

	pluggedIn, found := s.acState()
	if !found {
		// Without an AC entry the battery status is the only hint.
		pluggedIn = props["POWER_SUPPLY_STATUS"] != "Discharging"
	}

	sample := Sample{
		Percentage: percentage,
		PluggedIn:  pluggedIn,
		ObservedAt: s.now().Round(0),
	}
	if !pluggedIn && percentage < 100 {
		if secs, ok := secondsToEmpty(props); ok {
			sample.SecondsRemaining = &secs
		}
	}

	return sample, nil
}

// acState reports whether any adapter is online and whether any adapter
// entry exists at all.
func (s *SysfsSource) acState() (online bool, found bool) {
	for _, pattern := range []string{"AC*", "ADP*"} {
		matches, err := filepath.Glob(filepath.Join(s.root, pattern, "online"))
		if err != nil {
			continue
		}
		for _, path := range matches {
			data, err := os.ReadFile(path)
			if err != nil {
				continue
			}
			found = true
			if strings.TrimSpace(string(data)) == "1" {
				online = true
			}
		}
	}
	return online, found
}

// secondsToEmpty derives the time to empty from energy/power (µWh, µW) or
// charge/current (µAh, µA) pairs, whichever the driver reports.
func secondsToEmpty(props map[string]string) (int, bool) {
	pairs := [][2]string{
		{"POWER_SUPPLY_ENERGY_NOW", "POWER_SUPPLY_POWER_NOW"},
		{"POWER_SUPPLY_CHARGE_NOW", "POWER_SUPPLY_CURRENT_NOW"},
	}
	for _, p := range pairs {
		amount, err1 := strconv.ParseFloat(props[p[0]], 64)
		rate, err2 := strconv.ParseFloat(props[p[1]], 64)
		if err1 != nil || err2 != nil {
			continue
		}
		rate = math.Abs(rate)
		if rate == 0 {
			continue
		}
		return int(amount / rate * 3600), true
	}
	return 0, false
}

func parseUevent(data string) map[string]string {
	props := make(map[string]string)
	for _, line := range strings.Split(data, "\n") {
		if k, v, ok := strings.Cut(line, "="); ok {
			props[k] = strings.TrimSpace(v)
		}
	}
	return props
}
