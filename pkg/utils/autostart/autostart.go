// Package autostart installs and removes the login autostart entry.
package autostart

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
)

const desktopEntryTemplate = `[Desktop Entry]
Type=Application
Name=battrack
Comment=Battery time tracking daemon
Exec=/path/to/battrack daemon
Terminal=false
X-GNOME-Autostart-enabled=true
`

const launchAgentTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>Label</key>
	<string>dev.battrack</string>
	<key>ProgramArguments</key>
	<array>
		<string>/path/to/battrack</string>
		<string>daemon</string>
	</array>
	<key>RunAtLoad</key>
	<true/>
</dict>
</plist>
`

// Entry is a platform autostart file.
type Entry struct {
	Path     string
	template string
}

// Default returns the entry for the running platform, placed in the user's
// XDG autostart directory on Linux or LaunchAgents on macOS.
func Default() (*Entry, error) {
	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		return &Entry{
			Path:     filepath.Join(home, "Library", "LaunchAgents", "dev.battrack.plist"),
			template: launchAgentTemplate,
		}, nil
	case "linux", "freebsd", "openbsd", "netbsd", "dragonfly":
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get config directory: %w", err)
		}
		return NewDesktopEntry(filepath.Join(dir, "autostart")), nil
	default:
		return nil, fmt.Errorf("autostart is not supported on %s", runtime.GOOS)
	}
}

// NewDesktopEntry returns an XDG desktop entry in dir.
func NewDesktopEntry(dir string) *Entry {
	return &Entry{
		Path:     filepath.Join(dir, "battrack.desktop"),
		template: desktopEntryTemplate,
	}
}

// Enabled reports whether the entry file exists.
func (e *Entry) Enabled() bool {
	_, err := os.Stat(e.Path)
	return err == nil
}

// Enable writes the entry so that exePath is started at login.
func (e *Entry) Enable(exePath string) error {
	exePath, err := filepath.Abs(exePath)
	if err != nil {
		return fmt.Errorf("failed to get the absolute path to %s: %w", exePath, err)
	}

	logrus.Infof("writing autostart entry %s for %s", e.Path, exePath)

	content := strings.ReplaceAll(e.template, "/path/to/battrack", exePath)

	// mkdir -p
	dir := filepath.Dir(e.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	if err := os.WriteFile(e.Path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", e.Path, err)
	}
	return nil
}

// Disable removes the entry. A missing entry is not an error.
func (e *Entry) Disable() error {
	logrus.Infof("removing autostart entry %s", e.Path)

	err := os.Remove(e.Path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove %s: %w", e.Path, err)
	}
	return nil
}

// Apply enables or disables the entry for the current executable.
func (e *Entry) Apply(enabled bool) error {
	if !enabled {
		return e.Disable()
	}
	exePath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get the path to the current executable: %w", err)
	}
	return e.Enable(exePath)
}
