package notify

import (
	"context"
	"os/exec"
	"time"

	"github.com/google/shlex"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/sparks/battrack/pkg/threshold"
)

const commandTimeout = 30 * time.Second

// CommandSink runs a command per event, typically to play a sound.
// Commands are split with shell quoting rules but run without a shell, in
// the background so the caller never waits for playback.
type CommandSink struct {
	commands map[threshold.Event][]string
}

// NewCommandSink parses the commands for the low and high events. An empty
// command disables that event.
func NewCommandSink(onLow, onHigh string) (*CommandSink, error) {
	c := &CommandSink{commands: map[threshold.Event][]string{}}
	for ev, command := range map[threshold.Event]string{
		threshold.PlugInRequested: onLow,
		threshold.UnplugRequested: onHigh,
	} {
		argv, err := ParseCommand(command)
		if err != nil {
			return nil, err
		}
		if len(argv) > 0 {
			c.commands[ev] = argv
		}
	}
	return c, nil
}

// ParseCommand splits command into argv.
func ParseCommand(command string) ([]string, error) {
	argv, err := shlex.Split(command)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to parse command %q", command)
	}
	return argv, nil
}

// Empty reports whether no command is configured.
func (c *CommandSink) Empty() bool {
	return len(c.commands) == 0
}

func (c *CommandSink) Notify(n Notification) error {
	argv, ok := c.commands[n.Event]
	if !ok {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	if err := cmd.Start(); err != nil {
		cancel()
		return pkgerrors.Wrapf(err, "failed to start notification command %q", argv[0])
	}

	go func() {
		defer cancel()
		if err := cmd.Wait(); err != nil {
			logrus.WithError(err).WithField("command", argv[0]).Warn("notification command failed")
		}
	}()
	return nil
}
