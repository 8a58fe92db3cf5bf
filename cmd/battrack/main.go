package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sparks/battrack/pkg/client"
	"github.com/sparks/battrack/pkg/options"
	"github.com/sparks/battrack/pkg/version"
)

var (
	logLevel       = "info"
	unixSocketPath = options.DefaultSocketPath
)

var apiClient = client.NewClient(unixSocketPath)

var (
	gBasic        = "Basic:"
	gAdvanced     = "Advanced:"
	commandGroups = []string{
		gBasic,
		gAdvanced,
	}
)

func setupLogger() error {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("failed to parse log level: %v", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{})
	if term.IsTerminal(int(os.Stderr.Fd())) {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.Kitchen,
		})
	}

	return nil
}

func handleCmdError(err error) {
	if errors.Is(err, client.ErrDaemonNotRunning) {
		fmt.Fprintln(os.Stderr, "\nError: battrack daemon is not running")
		fmt.Fprintln(os.Stderr, "Start it with 'battrack daemon', or point --daemon-socket at the right socket.")
	} else if errors.Is(err, client.ErrPermissionDenied) {
		fmt.Fprintln(os.Stderr, "\nError: Permission Denied")
		fmt.Fprintln(os.Stderr, "  - The daemon socket belongs to another user")
		fmt.Fprintln(os.Stderr, "  - Run the command as that user, or start your own daemon with a different --daemon-socket")
	}
}

func main() {
	cmd := NewCommand()
	if err := cmd.Execute(); err != nil {
		handleCmdError(err)
		os.Exit(1)
	}
}

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "battrack",
		Short: "battrack tracks how long your laptop runs on battery and on the charger",
		Long: `battrack tracks how long your laptop runs on battery and on the charger.

It keeps running totals per power state, remembers every battery percentage
change, and reminds you to plug in or unplug to keep the battery healthy.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			err := setupLogger()
			if err != nil {
				return err
			}

			apiClient = client.NewClient(unixSocketPath)

			// The daemon is started by this binary, so only client commands compare versions.
			if cmd.Name() == "daemon" || cmd.Name() == "version" {
				return nil
			}
			if daemonVersion, err := apiClient.GetVersion(); err == nil && daemonVersion != version.Version {
				logrus.WithFields(logrus.Fields{
					"clientVersion": version.Version,
					"daemonVersion": daemonVersion,
				}).Warn("Version mismatch between client and daemon. Restart the daemon after upgrading.")
			}

			return nil
		},
	}

	globalFlags := cmd.PersistentFlags()
	globalFlags.StringVarP(&logLevel, "log-level", "l", logLevel, "log level (trace, debug, info, warn, error, fatal, panic)")
	globalFlags.StringVar(&unixSocketPath, "daemon-socket", unixSocketPath, "battrack daemon unix socket path")

	for _, i := range commandGroups {
		cmd.AddGroup(&cobra.Group{
			ID:    i,
			Title: i,
		})
	}

	cmd.AddCommand(
		NewDaemonCommand(),
		NewVersionCommand(),
		NewStatusCommand(),
		NewHistoryCommand(),
		NewWatchCommand(),
		NewResetCommand(),
		NewBrightnessCommand(),
		NewBatteryCareCommand(),
		NewNotificationsCommand(),
		NewStartMinimizedCommand(),
		NewStartAtLoginCommand(),
		NewResetOnTransitionCommand(),
		NewResetScheduleCommand(),
		NewShellCommand(),
	)

	return cmd
}
