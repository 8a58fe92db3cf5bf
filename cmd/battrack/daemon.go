package main

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sparks/battrack/pkg/daemon"
	"github.com/sparks/battrack/pkg/guard"
	"github.com/sparks/battrack/pkg/options"
	"github.com/sparks/battrack/pkg/version"
)

// NewDaemonCommand .
func NewDaemonCommand() *cobra.Command {
	var (
		optionsPath = options.DefaultPath()
		fakeBattery = false
		writeOpts   = false
	)

	cmd := &cobra.Command{
		Use:     "daemon",
		Short:   "Run battrack daemon in the foreground",
		GroupID: gAdvanced,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logrus.WithFields(logrus.Fields{
				"version": version.Version,
				"commit":  version.GitCommit,
			}).Info("battrack daemon starting")

			opts, err := options.Load(optionsPath)
			if err != nil {
				return fmt.Errorf("failed to load options: %w", err)
			}
			if cmd.Flags().Changed("daemon-socket") {
				opts.Daemon.SocketPath = unixSocketPath
			}
			if fakeBattery {
				opts.Daemon.FakeBattery = true
			}
			opts, err = options.NormalizeAndValidate(opts)
			if err != nil {
				return fmt.Errorf("invalid options: %w", err)
			}

			if writeOpts {
				if err := options.Save(optionsPath, opts); err != nil {
					return fmt.Errorf("failed to write options: %w", err)
				}
				logrus.WithField("path", optionsPath).Info("options written")
				return nil
			}

			err = daemon.Run(opts)
			if errors.Is(err, guard.ErrAlreadyRunning) {
				logrus.Error("another battrack daemon is already running")
			}
			return err
		},
	}

	f := cmd.Flags()

	f.StringVar(&optionsPath, "options", optionsPath, "daemon options file (TOML)")
	f.BoolVar(&fakeBattery, "fake-battery", false,
		"Use a simulated battery instead of the real one.")
	f.BoolVar(&writeOpts, "write-options", false,
		"Write the effective options, flags included, to the options file and exit.")

	return cmd
}
