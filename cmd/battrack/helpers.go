package main

import (
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func parseIntArg(args []string, valueName string) (int, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("invalid number of arguments")
	}

	value, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %v", valueName, err)
	}

	return value, nil
}

// newEnableDisableCommand builds `<key> enable|disable` for a boolean setting.
func newEnableDisableCommand(use, short, long string) *cobra.Command {
	set := func(enabled bool) error {
		action := "disable"
		if enabled {
			action = "enable"
		}

		ret, err := apiClient.SetConfig(use, enabled)
		if err != nil {
			return fmt.Errorf("failed to %s %s: %w", action, use, err)
		}
		if ret != "" {
			logrus.Debugf("daemon responded: %s", ret)
		}
		logrus.Infof("successfully %sd %s", action, use)
		return nil
	}

	cmd := &cobra.Command{
		Use:     use,
		Short:   short,
		Long:    long,
		GroupID: gAdvanced,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "enable",
			Short: "Enable " + short,
			Args:  cobra.NoArgs,
			RunE: func(_ *cobra.Command, _ []string) error {
				return set(true)
			},
		},
		&cobra.Command{
			Use:   "disable",
			Short: "Disable " + short,
			Args:  cobra.NoArgs,
			RunE: func(_ *cobra.Command, _ []string) error {
				return set(false)
			},
		},
	)

	return cmd
}

func bool2Text(b bool) string {
	if b {
		return color.New(color.Bold, color.FgGreen).Sprint("✔")
	}
	return color.New(color.Bold, color.FgRed).Sprint("✘")
}

func bold(format string, a ...interface{}) string {
	return color.New(color.Bold).Sprintf(format, a...)
}
