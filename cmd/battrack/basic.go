package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sparks/battrack/pkg/accounting"
	"github.com/sparks/battrack/pkg/version"
)

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("%s %s\n", version.Version, version.GitCommit)
		},
	}
}

func NewResetCommand() *cobra.Command {
	return &cobra.Command{
		Use:       "reset total|battery|plugged|all|history",
		Short:     "Reset accumulated time or the change history",
		GroupID:   gBasic,
		ValidArgs: []string{"total", "battery", "plugged", "all", "history"},
		Args:      cobra.ExactArgs(1),
		Long: `Reset accumulated time or the change history.

  total    reset every time bucket
  battery  reset time spent on battery (also removed from the total)
  plugged  reset time spent plugged in (also removed from the total)
  all      same as total
  history  clear the battery percentage change log`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if args[0] == "history" {
				ret, err := apiClient.ClearHistory()
				if err != nil {
					return fmt.Errorf("failed to clear history: %w", err)
				}
				if ret != "" {
					logrus.Debugf("daemon responded: %s", ret)
				}
				logrus.Info("successfully cleared history")
				return nil
			}

			b, err := accounting.ParseBucket(args[0])
			if err != nil {
				return err
			}

			acc, err := apiClient.Reset(b)
			if err != nil {
				return fmt.Errorf("failed to reset %s: %w", b, err)
			}

			logrus.Infof("successfully reset %s", b)
			printAccount(cmd, *acc)
			return nil
		},
	}
}

func NewBrightnessCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "brightness [percentage]",
		Short:   "Get or set display brightness",
		GroupID: gBasic,
		Long: `Get or set display brightness.

Without an argument, prints the current brightness. With an argument, sets it to
a percentage from 0 to 100.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				pct, err := apiClient.GetBrightness()
				if err != nil {
					return fmt.Errorf("failed to get brightness: %w", err)
				}
				cmd.Printf("Brightness: %s\n", bold("%d%%", pct))
				return nil
			}

			pct, err := parseIntArg(args, "brightness")
			if err != nil {
				return err
			}
			if pct < 0 || pct > 100 {
				return fmt.Errorf("brightness must be between 0 and 100, got %d", pct)
			}

			ret, err := apiClient.SetBrightness(pct)
			if err != nil {
				return fmt.Errorf("failed to set brightness: %w", err)
			}
			if ret != "" {
				logrus.Debugf("daemon responded: %s", ret)
			}

			logrus.Infof("successfully set brightness to %d%%", pct)
			return nil
		},
	}
}
