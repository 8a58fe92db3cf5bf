package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sparks/battrack/pkg/accounting"
	"github.com/sparks/battrack/pkg/engine"
	"github.com/sparks/battrack/pkg/events"
	"github.com/sparks/battrack/pkg/history"
	"github.com/sparks/battrack/pkg/threshold"
)

func NewStatusCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:     "status",
		GroupID: gBasic,
		Short:   "Get the current status of battrack",
		Long:    `Get the battery reading, accumulated time, battery care state and settings.`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			snap, err := apiClient.GetSnapshot()
			if err != nil {
				return fmt.Errorf("failed to get status: %w", err)
			}

			if asJSON {
				return printJSON(cmd, snap)
			}

			th, err := apiClient.GetThresholds()
			if err != nil {
				return fmt.Errorf("failed to get thresholds: %w", err)
			}

			printStatus(cmd, snap, th)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw snapshot as JSON")

	return cmd
}

func printStatus(cmd *cobra.Command, snap *engine.Snapshot, th *engine.Thresholds) {
	cmd.Println(bold("Battery:"))
	if !snap.Available || snap.Sample == nil {
		cmd.Printf("  %s\n", color.YellowString("unavailable"))
		if snap.Error != "" {
			cmd.Printf("    %s\n", snap.Error)
		}
	} else {
		cmd.Printf("  Current charge: %s\n", bold("%d%%", snap.Sample.Percentage))
		cmd.Printf("  Power: %s\n", pluggedText(snap.Sample.PluggedIn))
		cmd.Printf("  Remaining: %s\n", bold("%s", snap.Remaining))
	}
	cmd.Println()

	cmd.Println(bold("Time:"))
	printAccount(cmd, snap.Account)
	cmd.Println()

	cmd.Println(bold("Battery care:"))
	cmd.Printf("  Thresholds: plug in at %s, unplug at %s\n",
		bold("%d%%", th.LowPercent), bold("%d%%", th.HighPercent))
	cmd.Printf("  State: %s\n", stateText(snap.ThresholdState))
	cmd.Println()

	cmd.Println(bold("Settings:"))
	cmd.Printf("  Battery care: %s\n", bool2Text(snap.Config.BatteryCareEnabled))
	cmd.Printf("  Notifications: %s\n", bool2Text(snap.Config.NotificationsEnabled))
	cmd.Printf("  Start minimized: %s\n", bool2Text(snap.Config.StartMinimized))
	cmd.Printf("  Start at login: %s\n", bool2Text(snap.Config.StartAtLogin))
	cmd.Printf("  Reset opposite bucket on power change: %s\n", bool2Text(snap.Config.ResetOppositeBucketOnTransition))
}

func printAccount(cmd *cobra.Command, acc accounting.Account) {
	cmd.Printf("  Total in use: %s\n", bold("%s", accounting.FormatDuration(acc.TotalInUse)))
	cmd.Printf("  On battery: %s\n", bold("%s", accounting.FormatDuration(acc.TotalOnBattery)))
	cmd.Printf("  Plugged in: %s\n", bold("%s", accounting.FormatDuration(acc.TotalPluggedIn)))
}

func pluggedText(plugged bool) string {
	if plugged {
		return color.GreenString("plugged in")
	}
	return color.RedString("on battery")
}

func stateText(s threshold.State) string {
	switch s {
	case threshold.Low:
		return color.New(color.Bold, color.FgRed).Sprint(s.String())
	case threshold.High:
		return color.New(color.Bold, color.FgYellow).Sprint(s.String())
	default:
		return bold("%s", s.String())
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	cmd.Println(string(b))
	return nil
}

func NewHistoryCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:     "history",
		GroupID: gBasic,
		Short:   "Show battery percentage changes",
		Long:    `Show every recorded battery percentage change, oldest first.`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			entries, err := apiClient.GetHistory()
			if err != nil {
				return fmt.Errorf("failed to get history: %w", err)
			}

			if asJSON {
				return printJSON(cmd, entries)
			}

			if len(entries) == 0 {
				cmd.Println("No changes recorded yet.")
				return nil
			}
			cmd.Println(bold("%-6s %-5s %-10s %s", "TIME", "LEVEL", "POWER", "REMAINING"))
			for _, e := range entries {
				cmd.Println(formatEntry(e))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print entries as JSON")

	return cmd
}

// formatEntry renders one history row as local HH:mm, percentage, plugged
// state and the remaining label.
func formatEntry(e history.Entry) string {
	return fmt.Sprintf("%-6s %-5s %-10s %s",
		e.ObservedAt.Local().Format("15:04"),
		fmt.Sprintf("%d%%", e.Percentage),
		e.PluggedLabel(),
		e.RemainingLabel,
	)
}

func NewWatchCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:     "watch",
		GroupID: gBasic,
		Short:   "Stream live events from the daemon",
		Long:    `Stream snapshots, notifications and setting changes until interrupted.`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			ch, err := apiClient.SubscribeEvents(ctx)
			if err != nil {
				return fmt.Errorf("failed to subscribe to events: %w", err)
			}

			for ev := range ch {
				if asJSON {
					cmd.Printf("%s %s\n", ev.Name, string(ev.Data))
					continue
				}
				line, err := formatEvent(ev)
				if err != nil {
					return fmt.Errorf("failed to decode %s event: %w", ev.Name, err)
				}
				cmd.Println(line)
			}

			if ctx.Err() == nil {
				return fmt.Errorf("event stream closed by daemon")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print event payloads as JSON")

	return cmd
}

func formatEvent(ev events.Event) (string, error) {
	ts := time.Now().Format("15:04:05")

	switch ev.Name {
	case events.Snapshot:
		snap, err := events.DecodeAs[engine.Snapshot](ev)
		if err != nil {
			return "", err
		}
		if !snap.Available || snap.Sample == nil {
			return fmt.Sprintf("%s battery unavailable", ts), nil
		}
		return fmt.Sprintf("%s %d%% %s %s | total %s battery %s plugged %s",
			ts,
			snap.Sample.Percentage,
			pluggedText(snap.Sample.PluggedIn),
			snap.Remaining,
			accounting.FormatDuration(snap.Account.TotalInUse),
			accounting.FormatDuration(snap.Account.TotalOnBattery),
			accounting.FormatDuration(snap.Account.TotalPluggedIn),
		), nil
	case events.Notification:
		n, err := events.DecodeAs[events.NotificationEvent](ev)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s %s %s", ts, bold("%s", n.Title), n.Body), nil
	case events.ConfigChanged:
		c, err := events.DecodeAs[events.ConfigChangedEvent](ev)
		if err != nil {
			return "", err
		}
		if c.Key == "" {
			return fmt.Sprintf("%s settings reloaded", ts), nil
		}
		return fmt.Sprintf("%s %s set to %t", ts, c.Key, c.Value), nil
	case events.AccountReset:
		r, err := events.DecodeAs[events.AccountResetEvent](ev)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s %s reset (%s)", ts, r.Bucket, r.Source), nil
	case events.HistoryCleared:
		return fmt.Sprintf("%s history cleared", ts), nil
	default:
		return fmt.Sprintf("%s %s %s", ts, ev.Name, string(ev.Data)), nil
	}
}
