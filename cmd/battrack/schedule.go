package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sparks/battrack/pkg/client"
)

func NewResetScheduleCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "reset-schedule",
		Aliases: []string{"sched"},
		Short:   "Manage the automatic time reset schedule",
		Long: `Manage the automatic time reset schedule.

The reset-schedule command can be used in multiple ways:
  battrack reset-schedule                    Show the current schedule
  battrack reset-schedule set 'm h d mon wd' Set schedule with cron expression
  battrack reset-schedule disable            Disable the schedule
  battrack reset-schedule skip               Skip the next run`,
		Example: `  battrack reset-schedule set '0 0 * * *' (every midnight)
  battrack reset-schedule set '0 9 * * 1' (at 09:00 on Monday)`,
		GroupID: gAdvanced,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runScheduleShow(cmd)
		},
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Show the current reset schedule",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runScheduleShow(cmd)
			},
		},
		&cobra.Command{
			Use:   "set [cron-expression]",
			Short: "Set the reset schedule",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if args[0] == "" {
					return fmt.Errorf("cron expression cannot be empty")
				}
				st, err := apiClient.SetResetSchedule(args[0])
				if err != nil {
					return err
				}
				printSchedule(cmd, st)
				return nil
			},
		},
		&cobra.Command{
			Use:   "disable",
			Short: "Disable the reset schedule",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				if _, err := apiClient.SetResetSchedule(""); err != nil {
					return err
				}
				cmd.Println("Reset schedule disabled.")
				return nil
			},
		},
		&cobra.Command{
			Use:   "skip",
			Short: "Skip the next scheduled reset",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				st, err := apiClient.SkipResetSchedule()
				if err != nil {
					return err
				}
				cmd.Println("Next scheduled reset skipped.")
				printSchedule(cmd, st)
				return nil
			},
		},
	)

	return cmd
}

func runScheduleShow(cmd *cobra.Command) error {
	st, err := apiClient.GetResetSchedule()
	if err != nil {
		return err
	}
	printSchedule(cmd, st)
	return nil
}

func printSchedule(cmd *cobra.Command, st *client.ScheduleStatus) {
	if st.Expr == "" {
		cmd.Println("Reset schedule is not set.")
		return
	}
	cmd.Printf("Schedule: %s\n", bold("%s", st.Expr))
	if !st.NextRun.IsZero() {
		cmd.Printf("Next run: %s\n", st.NextRun.Local().Format(time.DateTime))
	}
}
