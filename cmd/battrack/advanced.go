package main

import (
	"github.com/spf13/cobra"

	"github.com/sparks/battrack/pkg/config"
)

func NewBatteryCareCommand() *cobra.Command {
	return newEnableDisableCommand(
		config.KeyBatteryCare,
		"battery care reminders",
		`Set whether battrack watches the charge level for battery care.

When enabled, battrack asks you to plug in once the charge falls to the low
threshold, and to unplug once it rises to the high threshold. Each reminder is
sent once per crossing. When disabled, the threshold state stays normal.`,
	)
}

func NewNotificationsCommand() *cobra.Command {
	return newEnableDisableCommand(
		config.KeyNotifications,
		"notification delivery",
		`Set whether battery care reminders are delivered.

Thresholds are still tracked when notifications are disabled. Only delivery to
the desktop, the sound command and event subscribers is suppressed.`,
	)
}

func NewStartMinimizedCommand() *cobra.Command {
	return newEnableDisableCommand(
		config.KeyStartMinimized,
		"starting front ends minimized",
		`Set whether front ends should start minimized. battrack itself only stores this setting.`,
	)
}

func NewStartAtLoginCommand() *cobra.Command {
	return newEnableDisableCommand(
		config.KeyStartAtLogin,
		"starting the daemon at login",
		`Set whether the daemon starts at login.

The daemon writes or removes a login entry for itself (an XDG autostart file on
Linux, a LaunchAgent on macOS) whenever this setting changes.`,
	)
}

func NewResetOnTransitionCommand() *cobra.Command {
	return newEnableDisableCommand(
		config.KeyResetOnTransition,
		"resetting the opposite bucket on power changes",
		`Set whether plugging in or unplugging clears the bucket that was just left.

When enabled, plugging in clears the on-battery total and unplugging clears the
plugged-in total. The overall total is adjusted to match.`,
	)
}
