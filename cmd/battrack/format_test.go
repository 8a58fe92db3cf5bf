package main

import (
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"

	"github.com/sparks/battrack/pkg/events"
	"github.com/sparks/battrack/pkg/history"
)

func TestFormatEntry(t *testing.T) {
	tests := []struct {
		name  string
		entry history.Entry
		want  string
	}{
		{
			name: "discharging",
			entry: history.Entry{
				ObservedAt:     time.Date(2024, 1, 1, 9, 5, 0, 0, time.Local),
				Percentage:     42,
				PluggedIn:      false,
				RemainingLabel: "1 H : 30 Min",
			},
			want: "09:05  42%   Unplugged  1 H : 30 Min",
		},
		{
			name: "charging",
			entry: history.Entry{
				ObservedAt:     time.Date(2024, 1, 1, 21, 40, 0, 0, time.Local),
				Percentage:     100,
				PluggedIn:      true,
				RemainingLabel: "Charging",
			},
			want: "21:40  100%  Plugged    Charging",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatEntry(tt.entry); got != tt.want {
				t.Fatalf("formatEntry() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatEvent(t *testing.T) {
	color.NoColor = true

	tests := []struct {
		name string
		ev   events.Event
		want string
	}{
		{
			name: "snapshot",
			ev: events.Event{Name: events.Snapshot, Data: []byte(
				`{"available":true,"sample":{"percentage":55,"pluggedIn":false},"remaining":"2 H : 0 Min",` +
					`"account":{"totalInUse":3661000000000,"totalOnBattery":61000000000,"totalPluggedIn":3600000000000}}`)},
			want: "55% on battery 2 H : 0 Min | total 1:01:01 battery 0:01:01 plugged 1:00:00",
		},
		{
			name: "unavailable",
			ev:   events.Event{Name: events.Snapshot, Data: []byte(`{"available":false}`)},
			want: "battery unavailable",
		},
		{
			name: "config reload",
			ev:   events.Event{Name: events.ConfigChanged, Data: []byte(`{"value":false,"ts":1}`)},
			want: "settings reloaded",
		},
		{
			name: "config set",
			ev:   events.Event{Name: events.ConfigChanged, Data: []byte(`{"key":"notifications","value":true,"ts":1}`)},
			want: "notifications set to true",
		},
		{
			name: "reset",
			ev:   events.Event{Name: events.AccountReset, Data: []byte(`{"bucket":"battery","source":"schedule","ts":1}`)},
			want: "battery reset (schedule)",
		},
		{
			name: "unknown",
			ev:   events.Event{Name: "custom", Data: []byte(`{}`)},
			want: "custom {}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := formatEvent(tt.ev)
			if err != nil {
				t.Fatalf("formatEvent() error = %v", err)
			}
			// Drop the leading clock.
			_, rest, _ := strings.Cut(got, " ")
			if rest != tt.want {
				t.Fatalf("formatEvent() = %q, want %q", rest, tt.want)
			}
		})
	}
}

func TestFormatEvent_BadPayload(t *testing.T) {
	_, err := formatEvent(events.Event{Name: events.Notification, Data: []byte(`not json`)})
	if err == nil {
		t.Fatal("expected a decode error")
	}
}
