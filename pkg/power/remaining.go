package power

import "fmt"

const (
	LabelCharging      = "Charging"
	LabelFullyCharged  = "Fully Charged"
	LabelUnknownRemain = "Unknown"
)

// RemainingLabel formats the remaining battery time the way it is shown in
// the live status and stored in history entries. Plugged in always reads
// "Charging", a full battery on its own reads "Fully Charged", and otherwise
// the seconds are truncated to "H : Min".
func RemainingLabel(percentage int, pluggedIn bool, secondsRemaining *int) string {
	if pluggedIn {
		return LabelCharging
	}
	if percentage == 100 {
		return LabelFullyCharged
	}
	if secondsRemaining == nil || *secondsRemaining < 0 {
		return LabelUnknownRemain
	}
	return FormatHoursMinutes(*secondsRemaining)
}

// FormatHoursMinutes renders seconds as "{hours} H : {minutes} Min" using
// integer division.
func FormatHoursMinutes(seconds int) string {
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	return fmt.Sprintf("%d H : %d Min", hours, minutes)
}
