package events

import "encoding/json"

// Event name constants
const (
	Snapshot       = "snapshot"
	Notification   = "notification"
	ConfigChanged  = "config.changed"
	AccountReset   = "account.reset"
	HistoryCleared = "history.cleared"
)

// Event is a generic SSE event from daemon.
type Event struct {
	Name string          // SSE event name
	Data json.RawMessage // Raw JSON payload
}

// NotificationEvent is the typed payload for notification.
type NotificationEvent struct {
	Event      string `json:"event"`
	Title      string `json:"title"`
	Body       string `json:"body"`
	Percentage int    `json:"percentage"`
	Ts         int64  `json:"ts"`
}

// ConfigChangedEvent is the typed payload for config.changed. Key is empty
// when the whole record was reloaded.
type ConfigChangedEvent struct {
	Key   string `json:"key,omitempty"`
	Value bool   `json:"value"`
	Ts    int64  `json:"ts"`
}

// AccountResetEvent is the typed payload for account.reset.
type AccountResetEvent struct {
	Bucket string `json:"bucket"`
	// Source is what triggered the reset, e.g. api or schedule.
	Source string `json:"source"`
	Ts     int64  `json:"ts"`
}

// HistoryClearedEvent is the typed payload for history.cleared.
type HistoryClearedEvent struct {
	Ts int64 `json:"ts"`
}

// DecodeAs decodes the event payload into the caller-specified generic type T.
// It ignores the event name and simply unmarshals Data into T. If Data is empty,
// it returns the zero value of T with a nil error.
//
// Example:
//
//	payload, err := events.DecodeAs[events.AccountResetEvent](ev)
//	if err != nil { /* handle */ }
//	fmt.Println(payload.Bucket, payload.Source)
func DecodeAs[T any](e Event) (T, error) {
	var zero T
	if len(e.Data) == 0 {
		return zero, nil
	}
	var v T
	if err := json.Unmarshal(e.Data, &v); err != nil {
		return zero, err
	}
	return v, nil
}
