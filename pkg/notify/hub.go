package notify

import (
	"time"

	"github.com/sparks/battrack/pkg/events"
)

// HubSink publishes notifications to event stream subscribers.
type HubSink struct {
	Hub *events.EventHub
}

func (h HubSink) Notify(n Notification) error {
	h.Hub.Publish(events.Notification, events.NotificationEvent{
		Event:      n.Event.String(),
		Title:      n.Title(),
		Body:       n.Body(),
		Percentage: n.Percentage,
		Ts:         time.Now().Unix(),
	})
	return nil
}
