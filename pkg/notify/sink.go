// Package notify delivers threshold events to the user.
package notify

import (
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/sparks/battrack/pkg/threshold"
)

// Notification is what a Sink delivers.
type Notification struct {
	Event      threshold.Event
	Percentage int
}

func (n Notification) Title() string { return n.Event.Title() }
func (n Notification) Body() string  { return n.Event.Body() }

// Sink delivers a notification. Implementations must not block for long, as
// they are called from the engine tick.
type Sink interface {
	Notify(Notification) error
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(Notification) error

func (f SinkFunc) Notify(n Notification) error { return f(n) }

// Multi fans out to every sink, even when some of them fail.
type Multi []Sink

func (m Multi) Notify(n Notification) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Notify(n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogSink writes notifications to the logger.
type LogSink struct{}

func (LogSink) Notify(n Notification) error {
	logrus.WithFields(logrus.Fields{
		"event":      n.Event.String(),
		"percentage": n.Percentage,
	}).Infof("%s: %s", n.Title(), n.Body())
	return nil
}
