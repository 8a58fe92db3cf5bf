package notify

import (
	"context"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	pkgerrors "github.com/pkg/errors"

	"github.com/sparks/battrack/pkg/threshold"
)

const (
	notificationsDest  = "org.freedesktop.Notifications"
	notificationsPath  = dbus.ObjectPath("/org/freedesktop/Notifications")
	notificationsIface = "org.freedesktop.Notifications"
)

// DefaultCallTimeout bounds a Notify call so a stuck notification service
// cannot hold up the caller.
const DefaultCallTimeout = 2 * time.Second

// Urgency levels of the desktop notification spec.
const (
	urgencyNormal   byte = 1
	urgencyCritical byte = 2
)

type caller interface {
	CallWithContext(ctx context.Context, method string, flags dbus.Flags, args ...interface{}) *dbus.Call
}

// DesktopSink shows notifications through the freedesktop notification
// service on the session bus. Each notification replaces the previous one.
type DesktopSink struct {
	appName string
	obj     caller
	timeout time.Duration

	mu     sync.Mutex
	lastID uint32
}

// NewDesktopSink connects to the session bus.
func NewDesktopSink(appName string) (*DesktopSink, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to connect to session bus")
	}
	return &DesktopSink{
		appName: appName,
		obj:     conn.Object(notificationsDest, notificationsPath),
		timeout: DefaultCallTimeout,
	}, nil
}

func iconFor(e threshold.Event) string {
	if e == threshold.PlugInRequested {
		return "battery-caution"
	}
	return "battery-full-charged"
}

func urgencyFor(e threshold.Event) byte {
	if e == threshold.PlugInRequested {
		return urgencyCritical
	}
	return urgencyNormal
}

func (d *DesktopSink) Notify(n Notification) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	hints := map[string]dbus.Variant{
		"urgency": dbus.MakeVariant(urgencyFor(n.Event)),
	}
	timeout := d.timeout
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	call := d.obj.CallWithContext(ctx, notificationsIface+".Notify", 0,
		d.appName, d.lastID, iconFor(n.Event), n.Title(), n.Body(), []string{}, hints, int32(-1))

	var id uint32
	if err := call.Store(&id); err != nil {
		return pkgerrors.Wrapf(err, "failed to send desktop notification")
	}
	d.lastID = id
	return nil
}
