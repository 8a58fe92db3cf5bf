package client

import (
	"errors"
	"io/fs"
	"net/url"
	"syscall"
)

var (
	// ErrDaemonNotRunning is returned when the daemon is not running
	ErrDaemonNotRunning = errors.New("daemon not running")

	// ErrPermissionDenied is returned when the user does not have permission to perform the requested action
	ErrPermissionDenied = errors.New("permission denied")

	// ErrNotFound is returned when 404 is returned from the daemon
	ErrNotFound = errors.New("404 not found")
)

// isNotExist matches a missing socket file. Dial errors are *net.OpError,
// which os.IsNotExist does not unwrap.
func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func isPermission(err error) bool {
	return errors.Is(err, fs.ErrPermission)
}

// isConnRefused matches a socket file left behind with no listener.
func isConnRefused(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED)
}

// unwrapDialError strips the url.Error wrapper so callers can match the
// sentinel errors returned by the dialer with errors.Is.
func unwrapDialError(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return uerr.Err
	}
	return err
}
