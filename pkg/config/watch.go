package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// watchDebounce coalesces the burst of events produced by one save.
const watchDebounce = 100 * time.Millisecond

// Watch calls onChange whenever the file at path is written, created or
// replaced until ctx is done. The parent directory is watched because atomic
// saves rename a temp file over the target.
func Watch(ctx context.Context, path string, onChange func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to create file watcher")
	}

	dir := filepath.Dir(path)
	if err := w.Add(dir); err != nil {
		w.Close()
		return pkgerrors.Wrapf(err, "failed to watch directory %s", dir)
	}

	go func() {
		defer w.Close()

		target := filepath.Clean(path)
		var timer *time.Timer
		var fire <-chan time.Time

		for {
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				return
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logrus.WithError(err).Warn("config file watcher error")
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				logrus.WithFields(logrus.Fields{
					"file": ev.Name,
					"op":   ev.Op.String(),
				}).Trace("config file event")
				if timer == nil {
					timer = time.NewTimer(watchDebounce)
				} else {
					timer.Reset(watchDebounce)
				}
				fire = timer.C
			case <-fire:
				fire = nil
				logrus.WithField("file", path).Debug("config file changed")
				onChange()
			}
		}
	}()

	return nil
}
