package daemon

import (
	"context"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/ppastorf/doctor-who-sounds/internal/state"
)

// watchIdentity calls lost when the daemon's PID file or socket disappears
// from under it. A daemon whose socket is gone can never be reached again,
// and one without a PID file would be duplicated by the next launch.
func watchIdentity(ctx context.Context, dir state.Dir, log logrus.FieldLogger, lost func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(dir.Root); err != nil {
		_ = w.Close()
		return err
	}

	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				if ctx.Err() != nil {
					return
				}
				if ev.Name == dir.PID() || ev.Name == dir.Socket() {
					log.WithField("file", ev.Name).Warn("Daemon identity file removed, shutting down")
					lost()
					return
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.WithError(err).Debug("Identity watcher error")
			}
		}
	}()
	return nil
}
