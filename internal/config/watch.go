package config

import (
	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// WatchForChanges watches path and logs a notice whenever it changes.
// Config hot-apply is not implemented; callers still need a restart to
// pick up new values, but operators no longer have to guess whether an
// edit was noticed.
func WatchForChanges(path string) (*fsnotify.Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := watcher.Add(path); err != nil {
		_ = watcher.Close()
		return nil, err
	}

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
					slog.Info("config file changed, restart to apply", "path", event.Name)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("config watcher error", "error", err)
			}
		}
	}()

	return watcher, nil
}
