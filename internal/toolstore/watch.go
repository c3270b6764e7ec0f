package toolstore

import (
	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// Watch starts watching the catalog root for external changes (e.g. an
// `import` replacing the tree while a long-running HTTP server holds a
// cached catalog) and invokes onChange whenever something under tools/
// is created, written, renamed, or removed. The returned stop function
// closes the underlying watcher; callers should defer it.
//
// Watch failures are logged and degrade to a no-op rather than preventing
// startup: catalog watching is a convenience for long-running servers, and
// Load/Save stay authoritative on demand.
func (s *Store) Watch(logger *slog.Logger, onChange func()) (stop func(), err error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		if logger != nil {
			logger.Warn("toolstore: fsnotify unavailable, catalog watch disabled", "error", err)
		}
		return func() {}, nil
	}
	if err := watcher.Add(s.root); err != nil {
		watcher.Close()
		if logger != nil {
			logger.Warn("toolstore: failed to watch catalog root", "error", err, "root", s.root)
		}
		return func() {}, nil
	}

	done := make(chan struct{})
	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
					onChange()
				}
			case watchErr, ok := <-watcher.Errors:
				if !ok {
					return
				}
				if logger != nil {
					logger.Warn("toolstore: watch error", "error", watchErr)
				}
			case <-done:
				return
			}
		}
	}()

	return func() {
		close(done)
		watcher.Close()
	}, nil
}
