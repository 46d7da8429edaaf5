package workspace

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long Watch waits for a burst of file events to end
const DefaultDebounce = 100 * time.Millisecond

// Watch reloads the store whenever the backend's file is changed by someone
// else, then calls onReload. It blocks until ctx is done.
func (s *Store) Watch(ctx context.Context, debounce time.Duration, onReload func(error)) error {
	fb, ok := s.backend.(*FileBackend)
	if !ok {
		return fmt.Errorf("workspace: %T cannot be watched", s.backend)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	// saves replace the file by rename, so watch the directory
	target := filepath.Clean(fb.Path())
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", target, err)
	}

	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	pending := false

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			pending = true
			timer.Reset(debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			if debugLog != nil {
				debugLog("[Workspace] watcher error:", err)
			}

		case <-timer.C:
			if !pending {
				continue
			}
			pending = false
			if !fb.Changed() {
				continue
			}
			err := s.Reload(ctx)
			if debugLog != nil {
				debugLog("[Workspace] reloaded", fb.Path(), "err:", err)
			}
			if onReload != nil {
				onReload(err)
			}
		}
	}
}
