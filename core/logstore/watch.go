package logstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch drops the line index whenever the log file is changed by someone
// other than this Store, for instance a second process appending to it or
// the file being rotated away. It blocks until ctx is cancelled.
//
// The parent directory is watched rather than the file itself so that
// the watch survives the file being removed and recreated.
func (s *Store) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer w.Close()

	dir := filepath.Dir(s.cfg.Path)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	target := filepath.Clean(s.cfg.Path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			s.handleFileEvent(event)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.log.Warn("log watcher error", "error", err)
		}
	}
}

// handleFileEvent invalidates the index unless the event is explained by
// this Store's own appends.
func (s *Store) handleFileEvent(event fsnotify.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.offsets == nil {
		return
	}
	if event.Has(fsnotify.Write) {
		if st, err := os.Stat(s.cfg.Path); err == nil && st.Size() == s.indexed {
			return
		}
	}
	if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		s.available = false
	}
	s.log.Debug("log file changed externally", "op", event.Op.String())
	s.offsets = nil
}
