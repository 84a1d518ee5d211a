package file

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces the burst of events a single save produces.
const DefaultDebounce = 500 * time.Millisecond

// Watch calls onChange after the export behind s is written, created or
// renamed, until ctx is done. Bursts closer than debounce collapse into one
// call. The watch is on the directory so that files replaced by rename are
// still seen.
func (s *Source) Watch(ctx context.Context, debounce time.Duration, onChange func()) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	dir := s.path
	var match func(string) bool
	if fi, err := os.Stat(s.path); err != nil || !fi.IsDir() {
		dir = filepath.Dir(s.path)
		base := filepath.Base(s.path)
		match = func(name string) bool { return filepath.Base(name) == base }
	} else {
		match = func(name string) bool { return strings.EqualFold(filepath.Ext(name), ".csv") }
	}
	if err := watcher.Add(dir); err != nil {
		if closeErr := watcher.Close(); closeErr != nil {
			slog.Error("file.watch.close.error", "error", closeErr)
		}
		return err
	}
	slog.Info("file.watch.start", "dir", dir, "debounce", debounce)

	go func() {
		defer watcher.Close()
		var timer *time.Timer
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !match(event.Name) || event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				slog.Debug("file.watch.event", "name", event.Name, "op", event.Op.String())
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(debounce, onChange)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("file.watch.error", "error", err)
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				return
			}
		}
	}()
	return nil
}
