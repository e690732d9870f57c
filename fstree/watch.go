package fstree

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const watchDebounce = 250 * time.Millisecond

// Watcher reports filesystem changes under a disk root so the frontend can
// refresh its tree. Bursts of events are coalesced into one notification.
type Watcher struct {
	fs     *fsnotify.Watcher
	ignore map[string]bool
	logger *slog.Logger
}

// NewWatcher watches root and its subdirectories, skipping ignoreDirs
// (nil means DefaultIgnoreDirs).
func NewWatcher(root string, ignoreDirs []string, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if ignoreDirs == nil {
		ignoreDirs = DefaultIgnoreDirs
	}
	ignore := make(map[string]bool, len(ignoreDirs))
	for _, name := range ignoreDirs {
		ignore[name] = true
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	w := &Watcher{fs: fsw, ignore: ignore, logger: logger}

	err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if w.ignore[d.Name()] {
			return filepath.SkipDir
		}
		return w.fs.Add(path)
	})
	if err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// Run forwards coalesced change notifications to onChange until ctx is
// done or the watcher closes.
func (w *Watcher) Run(ctx context.Context, onChange func()) {
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if ev.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() && !w.ignore[filepath.Base(ev.Name)] {
					if err := w.fs.Add(ev.Name); err != nil {
						w.logger.Warn("watch new directory", "dir", ev.Name, "error", err)
					}
				}
			}
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
				fire = timer.C
			} else {
				timer.Reset(watchDebounce)
			}

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", "error", err)

		case <-fire:
			timer = nil
			fire = nil
			onChange()
		}
	}
}

// Close stops the underlying watcher.
func (w *Watcher) Close() error {
	return w.fs.Close()
}
