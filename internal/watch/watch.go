// Package watch feeds edits made to a file on disk into a session, so any
// editor can drive the pipeline.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"pkt.systems/pslog"
)

// Watcher reports content changes of one file.
type Watcher struct {
	path     string
	onChange func(string)
	log      pslog.Logger
	last     string
}

// New returns a watcher for path. onChange receives the full file content
// whenever it differs from the previous read.
func New(path string, onChange func(string), logger pslog.Logger) *Watcher {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Watcher{path: filepath.Clean(path), onChange: onChange, log: logger}
}

// Run watches until ctx is done. The file's directory is watched rather than
// the file so editors that save by rename keep being followed.
func (w *Watcher) Run(ctx context.Context) error {
	initial, err := os.ReadFile(w.path)
	if err != nil {
		return err
	}
	w.last = string(initial)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()
	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	w.log.Info("watch start", "path", w.path)

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("watch stop", "path", w.path)
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			w.handle(event)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch error", "path", w.path, "err", err)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if filepath.Clean(event.Name) != w.path {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return
	}
	data, err := os.ReadFile(w.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			w.log.Warn("watch read failed", "path", w.path, "err", err)
		}
		return
	}
	text := string(data)
	if text == w.last {
		return
	}
	w.last = text
	w.log.Debug("watch change", "path", w.path, "op", event.Op.String(), "bytes", len(data))
	w.onChange(text)
}
