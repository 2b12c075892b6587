package crontainer

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
)

// Watcher watches the script directories and the custom schedule file for
// changes.
type Watcher struct {
	Events chan EventScriptListModify

	w     *fsnotify.Watcher
	j     Journaler
	dirs  map[string]bool
	files map[string]bool
}

// NewWatcher watches the given directories for *.sh changes and the given
// files for any change. Directories that don't exist are skipped with a
// warning. The watcher is stopped once the given context is canceled.
func NewWatcher(ctx context.Context, dirs, files []string, j Journaler) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create watcher")
	}

	w := &Watcher{
		Events: make(chan EventScriptListModify),
		w:      watcher,
		j:      j,
		dirs:   make(map[string]bool, len(dirs)),
		files:  make(map[string]bool, len(files)),
	}

	watched := map[string]bool{}
	add := func(dir string) error {
		if watched[dir] {
			return nil
		}
		if err := watcher.Add(dir); err != nil {
			return err
		}
		watched[dir] = true
		return nil
	}

	for _, dir := range dirs {
		dir = filepath.Clean(dir)
		if err := add(dir); err != nil {
			warn(j, "watcher", fmt.Errorf("not watching %s: %v", dir, err))
			continue
		}
		w.dirs[dir] = true
	}

	for _, file := range files {
		file = filepath.Clean(file)
		// Watch the parent, since the file may not exist yet or may be
		// replaced by a rename.
		if err := add(filepath.Dir(file)); err != nil {
			warn(j, "watcher", fmt.Errorf("not watching %s: %v", file, err))
			continue
		}
		w.files[file] = true
	}

	go w.watch(ctx)
	return w, nil
}

func (w *Watcher) watch(ctx context.Context) {
	defer w.w.Close()

	for {
		select {
		case <-ctx.Done():
			return

		case err := <-w.w.Errors:
			warn(w.j, "watcher", errors.Wrap(err, "inotify error"))

		case evt := <-w.w.Events:
			event, ok := w.translate(evt)
			if !ok {
				continue
			}

			select {
			case w.Events <- event:
			case <-ctx.Done():
				return
			}
		}
	}
}

// translate translates an fsnotify event into an EventScriptListModify event.
// Events for unrelated files are dropped.
func (w *Watcher) translate(evt fsnotify.Event) (EventScriptListModify, bool) {
	name := filepath.Clean(evt.Name)
	dir, file := filepath.Split(name)
	dir = filepath.Clean(dir)

	relevant := w.files[name] || (w.dirs[dir] && strings.HasSuffix(file, ".sh"))
	if !relevant {
		return EventScriptListModify{}, false
	}

	ev := EventScriptListModify{Dir: dir, File: file}

	switch {
	case evt.Op&fsnotify.Create != 0:
		ev.Op = ScriptListAdd
	case evt.Op&(fsnotify.Write|fsnotify.Chmod) != 0:
		ev.Op = ScriptListUpdate
	case evt.Op&(fsnotify.Rename|fsnotify.Remove) != 0:
		// Treat a rename as a remove; fsnotify does not report renames
		// properly, so it's apparently treated like a remove.
		// See: https://github.com/fsnotify/fsnotify/issues/26
		ev.Op = ScriptListRemove
	default:
		return EventScriptListModify{}, false
	}

	return ev, true
}
