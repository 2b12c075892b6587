package crontainer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

func TestWatcherTranslate(t *testing.T) {
	w := &Watcher{
		dirs:  map[string]bool{"/scripts": true},
		files: map[string]bool{"/cron-schedule": true},
	}

	tests := []struct {
		evt  fsnotify.Event
		want EventScriptListModify
		ok   bool
	}{
		{
			fsnotify.Event{Name: "/scripts/a.sh", Op: fsnotify.Create},
			EventScriptListModify{Op: ScriptListAdd, Dir: "/scripts", File: "a.sh"}, true,
		},
		{
			fsnotify.Event{Name: "/scripts/a.sh", Op: fsnotify.Chmod},
			EventScriptListModify{Op: ScriptListUpdate, Dir: "/scripts", File: "a.sh"}, true,
		},
		{
			fsnotify.Event{Name: "/scripts/a.sh", Op: fsnotify.Rename},
			EventScriptListModify{Op: ScriptListRemove, Dir: "/scripts", File: "a.sh"}, true,
		},
		{
			fsnotify.Event{Name: "/cron-schedule", Op: fsnotify.Write},
			EventScriptListModify{Op: ScriptListUpdate, Dir: "/", File: "cron-schedule"}, true,
		},
		{fsnotify.Event{Name: "/scripts/notes.txt", Op: fsnotify.Create}, EventScriptListModify{}, false},
		{fsnotify.Event{Name: "/etc/passwd", Op: fsnotify.Write}, EventScriptListModify{}, false},
		{fsnotify.Event{Name: "/scripts/sub/a.sh", Op: fsnotify.Create}, EventScriptListModify{}, false},
	}

	for _, test := range tests {
		got, ok := w.translate(test.evt)
		if ok != test.ok || got != test.want {
			t.Errorf("translate(%v) = %+v, %v; want %+v, %v", test.evt, got, ok, test.want, test.ok)
		}
	}
}

func TestWatcher(t *testing.T) {
	dir := t.TempDir()
	j := mockJournal{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	missing := filepath.Join(dir, "missing")

	w, err := NewWatcher(ctx, []string{dir, missing}, nil, &j)
	if err != nil {
		t.Fatal("failed to create watcher:", err)
	}

	if warnings := j.Find(&EventWarning{}); len(warnings) != 1 {
		t.Errorf("got %d warnings, want 1 for the missing directory", len(warnings))
	}

	if err := os.WriteFile(filepath.Join(dir, "new.sh"), []byte("#!/bin/sh\n"), 0755); err != nil {
		t.Fatal(err)
	}

	select {
	case ev := <-w.Events:
		if ev.File != "new.sh" || ev.Dir != dir {
			t.Errorf("unexpected event %+v", ev)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}
