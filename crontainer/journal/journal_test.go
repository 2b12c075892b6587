package journal

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"git.unix.lgbt/diamondburned/crontainer/crontainer"
	"github.com/pkg/errors"
)

func TestHumanWriter(t *testing.T) {
	var out, errOut bytes.Buffer
	w := NewHumanWriter(&out, &errOut, crontainer.LevelInfo)

	w.Write(&crontainer.EventScriptStarted{Script: "a.sh"})
	w.Write(&crontainer.EventScriptProgress{Script: "a.sh", Percent: 8})
	w.Write(&crontainer.EventWarning{Component: "identity", Error: "oops"})
	w.Write(&crontainer.EventScriptFailed{Script: "a.sh", ExitCode: 3})

	wantOut := "" +
		"[INFORMATIONAL] a.sh: 8% complete\n" +
		"[WARN] identity: oops\n"
	if out.String() != wantOut {
		t.Errorf("stdout = %q, want %q", out.String(), wantOut)
	}

	wantErr := "[ERROR] a.sh failed with exit code 3\n"
	if errOut.String() != wantErr {
		t.Errorf("stderr = %q, want %q", errOut.String(), wantErr)
	}
}

func TestHumanWriterVerbose(t *testing.T) {
	var out bytes.Buffer
	w := NewHumanWriter(&out, &out, crontainer.LevelDebug)

	w.Write(&crontainer.EventScriptStarted{Script: "a.sh"})
	w.Write(&crontainer.EventScriptFinished{Script: "a.sh"})

	want := "[VERBOSE] starting a.sh\n[VERBOSE] finished a.sh\n"
	if out.String() != want {
		t.Errorf("output = %q, want %q", out.String(), want)
	}
}

func TestWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	if err := w.Write(&crontainer.EventProcessSpawned{File: "crond", PID: 42}); err != nil {
		t.Fatal("failed to write:", err)
	}

	var ev struct {
		Type  string `json:"type"`
		Level string `json:"level"`
		Data  struct {
			File string `json:"file"`
			PID  int    `json:"pid"`
		} `json:"data"`
	}

	line := buf.String()
	if !strings.HasSuffix(line, "\n") || strings.Count(line, "\n") != 1 {
		t.Fatalf("expected a single line, got %q", line)
	}

	if err := json.Unmarshal(buf.Bytes(), &ev); err != nil {
		t.Fatal("failed to decode:", err)
	}

	if ev.Type != "process spawned" || ev.Level != "INFORMATIONAL" || ev.Data.File != "crond" || ev.Data.PID != 42 {
		t.Errorf("unexpected event %+v", ev)
	}
}

func TestFileLockJournaler(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal", "journal.json")

	j, err := NewFileLockJournaler(path)
	if err != nil {
		t.Fatal("failed to create journal:", err)
	}

	if _, err := NewFileLockJournaler(path); !errors.Is(err, ErrLockedElsewhere) {
		t.Errorf("second journal error = %v, want ErrLockedElsewhere", err)
	}

	j.Write(&crontainer.EventInitComplete{Scripts: 1})
	j.Write(&crontainer.EventInitComplete{Scripts: 2})

	if err := j.Close(); err != nil {
		t.Fatal("failed to close:", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal("failed to read journal:", err)
	}
	if n := strings.Count(string(b), "\n"); n != 2 {
		t.Errorf("journal has %d lines, want 2", n)
	}

	// The lock is released after Close.
	j, err = NewFileLockJournaler(path)
	if err != nil {
		t.Fatal("failed to reacquire journal:", err)
	}
	j.Close()
}

func TestMultiWriter(t *testing.T) {
	var a, b bytes.Buffer

	w := MultiWriter(NewWriter(&a), NewWriter(&b))
	w.Write(&crontainer.EventShutdownRequested{})

	for _, buf := range []*bytes.Buffer{&a, &b} {
		if !strings.Contains(buf.String(), `"type":"shutdown requested"`) {
			t.Errorf("writer missed the event: %q", buf.String())
		}
	}
}
