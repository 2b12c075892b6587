package runner

import (
	"os"
	"reflect"
	"sync"
	"testing"
	"time"

	"git.unix.lgbt/diamondburned/crontainer/crontainer"
	"git.unix.lgbt/diamondburned/crontainer/crontainer/exec"
	"git.unix.lgbt/diamondburned/crontainer/crontainer/scripts"
	"github.com/pkg/errors"
)

// pollProcess is a fake process that stays alive for a fixed number of
// liveness polls, then exits with code.
type pollProcess struct {
	polls int
	code  int
}

func (p *pollProcess) PID() int               { return 1 }
func (p *pollProcess) Signal(os.Signal) error { return nil }
func (p *pollProcess) Kill() error            { return nil }

func (p *pollProcess) Alive() bool {
	if p.polls == 0 {
		return false
	}
	p.polls--
	return true
}

func (p *pollProcess) Wait() exec.ExitStatus {
	return exec.ExitStatus{PID: 1, Code: p.code}
}

type memJournal struct {
	mutex  sync.Mutex
	events []crontainer.Event
}

func (j *memJournal) Write(ev crontainer.Event) error {
	j.mutex.Lock()
	defer j.mutex.Unlock()

	j.events = append(j.events, ev)
	return nil
}

func newTestRunner(level crontainer.Level, proc exec.Process) (*Runner, *memJournal, *[]time.Duration) {
	var j memJournal
	var sleeps []time.Duration

	r := New(level, &j)
	r.StartProcess = func(argv []string) (exec.Process, error) { return proc, nil }
	r.Exec = func(argv []string) error { return errors.New("exec not expected") }
	r.Sleep = func(d time.Duration) { sleeps = append(sleeps, d) }

	return r, &j, &sleeps
}

var script = scripts.Script{Name: "backup.sh", Path: "/scripts/backup.sh"}

func TestRunner(t *testing.T) {
	t.Run("informational success", func(t *testing.T) {
		r, j, sleeps := newTestRunner(crontainer.LevelInfo, &pollProcess{polls: 2})

		if code := r.Run(script); code != 0 {
			t.Fatalf("exit code = %d, want 0", code)
		}

		want := []crontainer.Event{
			&crontainer.EventScriptProgress{Script: "backup.sh", Percent: 8},
			&crontainer.EventScriptProgress{Script: "backup.sh", Percent: 16},
			&crontainer.EventScriptProgress{Script: "backup.sh", Percent: 100},
		}
		if !reflect.DeepEqual(j.events, want) {
			t.Errorf("events = %v, want %v", j.events, want)
		}

		for _, d := range *sleeps {
			if d != DefaultHeartbeat {
				t.Errorf("slept %v, want %v", d, DefaultHeartbeat)
			}
		}
	})

	t.Run("verbose success", func(t *testing.T) {
		r, j, sleeps := newTestRunner(crontainer.LevelVerbose, &pollProcess{polls: 1})

		if code := r.Run(script); code != 0 {
			t.Fatalf("exit code = %d, want 0", code)
		}

		want := []crontainer.Event{
			&crontainer.EventScriptStarted{Script: "backup.sh", Path: "/scripts/backup.sh"},
			&crontainer.EventScriptProgress{Script: "backup.sh", Percent: 1},
			&crontainer.EventScriptProgress{Script: "backup.sh", Percent: 100},
			&crontainer.EventScriptFinished{Script: "backup.sh"},
		}
		if !reflect.DeepEqual(j.events, want) {
			t.Errorf("events = %v, want %v", j.events, want)
		}

		if (*sleeps)[0] != VerboseHeartbeat {
			t.Errorf("slept %v, want %v", (*sleeps)[0], VerboseHeartbeat)
		}
	})

	t.Run("failure keeps exit code", func(t *testing.T) {
		r, j, _ := newTestRunner(crontainer.LevelError, &pollProcess{polls: 1, code: 3})

		if code := r.Run(script); code != 3 {
			t.Fatalf("exit code = %d, want 3", code)
		}

		want := []crontainer.Event{
			&crontainer.EventScriptProgress{Script: "backup.sh", Percent: 8},
			&crontainer.EventScriptFailed{Script: "backup.sh", ExitCode: 3},
		}
		if !reflect.DeepEqual(j.events, want) {
			t.Errorf("events = %v, want %v", j.events, want)
		}
	})

	t.Run("unknown status reports the returned code", func(t *testing.T) {
		r, j, _ := newTestRunner(crontainer.LevelInfo, &pollProcess{code: -1})

		if code := r.Run(script); code != 1 {
			t.Fatalf("exit code = %d, want 1", code)
		}

		want := []crontainer.Event{
			&crontainer.EventScriptFailed{Script: "backup.sh", ExitCode: 1},
		}
		if !reflect.DeepEqual(j.events, want) {
			t.Errorf("events = %v, want %v", j.events, want)
		}
	})

	t.Run("start failure", func(t *testing.T) {
		r, j, _ := newTestRunner(crontainer.LevelInfo, nil)
		r.StartProcess = func(argv []string) (exec.Process, error) {
			return nil, &os.PathError{Op: "fork/exec", Path: argv[0], Err: os.ErrNotExist}
		}

		if code := r.Run(script); code != 127 {
			t.Fatalf("exit code = %d, want 127", code)
		}
		if len(j.events) != 1 || j.events[0].Type() != (&crontainer.EventScriptFailed{}).Type() {
			t.Errorf("events = %v", j.events)
		}
	})

	t.Run("debug execs the script", func(t *testing.T) {
		r, _, _ := newTestRunner(crontainer.LevelDebug, nil)

		var execed []string
		r.StartProcess = func(argv []string) (exec.Process, error) {
			t.Error("debug level must not start a background process")
			return nil, errors.New("unexpected")
		}
		r.Exec = func(argv []string) error {
			execed = argv
			return &os.PathError{Op: "exec", Path: argv[0], Err: os.ErrPermission}
		}

		if code := r.Run(script); code != 126 {
			t.Errorf("exit code = %d, want 126", code)
		}
		if !reflect.DeepEqual(execed, []string{"/scripts/backup.sh"}) {
			t.Errorf("exec argv = %q", execed)
		}
	})

	t.Run("real process", func(t *testing.T) {
		var j memJournal

		r := New(crontainer.LevelInfo, &j)
		r.Heartbeat = time.Millisecond

		s := scripts.Script{Name: "sh", Path: "/bin/sh"}
		r.StartProcess = func(argv []string) (exec.Process, error) {
			return exec.StartProcess([]string{argv[0], "-c", "exit 7"}, exec.Options{})
		}

		if code := r.Run(s); code != 7 {
			t.Errorf("exit code = %d, want 7", code)
		}
	})
}

func TestProgress(t *testing.T) {
	t.Run("clamped while running", func(t *testing.T) {
		p := NewProgress(DefaultHeartbeat)

		last := 0
		for i := 0; i < 100; i++ {
			percent := p.Tick()
			if percent < last {
				t.Fatalf("progress decreased from %d to %d", last, percent)
			}
			if percent > MaxRunningPercent {
				t.Fatalf("progress %d exceeds %d while running", percent, MaxRunningPercent)
			}
			last = percent
		}

		if last != MaxRunningPercent {
			t.Errorf("progress settled at %d, want %d", last, MaxRunningPercent)
		}
		if p.Complete() != 100 {
			t.Error("Complete did not return 100")
		}
	})

	t.Run("steps", func(t *testing.T) {
		tests := []struct {
			heartbeat time.Duration
			step      int
		}{
			{time.Second, 1},
			{5 * time.Second, 8},
			{30 * time.Second, 50},
			{2 * time.Minute, 100},
			{time.Millisecond, 1},
		}

		for _, test := range tests {
			if got := NewProgress(test.heartbeat).Tick(); got != min(test.step, MaxRunningPercent) {
				t.Errorf("first tick with %v heartbeat = %d, want %d", test.heartbeat, got, test.step)
			}
		}
	})
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
