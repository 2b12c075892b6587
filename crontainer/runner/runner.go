// Package runner runs a single script and reports its progress. It backs the
// run-script command, which the dispatcher and crond invoke once per script.
package runner

import (
	"time"

	"git.unix.lgbt/diamondburned/crontainer/crontainer"
	"git.unix.lgbt/diamondburned/crontainer/crontainer/exec"
	"git.unix.lgbt/diamondburned/crontainer/crontainer/scripts"
)

// Heartbeat intervals.
const (
	VerboseHeartbeat = 1 * time.Second
	DefaultHeartbeat = 5 * time.Second
)

// Runner runs scripts. The zero value is not usable; use New.
type Runner struct {
	Level   crontainer.Level
	Journal crontainer.Journaler

	// Heartbeat overrides the poll interval derived from Level.
	Heartbeat time.Duration

	// The fields below are overridable for testing.
	StartProcess func(argv []string) (exec.Process, error)
	Exec         func(argv []string) error
	Sleep        func(time.Duration)
}

// New creates a runner that starts real processes.
func New(level crontainer.Level, j crontainer.Journaler) *Runner {
	return &Runner{
		Level:   level,
		Journal: j,
		StartProcess: func(argv []string) (exec.Process, error) {
			// Output is discarded: only the progress lines are shown.
			return exec.StartProcess(argv, exec.Options{})
		},
		Exec: func(argv []string) error {
			return exec.Exec(argv, nil)
		},
		Sleep: time.Sleep,
	}
}

func (r *Runner) heartbeat() time.Duration {
	switch {
	case r.Heartbeat > 0:
		return r.Heartbeat
	case r.Level == crontainer.LevelVerbose:
		return VerboseHeartbeat
	default:
		return DefaultHeartbeat
	}
}

// Run runs the script and returns its exit code unchanged. At DEBUG level,
// the current process is replaced by the script and Run only returns if that
// fails.
func (r *Runner) Run(script scripts.Script) int {
	argv := []string{script.Path}

	if r.Level >= crontainer.LevelDebug {
		err := r.Exec(argv)
		r.Journal.Write(&crontainer.EventScriptFailed{
			Script:   script.Name,
			ExitCode: exec.StartCode(err),
			Error:    err.Error(),
		})
		return exec.StartCode(err)
	}

	verbose := r.Level == crontainer.LevelVerbose

	if verbose {
		r.Journal.Write(&crontainer.EventScriptStarted{
			Script: script.Name,
			Path:   script.Path,
		})
	}

	proc, err := r.StartProcess(argv)
	if err != nil {
		code := exec.StartCode(err)
		r.Journal.Write(&crontainer.EventScriptFailed{
			Script:   script.Name,
			ExitCode: code,
			Error:    err.Error(),
		})
		return code
	}

	heartbeat := r.heartbeat()
	progress := NewProgress(heartbeat)

	for {
		r.Sleep(heartbeat)
		if !proc.Alive() {
			break
		}

		r.Journal.Write(&crontainer.EventScriptProgress{
			Script:  script.Name,
			Percent: progress.Tick(),
		})
	}

	status := proc.Wait()
	if status.Code != 0 {
		code := status.Code
		// Unknown statuses still have to fail the caller.
		if code < 0 {
			code = 1
		}

		ev := &crontainer.EventScriptFailed{
			Script:   script.Name,
			ExitCode: code,
		}
		if status.Error != nil {
			ev.Error = status.Error.Error()
		}
		r.Journal.Write(ev)

		return code
	}

	r.Journal.Write(&crontainer.EventScriptProgress{
		Script:  script.Name,
		Percent: progress.Complete(),
	})

	if verbose {
		r.Journal.Write(&crontainer.EventScriptFinished{
			Script: script.Name,
		})
	}

	return 0
}
