package crontainer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"git.unix.lgbt/diamondburned/crontainer/crontainer/crontab"
	"git.unix.lgbt/diamondburned/crontainer/crontainer/exec"
	"git.unix.lgbt/diamondburned/crontainer/crontainer/identity"
	"git.unix.lgbt/diamondburned/crontainer/crontainer/scripts"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// ExitFatal is the exit code for validation and identity errors.
const ExitFatal = 1

// Dispatcher drives a single entrypoint run: it resolves the identity, then
// runs the scripts, installs them into crond, or execs a command.
type Dispatcher struct {
	Config    *Config
	Accounts  identity.Accounts
	Scheduler crontab.Scheduler
	Journal   Journaler

	// The fields below are overridable for testing.
	StartProcess func(argv []string, opts exec.Options) (exec.Process, error)
	Exec         func(argv []string, env []string) error
	Environ      func() []string
	Now          func() time.Time
	Kernel       func() string
}

// NewDispatcher creates a dispatcher that manages real accounts and
// processes.
func NewDispatcher(cfg *Config, j Journaler) *Dispatcher {
	return &Dispatcher{
		Config:    cfg,
		Accounts:  identity.NewSystem(),
		Scheduler: crontab.NewCrond(),
		Journal:   j,

		StartProcess: exec.StartProcess,
		Exec:         exec.Exec,
		Environ:      os.Environ,
		Now:          time.Now,
		Kernel:       uname,
	}
}

// Run runs the dispatcher until the chosen mode finishes and returns the exit
// code. A non-nil error is fatal and should be reported before exiting with
// the returned code. In cron mode, Run blocks until ctx is canceled.
func (d *Dispatcher) Run(ctx context.Context) (int, error) {
	cfg := d.Config
	mode := SelectMode(cfg.Cron, cfg.Args)

	for _, err := range cfg.Warnings {
		warn(d.Journal, "config", err)
	}

	if err := d.startupSummary(mode); err != nil {
		return ExitFatal, err
	}

	res, err := identity.Resolve(d.Accounts, cfg.Identity)
	if err != nil {
		return ExitFatal, err
	}

	if res.Warning != nil {
		warn(d.Journal, "identity", res.Warning)
	}

	d.Journal.Write(&EventIdentityResolved{
		Username:     res.Username,
		Groupname:    res.Groupname,
		UID:          res.UID,
		GID:          res.GID,
		UserCreated:  res.UserCreated,
		GroupCreated: res.GroupCreated,
	})

	switch mode {
	case ModeCommand:
		return d.runCommand(res.Identity)
	case ModeCron:
		return d.runCron(ctx, res.Identity)
	default:
		return d.runInit(res.Identity)
	}
}

func (d *Dispatcher) startupSummary(mode Mode) error {
	cfg := d.Config

	found, err := scripts.Discover(cfg.ScriptDirs)
	if err != nil {
		return err
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		warn(d.Journal, "config", errors.Wrapf(err, "unknown TZ %q, using UTC", cfg.Timezone))
		loc = time.UTC
	}

	ev := &EventStartup{
		Kernel:   d.Kernel(),
		Mode:     mode,
		UID:      cfg.Identity.UID,
		GID:      cfg.Identity.GID,
		Timezone: cfg.Timezone,
		Time:     d.Now().In(loc).Format("2006-01-02 15:04:05 MST"),
		LogLevel: cfg.Level.String(),
		Dirs:     found.Counts,
		Total:    found.Total(),
	}

	if mode == ModeCron {
		ev.Schedule = crontab.Describe(cfg.ScheduleFile, cfg.CronSchedule)
	}

	d.Journal.Write(ev)
	return nil
}

// asUser prefixes argv with the privilege switch unless id is root.
func (d *Dispatcher) asUser(id identity.Identity, argv []string) []string {
	if id.IsSuperuser() {
		return argv
	}

	switched := make([]string, 0, len(argv)+2)
	switched = append(switched, d.Config.PrivilegeSwitch, id.Username)
	switched = append(switched, argv...)
	return switched
}

// runnerEnv is the environment passed to the runner: the current environment
// with LOG_LEVEL replaced by the resolved level.
func (d *Dispatcher) runnerEnv() []string {
	env := d.Environ()
	out := make([]string, 0, len(env)+1)

	for _, kv := range env {
		if !strings.HasPrefix(kv, "LOG_LEVEL=") {
			out = append(out, kv)
		}
	}

	return append(out, "LOG_LEVEL="+d.Config.Level.String())
}

func (d *Dispatcher) runInit(id identity.Identity) (int, error) {
	found, err := scripts.Discover(d.Config.ScriptDirs)
	if err != nil {
		return ExitFatal, err
	}

	if found.Empty() {
		d.Journal.Write(&EventNoScripts{Mode: ModeInit, Dirs: d.Config.ScriptDirs})
		return 0, nil
	}

	env := d.runnerEnv()
	opts := exec.Options{Env: env, Stdout: exec.Inherit.Stdout, Stderr: exec.Inherit.Stderr}

	for i, script := range found.Scripts {
		d.Journal.Write(&EventScriptRunning{
			Script: script.Name,
			Path:   script.Path,
			Index:  i + 1,
			Total:  found.Total(),
			User:   id.Username,
		})

		argv := d.asUser(id, []string{d.Config.RunnerPath, script.Path, script.Name})

		code := d.runScript(argv, opts)
		if code != 0 {
			d.Journal.Write(&EventInitAborted{
				Script:   script.Name,
				ExitCode: code,
				Skipped:  found.Total() - i - 1,
			})
			return code, nil
		}
	}

	d.Journal.Write(&EventInitComplete{Scripts: found.Total()})
	return 0, nil
}

func (d *Dispatcher) runScript(argv []string, opts exec.Options) int {
	proc, err := d.StartProcess(argv, opts)
	if err != nil {
		warn(d.Journal, "init", errors.Wrapf(err, "failed to start %s", argv[0]))
		return exec.StartCode(err)
	}

	status := proc.Wait()
	if status.Error != nil {
		warn(d.Journal, "init", errors.Wrapf(status.Error, "failed to wait for %s", argv[0]))
	}

	if status.Code < 0 {
		return ExitFatal
	}
	return status.Code
}

func (d *Dispatcher) runCommand(id identity.Identity) (int, error) {
	argv := d.asUser(id, d.Config.Args)

	d.Journal.Write(&EventCommandExec{Argv: d.Config.Args, User: id.Username})

	err := d.Exec(argv, d.Environ())
	// Exec only returns on failure.
	if err == nil {
		err = fmt.Errorf("exec %q returned", argv[0])
	}

	return exec.StartCode(err), err
}

func (d *Dispatcher) generator() crontab.Generator {
	return crontab.Generator{
		Schedule:        d.Config.CronSchedule,
		RunnerPath:      d.Config.RunnerPath,
		PrivilegeSwitch: d.Config.PrivilegeSwitch,
		OutputTarget:    d.Config.OutputTarget,
		Level:           d.Config.Level.String(),
	}
}

// installCrontab builds the crontab from a fresh scan and writes it.
func (d *Dispatcher) installCrontab(id identity.Identity) (*crontab.Crontab, error) {
	cfg := d.Config

	found, err := scripts.Discover(cfg.ScriptDirs)
	if err != nil {
		return nil, err
	}

	tab, err := crontab.Build(cfg.ScheduleFile, d.generator(), id, found.Scripts)
	if err != nil {
		return nil, err
	}

	if err := crontab.WriteFile(cfg.CrontabPath, tab.Data); err != nil {
		return nil, err
	}

	d.Journal.Write(&EventCrontabWritten{
		Path:    cfg.CrontabPath,
		Source:  string(tab.Source),
		Entries: tab.Entries(),
	})

	return tab, nil
}

func (d *Dispatcher) runCron(ctx context.Context, id identity.Identity) (int, error) {
	cfg := d.Config

	tab, err := d.installCrontab(id)
	if err != nil {
		return ExitFatal, err
	}

	if tab.Empty() {
		if tab.Source == crontab.SourceGenerated {
			d.Journal.Write(&EventNoScripts{Mode: ModeCron, Dirs: cfg.ScriptDirs})
		}
		d.Journal.Write(&EventCrontabEmpty{Path: cfg.CrontabPath})
		return 0, nil
	}

	crontabDir := filepath.Dir(cfg.CrontabPath)

	daemon, err := StartDaemon("crond", func() (exec.Process, error) {
		return d.Scheduler.Start(crontabDir)
	}, d.Journal)
	if err != nil {
		return ExitFatal, err
	}

	if !sleepContext(ctx, cfg.StartupGrace) {
		return d.shutdown(daemon)
	}

	if !daemon.Alive() {
		d.Journal.Write(&EventSchedulerDead{File: "crond", PID: daemon.PID()})
	}

	var changes <-chan EventScriptListModify
	if cfg.CronWatch {
		w, err := NewWatcher(ctx, cfg.ScriptDirs, []string{cfg.ScheduleFile}, d.Journal)
		if err != nil {
			warn(d.Journal, "watcher", err)
		} else {
			changes = w.Events
		}
	}

	d.Journal.Write(&EventSchedulerIdle{Crontab: cfg.CrontabPath, Watch: changes != nil})

	tick := time.NewTicker(cfg.SupervisePeriod)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return d.shutdown(daemon)

		case <-tick.C:
			// Nothing to do; the daemon is not restarted if it died.

		case ev, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}

			d.Journal.Write(&ev)

			if _, err := d.installCrontab(id); err != nil {
				warn(d.Journal, "watcher", errors.Wrap(err, "failed to regenerate crontab"))
			}
		}
	}
}

func (d *Dispatcher) shutdown(daemon *Daemon) (int, error) {
	d.Journal.Write(&EventShutdownRequested{})

	if err := daemon.Stop(); err != nil {
		warn(d.Journal, "crond", err)
	}

	return 0, nil
}

// sleepContext sleeps for d or until ctx is canceled. It returns false if ctx
// was canceled.
func sleepContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func uname() string {
	var u unix.Utsname
	if err := unix.Uname(&u); err != nil {
		return "unknown"
	}

	return fmt.Sprintf("%s %s %s",
		unix.ByteSliceToString(u.Sysname[:]),
		unix.ByteSliceToString(u.Release[:]),
		unix.ByteSliceToString(u.Machine[:]),
	)
}
