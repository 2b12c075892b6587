package crontainer

import (
	"fmt"
	"strings"

	"git.unix.lgbt/diamondburned/crontainer/crontainer/exec"
	"git.unix.lgbt/diamondburned/crontainer/crontainer/scripts"
)

// eventType describes an event type.
type eventType = string

const (
	eventWarning           eventType = "warning"
	eventFatal             eventType = "fatal"
	eventStartup           eventType = "startup"
	eventIdentityResolved  eventType = "identity resolved"
	eventNoScripts         eventType = "no scripts"
	eventScriptRunning     eventType = "script running"
	eventScriptStarted     eventType = "script started"
	eventScriptProgress    eventType = "script progress"
	eventScriptFinished    eventType = "script finished"
	eventScriptFailed      eventType = "script failed"
	eventInitComplete      eventType = "init complete"
	eventInitAborted       eventType = "init aborted"
	eventCommandExec       eventType = "command exec"
	eventCrontabWritten    eventType = "crontab written"
	eventCrontabEmpty      eventType = "crontab empty"
	eventProcessSpawned    eventType = "process spawned"
	eventProcessExited     eventType = "process exited"
	eventSchedulerDead     eventType = "scheduler dead"
	eventScriptListModify  eventType = "script list modified"
	eventSchedulerIdle     eventType = "scheduler idle"
	eventShutdownRequested eventType = "shutdown requested"
)

// Event is an interface describing known events. Every event knows the level
// it is logged at and how to render itself as a single human-readable line.
type Event interface {
	Type() string
	Level() Level
	String() string
	event()
}

// EventWarning is emitted when a non-fatal error occurs.
type EventWarning struct {
	Component string `json:"component"`
	Error     string `json:"error"`
}

func (ev *EventWarning) Type() string   { return eventWarning }
func (ev *EventWarning) Level() Level   { return LevelWarn }
func (ev *EventWarning) String() string { return ev.Component + ": " + ev.Error }
func (ev *EventWarning) event()         {}

// EventFatal is emitted right before the process terminates because of an
// unrecoverable error.
type EventFatal struct {
	Error string `json:"error"`
}

func (ev *EventFatal) Type() string   { return eventFatal }
func (ev *EventFatal) Level() Level   { return LevelError }
func (ev *EventFatal) String() string { return "fatal: " + ev.Error }
func (ev *EventFatal) event()         {}

// EventStartup is the startup summary printed once before the identity is
// resolved.
type EventStartup struct {
	Kernel   string             `json:"kernel"`
	Mode     Mode               `json:"mode"`
	UID      int                `json:"uid"`
	GID      int                `json:"gid"`
	Timezone string             `json:"timezone"`
	Time     string             `json:"time"`
	LogLevel string             `json:"log_level"`
	Dirs     []scripts.DirCount `json:"dirs"`
	Total    int                `json:"total"`
	// Schedule is only set in cron mode.
	Schedule string `json:"schedule,omitempty"`
}

func (ev *EventStartup) Type() string { return eventStartup }
func (ev *EventStartup) Level() Level { return LevelInfo }
func (ev *EventStartup) event()       {}

func (ev *EventStartup) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "starting up\n")
	fmt.Fprintf(&b, "  kernel:    %s\n", ev.Kernel)
	fmt.Fprintf(&b, "  mode:      %s\n", ev.Mode)
	fmt.Fprintf(&b, "  PUID/PGID: %d/%d\n", ev.UID, ev.GID)
	fmt.Fprintf(&b, "  timezone:  %s\n", ev.Timezone)
	fmt.Fprintf(&b, "  time:      %s\n", ev.Time)
	fmt.Fprintf(&b, "  log level: %s\n", ev.LogLevel)
	for _, dir := range ev.Dirs {
		if dir.Missing {
			fmt.Fprintf(&b, "  %s: not present\n", dir.Dir)
			continue
		}
		fmt.Fprintf(&b, "  %s: %d script(s)\n", dir.Dir, dir.Scripts)
	}
	fmt.Fprintf(&b, "  total:     %d script(s)", ev.Total)
	if ev.Schedule != "" {
		fmt.Fprintf(&b, "\n  schedule:  %s", ev.Schedule)
	}
	return b.String()
}

// EventIdentityResolved is emitted once the runtime user and group exist.
type EventIdentityResolved struct {
	Username     string `json:"username"`
	Groupname    string `json:"groupname"`
	UID          int    `json:"uid"`
	GID          int    `json:"gid"`
	UserCreated  bool   `json:"user_created,omitempty"`
	GroupCreated bool   `json:"group_created,omitempty"`
}

func (ev *EventIdentityResolved) Type() string { return eventIdentityResolved }
func (ev *EventIdentityResolved) Level() Level { return LevelInfo }
func (ev *EventIdentityResolved) event()       {}

func (ev *EventIdentityResolved) String() string {
	verb := func(created bool) string {
		if created {
			return "created"
		}
		return "using"
	}
	return fmt.Sprintf("%s group %s (%d), %s user %s (%d)",
		verb(ev.GroupCreated), ev.Groupname, ev.GID,
		verb(ev.UserCreated), ev.Username, ev.UID)
}

// EventNoScripts is emitted when discovery finds nothing to run or schedule.
type EventNoScripts struct {
	Mode Mode     `json:"mode"`
	Dirs []string `json:"dirs"`
}

func (ev *EventNoScripts) Type() string { return eventNoScripts }
func (ev *EventNoScripts) Level() Level { return LevelWarn }
func (ev *EventNoScripts) event()       {}

func (ev *EventNoScripts) String() string {
	return fmt.Sprintf("no executable *.sh scripts found in %s, nothing to do in %s mode",
		strings.Join(ev.Dirs, ", "), ev.Mode)
}

// EventScriptRunning is emitted by the dispatcher before it hands a script to
// the runner in init mode.
type EventScriptRunning struct {
	Script string `json:"script"`
	Path   string `json:"path"`
	Index  int    `json:"index"`
	Total  int    `json:"total"`
	User   string `json:"user"`
}

func (ev *EventScriptRunning) Type() string { return eventScriptRunning }
func (ev *EventScriptRunning) Level() Level { return LevelInfo }
func (ev *EventScriptRunning) event()       {}

func (ev *EventScriptRunning) String() string {
	return fmt.Sprintf("running %s (%d/%d) as %s", ev.Path, ev.Index, ev.Total, ev.User)
}

// EventScriptStarted is emitted by the runner when it starts a script.
type EventScriptStarted struct {
	Script string `json:"script"`
	Path   string `json:"path"`
}

func (ev *EventScriptStarted) Type() string   { return eventScriptStarted }
func (ev *EventScriptStarted) Level() Level   { return LevelVerbose }
func (ev *EventScriptStarted) String() string { return "starting " + ev.Script }
func (ev *EventScriptStarted) event()         {}

// EventScriptProgress is the runner's heartbeat. Percent is an estimate, not
// a measurement.
type EventScriptProgress struct {
	Script  string `json:"script"`
	Percent int    `json:"percent"`
}

func (ev *EventScriptProgress) Type() string { return eventScriptProgress }
func (ev *EventScriptProgress) Level() Level { return LevelInfo }
func (ev *EventScriptProgress) event()       {}

func (ev *EventScriptProgress) String() string {
	return fmt.Sprintf("%s: %d%% complete", ev.Script, ev.Percent)
}

// EventScriptFinished is emitted by the runner after a script exits 0.
type EventScriptFinished struct {
	Script string `json:"script"`
}

func (ev *EventScriptFinished) Type() string   { return eventScriptFinished }
func (ev *EventScriptFinished) Level() Level   { return LevelVerbose }
func (ev *EventScriptFinished) String() string { return "finished " + ev.Script }
func (ev *EventScriptFinished) event()         {}

// EventScriptFailed is emitted by the runner when a script exits non-zero or
// cannot be started at all.
type EventScriptFailed struct {
	Script   string `json:"script"`
	ExitCode int    `json:"exit_code"`
	Error    string `json:"error,omitempty"`
}

func (ev *EventScriptFailed) Type() string { return eventScriptFailed }
func (ev *EventScriptFailed) Level() Level { return LevelError }
func (ev *EventScriptFailed) event()       {}

func (ev *EventScriptFailed) String() string {
	if ev.Error != "" {
		return fmt.Sprintf("%s failed with exit code %d: %s", ev.Script, ev.ExitCode, ev.Error)
	}
	return fmt.Sprintf("%s failed with exit code %d", ev.Script, ev.ExitCode)
}

// EventInitComplete is emitted once every init script has succeeded.
type EventInitComplete struct {
	Scripts int `json:"scripts"`
}

func (ev *EventInitComplete) Type() string { return eventInitComplete }
func (ev *EventInitComplete) Level() Level { return LevelInfo }
func (ev *EventInitComplete) event()       {}

func (ev *EventInitComplete) String() string {
	return fmt.Sprintf("all %d script(s) completed successfully", ev.Scripts)
}

// EventInitAborted is emitted when a script fails in init mode. No further
// scripts are run.
type EventInitAborted struct {
	Script   string `json:"script"`
	ExitCode int    `json:"exit_code"`
	Skipped  int    `json:"skipped"`
}

func (ev *EventInitAborted) Type() string { return eventInitAborted }
func (ev *EventInitAborted) Level() Level { return LevelError }
func (ev *EventInitAborted) event()       {}

func (ev *EventInitAborted) String() string {
	return fmt.Sprintf("%s exited with code %d, aborting (%d script(s) not run)",
		ev.Script, ev.ExitCode, ev.Skipped)
}

// EventCommandExec is emitted right before the process is replaced in
// command mode.
type EventCommandExec struct {
	Argv []string `json:"argv"`
	User string   `json:"user"`
}

func (ev *EventCommandExec) Type() string { return eventCommandExec }
func (ev *EventCommandExec) Level() Level { return LevelInfo }
func (ev *EventCommandExec) event()       {}

func (ev *EventCommandExec) String() string {
	return fmt.Sprintf("executing %q as %s", ev.Argv, ev.User)
}

// EventCrontabWritten is emitted after the crontab has been installed.
type EventCrontabWritten struct {
	Path    string `json:"path"`
	Source  string `json:"source"`
	Entries int    `json:"entries"`
}

func (ev *EventCrontabWritten) Type() string { return eventCrontabWritten }
func (ev *EventCrontabWritten) Level() Level { return LevelInfo }
func (ev *EventCrontabWritten) event()       {}

func (ev *EventCrontabWritten) String() string {
	return fmt.Sprintf("installed %d %s cron entr(ies) into %s", ev.Entries, ev.Source, ev.Path)
}

// EventCrontabEmpty is emitted when the crontab has nothing to schedule.
type EventCrontabEmpty struct {
	Path string `json:"path"`
}

func (ev *EventCrontabEmpty) Type() string { return eventCrontabEmpty }
func (ev *EventCrontabEmpty) Level() Level { return LevelWarn }
func (ev *EventCrontabEmpty) event()       {}

func (ev *EventCrontabEmpty) String() string {
	return "crontab " + ev.Path + " is empty, not starting the scheduler"
}

// EventProcessSpawned is emitted when a supervised process has been started.
type EventProcessSpawned struct {
	File string `json:"file"`
	PID  int    `json:"pid"`
}

func (ev *EventProcessSpawned) Type() string { return eventProcessSpawned }
func (ev *EventProcessSpawned) Level() Level { return LevelInfo }
func (ev *EventProcessSpawned) event()       {}

func (ev *EventProcessSpawned) String() string {
	return fmt.Sprintf("started %s (pid %d)", ev.File, ev.PID)
}

// EventProcessExited is emitted when a supervised process has been stopped
// for any reason.
type EventProcessExited struct {
	PID      int    `json:"pid"`
	File     string `json:"file"`
	Error    string `json:"error,omitempty"`
	ExitCode int    `json:"exit_code"` // 128+signal if signaled, -1 if unknown
}

// IsGraceful returns true if the process exited on its own or on SIGINT, as
// opposed to being SIGKILLed or lost.
func (ev EventProcessExited) IsGraceful() bool {
	return ev.ExitCode >= 0 && ev.ExitCode != exec.KilledCode
}

func (ev *EventProcessExited) Type() string { return eventProcessExited }
func (ev *EventProcessExited) event()       {}

func (ev *EventProcessExited) Level() Level {
	if !ev.IsGraceful() {
		return LevelWarn
	}
	return LevelInfo
}

func (ev *EventProcessExited) String() string {
	if !ev.IsGraceful() {
		return fmt.Sprintf("%s (pid %d) was killed (exit code %d)", ev.File, ev.PID, ev.ExitCode)
	}
	if ev.Error != "" {
		return fmt.Sprintf("%s (pid %d) exited with code %d: %s", ev.File, ev.PID, ev.ExitCode, ev.Error)
	}
	return fmt.Sprintf("%s (pid %d) exited with code %d", ev.File, ev.PID, ev.ExitCode)
}

// EventSchedulerDead is emitted when the scheduler daemon is found dead
// during the liveness check after startup.
type EventSchedulerDead struct {
	File string `json:"file"`
	PID  int    `json:"pid"`
}

func (ev *EventSchedulerDead) Type() string { return eventSchedulerDead }
func (ev *EventSchedulerDead) Level() Level { return LevelWarn }
func (ev *EventSchedulerDead) event()       {}

func (ev *EventSchedulerDead) String() string {
	return fmt.Sprintf("%s (pid %d) is not running after startup, scheduled jobs will not run", ev.File, ev.PID)
}

// EventSchedulerIdle is emitted once the dispatcher settles into the
// supervision loop.
type EventSchedulerIdle struct {
	Crontab string `json:"crontab"`
	Watch   bool   `json:"watch"`
}

func (ev *EventSchedulerIdle) Type() string { return eventSchedulerIdle }
func (ev *EventSchedulerIdle) Level() Level { return LevelInfo }
func (ev *EventSchedulerIdle) event()       {}

func (ev *EventSchedulerIdle) String() string {
	if ev.Watch {
		return "scheduler running, watching script directories for changes"
	}
	return "scheduler running"
}

// EventScriptListModify is emitted when the script directories change while
// watching is enabled.
type EventScriptListModify struct {
	Op   ScriptListModifyOp `json:"op"`
	Dir  string             `json:"dir"`
	File string             `json:"file"`
}

// ScriptListModifyOp contains possible operations that modify the script
// list, often from changes in the watched directories.
type ScriptListModifyOp string

const (
	ScriptListAdd    ScriptListModifyOp = "add"
	ScriptListRemove ScriptListModifyOp = "remove"
	ScriptListUpdate ScriptListModifyOp = "update"
)

func (ev *EventScriptListModify) Type() string { return eventScriptListModify }
func (ev *EventScriptListModify) Level() Level { return LevelVerbose }
func (ev *EventScriptListModify) event()       {}

func (ev *EventScriptListModify) String() string {
	return fmt.Sprintf("%s %s", ev.Op, ev.Dir+"/"+ev.File)
}

// EventShutdownRequested is emitted when the process receives a stop signal.
type EventShutdownRequested struct{}

func (ev *EventShutdownRequested) Type() string   { return eventShutdownRequested }
func (ev *EventShutdownRequested) Level() Level   { return LevelInfo }
func (ev *EventShutdownRequested) String() string { return "shutting down" }
func (ev *EventShutdownRequested) event()         {}
