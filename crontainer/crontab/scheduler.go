package crontab

import "git.unix.lgbt/diamondburned/crontainer/crontainer/exec"

// Scheduler starts the external scheduler daemon.
type Scheduler interface {
	// Start starts the daemon in the foreground as a child process, reading
	// crontabs from dir.
	Start(dir string) (exec.Process, error)
}

// Crond runs busybox crond.
type Crond struct {
	Path string
	// Args are passed before -c. DefaultCrondArgs keeps crond in the
	// foreground.
	Args []string
}

// DefaultCrondArgs keeps crond in the foreground and logs to stderr.
var DefaultCrondArgs = []string{"-f", "-d", "8"}

// NewCrond returns a Crond with default arguments.
func NewCrond() Crond {
	return Crond{Path: "crond", Args: DefaultCrondArgs}
}

var _ Scheduler = Crond{}

// Start starts crond with this process' standard streams.
func (c Crond) Start(dir string) (exec.Process, error) {
	argv := make([]string, 0, len(c.Args)+3)
	argv = append(argv, c.Path)
	argv = append(argv, c.Args...)
	argv = append(argv, "-c", dir)

	return exec.StartProcess(argv, exec.Inherit)
}
