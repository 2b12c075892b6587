// Package exec provides an abstraction around package os' Process
// implementation for easier testing.
package exec

import (
	"io"
	"os"
	"os/exec"
	"runtime"
	"syscall"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Process describes a command process.
type Process interface {
	PID() int
	// Alive returns true if the process has not exited yet. It never blocks.
	Alive() bool
	Signal(os.Signal) error
	Kill() error
	// Wait blocks until the process exits. It may be called more than once.
	Wait() ExitStatus
}

// KilledCode is the exit code of a process killed with SIGKILL.
const KilledCode = 128 + int(syscall.SIGKILL)

// ExitStatus is a process' exit status.
type ExitStatus struct {
	PID   int
	Code  int // 128+signal if killed by a signal, -1 if unknown
	Error error
}

// Options changes how StartProcess spawns a process.
type Options struct {
	// Env is the environment of the new process. If nil, the current
	// environment is inherited.
	Env []string
	// Stdout and Stderr are discarded if nil.
	Stdout io.Writer
	Stderr io.Writer
}

// Inherit is a set of options that shares this process' standard streams
// with the child.
var Inherit = Options{
	Stdout: os.Stdout,
	Stderr: os.Stderr,
}

type process struct {
	cmd    *exec.Cmd
	done   chan struct{}
	status ExitStatus
}

var _ Process = (*process)(nil)

// forks runs functions on a goroutine locked to its OS thread for the whole
// lifetime of the process. Pdeathsig fires when the thread that forked the
// child exits rather than the process, so children must not be forked on a
// thread that may be torn down.
// See https://github.com/golang/go/issues/27505.
var forks = make(chan func())

func init() {
	go func() {
		runtime.LockOSThread()
		for fn := range forks {
			fn()
		}
	}()
}

func onForkThread(fn func()) {
	done := make(chan struct{})
	forks <- func() {
		fn()
		close(done)
	}
	<-done
}

// StartProcess creates a new command process on the system. A background
// goroutine reaps the process, so Alive can be polled without blocking.
func StartProcess(argv []string, opts Options) (Process, error) {
	if len(argv) == 0 {
		return nil, errors.New("empty argv")
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Env = opts.Env
	cmd.Stdout = opts.Stdout
	cmd.Stderr = opts.Stderr
	// Linux-only: we need the child to die when we do, since nothing else
	// will clean it up once the container entrypoint is gone.
	cmd.SysProcAttr = &syscall.SysProcAttr{Pdeathsig: syscall.SIGTERM}

	var err error
	onForkThread(func() { err = cmd.Start() })

	if err != nil {
		return nil, err
	}

	proc := &process{
		cmd:  cmd,
		done: make(chan struct{}),
	}

	go func() {
		err := cmd.Wait()
		proc.status = exitStatus(cmd, err)
		close(proc.done)
	}()

	return proc, nil
}

func exitStatus(cmd *exec.Cmd, err error) ExitStatus {
	status := ExitStatus{
		PID:  cmd.Process.Pid,
		Code: -1,
	}

	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		status.Error = err
	}

	if cmd.ProcessState == nil {
		return status
	}

	if ws, ok := cmd.ProcessState.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		status.Code = 128 + int(ws.Signal())
		return status
	}

	status.Code = cmd.ProcessState.ExitCode()
	return status
}

func (proc *process) PID() int {
	return proc.cmd.Process.Pid
}

func (proc *process) Alive() bool {
	select {
	case <-proc.done:
		return false
	default:
		return true
	}
}

func (proc *process) Signal(sig os.Signal) error {
	return proc.cmd.Process.Signal(sig)
}

func (proc *process) Kill() error {
	return proc.cmd.Process.Kill()
}

func (proc *process) Wait() ExitStatus {
	<-proc.done
	return proc.status
}

// Exec replaces the current process with argv. The program is looked up in
// $PATH unless it contains a slash. Exec only returns on failure.
func Exec(argv []string, env []string) error {
	if len(argv) == 0 {
		return errors.New("empty argv")
	}

	path, err := exec.LookPath(argv[0])
	if err != nil {
		return errors.Wrapf(err, "cannot find %q", argv[0])
	}

	if env == nil {
		env = os.Environ()
	}

	return errors.Wrapf(unix.Exec(path, argv, env), "failed to exec %q", path)
}

// StartCode returns the shell-style exit code for an error returned by
// StartProcess or Exec: 127 if the program could not be found, 126 otherwise.
func StartCode(err error) int {
	if errors.Is(err, os.ErrNotExist) || errors.Is(err, exec.ErrNotFound) {
		return 127
	}
	return 126
}
