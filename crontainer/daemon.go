package crontainer

import (
	"os"
	"time"

	"git.unix.lgbt/diamondburned/crontainer/crontainer/exec"
	"github.com/pkg/errors"
)

// DaemonWaitTimeout is the time to wait for the daemon to gracefully exit
// until forcefully killing it.
var DaemonWaitTimeout = 10 * time.Second

// Daemon supervises a long-running child process such as crond. It does not
// restart the process if it dies; it only reports the exit.
type Daemon struct {
	WaitTimeout time.Duration

	j    Journaler
	file string
	proc exec.Process
	dead chan struct{}
}

// StartDaemon starts a process using start and watches it in the background.
// The file name is only used for reporting.
func StartDaemon(file string, start func() (exec.Process, error), j Journaler) (*Daemon, error) {
	p, err := start()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to start %s", file)
	}

	d := &Daemon{
		WaitTimeout: DaemonWaitTimeout,

		j:    j,
		file: file,
		proc: p,
		dead: make(chan struct{}),
	}

	d.startWaiting()
	return d, nil
}

// startWaiting reports the PID to the journal and starts a waiting routine.
func (d *Daemon) startWaiting() {
	d.j.Write(&EventProcessSpawned{
		PID:  d.proc.PID(),
		File: d.file,
	})

	go func() {
		status := d.proc.Wait()

		ev := &EventProcessExited{
			PID:      status.PID,
			File:     d.file,
			ExitCode: status.Code,
		}

		if status.Error != nil {
			ev.Error = status.Error.Error()
		}

		// Write to the journal before signaling that the process is dead to
		// ensure that the journal entry gets written.
		d.j.Write(ev)

		close(d.dead)
	}()
}

// PID returns the daemon's process ID.
func (d *Daemon) PID() int {
	return d.proc.PID()
}

// Alive returns true if the daemon has not exited.
func (d *Daemon) Alive() bool {
	select {
	case <-d.dead:
		return false
	default:
		return true
	}
}

// Dead returns a channel that is closed once the daemon has exited.
func (d *Daemon) Dead() <-chan struct{} {
	return d.dead
}

// Stop interrupts the daemon and waits for it to exit, killing it if it takes
// longer than WaitTimeout. Stopping a dead daemon is a no-op.
func (d *Daemon) Stop() error {
	if !d.Alive() {
		return nil
	}

	if err := d.proc.Signal(os.Interrupt); err != nil {
		d.proc.Kill()
	}

	after := time.NewTimer(d.WaitTimeout)
	defer after.Stop()

	select {
	case <-after.C:
		// Timeout reached and the program still hasn't exited yet. Send
		// SIGKILL and bail, since there's not much we can do here.
		d.proc.Kill()

		// Wait until the process routine exits.
		<-d.dead

		return errors.New("timed out waiting for program to exit")

	case <-d.dead:
		return nil
	}
}
