package exec

import (
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

type sleepProcess struct {
	once  sync.Once
	stop  chan struct{}
	done  chan struct{}
	timer *time.Timer
	delay time.Duration

	pid  int
	code int
	exit int32
}

// NewSleepProcess creates a process that only idles for a duration and then
// exits with the given code. It is used for testing. If delay is larger than
// 0, then the process will sleep for that delay after being interrupted
// before exiting, unless it is SIGKILLed.
func NewSleepProcess(dura, delay time.Duration, pid, code int) Process {
	mock := &sleepProcess{
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
		timer: time.NewTimer(dura),
		delay: delay,

		pid:  pid,
		code: code,
		exit: -2,
	}

	go mock.run()
	return mock
}

func (mock *sleepProcess) run() {
	select {
	case <-mock.stop:
	case <-mock.timer.C:
		atomic.CompareAndSwapInt32(&mock.exit, -2, int32(mock.code))
	}
	close(mock.done)
}

func (mock *sleepProcess) PID() int { return mock.pid }

func (mock *sleepProcess) Alive() bool {
	select {
	case <-mock.done:
		return false
	default:
		return true
	}
}

func (mock *sleepProcess) Signal(sig os.Signal) error {
	var status int32

	switch sig {
	case os.Interrupt:
		status = 0
	case os.Kill:
		status = int32(KilledCode)
	default:
		return errors.New("unknown signal")
	}

	go func() {
		if mock.delay > 0 && sig != os.Kill {
			select {
			case <-time.After(mock.delay):

			case <-mock.done:
				return
			}
		}

		// Ensure exit is still unset (-2), otherwise bail.
		if !atomic.CompareAndSwapInt32(&mock.exit, -2, status) {
			return
		}

		mock.once.Do(func() { close(mock.stop) })
		mock.timer.Stop()
	}()

	return nil
}

func (mock *sleepProcess) Kill() error {
	return mock.Signal(os.Kill)
}

func (mock *sleepProcess) Wait() ExitStatus {
	<-mock.done

	return ExitStatus{
		PID:  mock.pid,
		Code: int(atomic.LoadInt32(&mock.exit)),
	}
}
