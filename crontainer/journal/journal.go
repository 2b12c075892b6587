// Package journal provides implementations of crontainer's Journaler
// interface: a human-readable console writer, a JSON writer, and a JSON file
// journal guarded by a file lock so that only one crontainer instance writes
// to it.
package journal

import (
	"os"
	"path/filepath"

	"git.unix.lgbt/diamondburned/crontainer/crontainer"
	"github.com/gofrs/flock"
	"github.com/pkg/errors"
)

// multiWriter combines multiple journalers.
type multiWriter struct {
	writers []crontainer.Journaler
}

// MultiWriter creates a journaler that writes to multiple other journalers.
// Every journaler receives every event; the first error is returned.
func MultiWriter(ws ...crontainer.Journaler) crontainer.Journaler {
	return &multiWriter{ws}
}

func (w *multiWriter) Write(event crontainer.Event) error {
	var firstErr error
	for _, writer := range w.writers {
		if err := writer.Write(event); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

// FileLockJournaler is a journaler that uses a file lock (flock) to lock the
// given file and writes to it. The FileLockJournaler instance must be closed by
// the caller or by the operating system when the application exits.
//
// The lock is taken on a sibling ".lock" file, so readers never need to
// acquire it: every Write is a single append of a complete line.
type FileLockJournaler struct {
	Writer
	f *os.File
	l *flock.Flock
}

// ErrLockedElsewhere is returned if NewFileLockJournaler can't acquire the file
// lock.
var ErrLockedElsewhere = errors.New("file already locked elsewhere")

// NewFileLockJournaler creates a new file journaler if it can acquire a flock
// on the path. It returns ErrLockedElsewhere if another process holds it.
func NewFileLockJournaler(path string) (*FileLockJournaler, error) {
	// Ensure the directory exists.
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, errors.Wrap(err, "failed to create journal directory")
	}

	l := flock.New(path + ".lock")

	locked, err := l.TryLock()
	if err != nil {
		return nil, errors.Wrap(err, "failed to acquire lock")
	}

	if !locked {
		return nil, ErrLockedElsewhere
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE|os.O_SYNC, 0640)
	if err != nil {
		l.Unlock()
		return nil, errors.Wrap(err, "failed to open file")
	}

	return &FileLockJournaler{
		Writer: NewWriter(f),
		f:      f,
		l:      l,
	}, nil
}

// Close closes the file and releases the flock.
func (f *FileLockJournaler) Close() error {
	f.f.Close()
	return f.l.Unlock()
}
