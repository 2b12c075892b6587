package journal

import (
	"bytes"
	"encoding/json"
	"io"
	"sync"
	"time"

	"git.unix.lgbt/diamondburned/crontainer/crontainer"
	"github.com/pkg/errors"
)

// Event describes the JSON structure of an event to be written.
type Event struct {
	Time  time.Time        `json:"time"`
	Type  string           `json:"type"`
	Level string           `json:"level"`
	Data  crontainer.Event `json:"data"`
}

// Writer is a simple journaler that writes line-delimited JSON events into the
// writer.
type Writer struct {
	mu *sync.Mutex
	w  io.Writer
}

var _ crontainer.Journaler = Writer{}

// NewWriter creates a new journal writer.
func NewWriter(w io.Writer) Writer {
	return Writer{new(sync.Mutex), w}
}

// Write writes the given event into the writer. Writes are concurrently safe
// and are atomic.
func (l Writer) Write(ev crontainer.Event) error {
	evJSON := Event{
		Time:  time.Now(),
		Type:  ev.Type(),
		Level: ev.Level().String(),
		Data:  ev,
	}

	buf := bytes.Buffer{}
	buf.Grow(512)

	// Encode appends a new line.
	if err := json.NewEncoder(&buf).Encode(evJSON); err != nil {
		return errors.Wrap(err, "failed to marshal event")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.w.Write(buf.Bytes()); err != nil {
		return errors.Wrap(err, "failed to write event")
	}

	return nil
}
