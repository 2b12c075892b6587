package journal

import (
	"bytes"
	"fmt"
	"io"

	"git.unix.lgbt/diamondburned/crontainer/crontainer"
	"github.com/inconshreveable/log15"
)

// tagKey is the log15 context key carrying the crontainer level.
const tagKey = "tag"

// HumanWriter is a journaler that writes one "[LEVEL] message" line per
// event. Events above the configured level are dropped. ERROR events go to
// the error writer, everything else to the output writer.
type HumanWriter struct {
	level crontainer.Level
	log   log15.Logger
}

var _ crontainer.Journaler = (*HumanWriter)(nil)

// NewHumanWriter creates a new human-readable journaler.
func NewHumanWriter(out, errOut io.Writer, level crontainer.Level) *HumanWriter {
	format := HumanFormat()

	log := log15.New()
	log.SetHandler(log15.MultiHandler(
		log15.FilterHandler(isError, log15.StreamHandler(errOut, format)),
		log15.FilterHandler(not(isError), log15.StreamHandler(out, format)),
	))

	return &HumanWriter{
		level: level,
		log:   log,
	}
}

func isError(r *log15.Record) bool {
	return r.Lvl <= log15.LvlError
}

func not(fn func(*log15.Record) bool) func(*log15.Record) bool {
	return func(r *log15.Record) bool { return !fn(r) }
}

// Write logs the event if the configured level allows it.
func (w *HumanWriter) Write(ev crontainer.Event) error {
	level := ev.Level()
	if !w.level.Enabled(level) {
		return nil
	}

	msg := ev.String()

	switch level {
	case crontainer.LevelError:
		w.log.Error(msg, tagKey, level)
	case crontainer.LevelWarn:
		w.log.Warn(msg, tagKey, level)
	case crontainer.LevelInfo:
		w.log.Info(msg, tagKey, level)
	default:
		w.log.Debug(msg, tagKey, level)
	}

	return nil
}

// HumanFormat formats records as "[LEVEL] message". The level tag comes from
// the record context, since log15 has no VERBOSE level of its own.
func HumanFormat() log15.Format {
	return log15.FormatFunc(func(r *log15.Record) []byte {
		tag := r.Lvl.String()

		for i := 0; i+1 < len(r.Ctx); i += 2 {
			if r.Ctx[i] == tagKey {
				tag = fmt.Sprint(r.Ctx[i+1])
				break
			}
		}

		var buf bytes.Buffer
		fmt.Fprintf(&buf, "[%s] %s\n", tag, r.Msg)
		return buf.Bytes()
	})
}
