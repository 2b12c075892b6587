// Package crontab builds the crontab handed to the scheduler daemon, either
// from discovered scripts or from an operator-supplied schedule file.
package crontab

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"git.unix.lgbt/diamondburned/crontainer/crontainer/identity"
	"git.unix.lgbt/diamondburned/crontainer/crontainer/scripts"
	"github.com/pkg/errors"
)

// DefaultSchedule runs every script daily at midnight.
const DefaultSchedule = "0 0 * * *"

// Defaults for a busybox crond container.
const (
	DefaultPath            = "/etc/crontabs/root"
	DefaultScheduleFile    = "/cron-schedule"
	DefaultRunnerPath      = "/usr/local/bin/run-script"
	DefaultPrivilegeSwitch = "su-exec"
	// DefaultOutputTarget is PID 1's stdout, which is the container log.
	DefaultOutputTarget = "/proc/1/fd/1"
)

// FileMode is the permission the crontab must have; crond ignores crontabs
// that are readable by others.
const FileMode os.FileMode = 0600

// Generator synthesizes one crontab entry per script.
type Generator struct {
	// Schedule is the cron expression used for every entry. DefaultSchedule
	// is used if empty.
	Schedule        string
	RunnerPath      string
	PrivilegeSwitch string
	OutputTarget    string
	// Level is passed to the runner with -level, since crond does not
	// forward the container's environment to its jobs.
	Level string
}

func (g Generator) schedule() string {
	if s := strings.TrimSpace(g.Schedule); s != "" {
		return s
	}
	return DefaultSchedule
}

// Entry returns the crontab line for a single script. The privilege switch
// is only added for non-root identities, and the output redirection applies
// to the whole command rather than only the switched one.
func (g Generator) Entry(id identity.Identity, script scripts.Script) string {
	words := make([]string, 0, 12)
	words = append(words, g.schedule())

	if !id.IsSuperuser() {
		words = append(words, g.PrivilegeSwitch, quote(id.Username))
	}

	words = append(words, quote(g.RunnerPath))
	if g.Level != "" {
		words = append(words, "-level", g.Level)
	}
	words = append(words,
		quote(script.Path), quote(script.Name),
		">>", quote(g.OutputTarget), "2>&1",
	)

	return strings.Join(words, " ")
}

// Entries returns the crontab lines for every script, in order.
func (g Generator) Entries(id identity.Identity, list []scripts.Script) []string {
	entries := make([]string, len(list))
	for i, script := range list {
		entries[i] = g.Entry(id, script)
	}
	return entries
}

var shellSafe = regexp.MustCompile(`^[A-Za-z0-9_@+=:,./-]+$`)

// quote single-quotes s for sh unless it only contains safe characters.
// Percent signs are left alone: busybox crond passes the command to sh as is,
// and only Vixie-style crons turn an unescaped % into a newline.
func quote(s string) string {
	if shellSafe.MatchString(s) {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// Source describes where a crontab came from.
type Source string

const (
	SourceCustom    Source = "custom"
	SourceGenerated Source = "generated"
)

// Crontab is a crontab body ready to be written.
type Crontab struct {
	Source Source
	Data   []byte
}

// Entries counts the lines that are neither blank nor comments.
func (c *Crontab) Entries() int {
	var n int
	for _, line := range bytes.Split(c.Data, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) > 0 && line[0] != '#' {
			n++
		}
	}
	return n
}

// Empty returns true if the crontab schedules nothing.
func (c *Crontab) Empty() bool {
	return c.Entries() == 0
}

// Build returns the crontab for the given scripts. If the custom schedule
// file exists, its content is used byte for byte and the scripts are
// ignored; the file is then responsible for any privilege switching.
func Build(customPath string, g Generator, id identity.Identity, list []scripts.Script) (*Crontab, error) {
	custom, err := readCustom(customPath)
	if err != nil {
		return nil, err
	}
	if custom != nil {
		return &Crontab{Source: SourceCustom, Data: custom}, nil
	}

	entries := g.Entries(id, list)

	var buf bytes.Buffer
	for _, entry := range entries {
		buf.WriteString(entry)
		buf.WriteByte('\n')
	}

	return &Crontab{Source: SourceGenerated, Data: buf.Bytes()}, nil
}

// HasCustom returns true if the custom schedule file exists.
func HasCustom(customPath string) bool {
	if customPath == "" {
		return false
	}
	stat, err := os.Stat(customPath)
	return err == nil && stat.Mode().IsRegular()
}

func readCustom(customPath string) ([]byte, error) {
	if customPath == "" {
		return nil, nil
	}

	stat, err := os.Stat(customPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to stat custom schedule")
	}

	if !stat.Mode().IsRegular() {
		return nil, fmt.Errorf("custom schedule %s is not a regular file", customPath)
	}

	b, err := os.ReadFile(customPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read custom schedule")
	}

	// Never return nil for an existing but empty file.
	if b == nil {
		b = []byte{}
	}

	return b, nil
}

// Describe returns a human-readable description of where the schedule comes
// from.
func Describe(customPath, schedule string) string {
	if HasCustom(customPath) {
		return "custom schedule file " + customPath
	}
	if strings.TrimSpace(schedule) != "" {
		return fmt.Sprintf("CRON_SCHEDULE %q for every script", strings.TrimSpace(schedule))
	}
	return fmt.Sprintf("default %q for every script", DefaultSchedule)
}

// WriteFile atomically replaces the crontab at path with data. The file is
// created in the same directory with FileMode and renamed over the old one,
// so the daemon never reads a partial crontab.
func WriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)

	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "failed to create crontab directory")
	}

	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return errors.Wrap(err, "failed to create temporary crontab")
	}
	tmp := f.Name()

	if err := writeSync(f, data); err != nil {
		os.Remove(tmp)
		return err
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return errors.Wrap(err, "failed to install crontab")
	}

	return nil
}

func writeSync(f *os.File, data []byte) error {
	defer f.Close()

	if err := f.Chmod(FileMode); err != nil {
		return errors.Wrap(err, "failed to chmod crontab")
	}

	if _, err := f.Write(data); err != nil {
		return errors.Wrap(err, "failed to write crontab")
	}

	if err := f.Sync(); err != nil {
		return errors.Wrap(err, "failed to sync crontab")
	}

	return f.Close()
}
