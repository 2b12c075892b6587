package crontainer

import (
	"fmt"
	"strings"
)

// Level is a log level. Levels are ordered: a configured level shows every
// event at or below it.
type Level int

const (
	LevelError Level = iota
	LevelWarn
	LevelInfo
	LevelVerbose
	LevelDebug
)

// DefaultLevel is used when LOG_LEVEL is unset.
const DefaultLevel = LevelInfo

var levelNames = [...]string{
	LevelError:   "ERROR",
	LevelWarn:    "WARN",
	LevelInfo:    "INFORMATIONAL",
	LevelVerbose: "VERBOSE",
	LevelDebug:   "DEBUG",
}

// ParseLevel parses a level name case-insensitively. INFO and WARNING are
// accepted as aliases.
func ParseLevel(s string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ERROR":
		return LevelError, nil
	case "WARN", "WARNING":
		return LevelWarn, nil
	case "INFORMATIONAL", "INFO":
		return LevelInfo, nil
	case "VERBOSE":
		return LevelVerbose, nil
	case "DEBUG":
		return LevelDebug, nil
	default:
		return DefaultLevel, fmt.Errorf("unknown log level %q", s)
	}
}

// String returns the canonical level name, which is also the tag printed in
// front of human-readable log lines.
func (l Level) String() string {
	if l < LevelError || int(l) >= len(levelNames) {
		return fmt.Sprintf("Level(%d)", int(l))
	}
	return levelNames[l]
}

// Enabled returns true if an event at level ev should be shown when l is the
// configured level.
func (l Level) Enabled(ev Level) bool {
	return ev <= l
}
