package crontainer

import "path/filepath"

// Mode is what the entrypoint does after startup. It is chosen once.
type Mode string

const (
	// ModeInit runs every script once, in order, then exits.
	ModeInit Mode = "init"
	// ModeCron installs the scripts into crond and keeps the container alive.
	ModeCron Mode = "cron"
	// ModeCommand replaces the entrypoint with the given command.
	ModeCommand Mode = "command"
)

var defaultShells = map[string]bool{
	"sh":   true,
	"ash":  true,
	"bash": true,
}

// IsDefaultShell returns true if arg is a bare shell invocation such as the
// default CMD of a base image.
func IsDefaultShell(arg string) bool {
	dir, name := filepath.Split(arg)
	if dir != "" && dir != "/bin/" && dir != "/usr/bin/" {
		return false
	}
	return defaultShells[name]
}

// SelectMode chooses the mode. CRON wins over arguments; a lone default
// shell argument does not count as a command.
func SelectMode(cron bool, args []string) Mode {
	switch {
	case cron:
		return ModeCron
	// Only a bare shell is the image default; "sh -c ..." is a real command.
	case len(args) > 0 && !(len(args) == 1 && IsDefaultShell(args[0])):
		return ModeCommand
	default:
		return ModeInit
	}
}
