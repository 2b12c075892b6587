package crontainer

import (
	"os"
	"strings"
	"time"

	"git.unix.lgbt/diamondburned/crontainer/crontainer/crontab"
	"git.unix.lgbt/diamondburned/crontainer/crontainer/identity"
	"git.unix.lgbt/diamondburned/crontainer/crontainer/scripts"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// DefaultEnvFile is an optional dotenv file read before the environment.
const DefaultEnvFile = "/etc/crontainer/env"

// Config is the process configuration. It is built once at startup and never
// modified afterwards.
type Config struct {
	Identity     identity.Request
	Timezone     string
	Cron         bool
	CronSchedule string
	Level        Level
	// Args are the arguments given to the entrypoint, without the program
	// name.
	Args []string

	// JournalFile is an optional JSON journal path.
	JournalFile string
	// CronWatch regenerates the crontab when scripts change.
	CronWatch bool

	ScriptDirs      []string
	ScheduleFile    string
	CrontabPath     string
	RunnerPath      string
	PrivilegeSwitch string
	OutputTarget    string

	// StartupGrace is how long to wait before checking that the scheduler
	// daemon survived startup.
	StartupGrace time.Duration
	// SupervisePeriod is the wake-up interval of the cron mode idle loop.
	SupervisePeriod time.Duration

	// Warnings are non-fatal problems found while loading.
	Warnings []error
}

// DefaultConfig returns a configuration with every path at its default and
// no environment applied.
func DefaultConfig() Config {
	return Config{
		Level:           DefaultLevel,
		ScriptDirs:      append([]string(nil), scripts.DefaultDirs...),
		ScheduleFile:    crontab.DefaultScheduleFile,
		CrontabPath:     crontab.DefaultPath,
		RunnerPath:      crontab.DefaultRunnerPath,
		PrivilegeSwitch: crontab.DefaultPrivilegeSwitch,
		OutputTarget:    crontab.DefaultOutputTarget,
		StartupGrace:    2 * time.Second,
		SupervisePeriod: time.Hour,
	}
}

// LoadEnvFile loads variables from a dotenv file into the environment.
// Variables that are already set win. A missing file is not an error.
func LoadEnvFile(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}

	return errors.Wrapf(godotenv.Load(path), "failed to load %s", path)
}

// FromEnv builds the configuration from the environment. An invalid PUID or
// PGID is an error; an unknown LOG_LEVEL only adds a warning.
func FromEnv(args []string) (*Config, error) {
	cfg := DefaultConfig()

	req, err := identity.ParseRequest(os.Getenv("PUID"), os.Getenv("PGID"))
	if err != nil {
		return nil, err
	}

	cfg.Identity = req
	cfg.Timezone = getenv("TZ", "UTC")
	cfg.Cron = os.Getenv("CRON") == "true"
	cfg.CronSchedule = strings.TrimSpace(os.Getenv("CRON_SCHEDULE"))
	cfg.JournalFile = os.Getenv("JOURNAL_FILE")
	cfg.CronWatch = os.Getenv("CRON_WATCH") == "true"
	cfg.Args = args

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level, err := ParseLevel(v)
		if err != nil {
			cfg.Warnings = append(cfg.Warnings,
				errors.Wrapf(err, "using %s", DefaultLevel))
		}
		cfg.Level = level
	}

	return &cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
