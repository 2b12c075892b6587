package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"git.unix.lgbt/diamondburned/crontainer/crontainer"
	"git.unix.lgbt/diamondburned/crontainer/crontainer/journal"
	"github.com/pkg/errors"
)

func main() {
	os.Exit(run())
}

func run() int {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = crontainer.DefaultEnvFile
	}

	// Reported once the journal exists, since LOG_LEVEL may come from the
	// file.
	envErr := crontainer.LoadEnvFile(envFile)

	cfg, err := crontainer.FromEnv(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "[ERROR]", err)
		return crontainer.ExitFatal
	}

	human := journal.NewHumanWriter(os.Stdout, os.Stderr, cfg.Level)
	var j crontainer.Journaler = human

	if envErr != nil {
		human.Write(&crontainer.EventWarning{Component: "config", Error: envErr.Error()})
	}

	if cfg.JournalFile != "" {
		f, err := journal.NewFileLockJournaler(cfg.JournalFile)
		if err != nil {
			if errors.Is(err, journal.ErrLockedElsewhere) {
				err = errors.Wrapf(err, "journal %s is in use", cfg.JournalFile)
			}
			human.Write(&crontainer.EventWarning{Component: "journal", Error: err.Error()})
		} else {
			defer f.Close()
			j = journal.MultiWriter(f, human)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	code, err := crontainer.NewDispatcher(cfg, j).Run(ctx)
	if err != nil {
		j.Write(&crontainer.EventFatal{Error: err.Error()})
	}

	return code
}
