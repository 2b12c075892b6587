// Command run-script runs a single script and reports its progress according
// to the log level.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"git.unix.lgbt/diamondburned/crontainer/crontainer"
	"git.unix.lgbt/diamondburned/crontainer/crontainer/journal"
	"git.unix.lgbt/diamondburned/crontainer/crontainer/runner"
	"git.unix.lgbt/diamondburned/crontainer/crontainer/scripts"
)

var levelName = os.Getenv("LOG_LEVEL")

func init() {
	flag.StringVar(&levelName, "level", levelName, "log level, defaults to $LOG_LEVEL")
	flag.Usage = func() {
		f := func(f string, v ...interface{}) {
			fmt.Fprintf(flag.CommandLine.Output(), f, v...)
		}

		f("Usage:\n")
		f("  %s [-level LEVEL] <path> <name>\n", filepath.Base(os.Args[0]))
		f("\n")
		f("Flags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 2 {
		flag.Usage()
		os.Exit(2)
	}
}

func main() {
	level := crontainer.DefaultLevel
	if levelName != "" {
		l, err := crontainer.ParseLevel(levelName)
		if err != nil {
			log.Println(err)
		}
		level = l
	}

	// Filtering is up to the dispatcher; the runner picks what to emit.
	j := journal.NewHumanWriter(os.Stdout, os.Stderr, crontainer.LevelDebug)

	script := scripts.Script{
		Path: flag.Arg(0),
		Name: flag.Arg(1),
	}

	os.Exit(runner.New(level, j).Run(script))
}
