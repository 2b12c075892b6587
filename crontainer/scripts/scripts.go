// Package scripts finds the shell scripts a container was given.
package scripts

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// DefaultDirs are the directories scanned for scripts, in order.
var DefaultDirs = []string{"/scripts", "/init", "/cron-scripts"}

// Script describes a discovered script.
type Script struct {
	Name string `json:"name"`
	// Path is the directory joined with Name. Symlinks are not resolved, so
	// the path stays the same even if a mount swaps the link target.
	Path string `json:"path"`
}

// DirCount is the number of scripts found in a directory.
type DirCount struct {
	Dir     string `json:"dir"`
	Scripts int    `json:"scripts"`
	Missing bool   `json:"missing,omitempty"`
}

// Discovery is the result of scanning a list of directories.
type Discovery struct {
	Scripts []Script
	Counts  []DirCount
}

// Total returns the number of scripts found across all directories.
func (d *Discovery) Total() int {
	return len(d.Scripts)
}

// Empty returns true if nothing was found.
func (d *Discovery) Empty() bool {
	return len(d.Scripts) == 0
}

// Discover scans the direct children of each directory for executable *.sh
// files. Directories that don't exist are skipped. Scripts keep the order of
// dirs and are sorted by name within a directory.
func Discover(dirs []string) (*Discovery, error) {
	d := &Discovery{
		Counts: make([]DirCount, 0, len(dirs)),
	}

	for _, dir := range dirs {
		found, err := scanDir(dir)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				d.Counts = append(d.Counts, DirCount{Dir: dir, Missing: true})
				continue
			}
			return nil, errors.Wrapf(err, "failed to scan %s", dir)
		}

		d.Scripts = append(d.Scripts, found...)
		d.Counts = append(d.Counts, DirCount{Dir: dir, Scripts: len(found)})
	}

	return d, nil
}

func scanDir(dir string) ([]Script, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var found []Script

	for _, entry := range entries {
		if !strings.HasSuffix(entry.Name(), ".sh") {
			continue
		}

		path := filepath.Join(dir, entry.Name())

		// Stat follows symlinks.
		stat, err := os.Stat(path)
		if err != nil || !IsEligible(stat) {
			continue
		}

		found = append(found, Script{Name: entry.Name(), Path: path})
	}

	sort.Slice(found, func(i, j int) bool {
		return found[i].Name < found[j].Name
	})

	return found, nil
}

// IsEligible returns true if the file info describes a regular file with at
// least one execute bit.
func IsEligible(info os.FileInfo) bool {
	return info.Mode().IsRegular() && info.Mode().Perm()&0111 != 0
}
