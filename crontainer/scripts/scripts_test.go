package scripts

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func writeFile(path string, mode os.FileMode) {
	So(os.MkdirAll(filepath.Dir(path), 0755), ShouldBeNil)
	So(os.WriteFile(path, []byte("#!/bin/sh\n"), mode), ShouldBeNil)
	So(os.Chmod(path, mode), ShouldBeNil)
}

func TestDiscover(t *testing.T) {
	Convey("Given a set of script directories", t, func() {
		root := t.TempDir()
		scriptsDir := filepath.Join(root, "scripts")
		initDir := filepath.Join(root, "init")
		cronDir := filepath.Join(root, "cron-scripts")
		dirs := []string{scriptsDir, initDir, cronDir}

		Convey("Missing directories are not an error", func() {
			d, err := Discover(dirs)
			So(err, ShouldBeNil)
			So(d.Empty(), ShouldBeTrue)
			So(d.Counts, ShouldResemble, []DirCount{
				{Dir: scriptsDir, Missing: true},
				{Dir: initDir, Missing: true},
				{Dir: cronDir, Missing: true},
			})
		})

		Convey("Only executable *.sh files directly inside are picked", func() {
			writeFile(filepath.Join(scriptsDir, "b.sh"), 0755)
			writeFile(filepath.Join(scriptsDir, "a.sh"), 0700)
			writeFile(filepath.Join(scriptsDir, "noexec.sh"), 0644)
			writeFile(filepath.Join(scriptsDir, "README"), 0755)
			writeFile(filepath.Join(scriptsDir, "script.bash"), 0755)
			writeFile(filepath.Join(scriptsDir, "nested", "deep.sh"), 0755)
			So(os.Mkdir(filepath.Join(scriptsDir, "dir.sh"), 0755), ShouldBeNil)
			writeFile(filepath.Join(cronDir, "backup.sh"), 0755)

			d, err := Discover(dirs)
			So(err, ShouldBeNil)
			So(d.Scripts, ShouldResemble, []Script{
				{Name: "a.sh", Path: filepath.Join(scriptsDir, "a.sh")},
				{Name: "b.sh", Path: filepath.Join(scriptsDir, "b.sh")},
				{Name: "backup.sh", Path: filepath.Join(cronDir, "backup.sh")},
			})
			So(d.Counts, ShouldResemble, []DirCount{
				{Dir: scriptsDir, Scripts: 2},
				{Dir: initDir, Missing: true},
				{Dir: cronDir, Scripts: 1},
			})
			So(d.Total(), ShouldEqual, 3)
		})

		Convey("Symlinks are followed for eligibility but not in the path", func() {
			target := filepath.Join(root, "elsewhere", "real-script")
			writeFile(target, 0755)
			So(os.MkdirAll(initDir, 0755), ShouldBeNil)
			So(os.Symlink(target, filepath.Join(initDir, "linked.sh")), ShouldBeNil)
			So(os.Symlink(filepath.Join(root, "dangling"), filepath.Join(initDir, "dangling.sh")), ShouldBeNil)

			d, err := Discover(dirs)
			So(err, ShouldBeNil)
			So(d.Scripts, ShouldResemble, []Script{
				{Name: "linked.sh", Path: filepath.Join(initDir, "linked.sh")},
			})
		})
	})
}
