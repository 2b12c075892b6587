package identity

import (
	"os/exec"
	"os/user"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// System manages accounts on the running system. Lookups go through os/user;
// changes are made by shelling out to shadow-utils (groupadd, useradd,
// usermod) or, on images that only ship busybox, to addgroup and adduser.
type System struct {
	// LookPath and Run are overridable for testing.
	LookPath func(file string) (string, error)
	Run      func(name string, args ...string) ([]byte, error)
}

var _ Accounts = (*System)(nil)

// NewSystem creates a System that runs real commands.
func NewSystem() *System {
	return &System{
		LookPath: exec.LookPath,
		Run: func(name string, args ...string) ([]byte, error) {
			return exec.Command(name, args...).CombinedOutput()
		},
	}
}

func (s *System) has(tool string) bool {
	_, err := s.LookPath(tool)
	return err == nil
}

func (s *System) run(name string, args ...string) error {
	out, err := s.Run(name, args...)
	if err != nil {
		msg := strings.TrimSpace(string(out))
		if msg == "" {
			return errors.Wrap(err, name)
		}
		return errors.Wrapf(err, "%s: %s", name, msg)
	}
	return nil
}

func (s *System) LookupGroupID(gid int) (*Group, error) {
	g, err := user.LookupGroupId(strconv.Itoa(gid))
	if err != nil {
		var unknown user.UnknownGroupIdError
		if errors.As(err, &unknown) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &Group{Name: g.Name, GID: gid}, nil
}

func (s *System) CreateGroup(name string, gid int) (*Group, error) {
	id := strconv.Itoa(gid)

	var err error
	if s.has("groupadd") {
		err = s.run("groupadd", "-g", id, name)
	} else {
		err = s.run("addgroup", "-g", id, name)
	}
	if err != nil {
		return nil, err
	}

	return &Group{Name: name, GID: gid}, nil
}

func (s *System) LookupUserID(uid int) (*User, error) {
	u, err := user.LookupId(strconv.Itoa(uid))
	if err != nil {
		var unknown user.UnknownUserIdError
		if errors.As(err, &unknown) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	gid, err := strconv.Atoi(u.Gid)
	if err != nil {
		return nil, errors.Wrapf(err, "user %s has invalid gid %q", u.Username, u.Gid)
	}

	return &User{Name: u.Username, UID: uid, GID: gid}, nil
}

func (s *System) CreateUser(name string, uid int, group *Group) (*User, error) {
	id := strconv.Itoa(uid)

	var err error
	if s.has("useradd") {
		// -M: no home directory, -N: no user group.
		err = s.run("useradd", "-M", "-N", "-u", id, "-g", group.Name, "-s", "/bin/sh", name)
	} else {
		// -D: no password, -H: no home directory.
		err = s.run("adduser", "-D", "-H", "-u", id, "-G", group.Name, "-s", "/bin/sh", name)
	}
	if err != nil {
		return nil, err
	}

	return &User{Name: name, UID: uid, GID: group.GID}, nil
}

func (s *System) SetPrimaryGroup(u *User, group *Group) error {
	if !s.has("usermod") {
		return errors.New("usermod is not available")
	}

	return s.run("usermod", "-g", group.Name, u.Name)
}
