package identity

import "github.com/pkg/errors"

// ErrNotFound is returned by Accounts lookups when no such user or group
// exists.
var ErrNotFound = errors.New("not found")

// User is an OS user account.
type User struct {
	Name string
	UID  int
	GID  int // primary group
}

// Group is an OS group.
type Group struct {
	Name string
	GID  int
}

// Accounts is the OS account database. The production implementation is
// System; Memory is an in-memory implementation for tests.
type Accounts interface {
	LookupGroupID(gid int) (*Group, error)
	CreateGroup(name string, gid int) (*Group, error)
	LookupUserID(uid int) (*User, error)
	// CreateUser creates a login identity with no password and no home
	// directory.
	CreateUser(name string, uid int, group *Group) (*User, error)
	SetPrimaryGroup(user *User, group *Group) error
}
