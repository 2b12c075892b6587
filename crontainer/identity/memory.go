package identity

import (
	"fmt"
	"sync"
)

// Memory is an in-memory account database. Like the real thing, it refuses
// duplicate names and IDs. A zero-value instance is a valid empty database.
type Memory struct {
	mutex  sync.Mutex
	users  []User
	groups []Group

	// FailSetPrimaryGroup makes SetPrimaryGroup fail, as it does on systems
	// without usermod.
	FailSetPrimaryGroup bool
}

var _ Accounts = (*Memory)(nil)

// AddGroup adds an existing group.
func (m *Memory) AddGroup(name string, gid int) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.groups = append(m.groups, Group{Name: name, GID: gid})
}

// AddUser adds an existing user.
func (m *Memory) AddUser(name string, uid, gid int) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.users = append(m.users, User{Name: name, UID: uid, GID: gid})
}

// Users returns a copy of all users.
func (m *Memory) Users() []User {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	return append([]User(nil), m.users...)
}

// Groups returns a copy of all groups.
func (m *Memory) Groups() []Group {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	return append([]Group(nil), m.groups...)
}

func (m *Memory) LookupGroupID(gid int) (*Group, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for _, g := range m.groups {
		if g.GID == gid {
			g := g
			return &g, nil
		}
	}

	return nil, ErrNotFound
}

func (m *Memory) CreateGroup(name string, gid int) (*Group, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for _, g := range m.groups {
		if g.GID == gid || g.Name == name {
			return nil, fmt.Errorf("group %s (%d) conflicts with %s (%d)", name, gid, g.Name, g.GID)
		}
	}

	g := Group{Name: name, GID: gid}
	m.groups = append(m.groups, g)
	return &g, nil
}

func (m *Memory) LookupUserID(uid int) (*User, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for _, u := range m.users {
		if u.UID == uid {
			u := u
			return &u, nil
		}
	}

	return nil, ErrNotFound
}

func (m *Memory) CreateUser(name string, uid int, group *Group) (*User, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for _, u := range m.users {
		if u.UID == uid || u.Name == name {
			return nil, fmt.Errorf("user %s (%d) conflicts with %s (%d)", name, uid, u.Name, u.UID)
		}
	}

	u := User{Name: name, UID: uid, GID: group.GID}
	m.users = append(m.users, u)
	return &u, nil
}

func (m *Memory) SetPrimaryGroup(user *User, group *Group) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.FailSetPrimaryGroup {
		return fmt.Errorf("cannot change primary group of %s", user.Name)
	}

	for i, u := range m.users {
		if u.UID == user.UID {
			m.users[i].GID = group.GID
			return nil
		}
	}

	return ErrNotFound
}
