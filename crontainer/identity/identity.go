// Package identity resolves the numeric PUID/PGID pair given to the container
// into an OS account, creating the account and group when they don't exist.
package identity

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Bounds of the non-root identity range, inclusive.
const (
	MinID = 1000
	MaxID = 6000
)

// Synthetic names used when a new user or group has to be created.
const (
	DefaultUsername  = "scripts"
	DefaultGroupname = "scripts"
)

// Request is a validated identity request. Either both IDs are 0, or both are
// within [MinID, MaxID].
type Request struct {
	UID int
	GID int
}

// IsSuperuser returns true if the request asks for root.
func (r Request) IsSuperuser() bool {
	return r.UID == 0 && r.GID == 0
}

// ValidationError is returned by ParseRequest for malformed or out-of-range
// values.
type ValidationError struct {
	PUID   string
	PGID   string
	Reason string
}

func (err *ValidationError) Error() string {
	return fmt.Sprintf("invalid PUID=%q PGID=%q: %s", err.PUID, err.PGID, err.Reason)
}

var digits = regexp.MustCompile(`^[0-9]+$`)

// ParseRequest parses and validates the raw PUID and PGID values. Empty values
// default to 0.
func ParseRequest(puid, pgid string) (Request, error) {
	invalid := func(reason string) (Request, error) {
		return Request{}, &ValidationError{PUID: puid, PGID: pgid, Reason: reason}
	}

	uid, err := parseID(puid)
	if err != nil {
		return invalid("PUID " + err.Error())
	}

	gid, err := parseID(pgid)
	if err != nil {
		return invalid("PGID " + err.Error())
	}

	req := Request{UID: uid, GID: gid}
	if req.IsSuperuser() {
		return req, nil
	}

	if uid == 0 || gid == 0 {
		return invalid("root is only allowed as PUID=0 PGID=0")
	}

	if !inRange(uid) || !inRange(gid) {
		return invalid(fmt.Sprintf("both must be 0 or within [%d, %d]", MinID, MaxID))
	}

	return req, nil
}

func parseID(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	if !digits.MatchString(s) {
		return 0, errors.New("is not a number")
	}

	id, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.New("is out of range")
	}

	return id, nil
}

func inRange(id int) bool {
	return id >= MinID && id <= MaxID
}

// Identity is the resolved OS account that scripts and commands run as.
type Identity struct {
	Username  string `json:"username"`
	Groupname string `json:"groupname"`
	UID       int    `json:"uid"`
	GID       int    `json:"gid"`
}

// Superuser is the identity of root.
var Superuser = Identity{
	Username:  "root",
	Groupname: "root",
	UID:       0,
	GID:       0,
}

// IsSuperuser returns true if the identity is root, in which case no
// privilege switch is needed.
func (id Identity) IsSuperuser() bool {
	return id.UID == 0
}

// Resolution is the result of Resolve.
type Resolution struct {
	Identity
	GroupCreated bool
	UserCreated  bool
	// Warning is set when an existing user could not be moved into the
	// resolved group. It is not fatal.
	Warning error
}

// Resolve finds or creates the group and user for the request. Resolving the
// same request again reuses what the first call created.
func Resolve(accounts Accounts, req Request) (*Resolution, error) {
	if req.IsSuperuser() {
		return &Resolution{Identity: Superuser}, nil
	}

	res := &Resolution{}

	group, err := accounts.LookupGroupID(req.GID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return nil, errors.Wrapf(err, "failed to look up group %d", req.GID)
		}

		group, err = accounts.CreateGroup(DefaultGroupname, req.GID)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to create group %s (%d)", DefaultGroupname, req.GID)
		}

		res.GroupCreated = true
	}

	user, err := accounts.LookupUserID(req.UID)
	switch {
	case err == nil:
		if user.GID != group.GID {
			if err := accounts.SetPrimaryGroup(user, group); err != nil {
				res.Warning = errors.Wrapf(err,
					"failed to set primary group of %s to %s", user.Name, group.Name)
			} else {
				user.GID = group.GID
			}
		}

	case errors.Is(err, ErrNotFound):
		user, err = accounts.CreateUser(DefaultUsername, req.UID, group)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to create user %s (%d)", DefaultUsername, req.UID)
		}

		res.UserCreated = true

	default:
		return nil, errors.Wrapf(err, "failed to look up user %d", req.UID)
	}

	res.Identity = Identity{
		Username:  user.Name,
		Groupname: group.Name,
		UID:       user.UID,
		GID:       group.GID,
	}

	return res, nil
}
