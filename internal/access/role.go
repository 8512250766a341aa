// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AssetDesk Contributors

package access

import (
	"strings"

	"github.com/samber/oops"
)

// Role is the coarse-grained identity class of a user.
//
// Roles carry no privilege ordering: each role has its own row in the default
// policy table and rows diverge per module and action.
type Role string

// Known roles.
const (
	RolePortal    Role = "portal"
	RoleUser      Role = "user"
	RoleAdmin     Role = "admin"
	RoleSuperuser Role = "superuser"
)

// Roles returns every known role.
func Roles() []Role {
	return []Role{RolePortal, RoleUser, RoleAdmin, RoleSuperuser}
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RolePortal, RoleUser, RoleAdmin, RoleSuperuser:
		return true
	default:
		return false
	}
}

func (r Role) String() string {
	return string(r)
}

// ParseRole converts a role name to a Role, ignoring case and surrounding space.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", oops.In("access").Code("UNKNOWN_ROLE").With("role", s).Errorf("unknown role %q", s)
	}
	return r, nil
}

// User is the already-authenticated user record handed to the engine.
type User struct {
	ID   string
	Role Role
}

// Authenticated reports whether u looks like a user produced by the
// authentication layer.
func (u User) Authenticated() bool {
	return strings.TrimSpace(u.ID) != "" && u.Role.Valid()
}
