// Package session holds the client-side view of who is signed in: the three
// role credential slots, the store they persist in, and the precedence that
// resolves "the" current session when more than one slot is filled.
package session

import (
	"fmt"
	"strings"
)

// Role identifies which API surface a credential unlocks.
type Role string

const (
	RoleNone     Role = "none"
	RoleVisitor  Role = "visitor"
	RoleBusiness Role = "business"
	RoleAdmin    Role = "admin"
)

// Roles lists every credential-bearing role.
var Roles = []Role{RoleVisitor, RoleBusiness, RoleAdmin}

// ParseRole parses a role name (case-insensitive). "none" and "" are rejected.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleVisitor:
		return RoleVisitor, nil
	case RoleBusiness:
		return RoleBusiness, nil
	case RoleAdmin:
		return RoleAdmin, nil
	}
	return RoleNone, fmt.Errorf("unknown role %q", s)
}

// Valid reports whether r is one of the credential-bearing roles.
func (r Role) Valid() bool {
	return r == RoleVisitor || r == RoleBusiness || r == RoleAdmin
}

func (r Role) String() string {
	if r == "" {
		return string(RoleNone)
	}
	return string(r)
}

// LoginPath is the front-end route a user of this role is sent to when the
// session is lost.
func (r Role) LoginPath() string {
	if !r.Valid() {
		return "/login/visitor"
	}
	return "/login/" + string(r)
}

// LoginEndpoint is the backend path that issues tokens for this role.
func (r Role) LoginEndpoint() string {
	return "login/" + string(r) + "/"
}
