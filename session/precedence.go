package session

import (
	"fmt"
	"strings"
)

// Precedence is the order in which role slots are consulted when more than
// one holds a credential. The same order drives both request decoration and
// session resolution.
type Precedence []Role

var (
	// VisitorFirst is the order used by the shared request client.
	VisitorFirst = Precedence{RoleVisitor, RoleBusiness, RoleAdmin}
	// AdminFirst is the order used by navigation role display.
	AdminFirst = Precedence{RoleAdmin, RoleBusiness, RoleVisitor}
)

// DefaultPrecedence is VisitorFirst.
var DefaultPrecedence = VisitorFirst

// ParsePrecedence accepts "visitor-first", "admin-first" or an explicit comma
// separated list naming every role exactly once.
func ParsePrecedence(s string) (Precedence, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "visitor-first":
		return VisitorFirst, nil
	case "admin-first":
		return AdminFirst, nil
	}

	parts := strings.Split(s, ",")
	order := make(Precedence, 0, len(parts))
	seen := make(map[Role]bool, len(parts))
	for _, p := range parts {
		role, err := ParseRole(p)
		if err != nil {
			return nil, fmt.Errorf("invalid precedence %q: %w", s, err)
		}
		if seen[role] {
			return nil, fmt.Errorf("invalid precedence %q: %s listed twice", s, role)
		}
		seen[role] = true
		order = append(order, role)
	}
	if len(order) != len(Roles) {
		return nil, fmt.Errorf("invalid precedence %q: must name all of visitor, business, admin", s)
	}
	return order, nil
}

func (p Precedence) String() string {
	names := make([]string, len(p))
	for i, r := range p {
		names[i] = string(r)
	}
	return strings.Join(names, ",")
}
