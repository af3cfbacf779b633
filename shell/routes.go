package shell

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/upb/jaffa-explorer/session"
)

// Access says who may open a route.
type Access int

const (
	AccessPublic Access = iota
	AccessAnyRole
	AccessRole
)

func (a Access) String() string {
	switch a {
	case AccessAnyRole:
		return "signed-in"
	case AccessRole:
		return "role"
	default:
		return "public"
	}
}

// Route is one front-end page.
type Route struct {
	Pattern string
	Page    string
	Access  Access
	Role    session.Role // AccessRole only
}

// LoginPath is where a user without access to the route is sent.
func (r Route) LoginPath() string {
	if r.Access == AccessRole {
		return r.Role.LoginPath()
	}
	return session.RoleVisitor.LoginPath()
}

// Allows reports whether the route may be opened given the signed-in
// session and the per-role slot states.
func (r Route) Allows(sess session.Session, states map[session.Role]session.State) bool {
	switch r.Access {
	case AccessAnyRole:
		return sess.Authenticated
	case AccessRole:
		return states[r.Role] == session.StateActive
	default:
		return true
	}
}

// DefaultRoutes are the Jaffa Explorer pages.
var DefaultRoutes = []Route{
	{Pattern: "/", Page: "home"},
	{Pattern: "/about", Page: "about"},
	{Pattern: "/feed", Page: "feed"},
	{Pattern: "/sales", Page: "sales"},
	{Pattern: "/business-directory", Page: "business-directory"},
	{Pattern: "/contact", Page: "contact"},
	{Pattern: "/yaffabot", Page: "yaffabot"},
	{Pattern: "/login/visitor", Page: "visitor-login"},
	{Pattern: "/login/business", Page: "business-login"},
	{Pattern: "/login/admin", Page: "admin-login"},
	{Pattern: "/register/visitor", Page: "visitor-register"},
	{Pattern: "/register/business", Page: "business-register"},
	{Pattern: "/forgot-password", Page: "forgot-password"},
	{Pattern: "/reset-password/{uid}/{token}", Page: "reset-password"},
	{Pattern: "/verify-success", Page: "verify-success"},
	{Pattern: "/verify-failed", Page: "verify-failed"},

	{Pattern: "/profile/visitor", Page: "visitor-profile", Access: AccessRole, Role: session.RoleVisitor},
	{Pattern: "/create-post", Page: "create-post", Access: AccessRole, Role: session.RoleVisitor},
	{Pattern: "/edit-post/{id}", Page: "edit-post", Access: AccessRole, Role: session.RoleVisitor},
	{Pattern: "/offers", Page: "offers", Access: AccessRole, Role: session.RoleVisitor},
	{Pattern: "/my-redemptions", Page: "my-redemptions", Access: AccessRole, Role: session.RoleVisitor},

	{Pattern: "/profile/business", Page: "business-profile", Access: AccessRole, Role: session.RoleBusiness},
	{Pattern: "/dashboard/business", Page: "business-dashboard", Access: AccessRole, Role: session.RoleBusiness},

	{Pattern: "/admin", Page: "admin-panel", Access: AccessRole, Role: session.RoleAdmin},
	{Pattern: "/admin-dashboard", Page: "admin-dashboard", Access: AccessRole, Role: session.RoleAdmin},

	{Pattern: "/rate", Page: "rate", Access: AccessAnyRole},
}

// Table matches paths against routes. Patterns use chi syntax.
type Table struct {
	mux       *chi.Mux
	routes    []Route
	byPattern map[string]Route
}

// NewTable builds a table. Duplicate patterns and role routes without a
// valid role are rejected.
func NewTable(routes []Route) (*Table, error) {
	t := &Table{
		mux:       chi.NewRouter(),
		routes:    make([]Route, 0, len(routes)),
		byPattern: make(map[string]Route, len(routes)),
	}
	noop := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})

	for _, r := range routes {
		if !strings.HasPrefix(r.Pattern, "/") {
			return nil, fmt.Errorf("route %q: pattern must start with /", r.Pattern)
		}
		if r.Access == AccessRole && !r.Role.Valid() {
			return nil, fmt.Errorf("route %q: invalid role %q", r.Pattern, r.Role)
		}
		if _, dup := t.byPattern[r.Pattern]; dup {
			return nil, fmt.Errorf("route %q: duplicate pattern", r.Pattern)
		}
		t.byPattern[r.Pattern] = r
		t.routes = append(t.routes, r)
		t.mux.Get(r.Pattern, noop)
	}
	return t, nil
}

// Routes returns the routes in registration order.
func (t *Table) Routes() []Route {
	return append([]Route(nil), t.routes...)
}

// Match finds the route for path. A trailing slash is ignored.
func (t *Table) Match(path string) (Route, map[string]string, bool) {
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	if path == "" {
		path = "/"
	}

	rctx := chi.NewRouteContext()
	if !t.mux.Match(rctx, http.MethodGet, path) || len(rctx.RoutePatterns) == 0 {
		return Route{}, nil, false
	}
	route, ok := t.byPattern[rctx.RoutePatterns[len(rctx.RoutePatterns)-1]]
	if !ok {
		return Route{}, nil, false
	}

	params := make(map[string]string, len(rctx.URLParams.Keys))
	for i, key := range rctx.URLParams.Keys {
		params[key] = rctx.URLParams.Values[i]
	}
	return route, params, true
}
