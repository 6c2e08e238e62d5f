// Package rbac gates route subtrees on the caller's authentication context.
package rbac

import (
	"github.com/voltparts/storefront/internal/auth"
	"github.com/voltparts/storefront/internal/roles"
)

// Default navigation targets.
const (
	LoginPath = "/auth/login"
	HomePath  = "/"
)

// Outcome is the observable state of a guard.
type Outcome int

// Guard outcomes.
const (
	Loading Outcome = iota
	Denied
	Allowed
)

func (o Outcome) String() string {
	switch o {
	case Loading:
		return "loading"
	case Denied:
		return "denied"
	case Allowed:
		return "allowed"
	default:
		return "unknown"
	}
}

// Reason explains a Denied outcome.
type Reason string

// Deny reasons.
const (
	ReasonNone            Reason = ""
	ReasonUnauthenticated Reason = "unauthenticated"
	ReasonRole            Reason = "role"
	ReasonPermission      Reason = "permission"
)

// Decision is the result of evaluating a Policy.
type Decision struct {
	Outcome  Outcome
	Reason   Reason
	Redirect string
}

// Policy describes who may reach a route subtree.
type Policy struct {
	RequireAuth         bool
	AllowedRoles        []roles.Role
	RequiredPermissions []roles.Permission
	// AnyPermissions, when set, must share at least one permission with
	// the caller's role.
	AnyPermissions []roles.Permission
	RedirectTo     string
}

// Option customises a Policy.
type Option func(*Policy)

// Public lets unauthenticated callers through the authentication check.
func Public() Option {
	return func(p *Policy) { p.RequireAuth = false }
}

// AllowRoles restricts the subtree to the given roles.
func AllowRoles(rs ...roles.Role) Option {
	return func(p *Policy) { p.AllowedRoles = append(p.AllowedRoles, rs...) }
}

// RequirePermissions demands every listed permission.
func RequirePermissions(perms ...roles.Permission) Option {
	return func(p *Policy) { p.RequiredPermissions = append(p.RequiredPermissions, perms...) }
}

// AnyPermission demands at least one of perms.
func AnyPermission(perms ...roles.Permission) Option {
	return func(p *Policy) { p.AnyPermissions = append(p.AnyPermissions, perms...) }
}

// RedirectTo sets where unauthenticated callers are sent.
func RedirectTo(path string) Option {
	return func(p *Policy) { p.RedirectTo = path }
}

// NewPolicy builds a Policy. Authentication is required and unauthenticated
// callers go to LoginPath unless options say otherwise.
func NewPolicy(opts ...Option) Policy {
	p := Policy{RequireAuth: true, RedirectTo: LoginPath}
	for _, opt := range opts {
		opt(&p)
	}
	if p.RedirectTo == "" {
		p.RedirectTo = LoginPath
	}
	return p
}

// Evaluate decides the outcome for st. It has no side effects.
func (p Policy) Evaluate(st auth.State) Decision {
	if st.Loading {
		return Decision{Outcome: Loading}
	}
	if p.RequireAuth && !st.Authenticated() {
		return Decision{Outcome: Denied, Reason: ReasonUnauthenticated, Redirect: p.RedirectTo}
	}
	// Only a populated role is checked against the set; a role-less user
	// falls through to the permission check.
	if len(p.AllowedRoles) > 0 && st.Role != roles.RoleNone && !roles.Contains(p.AllowedRoles, st.Role) {
		return Decision{Outcome: Denied, Reason: ReasonRole, Redirect: HomePath}
	}
	for _, perm := range p.RequiredPermissions {
		if !st.HasPermission(perm) {
			return Decision{Outcome: Denied, Reason: ReasonPermission, Redirect: HomePath}
		}
	}
	if len(p.AnyPermissions) > 0 && !holdsAny(st, p.AnyPermissions) {
		return Decision{Outcome: Denied, Reason: ReasonPermission, Redirect: HomePath}
	}
	return Decision{Outcome: Allowed}
}

func holdsAny(st auth.State, perms []roles.Permission) bool {
	for _, perm := range perms {
		if st.HasPermission(perm) {
			return true
		}
	}
	return false
}

// Admin admits administrators and super administrators.
func Admin() Option {
	return AllowRoles(roles.RoleAdmin, roles.RoleSuperAdmin)
}

// SuperAdmin admits super administrators only.
func SuperAdmin() Option {
	return AllowRoles(roles.RoleSuperAdmin)
}

// Customer admits any signed-in role.
func Customer() Option {
	return AllowRoles(roles.RoleCustomer, roles.RoleAdmin, roles.RoleSuperAdmin)
}
