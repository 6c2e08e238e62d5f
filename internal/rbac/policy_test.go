package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/voltparts/storefront/internal/auth"
	"github.com/voltparts/storefront/internal/roles"
)

func signedIn(role roles.Role) auth.State {
	return auth.State{User: &auth.Identity{ID: 1, Email: "a@example.com"}, Role: role}
}

func TestEvaluateLoadingSuppressesNavigation(t *testing.T) {
	d := NewPolicy(Admin()).Evaluate(auth.State{Loading: true})
	assert.Equal(t, Loading, d.Outcome)
	assert.Empty(t, d.Redirect)
}

func TestEvaluateUnauthenticatedRedirects(t *testing.T) {
	d := NewPolicy().Evaluate(auth.State{})
	assert.Equal(t, Denied, d.Outcome)
	assert.Equal(t, ReasonUnauthenticated, d.Reason)
	assert.Equal(t, LoginPath, d.Redirect)

	d = NewPolicy(RedirectTo("/signin")).Evaluate(auth.State{})
	assert.Equal(t, "/signin", d.Redirect)
}

func TestEvaluatePublicAdmitsAnonymous(t *testing.T) {
	assert.Equal(t, Allowed, NewPolicy(Public()).Evaluate(auth.State{}).Outcome)
}

func TestEvaluateRoleMembership(t *testing.T) {
	d := NewPolicy(Admin()).Evaluate(signedIn(roles.RoleCustomer))
	assert.Equal(t, Denied, d.Outcome)
	assert.Equal(t, ReasonRole, d.Reason)
	assert.Equal(t, HomePath, d.Redirect)

	assert.Equal(t, Allowed, NewPolicy(Admin()).Evaluate(signedIn(roles.RoleAdmin)).Outcome)
	assert.Equal(t, Allowed, NewPolicy(Admin()).Evaluate(signedIn(roles.RoleSuperAdmin)).Outcome)
	assert.Equal(t, Denied, NewPolicy(SuperAdmin()).Evaluate(signedIn(roles.RoleAdmin)).Outcome)
	assert.Equal(t, Allowed, NewPolicy(Customer()).Evaluate(signedIn(roles.RoleCustomer)).Outcome)
}

func TestEvaluateMissingRoleSkipsRoleGate(t *testing.T) {
	assert.Equal(t, Allowed, NewPolicy(Customer()).Evaluate(signedIn(roles.RoleNone)).Outcome)
	assert.Equal(t, Allowed, NewPolicy(Admin()).Evaluate(signedIn(roles.RoleNone)).Outcome)
	assert.Equal(t, Allowed, NewPolicy().Evaluate(signedIn(roles.RoleNone)).Outcome)

	// Public subtrees admit anonymous callers even behind a role set.
	assert.Equal(t, Allowed, NewPolicy(Public(), Admin()).Evaluate(auth.State{}).Outcome)
}

func TestEvaluateMissingRoleStillNeedsPermissions(t *testing.T) {
	d := NewPolicy(Admin(), RequirePermissions(roles.PermCatalogRead)).Evaluate(signedIn(roles.RoleNone))
	assert.Equal(t, Denied, d.Outcome)
	assert.Equal(t, ReasonPermission, d.Reason)
	assert.Equal(t, HomePath, d.Redirect)

	d = NewPolicy(Customer(), RequirePermissions(roles.PermOrdersCreate)).Evaluate(signedIn(roles.RoleNone))
	assert.Equal(t, Denied, d.Outcome)
	assert.Equal(t, ReasonPermission, d.Reason)
}

func TestEvaluatePermissionsAreAllRequired(t *testing.T) {
	// Customers hold orders:create but not products:create.
	p := NewPolicy(RequirePermissions(roles.PermOrdersCreate, roles.PermProductsCreate))
	d := p.Evaluate(signedIn(roles.RoleCustomer))
	assert.Equal(t, Denied, d.Outcome)
	assert.Equal(t, ReasonPermission, d.Reason)
	assert.Equal(t, HomePath, d.Redirect)

	assert.Equal(t, Allowed, p.Evaluate(signedIn(roles.RoleAdmin)).Outcome)
}

func TestEvaluateAnyPermission(t *testing.T) {
	p := NewPolicy(AnyPermission(roles.PermUsersUpdate, roles.PermProductsCreate))
	assert.Equal(t, Allowed, p.Evaluate(signedIn(roles.RoleAdmin)).Outcome)

	d := p.Evaluate(signedIn(roles.RoleCustomer))
	assert.Equal(t, Denied, d.Outcome)
	assert.Equal(t, ReasonPermission, d.Reason)

	both := NewPolicy(RequirePermissions(roles.PermCatalogRead), AnyPermission(roles.PermUsersUpdate))
	assert.Equal(t, Denied, both.Evaluate(signedIn(roles.RoleAdmin)).Outcome)
	assert.Equal(t, Allowed, both.Evaluate(signedIn(roles.RoleSuperAdmin)).Outcome)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "loading", Loading.String())
	assert.Equal(t, "denied", Denied.String())
	assert.Equal(t, "allowed", Allowed.String())
	assert.Equal(t, "unknown", Outcome(9).String())
}
