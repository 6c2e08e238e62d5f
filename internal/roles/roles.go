// Package roles holds the static role to permission table.
package roles

import "strings"

// Role is the authorization tier of a user. The zero value means no role.
type Role string

// Known roles.
const (
	RoleNone       Role = ""
	RoleCustomer   Role = "cliente"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "superadmin"
)

// Variant is the badge style used when a role is displayed.
type Variant int

// Display variants.
const (
	VariantDefault Variant = iota
	VariantSecondary
	VariantDestructive
)

var variantNames = [...]string{
	VariantDefault:     "default",
	VariantSecondary:   "secondary",
	VariantDestructive: "destructive",
}

// String returns the variant token understood by the front end.
func (v Variant) String() string {
	if v < 0 || int(v) >= len(variantNames) {
		return variantNames[VariantDefault]
	}
	return variantNames[v]
}

// MarshalText encodes the variant as its token.
func (v Variant) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// RoleConfig describes a role for display and authorization.
type RoleConfig struct {
	Label       string       `json:"label"`
	Description string       `json:"description"`
	Variant     Variant      `json:"variant"`
	Permissions []Permission `json:"permissions"`
}

// Has reports whether the permission is granted by the role.
func (c RoleConfig) Has(p Permission) bool {
	for _, granted := range c.Permissions {
		if granted == p {
			return true
		}
	}
	return false
}

var table = map[Role]RoleConfig{
	RoleCustomer: {
		Label:       "Cliente",
		Description: "Browses the catalog, keeps favorites and places orders.",
		Variant:     VariantSecondary,
		Permissions: customerScopes(),
	},
	RoleAdmin: {
		Label:       "Administrador",
		Description: "Manages categories, brands and products.",
		Variant:     VariantDefault,
		Permissions: adminScopes(),
	},
	RoleSuperAdmin: {
		Label:       "Super administrador",
		Description: "Full access including user management.",
		Variant:     VariantDestructive,
		Permissions: superAdminScopes(),
	},
}

var ordered = []Role{RoleCustomer, RoleAdmin, RoleSuperAdmin}

// ConfigFor returns the configuration of a role. A miss means the caller
// must deny.
func ConfigFor(role Role) (RoleConfig, bool) {
	cfg, ok := table[role]
	if !ok {
		return RoleConfig{}, false
	}
	perms := make([]Permission, len(cfg.Permissions))
	copy(perms, cfg.Permissions)
	cfg.Permissions = perms
	return cfg, true
}

// PermissionsFor returns a copy of the permissions granted to role, or nil
// when the role has no configuration.
func PermissionsFor(role Role) []Permission {
	cfg, ok := ConfigFor(role)
	if !ok {
		return nil
	}
	return cfg.Permissions
}

// Grants reports whether role holds permission p.
func Grants(role Role, p Permission) bool {
	cfg, ok := table[role]
	if !ok {
		return false
	}
	return cfg.Has(p)
}

// All lists the assignable roles from least to most privileged.
func All() []Role {
	out := make([]Role, len(ordered))
	copy(out, ordered)
	return out
}

// Parse converts a stored role name. Unknown names yield RoleNone.
func Parse(raw string) (Role, bool) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := table[role]; !ok {
		return RoleNone, false
	}
	return role, true
}

// Contains reports whether role is one of set.
func Contains(set []Role, role Role) bool {
	for _, r := range set {
		if r == role {
			return true
		}
	}
	return false
}
