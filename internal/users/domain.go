package users

import (
	"time"

	"github.com/voltparts/storefront/internal/roles"
)

// User is an account as listed in the back office.
type User struct {
	ID        int64      `json:"id"`
	Email     string     `json:"email"`
	FullName  string     `json:"full_name"`
	Role      roles.Role `json:"role"`
	IsActive  bool       `json:"is_active"`
	CreatedAt time.Time  `json:"created_at"`
}

// UserView decorates a User with its role's display attributes.
type UserView struct {
	User
	RoleLabel string        `json:"role_label"`
	Variant   roles.Variant `json:"variant"`
}

func viewOf(u User) UserView {
	view := UserView{User: u, RoleLabel: "Sin rol"}
	if cfg, ok := roles.ConfigFor(u.Role); ok {
		view.RoleLabel = cfg.Label
		view.Variant = cfg.Variant
	}
	return view
}

// RoleChange is the outcome of ChangeRole.
type RoleChange struct {
	UserID   int64      `json:"user_id"`
	Previous roles.Role `json:"previous"`
	Current  roles.Role `json:"current"`
}
