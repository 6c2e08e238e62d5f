// Package http serves the role table to the back office.
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/voltparts/storefront/internal/platform/httpx"
	"github.com/voltparts/storefront/internal/rbac"
	"github.com/voltparts/storefront/internal/roles"
)

// Handler manages role endpoints.
type Handler struct {
	rbac rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(rbac rbac.Middleware) *Handler {
	return &Handler{rbac: rbac}
}

// MountRoutes registers role routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAdmin(rbac.RequirePermissions(roles.PermRolesRead)))
		r.Get("/", h.listRoles)
		r.Get("/{role}", h.showRole)
	})
}

// RoleView is one row of the role table.
type RoleView struct {
	Role roles.Role `json:"role"`
	roles.RoleConfig
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	all := roles.All()
	out := make([]RoleView, 0, len(all))
	for _, role := range all {
		cfg, _ := roles.ConfigFor(role)
		out = append(out, RoleView{Role: role, RoleConfig: cfg})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": out})
}

func (h *Handler) showRole(w http.ResponseWriter, r *http.Request) {
	role, ok := roles.Parse(chi.URLParam(r, "role"))
	if !ok {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "unknown role")
		return
	}
	cfg, _ := roles.ConfigFor(role)
	httpx.JSON(w, http.StatusOK, RoleView{Role: role, RoleConfig: cfg})
}
