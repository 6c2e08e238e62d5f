package users

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/voltparts/storefront/internal/filter"
	"github.com/voltparts/storefront/internal/platform/httpx"
	"github.com/voltparts/storefront/internal/rbac"
	"github.com/voltparts/storefront/internal/roles"
	"github.com/voltparts/storefront/internal/shared"
)

// Handler manages user management endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAdmin(rbac.AnyPermission(roles.PermUsersRead, roles.PermUsersUpdate)))
		r.Get("/", h.listUsers)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireSuperAdmin(rbac.RequirePermissions(roles.PermUsersUpdate)))
		r.Patch("/{id}/role", h.changeRole)
	})
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	q := filter.QueryFromRequest(r, userFilters...)
	users, err := h.service.ListUsers(r.Context(), q)
	if err != nil {
		h.logger.Error("list users failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", shared.UserSafeMessage(err))
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"users": users, "total": len(users)})
}

type roleForm struct {
	Role string `json:"role"`
}

func (h *Handler) changeRole(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || userID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid user id")
		return
	}
	actorID, ok := shared.SessionUserID(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	var form roleForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.RespondError(w, err)
		return
	}
	change, err := h.service.ChangeRole(r.Context(), actorID, userID, form.Role)
	if err != nil {
		h.logger.Warn("change role failed", slog.Int64("user_id", userID), slog.Int64("actor_id", actorID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.logger.Info("role changed",
		slog.Int64("user_id", userID),
		slog.Int64("actor_id", actorID),
		slog.String("from", string(change.Previous)),
		slog.String("to", string(change.Current)))
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Role updated"})
	}
	httpx.JSON(w, http.StatusOK, change)
}
