package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/voltparts/storefront/internal/platform/httpx"
	"github.com/voltparts/storefront/internal/roles"
	"github.com/voltparts/storefront/internal/shared"
)

// Forgetter drops cached identity data for a user.
type Forgetter interface {
	Forget(userID int64)
}

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	validator      *validator.Validate
	cache          Forgetter
}

// NewHandler constructs a Handler instance. cache may be nil.
func NewHandler(logger *slog.Logger, service *Service, sessions *shared.SessionManager, csrf *shared.CSRFManager, cache Forgetter) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:         logger,
		service:        service,
		sessionManager: sessions,
		csrfManager:    csrf,
		validator:      httpx.NewValidator(),
		cache:          cache,
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/csrf", h.csrfToken)
	r.Get("/me", h.me)
	r.Post("/login", h.login)
	r.Post("/logout", h.logout)
}

type loginForm struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// StateView is the JSON shape of an authentication context.
type StateView struct {
	Authenticated bool                  `json:"authenticated"`
	Loading       bool                  `json:"loading"`
	User          *Identity             `json:"user,omitempty"`
	Profile       *Profile              `json:"profile,omitempty"`
	Role          roles.Role            `json:"role,omitempty"`
	RoleConfig    *roles.RoleConfig     `json:"role_config,omitempty"`
	Permissions   []roles.Permission    `json:"permissions"`
	Notifications []shared.FlashMessage `json:"notifications,omitempty"`
}

// ViewOf renders a State for clients.
func ViewOf(st State) StateView {
	view := StateView{
		Authenticated: st.Authenticated(),
		Loading:       st.Loading,
		User:          st.User,
		Profile:       st.Profile,
		Role:          st.Role,
		Permissions:   roles.PermissionsFor(st.Role),
	}
	if view.Permissions == nil {
		view.Permissions = []roles.Permission{}
	}
	if cfg, ok := roles.ConfigFor(st.Role); ok {
		view.RoleConfig = &cfg
	}
	return view
}

func (h *Handler) csrfToken(w http.ResponseWriter, r *http.Request) {
	token, err := h.csrfManager.EnsureToken(shared.SessionFromContext(r.Context()))
	if err != nil {
		h.logger.Error("ensure csrf token", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"csrf_token": token})
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	view := ViewOf(StateFromContext(r.Context()))
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		view.Notifications = sess.PopFlashes()
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var form loginForm
	if httpx.WantsJSON(r) {
		if err := httpx.DecodeJSON(r, &form); err != nil {
			httpx.RespondError(w, err)
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "")
			return
		}
		form = loginForm{Email: r.PostFormValue("email"), Password: r.PostFormValue("password")}
	}
	form.Email = strings.TrimSpace(form.Email)
	if err := httpx.Validate(h.validator, form); err != nil {
		httpx.RespondError(w, err)
		return
	}

	user, err := h.service.Authenticate(r.Context(), form.Email, form.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrAccountDisabled):
			h.logger.Info("login on disabled account", slog.String("email", NormalizeEmail(form.Email)))
		case !errors.Is(err, shared.ErrInvalidCredentials):
			h.logger.Error("authenticate", slog.Any("error", err))
		}
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", shared.UserSafeMessage(shared.ErrInvalidCredentials))
		return
	}

	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.logger.Error("session missing during login")
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	h.sessionManager.Renew(sess)
	sess.Delete(shared.CSRFSessionKey)
	sess.SetUser(strconv.FormatInt(user.ID, 10))
	sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Welcome back"})

	expiresAt := time.Now().Add(h.sessionManager.TTL())
	if err := h.service.RegisterSession(r.Context(), sess.ID, user.ID, expiresAt, r.RemoteAddr, r.UserAgent()); err != nil {
		h.logger.Warn("register session", slog.Any("error", err))
	}
	if h.cache != nil {
		h.cache.Forget(user.ID)
	}
	h.logger.Info("user signed in", slog.Int64("user_id", user.ID))

	if !httpx.WantsJSON(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"user":     Identity{ID: user.ID, Email: user.Email},
		"redirect": "/",
	})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		if userID, ok := shared.SessionUserID(r.Context()); ok && h.cache != nil {
			h.cache.Forget(userID)
		}
		if err := h.service.RemoveSession(r.Context(), sess.ID); err != nil {
			h.logger.Warn("remove session", slog.Any("error", err))
		}
		h.sessionManager.Destroy(sess)
	}
	if authSess := FromContext(r.Context()); authSess != nil {
		authSess.Invalidate()
	}
	if !httpx.WantsJSON(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"redirect": "/"})
}
