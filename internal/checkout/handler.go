package checkout

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/voltparts/storefront/internal/platform/httpx"
	"github.com/voltparts/storefront/internal/rbac"
	"github.com/voltparts/storefront/internal/roles"
	"github.com/voltparts/storefront/internal/shared"
)

// IdempotencyHeader carries the client's retry key.
const IdempotencyHeader = "Idempotency-Key"

// Handler exposes checkout over HTTP.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler constructs a checkout handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers checkout routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireCustomer(rbac.RequirePermissions(roles.PermOrdersCreate)))
		r.Post("/paypal", h.createPayPalOrder)
		r.Post("/paypal/{orderID}/capture", h.capturePayPalOrder)
	})
}

func (h *Handler) createPayPalOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := shared.SessionUserID(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	var req Request
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	key := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
	created, err := h.service.CreateOrder(r.Context(), userID, req, key)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, created)
}

func (h *Handler) capturePayPalOrder(w http.ResponseWriter, r *http.Request) {
	captured, err := h.service.CaptureOrder(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, captured)
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotConfigured):
		httpx.Problem(w, http.StatusInternalServerError, "Payment Unavailable", "PayPal is not configured.")
	case errors.Is(err, ErrProvider):
		httpx.Problem(w, http.StatusInternalServerError, "Payment Failed", "PayPal could not process the order. Please try again.")
	default:
		httpx.RespondError(w, err)
	}
}
