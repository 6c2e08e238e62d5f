package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/voltparts/storefront/internal/auth"
	"github.com/voltparts/storefront/internal/catalog"
	"github.com/voltparts/storefront/internal/checkout"
	"github.com/voltparts/storefront/internal/observability"
	"github.com/voltparts/storefront/internal/platform/httpx"
	roleshttp "github.com/voltparts/storefront/internal/roles/http"
	"github.com/voltparts/storefront/internal/shared"
	"github.com/voltparts/storefront/internal/users"
	"github.com/voltparts/storefront/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	SessionManager  *shared.SessionManager
	CSRFManager     *shared.CSRFManager
	AuthLoader      auth.Loader
	AuthHandler     *auth.Handler
	CatalogHandler  *catalog.Handler
	UsersHandler    *users.Handler
	RolesHandler    *roleshttp.Handler
	CheckoutHandler *checkout.Handler
	JobHandler      *jobs.Handler
	Metrics         *observability.Metrics
}

// NewRouter constructs the chi.Router with storefront defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		for _, mw := range MiddlewareStack(MiddlewareConfig{
			Logger:         params.Logger,
			Config:         params.Config,
			SessionManager: params.SessionManager,
			CSRFManager:    params.CSRFManager,
			AuthLoader:     params.AuthLoader,
			Metrics:        params.Metrics,
		}) {
			r.Use(mw)
		}
		r.Use(chimw.Logger)

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			httpx.JSON(w, http.StatusOK, map[string]any{
				"name": "storefront",
				"auth": auth.ViewOf(auth.StateFromContext(r.Context())),
			})
		})

		r.Route("/auth", params.AuthHandler.MountRoutes)
		if params.CatalogHandler != nil {
			r.Route("/api/catalog", params.CatalogHandler.MountPublicRoutes)
			r.Route("/api/favorites", params.CatalogHandler.MountFavoriteRoutes)
		}
		if params.CheckoutHandler != nil {
			r.Route("/api/checkout", params.CheckoutHandler.MountRoutes)
		}
		r.Route("/admin", func(r chi.Router) {
			if params.CatalogHandler != nil {
				params.CatalogHandler.MountAdminRoutes(r)
			}
			if params.UsersHandler != nil {
				r.Route("/users", params.UsersHandler.MountRoutes)
			}
			if params.RolesHandler != nil {
				r.Route("/roles", params.RolesHandler.MountRoutes)
			}
		})
		if params.JobHandler != nil {
			r.Route("/jobs", params.JobHandler.MountRoutes)
		}
	})

	return r
}
