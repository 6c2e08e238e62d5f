package catalog

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/voltparts/storefront/internal/crud"
	"github.com/voltparts/storefront/internal/filter"
	"github.com/voltparts/storefront/internal/platform/httpx"
	"github.com/voltparts/storefront/internal/rbac"
	"github.com/voltparts/storefront/internal/roles"
	"github.com/voltparts/storefront/internal/shared"
)

// Handler exposes the catalog over HTTP.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler constructs a catalog handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, rbac: rbac}
}

type listResponse[T any] struct {
	Items []T          `json:"items"`
	Total int          `json:"total"`
	Query filter.Query `json:"query"`
}

// productView hides the purchase cost from callers outside the back office.
type productView struct {
	Product
	Cost *float64 `json:"cost,omitempty"`
}

func presentProduct(ctx context.Context, p Product) productView {
	view := productView{Product: p}
	if rbac.Visible(ctx, rbac.Admin()) {
		cost := p.Cost
		view.Cost = &cost
	}
	return view
}

func presentAs[T any](_ context.Context, item T) T { return item }

// MountPublicRoutes registers the storefront catalog, readable by anyone.
func (h *Handler) MountPublicRoutes(r chi.Router) {
	r.Get("/categories", listHandler(h, h.service.Categories, categoryFilters, presentAs[Category]))
	r.Get("/categories/{id}", getHandler(h, h.service.Categories, presentAs[Category]))
	r.Get("/brands", listHandler(h, h.service.Brands, brandFilters, presentAs[Brand]))
	r.Get("/brands/{id}", getHandler(h, h.service.Brands, presentAs[Brand]))
	r.Get("/products", h.listPublicProducts)
	r.Get("/products/{id}", h.showPublicProduct)
}

// MountAdminRoutes registers the catalog dashboard.
func (h *Handler) MountAdminRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAdmin(rbac.RequirePermissions(roles.PermCatalogRead)))
		r.Get("/categories", listHandler(h, h.service.Categories, categoryFilters, presentAs[Category]))
		r.Get("/categories/{id}", getHandler(h, h.service.Categories, presentAs[Category]))
		r.Get("/brands", listHandler(h, h.service.Brands, brandFilters, presentAs[Brand]))
		r.Get("/brands/{id}", getHandler(h, h.service.Brands, presentAs[Brand]))
		r.Get("/products", listHandler(h, h.service.Products, productFilters, presentAs[Product]))
		r.Get("/products/{id}", getHandler(h, h.service.Products, presentAs[Product]))
	})

	r.With(h.rbac.RequireAdmin(rbac.RequirePermissions(roles.PermCategoriesCreate))).
		Post("/categories", createHandler(h, h.service.Categories))
	r.With(h.rbac.RequireAdmin(rbac.RequirePermissions(roles.PermCategoriesUpdate))).
		Patch("/categories/{id}", updateHandler(h, h.service.Categories))
	r.With(h.rbac.RequireAdmin(rbac.RequirePermissions(roles.PermCategoriesDelete))).
		Delete("/categories/{id}", deleteHandler(h, h.service.DeleteCategory))

	r.With(h.rbac.RequireAdmin(rbac.RequirePermissions(roles.PermBrandsCreate))).
		Post("/brands", createHandler(h, h.service.Brands))
	r.With(h.rbac.RequireAdmin(rbac.RequirePermissions(roles.PermBrandsUpdate))).
		Patch("/brands/{id}", updateHandler(h, h.service.Brands))
	r.With(h.rbac.RequireAdmin(rbac.RequirePermissions(roles.PermBrandsDelete))).
		Delete("/brands/{id}", deleteHandler(h, h.service.DeleteBrand))

	r.With(h.rbac.RequireAdmin(rbac.RequirePermissions(roles.PermProductsCreate))).
		Post("/products", createHandler(h, h.service.Products))
	r.With(h.rbac.RequireAdmin(rbac.RequirePermissions(roles.PermProductsUpdate))).
		Patch("/products/{id}", updateHandler(h, h.service.Products))
	r.With(h.rbac.RequireAdmin(rbac.RequirePermissions(roles.PermProductsDelete))).
		Delete("/products/{id}", deleteHandler(h, h.service.Products.Delete))
}

// MountFavoriteRoutes registers the signed-in customer's favorites.
func (h *Handler) MountFavoriteRoutes(r chi.Router) {
	r.With(h.rbac.RequireCustomer(rbac.RequirePermissions(roles.PermFavoritesRead))).Get("/", h.listFavorites)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireCustomer(rbac.RequirePermissions(roles.PermFavoritesWrite)))
		r.Post("/", h.addFavorite)
		r.Delete("/{id}", h.removeFavorite)
	})
}

func (h *Handler) listPublicProducts(w http.ResponseWriter, r *http.Request) {
	q := filter.QueryFromRequest(r, productFilters...)
	admin := rbac.Visible(r.Context(), rbac.Admin())
	if !admin {
		if q.Filters == nil {
			q.Filters = map[string]string{}
		}
		q.Filters["active"] = "true"
	}
	items := h.service.Products.List(q)
	out := make([]productView, 0, len(items))
	for _, p := range items {
		out = append(out, presentProduct(r.Context(), p))
	}
	httpx.JSON(w, http.StatusOK, listResponse[productView]{Items: out, Total: len(out), Query: q})
}

func (h *Handler) showPublicProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	p, err := h.service.Products.Get(id)
	if err == nil && !p.Active && !rbac.Visible(r.Context(), rbac.Admin()) {
		err = httpx.ErrNotFound
	}
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, presentProduct(r.Context(), p))
}

type favoriteView struct {
	Favorite
	Product *productView `json:"product,omitempty"`
}

type favoriteForm struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
}

func (h *Handler) listFavorites(w http.ResponseWriter, r *http.Request) {
	userID, ok := shared.SessionUserID(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	favs, err := h.service.Favorites.List(r.Context(), userID)
	if err != nil {
		h.logger.Error("list favorites failed", slog.Any("error", err), slog.Int64("user_id", userID))
		httpx.RespondError(w, err)
		return
	}
	out := make([]favoriteView, 0, len(favs))
	for _, fav := range favs {
		view := favoriteView{Favorite: fav}
		if p, err := h.service.Products.Get(fav.ProductID); err == nil {
			pv := presentProduct(r.Context(), p)
			view.Product = &pv
		}
		out = append(out, view)
	}
	httpx.JSON(w, http.StatusOK, listResponse[favoriteView]{Items: out, Total: len(out)})
}

func (h *Handler) addFavorite(w http.ResponseWriter, r *http.Request) {
	userID, ok := shared.SessionUserID(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	var form favoriteForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := httpx.Validate(h.service.validate, form); err != nil {
		httpx.RespondError(w, err)
		return
	}
	fav, err := h.service.AddFavorite(r.Context(), userID, form.ProductID)
	if err != nil {
		h.logger.Warn("add favorite failed", slog.Any("error", err), slog.Int64("user_id", userID))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, fav)
}

func (h *Handler) removeFavorite(w http.ResponseWriter, r *http.Request) {
	userID, ok := shared.SessionUserID(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	if err := h.service.Favorites.Remove(r.Context(), userID, id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return 0, false
	}
	return id, true
}

func listHandler[T any, P crud.Entity[T], V any](h *Handler, c *Collection[T, P], keys []string, present func(context.Context, T) V) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := filter.QueryFromRequest(r, keys...)
		items := c.List(q)
		out := make([]V, 0, len(items))
		for _, item := range items {
			out = append(out, present(r.Context(), item))
		}
		httpx.JSON(w, http.StatusOK, listResponse[V]{Items: out, Total: len(out), Query: q})
	}
}

func getHandler[T any, P crud.Entity[T], V any](h *Handler, c *Collection[T, P], present func(context.Context, T) V) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseID(w, r)
		if !ok {
			return
		}
		item, err := c.Get(id)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, present(r.Context(), item))
	}
}

func createHandler[T any, P crud.Entity[T]](h *Handler, c *Collection[T, P]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var item T
		if err := httpx.DecodeJSON(r, &item); err != nil {
			httpx.RespondError(w, err)
			return
		}
		created, err := c.Create(r.Context(), item)
		if err != nil {
			h.logger.Warn("create failed", slog.String("entity", c.name), slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		h.logger.Info("catalog item created", slog.String("entity", c.name), slog.Int64("id", P(&created).Meta().ID))
		httpx.JSON(w, http.StatusCreated, created)
	}
}

func updateHandler[T any, P crud.Entity[T]](h *Handler, c *Collection[T, P]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseID(w, r)
		if !ok {
			return
		}
		patch, err := httpx.ReadBody(r)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		updated, err := c.Update(r.Context(), id, patch)
		if err != nil {
			h.logger.Warn("update failed", slog.String("entity", c.name), slog.Int64("id", id), slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, updated)
	}
}

func deleteHandler(h *Handler, remove func(context.Context, int64) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseID(w, r)
		if !ok {
			return
		}
		if err := remove(r.Context(), id); err != nil {
			h.logger.Warn("delete failed", slog.String("path", r.URL.Path), slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
