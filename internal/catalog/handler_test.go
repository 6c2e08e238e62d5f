package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voltparts/storefront/internal/auth"
	"github.com/voltparts/storefront/internal/crud"
	"github.com/voltparts/storefront/internal/platform/httpx"
	"github.com/voltparts/storefront/internal/rbac"
	"github.com/voltparts/storefront/internal/roles"
	"github.com/voltparts/storefront/internal/shared"
)

type testEnv struct {
	service  *Service
	router   http.Handler
	sessions *shared.SessionManager
	client   *redis.Client
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	storage := crud.NewRedisStorage(client, "store:")
	svc, err := NewService(context.Background(), storage, shared.FlashNotifier{}, 8)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(logger, svc, rbac.Middleware{Logger: logger})
	r := chi.NewRouter()
	r.Route("/api/catalog", h.MountPublicRoutes)
	r.Route("/admin", h.MountAdminRoutes)
	r.Route("/api/favorites", h.MountFavoriteRoutes)

	return &testEnv{
		service:  svc,
		router:   r,
		sessions: shared.NewSessionManager(client, "test_session", 0, false),
		client:   client,
	}
}

// do runs a JSON request as a caller signed in with role. An empty role
// means an anonymous caller.
func (e *testEnv) do(t *testing.T, role roles.Role, userID int64, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	sess, err := e.sessions.Load(req.Context(), req)
	require.NoError(t, err)
	authSess := auth.NewSession()
	if role == roles.RoleNone {
		authSess.Resolve(nil, nil)
	} else {
		sess.SetUser(strconv.FormatInt(userID, 10))
		authSess.Resolve(&auth.Identity{ID: userID, Email: "user@example.com"}, &auth.Profile{UserID: userID, Role: string(role)})
	}
	ctx := shared.ContextWithSession(req.Context(), sess)
	ctx = auth.WithSession(ctx, authSess)

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req.WithContext(ctx))
	return rec
}

func (e *testEnv) seed(t *testing.T) (Category, Brand, Product) {
	t.Helper()
	ctx := context.Background()
	cat, err := e.service.Categories.Create(ctx, Category{Name: "Sensors", Slug: "sensors"})
	require.NoError(t, err)
	brand, err := e.service.Brands.Create(ctx, Brand{Name: "Bosch", Country: "DE"})
	require.NoError(t, err)
	product, err := e.service.Products.Create(ctx, Product{
		Name: "Widget sensor", SKU: "WS-1", CategoryID: cat.ID, BrandID: brand.ID,
		Price: 12.5, Cost: 7.25, Stock: 4, Active: true,
	})
	require.NoError(t, err)
	_, err = e.service.Products.Create(ctx, Product{
		Name: "Gadget relay", SKU: "GR-1", CategoryID: cat.ID, BrandID: brand.ID,
		Price: 3, Cost: 1, Stock: 0, Active: false,
	})
	require.NoError(t, err)
	return cat, brand, product
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestPublicProductsHideCostAndInactive(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)

	rec := env.do(t, roles.RoleNone, 0, http.MethodGet, "/api/catalog/products", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[map[string]any](t, rec)
	items := body["items"].([]any)
	require.Len(t, items, 1)
	item := items[0].(map[string]any)
	assert.Equal(t, "Widget sensor", item["name"])
	assert.NotContains(t, item, "cost")
}

func TestAdminSeesCostThroughPublicCatalog(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)

	rec := env.do(t, roles.RoleAdmin, 1, http.MethodGet, "/api/catalog/products?search=WIDGET", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[map[string]any](t, rec)
	items := body["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, 7.25, items[0].(map[string]any)["cost"])
}

func TestPublicProductFilters(t *testing.T) {
	env := newTestEnv(t)
	cat, _, _ := env.seed(t)

	rec := env.do(t, roles.RoleAdmin, 1, http.MethodGet, "/api/catalog/products?active=false&category_id="+strconv.FormatInt(cat.ID, 10), "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	items := body["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "Gadget relay", items[0].(map[string]any)["name"])

	rec = env.do(t, roles.RoleNone, 0, http.MethodGet, "/api/catalog/products/2", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminCreateRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)
	payload := `{"name":"Cables","slug":"cables"}`

	rec := env.do(t, roles.RoleNone, 0, http.MethodPost, "/admin/categories", payload)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, rbac.LoginPath, rec.Header().Get("Location"))

	rec = env.do(t, roles.RoleCustomer, 5, http.MethodPost, "/admin/categories", payload)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, rbac.HomePath, rec.Header().Get("Location"))

	rec = env.do(t, roles.RoleAdmin, 1, http.MethodPost, "/admin/categories", payload)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[Category](t, rec)
	assert.Equal(t, int64(1), created.ID)
	assert.Equal(t, "Cables", created.Name)
}

func TestAdminCreateValidates(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)

	rec := env.do(t, roles.RoleAdmin, 1, http.MethodPost, "/admin/products", `{"name":"","sku":"X","category_id":99,"brand_id":1}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Contains(t, body["errors"], "name")

	rec = env.do(t, roles.RoleAdmin, 1, http.MethodPost, "/admin/products", `{"name":"Fuse","sku":"F-1","category_id":99,"brand_id":1}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body = decode[map[string]any](t, rec)
	assert.Equal(t, map[string]any{"category_id": "unknown category"}, body["errors"])
}

func TestAdminUpdateAndDelete(t *testing.T) {
	env := newTestEnv(t)
	cat, _, product := env.seed(t)
	target := "/admin/products/" + strconv.FormatInt(product.ID, 10)

	rec := env.do(t, roles.RoleAdmin, 1, http.MethodPatch, target, `{"price":14,"id":77}`)
	require.Equal(t, http.StatusOK, rec.Code)
	updated := decode[Product](t, rec)
	assert.Equal(t, product.ID, updated.ID)
	assert.Equal(t, 14.0, updated.Price)
	assert.Equal(t, "Widget sensor", updated.Name)

	rec = env.do(t, roles.RoleAdmin, 1, http.MethodPatch, "/admin/products/999", `{"price":1}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, roles.RoleAdmin, 1, http.MethodDelete, "/admin/categories/"+strconv.FormatInt(cat.ID, 10), "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, roles.RoleAdmin, 1, http.MethodDelete, target, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 1, env.service.Products.Len())
}

func TestFavoritesArePerCustomer(t *testing.T) {
	env := newTestEnv(t)
	_, _, product := env.seed(t)
	payload := `{"product_id":` + strconv.FormatInt(product.ID, 10) + `}`

	rec := env.do(t, roles.RoleNone, 0, http.MethodGet, "/api/favorites/", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, roles.RoleCustomer, 10, http.MethodPost, "/api/favorites/", payload)
	require.Equal(t, http.StatusCreated, rec.Code)
	fav := decode[Favorite](t, rec)
	assert.Equal(t, int64(1), fav.ID)

	rec = env.do(t, roles.RoleCustomer, 10, http.MethodPost, "/api/favorites/", payload)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, roles.RoleCustomer, 10, http.MethodPost, "/api/favorites/", `{"product_id":2}`)
	assert.Equal(t, http.StatusNotFound, rec.Code, "inactive products cannot be bookmarked")

	rec = env.do(t, roles.RoleCustomer, 11, http.MethodGet, "/api/favorites/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, decode[map[string]any](t, rec)["total"])

	rec = env.do(t, roles.RoleCustomer, 10, http.MethodGet, "/api/favorites/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	items := body["items"].([]any)
	require.Len(t, items, 1)
	embedded := items[0].(map[string]any)["product"].(map[string]any)
	assert.Equal(t, "Widget sensor", embedded["name"])
	assert.NotContains(t, embedded, "cost")

	stored, err := env.client.Get(context.Background(), "store:favorites:10").Result()
	require.NoError(t, err)
	assert.Contains(t, stored, `"product_id":1`)

	rec = env.do(t, roles.RoleCustomer, 10, http.MethodDelete, "/api/favorites/1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = env.do(t, roles.RoleCustomer, 10, http.MethodDelete, "/api/favorites/1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMutationsQueueFlashMessages(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := env.sessions.Load(req.Context(), req)
	require.NoError(t, err)
	ctx := shared.ContextWithSession(req.Context(), sess)

	_, err = env.service.Categories.Create(ctx, Category{Name: "Tools", Slug: "tools"})
	require.NoError(t, err)
	assert.Equal(t, []shared.FlashMessage{{Kind: "success", Message: "Category created"}}, sess.PopFlashes())
}

func TestFavoritesAddIsAtomic(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	var added, duplicates int
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.service.Favorites.Add(ctx, 30, 4)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				added++
			case errors.Is(err, httpx.ErrDuplicate):
				duplicates++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, added)
	assert.Equal(t, 7, duplicates)
	favs, err := env.service.Favorites.List(ctx, 30)
	require.NoError(t, err)
	assert.Len(t, favs, 1)
}

func TestAdminUpdateValidatesMergedItem(t *testing.T) {
	env := newTestEnv(t)
	_, _, product := env.seed(t)
	target := "/admin/products/" + strconv.FormatInt(product.ID, 10)

	rec := env.do(t, roles.RoleAdmin, 1, http.MethodPatch, target, `{"name":""}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[map[string]any](t, rec)["errors"], "name")

	rec = env.do(t, roles.RoleAdmin, 1, http.MethodPatch, target, `{"category_id":404}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	current, err := env.service.Products.Get(product.ID)
	require.NoError(t, err)
	assert.Equal(t, product.Name, current.Name)
	assert.Equal(t, product.CategoryID, current.CategoryID)
}
