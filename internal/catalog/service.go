// Package catalog serves the storefront catalog, the admin catalog dashboard
// and customer favorites.
package catalog

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/voltparts/storefront/internal/crud"
	"github.com/voltparts/storefront/internal/platform/httpx"
)

// Store keys.
const (
	categoriesKey = "categories"
	brandsKey     = "brands"
	productsKey   = "products"
)

// Service owns the catalog collections.
type Service struct {
	Categories *Collection[Category, *Category]
	Brands     *Collection[Brand, *Brand]
	Products   *Collection[Product, *Product]
	Favorites  *Favorites

	validate *validator.Validate
}

// NewService loads every catalog collection from storage. notifier may be nil.
func NewService(ctx context.Context, storage crud.Storage, notifier crud.Notifier, favoriteCacheSize int) (*Service, error) {
	v := httpx.NewValidator()

	categories, err := newCollection[Category, *Category](ctx, "Category", categoriesKey, storage, notifier, categorySpec, v)
	if err != nil {
		return nil, err
	}
	brands, err := newCollection[Brand, *Brand](ctx, "Brand", brandsKey, storage, notifier, brandSpec, v)
	if err != nil {
		return nil, err
	}
	products, err := newCollection[Product, *Product](ctx, "Product", productsKey, storage, notifier, productSpec, v)
	if err != nil {
		return nil, err
	}
	favorites, err := NewFavorites(storage, notifier, favoriteCacheSize)
	if err != nil {
		return nil, err
	}

	s := &Service{Categories: categories, Brands: brands, Products: products, Favorites: favorites, validate: v}
	products.check = s.checkProductRefs
	return s, nil
}

func (s *Service) checkProductRefs(p Product) error {
	fields := httpx.FieldErrors{}
	if !s.Categories.Exists(p.CategoryID) {
		fields["category_id"] = "unknown category"
	}
	if !s.Brands.Exists(p.BrandID) {
		fields["brand_id"] = "unknown brand"
	}
	if len(fields) > 0 {
		return fields
	}
	return nil
}

// DeleteCategory removes a category that no product references.
func (s *Service) DeleteCategory(ctx context.Context, id int64) error {
	for _, p := range s.Products.store.List() {
		if p.CategoryID == id {
			return fmt.Errorf("category %d is used by product %d: %w", id, p.ID, httpx.ErrConflict)
		}
	}
	return s.Categories.Delete(ctx, id)
}

// DeleteBrand removes a brand that no product references.
func (s *Service) DeleteBrand(ctx context.Context, id int64) error {
	for _, p := range s.Products.store.List() {
		if p.BrandID == id {
			return fmt.Errorf("brand %d is used by product %d: %w", id, p.ID, httpx.ErrConflict)
		}
	}
	return s.Brands.Delete(ctx, id)
}

// AddFavorite bookmarks an existing, active product for userID.
func (s *Service) AddFavorite(ctx context.Context, userID, productID int64) (Favorite, error) {
	product, err := s.Products.Get(productID)
	if err != nil {
		return Favorite{}, err
	}
	if !product.Active {
		return Favorite{}, fmt.Errorf("product %d: %w", productID, httpx.ErrNotFound)
	}
	return s.Favorites.Add(ctx, userID, productID)
}
