package catalog

import (
	"strconv"

	"github.com/voltparts/storefront/internal/crud"
	"github.com/voltparts/storefront/internal/filter"
)

// Category groups products on the storefront.
type Category struct {
	crud.Record
	Name        string `json:"name" validate:"required,max=120"`
	Slug        string `json:"slug" validate:"required,max=120"`
	Description string `json:"description,omitempty" validate:"max=2000"`
}

// Brand is a product manufacturer.
type Brand struct {
	crud.Record
	Name    string `json:"name" validate:"required,max=120"`
	Country string `json:"country,omitempty" validate:"omitempty,len=2"`
}

// Product is a sellable part.
type Product struct {
	crud.Record
	Name        string  `json:"name" validate:"required,max=200"`
	SKU         string  `json:"sku" validate:"required,max=64"`
	CategoryID  int64   `json:"category_id" validate:"required,gt=0"`
	BrandID     int64   `json:"brand_id" validate:"required,gt=0"`
	Price       float64 `json:"price" validate:"gte=0"`
	Cost        float64 `json:"cost" validate:"gte=0"`
	Stock       int     `json:"stock" validate:"gte=0"`
	Active      bool    `json:"active"`
	Description string  `json:"description,omitempty" validate:"max=4000"`
}

// Favorite marks a product on a customer's wish list.
type Favorite struct {
	crud.Record
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
}

func idString(id int64) string { return strconv.FormatInt(id, 10) }

var categorySpec = filter.Spec[Category]{
	Search: []string{"name", "slug", "description"},
	Fields: map[string]filter.Field[Category]{
		"name":        func(c Category) any { return c.Name },
		"slug":        func(c Category) any { return c.Slug },
		"description": func(c Category) any { return c.Description },
	},
}

var brandSpec = filter.Spec[Brand]{
	Search: []string{"name"},
	Fields: map[string]filter.Field[Brand]{
		"name":    func(b Brand) any { return b.Name },
		"country": func(b Brand) any { return b.Country },
	},
}

var productSpec = filter.Spec[Product]{
	Search: []string{"name", "sku", "description"},
	Fields: map[string]filter.Field[Product]{
		"name":        func(p Product) any { return p.Name },
		"sku":         func(p Product) any { return p.SKU },
		"description": func(p Product) any { return p.Description },
		"category_id": func(p Product) any { return idString(p.CategoryID) },
		"brand_id":    func(p Product) any { return idString(p.BrandID) },
		"active":      func(p Product) any { return strconv.FormatBool(p.Active) },
	},
}

// Filter keys accepted on list endpoints.
var (
	categoryFilters = []string{"slug"}
	brandFilters    = []string{"country"}
	productFilters  = []string{"category_id", "brand_id", "active"}
)
