package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/voltparts/storefront/internal/crud"
	"github.com/voltparts/storefront/internal/platform/httpx"
)

type favoriteStore = crud.Store[Favorite, *Favorite]

// Favorites keeps one persisted list per customer under favorites:<userID>.
// Lists are opened on first use and kept in a bounded cache.
type Favorites struct {
	storage  crud.Storage
	notifier crud.Notifier

	mu     sync.Mutex
	stores *lru.Cache[int64, *favoriteStore]
}

// NewFavorites builds the per-customer registry.
func NewFavorites(storage crud.Storage, notifier crud.Notifier, size int) (*Favorites, error) {
	if size <= 0 {
		size = 512
	}
	stores, err := lru.New[int64, *favoriteStore](size)
	if err != nil {
		return nil, err
	}
	return &Favorites{storage: storage, notifier: notifier, stores: stores}, nil
}

func favoritesKey(userID int64) string {
	return "favorites:" + idString(userID)
}

func (f *Favorites) open(ctx context.Context, userID int64) (*favoriteStore, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if store, ok := f.stores.Get(userID); ok {
		return store, nil
	}
	store, err := crud.NewStore[Favorite](ctx, crud.Options{
		Name:     "Favorite",
		Key:      favoritesKey(userID),
		Storage:  f.storage,
		Notifier: f.notifier,
	})
	if err != nil {
		return nil, err
	}
	f.stores.Add(userID, store)
	return store, nil
}

// List returns the customer's favorites.
func (f *Favorites) List(ctx context.Context, userID int64) ([]Favorite, error) {
	store, err := f.open(ctx, userID)
	if err != nil {
		return nil, err
	}
	return store.List(), nil
}

// Add bookmarks productID. A product can only be bookmarked once.
func (f *Favorites) Add(ctx context.Context, userID, productID int64) (Favorite, error) {
	store, err := f.open(ctx, userID)
	if err != nil {
		return Favorite{}, err
	}
	return store.CreateIf(ctx, Favorite{ProductID: productID}, func(existing []Favorite) error {
		for _, fav := range existing {
			if fav.ProductID == productID {
				return fmt.Errorf("product %d already in favorites: %w", productID, httpx.ErrDuplicate)
			}
		}
		return nil
	})
}

// Remove drops the favorite with the given id.
func (f *Favorites) Remove(ctx context.Context, userID, id int64) error {
	store, err := f.open(ctx, userID)
	if err != nil {
		return err
	}
	if err := store.Remove(ctx, id); err != nil {
		if errors.Is(err, crud.ErrNotFound) {
			return fmt.Errorf("favorite %d: %w", id, httpx.ErrNotFound)
		}
		return err
	}
	return nil
}
