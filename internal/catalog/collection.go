package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/voltparts/storefront/internal/crud"
	"github.com/voltparts/storefront/internal/filter"
	"github.com/voltparts/storefront/internal/platform/httpx"
)

// Collection is one persisted entity list with its searchable view.
type Collection[T any, P crud.Entity[T]] struct {
	name     string
	store    *crud.Store[T, P]
	view     *filter.View[T]
	validate *validator.Validate
	check    func(T) error
}

func newCollection[T any, P crud.Entity[T]](ctx context.Context, name, key string, storage crud.Storage, notifier crud.Notifier, spec filter.Spec[T], v *validator.Validate) (*Collection[T, P], error) {
	store, err := crud.NewStore[T, P](ctx, crud.Options{
		Name:     name,
		Key:      key,
		Storage:  storage,
		Notifier: notifier,
	})
	if err != nil {
		return nil, err
	}
	return &Collection[T, P]{
		name:     name,
		store:    store,
		view:     filter.NewView[T](store, spec),
		validate: v,
	}, nil
}

// List returns the items matching q.
func (c *Collection[T, P]) List(q filter.Query) []T {
	return c.view.Items(q)
}

// Get returns the item with the given id.
func (c *Collection[T, P]) Get(id int64) (T, error) {
	item, ok := c.store.Get(id)
	if !ok {
		return item, fmt.Errorf("%s %d: %w", c.name, id, httpx.ErrNotFound)
	}
	return item, nil
}

// Exists reports whether an item with the given id is stored.
func (c *Collection[T, P]) Exists(id int64) bool {
	_, ok := c.store.Get(id)
	return ok
}

// Create validates item and stores it under a fresh id.
func (c *Collection[T, P]) Create(ctx context.Context, item T) (T, error) {
	if err := c.checkItem(item); err != nil {
		var zero T
		return zero, err
	}
	return c.store.Create(ctx, item)
}

// Update merges patch into the stored item. The merged result is validated
// under the store lock before anything is written.
func (c *Collection[T, P]) Update(ctx context.Context, id int64, patch json.RawMessage) (T, error) {
	updated, err := c.store.UpdateIf(ctx, id, patch, c.checkItem)
	switch {
	case errors.Is(err, crud.ErrNotFound):
		return updated, fmt.Errorf("%s %d: %w", c.name, id, httpx.ErrNotFound)
	case errors.Is(err, crud.ErrInvalidPatch):
		var zero T
		return zero, errors.Join(httpx.ErrValidation, err)
	}
	return updated, err
}

// Delete removes the item with the given id.
func (c *Collection[T, P]) Delete(ctx context.Context, id int64) error {
	err := c.store.Remove(ctx, id)
	if errors.Is(err, crud.ErrNotFound) {
		return fmt.Errorf("%s %d: %w", c.name, id, httpx.ErrNotFound)
	}
	return err
}

// Len reports the number of stored items.
func (c *Collection[T, P]) Len() int {
	return c.store.Len()
}

func (c *Collection[T, P]) checkItem(item T) error {
	if err := httpx.Validate(c.validate, item); err != nil {
		return err
	}
	if c.check != nil {
		return c.check(item)
	}
	return nil
}
