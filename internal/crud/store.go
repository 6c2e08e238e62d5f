// Package crud keeps a locally persisted list of entities of one type.
//
// Identifiers are assigned as max+1 over the current snapshot. They are not
// collision safe across stores sharing a key: the last writer wins.
package crud

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrNotFound is returned by Update and Remove when no item has the id.
// The store is left untouched.
var ErrNotFound = errors.New("crud: item not found")

// ErrInvalidPatch is returned by Update when the patch does not decode into
// the entity.
var ErrInvalidPatch = errors.New("crud: invalid patch")

// DateLayout is the day-granularity layout of Record.CreatedAt.
const DateLayout = "2006-01-02"

// Record carries the identity every stored entity embeds.
type Record struct {
	ID        int64  `json:"id"`
	CreatedAt string `json:"created_at"`
}

// Meta exposes the embedded record of an entity.
func (r *Record) Meta() *Record { return r }

// Entity is satisfied by pointers to types embedding Record.
type Entity[T any] interface {
	*T
	Meta() *Record
}

// Notifier receives a user-facing message after every successful mutation.
type Notifier interface {
	Notify(ctx context.Context, kind, message string)
}

// Options configures a Store.
type Options struct {
	// Name labels the entity in notifications, e.g. "Product".
	Name     string
	Key      string
	Storage  Storage
	Notifier Notifier
	Clock    func() time.Time
}

// Store is an in-memory list of T mirrored wholesale to Storage on every
// mutation.
type Store[T any, P Entity[T]] struct {
	opts    Options
	mu      sync.RWMutex
	items   []T
	version uint64
}

// NewStore builds a store and loads the list persisted under opts.Key.
func NewStore[T any, P Entity[T]](ctx context.Context, opts Options) (*Store[T, P], error) {
	if opts.Key == "" {
		return nil, errors.New("crud: store key required")
	}
	if opts.Storage == nil {
		return nil, errors.New("crud: storage required")
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	s := &Store[T, P]{opts: opts}
	if err := s.Reload(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload replaces the in-memory list with the persisted one.
func (s *Store[T, P]) Reload(ctx context.Context) error {
	raw, err := s.opts.Storage.Load(ctx, s.opts.Key)
	if err != nil {
		return fmt.Errorf("crud: load %s: %w", s.opts.Key, err)
	}
	items := []T{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &items); err != nil {
			return fmt.Errorf("crud: decode %s: %w", s.opts.Key, err)
		}
	}
	s.mu.Lock()
	s.items = items
	s.version++
	s.mu.Unlock()
	return nil
}

// Create assigns the next id and today's date to item, appends it and
// persists the list.
func (s *Store[T, P]) Create(ctx context.Context, item T) (T, error) {
	return s.CreateIf(ctx, item, nil)
}

// CreateIf is Create guarded by check, which sees the current items under
// the store lock. A check error is returned as is and nothing is written.
func (s *Store[T, P]) CreateIf(ctx context.Context, item T, check func(existing []T) error) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if check != nil {
		if err := check(s.clone()); err != nil {
			var zero T
			return zero, err
		}
	}

	var maxID int64
	for i := range s.items {
		if id := P(&s.items[i]).Meta().ID; id > maxID {
			maxID = id
		}
	}
	rec := P(&item).Meta()
	rec.ID = maxID + 1
	rec.CreatedAt = s.opts.Clock().Format(DateLayout)

	next := append(s.clone(), item)
	if err := s.persist(ctx, next); err != nil {
		var zero T
		return zero, err
	}
	s.commit(next)
	s.notify(ctx, "created")
	return item, nil
}

// Update merges the JSON object patch into the item with the given id.
// Identity fields in the patch are ignored.
func (s *Store[T, P]) Update(ctx context.Context, id int64, patch json.RawMessage) (T, error) {
	return s.UpdateIf(ctx, id, patch, nil)
}

// UpdateIf is Update guarded by check, which sees the merged item under the
// store lock. A check error is returned as is and nothing is written.
func (s *Store[T, P]) UpdateIf(ctx context.Context, id int64, patch json.RawMessage, check func(merged T) error) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero T
	idx := s.indexOf(id)
	if idx < 0 {
		return zero, ErrNotFound
	}
	next := s.clone()
	merged := next[idx]
	keep := *P(&merged).Meta()
	if err := json.Unmarshal(patch, &merged); err != nil {
		return zero, fmt.Errorf("%w: %s %d: %w", ErrInvalidPatch, s.opts.Key, id, err)
	}
	*P(&merged).Meta() = keep
	if check != nil {
		if err := check(merged); err != nil {
			return zero, err
		}
	}
	next[idx] = merged

	if err := s.persist(ctx, next); err != nil {
		return zero, err
	}
	s.commit(next)
	s.notify(ctx, "updated")
	return merged, nil
}

// Remove deletes the item with the given id.
func (s *Store[T, P]) Remove(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return ErrNotFound
	}
	next := make([]T, 0, len(s.items)-1)
	next = append(next, s.items[:idx]...)
	next = append(next, s.items[idx+1:]...)
	if err := s.persist(ctx, next); err != nil {
		return err
	}
	s.commit(next)
	s.notify(ctx, "deleted")
	return nil
}

// Get looks up an item by id.
func (s *Store[T, P]) Get(id int64) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if idx := s.indexOf(id); idx >= 0 {
		return s.items[idx], true
	}
	var zero T
	return zero, false
}

// List returns a copy of the items in insertion order.
func (s *Store[T, P]) List() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clone()
}

// Snapshot returns the items together with the version they belong to.
func (s *Store[T, P]) Snapshot() ([]T, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clone(), s.version
}

// Version increases on every committed change.
func (s *Store[T, P]) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Len reports the number of items.
func (s *Store[T, P]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *Store[T, P]) indexOf(id int64) int {
	for i := range s.items {
		if P(&s.items[i]).Meta().ID == id {
			return i
		}
	}
	return -1
}

func (s *Store[T, P]) clone() []T {
	out := make([]T, len(s.items))
	copy(out, s.items)
	return out
}

func (s *Store[T, P]) persist(ctx context.Context, items []T) error {
	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("crud: encode %s: %w", s.opts.Key, err)
	}
	if err := s.opts.Storage.Save(ctx, s.opts.Key, raw); err != nil {
		return fmt.Errorf("crud: save %s: %w", s.opts.Key, err)
	}
	return nil
}

func (s *Store[T, P]) commit(items []T) {
	s.items = items
	s.version++
}

func (s *Store[T, P]) notify(ctx context.Context, verb string) {
	if s.opts.Notifier == nil {
		return
	}
	name := s.opts.Name
	if name == "" {
		name = "Item"
	}
	s.opts.Notifier.Notify(ctx, "success", name+" "+verb)
}
