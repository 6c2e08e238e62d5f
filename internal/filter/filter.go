// Package filter derives read-only views of item lists from a free-text term
// and exact-match field filters.
package filter

import (
	"fmt"
	"maps"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/text/cases"
)

// All is the filter value that places no constraint on a field. The empty
// string behaves the same.
const All = "all"

// Field reads one value out of an item.
type Field[T any] func(T) any

// Spec names the fields of T that can be searched and filtered.
type Spec[T any] struct {
	// Search lists the keys of Fields the free-text term is matched against.
	Search []string
	Fields map[string]Field[T]
}

// Query is the caller's current search term and field filters.
type Query struct {
	Term    string            `json:"search,omitempty"`
	Filters map[string]string `json:"filters,omitempty"`
}

// Active reports whether q constrains anything.
func (q Query) Active() bool {
	if q.Term != "" {
		return true
	}
	for _, v := range q.Filters {
		if !unconstrained(v) {
			return true
		}
	}
	return false
}

// Apply returns the items matching q in their original order. items is not
// modified.
func Apply[T any](items []T, spec Spec[T], q Query) []T {
	fold := cases.Fold()
	term := fold.String(q.Term)

	out := make([]T, 0, len(items))
	for _, item := range items {
		if term != "" && !matchesTerm(item, spec, term, fold) {
			continue
		}
		if !matchesFilters(item, spec, q.Filters) {
			continue
		}
		out = append(out, item)
	}
	return out
}

func matchesTerm[T any](item T, spec Spec[T], term string, fold cases.Caser) bool {
	for _, key := range spec.Search {
		field, ok := spec.Fields[key]
		if !ok {
			continue
		}
		if strings.Contains(fold.String(stringify(field(item))), term) {
			return true
		}
	}
	return false
}

func matchesFilters[T any](item T, spec Spec[T], filters map[string]string) bool {
	for key, want := range filters {
		if unconstrained(want) {
			continue
		}
		field, ok := spec.Fields[key]
		if !ok {
			return false
		}
		if stringify(field(item)) != want {
			return false
		}
	}
	return true
}

func unconstrained(v string) bool {
	return v == "" || v == All
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

// Source is a versioned list, such as a crud.Store.
type Source[T any] interface {
	Snapshot() ([]T, uint64)
}

// View memoizes Apply over a Source. The result is recomputed only when the
// source version, the term or the filters change.
type View[T any] struct {
	source Source[T]
	spec   Spec[T]

	mu      sync.Mutex
	valid   bool
	version uint64
	query   Query
	result  []T
}

// NewView binds a memoized view to source.
func NewView[T any](source Source[T], spec Spec[T]) *View[T] {
	return &View[T]{source: source, spec: spec}
}

// Items returns the filtered view for q. Callers must not modify the
// returned slice.
func (v *View[T]) Items(q Query) []T {
	items, version := v.source.Snapshot()

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.valid && v.version == version && v.query.Term == q.Term && maps.Equal(v.query.Filters, q.Filters) {
		return v.result
	}
	v.result = Apply(items, v.spec, q)
	v.version = version
	v.query = Query{Term: q.Term, Filters: maps.Clone(q.Filters)}
	v.valid = true
	return v.result
}

// QueryFromRequest reads the "search" parameter and the named filter keys
// from the URL query. Values are trimmed here; Apply matches them as given.
// Absent keys are left out.
func QueryFromRequest(r *http.Request, keys ...string) Query {
	values := r.URL.Query()
	q := Query{Term: strings.TrimSpace(values.Get("search"))}
	for _, key := range keys {
		if !values.Has(key) {
			continue
		}
		if q.Filters == nil {
			q.Filters = make(map[string]string, len(keys))
		}
		q.Filters[key] = strings.TrimSpace(values.Get(key))
	}
	return q
}
