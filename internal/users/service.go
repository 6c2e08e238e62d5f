package users

import (
	"context"
	"fmt"

	"github.com/voltparts/storefront/internal/filter"
	"github.com/voltparts/storefront/internal/platform/httpx"
	"github.com/voltparts/storefront/internal/roles"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListUsers(ctx context.Context) ([]User, error)
	ChangeRole(ctx context.Context, userID int64, role roles.Role, actorID int64) (RoleChange, error)
}

// Forgetter drops cached identity data for a user.
type Forgetter interface {
	Forget(userID int64)
}

var userSpec = filter.Spec[User]{
	Search: []string{"email", "full_name"},
	Fields: map[string]filter.Field[User]{
		"email":     func(u User) any { return u.Email },
		"full_name": func(u User) any { return u.FullName },
		"role":      func(u User) any { return string(u.Role) },
		"is_active": func(u User) any { return u.IsActive },
	},
}

// Filter keys accepted by ListUsers.
var userFilters = []string{"role", "is_active"}

// Service handles user business logic.
type Service struct {
	repo  RepositoryPort
	cache Forgetter
}

// NewService builds Service instance. cache may be nil.
func NewService(repo RepositoryPort, cache Forgetter) *Service {
	return &Service{repo: repo, cache: cache}
}

// ListUsers returns the users matching q.
func (s *Service) ListUsers(ctx context.Context, q filter.Query) ([]UserView, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	matched := filter.Apply(users, userSpec, q)
	out := make([]UserView, 0, len(matched))
	for _, u := range matched {
		out = append(out, viewOf(u))
	}
	return out, nil
}

// ChangeRole assigns role to userID on behalf of actorID. Actors cannot
// change their own role.
func (s *Service) ChangeRole(ctx context.Context, actorID, userID int64, raw string) (RoleChange, error) {
	role, ok := roles.Parse(raw)
	if !ok {
		return RoleChange{}, httpx.FieldErrors{"role": "must be one of cliente admin superadmin"}
	}
	if actorID == userID {
		return RoleChange{}, fmt.Errorf("cannot change own role: %w", httpx.ErrForbidden)
	}
	change, err := s.repo.ChangeRole(ctx, userID, role, actorID)
	if err != nil {
		return RoleChange{}, err
	}
	if s.cache != nil {
		s.cache.Forget(userID)
	}
	return change, nil
}
