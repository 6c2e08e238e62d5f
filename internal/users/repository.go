package users

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voltparts/storefront/internal/platform/db"
	"github.com/voltparts/storefront/internal/platform/httpx"
	"github.com/voltparts/storefront/internal/roles"
	"github.com/voltparts/storefront/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListUsers returns all users with their profile.
func (r *Repository) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := r.pool.Query(ctx, `SELECT u.id, u.email, COALESCE(p.full_name, ''), COALESCE(p.role, ''), u.is_active, u.created_at
FROM users u
LEFT JOIN profiles p ON p.user_id = u.id
ORDER BY u.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []User
	for rows.Next() {
		var (
			user User
			role string
		)
		if err := rows.Scan(&user.ID, &user.Email, &user.FullName, &role, &user.IsActive, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.Role, _ = roles.Parse(role)
		users = append(users, user)
	}
	return users, rows.Err()
}

// ChangeRole stores a new role for userID and records who changed it.
func (r *Repository) ChangeRole(ctx context.Context, userID int64, role roles.Role, actorID int64) (RoleChange, error) {
	change := RoleChange{UserID: userID, Current: role}
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var previous string
		err := tx.QueryRow(ctx, `SELECT role FROM profiles WHERE user_id = $1 FOR UPDATE`, userID).Scan(&previous)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("profile %d: %w", userID, httpx.ErrNotFound)
		}
		if err != nil {
			return err
		}
		change.Previous, _ = roles.Parse(previous)

		if _, err := tx.Exec(ctx, `UPDATE profiles SET role = $1, updated_at = NOW() WHERE user_id = $2`, string(role), userID); err != nil {
			return err
		}
		return shared.RecordAudit(ctx, tx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "role.change",
			Entity:   "profile",
			EntityID: strconv.FormatInt(userID, 10),
			Meta:     map[string]any{"from": string(change.Previous), "to": string(role)},
		})
	})
	if err != nil {
		return RoleChange{}, err
	}
	return change, nil
}
