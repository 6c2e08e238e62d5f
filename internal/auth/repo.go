package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voltparts/storefront/internal/shared"
)

// Repository defines persistence operations for auth module.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	CreateSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error
	DeleteSession(ctx context.Context, id string) error
}

// PGRepository implements Repository and Provider using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const userColumns = `id, email, password_hash, is_active, created_at, updated_at`

// FindByEmail fetches a user by email.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	var (
		user               User
		createdAt, updated pgtype.Timestamptz
	)
	err := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email).
		Scan(&user.ID, &user.Email, &user.PasswordHash, &user.IsActive, &createdAt, &updated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("auth: find by email: %w", err)
	}
	user.CreatedAt = createdAt.Time
	user.UpdatedAt = updated.Time
	return &user, nil
}

// Lookup resolves the identity and profile of an active user.
func (r *PGRepository) Lookup(ctx context.Context, userID int64) (*Identity, *Profile, error) {
	var (
		identity  Identity
		fullName  pgtype.Text
		role      pgtype.Text
		createdAt pgtype.Timestamptz
		active    bool
	)
	err := r.pool.QueryRow(ctx, `
		SELECT u.id, u.email, u.is_active, p.full_name, p.role, p.created_at
		FROM users u
		LEFT JOIN profiles p ON p.user_id = u.id
		WHERE u.id = $1`, userID).
		Scan(&identity.ID, &identity.Email, &active, &fullName, &role, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, ErrUnknownUser
		}
		return nil, nil, fmt.Errorf("auth: lookup profile: %w", err)
	}
	if !active {
		return nil, nil, ErrUnknownUser
	}
	if !role.Valid {
		return &identity, nil, nil
	}
	return &identity, &Profile{
		UserID:    identity.ID,
		FullName:  fullName.String,
		Role:      role.String,
		CreatedAt: createdAt.Time,
	}, nil
}

// CreateSession persists a new login session in the database for auditing.
func (r *PGRepository) CreateSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO sessions (id, user_id, created_at, expires_at, ip, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		id, userID, time.Now().UTC(), expiresAt.UTC(),
		pgtype.Text{String: ip, Valid: ip != ""},
		pgtype.Text{String: ua, Valid: ua != ""},
	)
	return err
}

// DeleteSession removes a session record from the database.
func (r *PGRepository) DeleteSession(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return err
}

var (
	_ Repository = (*PGRepository)(nil)
	_ Provider   = (*PGRepository)(nil)
)
