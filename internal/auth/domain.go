package auth

import "time"

// User represents an authenticated user account.
type User struct {
	ID           int64
	Email        string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Identity is the external identity reference of a signed-in user.
type Identity struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}

// Profile is the user record the role is derived from.
type Profile struct {
	UserID    int64     `json:"user_id"`
	FullName  string    `json:"full_name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}
