package models

import (
	"time"

	"github.com/uptrace/bun"
)

type AdminRole string

const (
	RoleAdmin      AdminRole = "admin"
	RoleSuperAdmin AdminRole = "super_admin"
)

type AdminAccount struct {
	bun.BaseModel `bun:"table:admin_users"`

	ID           string     `bun:"id,pk" json:"id"`
	Username     string     `bun:"username,unique,notnull" json:"username"`
	Email        string     `bun:"email" json:"email"`
	PasswordHash string     `bun:"password_hash,notnull" json:"-"`
	Role         AdminRole  `bun:"role,notnull" json:"role"`
	IsActive     bool       `bun:"is_active,notnull" json:"is_active"`
	LastLogin    *time.Time `bun:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `bun:"created_at,notnull" json:"created_at"`
}

// Summary is the public view of an account returned after login.
func (a AdminAccount) Summary() AdminSummary {
	return AdminSummary{
		ID:       a.ID,
		Username: a.Username,
		Role:     a.Role,
	}
}

type AdminSummary struct {
	ID       string    `json:"id"`
	Username string    `json:"username"`
	Role     AdminRole `json:"role"`
}

type AdminSession struct {
	bun.BaseModel `bun:"table:admin_sessions"`

	SessionToken string    `bun:"session_token,pk"`
	AdminID      string    `bun:"admin_id,notnull"`
	ExpiresAt    time.Time `bun:"expires_at,notnull"`
	CreatedAt    time.Time `bun:"created_at,notnull"`
}

// Expired reports whether the session is dead at the given instant.
func (s AdminSession) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResult struct {
	Token     string       `json:"-"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      AdminSummary `json:"user"`
}
