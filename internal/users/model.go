package users

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleUser    Role = "user"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleUser:
		return true
	}
	return false
}

// User matches the users table schema. DailyLimit caps how many proxies a
// user may claim per calendar day; CooldownHours is the waiting period armed
// when a finalization exhausts that limit. NextGenerationAt, when set, is
// always >= LastGenerationAt (enforced by a table check).
type User struct {
	ID               uuid.UUID  `json:"id"`
	Username         string     `json:"username"`
	Email            string     `json:"email"`
	PasswordHash     string     `json:"-"`
	Role             Role       `json:"role"`
	DailyLimit       int        `json:"daily_limit"`
	CooldownHours    int        `json:"cooldown_hours"`
	LastGenerationAt *time.Time `json:"last_generation_at,omitempty"`
	NextGenerationAt *time.Time `json:"next_generation_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

type UpdateLimitsRequest struct {
	DailyLimit    *int `json:"daily_limit" validate:"omitempty,min=0"`
	CooldownHours *int `json:"cooldown_hours" validate:"omitempty,min=0"`
}

type OverrideCooldownRequest struct {
	// NextGenerationAt is the new end of the cooldown window. Omitted or in
	// the past means a full reset.
	NextGenerationAt *time.Time `json:"next_generation_at"`
}
