package proxies

import (
	"time"

	"github.com/google/uuid"
)

// Proxy is one row of the distributable pool. Claimed* marks a short-lived
// reservation while a staged claim awaits finalization; IsUsed marks final
// consumption. Used rows survive only until the post-finalize delete, so the
// usage log, not this table, is the history of record.
type Proxy struct {
	ID        uuid.UUID  `json:"id"`
	URL       string     `json:"url"`
	IsUsed    bool       `json:"is_used"`
	UsedBy    *uuid.UUID `json:"used_by,omitempty"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	ClaimedBy *uuid.UUID `json:"-"`
	ClaimedAt *time.Time `json:"-"`
	CreatedAt time.Time  `json:"created_at"`
}

// StagedClaim is a selected-but-unconfirmed batch, held per user until
// finalized, cancelled, or expired.
type StagedClaim struct {
	UserID    uuid.UUID   `json:"user_id"`
	ProxyIDs  []uuid.UUID `json:"proxy_ids"`
	URLs      []string    `json:"urls"`
	StagedAt  time.Time   `json:"staged_at"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// Availability is the claim picture shown before a user asks for proxies.
type Availability struct {
	UsedToday  int  `json:"used_today"`
	DailyLimit int  `json:"daily_limit"`
	Remaining  int  `json:"remaining"`
	Unused     int  `json:"unused"`
	Claimable  int  `json:"claimable"`
	InCooldown bool `json:"in_cooldown"`
}

// ClaimResult is returned by Finalize.
type ClaimResult struct {
	URLs          []string   `json:"urls"`
	Finalized     int        `json:"finalized"`
	Failed        []string   `json:"failed,omitempty"`
	UsedToday     int        `json:"used_today"`
	DailyLimit    int        `json:"daily_limit"`
	CooldownUntil *time.Time `json:"cooldown_until,omitempty"`
}
