package nats

import "time"

// Event subjects under the proxydesk stream.
const (
	SubjectClaimStaged        = SubjectPrefix + ".claims.staged"
	SubjectClaimFinalized     = SubjectPrefix + ".claims.finalized"
	SubjectFinalizePartial    = SubjectPrefix + ".claims.partial_failure"
	SubjectCooldownArmed      = SubjectPrefix + ".cooldowns.armed"
	SubjectCooldownOverridden = SubjectPrefix + ".cooldowns.overridden"
	SubjectLimitsUpdated      = SubjectPrefix + ".limits.updated"
	SubjectProxiesImported    = SubjectPrefix + ".proxies.imported"
)

type ClaimStagedEvent struct {
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Count     int       `json:"count"`
	StagedAt  time.Time `json:"staged_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

type ClaimFinalizedEvent struct {
	UserID      string    `json:"user_id"`
	Username    string    `json:"username"`
	Count       int       `json:"count"`
	UsedToday   int       `json:"used_today"`
	DailyLimit  int       `json:"daily_limit"`
	CooldownSet bool      `json:"cooldown_set"`
	FinalizedAt time.Time `json:"finalized_at"`
}

type FinalizePartialEvent struct {
	UserID   string   `json:"user_id"`
	Failed   []string `json:"failed"`
	Detail   string   `json:"detail"`
	Occurred time.Time `json:"occurred_at"`
}

type CooldownArmedEvent struct {
	UserID  string    `json:"user_id"`
	Until   time.Time `json:"until"`
	ArmedAt time.Time `json:"armed_at"`
}

type CooldownOverriddenEvent struct {
	ActorID  string     `json:"actor_id"`
	TargetID string     `json:"target_id"`
	Until    *time.Time `json:"until,omitempty"`
	Reset    bool       `json:"reset"`
}

type LimitsUpdatedEvent struct {
	ActorID   string   `json:"actor_id"`
	TargetIDs []string `json:"target_ids"`
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
}

type ProxiesImportedEvent struct {
	ActorID  string `json:"actor_id"`
	Inserted int    `json:"inserted"`
	Skipped  int    `json:"skipped"`
}
