package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks Config for production-critical problems.
// It collects all errors into a single joined error.
func (c *Config) Validate() error {
	var errs []string

	// JWT secrets
	if len(c.JWT.AccessSecret) < 32 {
		errs = append(errs, "JWT_ACCESS_SECRET must be at least 32 characters")
	}
	if len(c.JWT.RefreshSecret) < 32 {
		errs = append(errs, "JWT_REFRESH_SECRET must be at least 32 characters")
	}
	if c.JWT.AccessSecret != "" && c.JWT.RefreshSecret != "" && c.JWT.AccessSecret == c.JWT.RefreshSecret {
		errs = append(errs, "JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ")
	}

	// DB password
	if c.DB.Password == "" {
		errs = append(errs, "DB_PASSWORD is required")
	}

	// Port ranges
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT must be 1-65535, got %d", c.Server.Port))
	}
	if c.DB.Port < 1 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Sprintf("DB_PORT must be 1-65535, got %d", c.DB.Port))
	}
	if c.Redis.Port < 1 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Sprintf("REDIS_PORT must be 1-65535, got %d", c.Redis.Port))
	}

	// Claim protocol knobs
	if c.Claims.MaxBatch < 1 {
		errs = append(errs, fmt.Sprintf("CLAIM_MAX_BATCH must be positive, got %d", c.Claims.MaxBatch))
	}
	if c.Claims.StageTTL <= 0 {
		errs = append(errs, "CLAIM_STAGE_TTL must be a positive duration")
	}

	// User quota defaults
	if c.Limits.DefaultDaily < 1 {
		errs = append(errs, fmt.Sprintf("LIMITS_DEFAULT_DAILY must be positive, got %d", c.Limits.DefaultDaily))
	}
	if c.Limits.DefaultCooldownHours < 0 {
		errs = append(errs, fmt.Sprintf("LIMITS_DEFAULT_COOLDOWN_HOURS must not be negative, got %d", c.Limits.DefaultCooldownHours))
	}

	if len(errs) > 0 {
		return errors.New("config validation failed:\n  " + strings.Join(errs, "\n  "))
	}
	return nil
}
