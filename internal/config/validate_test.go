package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 8080},
		DB: DBConfig{
			Host: "localhost", Port: 5432, User: "proxydesk",
			Password: "secret", Name: "proxydesk", SSLMode: "disable", MaxConns: 25,
		},
		Redis: RedisConfig{Host: "localhost", Port: 6379},
		JWT: JWTConfig{
			AccessSecret:  "access-secret-that-is-at-least-32-chars!",
			RefreshSecret: "refresh-secret-that-is-at-least-32-chr!",
			AccessExpiry:  15 * time.Minute,
			RefreshExpiry: 168 * time.Hour,
		},
		Claims: ClaimsConfig{StageTTL: 15 * time.Minute, MaxBatch: 100},
		Limits: LimitsConfig{DefaultDaily: 15, DefaultCooldownHours: 24},
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
}

func TestValidate_JWTAccessSecretTooShort(t *testing.T) {
	cfg := validConfig()
	cfg.JWT.AccessSecret = "short"
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "JWT_ACCESS_SECRET") {
		t.Fatalf("expected JWT_ACCESS_SECRET error, got: %v", err)
	}
}

func TestValidate_JWTSecretsMustDiffer(t *testing.T) {
	cfg := validConfig()
	cfg.JWT.AccessSecret = "the-same-secret-that-is-at-least-32-chars!"
	cfg.JWT.RefreshSecret = "the-same-secret-that-is-at-least-32-chars!"
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "must differ") {
		t.Fatalf("expected 'must differ' error, got: %v", err)
	}
}

func TestValidate_DBPasswordRequired(t *testing.T) {
	cfg := validConfig()
	cfg.DB.Password = ""
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "DB_PASSWORD") {
		t.Fatalf("expected DB_PASSWORD error, got: %v", err)
	}
}

func TestValidate_InvalidPorts(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Port = 0
	cfg.DB.Port = 99999
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected port validation errors")
	}
	if !strings.Contains(err.Error(), "SERVER_PORT") {
		t.Errorf("expected SERVER_PORT error in: %v", err)
	}
	if !strings.Contains(err.Error(), "DB_PORT") {
		t.Errorf("expected DB_PORT error in: %v", err)
	}
}

func TestValidate_ClaimStageTTL(t *testing.T) {
	cfg := validConfig()
	cfg.Claims.StageTTL = 0
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "CLAIM_STAGE_TTL") {
		t.Fatalf("expected CLAIM_STAGE_TTL error, got: %v", err)
	}
}

func TestValidate_ClaimMaxBatch(t *testing.T) {
	cfg := validConfig()
	cfg.Claims.MaxBatch = 0
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "CLAIM_MAX_BATCH") {
		t.Fatalf("expected CLAIM_MAX_BATCH error, got: %v", err)
	}
}

func TestValidate_NegativeCooldownDefault(t *testing.T) {
	cfg := validConfig()
	cfg.Limits.DefaultCooldownHours = -1
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "LIMITS_DEFAULT_COOLDOWN_HOURS") {
		t.Fatalf("expected LIMITS_DEFAULT_COOLDOWN_HOURS error, got: %v", err)
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	cfg := &Config{
		Server: ServerConfig{Port: 0},
		DB:     DBConfig{Port: 5432},
		Redis:  RedisConfig{Port: 6379},
		Claims: ClaimsConfig{StageTTL: time.Minute, MaxBatch: 10},
		Limits: LimitsConfig{DefaultDaily: 15},
	}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected multiple validation errors")
	}
	errStr := err.Error()
	for _, substr := range []string{"JWT_ACCESS_SECRET", "JWT_REFRESH_SECRET", "DB_PASSWORD", "SERVER_PORT"} {
		if !strings.Contains(errStr, substr) {
			t.Errorf("expected %q in error: %s", substr, errStr)
		}
	}
}
