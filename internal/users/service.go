package users

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/proxydesk/proxydesk/internal/api"
	"github.com/proxydesk/proxydesk/internal/auth"
	"github.com/proxydesk/proxydesk/internal/cooldown"
	"github.com/proxydesk/proxydesk/internal/nats"
)

// EventPublisher receives the domain events the service emits. Satisfied by
// *nats.Publisher.
type EventPublisher interface {
	Publish(subject string, payload any)
}

type Service struct {
	repo   Repository
	events EventPublisher
	logger *slog.Logger

	defaultDailyLimit    int
	defaultCooldownHours int
}

func NewService(repo Repository, events EventPublisher, logger *slog.Logger, defaultDailyLimit, defaultCooldownHours int) *Service {
	return &Service{
		repo:                 repo,
		events:               events,
		logger:               logger,
		defaultDailyLimit:    defaultDailyLimit,
		defaultCooldownHours: defaultCooldownHours,
	}
}

// Register creates a user with the configured default limits and the plain
// user role.
func (s *Service) Register(ctx context.Context, username, email, password string) (*User, error) {
	if taken, err := s.repo.ExistsByUsername(ctx, username); err != nil {
		return nil, err
	} else if taken {
		return nil, api.ErrUsernameTaken
	}
	if taken, err := s.repo.ExistsByEmail(ctx, email); err != nil {
		return nil, err
	} else if taken {
		return nil, api.ErrEmailAlreadyExists
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &User{
		ID:            uuid.New(),
		Username:      username,
		Email:         email,
		PasswordHash:  hash,
		Role:          RoleUser,
		DailyLimit:    s.defaultDailyLimit,
		CooldownHours: s.defaultCooldownHours,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user registered", "user_id", user.ID, "username", username)
	return user, nil
}

// Authenticate verifies credentials by username and returns the user.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*User, error) {
	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if err == ErrNotFound {
			return nil, api.ErrInvalidCredentials
		}
		return nil, err
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, api.ErrInvalidCredentials
	}
	return user, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByUsername(ctx context.Context, username string) (*User, error) {
	return s.repo.GetByUsername(ctx, username)
}

// ListVisible returns the users the actor may see, per the role policy.
func (s *Service) ListVisible(ctx context.Context, actorID string, actor Role) ([]User, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	return FilterVisible(actorID, actor, all), nil
}

// UpdateLimits sets a single user's daily limit and cooldown period after a
// policy check against the target's role.
func (s *Service) UpdateLimits(ctx context.Context, actor Role, targetID string, dailyLimit, cooldownHours int) (*User, error) {
	target, err := s.repo.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if !CanManage(actor, target.Role) {
		return nil, api.ErrRoleDenied
	}
	if err := s.repo.UpdateLimits(ctx, targetID, dailyLimit, cooldownHours); err != nil {
		return nil, err
	}
	s.logger.Info("limits updated",
		"target_id", targetID, "daily_limit", dailyLimit, "cooldown_hours", cooldownHours)
	return s.repo.GetByID(ctx, targetID)
}

// ApplyCooldown persists a cooldown transition and returns the updated user.
// All cooldown writes funnel through here so the timestamp pair always moves
// together.
func (s *Service) ApplyCooldown(ctx context.Context, targetID string, upd cooldown.Update) (*User, error) {
	if err := s.repo.UpdateCooldown(ctx, targetID, upd.LastGenerationAt, upd.NextGenerationAt); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, targetID)
}

// OverrideCooldown lets a privileged actor move or clear a target's cooldown
// window.
func (s *Service) OverrideCooldown(ctx context.Context, actorID string, actor Role, targetID string, until *time.Time) (*User, error) {
	target, err := s.repo.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if !CanManage(actor, target.Role) {
		return nil, api.ErrRoleDenied
	}

	upd := cooldown.Override(until, time.Now())
	user, err := s.ApplyCooldown(ctx, targetID, upd)
	if err != nil {
		return nil, err
	}

	if upd.IsReset() {
		s.logger.Info("cooldown reset", "actor_id", actorID, "target_id", targetID)
	} else {
		s.logger.Info("cooldown overridden", "actor_id", actorID, "target_id", targetID, "until", until)
	}
	if s.events != nil {
		s.events.Publish(nats.SubjectCooldownOverridden, nats.CooldownOverriddenEvent{
			ActorID:  actorID,
			TargetID: targetID,
			Until:    until,
			Reset:    upd.IsReset(),
		})
	}
	return user, nil
}
