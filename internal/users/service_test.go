package users

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proxydesk/proxydesk/internal/api"
	"github.com/proxydesk/proxydesk/internal/cooldown"
	"github.com/proxydesk/proxydesk/internal/nats"
)

// recordingPublisher captures published events for assertions.
type recordingPublisher struct {
	subjects []string
	payloads []any
}

func (p *recordingPublisher) Publish(subject string, payload any) {
	p.subjects = append(p.subjects, subject)
	p.payloads = append(p.payloads, payload)
}

func newServiceFixture(t *testing.T) (*Service, *MemoryRepository) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := NewMemoryRepository()
	return NewService(repo, nil, logger, 15, 24), repo
}

func TestRegisterAppliesDefaults(t *testing.T) {
	svc, _ := newServiceFixture(t)
	ctx := context.Background()

	u, err := svc.Register(ctx, "alice", "alice@example.com", "hunter2hunter2")
	require.NoError(t, err)
	assert.Equal(t, RoleUser, u.Role)
	assert.Equal(t, 15, u.DailyLimit)
	assert.Equal(t, 24, u.CooldownHours)
	assert.NotEqual(t, "hunter2hunter2", u.PasswordHash)
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	svc, _ := newServiceFixture(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice", "alice@example.com", "hunter2hunter2")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "alice", "other@example.com", "hunter2hunter2")
	assert.ErrorIs(t, err, api.ErrUsernameTaken)

	_, err = svc.Register(ctx, "bob", "alice@example.com", "hunter2hunter2")
	assert.ErrorIs(t, err, api.ErrEmailAlreadyExists)
}

func TestAuthenticate(t *testing.T) {
	svc, _ := newServiceFixture(t)
	ctx := context.Background()

	created, err := svc.Register(ctx, "alice", "alice@example.com", "hunter2hunter2")
	require.NoError(t, err)

	u, err := svc.Authenticate(ctx, "alice", "hunter2hunter2")
	require.NoError(t, err)
	assert.Equal(t, created.ID, u.ID)

	_, err = svc.Authenticate(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, api.ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "nobody", "hunter2hunter2")
	assert.ErrorIs(t, err, api.ErrInvalidCredentials)
}

func TestUpdateLimitsPolicy(t *testing.T) {
	svc, repo := newServiceFixture(t)
	ctx := context.Background()

	target, err := svc.Register(ctx, "alice", "alice@example.com", "hunter2hunter2")
	require.NoError(t, err)

	_, err = svc.UpdateLimits(ctx, RoleUser, target.ID.String(), 5, 12)
	assert.ErrorIs(t, err, api.ErrRoleDenied)

	updated, err := svc.UpdateLimits(ctx, RoleManager, target.ID.String(), 5, 12)
	require.NoError(t, err)
	assert.Equal(t, 5, updated.DailyLimit)
	assert.Equal(t, 12, updated.CooldownHours)

	stored, err := repo.GetByID(ctx, target.ID.String())
	require.NoError(t, err)
	assert.Equal(t, 5, stored.DailyLimit)
}

func TestApplyCooldownMovesBothStamps(t *testing.T) {
	svc, _ := newServiceFixture(t)
	ctx := context.Background()

	u, err := svc.Register(ctx, "alice", "alice@example.com", "hunter2hunter2")
	require.NoError(t, err)

	now := time.Now()
	updated, err := svc.ApplyCooldown(ctx, u.ID.String(), cooldown.Arm(now, 24*time.Hour))
	require.NoError(t, err)
	require.NotNil(t, updated.LastGenerationAt)
	require.NotNil(t, updated.NextGenerationAt)
	assert.True(t, updated.NextGenerationAt.Equal(now.Add(24*time.Hour)))
}

func TestOverrideCooldown(t *testing.T) {
	svc, _ := newServiceFixture(t)
	ctx := context.Background()

	target, err := svc.Register(ctx, "alice", "alice@example.com", "hunter2hunter2")
	require.NoError(t, err)

	until := time.Now().Add(3 * time.Hour)
	updated, err := svc.OverrideCooldown(ctx, "admin-1", RoleAdmin, target.ID.String(), &until)
	require.NoError(t, err)
	require.NotNil(t, updated.NextGenerationAt)
	assert.True(t, updated.NextGenerationAt.Equal(until))

	// A nil target time clears the window entirely.
	updated, err = svc.OverrideCooldown(ctx, "admin-1", RoleAdmin, target.ID.String(), nil)
	require.NoError(t, err)
	assert.Nil(t, updated.LastGenerationAt)
	assert.Nil(t, updated.NextGenerationAt)

	// Plain users cannot override anyone.
	_, err = svc.OverrideCooldown(ctx, "user-1", RoleUser, target.ID.String(), &until)
	assert.ErrorIs(t, err, api.ErrRoleDenied)
}

func TestOverrideCooldownPublishesEvent(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := NewMemoryRepository()
	events := &recordingPublisher{}
	svc := NewService(repo, events, logger, 15, 24)
	ctx := context.Background()

	target, err := svc.Register(ctx, "alice", "alice@example.com", "hunter2hunter2")
	require.NoError(t, err)

	until := time.Now().Add(3 * time.Hour)
	_, err = svc.OverrideCooldown(ctx, "admin-1", RoleAdmin, target.ID.String(), &until)
	require.NoError(t, err)

	require.Len(t, events.subjects, 1)
	assert.Equal(t, nats.SubjectCooldownOverridden, events.subjects[0])
	evt, ok := events.payloads[0].(nats.CooldownOverriddenEvent)
	require.True(t, ok)
	assert.Equal(t, "admin-1", evt.ActorID)
	assert.Equal(t, target.ID.String(), evt.TargetID)
	require.NotNil(t, evt.Until)
	assert.True(t, evt.Until.Equal(until))
	assert.False(t, evt.Reset)

	// A reset publishes too, flagged as such.
	_, err = svc.OverrideCooldown(ctx, "admin-1", RoleAdmin, target.ID.String(), nil)
	require.NoError(t, err)
	require.Len(t, events.subjects, 2)
	reset, ok := events.payloads[1].(nats.CooldownOverriddenEvent)
	require.True(t, ok)
	assert.True(t, reset.Reset)
	assert.Nil(t, reset.Until)

	// A denied override publishes nothing.
	_, err = svc.OverrideCooldown(ctx, "user-1", RoleUser, target.ID.String(), &until)
	require.ErrorIs(t, err, api.ErrRoleDenied)
	assert.Len(t, events.subjects, 2)
}
