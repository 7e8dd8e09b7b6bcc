package limits

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proxydesk/proxydesk/internal/users"
)

func newEditorFixture(t *testing.T) (*Editor, *users.MemoryRepository) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := users.NewMemoryRepository()
	svc := users.NewService(repo, nil, logger, 15, 24)
	return NewEditor(svc, nil, logger), repo
}

func addUser(t *testing.T, repo *users.MemoryRepository, role users.Role) *users.User {
	t.Helper()
	u := &users.User{
		ID:         uuid.New(),
		Username:   uuid.NewString()[:8],
		Role:       role,
		DailyLimit: 15,
	}
	require.NoError(t, repo.Create(context.Background(), u))
	return u
}

func TestApplyUpdatesAllUsers(t *testing.T) {
	editor, repo := newEditorFixture(t)
	ctx := context.Background()

	a := addUser(t, repo, users.RoleUser)
	b := addUser(t, repo, users.RoleUser)

	result := editor.Apply(ctx, uuid.NewString(), users.RoleAdmin, []Update{
		{UserID: a.ID.String(), DailyLimit: 30, CooldownHours: 12},
		{UserID: b.ID.String(), DailyLimit: 5, CooldownHours: 48},
	})

	assert.Equal(t, 2, result.Succeeded)
	assert.Zero(t, result.Failed)

	got, err := repo.GetByID(ctx, a.ID.String())
	require.NoError(t, err)
	assert.Equal(t, 30, got.DailyLimit)
	assert.Equal(t, 12, got.CooldownHours)

	got, err = repo.GetByID(ctx, b.ID.String())
	require.NoError(t, err)
	assert.Equal(t, 5, got.DailyLimit)
	assert.Equal(t, 48, got.CooldownHours)
}

func TestApplyPartialFailure(t *testing.T) {
	editor, repo := newEditorFixture(t)
	ctx := context.Background()

	ok := addUser(t, repo, users.RoleUser)
	missing := uuid.NewString()

	result := editor.Apply(ctx, uuid.NewString(), users.RoleAdmin, []Update{
		{UserID: ok.ID.String(), DailyLimit: 20, CooldownHours: 24},
		{UserID: missing, DailyLimit: 20, CooldownHours: 24},
	})

	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, missing, result.Failures[0].UserID)

	// The good update still landed.
	got, err := repo.GetByID(ctx, ok.ID.String())
	require.NoError(t, err)
	assert.Equal(t, 20, got.DailyLimit)
}

func TestApplyRespectsRolePolicy(t *testing.T) {
	editor, repo := newEditorFixture(t)
	ctx := context.Background()

	admin := addUser(t, repo, users.RoleAdmin)
	plain := addUser(t, repo, users.RoleUser)

	// A manager cannot edit an admin, but the user edit in the same batch
	// goes through.
	result := editor.Apply(ctx, uuid.NewString(), users.RoleManager, []Update{
		{UserID: admin.ID.String(), DailyLimit: 1, CooldownHours: 1},
		{UserID: plain.ID.String(), DailyLimit: 7, CooldownHours: 6},
	})

	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, 1, result.Failed)

	got, err := repo.GetByID(ctx, admin.ID.String())
	require.NoError(t, err)
	assert.Equal(t, 15, got.DailyLimit)

	got, err = repo.GetByID(ctx, plain.ID.String())
	require.NoError(t, err)
	assert.Equal(t, 7, got.DailyLimit)
}

func TestApplyEmptyBatch(t *testing.T) {
	editor, _ := newEditorFixture(t)
	result := editor.Apply(context.Background(), uuid.NewString(), users.RoleAdmin, nil)
	assert.Zero(t, result.Succeeded)
	assert.Zero(t, result.Failed)
}
