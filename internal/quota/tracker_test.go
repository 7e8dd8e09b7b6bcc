package quota

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsageTodaySumsSinceMidnight(t *testing.T) {
	repo := NewMemoryRepository()
	tracker := NewTracker(repo, time.UTC)

	fixed := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	tracker.now = func() time.Time { return fixed }

	userID := uuid.New()
	other := uuid.New()
	ctx := context.Background()
	require.NoError(t, repo.Insert(ctx, NewEntry(userID, 3, fixed.Add(-time.Hour))))
	require.NoError(t, repo.Insert(ctx, NewEntry(userID, 2, fixed.Add(-9*time.Hour))))
	// Yesterday's usage does not count.
	require.NoError(t, repo.Insert(ctx, NewEntry(userID, 7, fixed.Add(-11*time.Hour))))
	// Other users' usage does not count.
	require.NoError(t, repo.Insert(ctx, NewEntry(other, 4, fixed.Add(-time.Hour))))

	used, err := tracker.UsageToday(ctx, userID.String())
	require.NoError(t, err)
	assert.Equal(t, 5, used)
}

func TestRemainingCanGoNegative(t *testing.T) {
	repo := NewMemoryRepository()
	tracker := NewTracker(repo, time.UTC)

	fixed := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	tracker.now = func() time.Time { return fixed }

	userID := uuid.New()
	require.NoError(t, repo.Insert(context.Background(), NewEntry(userID, 3, fixed.Add(-time.Hour))))

	// Limit lowered to 2 after 3 were already consumed.
	rem, err := tracker.Remaining(context.Background(), userID.String(), 2)
	require.NoError(t, err)
	assert.Equal(t, -1, rem)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(1, 5))
	assert.NoError(t, Validate(5, 5))

	assert.ErrorIs(t, Validate(0, 5), ErrInvalidAmount)
	assert.ErrorIs(t, Validate(-3, 5), ErrInvalidAmount)

	err := Validate(6, 5)
	var limitErr *LimitExceededError
	require.True(t, errors.As(err, &limitErr))
	assert.Equal(t, 6, limitErr.Requested)
	assert.Equal(t, 5, limitErr.Remaining)

	// Negative remaining reports zero, not a negative allowance.
	err = Validate(1, -2)
	require.True(t, errors.As(err, &limitErr))
	assert.Equal(t, 0, limitErr.Remaining)
}

func TestRecordWritesOneLedgerEntry(t *testing.T) {
	repo := NewMemoryRepository()
	tracker := NewTracker(repo, time.UTC)

	userID := uuid.New()
	at := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	ctx := context.Background()

	urls := []string{"http://10.0.0.1:8080", "http://10.0.0.2:8080", "http://10.0.0.3:8080"}
	require.NoError(t, tracker.Record(ctx, userID, urls, at))

	// One ledger row with the batch amount, not one per proxy.
	entries := repo.Entries(userID.String())
	require.Len(t, entries, 1)
	assert.Equal(t, 3, entries[0].Amount)
	assert.True(t, entries[0].CreatedAt.Equal(at))

	// The per-proxy rows land in the delivery history instead.
	deliveries, err := repo.ListDeliveries(ctx, userID.String(), 10)
	require.NoError(t, err)
	assert.Len(t, deliveries, 3)

	sum, err := repo.SumSince(ctx, userID.String(), at.Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 3, sum)
}

func TestRecordEmptyBatchIsNoop(t *testing.T) {
	repo := NewMemoryRepository()
	tracker := NewTracker(repo, time.UTC)

	userID := uuid.New()
	require.NoError(t, tracker.Record(context.Background(), userID, nil, time.Now()))
	assert.Empty(t, repo.Entries(userID.String()))
}

func TestHistoryOrdering(t *testing.T) {
	repo := NewMemoryRepository()
	tracker := NewTracker(repo, time.UTC)

	userID := uuid.New()
	base := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	ctx := context.Background()
	require.NoError(t, repo.InsertDeliveries(ctx, []Delivery{
		NewDelivery(userID, "http://old:1", base.Add(-2*time.Hour)),
		NewDelivery(userID, "http://newest:1", base),
		NewDelivery(userID, "http://mid:1", base.Add(-time.Hour)),
	}))

	got, err := tracker.History(ctx, userID.String(), 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "http://newest:1", got[0].ProxyURL)
	assert.Equal(t, "http://mid:1", got[1].ProxyURL)
}
