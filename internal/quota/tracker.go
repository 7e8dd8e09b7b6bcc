package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidAmount = errors.New("requested amount must be at least 1")

// LimitExceededError reports a request for more proxies than the day's
// remaining allowance.
type LimitExceededError struct {
	Requested int
	Remaining int
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("requested %d proxies but only %d remaining today", e.Requested, e.Remaining)
}

// Tracker computes daily usage against per-user limits. The day boundary is
// local midnight in the configured location, not a rolling 24h window.
type Tracker struct {
	repo Repository
	loc  *time.Location
	now  func() time.Time
}

func NewTracker(repo Repository, loc *time.Location) *Tracker {
	if loc == nil {
		loc = time.Local
	}
	return &Tracker{repo: repo, loc: loc, now: time.Now}
}

// StartOfDay returns local midnight of the current day.
func (t *Tracker) StartOfDay() time.Time {
	now := t.now().In(t.loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, t.loc)
}

// UsageToday sums the user's consumed amounts since local midnight.
func (t *Tracker) UsageToday(ctx context.Context, userID string) (int, error) {
	return t.repo.SumSince(ctx, userID, t.StartOfDay())
}

// Remaining returns dailyLimit minus today's usage. The result can be
// negative when a limit was lowered below the amount already consumed;
// callers clamp for display.
func (t *Tracker) Remaining(ctx context.Context, userID string, dailyLimit int) (int, error) {
	used, err := t.UsageToday(ctx, userID)
	if err != nil {
		return 0, err
	}
	return dailyLimit - used, nil
}

// Validate rejects a claim amount outside [1, remaining].
func Validate(requested, remaining int) error {
	if requested < 1 {
		return ErrInvalidAmount
	}
	if requested > remaining {
		return &LimitExceededError{Requested: requested, Remaining: max(remaining, 0)}
	}
	return nil
}

// Record books one finalized claim: a single ledger entry carrying the
// total amount, plus one delivery row per handed-out url.
func (t *Tracker) Record(ctx context.Context, userID uuid.UUID, urls []string, at time.Time) error {
	if len(urls) == 0 {
		return nil
	}
	if err := t.repo.Insert(ctx, NewEntry(userID, len(urls), at)); err != nil {
		return err
	}
	deliveries := make([]Delivery, len(urls))
	for i, url := range urls {
		deliveries[i] = NewDelivery(userID, url, at)
	}
	return t.repo.InsertDeliveries(ctx, deliveries)
}

// History returns the user's most recent deliveries.
func (t *Tracker) History(ctx context.Context, userID string, limit int) ([]Delivery, error) {
	return t.repo.ListDeliveries(ctx, userID, limit)
}
