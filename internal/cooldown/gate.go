// Package cooldown derives cooldown state from stored timestamps. It never
// mutates anything itself: transitions are expressed as Update values that
// the caller persists, so a failed write leaves the previous state intact.
package cooldown

import (
	"context"
	"time"
)

type Phase string

const (
	PhaseAvailable  Phase = "available"
	PhaseInCooldown Phase = "in_cooldown"
)

// State is a point-in-time view of a user's cooldown gate.
type State struct {
	Phase     Phase          `json:"phase"`
	Remaining time.Duration  `json:"-"`
	Seconds   int64          `json:"remaining_seconds"`
	Until     *time.Time     `json:"until,omitempty"`
}

// Update carries the pair of timestamps a transition writes. The zero value
// (both nil) is a full reset.
type Update struct {
	LastGenerationAt *time.Time
	NextGenerationAt *time.Time
}

// IsReset reports whether applying u clears the cooldown entirely.
func (u Update) IsReset() bool {
	return u.LastGenerationAt == nil && u.NextGenerationAt == nil
}

// PeriodFromHours converts the stored cooldown_hours column into a duration.
func PeriodFromHours(hours int) time.Duration {
	return time.Duration(hours) * time.Hour
}

// Status re-derives the gate state from next at the given instant. Remaining
// is floored to whole seconds so successive one-second ticks never repeat a
// value.
func Status(next *time.Time, now time.Time) State {
	if next == nil || !next.After(now) {
		return State{Phase: PhaseAvailable}
	}
	rem := next.Sub(now).Truncate(time.Second)
	until := *next
	return State{
		Phase:     PhaseInCooldown,
		Remaining: rem,
		Seconds:   int64(rem / time.Second),
		Until:     &until,
	}
}

// Arm produces the transition entered when a finalization exhausts the daily
// limit: last = now, next = now + period. A zero period arms nothing beyond
// the last-generation stamp.
func Arm(now time.Time, period time.Duration) Update {
	last := now
	if period <= 0 {
		return Update{LastGenerationAt: &last}
	}
	next := now.Add(period)
	return Update{LastGenerationAt: &last, NextGenerationAt: &next}
}

// Override produces an administrative transition to an explicit end time.
// A target at or before now means a full reset, clearing both stamps rather
// than leaving a stale last-generation marker behind.
func Override(until *time.Time, now time.Time) Update {
	if until == nil || !until.After(now) {
		return Update{}
	}
	last := now
	next := *until
	return Update{LastGenerationAt: &last, NextGenerationAt: &next}
}

// Tick streams the gate state every interval until the cooldown lapses or
// ctx is cancelled. The first state is emitted immediately; the channel is
// closed after the terminal available state.
func Tick(ctx context.Context, next *time.Time, interval time.Duration, now func() time.Time) <-chan State {
	if now == nil {
		now = time.Now
	}
	out := make(chan State, 1)
	go func() {
		defer close(out)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			st := Status(next, now())
			select {
			case out <- st:
			case <-ctx.Done():
				return
			}
			if st.Phase == PhaseAvailable {
				return
			}
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
