package proxies

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/proxydesk/proxydesk/internal/cooldown"
	"github.com/proxydesk/proxydesk/internal/metrics"
	"github.com/proxydesk/proxydesk/internal/nats"
	"github.com/proxydesk/proxydesk/internal/quota"
	"github.com/proxydesk/proxydesk/internal/users"
)

// Claimer runs the two-phase claim protocol: Claim selects and stages a
// batch, Finalize consumes it. The stage lives in redis with a TTL; the DB
// reservation backing it is swept by the janitor once the stage lapses.
type Claimer struct {
	store   Store
	stage   *StageStore
	users   *users.Service
	tracker *quota.Tracker
	events  *nats.Publisher
	logger  *slog.Logger

	maxBatch int
	now      func() time.Time
}

func NewClaimer(store Store, stage *StageStore, userSvc *users.Service, tracker *quota.Tracker,
	events *nats.Publisher, logger *slog.Logger, maxBatch int) *Claimer {
	return &Claimer{
		store:    store,
		stage:    stage,
		users:    userSvc,
		tracker:  tracker,
		events:   events,
		logger:   logger,
		maxBatch: maxBatch,
		now:      time.Now,
	}
}

// Availability reports what the user could claim right now.
func (c *Claimer) Availability(ctx context.Context, user *users.User) (*Availability, error) {
	used, err := c.tracker.UsageToday(ctx, user.ID.String())
	if err != nil {
		return nil, err
	}
	unused, err := c.store.CountUnused(ctx)
	if err != nil {
		return nil, err
	}

	remaining := max(user.DailyLimit-used, 0)
	state := cooldown.Status(user.NextGenerationAt, c.now())
	claimable := min(remaining, unused, c.maxBatch)
	if state.Phase == cooldown.PhaseInCooldown {
		claimable = 0
	}

	return &Availability{
		UsedToday:  used,
		DailyLimit: user.DailyLimit,
		Remaining:  remaining,
		Unused:     unused,
		Claimable:  claimable,
		InCooldown: state.Phase == cooldown.PhaseInCooldown,
	}, nil
}

// Claim selects count proxies and stages them for the user. Any previously
// staged claim is cancelled first, so repeat claims never leak
// reservations. The selection is re-verified before staging; a conflict
// releases everything and reports contention.
func (c *Claimer) Claim(ctx context.Context, user *users.User, count int) (*StagedClaim, error) {
	now := c.now()

	if state := cooldown.Status(user.NextGenerationAt, now); state.Phase == cooldown.PhaseInCooldown {
		metrics.ClaimsTotal.WithLabelValues("in_cooldown").Inc()
		return nil, &InCooldownError{Until: *state.Until, Remaining: state.Remaining}
	}

	remaining, err := c.tracker.Remaining(ctx, user.ID.String(), user.DailyLimit)
	if err != nil {
		return nil, err
	}
	if count > c.maxBatch {
		count = c.maxBatch
	}
	if err := quota.Validate(count, remaining); err != nil {
		metrics.ClaimsTotal.WithLabelValues("limit_exceeded").Inc()
		return nil, err
	}

	if err := c.Cancel(ctx, user); err != nil && err != ErrNoStagedClaim {
		return nil, err
	}

	unused, err := c.store.CountUnused(ctx)
	if err != nil {
		return nil, err
	}
	if unused == 0 {
		metrics.ClaimsTotal.WithLabelValues("pool_empty").Inc()
		return nil, ErrPoolEmpty
	}
	if unused < count {
		metrics.ClaimsTotal.WithLabelValues("insufficient").Inc()
		return nil, &InsufficientError{Requested: count, Available: unused}
	}

	selected, err := c.store.SelectUnused(ctx, count, user.ID)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, len(selected))
	urls := make([]string, len(selected))
	for i, p := range selected {
		ids[i] = p.ID
		urls[i] = p.URL
	}

	if len(selected) < count {
		// The partial selection is already reserved; give it back rather
		// than holding it until the janitor sweeps.
		if relErr := c.store.Release(ctx, ids, user.ID); relErr != nil {
			c.logger.Error("failed to release short selection", "user_id", user.ID, "error", relErr)
		}
		metrics.ClaimsTotal.WithLabelValues("insufficient").Inc()
		return nil, &InsufficientError{Requested: count, Available: len(selected)}
	}

	conflicts, err := c.store.VerifyClaimable(ctx, ids, user.ID)
	if err != nil {
		return nil, err
	}
	if len(conflicts) > 0 {
		if relErr := c.store.Release(ctx, ids, user.ID); relErr != nil {
			c.logger.Error("failed to release conflicted selection", "user_id", user.ID, "error", relErr)
		}
		metrics.ClaimsTotal.WithLabelValues("contention").Inc()
		c.logger.Warn("claim contention", "user_id", user.ID, "conflicts", len(conflicts))
		return nil, ErrContention
	}

	claim := &StagedClaim{
		UserID:    user.ID,
		ProxyIDs:  ids,
		URLs:      urls,
		StagedAt:  now,
		ExpiresAt: now.Add(c.stage.TTL()),
	}
	if err := c.stage.Put(ctx, claim); err != nil {
		if relErr := c.store.Release(ctx, ids, user.ID); relErr != nil {
			c.logger.Error("failed to release after stage failure", "user_id", user.ID, "error", relErr)
		}
		return nil, err
	}

	metrics.ClaimsTotal.WithLabelValues("staged").Inc()
	c.logger.Info("claim staged", "user_id", user.ID, "count", len(urls))
	c.events.Publish(nats.SubjectClaimStaged, nats.ClaimStagedEvent{
		UserID:    user.ID.String(),
		Username:  user.Username,
		Count:     len(urls),
		StagedAt:  claim.StagedAt,
		ExpiresAt: claim.ExpiresAt,
	})
	return claim, nil
}

// ClaimAll stages everything the user may still take today. When the pool
// holds fewer proxies than the user's remaining allowance, the caller must
// have confirmed the smaller batch via acceptFewer; otherwise the shortfall
// is reported so the client can ask.
func (c *Claimer) ClaimAll(ctx context.Context, user *users.User, acceptFewer bool) (*StagedClaim, error) {
	avail, err := c.Availability(ctx, user)
	if err != nil {
		return nil, err
	}
	if avail.InCooldown {
		state := cooldown.Status(user.NextGenerationAt, c.now())
		metrics.ClaimsTotal.WithLabelValues("in_cooldown").Inc()
		return nil, &InCooldownError{Until: *state.Until, Remaining: state.Remaining}
	}
	if avail.Unused == 0 {
		metrics.ClaimsTotal.WithLabelValues("pool_empty").Inc()
		return nil, ErrPoolEmpty
	}
	if avail.Claimable == 0 {
		metrics.ClaimsTotal.WithLabelValues("limit_exceeded").Inc()
		return nil, &quota.LimitExceededError{Requested: 1, Remaining: 0}
	}
	if avail.Unused < avail.Remaining && !acceptFewer {
		metrics.ClaimsTotal.WithLabelValues("insufficient").Inc()
		return nil, &InsufficientError{Requested: avail.Remaining, Available: avail.Unused}
	}
	return c.Claim(ctx, user, avail.Claimable)
}

// Staged returns the user's live staged claim, if any.
func (c *Claimer) Staged(ctx context.Context, user *users.User) (*StagedClaim, error) {
	return c.stage.Get(ctx, user.ID)
}

// Cancel drops the user's staged claim and releases its reservations.
func (c *Claimer) Cancel(ctx context.Context, user *users.User) error {
	claim, err := c.stage.Get(ctx, user.ID)
	if err != nil {
		return err
	}
	if claim == nil {
		return ErrNoStagedClaim
	}
	if err := c.store.Release(ctx, claim.ProxyIDs, user.ID); err != nil {
		return err
	}
	return c.stage.Delete(ctx, user.ID)
}

// Finalize consumes the staged claim: each proxy is re-verified, marked
// used and deleted from the pool; the batch is then booked as one usage
// ledger entry plus per-url delivery records. Per-proxy
// failures are collected and reported but never rolled back; the caller
// keeps every URL that made it through. When the day's limit is exhausted
// by this finalization, the cooldown gate arms.
func (c *Claimer) Finalize(ctx context.Context, user *users.User) (*ClaimResult, error) {
	claim, err := c.stage.Get(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if claim == nil {
		return nil, ErrNoStagedClaim
	}

	now := c.now()

	conflicts, err := c.store.VerifyClaimable(ctx, claim.ProxyIDs, user.ID)
	if err != nil {
		return nil, err
	}
	if len(conflicts) > 0 {
		_ = c.store.Release(ctx, claim.ProxyIDs, user.ID)
		_ = c.stage.Delete(ctx, user.ID)
		metrics.ClaimsTotal.WithLabelValues("contention").Inc()
		return nil, ErrContention
	}

	var (
		finalized []string
		failed    []string
	)
	for i, id := range claim.ProxyIDs {
		url := claim.URLs[i]
		if err := c.store.MarkUsed(ctx, id, user.ID, now); err != nil {
			c.logger.Error("failed to mark proxy used", "proxy_id", id, "error", err)
			failed = append(failed, url)
			continue
		}
		if err := c.store.Delete(ctx, id); err != nil {
			// The row is already marked used; keep going so the user
			// still gets the URL.
			c.logger.Error("failed to delete finalized proxy", "proxy_id", id, "error", err)
		}
		finalized = append(finalized, url)
	}

	if err := c.tracker.Record(ctx, user.ID, finalized, now); err != nil {
		c.logger.Error("failed to record usage", "user_id", user.ID, "error", err)
	}
	if err := c.stage.Delete(ctx, user.ID); err != nil {
		c.logger.Error("failed to drop stage after finalize", "user_id", user.ID, "error", err)
	}

	metrics.ProxiesFinalizedTotal.Add(float64(len(finalized)))
	if len(failed) > 0 {
		c.events.Publish(nats.SubjectFinalizePartial, nats.FinalizePartialEvent{
			UserID:   user.ID.String(),
			Failed:   failed,
			Detail:   "some proxies could not be finalized",
			Occurred: now,
		})
	}

	used, err := c.tracker.UsageToday(ctx, user.ID.String())
	if err != nil {
		return nil, err
	}

	result := &ClaimResult{
		URLs:       finalized,
		Finalized:  len(finalized),
		Failed:     failed,
		UsedToday:  used,
		DailyLimit: user.DailyLimit,
	}

	if used >= user.DailyLimit {
		upd := cooldown.Arm(now, cooldown.PeriodFromHours(user.CooldownHours))
		if _, err := c.users.ApplyCooldown(ctx, user.ID.String(), upd); err != nil {
			c.logger.Error("failed to arm cooldown", "user_id", user.ID, "error", err)
		} else if upd.NextGenerationAt != nil {
			result.CooldownUntil = upd.NextGenerationAt
			metrics.CooldownsArmedTotal.Inc()
			c.events.Publish(nats.SubjectCooldownArmed, nats.CooldownArmedEvent{
				UserID:  user.ID.String(),
				Until:   *upd.NextGenerationAt,
				ArmedAt: now,
			})
		}
	}

	c.logger.Info("claim finalized",
		"user_id", user.ID, "finalized", len(finalized), "failed", len(failed), "used_today", used)
	c.events.Publish(nats.SubjectClaimFinalized, nats.ClaimFinalizedEvent{
		UserID:      user.ID.String(),
		Username:    user.Username,
		Count:       len(finalized),
		UsedToday:   used,
		DailyLimit:  user.DailyLimit,
		CooldownSet: result.CooldownUntil != nil,
		FinalizedAt: now,
	})
	return result, nil
}

// Import adds a newline-separated list of proxy urls to the pool.
func (c *Claimer) Import(ctx context.Context, actorID string, raw string) (int, int, error) {
	var urls []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		urls = append(urls, line)
	}

	inserted, skipped, err := c.store.InsertBatch(ctx, urls)
	if err != nil {
		return 0, 0, err
	}

	c.logger.Info("proxies imported", "actor_id", actorID, "inserted", inserted, "skipped", skipped)
	c.events.Publish(nats.SubjectProxiesImported, nats.ProxiesImportedEvent{
		ActorID:  actorID,
		Inserted: inserted,
		Skipped:  skipped,
	})
	return inserted, skipped, nil
}

// RunJanitor periodically releases DB reservations whose stage has lapsed.
// Blocks until ctx is done.
func (c *Claimer) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := c.now().Add(-c.stage.TTL())
			released, err := c.store.ReleaseExpired(ctx, cutoff)
			if err != nil {
				c.logger.Error("janitor sweep failed", "error", err)
				continue
			}
			if released > 0 {
				metrics.StagesReleasedTotal.Add(float64(released))
				c.logger.Info("released expired reservations", "count", released)
			}
		}
	}
}
