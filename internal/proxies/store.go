package proxies

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store is the proxy pool. The postgres implementation reserves rows inside
// SelectUnused so concurrent claimants never receive the same proxy; the
// in-memory implementation used by tests selects without reserving, which
// exercises the verify-and-release path.
type Store interface {
	// InsertBatch adds urls to the pool, skipping duplicates. Returns how
	// many were inserted and how many were skipped.
	InsertBatch(ctx context.Context, urls []string) (inserted, skipped int, err error)

	// CountUnused returns the number of claimable proxies.
	CountUnused(ctx context.Context) (int, error)

	// SelectUnused picks up to limit claimable proxies for claimant.
	SelectUnused(ctx context.Context, limit int, claimant uuid.UUID) ([]Proxy, error)

	// VerifyClaimable returns the subset of ids no longer claimable by
	// claimant: used, deleted, or reserved by someone else.
	VerifyClaimable(ctx context.Context, ids []uuid.UUID, claimant uuid.UUID) (conflicts []uuid.UUID, err error)

	// MarkUsed finalizes a single proxy for userID.
	MarkUsed(ctx context.Context, id, userID uuid.UUID, at time.Time) error

	// Delete removes a proxy from the pool.
	Delete(ctx context.Context, id uuid.UUID) error

	// Release drops claimant's reservation on ids, leaving the rows
	// claimable again.
	Release(ctx context.Context, ids []uuid.UUID, claimant uuid.UUID) error

	// ReleaseExpired drops all reservations older than cutoff and returns
	// how many were released.
	ReleaseExpired(ctx context.Context, cutoff time.Time) (int, error)
}
