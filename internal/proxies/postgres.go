package proxies

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) InsertBatch(ctx context.Context, urls []string) (int, int, error) {
	if len(urls) == 0 {
		return 0, 0, nil
	}

	batch := &pgx.Batch{}
	for _, url := range urls {
		batch.Queue(`
			INSERT INTO proxies (id, url)
			VALUES ($1, $2)
			ON CONFLICT (url) DO NOTHING`, uuid.New(), url)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	inserted := 0
	for range urls {
		tag, err := results.Exec()
		if err != nil {
			return inserted, 0, fmt.Errorf("failed to insert proxy: %w", err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, len(urls) - inserted, nil
}

func (s *PostgresStore) CountUnused(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM proxies
		WHERE is_used = false AND claimed_by IS NULL`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unused proxies: %w", err)
	}
	return count, nil
}

// SelectUnused reserves up to limit rows for claimant in one statement.
// SKIP LOCKED keeps concurrent claimants from blocking on each other's
// candidate rows, and the claimed_by stamp keeps the reservation visible
// after commit.
func (s *PostgresStore) SelectUnused(ctx context.Context, limit int, claimant uuid.UUID) ([]Proxy, error) {
	rows, err := s.pool.Query(ctx, `
		UPDATE proxies
		SET claimed_by = $1, claimed_at = now()
		WHERE id IN (
			SELECT id FROM proxies
			WHERE is_used = false AND claimed_by IS NULL
			ORDER BY created_at
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, url, is_used, used_by, used_at, claimed_by, claimed_at, created_at`,
		claimant, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select proxies: %w", err)
	}
	defer rows.Close()

	var out []Proxy
	for rows.Next() {
		var p Proxy
		if err := rows.Scan(&p.ID, &p.URL, &p.IsUsed, &p.UsedBy, &p.UsedAt,
			&p.ClaimedBy, &p.ClaimedAt, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan proxy: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) VerifyClaimable(ctx context.Context, ids []uuid.UUID, claimant uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT wanted.id
		FROM unnest($1::uuid[]) AS wanted(id)
		LEFT JOIN proxies p ON p.id = wanted.id
		WHERE p.id IS NULL
		   OR p.is_used = true
		   OR (p.claimed_by IS NOT NULL AND p.claimed_by <> $2)`,
		ids, claimant)
	if err != nil {
		return nil, fmt.Errorf("failed to verify proxies: %w", err)
	}
	defer rows.Close()

	var conflicts []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan conflict: %w", err)
		}
		conflicts = append(conflicts, id)
	}
	return conflicts, rows.Err()
}

func (s *PostgresStore) MarkUsed(ctx context.Context, id, userID uuid.UUID, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE proxies
		SET is_used = true, used_by = $2, used_at = $3, claimed_by = NULL, claimed_at = NULL
		WHERE id = $1 AND is_used = false`, id, userID, at)
	if err != nil {
		return fmt.Errorf("failed to mark proxy used: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("proxy %s already used or gone", id)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM proxies WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete proxy: %w", err)
	}
	return nil
}

func (s *PostgresStore) Release(ctx context.Context, ids []uuid.UUID, claimant uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx, `
		UPDATE proxies
		SET claimed_by = NULL, claimed_at = NULL
		WHERE id = ANY($1) AND claimed_by = $2`, ids, claimant)
	if err != nil {
		return fmt.Errorf("failed to release proxies: %w", err)
	}
	return nil
}

func (s *PostgresStore) ReleaseExpired(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE proxies
		SET claimed_by = NULL, claimed_at = NULL
		WHERE claimed_by IS NOT NULL AND claimed_at < $1 AND is_used = false`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to release expired reservations: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
