package quota

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository interface {
	Insert(ctx context.Context, entry Entry) error
	SumSince(ctx context.Context, userID string, since time.Time) (int, error)
	InsertDeliveries(ctx context.Context, deliveries []Delivery) error
	ListDeliveries(ctx context.Context, userID string, limit int) ([]Delivery, error)
}

type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) Insert(ctx context.Context, entry Entry) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO usage_logs (id, user_id, amount, created_at)
		VALUES ($1, $2, $3, $4)`,
		entry.ID, entry.UserID, entry.Amount, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert usage entry: %w", err)
	}
	return nil
}

func (r *PostgresRepository) SumSince(ctx context.Context, userID string, since time.Time) (int, error) {
	var sum int
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM usage_logs WHERE user_id = $1 AND created_at >= $2`,
		userID, since).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("failed to sum usage: %w", err)
	}
	return sum, nil
}

func (r *PostgresRepository) InsertDeliveries(ctx context.Context, deliveries []Delivery) error {
	if len(deliveries) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, d := range deliveries {
		batch.Queue(`
			INSERT INTO claimed_proxies (id, user_id, proxy_url, used_at)
			VALUES ($1, $2, $3, $4)`,
			d.ID, d.UserID, d.ProxyURL, d.UsedAt)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range deliveries {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to insert delivery: %w", err)
		}
	}
	return nil
}

func (r *PostgresRepository) ListDeliveries(ctx context.Context, userID string, limit int) ([]Delivery, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, proxy_url, used_at
		FROM claimed_proxies
		WHERE user_id = $1
		ORDER BY used_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list deliveries: %w", err)
	}
	defer rows.Close()

	var out []Delivery
	for rows.Next() {
		var d Delivery
		if err := rows.Scan(&d.ID, &d.UserID, &d.ProxyURL, &d.UsedAt); err != nil {
			return nil, fmt.Errorf("failed to scan delivery: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// MemoryRepository is an in-memory Repository used by unit tests.
type MemoryRepository struct {
	mu         sync.RWMutex
	entries    []Entry
	deliveries []Delivery
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) Insert(_ context.Context, entry Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	return nil
}

func (r *MemoryRepository) SumSince(_ context.Context, userID string, since time.Time) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sum := 0
	for _, e := range r.entries {
		if e.UserID.String() == userID && !e.CreatedAt.Before(since) {
			sum += e.Amount
		}
	}
	return sum, nil
}

// Entries returns the user's raw ledger rows. Test helper.
func (r *MemoryRepository) Entries(userID string) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Entry
	for _, e := range r.entries {
		if e.UserID.String() == userID {
			out = append(out, e)
		}
	}
	return out
}

func (r *MemoryRepository) InsertDeliveries(_ context.Context, deliveries []Delivery) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deliveries = append(r.deliveries, deliveries...)
	return nil
}

func (r *MemoryRepository) ListDeliveries(_ context.Context, userID string, limit int) ([]Delivery, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Delivery
	for _, d := range r.deliveries {
		if d.UserID.String() == userID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UsedAt.After(out[j].UsedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
