package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository interface {
	Insert(ctx context.Context, subject string, payload json.RawMessage) error
	List(ctx context.Context, subject string, limit, offset int) ([]Record, int, error)
}

type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) Insert(ctx context.Context, subject string, payload json.RawMessage) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO audit_logs (id, subject, payload)
		VALUES ($1, $2, $3)`, uuid.New(), subject, payload)
	if err != nil {
		return fmt.Errorf("failed to insert audit record: %w", err)
	}
	return nil
}

// List returns newest-first records, optionally filtered by subject, plus
// the total for pagination.
func (r *PostgresRepository) List(ctx context.Context, subject string, limit, offset int) ([]Record, int, error) {
	var total int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM audit_logs
		WHERE ($1 = '' OR subject = $1)`, subject).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count audit records: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, subject, payload, created_at
		FROM audit_logs
		WHERE ($1 = '' OR subject = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, subject, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list audit records: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.Subject, &rec.Payload, &rec.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan audit record: %w", err)
		}
		out = append(out, rec)
	}
	return out, total, rows.Err()
}

// MemoryRepository is an in-memory Repository used by unit tests.
type MemoryRepository struct {
	mu      sync.RWMutex
	records []Record
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) Insert(_ context.Context, subject string, payload json.RawMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, Record{
		ID:        uuid.New(),
		Subject:   subject,
		Payload:   payload,
		CreatedAt: time.Now(),
	})
	return nil
}

func (r *MemoryRepository) List(_ context.Context, subject string, limit, offset int) ([]Record, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var filtered []Record
	for _, rec := range r.records {
		if subject == "" || rec.Subject == subject {
			filtered = append(filtered, rec)
		}
	}
	total := len(filtered)

	// Newest first.
	for i, j := 0, len(filtered)-1; i < j; i, j = i+1, j-1 {
		filtered[i], filtered[j] = filtered[j], filtered[i]
	}
	if offset > len(filtered) {
		offset = len(filtered)
	}
	filtered = filtered[offset:]
	if len(filtered) > limit {
		filtered = filtered[:limit]
	}
	return filtered, total, nil
}
