package proxies

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store for unit tests. Unlike the postgres
// store it does NOT reserve rows in SelectUnused, so two claimants can pick
// the same proxy; tests lean on that to drive the verify conflict path.
type MemoryStore struct {
	mu      sync.Mutex
	byID    map[uuid.UUID]*Proxy
	byURL   map[string]uuid.UUID
	Reserve bool // opt in to postgres-like reservation
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:  make(map[uuid.UUID]*Proxy),
		byURL: make(map[string]uuid.UUID),
	}
}

func (s *MemoryStore) InsertBatch(_ context.Context, urls []string) (int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inserted := 0
	for _, url := range urls {
		if _, dup := s.byURL[url]; dup {
			continue
		}
		p := &Proxy{ID: uuid.New(), URL: url, CreatedAt: time.Now()}
		s.byID[p.ID] = p
		s.byURL[url] = p.ID
		inserted++
	}
	return inserted, len(urls) - inserted, nil
}

func (s *MemoryStore) CountUnused(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, p := range s.byID {
		if !p.IsUsed && p.ClaimedBy == nil {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) SelectUnused(_ context.Context, limit int, claimant uuid.UUID) ([]Proxy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var candidates []*Proxy
	for _, p := range s.byID {
		if !p.IsUsed && (p.ClaimedBy == nil || *p.ClaimedBy == claimant) {
			candidates = append(candidates, p)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	out := make([]Proxy, 0, len(candidates))
	for _, p := range candidates {
		if s.Reserve {
			now := time.Now()
			c := claimant
			p.ClaimedBy = &c
			p.ClaimedAt = &now
		}
		out = append(out, *p)
	}
	return out, nil
}

func (s *MemoryStore) VerifyClaimable(_ context.Context, ids []uuid.UUID, claimant uuid.UUID) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var conflicts []uuid.UUID
	for _, id := range ids {
		p, ok := s.byID[id]
		if !ok || p.IsUsed || (p.ClaimedBy != nil && *p.ClaimedBy != claimant) {
			conflicts = append(conflicts, id)
		}
	}
	return conflicts, nil
}

func (s *MemoryStore) MarkUsed(_ context.Context, id, userID uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok || p.IsUsed {
		return errAlreadyUsed(id)
	}
	p.IsUsed = true
	p.UsedBy = &userID
	p.UsedAt = &at
	p.ClaimedBy = nil
	p.ClaimedAt = nil
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.byID[id]; ok {
		delete(s.byURL, p.URL)
		delete(s.byID, id)
	}
	return nil
}

func (s *MemoryStore) Release(_ context.Context, ids []uuid.UUID, claimant uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if p, ok := s.byID[id]; ok && p.ClaimedBy != nil && *p.ClaimedBy == claimant {
			p.ClaimedBy = nil
			p.ClaimedAt = nil
		}
	}
	return nil
}

func (s *MemoryStore) ReleaseExpired(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	released := 0
	for _, p := range s.byID {
		if p.ClaimedBy != nil && p.ClaimedAt != nil && p.ClaimedAt.Before(cutoff) && !p.IsUsed {
			p.ClaimedBy = nil
			p.ClaimedAt = nil
			released++
		}
	}
	return released, nil
}

// MarkUsedExternally flips a proxy to used outside any claim flow. Test
// helper for simulating a competing writer.
func (s *MemoryStore) MarkUsedExternally(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.byID[id]; ok {
		now := time.Now()
		other := uuid.New()
		p.IsUsed = true
		p.UsedBy = &other
		p.UsedAt = &now
	}
}
