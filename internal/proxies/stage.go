package proxies

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const stageKeyPrefix = "proxydesk:stage:"

// StageStore holds staged claims in redis. The key TTL is the stage's
// lifetime; expiry leaves only the DB-side reservation, which the janitor
// sweeps.
type StageStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStageStore(client *redis.Client, ttl time.Duration) *StageStore {
	return &StageStore{client: client, ttl: ttl}
}

func (s *StageStore) TTL() time.Duration {
	return s.ttl
}

func stageKey(userID uuid.UUID) string {
	return stageKeyPrefix + userID.String()
}

func (s *StageStore) Put(ctx context.Context, claim *StagedClaim) error {
	data, err := json.Marshal(claim)
	if err != nil {
		return fmt.Errorf("failed to marshal staged claim: %w", err)
	}
	if err := s.client.Set(ctx, stageKey(claim.UserID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store staged claim: %w", err)
	}
	return nil
}

// Get returns the user's staged claim, or nil when none is live.
func (s *StageStore) Get(ctx context.Context, userID uuid.UUID) (*StagedClaim, error) {
	data, err := s.client.Get(ctx, stageKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load staged claim: %w", err)
	}

	var claim StagedClaim
	if err := json.Unmarshal(data, &claim); err != nil {
		return nil, fmt.Errorf("failed to unmarshal staged claim: %w", err)
	}
	return &claim, nil
}

func (s *StageStore) Delete(ctx context.Context, userID uuid.UUID) error {
	if err := s.client.Del(ctx, stageKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to delete staged claim: %w", err)
	}
	return nil
}
