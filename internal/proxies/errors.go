package proxies

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrContention means the staged selection was invalidated by a
	// concurrent claim between selection and verification.
	ErrContention = errors.New("proxies were claimed by another user, please retry")

	// ErrNoStagedClaim means finalize or cancel was called without a live
	// staged claim.
	ErrNoStagedClaim = errors.New("no staged claim to finalize")

	// ErrPoolEmpty means the pool has no claimable proxies at all.
	ErrPoolEmpty = errors.New("no proxies available")
)

// InCooldownError rejects a claim while the user's cooldown gate is closed.
type InCooldownError struct {
	Until     time.Time
	Remaining time.Duration
}

func (e *InCooldownError) Error() string {
	return fmt.Sprintf("in cooldown for another %s", e.Remaining.Truncate(time.Second))
}

// InsufficientError rejects a claim for more proxies than the pool holds.
type InsufficientError struct {
	Requested int
	Available int
}

func (e *InsufficientError) Error() string {
	return fmt.Sprintf("requested %d proxies but only %d available", e.Requested, e.Available)
}

func errAlreadyUsed(id uuid.UUID) error {
	return fmt.Errorf("proxy %s already used or gone", id)
}
