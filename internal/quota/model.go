package quota

import (
	"time"

	"github.com/google/uuid"
)

// Entry is one row of the quota ledger: a single record per finalized
// claim carrying how many proxies it consumed. Usage-today is the sum of
// Amount since local midnight.
type Entry struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Amount    int       `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}

func NewEntry(userID uuid.UUID, amount int, at time.Time) Entry {
	return Entry{
		ID:        uuid.New(),
		UserID:    userID,
		Amount:    amount,
		CreatedAt: at,
	}
}

// Delivery is one consumed proxy url, kept separately from the ledger so
// history listings and file exports can show what was handed out without
// the quota arithmetic ever touching per-proxy rows.
type Delivery struct {
	ID       uuid.UUID `json:"id"`
	UserID   uuid.UUID `json:"user_id"`
	ProxyURL string    `json:"proxy_url"`
	UsedAt   time.Time `json:"used_at"`
}

func NewDelivery(userID uuid.UUID, proxyURL string, usedAt time.Time) Delivery {
	return Delivery{
		ID:       uuid.New(),
		UserID:   userID,
		ProxyURL: proxyURL,
		UsedAt:   usedAt,
	}
}
