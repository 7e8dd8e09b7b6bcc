package audit

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Record is one persisted domain event. Payload keeps the event's original
// JSON so new event fields never require a migration.
type Record struct {
	ID        uuid.UUID       `json:"id"`
	Subject   string          `json:"subject"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}
