package limits

import (
	"context"
	"log/slog"
	"sync"

	"github.com/proxydesk/proxydesk/internal/metrics"
	"github.com/proxydesk/proxydesk/internal/nats"
	"github.com/proxydesk/proxydesk/internal/users"
)

// Update is one user's new limit pair in a batch edit.
type Update struct {
	UserID        string `json:"user_id" validate:"required,uuid"`
	DailyLimit    int    `json:"daily_limit" validate:"min=0"`
	CooldownHours int    `json:"cooldown_hours" validate:"min=0"`
}

// Failure reports one user whose update did not land.
type Failure struct {
	UserID string `json:"user_id"`
	Reason string `json:"reason"`
}

// Result tallies a batch edit. A batch never fails as a whole: every
// update is attempted and the split is reported.
type Result struct {
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	Failures  []Failure `json:"failures,omitempty"`
}

// Editor applies limit edits to many users at once. Updates run
// concurrently and independently, so one rejected user never blocks or
// rolls back the rest.
type Editor struct {
	users  *users.Service
	events *nats.Publisher
	logger *slog.Logger
}

func NewEditor(userSvc *users.Service, events *nats.Publisher, logger *slog.Logger) *Editor {
	return &Editor{users: userSvc, events: events, logger: logger}
}

// Apply fans the updates out and waits for all of them.
func (e *Editor) Apply(ctx context.Context, actorID string, actor users.Role, updates []Update) *Result {
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		result   Result
		targetIDs []string
	)

	for _, upd := range updates {
		targetIDs = append(targetIDs, upd.UserID)
		wg.Add(1)
		go func(upd Update) {
			defer wg.Done()
			_, err := e.users.UpdateLimits(ctx, actor, upd.UserID, upd.DailyLimit, upd.CooldownHours)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed++
				result.Failures = append(result.Failures, Failure{UserID: upd.UserID, Reason: err.Error()})
				metrics.BatchLimitUpdatesTotal.WithLabelValues("failed").Inc()
				return
			}
			result.Succeeded++
			metrics.BatchLimitUpdatesTotal.WithLabelValues("succeeded").Inc()
		}(upd)
	}
	wg.Wait()

	e.logger.Info("batch limit edit",
		"actor_id", actorID, "total", len(updates),
		"succeeded", result.Succeeded, "failed", result.Failed)
	e.events.Publish(nats.SubjectLimitsUpdated, nats.LimitsUpdatedEvent{
		ActorID:   actorID,
		TargetIDs: targetIDs,
		Succeeded: result.Succeeded,
		Failed:    result.Failed,
	})
	return &result
}
