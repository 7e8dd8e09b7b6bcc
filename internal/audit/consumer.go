package audit

import (
	"context"
	"log/slog"
	"time"

	natsgo "github.com/nats-io/nats.go"

	"github.com/proxydesk/proxydesk/internal/nats"
)

// Consumer drains the event stream into the audit table through a durable
// subscription, so restarts pick up where the last ack left off.
type Consumer struct {
	client *nats.Client
	repo   Repository
	logger *slog.Logger
	sub    *natsgo.Subscription
}

func NewConsumer(client *nats.Client, repo Repository, logger *slog.Logger) *Consumer {
	return &Consumer{client: client, repo: repo, logger: logger}
}

func (c *Consumer) Start(ctx context.Context) error {
	sub, err := c.client.JS.Subscribe(nats.StreamSubjects, func(msg *natsgo.Msg) {
		c.handle(ctx, msg)
	}, natsgo.Durable("audit-writer"), natsgo.ManualAck(), natsgo.AckWait(30*time.Second))
	if err != nil {
		return err
	}
	c.sub = sub
	c.logger.Info("audit consumer started", "subjects", nats.StreamSubjects)
	return nil
}

func (c *Consumer) handle(ctx context.Context, msg *natsgo.Msg) {
	if err := c.repo.Insert(ctx, msg.Subject, msg.Data); err != nil {
		// Nak so the message is redelivered once the DB recovers.
		c.logger.Error("failed to persist audit record", "subject", msg.Subject, "error", err)
		_ = msg.Nak()
		return
	}
	_ = msg.Ack()
}

func (c *Consumer) Stop() {
	if c.sub != nil {
		_ = c.sub.Drain()
	}
}
