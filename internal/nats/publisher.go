package nats

import (
	"encoding/json"
	"log/slog"
)

// Publisher pushes domain events onto the stream. A nil Publisher is a
// no-op, so services can run without a broker in tests.
type Publisher struct {
	client *Client
	logger *slog.Logger
}

func NewPublisher(client *Client, logger *slog.Logger) *Publisher {
	return &Publisher{client: client, logger: logger}
}

// Publish marshals payload and sends it on subject. Publish failures are
// logged rather than propagated: events are an audit trail, not part of the
// request's success.
func (p *Publisher) Publish(subject string, payload any) {
	if p == nil || p.client == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		p.logger.Error("failed to marshal event", "subject", subject, "error", err)
		return
	}
	if _, err := p.client.JS.Publish(subject, data); err != nil {
		p.logger.Error("failed to publish event", "subject", subject, "error", err)
	}
}
