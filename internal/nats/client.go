package nats

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

const (
	StreamName     = "PROXYDESK"
	SubjectPrefix  = "proxydesk"
	StreamSubjects = SubjectPrefix + ".>"
)

type Client struct {
	Conn *nats.Conn
	JS   nats.JetStreamContext
}

func NewClient(url string) (*Client, error) {
	conn, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create jetstream context: %w", err)
	}

	client := &Client{Conn: conn, JS: js}
	if err := client.ensureStream(); err != nil {
		conn.Close()
		return nil, err
	}
	return client, nil
}

func (c *Client) ensureStream() error {
	_, err := c.JS.StreamInfo(StreamName)
	if err == nil {
		return nil
	}

	_, err = c.JS.AddStream(&nats.StreamConfig{
		Name:      StreamName,
		Subjects:  []string{StreamSubjects},
		Retention: nats.LimitsPolicy,
		MaxAge:    7 * 24 * time.Hour,
		Storage:   nats.FileStorage,
	})
	if err != nil {
		return fmt.Errorf("failed to create stream %s: %w", StreamName, err)
	}
	return nil
}

func (c *Client) Close() {
	if c.Conn != nil {
		c.Conn.Close()
	}
}
