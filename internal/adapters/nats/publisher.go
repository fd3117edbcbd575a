package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/geodrop/internal/core/domain"
)

// ClaimSubjectRoot prefixes every claim event subject:
// geodrop.claims.<cell>.<outcome>.
const ClaimSubjectRoot = "geodrop.claims"

// Publisher implements ports.EventPublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and enables JetStream.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return newPublisher(conn)
}

// newPublisher sets up the claim streams on conn. conn is closed when setup
// fails, so a reconnecting connection is not left behind.
func newPublisher(conn *nats.Conn, opts ...nats.JSOpt) (*Publisher, error) {
	js, err := conn.JetStream(opts...)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	streams := []nats.StreamConfig{
		{
			Name:      "CLAIMS",
			Subjects:  []string{ClaimSubjectRoot + ".>"},
			Retention: nats.LimitsPolicy,
			MaxAge:    7 * 24 * time.Hour,
			Storage:   nats.FileStorage,
		},
	}

	for i := range streams {
		cfg := streams[i]
		if _, err := js.AddStream(&cfg); err != nil {
			// Stream may already exist, try update
			if _, err := js.UpdateStream(&cfg); err != nil {
				conn.Close()
				return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
			}
		}
	}

	return &Publisher{conn: conn, js: js}, nil
}

// ClaimSubject returns the subject an event is published on. Events without
// a cell (unknown assets) go to the "none" cell.
func ClaimSubject(e *domain.ClaimEvent) string {
	cell := e.Cell
	if cell == "" {
		cell = "none"
	}
	return fmt.Sprintf("%s.%s.%s", ClaimSubjectRoot, cell, e.Outcome)
}

// PublishClaimEvent publishes a terminal claim outcome. The event ID is the
// JetStream message ID, so redelivered publishes are deduplicated.
func (p *Publisher) PublishClaimEvent(ctx context.Context, e *domain.ClaimEvent) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(ClaimSubject(e), data, nats.MsgId(e.ID), nats.Context(ctx))
	return err
}

// Conn returns the underlying connection.
func (p *Publisher) Conn() *nats.Conn {
	return p.conn
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// RawConn creates a plain NATS connection for subscribing (e.g. WebSocket relay).
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name("geodrop"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}
