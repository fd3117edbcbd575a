package natsadapter

import (
	"fmt"

	"github.com/nats-io/nats.go"
)

// Feed relays claim events from core NATS subscriptions.
type Feed struct {
	conn *nats.Conn
}

// NewFeed creates a feed on an existing connection.
func NewFeed(conn *nats.Conn) *Feed {
	return &Feed{conn: conn}
}

// Subscribe delivers raw event payloads on subject until the returned func is called.
func (f *Feed) Subscribe(subject string, fn func(data []byte)) (func() error, error) {
	sub, err := f.conn.Subscribe(subject, func(msg *nats.Msg) {
		fn(msg.Data)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", subject, err)
	}
	return sub.Unsubscribe, nil
}

// Connected reports whether the feed can currently deliver.
func (f *Feed) Connected() bool {
	return f.conn != nil && f.conn.IsConnected()
}

// CellSubject returns the subject matching every outcome in a geohash cell.
// An empty cell matches all claim events.
func CellSubject(cell string) string {
	if cell == "" {
		return ClaimSubjectRoot + ".>"
	}
	return ClaimSubjectRoot + "." + cell + ".*"
}
