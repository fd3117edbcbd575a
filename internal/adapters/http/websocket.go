package http

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"

	natsadapter "github.com/samirrijal/geodrop/internal/adapters/nats"
	"github.com/samirrijal/geodrop/internal/core/domain"
	"github.com/samirrijal/geodrop/internal/pkg/geospatial"
	"github.com/samirrijal/geodrop/internal/pkg/metrics"
)

// wsMessage is sent from client to subscribe/unsubscribe to claim events.
type wsMessage struct {
	Action string `json:"action"` // "subscribe" | "unsubscribe"
	// Cell is a geohash cell. When empty and Lat/Lng are set, the cell of
	// that point and its 8 neighbors are used. When everything is empty,
	// all claim events are relayed.
	Cell string   `json:"cell"`
	Lat  *float64 `json:"lat"`
	Lng  *float64 `json:"lng"`
}

// subjects resolves the NATS subjects a message refers to.
func (m wsMessage) subjects() ([]string, error) {
	switch {
	case m.Cell != "":
		if err := geospatial.ValidateCell(m.Cell); err != nil {
			return nil, err
		}
		return []string{natsadapter.CellSubject(m.Cell)}, nil
	case m.Lat != nil && m.Lng != nil:
		pos := domain.Coordinate{Lat: *m.Lat, Lng: *m.Lng}
		if err := pos.Validate(); err != nil {
			return nil, err
		}
		cells := geospatial.CellWithNeighbors(pos.Lat, pos.Lng)
		subjects := make([]string, len(cells))
		for i, cell := range cells {
			subjects[i] = natsadapter.CellSubject(cell)
		}
		return subjects, nil
	default:
		return []string{natsadapter.CellSubject("")}, nil
	}
}

// publicEvent strips the recipient wallet from a claim event before it is
// relayed to anonymous subscribers.
func publicEvent(data []byte) ([]byte, error) {
	var e domain.ClaimEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	e.Recipient = ""
	return json.Marshal(e)
}

// WebSocketHandler returns a handler that upgrades to WebSocket
// and relays claim events from NATS to connected clients.
// Clients send JSON: {"action":"subscribe","lat":40.758,"lng":-73.985}
// or {"action":"subscribe","cell":"dr5ru"}.
func WebSocketHandler(feed ClaimFeed) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		log := slog.Default().With("remote_addr", c.RemoteAddr().String())
		log.Debug("ws client connected")

		var mu sync.Mutex
		subs := make(map[string]func() error) // subject -> unsubscribe

		// Helper: thread-safe write
		writeJSON := func(v interface{}) error {
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			return c.WriteMessage(websocket.TextMessage, data)
		}

		// Keep-alive ping
		done := make(chan struct{})
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					mu.Lock()
					err := c.WriteMessage(websocket.PingMessage, nil)
					mu.Unlock()
					if err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}

			var m wsMessage
			if err := json.Unmarshal(msg, &m); err != nil {
				_ = writeJSON(map[string]string{"error": "invalid JSON"})
				continue
			}

			subjects, err := m.subjects()
			if err != nil {
				_ = writeJSON(map[string]string{"error": err.Error()})
				continue
			}

			switch m.Action {
			case "subscribe":
				var added []string
				for _, subject := range subjects {
					if _, exists := subs[subject]; exists {
						continue
					}
					unsub, err := feed.Subscribe(subject, func(data []byte) {
						public, err := publicEvent(data)
						if err != nil {
							log.Debug("ws drop undecodable event", "error", err)
							return
						}
						_ = writeJSON(json.RawMessage(public))
					})
					if err != nil {
						log.Warn("ws subscribe", "subject", subject, "error", err)
						_ = writeJSON(map[string]string{"error": "subscribe failed"})
						continue
					}
					subs[subject] = unsub
					added = append(added, subject)
				}
				_ = writeJSON(map[string]interface{}{"status": "subscribed", "subjects": added})

			case "unsubscribe":
				var removed []string
				for _, subject := range subjects {
					if unsub, exists := subs[subject]; exists {
						_ = unsub()
						delete(subs, subject)
						removed = append(removed, subject)
					}
				}
				_ = writeJSON(map[string]interface{}{"status": "unsubscribed", "subjects": removed})

			default:
				_ = writeJSON(map[string]string{"error": "unknown action: " + m.Action})
			}
		}

		// Cleanup
		close(done)
		for _, unsub := range subs {
			_ = unsub()
		}
		log.Debug("ws client disconnected")
	}
}
