package progress

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/SkelleTu/UltraPix/internal/infra"
)

const (
	defaultWriteTimeout = 10 * time.Second
	maxInboundMessage   = 4 << 10
	// queued envelopes per subscriber before it counts as stalled
	subscriberBuffer = 64
)

// Conn is the part of a websocket connection the hub writes to.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

type subscriber struct {
	id   string
	conn Conn
	send chan []byte
	done chan struct{}
}

// Hub is the registry of live progress subscribers. Every broadcast goes to
// every subscriber; there is no per-job filtering or replay. Each subscriber
// has its own writer goroutine, so a slow peer only ever delays itself.
type Hub struct {
	mu           sync.RWMutex
	subs         map[string]*subscriber
	logger       infra.Logger
	writeTimeout time.Duration
	queueSize    int
	upgrader     websocket.Upgrader
}

// NewHub creates an empty hub.
func NewHub(logger infra.Logger) *Hub {
	return &Hub{
		subs:         make(map[string]*subscriber),
		logger:       logger.With().Str("component", "progress_hub").Logger(),
		writeTimeout: defaultWriteTimeout,
		queueSize:    subscriberBuffer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Subscribe registers conn, starts its writer and returns its subscriber id.
func (h *Hub) Subscribe(conn Conn) string {
	sub := &subscriber{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, h.queueSize),
		done: make(chan struct{}),
	}
	h.mu.Lock()
	h.subs[sub.id] = sub
	total := len(h.subs)
	h.mu.Unlock()

	go h.writePump(sub)
	h.logger.Debug().Str("subscriber", sub.id).Int("subscribers", total).Msg("subscriber added")
	return sub.id
}

// Remove drops a subscriber and closes its connection. Unknown ids are ignored.
func (h *Hub) Remove(id string) {
	h.mu.Lock()
	sub, ok := h.subs[id]
	if ok {
		delete(h.subs, id)
	}
	total := len(h.subs)
	h.mu.Unlock()
	if !ok {
		return
	}
	h.release(sub)
	h.logger.Debug().Str("subscriber", id).Int("subscribers", total).Msg("subscriber removed")
}

// release runs once per subscriber, after it left the map.
func (h *Hub) release(sub *subscriber) {
	close(sub.done)
	_ = sub.conn.Close()
}

// Count returns the number of registered subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Broadcast queues payload for every subscriber without waiting on any of
// them. A subscriber whose queue is full is removed. The returned error is
// always nil; delivery is at most once.
func (h *Hub) Broadcast(_ context.Context, payload []byte) error {
	var stalled []string
	h.mu.RLock()
	for id, sub := range h.subs {
		select {
		case sub.send <- payload:
		default:
			stalled = append(stalled, id)
		}
	}
	h.mu.RUnlock()

	for _, id := range stalled {
		h.logger.Debug().Str("subscriber", id).Msg("dropping stalled subscriber")
		h.Remove(id)
	}
	return nil
}

func (h *Hub) writePump(sub *subscriber) {
	for {
		select {
		case <-sub.done:
			return
		case payload := <-sub.send:
			if err := h.write(sub, payload); err != nil {
				h.logger.Debug().Err(err).Str("subscriber", sub.id).Msg("dropping subscriber after failed write")
				h.Remove(sub.id)
				return
			}
		}
	}
}

func (h *Hub) write(sub *subscriber, payload []byte) error {
	if err := sub.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout)); err != nil {
		return err
	}
	return sub.conn.WriteMessage(websocket.TextMessage, payload)
}

// ServeHTTP upgrades the request and keeps the subscriber registered until
// the peer goes away. Inbound messages are discarded.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	conn.SetReadLimit(maxInboundMessage)
	id := h.Subscribe(conn)
	defer h.Remove(id)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	subs := h.subs
	h.subs = make(map[string]*subscriber)
	h.mu.Unlock()
	for _, sub := range subs {
		h.release(sub)
	}
}
