package http

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"quiz-duel-service/internal/domain"
)

const (
	defaultSendBuffer = 32
	closePollInterval = 10 * time.Millisecond
)

// client is the outbound side of one websocket connection.
type client struct {
	send chan domain.Event
	done chan struct{}
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.done) })
}

// Hub fans events out to connected clients. It implements app.Notifier: Send
// never blocks, and a client whose buffer is full is disconnected.
type Hub struct {
	buffer int
	log    *zap.Logger

	mu      sync.RWMutex
	clients map[string]*client
}

func NewHub(buffer int, log *zap.Logger) *Hub {
	if buffer <= 0 {
		buffer = defaultSendBuffer
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{buffer: buffer, log: log, clients: make(map[string]*client)}
}

func (h *Hub) register(connID string) *client {
	c := &client{send: make(chan domain.Event, h.buffer), done: make(chan struct{})}
	h.mu.Lock()
	h.clients[connID] = c
	h.mu.Unlock()
	return c
}

func (h *Hub) unregister(connID string) {
	h.mu.Lock()
	c, ok := h.clients[connID]
	delete(h.clients, connID)
	h.mu.Unlock()
	if ok {
		c.close()
	}
}

// Send queues event for connID. Unknown connections are ignored.
func (h *Hub) Send(connID string, event domain.Event) {
	h.mu.RLock()
	c, ok := h.clients[connID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.send <- event:
	default:
		h.log.Warn("slow consumer disconnected", zap.String("conn_id", connID), zap.String("event", event.Type))
		c.close()
	}
}

// Connected returns the number of registered clients.
func (h *Hub) Connected() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// CloseAll disconnects every client and waits until each connection handler
// has unregistered, which happens after the service has seen the disconnect.
func (h *Hub) CloseAll(ctx context.Context) error {
	h.mu.RLock()
	for _, c := range h.clients {
		c.close()
	}
	h.mu.RUnlock()

	ticker := time.NewTicker(closePollInterval)
	defer ticker.Stop()
	for h.Connected() > 0 {
		select {
		case <-ctx.Done():
			return fmt.Errorf("close clients (%d left): %w", h.Connected(), ctx.Err())
		case <-ticker.C:
		}
	}
	return nil
}
