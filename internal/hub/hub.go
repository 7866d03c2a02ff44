// Package hub tracks open websocket connections and fans events out to
// them. It is the only path through which state changes become visible
// to clients.
package hub

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/parleyhq/parley/internal/logger"
	"github.com/parleyhq/parley/internal/telemetry"
)

// Registration carries a client into the hub. Done is closed once the
// client is visible to broadcasts.
type Registration struct {
	Client *Client
	Done   chan struct{}
}

type broadcast struct {
	payload []byte
	exclude uuid.UUID // zero value means deliver to everyone
}

// Hub owns the registry of live connections. Registration and fan-out
// run on a single loop, so events enqueued in order are delivered to
// every client's send buffer in that order.
type Hub struct {
	mu      sync.RWMutex
	clients map[uuid.UUID]*Client

	Register   chan Registration
	Unregister chan *Client
	events     chan broadcast
}

// NewHub returns a new instance of Hub.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[uuid.UUID]*Client),
		Register:   make(chan Registration),
		Unregister: make(chan *Client),
		events:     make(chan broadcast, 256),
	}
}

// Run manages registration and broadcast traffic until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case reg := <-h.Register:
			client := reg.Client
			h.mu.Lock()
			h.clients[client.ID] = client
			h.mu.Unlock()

			client.hub = h
			telemetry.ConnectionsOpen.Inc()
			close(reg.Done)

		case client := <-h.Unregister:
			h.mu.Lock()
			_, ok := h.clients[client.ID]
			if ok {
				delete(h.clients, client.ID)
				close(client.send)
			}
			h.mu.Unlock()

			if ok {
				telemetry.ConnectionsOpen.Dec()
			}

		case ev := <-h.events:
			h.deliver(ev)

		case <-ctx.Done():
			logger.Log.Info("hub stopping", zap.Error(ctx.Err()))
			return
		}
	}
}

func (h *Hub) deliver(ev broadcast) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, client := range h.clients {
		if id == ev.exclude {
			continue
		}

		select {
		case client.send <- ev.payload:
			telemetry.EventsBroadcast.Inc()
		default:
			telemetry.EventsDropped.Inc()
			logger.Log.Warn("dropping event - client send buffer full",
				zap.String("connection_id", id.String()))
		}
	}
}

// Broadcast queues payload for delivery to every registered client,
// including the originator of whatever caused it.
func (h *Hub) Broadcast(payload []byte) {
	h.events <- broadcast{payload: payload}
}

// BroadcastExcept queues payload for every registered client except the
// given connection.
func (h *Hub) BroadcastExcept(payload []byte, except uuid.UUID) {
	h.events <- broadcast{payload: payload, exclude: except}
}

// Count reports the number of currently registered connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
