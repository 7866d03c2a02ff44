// Package coordinator wires client events to the stores and the
// broadcast bus. It owns all transient per-connection state: online
// count, last-seen timestamps, typing flags and reaction tallies.
package coordinator

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/parleyhq/parley/internal/logger"
	"github.com/parleyhq/parley/internal/model"
)

// Bus fans a marshalled event out to registered connections.
// Implemented by hub.Hub.
type Bus interface {
	Broadcast(payload []byte)
	BroadcastExcept(payload []byte, except uuid.UUID)
}

// MessageStore is the durable message surface the coordinator needs.
type MessageStore interface {
	CreateMessage(text, sender string, image *string) (model.Message, error)
	DeleteMessage(id string) error
}

type sanitizer interface {
	Sanitize(s string) string
}

// Coordinator serializes all mutation of the shared presence, typing
// and reaction tables. Each table has its own lock; tables are mutated
// before the resulting events are enqueued, and durable writes always
// complete before their broadcast.
type Coordinator struct {
	bus      Bus
	store    MessageStore
	sanitize sanitizer

	presenceMu  sync.Mutex
	onlineCount int
	lastSeen    map[string]string

	typingMu sync.Mutex
	typing   map[string]struct{}

	reactionsMu sync.Mutex
	reactions   map[string][]string
}

// New returns a coordinator publishing through bus and persisting
// through store.
func New(bus Bus, store MessageStore) *Coordinator {
	return &Coordinator{
		bus:       bus,
		store:     store,
		sanitize:  bluemonday.StrictPolicy(),
		lastSeen:  make(map[string]string),
		typing:    make(map[string]struct{}),
		reactions: make(map[string][]string),
	}
}

// emit marshals and broadcasts an event to every connection. Marshal
// failures are logged and swallowed; they must not take down the
// event loop.
func (c *Coordinator) emit(name string, data any) {
	payload, err := model.NewEvent(name, data)
	if err != nil {
		logger.Log.Error("failed to build event", zap.String("event", name), zap.Error(err))
		return
	}
	c.bus.Broadcast(payload)
}

// emitExcept is emit for everyone but the originating connection.
func (c *Coordinator) emitExcept(name string, data any, connID string) {
	payload, err := model.NewEvent(name, data)
	if err != nil {
		logger.Log.Error("failed to build event", zap.String("event", name), zap.Error(err))
		return
	}

	id, err := uuid.Parse(connID)
	if err != nil {
		// Unknown originator; deliver to everyone rather than no one.
		c.bus.Broadcast(payload)
		return
	}
	c.bus.BroadcastExcept(payload, id)
}

// HandleEvent dispatches one decoded client event. Bad payloads are
// logged and dropped; they never affect other connections.
func (c *Coordinator) HandleEvent(connID string, ev model.Event) {
	switch ev.Name {
	case model.EvUserConnected:
		var role string
		if err := json.Unmarshal(ev.Data, &role); err != nil {
			c.logBadPayload(connID, ev, err)
			return
		}
		c.Announce(connID, role)

	case model.EvSendMessage:
		var p model.SendMessagePayload
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			c.logBadPayload(connID, ev, err)
			return
		}
		if _, err := c.SendMessage(p.Text, p.Sender, p.Image); err != nil {
			logger.Log.Error("send message failed",
				zap.String("connection_id", connID), zap.Error(err))
		}

	case model.EvMessageRead:
		var p model.ReadPayload
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			c.logBadPayload(connID, ev, err)
			return
		}
		c.MarkRead(p.MessageID, p.UserID)

	case model.EvTyping:
		var userID string
		if err := json.Unmarshal(ev.Data, &userID); err != nil {
			c.logBadPayload(connID, ev, err)
			return
		}
		c.Typing(userID)

	case model.EvStopTyping:
		var userID string
		if err := json.Unmarshal(ev.Data, &userID); err != nil {
			c.logBadPayload(connID, ev, err)
			return
		}
		c.StopTyping(userID)

	case model.EvMessageReaction:
		var p model.ReactionPayload
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			c.logBadPayload(connID, ev, err)
			return
		}
		c.React(p.MessageID, p.Emoji)

	case model.EvUserDisconnected:
		var role string
		if err := json.Unmarshal(ev.Data, &role); err != nil {
			c.logBadPayload(connID, ev, err)
			return
		}
		c.UserDisconnected(connID, role)

	default:
		logger.Log.Warn("unknown client event",
			zap.String("connection_id", connID), zap.String("event", ev.Name))
	}
}

// HandleDisconnect reports that the connection dropped, after the hub
// has removed it from the registry.
func (c *Coordinator) HandleDisconnect(connID string) {
	c.Disconnect(connID)
}

func (c *Coordinator) logBadPayload(connID string, ev model.Event, err error) {
	logger.Log.Warn("bad event payload",
		zap.String("connection_id", connID),
		zap.String("event", ev.Name),
		zap.Error(err))
}
