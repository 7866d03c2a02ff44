package hub

import (
	"context"
	"encoding/json"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/parleyhq/parley/internal/logger"
	"github.com/parleyhq/parley/internal/model"
)

// EventHandler receives decoded client events. Implemented by the
// coordinator; defined here so the hub does not depend on it.
type EventHandler interface {
	HandleEvent(connID string, ev model.Event)
	HandleDisconnect(connID string)
}

// Client contains client connection information.
type Client struct {
	ID   uuid.UUID
	conn *websocket.Conn
	hub  *Hub
	send chan []byte

	messageLim *rate.Limiter
	typingLim  *rate.Limiter
}

// NewClient returns a new instance of Client with a fresh connection id.
func NewClient(conn *websocket.Conn) *Client {
	return &Client{
		ID:   uuid.New(),
		conn: conn,
		send: make(chan []byte, 64),
	}
}

func (c *Client) SetMessageLimiter(requests int, window time.Duration) {
	c.messageLim = rate.NewLimiter(rate.Every(window/time.Duration(requests)), requests)
}

func (c *Client) SetTypingLimiter(requests int, window time.Duration) {
	c.typingLim = rate.NewLimiter(rate.Every(window/time.Duration(requests)), requests)
}

// ReadPump reads incoming events from the websocket stream and hands
// them to the handler. It blocks until the connection drops, then
// unregisters the client and reports the disconnect.
func (c *Client) ReadPump(ctx context.Context, handler EventHandler) {
	defer func() {
		c.hub.Unregister <- c
		handler.HandleDisconnect(c.ID.String())
		c.conn.CloseNow()
	}()

	for {
		msgType, p, err := c.conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure &&
				status != websocket.StatusGoingAway &&
				status != -1 {
				logger.Log.Warn("websocket read failed",
					zap.String("connection_id", c.ID.String()), zap.Error(err))
			}
			return
		}

		if msgType != websocket.MessageText {
			continue
		}

		var ev model.Event
		if err := json.Unmarshal(p, &ev); err != nil {
			logger.Log.Warn("failed to decode client event",
				zap.String("connection_id", c.ID.String()), zap.Error(err))
			continue
		}

		if !c.allow(ev.Name) {
			logger.Log.Warn("rate limit exceeded - dropping event",
				zap.String("connection_id", c.ID.String()),
				zap.String("event", ev.Name))
			continue
		}

		handler.HandleEvent(c.ID.String(), ev)
	}
}

// allow applies the per-connection limiters to the events worth
// limiting. Everything else passes through.
func (c *Client) allow(event string) bool {
	switch event {
	case model.EvSendMessage:
		return c.messageLim == nil || c.messageLim.Allow()
	case model.EvTyping:
		return c.typingLim == nil || c.typingLim.Allow()
	default:
		return true
	}
}

// WritePump drains the send buffer into the websocket stream. A closed
// send channel (set by the hub on unregister) closes the connection.
func (c *Client) WritePump(ctx context.Context) {
	for {
		select {
		case payload, ok := <-c.send:
			if !ok {
				c.conn.Close(websocket.StatusNormalClosure, "unregistered")
				return
			}

			writeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			err := c.conn.Write(writeCtx, websocket.MessageText, payload)
			cancel()
			if err != nil {
				logger.Log.Warn("websocket write failed",
					zap.String("connection_id", c.ID.String()), zap.Error(err))
				continue
			}

		case <-ctx.Done():
			c.conn.Close(websocket.StatusGoingAway, "server shutting down")
			return
		}
	}
}
