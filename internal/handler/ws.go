package handler

import (
	"net/http"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/parleyhq/parley/internal/coordinator"
	"github.com/parleyhq/parley/internal/hub"
	"github.com/parleyhq/parley/internal/logger"
)

// ServeWS upgrades the connection, registers it with the hub and runs
// the pumps. The coordinator learns about the connection only after
// registration completes, so its online count matches the registry.
func ServeWS(h *hub.Hub, coord *coordinator.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			logger.Log.Warn("websocket accept failed", zap.Error(err))
			return
		}

		c := hub.NewClient(conn)
		c.SetMessageLimiter(30, time.Minute)
		c.SetTypingLimiter(120, time.Minute)

		reg := hub.Registration{
			Client: c,
			Done:   make(chan struct{}),
		}
		h.Register <- reg
		<-reg.Done

		coord.Connect(c.ID.String())
		logger.Log.Info("connection registered", zap.String("connection_id", c.ID.String()))

		// ReadPump blocks; the request context is cancelled the moment
		// this handler returns.
		go c.WritePump(ctx)
		c.ReadPump(ctx, coord)
	}
}
