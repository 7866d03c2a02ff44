package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/parleyhq/parley/internal/coordinator"
	"github.com/parleyhq/parley/internal/logger"
	"github.com/parleyhq/parley/internal/store"
)

// ListMessages serves chat history ordered by creation time. Clients
// load this once before opening the websocket.
func ListMessages(messages *store.MessageStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := messages.ListMessages()
		if err != nil {
			logger.Log.Error("failed to load messages", zap.Error(err))
			respondMessage(w, http.StatusInternalServerError, "Error fetching messages")
			return
		}

		respondJSON(w, http.StatusOK, list)
	}
}

// DeleteMessage removes a message and lets the coordinator announce the
// deletion. Absent ids still return 204; delete is idempotent for
// callers.
func DeleteMessage(coord *coordinator.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		if err := coord.DeleteMessage(id); err != nil {
			logger.Log.Error("failed to delete message", zap.String("id", id), zap.Error(err))
			respondMessage(w, http.StatusInternalServerError, "Error deleting message")
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
