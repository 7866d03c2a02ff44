// Package handler holds the HTTP surface: message history, blob
// upload/download and the websocket entry point.
package handler

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/parleyhq/parley/internal/logger"
)

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Log.Warn("failed to write response body", zap.Error(err))
	}
}

func respondMessage(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"message": msg})
}
