package handlers

import (
	"log/slog"
	"net/http"
)

// WebSocket upgrades an authenticated request and hands the socket to the
// hub. Browser clients pass the token as ?token= since they cannot set
// headers on the upgrade request.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		slog.Debug("websocket upgrade failed", "user_id", uid, "error", err)
		return
	}
	slog.Info("websocket connected", "user_id", uid)
	h.hub.Serve(r.Context(), ws, uid)
	slog.Info("websocket disconnected", "user_id", uid)
}
