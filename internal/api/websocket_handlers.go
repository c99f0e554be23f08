package api

import (
	"net/http"
)

// WebSocket endpoints

// HandleWebSocket upgrades the collaboration socket
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	h.wsHandler.HandleConnection(w, r)
}
