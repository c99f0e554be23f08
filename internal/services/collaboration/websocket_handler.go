package collaboration

import (
	"log"
	"net/http"

	"syncpad/internal/middleware"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// TODO: In production, validate origin properly
		return true
	},
}

// WebSocketHandler authenticates and upgrades incoming socket connections.
// The bearer token arrives at the handshake under the auth.token query key
// (or Authorization header); it is checked once, and the session identity
// is fixed for the connection lifetime.
type WebSocketHandler struct {
	engine     *Engine
	tokens     TokenValidator
	sendBuffer int
}

func NewWebSocketHandler(engine *Engine, tokens TokenValidator, sendBuffer int) *WebSocketHandler {
	return &WebSocketHandler{
		engine:     engine,
		tokens:     tokens,
		sendBuffer: sendBuffer,
	}
}

// HandleConnection is the socket endpoint. Rooms are joined and left via
// explicit events on the established connection, not per-document URLs.
func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	token := middleware.BearerToken(r)
	if token == "" {
		http.Error(w, "Authentication error", http.StatusUnauthorized)
		return
	}
	user, err := h.tokens.Validate(token)
	if err != nil {
		http.Error(w, "Authentication error", http.StatusUnauthorized)
		return
	}

	ctx, span := middleware.StartSpan(ctx, "WebSocket.Connect",
		attribute.String("user.id", user.ID),
	)
	defer span.End()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Failed to upgrade WebSocket: %v", err)
		middleware.AddSpanError(ctx, err)
		return
	}

	session := NewSession(user, conn, h.engine, h.sendBuffer)
	h.engine.Register(session)

	// Separate read/write goroutines prevent a slow reader from blocking
	// writes and vice versa
	go session.WritePump()
	go session.ReadPump(ctx)

	log.Printf("✓ WebSocket connection established (user: %s, session: %s)",
		user.Username, session.ID)
}
