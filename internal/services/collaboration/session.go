package collaboration

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"syncpad/internal/middleware"
	"syncpad/internal/models"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	writeWait  = 10 * time.Second
)

// Session is one connected, authenticated client. It owns a bounded
// outbound sink drained by a single WritePump goroutine; the inbound
// ReadPump dispatches typed events to the engine. If the sink fills, the
// session is considered slow and disconnected rather than blocking peers.
type Session struct {
	*models.Session

	Conn   *websocket.Conn
	Send   chan []byte
	engine *Engine

	mu   sync.Mutex
	docs map[string]bool // joined document IDs

	done      chan struct{}
	closeOnce sync.Once
}

// NewSession wraps an authenticated connection. Conn may be nil in tests;
// only the pumps touch it.
func NewSession(user *models.UserInfo, conn *websocket.Conn, engine *Engine, sendBuffer int) *Session {
	return &Session{
		Session: models.NewSession(user),
		Conn:    conn,
		Send:    make(chan []byte, sendBuffer),
		engine:  engine,
		docs:    make(map[string]bool),
		done:    make(chan struct{}),
	}
}

// trySend enqueues without blocking. False means the sink is full or the
// session is closing; the caller decides to disconnect.
func (s *Session) trySend(message []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.Send <- message:
		return true
	default:
		return false
	}
}

// sendEvent marshals and enqueues a typed event for this session
func (s *Session) sendEvent(event string, data any) {
	if msg := models.Encode(event, data); msg != nil {
		s.trySend(msg)
	}
}

// sendError emits the error event with the kind's human-readable detail
func (s *Session) sendError(err *models.SyncError) {
	s.sendEvent(models.EventError, &models.ErrorPayload{Message: err.Detail})
}

// Close terminates the connection. Idempotent; the ReadPump exit path runs
// the room cleanup.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		if s.Conn != nil {
			s.Conn.Close()
		}
	})
}

func (s *Session) trackDoc(documentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[documentID] = true
}

func (s *Session) untrackDoc(documentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, documentID)
}

func (s *Session) hasDoc(documentID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.docs[documentID]
}

// joinedDocs snapshots the joined set for disconnect cleanup
func (s *Session) joinedDocs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.docs))
	for id := range s.docs {
		ids = append(ids, id)
	}
	return ids
}

// ReadPump reads messages from the WebSocket connection and dispatches
// them. One goroutine per session; exiting tears the session down and
// leaves every joined room.
func (s *Session) ReadPump(ctx context.Context) {
	defer func() {
		s.engine.Disconnect(ctx, s)
	}()

	s.Conn.SetReadDeadline(time.Now().Add(pongWait))
	s.Conn.SetPongHandler(func(string) error {
		s.Conn.SetReadDeadline(time.Now().Add(pongWait))
		s.LastActiveAt = time.Now()
		return nil
	})

	for {
		_, message, err := s.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error (session %s): %v", s.ID, err)
			}
			break
		}

		s.LastActiveAt = time.Now()
		s.dispatch(ctx, message)
	}
}

// dispatch validates the envelope at ingress and routes the typed payload
// to the engine. A malformed message errors the sender only.
func (s *Session) dispatch(ctx context.Context, raw []byte) {
	var env models.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		s.sendError(models.NewSyncError(models.ErrNotFound, "malformed message envelope"))
		return
	}

	ctx, span := middleware.StartSpan(ctx, "WS."+env.Event,
		attribute.String("session.id", s.ID),
		attribute.String("user.id", s.UserID),
		attribute.String("event", env.Event),
	)
	defer span.End()

	switch env.Event {
	case models.EventJoinDocument:
		var p models.JoinDocumentPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			s.sendError(models.NewSyncError(models.ErrNotFound, "malformed join-document payload"))
			return
		}
		s.engine.HandleJoin(ctx, s, &p)

	case models.EventLeaveDocument:
		var p models.LeaveDocumentPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return
		}
		s.engine.HandleLeave(ctx, s, p.DocumentID)

	case models.EventDocumentChange:
		var p models.DocumentChangePayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			s.sendError(models.NewSyncError(models.ErrPatchFailed, "malformed document-change payload"))
			return
		}
		s.engine.HandleChange(ctx, s, &p)

	case models.EventCursorPosition:
		var p models.CursorPositionPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return
		}
		s.engine.HandleCursor(ctx, s, &p)

	case models.EventSaveOfflineEdit:
		var p models.SaveOfflineEditPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			s.sendError(models.NewSyncError(models.ErrPatchFailed, "malformed save-offline-edit payload"))
			return
		}
		s.engine.HandleSaveOffline(ctx, s, &p)

	case models.EventSyncOfflineEdits:
		var p models.SyncOfflineEditsPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return
		}
		s.engine.HandleSyncOffline(ctx, s, &p)

	default:
		s.sendError(models.NewSyncError(models.ErrNotFound, "unknown event: "+env.Event))
	}
}

// WritePump writes queued messages to the WebSocket connection.
// Learning: a single writer goroutine per connection prevents interleaved
// frames and keeps slow clients from blocking the engine.
func (s *Session) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.Close()
	}()

	for {
		select {
		case <-s.done:
			s.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			s.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case message := <-s.Send:
			s.Conn.SetWriteDeadline(time.Now().Add(writeWait))

			w, err := s.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)
			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			s.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
