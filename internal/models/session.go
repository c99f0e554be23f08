package models

import (
	"time"

	"github.com/segmentio/ksuid"
)

// Session represents an authenticated WebSocket connection. One session can
// join any number of document rooms over its lifetime.
type Session struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	Username     string    `json:"username"`
	ConnectedAt  time.Time `json:"connectedAt"`
	LastActiveAt time.Time `json:"lastActiveAt"`
}

func NewSession(user *UserInfo) *Session {
	now := time.Now()
	return &Session{
		ID:           ksuid.New().String(),
		UserID:       user.ID,
		Username:     user.Username,
		ConnectedAt:  now,
		LastActiveAt: now,
	}
}

// Selection is a character-offset range in the document text
type Selection struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Presence is the ephemeral per-user editing state within a room.
// Positions are character offsets into the content as the client most
// recently observed it; the server relays them without rebasing.
type Presence struct {
	UserID         string    `json:"userId"`
	Username       string    `json:"username"`
	CursorPosition int       `json:"cursorPosition"`
	Selection      Selection `json:"selection"`
	LastActive     time.Time `json:"lastActive"`
}

// OfflineEdit is one patch bundle accumulated while a client was
// disconnected, queued server-side per (user, document).
type OfflineEdit struct {
	ID              string `json:"id"`
	Patches         string `json:"patches"`
	ClientTimestamp int64  `json:"clientTimestamp"`
	UserID          string `json:"userId"`
	Username        string `json:"username"`
}
