package collaboration

import (
	"sort"
	"sync"
	"time"

	"syncpad/internal/models"
)

// Room is the set of sessions currently joined to one document, plus their
// presence state. Created on first join, destroyed when the last session
// leaves. The room mutex is held only for membership and presence updates,
// never across I/O.
type Room struct {
	DocumentID string

	mu       sync.RWMutex
	sessions map[*Session]bool
	presence map[string]*models.Presence // userID -> presence
}

func newRoom(documentID string) *Room {
	return &Room{
		DocumentID: documentID,
		sessions:   make(map[*Session]bool),
		presence:   make(map[string]*models.Presence),
	}
}

func (r *Room) add(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s] = true
}

// remove deletes the session and reports how many remain
func (r *Room) remove(s *Session) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, s)
	return len(r.sessions)
}

// Has reports whether the session is a member
func (r *Room) Has(s *Session) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[s]
}

// Size returns the member count
func (r *Room) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Broadcast enqueues message on every member's sink except exclude.
// Fan-out is best-effort: a full sink marks that session slow and it is
// returned to the caller for disconnection instead of blocking peers.
func (r *Room) Broadcast(message []byte, exclude *Session) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var slow []*Session
	for s := range r.sessions {
		if s == exclude {
			continue
		}
		if !s.trySend(message) {
			slow = append(slow, s)
		}
	}
	return slow
}

// UpsertPresence inserts or refreshes a user's presence record
func (r *Room) UpsertPresence(userID, username string, cursor int, selection models.Selection) *models.Presence {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.presence[userID]
	if !ok {
		p = &models.Presence{UserID: userID, Username: username}
		r.presence[userID] = p
	}
	p.Username = username
	p.CursorPosition = cursor
	p.Selection = selection
	p.LastActive = time.Now()
	return p
}

// RemovePresence deletes a user's presence record
func (r *Room) RemovePresence(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.presence, userID)
}

// ActiveEditors returns the presence roster, ordered by userID for a
// stable wire representation.
func (r *Room) ActiveEditors() []*models.Presence {
	r.mu.RLock()
	defer r.mu.RUnlock()

	editors := make([]*models.Presence, 0, len(r.presence))
	for _, p := range r.presence {
		editors = append(editors, p)
	}
	sort.Slice(editors, func(i, j int) bool {
		return editors[i].UserID < editors[j].UserID
	})
	return editors
}

// RoomRegistry is the process-wide documentID -> Room map.
// Learning: the registry lock protects only the map; per-room state has its
// own lock, so cross-document traffic never contends here.
type RoomRegistry struct {
	mu    sync.RWMutex
	rooms map[string]*Room
}

func NewRoomRegistry() *RoomRegistry {
	return &RoomRegistry{
		rooms: make(map[string]*Room),
	}
}

// Join inserts the session into the document's room, creating the room on
// first join.
func (reg *RoomRegistry) Join(s *Session, documentID string) *Room {
	reg.mu.Lock()
	room, ok := reg.rooms[documentID]
	if !ok {
		room = newRoom(documentID)
		reg.rooms[documentID] = room
	}
	reg.mu.Unlock()

	room.add(s)
	return room
}

// Leave removes the session from the document's room. The room is deleted
// from the registry when its last session leaves; empty reports that.
func (reg *RoomRegistry) Leave(s *Session, documentID string) (room *Room, empty bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	room, ok := reg.rooms[documentID]
	if !ok {
		return nil, false
	}

	if room.remove(s) == 0 {
		delete(reg.rooms, documentID)
		return room, true
	}
	return room, false
}

// Get returns the room for a document, or nil if nobody has joined it
func (reg *RoomRegistry) Get(documentID string) *Room {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return reg.rooms[documentID]
}

// Broadcast fans message out to the document's room, if it exists.
// Returns the sessions whose sinks were full.
func (reg *RoomRegistry) Broadcast(documentID string, message []byte, exclude *Session) []*Session {
	room := reg.Get(documentID)
	if room == nil {
		return nil
	}
	return room.Broadcast(message, exclude)
}

// Len reports how many rooms are live
func (reg *RoomRegistry) Len() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.rooms)
}
