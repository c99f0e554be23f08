package collaboration

import (
	"testing"

	"syncpad/internal/models"

	"github.com/go-playground/assert/v2"
)

func newBareSession(userID, username string, buffer int) *Session {
	return NewSession(&models.UserInfo{ID: userID, Username: username}, nil, nil, buffer)
}

func TestRegistryJoinCreatesRoomOnce(t *testing.T) {
	reg := NewRoomRegistry()

	a := newBareSession("alice", "Alice", 8)
	b := newBareSession("bob", "Bob", 8)

	roomA := reg.Join(a, "d1")
	roomB := reg.Join(b, "d1")

	assert.Equal(t, roomA == roomB, true)
	assert.Equal(t, reg.Len(), 1)
	assert.Equal(t, roomA.Size(), 2)
}

func TestRegistryLeaveDestroysEmptyRoom(t *testing.T) {
	reg := NewRoomRegistry()

	a := newBareSession("alice", "Alice", 8)
	b := newBareSession("bob", "Bob", 8)
	reg.Join(a, "d1")
	reg.Join(b, "d1")

	room, empty := reg.Leave(a, "d1")
	assert.Equal(t, room == nil, false)
	assert.Equal(t, empty, false)
	assert.Equal(t, reg.Len(), 1)

	room, empty = reg.Leave(b, "d1")
	assert.Equal(t, room == nil, false)
	assert.Equal(t, empty, true)
	assert.Equal(t, reg.Len(), 0)
	assert.Equal(t, reg.Get("d1") == nil, true)
}

func TestRegistryLeaveUnknownRoom(t *testing.T) {
	reg := NewRoomRegistry()
	room, empty := reg.Leave(newBareSession("alice", "Alice", 8), "ghost")
	assert.Equal(t, room == nil, true)
	assert.Equal(t, empty, false)
}

func TestBroadcastExcludesSenderAndReportsSlow(t *testing.T) {
	reg := NewRoomRegistry()

	sender := newBareSession("alice", "Alice", 8)
	peer := newBareSession("bob", "Bob", 8)
	slow := newBareSession("carol", "Carol", 1)
	reg.Join(sender, "d1")
	reg.Join(peer, "d1")
	reg.Join(slow, "d1")

	// Fill the slow session's single slot
	assert.Equal(t, slow.trySend([]byte("x")), true)

	dropped := reg.Broadcast("d1", []byte("hello"), sender)

	assert.Equal(t, len(dropped), 1)
	assert.Equal(t, dropped[0] == slow, true)

	select {
	case msg := <-peer.Send:
		assert.Equal(t, string(msg), "hello")
	default:
		t.Fatal("peer did not receive broadcast")
	}

	select {
	case <-sender.Send:
		t.Fatal("sender received its own broadcast")
	default:
	}
}

func TestPresenceRoster(t *testing.T) {
	room := newRoom("d1")

	room.UpsertPresence("bob", "Bob", 5, models.Selection{Start: 5, End: 7})
	room.UpsertPresence("alice", "Alice", 0, models.Selection{})
	room.UpsertPresence("bob", "Bob", 9, models.Selection{Start: 9, End: 9})

	editors := room.ActiveEditors()
	assert.Equal(t, len(editors), 2)
	// Roster is ordered by userID
	assert.Equal(t, editors[0].UserID, "alice")
	assert.Equal(t, editors[1].UserID, "bob")
	assert.Equal(t, editors[1].CursorPosition, 9)

	room.RemovePresence("bob")
	assert.Equal(t, len(room.ActiveEditors()), 1)
}
