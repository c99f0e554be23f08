package models

import (
	"encoding/json"
	"time"
)

/*
WIRE PROTOCOL

Messages are JSON envelopes with a named event type and a payload object:

  {"event": "document-change", "data": {"documentId": "...", "patches": "..."}}

Payloads are validated at ingress and dispatched as typed structs; the sync
engine never touches free-form maps. Patch bundles travel in the diff
library's text serialization and are opaque at this layer.
*/

// Event names, client -> server
const (
	EventJoinDocument     = "join-document"
	EventLeaveDocument    = "leave-document"
	EventDocumentChange   = "document-change"
	EventCursorPosition   = "cursor-position"
	EventSaveOfflineEdit  = "save-offline-edit"
	EventSyncOfflineEdits = "sync-offline-edits"
)

// Event names, server -> client
const (
	EventDocumentData          = "document-data"
	EventEditorJoined          = "editor-joined"
	EventEditorLeft            = "editor-left"
	EventVersionCreated        = "version-created"
	EventSyncRequired          = "sync-required"
	EventDocumentUpdated       = "document-updated"
	EventOfflineEditsAvailable = "offline-edits-available"
	EventOfflineEditSaved      = "offline-edit-saved"
	EventOfflineEditsSynced    = "offline-edits-synced"
	EventError                 = "error"
)

// Envelope is the outer frame of every socket message
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Client -> server payloads

type JoinDocumentPayload struct {
	DocumentID string `json:"documentId"`
}

type LeaveDocumentPayload struct {
	DocumentID string `json:"documentId"`
}

type DocumentChangePayload struct {
	DocumentID string `json:"documentId"`
	Patches    string `json:"patches"`
	// Accepted for wire compatibility; the engine does not use it yet
	ClientShadowVersion int `json:"clientShadowVersion"`
}

type CursorPositionPayload struct {
	DocumentID     string    `json:"documentId"`
	CursorPosition int       `json:"cursorPosition"`
	Selection      Selection `json:"selection"`
}

type SaveOfflineEditPayload struct {
	DocumentID string `json:"documentId"`
	Patches    string `json:"patches"`
	Timestamp  int64  `json:"timestamp"`
}

type SyncOfflineEditsPayload struct {
	DocumentID string `json:"documentId"`
}

// Server -> client payloads

type DocumentDataPayload struct {
	Document      *Document   `json:"document"`
	ActiveEditors []*Presence `json:"activeEditors"`
}

type DocumentChangeBroadcast struct {
	Patches  string `json:"patches"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

type CursorPositionBroadcast struct {
	UserID         string    `json:"userId"`
	Username       string    `json:"username"`
	CursorPosition int       `json:"cursorPosition"`
	Selection      Selection `json:"selection"`
}

type EditorPresenceBroadcast struct {
	UserID        string      `json:"userId"`
	Username      string      `json:"username"`
	ActiveEditors []*Presence `json:"activeEditors"`
}

type VersionCreatedBroadcast struct {
	VersionIndex int       `json:"versionIndex"`
	UserID       string    `json:"userId"`
	Username     string    `json:"username"`
	Timestamp    time.Time `json:"timestamp"`
}

type SyncRequiredPayload struct {
	Content             string `json:"content"`
	ServerShadowVersion int    `json:"serverShadowVersion"`
}

type DocumentUpdatedBroadcast struct {
	Content  string `json:"content"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

type OfflineEditsAvailablePayload struct {
	Count int `json:"count"`
}

type OfflineEditSavedPayload struct {
	Success bool `json:"success"`
}

type OfflineEditsSyncedPayload struct {
	Success bool `json:"success"`
	Count   int  `json:"count"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// Encode wraps data in an Envelope and marshals it. Payload structs are
// marshal-safe by construction, so errors here indicate a programming bug;
// the empty slice return keeps callers honest about it.
func Encode(event string, data any) []byte {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil
	}
	msg, err := json.Marshal(&Envelope{Event: event, Data: raw})
	if err != nil {
		return nil
	}
	return msg
}
