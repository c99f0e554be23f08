package collaboration

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"syncpad/internal/diff"
	"syncpad/internal/middleware"
	"syncpad/internal/models"
	"syncpad/internal/repository"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

/*
LEARNING: DIFFERENTIAL SYNCHRONIZATION ENGINE

One synchronous critical section per document-change:

  authorize -> acquire document mutex -> fuzzy-apply against the shadow
  -> persist head -> broadcast the patch to peers -> maybe snapshot

The per-document mutex replaces the single-threaded event loop the pattern
is usually described with: within one document, commit order equals
broadcast order; across documents everything runs in parallel.

Peers receive the PATCH, not the new full text: each peer's working copy
differs from the authoritative text by its own unsent edits, and fuzzy
application of the same patch is what lets concurrent typing converge.
*/

// snapshotInterval is the auto-save cadence: a version is appended when
// none exist yet or the latest one is at least this old.
const snapshotInterval = 60 * time.Second

// Engine applies patch bundles to shadow + authoritative text, fans results
// out to rooms, and schedules version snapshots.
type Engine struct {
	store   DocumentStore
	shadows *ShadowStore
	rooms   *RoomRegistry
	offline OfflineBuffer

	mu       sync.Mutex
	sessions map[*Session]bool
}

func NewEngine(store DocumentStore, offline OfflineBuffer) *Engine {
	return &Engine{
		store:    store,
		shadows:  NewShadowStore(),
		rooms:    NewRoomRegistry(),
		offline:  offline,
		sessions: make(map[*Session]bool),
	}
}

// Rooms exposes the room registry for lookups of rooms and their rosters
func (e *Engine) Rooms() *RoomRegistry { return e.rooms }

// Register tracks a freshly connected session for shutdown
func (e *Engine) Register(s *Session) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sessions[s] = true
}

// Disconnect tears a session down: leaves every joined room (emitting
// editor-left to peers), then closes the connection. Safe to call twice.
func (e *Engine) Disconnect(ctx context.Context, s *Session) {
	for _, documentID := range s.joinedDocs() {
		s.untrackDoc(documentID)
		e.leaveRoom(s, documentID)
	}

	e.mu.Lock()
	delete(e.sessions, s)
	e.mu.Unlock()

	s.Close()
	log.Printf("  Session %s disconnected (user %s)", s.ID, s.Username)
}

// Shutdown closes every active session. New connections should already be
// refused by the HTTP server at this point.
func (e *Engine) Shutdown() {
	log.Println("🛑 Shutting down sync engine...")

	e.mu.Lock()
	active := make([]*Session, 0, len(e.sessions))
	for s := range e.sessions {
		active = append(active, s)
	}
	e.sessions = make(map[*Session]bool)
	e.mu.Unlock()

	for _, s := range active {
		s.Close()
	}
	log.Println("✓ Sync engine shutdown complete")
}

// HandleJoin processes join-document: room membership, presence, the
// document-data reply, the editor-joined broadcast, and the buffered
// offline-edit notification.
func (e *Engine) HandleJoin(ctx context.Context, s *Session, p *models.JoinDocumentPayload) {
	ctx, span := middleware.StartSpan(ctx, "Engine.HandleJoin",
		attribute.String("document.id", p.DocumentID))
	defer span.End()

	doc, serr := e.authorize(ctx, s.UserID, p.DocumentID)
	if serr != nil {
		middleware.AddSpanError(ctx, serr)
		s.sendError(serr)
		return
	}

	room := e.rooms.Join(s, p.DocumentID)
	s.trackDoc(p.DocumentID)
	room.UpsertPresence(s.UserID, s.Username, 0, models.Selection{Start: 0, End: 0})

	s.sendEvent(models.EventDocumentData, &models.DocumentDataPayload{
		Document:      doc,
		ActiveEditors: room.ActiveEditors(),
	})

	e.dropSlow(room.Broadcast(models.Encode(models.EventEditorJoined, &models.EditorPresenceBroadcast{
		UserID:        s.UserID,
		Username:      s.Username,
		ActiveEditors: room.ActiveEditors(),
	}), s))

	if count, err := e.offline.Count(ctx, s.UserID, p.DocumentID); err == nil && count > 0 {
		s.sendEvent(models.EventOfflineEditsAvailable, &models.OfflineEditsAvailablePayload{Count: count})
	}

	log.Printf("  Session %s joined document %s (total: %d users)", s.ID, p.DocumentID, room.Size())
}

// HandleLeave processes leave-document
func (e *Engine) HandleLeave(ctx context.Context, s *Session, documentID string) {
	if !s.hasDoc(documentID) {
		return
	}
	s.untrackDoc(documentID)
	e.leaveRoom(s, documentID)
}

// leaveRoom removes the session from a room, notifies peers, and evicts
// the shadow when the room empties.
func (e *Engine) leaveRoom(s *Session, documentID string) {
	room, empty := e.rooms.Leave(s, documentID)
	if room == nil {
		return
	}

	room.RemovePresence(s.UserID)

	if empty {
		// Rehydration re-reads persisted content, so eviction is safe
		e.shadows.Drop(documentID)
		log.Printf("  Room %s destroyed (last session left)", documentID)
		return
	}

	room.Broadcast(models.Encode(models.EventEditorLeft, &models.EditorPresenceBroadcast{
		UserID:        s.UserID,
		Username:      s.Username,
		ActiveEditors: room.ActiveEditors(),
	}), s)
	log.Printf("  Session %s left document %s (remaining: %d users)", s.ID, documentID, room.Size())
}

// HandleChange is the central algorithm (one critical section per edit)
func (e *Engine) HandleChange(ctx context.Context, s *Session, p *models.DocumentChangePayload) {
	ctx, span := middleware.StartSpan(ctx, "Engine.HandleChange",
		attribute.String("document.id", p.DocumentID),
		attribute.String("user.id", s.UserID),
		attribute.Int("patches.size", len(p.Patches)),
	)
	defer span.End()

	doc, serr := e.authorize(ctx, s.UserID, p.DocumentID)
	if serr != nil {
		middleware.AddSpanError(ctx, serr)
		s.sendError(serr)
		return
	}

	bundle, err := diff.FromText(p.Patches)
	if err != nil {
		middleware.AddSpanError(ctx, err)
		s.sendError(models.NewSyncError(models.ErrPatchFailed, "invalid patch bundle"))
		return
	}

	sh := e.shadows.Get(p.DocumentID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	e.hydrate(sh, doc)

	newShadow, results := diff.Apply(bundle, sh.text)
	if !diff.AllApplied(results) {
		// The sender's base has diverged beyond fuzzy repair. Tell only the
		// sender to restart from the full server content; peers are
		// unaffected and nothing is mutated.
		span.AddEvent("sync-required")
		s.sendEvent(models.EventSyncRequired, &models.SyncRequiredPayload{
			Content:             sh.text,
			ServerShadowVersion: sh.version,
		})
		return
	}

	now := time.Now()
	if err := e.store.SaveDocumentHead(ctx, p.DocumentID, newShadow, now); err != nil {
		// Shadow stays at its pre-apply state and no broadcast is issued
		middleware.AddSpanError(ctx, err)
		s.sendError(models.WrapSyncError(models.ErrPersistenceFailure, "failed to save document", err))
		return
	}

	sh.text = newShadow
	sh.version++

	e.dropSlow(e.rooms.Broadcast(p.DocumentID, models.Encode(models.EventDocumentChange, &models.DocumentChangeBroadcast{
		Patches:  p.Patches,
		UserID:   s.UserID,
		Username: s.Username,
	}), s))

	if now.Sub(sh.lastSnapshot) >= snapshotInterval {
		e.snapshot(ctx, sh, p.DocumentID, s.UserID, s.Username, "Auto-saved version", newShadow, now)
	}
}

// HandleCursor relays advisory cursor state to peers. Positions are not
// rebased by the server.
func (e *Engine) HandleCursor(ctx context.Context, s *Session, p *models.CursorPositionPayload) {
	room := e.rooms.Get(p.DocumentID)
	if room == nil || !room.Has(s) {
		return
	}

	room.UpsertPresence(s.UserID, s.Username, p.CursorPosition, p.Selection)

	e.dropSlow(room.Broadcast(models.Encode(models.EventCursorPosition, &models.CursorPositionBroadcast{
		UserID:         s.UserID,
		Username:       s.Username,
		CursorPosition: p.CursorPosition,
		Selection:      p.Selection,
	}), s))
}

// HandleSaveOffline buffers a patch bundle produced while the client was
// disconnected and acknowledges it.
func (e *Engine) HandleSaveOffline(ctx context.Context, s *Session, p *models.SaveOfflineEditPayload) {
	ctx, span := middleware.StartSpan(ctx, "Engine.HandleSaveOffline",
		attribute.String("document.id", p.DocumentID))
	defer span.End()

	if _, serr := e.authorize(ctx, s.UserID, p.DocumentID); serr != nil {
		middleware.AddSpanError(ctx, serr)
		s.sendError(serr)
		return
	}

	edit := &models.OfflineEdit{
		ID:              uuid.NewString(),
		Patches:         p.Patches,
		ClientTimestamp: p.Timestamp,
		UserID:          s.UserID,
		Username:        s.Username,
	}
	if err := e.offline.Push(ctx, s.UserID, p.DocumentID, edit); err != nil {
		middleware.AddSpanError(ctx, err)
		s.sendError(models.WrapSyncError(models.ErrPersistenceFailure, "failed to buffer offline edit", err))
		return
	}

	s.sendEvent(models.EventOfflineEditSaved, &models.OfflineEditSavedPayload{Success: true})
}

// HandleSyncOffline drains the caller's buffered edits and replays them in
// client-timestamp order under the document mutex, so no live edits
// interleave with the replay.
func (e *Engine) HandleSyncOffline(ctx context.Context, s *Session, p *models.SyncOfflineEditsPayload) {
	ctx, span := middleware.StartSpan(ctx, "Engine.HandleSyncOffline",
		attribute.String("document.id", p.DocumentID))
	defer span.End()

	doc, serr := e.authorize(ctx, s.UserID, p.DocumentID)
	if serr != nil {
		middleware.AddSpanError(ctx, serr)
		s.sendError(serr)
		return
	}

	edits, err := e.offline.Drain(ctx, s.UserID, p.DocumentID)
	if err != nil {
		middleware.AddSpanError(ctx, err)
		s.sendError(models.WrapSyncError(models.ErrPersistenceFailure, "failed to drain offline edits", err))
		return
	}
	span.SetAttributes(attribute.Int("edits.count", len(edits)))

	if len(edits) == 0 {
		s.sendEvent(models.EventOfflineEditsSynced, &models.OfflineEditsSyncedPayload{Success: true, Count: 0})
		return
	}

	sh := e.shadows.Get(p.DocumentID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	e.hydrate(sh, doc)

	// Best-effort merge: each bundle applies against the accumulated text;
	// a bundle with any failed hunk is skipped whole.
	working := sh.text
	applied := 0
	for _, edit := range edits {
		bundle, err := diff.FromText(edit.Patches)
		if err != nil {
			continue
		}
		next, results := diff.Apply(bundle, working)
		if diff.AllApplied(results) {
			working = next
			applied++
		}
	}

	if applied > 0 {
		now := time.Now()
		if err := e.store.SaveDocumentHead(ctx, p.DocumentID, working, now); err != nil {
			middleware.AddSpanError(ctx, err)
			s.sendError(models.WrapSyncError(models.ErrPersistenceFailure, "failed to save document", err))
			return
		}

		sh.text = working
		sh.version++

		// Full text, not a patch: after a batched replay peers have no
		// common base to patch against.
		e.dropSlow(e.rooms.Broadcast(p.DocumentID, models.Encode(models.EventDocumentUpdated, &models.DocumentUpdatedBroadcast{
			Content:  working,
			UserID:   s.UserID,
			Username: s.Username,
		}), nil))

		e.snapshot(ctx, sh, p.DocumentID, s.UserID, s.Username,
			fmt.Sprintf("Synced %d offline edits", applied), working, now)
	}

	s.sendEvent(models.EventOfflineEditsSynced, &models.OfflineEditsSyncedPayload{Success: true, Count: applied})
}

// Revert materializes versions[index] as a new head version. Called from
// the HTTP surface; broadcasts reach the room like any other commit.
func (e *Engine) Revert(ctx context.Context, user *models.UserInfo, documentID string, index int) (*models.Document, error) {
	ctx, span := middleware.StartSpan(ctx, "Engine.Revert",
		attribute.String("document.id", documentID),
		attribute.Int("version.index", index),
	)
	defer span.End()

	doc, serr := e.authorize(ctx, user.ID, documentID)
	if serr != nil {
		middleware.AddSpanError(ctx, serr)
		return nil, serr
	}
	if index < 0 || index >= len(doc.Versions) {
		return nil, models.NewSyncError(models.ErrNotFound,
			fmt.Sprintf("version index %d out of range", index))
	}
	target := doc.Versions[index]

	sh := e.shadows.Get(documentID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	e.hydrate(sh, doc)

	version := &models.Version{
		Content:           target.Content,
		AuthorID:          user.ID,
		ChangeDescription: fmt.Sprintf("Reverted to version %d", index+1),
	}
	newIndex, err := e.store.AppendVersion(ctx, documentID, version)
	if err != nil {
		middleware.AddSpanError(ctx, err)
		return nil, models.WrapSyncError(models.ErrPersistenceFailure, "failed to append version", err)
	}

	now := time.Now()
	if err := e.store.SaveDocumentHead(ctx, documentID, target.Content, now); err != nil {
		middleware.AddSpanError(ctx, err)
		return nil, models.WrapSyncError(models.ErrPersistenceFailure, "failed to save document", err)
	}

	sh.text = target.Content
	sh.version++
	sh.lastSnapshot = now

	e.dropSlow(e.rooms.Broadcast(documentID, models.Encode(models.EventDocumentUpdated, &models.DocumentUpdatedBroadcast{
		Content:  target.Content,
		UserID:   user.ID,
		Username: user.Username,
	}), nil))
	e.dropSlow(e.rooms.Broadcast(documentID, models.Encode(models.EventVersionCreated, &models.VersionCreatedBroadcast{
		VersionIndex: newIndex,
		UserID:       user.ID,
		Username:     user.Username,
		Timestamp:    now,
	}), nil))

	return e.store.GetDocument(ctx, documentID)
}

// RefreshShadow installs externally updated content (manual HTTP save) as
// the new shadow and tells the room. Intentionally no snapshot.
func (e *Engine) RefreshShadow(ctx context.Context, user *models.UserInfo, documentID, content string) {
	sh := e.shadows.Get(documentID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	sh.text = content
	sh.hydrated = true
	sh.version++

	e.dropSlow(e.rooms.Broadcast(documentID, models.Encode(models.EventDocumentUpdated, &models.DocumentUpdatedBroadcast{
		Content:  content,
		UserID:   user.ID,
		Username: user.Username,
	}), nil))
}

// authorize resolves the document and checks owner-or-collaborator access
func (e *Engine) authorize(ctx context.Context, userID, documentID string) (*models.Document, *models.SyncError) {
	doc, err := e.store.GetDocument(ctx, documentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, models.NewSyncError(models.ErrNotFound, "document not found")
		}
		return nil, models.WrapSyncError(models.ErrPersistenceFailure, "failed to load document", err)
	}
	if !doc.CanAccess(userID) {
		return nil, models.NewSyncError(models.ErrForbidden, "not an owner or collaborator")
	}
	return doc, nil
}

// hydrate installs the persisted content as the shadow on first touch.
// Caller holds sh.mu.
func (e *Engine) hydrate(sh *DocumentShadow, doc *models.Document) {
	if sh.hydrated {
		return
	}
	sh.text = doc.Content
	sh.hydrated = true
	if v := doc.LatestVersion(); v != nil {
		sh.lastSnapshot = v.CreatedAt
	}
}

// snapshot appends a version and announces it to the entire room,
// including the author. Caller holds the document mutex. A snapshot
// failure is logged but never fails the already-committed edit.
func (e *Engine) snapshot(ctx context.Context, sh *DocumentShadow, documentID, userID, username, description, content string, now time.Time) {
	version := &models.Version{
		Content:           content,
		AuthorID:          userID,
		ChangeDescription: description,
	}
	index, err := e.store.AppendVersion(ctx, documentID, version)
	if err != nil {
		middleware.AddSpanError(ctx, err)
		log.Printf("⚠️  Failed to snapshot document %s: %v", documentID, err)
		return
	}

	sh.lastSnapshot = now

	e.dropSlow(e.rooms.Broadcast(documentID, models.Encode(models.EventVersionCreated, &models.VersionCreatedBroadcast{
		VersionIndex: index,
		UserID:       userID,
		Username:     username,
		Timestamp:    now,
	}), nil))
}

// dropSlow disconnects sessions whose outbound sink filled during a
// broadcast. Their read pumps observe the closed connection and run the
// normal room cleanup; other peers are unaffected.
func (e *Engine) dropSlow(slow []*Session) {
	for _, s := range slow {
		log.Printf("⚠️  Session %s send buffer full, closing connection", s.ID)
		s.Close()
	}
}
