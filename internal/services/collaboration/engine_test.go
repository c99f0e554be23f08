package collaboration

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"syncpad/internal/diff"
	"syncpad/internal/models"
	"syncpad/internal/repository"

	"github.com/go-playground/assert/v2"
)

// fakeStore is an in-memory DocumentStore for engine tests
type fakeStore struct {
	mu       sync.Mutex
	docs     map[string]*models.Document
	failSave bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{docs: make(map[string]*models.Document)}
}

func (f *fakeStore) put(doc *models.Document) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[doc.ID] = doc
}

func (f *fakeStore) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, ok := f.docs[id]
	if !ok {
		return nil, fmt.Errorf("document %s: %w", id, repository.ErrNotFound)
	}
	cp := *doc
	cp.Versions = append([]*models.Version(nil), doc.Versions...)
	return &cp, nil
}

func (f *fakeStore) SaveDocumentHead(ctx context.Context, id, content string, lastModified time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failSave {
		return fmt.Errorf("persistence unavailable")
	}
	doc, ok := f.docs[id]
	if !ok {
		return fmt.Errorf("document %s: %w", id, repository.ErrNotFound)
	}
	doc.Content = content
	doc.LastModified = lastModified
	return nil
}

func (f *fakeStore) AppendVersion(ctx context.Context, documentID string, version *models.Version) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, ok := f.docs[documentID]
	if !ok {
		return 0, fmt.Errorf("document %s: %w", documentID, repository.ErrNotFound)
	}
	version.DocumentID = documentID
	version.Idx = len(doc.Versions)
	version.CreatedAt = time.Now()
	doc.Versions = append(doc.Versions, version)
	doc.CurrentVersion = version.Idx
	return version.Idx, nil
}

func (f *fakeStore) content(id string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.docs[id].Content
}

func (f *fakeStore) versions(id string) []*models.Version {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*models.Version(nil), f.docs[id].Versions...)
}

func newTestEngine(store *fakeStore) *Engine {
	return NewEngine(store, NewMemoryOfflineBuffer())
}

func newTestSession(e *Engine, userID, username string) *Session {
	s := NewSession(&models.UserInfo{ID: userID, Username: username}, nil, e, 64)
	e.Register(s)
	return s
}

// drainEvents empties the session's outbound sink
func drainEvents(s *Session) []models.Envelope {
	var out []models.Envelope
	for {
		select {
		case raw := <-s.Send:
			var env models.Envelope
			if err := json.Unmarshal(raw, &env); err == nil {
				out = append(out, env)
			}
		default:
			return out
		}
	}
}

func findEvent(envs []models.Envelope, name string) (json.RawMessage, bool) {
	for _, env := range envs {
		if env.Event == name {
			return env.Data, true
		}
	}
	return nil, false
}

func countEvents(envs []models.Envelope, name string) int {
	n := 0
	for _, env := range envs {
		if env.Event == name {
			n++
		}
	}
	return n
}

func testDoc(id, content, ownerID string, collaborators ...string) *models.Document {
	return &models.Document{
		ID:              id,
		Title:           "doc " + id,
		Content:         content,
		OwnerID:         ownerID,
		CollaboratorIDs: collaborators,
		LastModified:    time.Now(),
	}
}

func patchText(a, b string) string {
	return diff.MakePatch(a, b).Text()
}

// S1: a single writer's patch commits, broadcasts to nobody, and the first
// edit creates an auto-saved version.
func TestSingleWriter(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.put(testDoc("d1", "", "alice"))
	e := newTestEngine(store)

	a := newTestSession(e, "alice", "Alice")
	e.HandleJoin(ctx, a, &models.JoinDocumentPayload{DocumentID: "d1"})

	joined := drainEvents(a)
	data, ok := findEvent(joined, models.EventDocumentData)
	assert.Equal(t, ok, true)
	var docData models.DocumentDataPayload
	assert.Equal(t, json.Unmarshal(data, &docData), nil)
	assert.Equal(t, docData.Document.ID, "d1")
	assert.Equal(t, len(docData.ActiveEditors), 1)

	e.HandleChange(ctx, a, &models.DocumentChangePayload{
		DocumentID: "d1",
		Patches:    patchText("", "hello"),
	})

	assert.Equal(t, store.content("d1"), "hello")

	versions := store.versions("d1")
	assert.Equal(t, len(versions), 1)
	assert.Equal(t, versions[0].Content, "hello")
	assert.Equal(t, versions[0].ChangeDescription, "Auto-saved version")
	assert.Equal(t, versions[0].AuthorID, "alice")

	events := drainEvents(a)
	// The author is the only member: no document-change relay, but the
	// version-created announcement goes to the whole room including them.
	assert.Equal(t, countEvents(events, models.EventDocumentChange), 0)
	assert.Equal(t, countEvents(events, models.EventVersionCreated), 1)
}

// S2: two writers with disjoint edits and stale bases converge through
// server serialization plus fuzzy relay application.
func TestTwoWritersDisjointEdits(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.put(testDoc("d1", "AAA BBB", "alice", "bob"))
	e := newTestEngine(store)

	a := newTestSession(e, "alice", "Alice")
	b := newTestSession(e, "bob", "Bob")
	e.HandleJoin(ctx, a, &models.JoinDocumentPayload{DocumentID: "d1"})
	e.HandleJoin(ctx, b, &models.JoinDocumentPayload{DocumentID: "d1"})
	drainEvents(a)
	drainEvents(b)

	// Both clients edit against the same base before seeing each other
	localA := "XXX BBB"
	localB := "AAA YYY"

	e.HandleChange(ctx, a, &models.DocumentChangePayload{
		DocumentID: "d1", Patches: patchText("AAA BBB", localA),
	})
	e.HandleChange(ctx, b, &models.DocumentChangePayload{
		DocumentID: "d1", Patches: patchText("AAA BBB", localB),
	})

	assert.Equal(t, store.content("d1"), "XXX YYY")

	// B applies A's relayed patch to its local copy
	bEvents := drainEvents(b)
	data, ok := findEvent(bEvents, models.EventDocumentChange)
	assert.Equal(t, ok, true)
	var relayToB models.DocumentChangeBroadcast
	assert.Equal(t, json.Unmarshal(data, &relayToB), nil)
	assert.Equal(t, relayToB.UserID, "alice")

	bundle, err := diff.FromText(relayToB.Patches)
	assert.Equal(t, err, nil)
	merged, results := diff.Apply(bundle, localB)
	assert.Equal(t, diff.AllApplied(results), true)
	assert.Equal(t, merged, "XXX YYY")

	// A applies B's relayed patch to its local copy
	aEvents := drainEvents(a)
	data, ok = findEvent(aEvents, models.EventDocumentChange)
	assert.Equal(t, ok, true)
	var relayToA models.DocumentChangeBroadcast
	assert.Equal(t, json.Unmarshal(data, &relayToA), nil)
	assert.Equal(t, relayToA.UserID, "bob")

	bundle, err = diff.FromText(relayToA.Patches)
	assert.Equal(t, err, nil)
	merged, results = diff.Apply(bundle, localA)
	assert.Equal(t, diff.AllApplied(results), true)
	assert.Equal(t, merged, "XXX YYY")

	// Both edits landed inside the snapshot interval: one version only
	assert.Equal(t, len(store.versions("d1")), 1)
}

// S3: an unapplicable patch triggers sync-required to the sender only and
// mutates nothing.
func TestFailedPatchSyncRequired(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.put(testDoc("d1", "one two three", "alice", "bob"))
	e := newTestEngine(store)

	a := newTestSession(e, "alice", "Alice")
	b := newTestSession(e, "bob", "Bob")
	e.HandleJoin(ctx, a, &models.JoinDocumentPayload{DocumentID: "d1"})
	e.HandleJoin(ctx, b, &models.JoinDocumentPayload{DocumentID: "d1"})
	drainEvents(a)
	drainEvents(b)

	// A patch whose context cannot be located anywhere in the document
	badBase := strings.Repeat("q", 32)
	e.HandleChange(ctx, a, &models.DocumentChangePayload{
		DocumentID: "d1", Patches: patchText(badBase, badBase+"X"),
	})

	aEvents := drainEvents(a)
	data, ok := findEvent(aEvents, models.EventSyncRequired)
	assert.Equal(t, ok, true)
	var sync models.SyncRequiredPayload
	assert.Equal(t, json.Unmarshal(data, &sync), nil)
	assert.Equal(t, sync.Content, "one two three")

	assert.Equal(t, len(drainEvents(b)), 0)
	assert.Equal(t, store.content("d1"), "one two three")
	assert.Equal(t, len(store.versions("d1")), 0)
}

// S4: cursor presence is relayed to peers and tracked on the roster
func TestCursorPresence(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.put(testDoc("d1", "some text", "alice", "bob"))
	e := newTestEngine(store)

	a := newTestSession(e, "alice", "Alice")
	b := newTestSession(e, "bob", "Bob")
	e.HandleJoin(ctx, a, &models.JoinDocumentPayload{DocumentID: "d1"})
	e.HandleJoin(ctx, b, &models.JoinDocumentPayload{DocumentID: "d1"})
	drainEvents(a)
	drainEvents(b)

	e.HandleCursor(ctx, b, &models.CursorPositionPayload{
		DocumentID:     "d1",
		CursorPosition: 5,
		Selection:      models.Selection{Start: 5, End: 7},
	})

	aEvents := drainEvents(a)
	data, ok := findEvent(aEvents, models.EventCursorPosition)
	assert.Equal(t, ok, true)
	var cursor models.CursorPositionBroadcast
	assert.Equal(t, json.Unmarshal(data, &cursor), nil)
	assert.Equal(t, cursor.UserID, "bob")
	assert.Equal(t, cursor.CursorPosition, 5)
	assert.Equal(t, cursor.Selection, models.Selection{Start: 5, End: 7})

	// The sender gets no echo
	assert.Equal(t, len(drainEvents(b)), 0)

	editors := e.Rooms().Get("d1").ActiveEditors()
	assert.Equal(t, len(editors), 2)
}

// S5: offline edits replay in client-timestamp order regardless of arrival
// order, append one version, and broadcast the final text to the room.
func TestOfflineReplay(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.put(testDoc("d1", "base text", "alice", "bob"))
	e := newTestEngine(store)

	a := newTestSession(e, "alice", "Alice")
	b := newTestSession(e, "bob", "Bob")
	e.HandleJoin(ctx, a, &models.JoinDocumentPayload{DocumentID: "d1"})
	e.HandleJoin(ctx, b, &models.JoinDocumentPayload{DocumentID: "d1"})
	drainEvents(a)
	drainEvents(b)

	// Bundles produced against successive local states, arriving out of
	// timestamp order
	t1 := patchText("base text", "base text one")
	t2 := patchText("base text one", "base text one two")
	t3 := patchText("base text one two", "base text one two three")

	e.HandleSaveOffline(ctx, a, &models.SaveOfflineEditPayload{DocumentID: "d1", Patches: t2, Timestamp: 200})
	e.HandleSaveOffline(ctx, a, &models.SaveOfflineEditPayload{DocumentID: "d1", Patches: t1, Timestamp: 100})
	e.HandleSaveOffline(ctx, a, &models.SaveOfflineEditPayload{DocumentID: "d1", Patches: t3, Timestamp: 300})

	saved := drainEvents(a)
	assert.Equal(t, countEvents(saved, models.EventOfflineEditSaved), 3)

	e.HandleSyncOffline(ctx, a, &models.SyncOfflineEditsPayload{DocumentID: "d1"})

	assert.Equal(t, store.content("d1"), "base text one two three")

	versions := store.versions("d1")
	assert.Equal(t, len(versions), 1)
	assert.Equal(t, versions[0].ChangeDescription, "Synced 3 offline edits")

	aEvents := drainEvents(a)
	data, ok := findEvent(aEvents, models.EventOfflineEditsSynced)
	assert.Equal(t, ok, true)
	var synced models.OfflineEditsSyncedPayload
	assert.Equal(t, json.Unmarshal(data, &synced), nil)
	assert.Equal(t, synced.Success, true)
	assert.Equal(t, synced.Count, 3)

	// The batched replay goes to the entire room as full text
	assert.Equal(t, countEvents(aEvents, models.EventDocumentUpdated), 1)

	bEvents := drainEvents(b)
	data, ok = findEvent(bEvents, models.EventDocumentUpdated)
	assert.Equal(t, ok, true)
	var updated models.DocumentUpdatedBroadcast
	assert.Equal(t, json.Unmarshal(data, &updated), nil)
	assert.Equal(t, updated.Content, "base text one two three")
	assert.Equal(t, countEvents(bEvents, models.EventVersionCreated), 1)
}

// An offline bundle that cannot apply is skipped; the rest still replay
func TestOfflineReplaySkipsFailedBundle(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.put(testDoc("d1", "base text", "alice"))
	e := newTestEngine(store)

	a := newTestSession(e, "alice", "Alice")
	e.HandleJoin(ctx, a, &models.JoinDocumentPayload{DocumentID: "d1"})
	drainEvents(a)

	good1 := patchText("base text", "base text one")
	bad := patchText(strings.Repeat("z", 32), strings.Repeat("z", 32)+"!")
	good2 := patchText("base text one", "base text one two")

	e.HandleSaveOffline(ctx, a, &models.SaveOfflineEditPayload{DocumentID: "d1", Patches: good1, Timestamp: 100})
	e.HandleSaveOffline(ctx, a, &models.SaveOfflineEditPayload{DocumentID: "d1", Patches: bad, Timestamp: 200})
	e.HandleSaveOffline(ctx, a, &models.SaveOfflineEditPayload{DocumentID: "d1", Patches: good2, Timestamp: 300})
	drainEvents(a)

	e.HandleSyncOffline(ctx, a, &models.SyncOfflineEditsPayload{DocumentID: "d1"})

	assert.Equal(t, store.content("d1"), "base text one two")

	events := drainEvents(a)
	data, ok := findEvent(events, models.EventOfflineEditsSynced)
	assert.Equal(t, ok, true)
	var synced models.OfflineEditsSyncedPayload
	assert.Equal(t, json.Unmarshal(data, &synced), nil)
	assert.Equal(t, synced.Count, 2)

	versions := store.versions("d1")
	assert.Equal(t, len(versions), 1)
	assert.Equal(t, versions[0].ChangeDescription, "Synced 2 offline edits")
}

// S6: revert appends a new version with the target's content and rewrites
// head + shadow.
func TestRevert(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()

	doc := testDoc("d1", "abcX", "alice")
	now := time.Now()
	doc.Versions = []*models.Version{
		{DocumentID: "d1", Idx: 0, Content: "a", AuthorID: "alice", CreatedAt: now},
		{DocumentID: "d1", Idx: 1, Content: "ab", AuthorID: "alice", CreatedAt: now},
		{DocumentID: "d1", Idx: 2, Content: "abc", AuthorID: "alice", CreatedAt: now},
	}
	doc.CurrentVersion = 2
	store.put(doc)
	e := newTestEngine(store)

	a := newTestSession(e, "alice", "Alice")
	e.HandleJoin(ctx, a, &models.JoinDocumentPayload{DocumentID: "d1"})
	drainEvents(a)

	reverted, err := e.Revert(ctx, &models.UserInfo{ID: "alice", Username: "Alice"}, "d1", 1)
	assert.Equal(t, err, nil)
	assert.Equal(t, reverted.Content, "ab")

	versions := store.versions("d1")
	assert.Equal(t, len(versions), 4)
	assert.Equal(t, versions[3].Content, "ab")
	assert.Equal(t, versions[3].ChangeDescription, "Reverted to version 2")
	assert.Equal(t, store.content("d1"), "ab")

	sh := e.shadows.Get("d1")
	assert.Equal(t, sh.text, "ab")

	events := drainEvents(a)
	assert.Equal(t, countEvents(events, models.EventDocumentUpdated), 1)
	assert.Equal(t, countEvents(events, models.EventVersionCreated), 1)

	// A second revert to the same index is a content no-op but still
	// appends a version entry
	_, err = e.Revert(ctx, &models.UserInfo{ID: "alice", Username: "Alice"}, "d1", 1)
	assert.Equal(t, err, nil)
	assert.Equal(t, store.content("d1"), "ab")
	assert.Equal(t, len(store.versions("d1")), 5)
}

func TestRevertRejectsBadIndex(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.put(testDoc("d1", "text", "alice"))
	e := newTestEngine(store)

	_, err := e.Revert(ctx, &models.UserInfo{ID: "alice", Username: "Alice"}, "d1", 0)
	assert.NotEqual(t, err, nil)

	serr, ok := err.(*models.SyncError)
	assert.Equal(t, ok, true)
	assert.Equal(t, serr.Kind, models.ErrNotFound)
}

func TestJoinUnknownDocument(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(newFakeStore())

	a := newTestSession(e, "alice", "Alice")
	e.HandleJoin(ctx, a, &models.JoinDocumentPayload{DocumentID: "missing"})

	events := drainEvents(a)
	_, ok := findEvent(events, models.EventError)
	assert.Equal(t, ok, true)
	assert.Equal(t, e.Rooms().Len(), 0)
}

func TestChangeForbiddenForStranger(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.put(testDoc("d1", "text", "alice"))
	e := newTestEngine(store)

	mallory := newTestSession(e, "mallory", "Mallory")
	e.HandleChange(ctx, mallory, &models.DocumentChangePayload{
		DocumentID: "d1", Patches: patchText("text", "text!"),
	})

	events := drainEvents(mallory)
	_, ok := findEvent(events, models.EventError)
	assert.Equal(t, ok, true)
	assert.Equal(t, store.content("d1"), "text")
}

// Persistence failure rolls the shadow back and suppresses the broadcast
func TestPersistenceFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.put(testDoc("d1", "stable", "alice", "bob"))
	e := newTestEngine(store)

	a := newTestSession(e, "alice", "Alice")
	b := newTestSession(e, "bob", "Bob")
	e.HandleJoin(ctx, a, &models.JoinDocumentPayload{DocumentID: "d1"})
	e.HandleJoin(ctx, b, &models.JoinDocumentPayload{DocumentID: "d1"})
	drainEvents(a)
	drainEvents(b)

	store.failSave = true
	e.HandleChange(ctx, a, &models.DocumentChangePayload{
		DocumentID: "d1", Patches: patchText("stable", "stable edited"),
	})

	aEvents := drainEvents(a)
	_, ok := findEvent(aEvents, models.EventError)
	assert.Equal(t, ok, true)

	assert.Equal(t, len(drainEvents(b)), 0)
	assert.Equal(t, e.shadows.Get("d1").text, "stable")
	assert.Equal(t, store.content("d1"), "stable")
}

// A peer whose sink fills during a broadcast is disconnected; others are
// unaffected.
func TestSlowPeerIsDropped(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.put(testDoc("d1", "text", "alice", "bob", "carol"))
	e := newTestEngine(store)

	a := newTestSession(e, "alice", "Alice")
	carol := newTestSession(e, "carol", "Carol")
	// One-slot sink: document-data fills it and nothing is drained
	slow := NewSession(&models.UserInfo{ID: "bob", Username: "Bob"}, nil, e, 1)
	e.Register(slow)

	e.HandleJoin(ctx, a, &models.JoinDocumentPayload{DocumentID: "d1"})
	e.HandleJoin(ctx, slow, &models.JoinDocumentPayload{DocumentID: "d1"})
	e.HandleJoin(ctx, carol, &models.JoinDocumentPayload{DocumentID: "d1"})
	drainEvents(a)
	drainEvents(carol)

	e.HandleChange(ctx, a, &models.DocumentChangePayload{
		DocumentID: "d1", Patches: patchText("text", "text more"),
	})

	select {
	case <-slow.done:
		// Disconnected as expected
	default:
		t.Fatal("slow session was not closed")
	}

	// The healthy peer still got the relay and the commit stands
	cEvents := drainEvents(carol)
	assert.Equal(t, countEvents(cEvents, models.EventDocumentChange), 1)
	assert.Equal(t, store.content("d1"), "text more")
}

func TestLeaveNotifiesPeersAndDestroysEmptyRoom(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.put(testDoc("d1", "text", "alice", "bob"))
	e := newTestEngine(store)

	a := newTestSession(e, "alice", "Alice")
	b := newTestSession(e, "bob", "Bob")
	e.HandleJoin(ctx, a, &models.JoinDocumentPayload{DocumentID: "d1"})
	e.HandleJoin(ctx, b, &models.JoinDocumentPayload{DocumentID: "d1"})
	drainEvents(a)
	drainEvents(b)

	e.HandleLeave(ctx, b, "d1")

	aEvents := drainEvents(a)
	data, ok := findEvent(aEvents, models.EventEditorLeft)
	assert.Equal(t, ok, true)
	var left models.EditorPresenceBroadcast
	assert.Equal(t, json.Unmarshal(data, &left), nil)
	assert.Equal(t, left.UserID, "bob")
	assert.Equal(t, len(left.ActiveEditors), 1)

	// Last leave destroys the room and evicts the shadow
	e.HandleLeave(ctx, a, "d1")
	assert.Equal(t, e.Rooms().Len(), 0)
	assert.Equal(t, e.shadows.Len(), 0)
}

func TestJoinAnnouncesBufferedOfflineEdits(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.put(testDoc("d1", "text", "alice"))
	e := newTestEngine(store)

	a := newTestSession(e, "alice", "Alice")
	e.HandleJoin(ctx, a, &models.JoinDocumentPayload{DocumentID: "d1"})
	e.HandleSaveOffline(ctx, a, &models.SaveOfflineEditPayload{
		DocumentID: "d1", Patches: patchText("text", "text1"), Timestamp: 1,
	})
	e.HandleLeave(ctx, a, "d1")
	drainEvents(a)

	e.HandleJoin(ctx, a, &models.JoinDocumentPayload{DocumentID: "d1"})

	events := drainEvents(a)
	data, ok := findEvent(events, models.EventOfflineEditsAvailable)
	assert.Equal(t, ok, true)
	var avail models.OfflineEditsAvailablePayload
	assert.Equal(t, json.Unmarshal(data, &avail), nil)
	assert.Equal(t, avail.Count, 1)
}

// Disconnect cleans up every joined room like an explicit leave
func TestDisconnectLeavesAllRooms(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.put(testDoc("d1", "one", "alice", "bob"))
	store.put(testDoc("d2", "two", "alice", "bob"))
	e := newTestEngine(store)

	a := newTestSession(e, "alice", "Alice")
	b := newTestSession(e, "bob", "Bob")
	e.HandleJoin(ctx, a, &models.JoinDocumentPayload{DocumentID: "d1"})
	e.HandleJoin(ctx, a, &models.JoinDocumentPayload{DocumentID: "d2"})
	e.HandleJoin(ctx, b, &models.JoinDocumentPayload{DocumentID: "d1"})
	drainEvents(a)
	drainEvents(b)

	e.Disconnect(ctx, a)

	bEvents := drainEvents(b)
	assert.Equal(t, countEvents(bEvents, models.EventEditorLeft), 1)

	// d2 had only the disconnected session
	assert.Equal(t, e.Rooms().Get("d2") == nil, true)
	assert.Equal(t, e.Rooms().Get("d1").Size(), 1)
}

// Serialization property: concurrent disjoint edits all land, and the
// final persisted content matches the shadow.
func TestConcurrentDisjointEditsConverge(t *testing.T) {
	ctx := context.Background()
	base := "alpha line\nbravo line\ncharlie line\ndelta line"
	store := newFakeStore()
	store.put(testDoc("d1", base, "u0", "u1", "u2", "u3"))
	e := newTestEngine(store)

	words := []string{"alpha", "bravo", "charlie", "delta"}
	sessions := make([]*Session, len(words))
	for i := range words {
		sessions[i] = newTestSession(e, fmt.Sprintf("u%d", i), fmt.Sprintf("User%d", i))
		e.HandleJoin(ctx, sessions[i], &models.JoinDocumentPayload{DocumentID: "d1"})
		drainEvents(sessions[i])
	}

	var wg sync.WaitGroup
	for i, word := range words {
		wg.Add(1)
		go func(i int, word string) {
			defer wg.Done()
			edited := strings.Replace(base, word+" line", word+" line (edited)", 1)
			e.HandleChange(ctx, sessions[i], &models.DocumentChangePayload{
				DocumentID: "d1", Patches: patchText(base, edited),
			})
		}(i, word)
	}
	wg.Wait()

	final := store.content("d1")
	for _, word := range words {
		assert.Equal(t, strings.Contains(final, word+" line (edited)"), true)
	}
	assert.Equal(t, e.shadows.Get("d1").text, final)
}
