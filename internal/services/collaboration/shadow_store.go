package collaboration

import (
	"sync"
	"time"
)

// DocumentShadow is the per-document server shadow: the text the engine
// most recently told all connected clients about, plus the bookkeeping the
// engine maintains under its lock.
//
// Invariant: while an engine operation holds mu, no other operation may
// mutate the shadow, the authoritative content, or broadcast for this
// document. Commit order therefore equals broadcast order.
type DocumentShadow struct {
	mu sync.Mutex

	text         string
	version      int
	hydrated     bool
	lastSnapshot time.Time
}

// ShadowStore maps documentID -> DocumentShadow. Shadows are created lazily
// on first engine touch and may be evicted when a room empties; eviction is
// safe because rehydration re-reads the persisted content.
type ShadowStore struct {
	mu      sync.Mutex
	shadows map[string]*DocumentShadow
}

func NewShadowStore() *ShadowStore {
	return &ShadowStore{
		shadows: make(map[string]*DocumentShadow),
	}
}

// Get returns the shadow entry for a document, creating it if absent.
// The caller locks the returned shadow before touching its fields.
func (ss *ShadowStore) Get(documentID string) *DocumentShadow {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	sh, ok := ss.shadows[documentID]
	if !ok {
		sh = &DocumentShadow{}
		ss.shadows[documentID] = sh
	}
	return sh
}

// Drop evicts a document's shadow. An operation still holding the old entry
// keeps working on it; the next Get rehydrates from persistence.
func (ss *ShadowStore) Drop(documentID string) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	delete(ss.shadows, documentID)
}

// Len reports how many shadows are resident
func (ss *ShadowStore) Len() int {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return len(ss.shadows)
}
