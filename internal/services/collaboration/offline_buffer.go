package collaboration

import (
	"context"
	"sort"
	"sync"

	"syncpad/internal/models"
)

// MemoryOfflineBuffer is the default offline-edit queue, held in process
// memory. One lock guards the whole map; queues are short-lived and only
// touched on save/replay, so contention is not a concern.
type MemoryOfflineBuffer struct {
	mu     sync.Mutex
	queues map[offlineKey][]*models.OfflineEdit
}

type offlineKey struct {
	userID     string
	documentID string
}

func NewMemoryOfflineBuffer() *MemoryOfflineBuffer {
	return &MemoryOfflineBuffer{
		queues: make(map[offlineKey][]*models.OfflineEdit),
	}
}

// Push appends in arrival order (FIFO)
func (b *MemoryOfflineBuffer) Push(ctx context.Context, userID, documentID string, edit *models.OfflineEdit) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := offlineKey{userID, documentID}
	b.queues[key] = append(b.queues[key], edit)
	return nil
}

// Drain returns the queued edits sorted ascending by client timestamp and
// clears the queue. The offline client produced its bundles sequentially
// against successively updated local shadows, so timestamp order maximizes
// clean fuzzy application on replay.
func (b *MemoryOfflineBuffer) Drain(ctx context.Context, userID, documentID string) ([]*models.OfflineEdit, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := offlineKey{userID, documentID}
	edits := b.queues[key]
	delete(b.queues, key)

	sort.SliceStable(edits, func(i, j int) bool {
		return edits[i].ClientTimestamp < edits[j].ClientTimestamp
	})
	return edits, nil
}

// Count reports how many edits are queued for the key
func (b *MemoryOfflineBuffer) Count(ctx context.Context, userID, documentID string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queues[offlineKey{userID, documentID}]), nil
}
