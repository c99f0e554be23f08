package collaboration

import (
	"context"
	"testing"

	"syncpad/internal/models"

	"github.com/go-playground/assert/v2"
)

func TestOfflineBufferFIFOAndTimestampSort(t *testing.T) {
	ctx := context.Background()
	buf := NewMemoryOfflineBuffer()

	push := func(ts int64) {
		buf.Push(ctx, "alice", "d1", &models.OfflineEdit{
			Patches:         "p",
			ClientTimestamp: ts,
			UserID:          "alice",
		})
	}
	push(300)
	push(100)
	push(200)

	count, err := buf.Count(ctx, "alice", "d1")
	assert.Equal(t, err, nil)
	assert.Equal(t, count, 3)

	edits, err := buf.Drain(ctx, "alice", "d1")
	assert.Equal(t, err, nil)
	assert.Equal(t, len(edits), 3)
	assert.Equal(t, edits[0].ClientTimestamp, int64(100))
	assert.Equal(t, edits[1].ClientTimestamp, int64(200))
	assert.Equal(t, edits[2].ClientTimestamp, int64(300))

	// Drain clears the queue
	count, err = buf.Count(ctx, "alice", "d1")
	assert.Equal(t, err, nil)
	assert.Equal(t, count, 0)
}

func TestOfflineBufferKeysAreIndependent(t *testing.T) {
	ctx := context.Background()
	buf := NewMemoryOfflineBuffer()

	buf.Push(ctx, "alice", "d1", &models.OfflineEdit{ClientTimestamp: 1})
	buf.Push(ctx, "alice", "d2", &models.OfflineEdit{ClientTimestamp: 2})
	buf.Push(ctx, "bob", "d1", &models.OfflineEdit{ClientTimestamp: 3})

	edits, err := buf.Drain(ctx, "alice", "d1")
	assert.Equal(t, err, nil)
	assert.Equal(t, len(edits), 1)

	count, _ := buf.Count(ctx, "alice", "d2")
	assert.Equal(t, count, 1)
	count, _ = buf.Count(ctx, "bob", "d1")
	assert.Equal(t, count, 1)
}

func TestOfflineBufferDrainEmpty(t *testing.T) {
	ctx := context.Background()
	buf := NewMemoryOfflineBuffer()

	edits, err := buf.Drain(ctx, "nobody", "nothing")
	assert.Equal(t, err, nil)
	assert.Equal(t, len(edits), 0)
}
