package collaboration

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"syncpad/internal/models"

	"github.com/redis/go-redis/v9"
)

// RedisOfflineBuffer keeps offline-edit queues in a Redis list per
// (user, document) key, so buffered edits survive a server restart.
// Selected when REDIS_ADDR is configured.
type RedisOfflineBuffer struct {
	client *redis.Client
}

func NewRedisOfflineBuffer(client *redis.Client) *RedisOfflineBuffer {
	return &RedisOfflineBuffer{client: client}
}

func offlineRedisKey(userID, documentID string) string {
	return fmt.Sprintf("syncpad:offline:%s:%s", userID, documentID)
}

// Push appends the edit to the key's list (FIFO via RPUSH)
func (b *RedisOfflineBuffer) Push(ctx context.Context, userID, documentID string, edit *models.OfflineEdit) error {
	payload, err := json.Marshal(edit)
	if err != nil {
		return fmt.Errorf("failed to marshal offline edit: %w", err)
	}

	if err := b.client.RPush(ctx, offlineRedisKey(userID, documentID), payload).Err(); err != nil {
		return fmt.Errorf("failed to push offline edit: %w", err)
	}
	return nil
}

// Drain reads and deletes the whole list atomically, then sorts by client
// timestamp like the in-memory buffer.
func (b *RedisOfflineBuffer) Drain(ctx context.Context, userID, documentID string) ([]*models.OfflineEdit, error) {
	key := offlineRedisKey(userID, documentID)

	pipe := b.client.TxPipeline()
	items := pipe.LRange(ctx, key, 0, -1)
	pipe.Del(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to drain offline edits: %w", err)
	}

	raw, err := items.Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read offline edits: %w", err)
	}

	edits := make([]*models.OfflineEdit, 0, len(raw))
	for _, item := range raw {
		var edit models.OfflineEdit
		if err := json.Unmarshal([]byte(item), &edit); err != nil {
			// A corrupt entry is skipped rather than wedging the replay
			continue
		}
		edits = append(edits, &edit)
	}

	sort.SliceStable(edits, func(i, j int) bool {
		return edits[i].ClientTimestamp < edits[j].ClientTimestamp
	})
	return edits, nil
}

// Count reports the list length for the key
func (b *RedisOfflineBuffer) Count(ctx context.Context, userID, documentID string) (int, error) {
	n, err := b.client.LLen(ctx, offlineRedisKey(userID, documentID)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count offline edits: %w", err)
	}
	return int(n), nil
}
