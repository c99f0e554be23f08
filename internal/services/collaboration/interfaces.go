package collaboration

import (
	"context"
	"time"

	"syncpad/internal/models"
)

/*
LEARNING: CONSUMER-DRIVEN INTERFACES (Go Idiom)

"Accept interfaces, return structs" - this package is the CONSUMER of
persistence and auth, so the interfaces it depends on live here. The
repository and auth packages return concrete types and never hear about
these definitions.
*/

// DocumentStore is the persistence contract the sync engine consumes.
// Only methods the engine actually calls are declared.
type DocumentStore interface {
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	SaveDocumentHead(ctx context.Context, id, content string, lastModified time.Time) error
	AppendVersion(ctx context.Context, documentID string, version *models.Version) (int, error)
}

// TokenValidator is what the handshake gate needs from the auth service
type TokenValidator interface {
	Validate(token string) (*models.UserInfo, error)
}

// OfflineBuffer queues patch bundles accumulated while a client was
// disconnected, keyed by (user, document). Drain returns edits sorted
// ascending by client timestamp and clears the queue.
type OfflineBuffer interface {
	Push(ctx context.Context, userID, documentID string, edit *models.OfflineEdit) error
	Drain(ctx context.Context, userID, documentID string) ([]*models.OfflineEdit, error)
	Count(ctx context.Context, userID, documentID string) (int, error)
}
