package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"syncpad/internal/models"

	"gorm.io/gorm"
)

// ErrNotFound is returned when a requested record does not exist.
// Callers map it to the NotFound error kind.
var ErrNotFound = errors.New("record not found")

// DocumentRepositoryImpl handles all database operations for documents and
// their version history using GORM.
// Learning: This is the IMPLEMENTATION. It doesn't know about any interface.
// The consumers (sync engine, handlers) declare the interfaces they need.
type DocumentRepositoryImpl struct {
	db *gorm.DB
}

// NewDocumentRepository creates a new document repository
// Returns concrete type - "Accept interfaces, return structs"
func NewDocumentRepository(db *gorm.DB) *DocumentRepositoryImpl {
	return &DocumentRepositoryImpl{db: db}
}

// Create inserts a new document owned by ownerID. The document starts with
// no versions; the first accepted edit creates the first snapshot.
func (r *DocumentRepositoryImpl) Create(ctx context.Context, create *models.DocumentCreate, ownerID string) (*models.Document, error) {
	doc := &models.Document{
		Title:           create.Title,
		Content:         create.Content,
		OwnerID:         ownerID,
		CollaboratorIDs: []string{},
		LastModified:    time.Now(),
	}

	if err := r.db.WithContext(ctx).Create(doc).Error; err != nil {
		return nil, fmt.Errorf("failed to create document: %w", err)
	}
	return doc, nil
}

// GetDocument retrieves a document with its versions, oldest first.
// Soft-deleted documents are automatically excluded.
func (r *DocumentRepositoryImpl) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	var doc models.Document

	err := r.db.WithContext(ctx).
		Preload("Versions", func(db *gorm.DB) *gorm.DB {
			return db.Order("idx ASC")
		}).
		First(&doc, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	return &doc, nil
}

// SaveDocumentHead persists the authoritative text after a successful patch
// application. Only content and lastModified move; versions are untouched.
func (r *DocumentRepositoryImpl) SaveDocumentHead(ctx context.Context, id, content string, lastModified time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.Document{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"content":       content,
			"last_modified": lastModified,
		})

	if result.Error != nil {
		return fmt.Errorf("failed to save document head: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	return nil
}

// AppendVersion appends a snapshot to the document's version history and
// advances currentVersion to it. Returns the new currentVersion index.
// Versions are append-only; nothing here ever mutates an existing row.
func (r *DocumentRepositoryImpl) AppendVersion(ctx context.Context, documentID string, version *models.Version) (int, error) {
	var idx int

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Version{}).
			Where("document_id = ?", documentID).
			Count(&count).Error; err != nil {
			return fmt.Errorf("failed to count versions: %w", err)
		}

		idx = int(count)
		version.DocumentID = documentID
		version.Idx = idx

		if err := tx.Create(version).Error; err != nil {
			return fmt.Errorf("failed to append version: %w", err)
		}

		result := tx.Model(&models.Document{}).
			Where("id = ?", documentID).
			Update("current_version", idx)
		if result.Error != nil {
			return fmt.Errorf("failed to advance current version: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("document %s: %w", documentID, ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return idx, nil
}

// GetVersions returns the full version history, oldest first
func (r *DocumentRepositoryImpl) GetVersions(ctx context.Context, documentID string) ([]*models.Version, error) {
	var versions []*models.Version

	err := r.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("idx ASC").
		Find(&versions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get versions: %w", err)
	}

	return versions, nil
}

// ListDocumentsForUser returns documents the user owns or collaborates on,
// newest first (KSUID is time-ordered, so sorting by ID = creation time).
func (r *DocumentRepositoryImpl) ListDocumentsForUser(ctx context.Context, userID string) ([]*models.Document, error) {
	var documents []*models.Document

	err := r.db.WithContext(ctx).
		Where("owner_id = ? OR ? = ANY(collaborator_ids)", userID, userID).
		Order("id DESC").
		Find(&documents).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	return documents, nil
}

// UpdateMeta modifies title and/or content outside the sync path (manual
// save). Content updates here intentionally do not snapshot.
func (r *DocumentRepositoryImpl) UpdateMeta(ctx context.Context, id string, update *models.DocumentUpdate) (*models.Document, error) {
	updates := make(map[string]interface{})
	if update.Title != nil {
		updates["title"] = *update.Title
	}
	if update.Content != nil {
		updates["content"] = *update.Content
		updates["last_modified"] = time.Now()
	}

	if len(updates) > 0 {
		result := r.db.WithContext(ctx).
			Model(&models.Document{}).
			Where("id = ?", id).
			Updates(updates)
		if result.Error != nil {
			return nil, fmt.Errorf("failed to update document: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return nil, fmt.Errorf("document %s: %w", id, ErrNotFound)
		}
	}

	return r.GetDocument(ctx, id)
}

// AddCollaborator grants a user access to the document
func (r *DocumentRepositoryImpl) AddCollaborator(ctx context.Context, id, userID string) (*models.Document, error) {
	doc, err := r.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}

	for _, existing := range doc.CollaboratorIDs {
		if existing == userID {
			return doc, nil // Already a collaborator
		}
	}

	doc.CollaboratorIDs = append(doc.CollaboratorIDs, userID)
	err = r.db.WithContext(ctx).
		Model(&models.Document{}).
		Where("id = ?", id).
		Update("collaborator_ids", doc.CollaboratorIDs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to add collaborator: %w", err)
	}

	return doc, nil
}

// RemoveCollaborator revokes a user's access to the document
func (r *DocumentRepositoryImpl) RemoveCollaborator(ctx context.Context, id, userID string) (*models.Document, error) {
	doc, err := r.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}

	filtered := doc.CollaboratorIDs[:0]
	for _, existing := range doc.CollaboratorIDs {
		if existing != userID {
			filtered = append(filtered, existing)
		}
	}
	doc.CollaboratorIDs = filtered

	err = r.db.WithContext(ctx).
		Model(&models.Document{}).
		Where("id = ?", id).
		Update("collaborator_ids", doc.CollaboratorIDs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to remove collaborator: %w", err)
	}

	return doc, nil
}

// Delete performs a soft delete on the document
// Learning: GORM sets DeletedAt instead of removing the row, which keeps
// version history recoverable.
func (r *DocumentRepositoryImpl) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&models.Document{}, "id = ?", id)

	if result.Error != nil {
		return fmt.Errorf("failed to delete document: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	return nil
}
