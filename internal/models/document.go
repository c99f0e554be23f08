package models

import (
	"time"

	"github.com/lib/pq"
	"github.com/segmentio/ksuid"
	"gorm.io/gorm"
)

// Document represents a collaboratively edited text document
// Learning: Using KSUID instead of UUID provides:
// - Time-based sorting (first 32 bits are timestamp)
// - Better database index performance (sequential, less B-tree fragmentation)
// - Smaller string representation (27 chars vs 36 for UUID)
type Document struct {
	ID              string         `json:"id" gorm:"type:char(27);primaryKey"`
	Title           string         `json:"title" gorm:"type:text;not null"`
	Content         string         `json:"content" gorm:"type:text;not null"`
	OwnerID         string         `json:"ownerId" gorm:"type:char(27);not null;index"`
	CollaboratorIDs pq.StringArray `json:"collaboratorIds" gorm:"type:text[]"`
	CurrentVersion  int            `json:"currentVersion" gorm:"not null;default:0"`
	LastModified    time.Time      `json:"lastModified"`
	CreatedAt       time.Time      `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt       time.Time      `json:"updatedAt" gorm:"autoUpdateTime"`
	DeletedAt       gorm.DeletedAt `json:"-" gorm:"index"` // Soft delete support

	// Versions are preloaded oldest-first (ascending idx)
	Versions []*Version `json:"versions,omitempty" gorm:"foreignKey:DocumentID"`
}

// BeforeCreate hook generates KSUID before inserting
func (d *Document) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = ksuid.New().String()
	}
	return nil
}

// IsOwner reports whether userID owns this document
func (d *Document) IsOwner(userID string) bool {
	return d.OwnerID == userID
}

// CanAccess reports whether userID is the owner or a collaborator.
// Owner-or-collaborator gates both read and write; only ownership gates
// delete and collaborator management.
func (d *Document) CanAccess(userID string) bool {
	if d.OwnerID == userID {
		return true
	}
	for _, id := range d.CollaboratorIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// LatestVersion returns the terminal snapshot, or nil if none exist.
// Versions must be loaded oldest-first.
func (d *Document) LatestVersion() *Version {
	if len(d.Versions) == 0 {
		return nil
	}
	return d.Versions[len(d.Versions)-1]
}

// Version is an immutable content snapshot.
// Entries are append-only; revert appends a new entry rather than
// rewinding the sequence.
type Version struct {
	ID                string    `json:"id" gorm:"type:char(27);primaryKey"`
	DocumentID        string    `json:"documentId" gorm:"type:char(27);not null;uniqueIndex:idx_doc_version"`
	Idx               int       `json:"idx" gorm:"not null;uniqueIndex:idx_doc_version"`
	Content           string    `json:"content" gorm:"type:text;not null"`
	AuthorID          string    `json:"authorId" gorm:"type:char(27);not null"`
	ChangeDescription string    `json:"changeDescription" gorm:"type:text"`
	CreatedAt         time.Time `json:"timestamp" gorm:"autoCreateTime"`
}

// BeforeCreate generates KSUID
func (v *Version) BeforeCreate(tx *gorm.DB) error {
	if v.ID == "" {
		v.ID = ksuid.New().String()
	}
	return nil
}

// DocumentCreate is the payload for creating a document
type DocumentCreate struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// DocumentUpdate is the payload for updating document metadata or content
type DocumentUpdate struct {
	Title   *string `json:"title,omitempty"`
	Content *string `json:"content,omitempty"`
}
