package api

import (
	"context"

	"syncpad/internal/models"
)

/*
LEARNING: CONSUMER-DRIVEN INTERFACES (Go Idiom)

This package is the CONSUMER of the sync engine and auth service, so the
interfaces it depends on are declared here, scoped to exactly the methods
handlers call. Implementations live in their own packages and never import
this one.
*/

// SyncEngine is what the HTTP surface needs from the collaboration engine
type SyncEngine interface {
	Revert(ctx context.Context, user *models.UserInfo, documentID string, index int) (*models.Document, error)
	RefreshShadow(ctx context.Context, user *models.UserInfo, documentID, content string)
}

// TokenIssuer is what the auth endpoints need from the token service
type TokenIssuer interface {
	Issue(user *models.User) (string, error)
	Validate(token string) (*models.UserInfo, error)
}
