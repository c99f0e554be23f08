package models

import (
	"time"

	"github.com/segmentio/ksuid"
	"gorm.io/gorm"
)

// User is an account in the auth scaffolding. The password hash never
// leaves the server (json:"-").
type User struct {
	ID           string    `json:"id" gorm:"type:char(27);primaryKey"`
	Username     string    `json:"username" gorm:"type:text;not null;uniqueIndex"`
	Email        string    `json:"email" gorm:"type:text;not null;uniqueIndex"`
	PasswordHash string    `json:"-" gorm:"type:text;not null"`
	CreatedAt    time.Time `json:"createdAt" gorm:"autoCreateTime"`
}

// BeforeCreate generates KSUID
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = ksuid.New().String()
	}
	return nil
}

// UserInfo is the identity extracted from a validated bearer token.
// Session identity is fixed for the connection lifetime.
type UserInfo struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}
