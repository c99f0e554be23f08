package auth

import (
	"testing"
	"time"

	"syncpad/internal/models"

	"github.com/go-playground/assert/v2"
)

func testUser() *models.User {
	return &models.User{
		ID:       "2PjT4eW0vQxGJ8K3mN5rA7bC9dE",
		Username: "alice",
		Email:    "alice@example.com",
	}
}

func TestIssueAndValidate(t *testing.T) {
	svc := NewTokenService("test-secret", time.Hour)

	token, err := svc.Issue(testUser())
	assert.Equal(t, err, nil)
	assert.NotEqual(t, token, "")

	info, err := svc.Validate(token)
	assert.Equal(t, err, nil)
	assert.Equal(t, info.ID, "2PjT4eW0vQxGJ8K3mN5rA7bC9dE")
	assert.Equal(t, info.Username, "alice")
	assert.Equal(t, info.Email, "alice@example.com")
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	token, err := NewTokenService("secret-a", time.Hour).Issue(testUser())
	assert.Equal(t, err, nil)

	_, err = NewTokenService("secret-b", time.Hour).Validate(token)
	assert.NotEqual(t, err, nil)
}

func TestValidateRejectsExpired(t *testing.T) {
	token, err := NewTokenService("test-secret", -time.Minute).Issue(testUser())
	assert.Equal(t, err, nil)

	_, err = NewTokenService("test-secret", -time.Minute).Validate(token)
	assert.NotEqual(t, err, nil)
}

func TestValidateRejectsGarbage(t *testing.T) {
	svc := NewTokenService("test-secret", time.Hour)
	_, err := svc.Validate("not.a.token")
	assert.NotEqual(t, err, nil)
}
