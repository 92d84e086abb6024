package models

import (
	"time"

	"github.com/google/uuid"
)

// User is an account that owns virtual phone numbers.
type User struct {
	BaseModel
	Email        string               `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string               `gorm:"not null" json:"-"`
	Numbers      []VirtualPhoneNumber `json:"-"`
}

// RefreshToken stores the hash of an issued refresh token so it can be
// rotated and revoked. The plaintext token is never persisted.
type RefreshToken struct {
	BaseModel
	UserID    uuid.UUID  `gorm:"type:uuid;index;not null"`
	TokenHash string     `gorm:"size:64;uniqueIndex;not null"`
	ExpiresAt time.Time  `gorm:"index;not null"`
	RevokedAt *time.Time `gorm:"index"`
}

// Active reports whether the token can still be exchanged at now.
func (t *RefreshToken) Active(now time.Time) bool {
	return t.RevokedAt == nil && now.Before(t.ExpiresAt)
}
