package model

import (
	"time"

	"github.com/google/uuid"
)

// RoleAdmin is the stored role that unlocks admin-only writes.
const (
	RoleAdmin  = "admin"
	RoleEditor = "editor"
)

// APIKey authenticates third-party callers. The plaintext key is
// "<Prefix>.<secret>"; only a bcrypt hash of the secret is stored.
type APIKey struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name       string    `gorm:"not null"`
	Prefix     string    `gorm:"uniqueIndex;not null"`
	KeyHash    string    `gorm:"not null"`
	IsActive   bool      `gorm:"not null"`
	ExpiresAt  *time.Time
	LastUsedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (APIKey) TableName() string { return "api_keys" }

// User is the local record for an identity-provider principal.
// UID is the provider subject; Role is "admin" | "editor".
type User struct {
	UID       string `gorm:"primaryKey"`
	Email     string `gorm:"index;not null"`
	Role      string `gorm:"type:varchar(20);not null"`
	IsActive  bool   `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (User) TableName() string { return "users" }

// Identity is what the identity provider vouches for after verifying a
// bearer token.
type Identity struct {
	UID   string
	Email string
}
