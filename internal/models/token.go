package models

import (
	"time"

	"github.com/google/uuid"
)

type RefreshToken struct {
	ID        uuid.UUID
	Token     string
	UserID    uuid.UUID
	ExpiresAt time.Time
	LastUsed  time.Time
	IPAddress string
	UserAgent string
	IsValid   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Usable reports whether token may be exchanged at the moment
func (t RefreshToken) Usable(now time.Time) bool {
	return t.IsValid && now.Before(t.ExpiresAt)
}

// Token pair returned to the user on login or refresh
type TokenPair struct {
	Access  string
	Refresh string
}
