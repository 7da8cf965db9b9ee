package models

import (
	"time"

	"github.com/google/uuid"
)

type Session struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	Token          string
	RefreshToken   string
	ExpiresAt      time.Time
	LastActivityAt time.Time
	IPAddress      string
	UserAgent      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
