package models

import (
	"time"

	"github.com/google/uuid"
)

// Upper bound of session duration, one year
const MaxSessionDurationMinutes = 365 * 24 * 60

// Global settings managed by administrators
// Only one record exists
type Settings struct {
	ID                     uuid.UUID
	SessionDurationMinutes int
	LogoURL                string
	WebsiteName            string
	GlobalCommentsEnabled  bool
	MaintenanceMode        bool
	MaxUploadSizeMB        int
	DefaultLanguage        string
	AnalyticsTrackingID    string
	ContactEmail           string
	MetaDescription        string
	MaxItemsPerPage        int
	SSOAuthEnabled         bool
	PasswordAuthEnabled    bool
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

func (s Settings) SessionDuration() time.Duration {
	return time.Duration(s.SessionDurationMinutes) * time.Minute
}
