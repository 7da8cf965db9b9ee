package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/refarch/internal/models"
)

// User repository interface
type UserRepo interface {
	// Create user with given roles
	// If user with the email exists already has to return apperrors.ErrUserAlreadyExists
	// If any role does not exist has to return apperrors.ErrRoleNotFound
	CreateUser(ctx context.Context, user models.User) (models.User, error)

	// Get user with roles by it's id or email
	// If user not found must return apperrors.ErrUserNotFound
	GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)

	CountUsers(ctx context.Context) (int64, error)
}

// RefreshToken repository interface
type RefreshTokenRepo interface {
	Create(ctx context.Context, token models.RefreshToken) (models.RefreshToken, error)

	// Return token only if it is valid and expires after 'now'
	// Otherwise must return apperrors.ErrRefreshTokenNotFound, whatever the reason is
	GetValid(ctx context.Context, tokenString string, now time.Time) (models.RefreshToken, error)

	// Set last used time. Expiration time stays unchanged
	Touch(ctx context.Context, tokenID uuid.UUID, at time.Time) error

	// Mark token invalid. Unknown id is not an error
	Revoke(ctx context.Context, tokenID uuid.UUID) error

	// Delete all valid tokens of the user
	DeleteValidByUser(ctx context.Context, userID uuid.UUID) (int64, error)

	// Delete tokens expired before 'now', valid or not
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)

	ListValidByUser(ctx context.Context, userID uuid.UUID, now time.Time) ([]models.RefreshToken, error)
}

// Session repository interface
// All getters return apperrors.ErrSessionNotFound when nothing matches
type SessionRepo interface {
	// If token or refresh token is taken has to return apperrors.ErrSessionAlreadyExists
	// If user does not exist has to return apperrors.ErrUserNotFound
	Create(ctx context.Context, session models.Session) (models.Session, error)

	GetByID(ctx context.Context, id uuid.UUID) (models.Session, error)
	GetByToken(ctx context.Context, token string) (models.Session, error)
	GetByRefreshToken(ctx context.Context, refreshToken string) (models.Session, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Session, error)

	Touch(ctx context.Context, id uuid.UUID, at time.Time) error

	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByUser(ctx context.Context, userID uuid.UUID) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Global settings repository interface
type SettingsRepo interface {
	// If no settings stored must return apperrors.ErrSettingsNotFound
	Get(ctx context.Context) (models.Settings, error)

	// Update the only settings record, create it if missing
	Save(ctx context.Context, settings models.Settings) (models.Settings, error)
}

type Storage interface {
	User() UserRepo
	Refresh() RefreshTokenRepo
	Session() SessionRepo
	Settings() SettingsRepo

	// Run function in transaction
	// Commit if function returns nil, rollback otherwise
	InTx(ctx context.Context, fn func(Storage) error) error
}
