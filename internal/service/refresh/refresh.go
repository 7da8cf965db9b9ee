package refresh

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/refarch/internal/models"
	"github.com/nkiryanov/refarch/internal/repository"
)

const minutesPerDay = 24 * 60

type SessionDurationSource interface {
	SessionDuration(ctx context.Context) (time.Duration, error)
}

type Config struct {
	// Lower bound of refresh token lifetime
	// Zero keeps lifetime as whole days of session duration, so durations under a day give expired tokens
	MinTTL time.Duration

	// Clock, time.Now if not set
	Now func() time.Time
}

// Store issues and tracks refresh tokens
type Store struct {
	repo      repository.RefreshTokenRepo
	durations SessionDurationSource
	minTTL    time.Duration
	now       func() time.Time
}

func NewStore(cfg Config, repo repository.RefreshTokenRepo, durations SessionDurationSource) (*Store, error) {
	if repo == nil || durations == nil {
		return nil, errors.New("repo and duration source must not be nil")
	}
	if cfg.MinTTL < 0 {
		return nil, errors.New("min ttl must not be negative")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Store{
		repo:      repo,
		durations: durations,
		minTTL:    cfg.MinTTL,
		now:       cfg.Now,
	}, nil
}

// Lifetime returns refresh token lifetime for the session duration
// Session duration is converted to whole days, remainder is dropped
func (s *Store) Lifetime(sessionDuration time.Duration) time.Duration {
	days := int(sessionDuration/time.Minute) / minutesPerDay
	lifetime := time.Duration(days) * 24 * time.Hour

	return max(lifetime, s.minTTL)
}

// Create new valid token for the user
func (s *Store) Create(ctx context.Context, user models.User, ip string, userAgent string) (models.RefreshToken, error) {
	sessionDuration, err := s.durations.SessionDuration(ctx)
	if err != nil {
		return models.RefreshToken{}, fmt.Errorf("error while reading session duration. Err: %w", err)
	}

	now := s.now()
	token, err := s.repo.Create(ctx, models.RefreshToken{
		ID:        uuid.New(),
		Token:     uuid.NewString(),
		UserID:    user.ID,
		ExpiresAt: now.Add(s.Lifetime(sessionDuration)),
		LastUsed:  now,
		IPAddress: truncate(ip, 45),
		UserAgent: userAgent,
		IsValid:   true,
	})
	if err != nil {
		return token, fmt.Errorf("error while saving refresh token. Err: %w", err)
	}

	return token, nil
}

// FindValid returns token if it is valid and not expired
// Otherwise returns apperrors.ErrRefreshTokenNotFound
func (s *Store) FindValid(ctx context.Context, token string) (models.RefreshToken, error) {
	return s.repo.GetValid(ctx, token, s.now())
}

// Touch marks token as used now
func (s *Store) Touch(ctx context.Context, token models.RefreshToken) error {
	return s.repo.Touch(ctx, token.ID, s.now())
}

func (s *Store) Revoke(ctx context.Context, tokenID uuid.UUID) error {
	return s.repo.Revoke(ctx, tokenID)
}

// RevokeAllForUser deletes every valid token of the user
func (s *Store) RevokeAllForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.repo.DeleteValidByUser(ctx, userID)
}

// SweepExpired deletes tokens expired before now
func (s *Store) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	return s.repo.DeleteExpired(ctx, now)
}

func (s *Store) ActiveForUser(ctx context.Context, userID uuid.UUID) ([]models.RefreshToken, error) {
	return s.repo.ListValidByUser(ctx, userID, s.now())
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
