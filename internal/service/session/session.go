package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/refarch/internal/models"
	"github.com/nkiryanov/refarch/internal/repository"
)

// Service keeps session records
// Sessions are independent of refresh tokens and access tokens
type Service struct {
	repo repository.SessionRepo
	now  func() time.Time
}

func NewService(repo repository.SessionRepo, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{repo: repo, now: now}
}

func (s *Service) FindByID(ctx context.Context, id uuid.UUID) (models.Session, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) FindByToken(ctx context.Context, token string) (models.Session, error) {
	return s.repo.GetByToken(ctx, token)
}

func (s *Service) FindByRefreshToken(ctx context.Context, refreshToken string) (models.Session, error) {
	return s.repo.GetByRefreshToken(ctx, refreshToken)
}

func (s *Service) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Session, error) {
	return s.repo.ListByUser(ctx, userID)
}

// Create session record
// ID and last activity are filled when missing
func (s *Service) Create(ctx context.Context, session models.Session) (models.Session, error) {
	switch {
	case session.UserID == uuid.Nil:
		return models.Session{}, errors.New("session user must be set")
	case session.Token == "" || session.RefreshToken == "":
		return models.Session{}, errors.New("session token and refresh token must be set")
	}

	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	if session.LastActivityAt.IsZero() {
		session.LastActivityAt = s.now()
	}

	created, err := s.repo.Create(ctx, session)
	if err != nil {
		return created, fmt.Errorf("error while creating session. Err: %w", err)
	}
	return created, nil
}

// UpdateLastActivity sets last activity to now
// Returns apperrors.ErrSessionNotFound for unknown session
func (s *Service) UpdateLastActivity(ctx context.Context, id uuid.UUID) error {
	return s.repo.Touch(ctx, id, s.now())
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) DeleteAllForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.repo.DeleteByUser(ctx, userID)
}

// SweepExpired deletes sessions expired before now
func (s *Service) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	return s.repo.DeleteExpired(ctx, now)
}
