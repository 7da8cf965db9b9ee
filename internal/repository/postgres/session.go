package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nkiryanov/refarch/internal/apperrors"
	"github.com/nkiryanov/refarch/internal/models"
)

type SessionRepo struct {
	DB DBTX
}

const sessionColumns = `id, user_id, token, refresh_token, expires_at, last_activity_at, ip_address, user_agent, created_at, updated_at`

const createSession = `-- name: Create session
INSERT INTO user_sessions (id, user_id, token, refresh_token, expires_at, last_activity_at, ip_address, user_agent)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING ` + sessionColumns

func (r *SessionRepo) Create(ctx context.Context, s models.Session) (models.Session, error) {
	rows, _ := r.DB.Query(ctx, createSession,
		s.ID, s.UserID, s.Token, s.RefreshToken, s.ExpiresAt, s.LastActivityAt, s.IPAddress, s.UserAgent,
	)
	session, err := pgx.CollectOneRow(rows, rowToSession)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case pgerrcode.UniqueViolation:
				return session, apperrors.ErrSessionAlreadyExists
			case pgerrcode.ForeignKeyViolation:
				return session, apperrors.ErrUserNotFound
			}
		}
		return session, fmt.Errorf("db error: %w", err)
	}
	return session, nil
}

const getSessionByID = `-- name: Get session by id
SELECT ` + sessionColumns + ` FROM user_sessions WHERE id = $1`

func (r *SessionRepo) GetByID(ctx context.Context, id uuid.UUID) (models.Session, error) {
	rows, _ := r.DB.Query(ctx, getSessionByID, id)
	return collectSession(rows)
}

const getSessionByToken = `-- name: Get session by token
SELECT ` + sessionColumns + ` FROM user_sessions WHERE token = $1`

func (r *SessionRepo) GetByToken(ctx context.Context, token string) (models.Session, error) {
	rows, _ := r.DB.Query(ctx, getSessionByToken, token)
	return collectSession(rows)
}

const getSessionByRefreshToken = `-- name: Get session by refresh token
SELECT ` + sessionColumns + ` FROM user_sessions WHERE refresh_token = $1`

func (r *SessionRepo) GetByRefreshToken(ctx context.Context, refreshToken string) (models.Session, error) {
	rows, _ := r.DB.Query(ctx, getSessionByRefreshToken, refreshToken)
	return collectSession(rows)
}

const listSessionsByUser = `-- name: List sessions of user
SELECT ` + sessionColumns + ` FROM user_sessions
WHERE user_id = $1
ORDER BY last_activity_at DESC
`

func (r *SessionRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Session, error) {
	rows, _ := r.DB.Query(ctx, listSessionsByUser, userID)
	sessions, err := pgx.CollectRows(rows, rowToSession)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return sessions, nil
}

const touchSession = `-- name: Update session last activity
UPDATE user_sessions
SET last_activity_at = $2, updated_at = $2
WHERE id = $1
`

func (r *SessionRepo) Touch(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := r.DB.Exec(ctx, touchSession, id, at)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo error: %w", apperrors.ErrSessionNotFound)
	}
	return nil
}

const deleteSession = `-- name: Delete session
DELETE FROM user_sessions WHERE id = $1`

func (r *SessionRepo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.DB.Exec(ctx, deleteSession, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

const deleteSessionsByUser = `-- name: Delete sessions of user
DELETE FROM user_sessions WHERE user_id = $1`

func (r *SessionRepo) DeleteByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	tag, err := r.DB.Exec(ctx, deleteSessionsByUser, userID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return tag.RowsAffected(), nil
}

const deleteExpiredSessions = `-- name: Delete expired sessions
DELETE FROM user_sessions WHERE expires_at < $1`

func (r *SessionRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.DB.Exec(ctx, deleteExpiredSessions, now)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return tag.RowsAffected(), nil
}

func collectSession(rows pgx.Rows) (models.Session, error) {
	session, err := pgx.CollectOneRow(rows, rowToSession)

	switch {
	case err == nil:
		return session, nil
	case errors.Is(err, pgx.ErrNoRows):
		return session, fmt.Errorf("repo error: %w", apperrors.ErrSessionNotFound)
	default:
		return session, fmt.Errorf("db error: %w", err)
	}
}

func rowToSession(row pgx.CollectableRow) (models.Session, error) {
	var s models.Session
	err := row.Scan(&s.ID, &s.UserID, &s.Token, &s.RefreshToken, &s.ExpiresAt, &s.LastActivityAt, &s.IPAddress, &s.UserAgent, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}
