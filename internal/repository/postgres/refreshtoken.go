package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nkiryanov/refarch/internal/apperrors"
	"github.com/nkiryanov/refarch/internal/models"
)

type RefreshTokenRepo struct {
	DB DBTX
}

const refreshTokenColumns = `id, token, user_id, expires_at, last_used, ip_address, user_agent, is_valid, created_at, updated_at`

const createRefreshToken = `-- name: Create Refresh Token
INSERT INTO refresh_tokens (id, token, user_id, expires_at, last_used, ip_address, user_agent, is_valid)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING ` + refreshTokenColumns

func (r *RefreshTokenRepo) Create(ctx context.Context, t models.RefreshToken) (models.RefreshToken, error) {
	rows, _ := r.DB.Query(ctx, createRefreshToken,
		t.ID, t.Token, t.UserID, t.ExpiresAt, t.LastUsed, t.IPAddress, t.UserAgent, t.IsValid,
	)
	token, err := pgx.CollectOneRow(rows, rowToRefreshToken)
	if err != nil {
		return token, fmt.Errorf("db error: %w", err)
	}
	return token, nil
}

const getValidRefreshToken = `-- name: Get valid token by string
SELECT ` + refreshTokenColumns + `
FROM refresh_tokens
WHERE token = $1 AND is_valid AND expires_at > $2
`

func (r *RefreshTokenRepo) GetValid(ctx context.Context, tokenString string, now time.Time) (models.RefreshToken, error) {
	rows, _ := r.DB.Query(ctx, getValidRefreshToken, tokenString, now)
	token, err := pgx.CollectOneRow(rows, rowToRefreshToken)

	switch {
	case err == nil:
		return token, nil
	case errors.Is(err, pgx.ErrNoRows):
		return token, fmt.Errorf("repo error: %w", apperrors.ErrRefreshTokenNotFound)
	default:
		return token, fmt.Errorf("db error: %w", err)
	}
}

const touchRefreshToken = `-- name: Update last used
UPDATE refresh_tokens
SET last_used = $2, updated_at = $2
WHERE id = $1
`

func (r *RefreshTokenRepo) Touch(ctx context.Context, tokenID uuid.UUID, at time.Time) error {
	_, err := r.DB.Exec(ctx, touchRefreshToken, tokenID, at)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Never set is_valid back to true
const revokeRefreshToken = `-- name: Revoke token
UPDATE refresh_tokens
SET is_valid = false, updated_at = now()
WHERE id = $1 AND is_valid
`

func (r *RefreshTokenRepo) Revoke(ctx context.Context, tokenID uuid.UUID) error {
	_, err := r.DB.Exec(ctx, revokeRefreshToken, tokenID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

const deleteValidRefreshTokensByUser = `-- name: Delete valid tokens of user
DELETE FROM refresh_tokens
WHERE user_id = $1 AND is_valid
`

func (r *RefreshTokenRepo) DeleteValidByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	tag, err := r.DB.Exec(ctx, deleteValidRefreshTokensByUser, userID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return tag.RowsAffected(), nil
}

const deleteExpiredRefreshTokens = `-- name: Delete expired tokens
DELETE FROM refresh_tokens
WHERE expires_at < $1
`

func (r *RefreshTokenRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.DB.Exec(ctx, deleteExpiredRefreshTokens, now)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return tag.RowsAffected(), nil
}

const listValidRefreshTokensByUser = `-- name: List valid tokens of user
SELECT ` + refreshTokenColumns + `
FROM refresh_tokens
WHERE user_id = $1 AND is_valid AND expires_at > $2
ORDER BY created_at DESC
`

func (r *RefreshTokenRepo) ListValidByUser(ctx context.Context, userID uuid.UUID, now time.Time) ([]models.RefreshToken, error) {
	rows, _ := r.DB.Query(ctx, listValidRefreshTokensByUser, userID, now)
	tokens, err := pgx.CollectRows(rows, rowToRefreshToken)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return tokens, nil
}

func rowToRefreshToken(row pgx.CollectableRow) (models.RefreshToken, error) {
	var t models.RefreshToken
	err := row.Scan(&t.ID, &t.Token, &t.UserID, &t.ExpiresAt, &t.LastUsed, &t.IPAddress, &t.UserAgent, &t.IsValid, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}
