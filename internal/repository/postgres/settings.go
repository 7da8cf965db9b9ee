package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/nkiryanov/refarch/internal/apperrors"
	"github.com/nkiryanov/refarch/internal/models"
)

type SettingsRepo struct {
	DB DBTX
}

const settingsColumns = `id, session_duration_minutes, logo_url, website_name, global_comments_enabled, maintenance_mode,
	max_upload_size_mb, default_language, analytics_tracking_id, contact_email, meta_description, max_items_per_page,
	sso_auth_enabled, password_auth_enabled, created_at, updated_at`

const getSettings = `-- name: Get global settings
SELECT ` + settingsColumns + `
FROM global_settings
ORDER BY created_at
LIMIT 1
`

func (r *SettingsRepo) Get(ctx context.Context) (models.Settings, error) {
	rows, _ := r.DB.Query(ctx, getSettings)
	settings, err := pgx.CollectOneRow(rows, rowToSettings)

	switch {
	case err == nil:
		return settings, nil
	case errors.Is(err, pgx.ErrNoRows):
		return settings, fmt.Errorf("repo error: %w", apperrors.ErrSettingsNotFound)
	default:
		return settings, fmt.Errorf("db error: %w", err)
	}
}

const updateSettings = `-- name: Update global settings
UPDATE global_settings SET
	session_duration_minutes = $1, logo_url = $2, website_name = $3, global_comments_enabled = $4,
	maintenance_mode = $5, max_upload_size_mb = $6, default_language = $7, analytics_tracking_id = $8,
	contact_email = $9, meta_description = $10, max_items_per_page = $11, sso_auth_enabled = $12,
	password_auth_enabled = $13, updated_at = now()
WHERE id = (SELECT id FROM global_settings ORDER BY created_at LIMIT 1)
RETURNING ` + settingsColumns

const insertSettings = `-- name: Insert global settings
INSERT INTO global_settings (
	session_duration_minutes, logo_url, website_name, global_comments_enabled,
	maintenance_mode, max_upload_size_mb, default_language, analytics_tracking_id,
	contact_email, meta_description, max_items_per_page, sso_auth_enabled, password_auth_enabled
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
RETURNING ` + settingsColumns

func (r *SettingsRepo) Save(ctx context.Context, s models.Settings) (models.Settings, error) {
	args := []any{
		s.SessionDurationMinutes, s.LogoURL, s.WebsiteName, s.GlobalCommentsEnabled,
		s.MaintenanceMode, s.MaxUploadSizeMB, s.DefaultLanguage, s.AnalyticsTrackingID,
		s.ContactEmail, s.MetaDescription, s.MaxItemsPerPage, s.SSOAuthEnabled, s.PasswordAuthEnabled,
	}

	rows, _ := r.DB.Query(ctx, updateSettings, args...)
	saved, err := pgx.CollectOneRow(rows, rowToSettings)
	if errors.Is(err, pgx.ErrNoRows) {
		rows, _ = r.DB.Query(ctx, insertSettings, args...)
		saved, err = pgx.CollectOneRow(rows, rowToSettings)
	}
	if err != nil {
		return saved, fmt.Errorf("db error: %w", err)
	}

	return saved, nil
}

func rowToSettings(row pgx.CollectableRow) (models.Settings, error) {
	var s models.Settings
	err := row.Scan(
		&s.ID, &s.SessionDurationMinutes, &s.LogoURL, &s.WebsiteName, &s.GlobalCommentsEnabled, &s.MaintenanceMode,
		&s.MaxUploadSizeMB, &s.DefaultLanguage, &s.AnalyticsTrackingID, &s.ContactEmail, &s.MetaDescription, &s.MaxItemsPerPage,
		&s.SSOAuthEnabled, &s.PasswordAuthEnabled, &s.CreatedAt, &s.UpdatedAt,
	)
	return s, err
}
