package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/refarch/internal/apperrors"
	"github.com/nkiryanov/refarch/internal/handlers/render"
	"github.com/nkiryanov/refarch/internal/logger"
	"github.com/nkiryanov/refarch/internal/models"
)

type settingsResponse struct {
	ID                     uuid.UUID `json:"id"`
	SessionDurationMinutes int       `json:"sessionDurationMinutes"`
	LogoURL                string    `json:"logoUrl"`
	WebsiteName            string    `json:"websiteName"`
	GlobalCommentsEnabled  bool      `json:"globalCommentsEnabled"`
	MaintenanceMode        bool      `json:"maintenanceMode"`
	MaxUploadSizeMB        int       `json:"maxUploadSizeMb"`
	DefaultLanguage        string    `json:"defaultLanguage"`
	AnalyticsTrackingID    string    `json:"analyticsTrackingId"`
	ContactEmail           string    `json:"contactEmail"`
	MetaDescription        string    `json:"metaDescription"`
	MaxItemsPerPage        int       `json:"maxItemsPerPage"`
	SSOAuthEnabled         bool      `json:"ssoAuthEnabled"`
	PasswordAuthEnabled    bool      `json:"passwordAuthEnabled"`
	CreatedAt              time.Time `json:"createdAt"`
	UpdatedAt              time.Time `json:"updatedAt"`
}

func newSettingsResponse(s models.Settings) settingsResponse {
	return settingsResponse{
		ID:                     s.ID,
		SessionDurationMinutes: s.SessionDurationMinutes,
		LogoURL:                s.LogoURL,
		WebsiteName:            s.WebsiteName,
		GlobalCommentsEnabled:  s.GlobalCommentsEnabled,
		MaintenanceMode:        s.MaintenanceMode,
		MaxUploadSizeMB:        s.MaxUploadSizeMB,
		DefaultLanguage:        s.DefaultLanguage,
		AnalyticsTrackingID:    s.AnalyticsTrackingID,
		ContactEmail:           s.ContactEmail,
		MetaDescription:        s.MetaDescription,
		MaxItemsPerPage:        s.MaxItemsPerPage,
		SSOAuthEnabled:         s.SSOAuthEnabled,
		PasswordAuthEnabled:    s.PasswordAuthEnabled,
		CreatedAt:              s.CreatedAt,
		UpdatedAt:              s.UpdatedAt,
	}
}

func handleGetSettings(settingsService settingsService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, err := settingsService.Get(r.Context())

		switch {
		case err == nil:
			render.JSON(w, newSettingsResponse(s))
		case errors.Is(err, apperrors.ErrSettingsNotFound):
			render.Error(w, "Settings not found", http.StatusNotFound)
		default:
			l.Error("Failed to get settings", "error", err)
			render.Error(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleUpdateSettings(settingsService settingsService, l logger.Logger) http.Handler {
	// Pointers let 'required' tell false and zero from missing values
	type request struct {
		SessionDurationMinutes *int   `json:"sessionDurationMinutes" validate:"required,gt=0,lte=525600"`
		LogoURL                string `json:"logoUrl"`
		WebsiteName            string `json:"websiteName" validate:"required"`
		GlobalCommentsEnabled  *bool  `json:"globalCommentsEnabled" validate:"required"`
		MaintenanceMode        *bool  `json:"maintenanceMode" validate:"required"`
		MaxUploadSizeMB        *int   `json:"maxUploadSizeMb" validate:"required,gt=0"`
		DefaultLanguage        string `json:"defaultLanguage" validate:"required"`
		AnalyticsTrackingID    string `json:"analyticsTrackingId"`
		ContactEmail           string `json:"contactEmail" validate:"omitempty,email"`
		MetaDescription        string `json:"metaDescription"`
		MaxItemsPerPage        *int   `json:"maxItemsPerPage" validate:"required,gt=0"`
		SSOAuthEnabled         *bool  `json:"ssoAuthEnabled" validate:"required"`
		PasswordAuthEnabled    *bool  `json:"passwordAuthEnabled" validate:"required"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		saved, err := settingsService.Update(r.Context(), models.Settings{
			SessionDurationMinutes: *data.SessionDurationMinutes,
			LogoURL:                data.LogoURL,
			WebsiteName:            data.WebsiteName,
			GlobalCommentsEnabled:  *data.GlobalCommentsEnabled,
			MaintenanceMode:        *data.MaintenanceMode,
			MaxUploadSizeMB:        *data.MaxUploadSizeMB,
			DefaultLanguage:        data.DefaultLanguage,
			AnalyticsTrackingID:    data.AnalyticsTrackingID,
			ContactEmail:           data.ContactEmail,
			MetaDescription:        data.MetaDescription,
			MaxItemsPerPage:        *data.MaxItemsPerPage,
			SSOAuthEnabled:         *data.SSOAuthEnabled,
			PasswordAuthEnabled:    *data.PasswordAuthEnabled,
		})
		if err != nil {
			l.Error("Failed to update settings", "error", err)
			render.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		l.Info("Settings updated", "sso_enabled", saved.SSOAuthEnabled, "session_minutes", saved.SessionDurationMinutes)
		render.JSON(w, newSettingsResponse(saved))
	})
}
