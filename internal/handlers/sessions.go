package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/refarch/internal/apperrors"
	"github.com/nkiryanov/refarch/internal/handlers/render"
	"github.com/nkiryanov/refarch/internal/handlers/userctx"
	"github.com/nkiryanov/refarch/internal/logger"
	"github.com/nkiryanov/refarch/internal/models"
)

type sessionResponse struct {
	ID             uuid.UUID `json:"id"`
	UserID         uuid.UUID `json:"userId"`
	Token          string    `json:"token"`
	RefreshToken   string    `json:"refreshToken"`
	ExpiresAt      time.Time `json:"expiresAt"`
	LastActivityAt time.Time `json:"lastActivityAt"`
	IPAddress      string    `json:"ipAddress"`
	UserAgent      string    `json:"userAgent"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

func newSessionResponse(s models.Session) sessionResponse {
	return sessionResponse{
		ID:             s.ID,
		UserID:         s.UserID,
		Token:          s.Token,
		RefreshToken:   s.RefreshToken,
		ExpiresAt:      s.ExpiresAt,
		LastActivityAt: s.LastActivityAt,
		IPAddress:      s.IPAddress,
		UserAgent:      s.UserAgent,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}
}

// Admin may act on any user sessions, others only on their own
func owns(p models.Principal, owner uuid.UUID) bool {
	return p.HasRole(models.RoleAdmin) || (p.UserID != uuid.Nil && p.UserID == owner)
}

// Writes 401 or 403 and returns false when not allowed
func allowedFor(w http.ResponseWriter, r *http.Request, owner uuid.UUID) bool {
	p, ok := principal(w, r)
	if !ok {
		return false
	}
	if owns(p, owner) {
		return true
	}
	render.Error(w, "Forbidden", http.StatusForbidden)
	return false
}

// Writes 401 and returns false when request has no principal
func principal(w http.ResponseWriter, r *http.Request) (models.Principal, bool) {
	p, ok := userctx.FromContext(r.Context())
	if !ok {
		render.Error(w, "Unauthorized", http.StatusUnauthorized)
	}
	return p, ok
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		render.Error(w, "Invalid "+name, http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

// Renders found session if principal may see it
// Sessions of other users are reported as missing
func renderSession(w http.ResponseWriter, r *http.Request, l logger.Logger, s models.Session, err error) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	switch {
	case err == nil && owns(p, s.UserID):
		render.JSON(w, newSessionResponse(s))
	case err == nil, errors.Is(err, apperrors.ErrSessionNotFound):
		render.Error(w, "Session not found", http.StatusNotFound)
	default:
		l.Error("Failed to get session", "error", err)
		render.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func handleGetSession(sessionService sessionService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "id")
		if !ok {
			return
		}
		s, err := sessionService.FindByID(r.Context(), id)
		renderSession(w, r, l, s, err)
	})
}

func handleGetSessionByToken(sessionService sessionService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, err := sessionService.FindByToken(r.Context(), r.PathValue("token"))
		renderSession(w, r, l, s, err)
	})
}

func handleGetSessionByRefreshToken(sessionService sessionService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, err := sessionService.FindByRefreshToken(r.Context(), r.PathValue("refreshToken"))
		renderSession(w, r, l, s, err)
	})
}

func handleListUserSessions(sessionService sessionService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := pathUUID(w, r, "userId")
		if !ok || !allowedFor(w, r, userID) {
			return
		}

		sessions, err := sessionService.ListByUser(r.Context(), userID)
		if err != nil {
			l.Error("Failed to list sessions", "user_id", userID, "error", err)
			render.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		response := make([]sessionResponse, 0, len(sessions))
		for _, s := range sessions {
			response = append(response, newSessionResponse(s))
		}
		render.JSON(w, response)
	})
}

func handleCreateSession(sessionService sessionService, l logger.Logger) http.Handler {
	type request struct {
		UserID       uuid.UUID `json:"userId" validate:"required"`
		Token        string    `json:"token" validate:"required,max=512"`
		RefreshToken string    `json:"refreshToken" validate:"required,max=512"`
		ExpiresAt    time.Time `json:"expiresAt" validate:"required"`
		IPAddress    string    `json:"ipAddress" validate:"max=45"`
		UserAgent    string    `json:"userAgent"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}
		if !allowedFor(w, r, data.UserID) {
			return
		}

		s, err := sessionService.Create(r.Context(), models.Session{
			UserID:       data.UserID,
			Token:        data.Token,
			RefreshToken: data.RefreshToken,
			ExpiresAt:    data.ExpiresAt,
			IPAddress:    data.IPAddress,
			UserAgent:    data.UserAgent,
		})

		switch {
		case err == nil:
			render.JSONWithStatus(w, newSessionResponse(s), http.StatusCreated)
		case errors.Is(err, apperrors.ErrSessionAlreadyExists):
			render.Error(w, "Session already exists", http.StatusConflict)
		case errors.Is(err, apperrors.ErrUserNotFound):
			render.Error(w, "User not found", http.StatusNotFound)
		default:
			l.Error("Failed to create session", "user_id", data.UserID, "error", err)
			render.Error(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

// Runs action on session by path id when principal may act on it
// Unknown session and session of other user give notFound status
func handleSessionAction(
	sessionService sessionService,
	l logger.Logger,
	notFound int,
	action func(ctx context.Context, id uuid.UUID) error,
) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "id")
		if !ok {
			return
		}
		p, ok := principal(w, r)
		if !ok {
			return
		}

		s, err := sessionService.FindByID(r.Context(), id)
		switch {
		case errors.Is(err, apperrors.ErrSessionNotFound), err == nil && !owns(p, s.UserID):
			if notFound == http.StatusNoContent {
				render.NoContent(w)
				return
			}
			render.Error(w, "Session not found", notFound)
			return
		case err != nil:
			l.Error("Failed to get session", "session_id", id, "error", err)
			render.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		err = action(r.Context(), id)
		switch {
		case err == nil:
			render.NoContent(w)
		case errors.Is(err, apperrors.ErrSessionNotFound):
			render.Error(w, "Session not found", http.StatusNotFound)
		default:
			l.Error("Session action failed", "session_id", id, "error", err)
			render.Error(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleSessionActivity(sessionService sessionService, l logger.Logger) http.Handler {
	return handleSessionAction(sessionService, l, http.StatusNotFound, sessionService.UpdateLastActivity)
}

// Deleting unknown session is not an error
func handleDeleteSession(sessionService sessionService, l logger.Logger) http.Handler {
	return handleSessionAction(sessionService, l, http.StatusNoContent, sessionService.Delete)
}

func handleDeleteUserSessions(sessionService sessionService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := pathUUID(w, r, "userId")
		if !ok || !allowedFor(w, r, userID) {
			return
		}

		_, err := sessionService.DeleteAllForUser(r.Context(), userID)
		if err != nil {
			l.Error("Failed to delete sessions", "user_id", userID, "error", err)
			render.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		render.NoContent(w)
	})
}

// Manual run of expired sessions sweep
func handleSweepSessions(sessionService sessionService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		deleted, err := sessionService.SweepExpired(r.Context(), time.Now())
		if err != nil {
			l.Error("Failed to delete expired sessions", "error", err)
			render.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		l.Info("Expired sessions deleted", "deleted", deleted)
		render.NoContent(w)
	})
}
