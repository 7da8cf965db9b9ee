package handlers

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/nkiryanov/refarch/internal/apperrors"
	"github.com/nkiryanov/refarch/internal/handlers/render"
	"github.com/nkiryanov/refarch/internal/logger"
	"github.com/nkiryanov/refarch/internal/metrics"
	"github.com/nkiryanov/refarch/internal/service/auth"
	"github.com/nkiryanov/refarch/internal/service/federated"
)

type loginRecorder interface {
	LoginAttempt(outcome string)
}

func handleLogin(authService authService, rec loginRecorder, clientIP func(*http.Request) string, l logger.Logger) http.Handler {
	type request struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	type userResponse struct {
		ID          uuid.UUID `json:"id"`
		Username    string    `json:"username"`
		FirstName   string    `json:"firstName"`
		LastName    string    `json:"lastName"`
		Title       string    `json:"title"`
		Affiliation string    `json:"affiliation"`
		Thumbnail   string    `json:"thumbnail"`
	}

	type response struct {
		AccessToken  string       `json:"accessToken"`
		RefreshToken string       `json:"refreshToken"`
		User         userResponse `json:"user"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		res, err := authService.Login(r.Context(), data.Email, data.Password, auth.Client{
			IP:        clientIP(r),
			UserAgent: r.UserAgent(),
		})

		switch {
		case err == nil:
			rec.LoginAttempt(metrics.LoginSuccess)
			l.Debug("User authenticated", "username", res.User.Username)
			u := res.User
			render.JSON(w, response{
				AccessToken:  res.Pair.Access,
				RefreshToken: res.Pair.Refresh,
				User: userResponse{
					ID:          u.ID,
					Username:    u.Username,
					FirstName:   u.FirstName,
					LastName:    u.LastName,
					Title:       u.Title,
					Affiliation: u.Affiliation,
					Thumbnail:   u.Thumbnail,
				},
			})
		case errors.Is(err, apperrors.ErrInvalidCredentials), errors.Is(err, apperrors.ErrPasswordAuthDisabled):
			rec.LoginAttempt(metrics.LoginInvalid)
			l.Debug("Invalid credentials", "email", data.Email, "error", err)
			render.Error(w, "Invalid credentials", http.StatusUnauthorized)
		default:
			rec.LoginAttempt(metrics.LoginError)
			l.Error("Error during login", "email", data.Email, "error", err)
			render.Error(w, "An error occurred during login", http.StatusInternalServerError)
		}
	})
}

func handleRefresh(authService authService, l logger.Logger) http.Handler {
	type request struct {
		RefreshToken string `json:"refreshToken"`
	}

	type response struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		pair, err := authService.Refresh(r.Context(), data.RefreshToken)
		if err != nil {
			if !errors.Is(err, apperrors.ErrRefreshTokenNotFound) {
				l.Error("Failed to refresh token", "error", err)
			}
			render.Error(w, "Invalid refresh token", http.StatusUnauthorized)
			return
		}

		render.JSON(w, response{AccessToken: pair.Access, RefreshToken: pair.Refresh})
	})
}

func handleLogout(authService authService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		access := federated.BearerToken(r.Header.Get("Authorization"))
		var refresh *string
		if query := r.URL.Query(); query.Has("refreshToken") {
			value := query.Get("refreshToken")
			refresh = &value
		}

		err := authService.Logout(r.Context(), access, refresh)

		switch {
		case err == nil:
			render.Message(w, "Logged out successfully", http.StatusOK)
		case errors.Is(err, apperrors.ErrInvalidToken):
			render.Error(w, "Invalid tokens", http.StatusUnauthorized)
		default:
			l.Error("Failed to logout", "error", err)
			render.Error(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}
