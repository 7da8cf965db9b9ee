package apperrors

import (
	"errors"
)

var (
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrUserNotFound      = errors.New("user not found")
	ErrRoleNotFound      = errors.New("role not found")

	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrPasswordAuthDisabled = errors.New("password authentication is disabled")

	// Returned for missing, revoked and expired tokens alike
	ErrRefreshTokenNotFound = errors.New("refresh token not found")

	ErrSessionNotFound      = errors.New("session not found")
	ErrSessionAlreadyExists = errors.New("session with this token already exists")

	ErrSettingsNotFound = errors.New("global settings not found")

	ErrInvalidToken = errors.New("invalid token")
)
