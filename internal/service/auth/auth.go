package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/nkiryanov/refarch/internal/apperrors"
	"github.com/nkiryanov/refarch/internal/models"
	"github.com/nkiryanov/refarch/internal/repository"
)

// Interface to create or compare user password hashes
type PasswordHasher interface {
	// Generate Hash from password
	Hash(password string) (string, error)

	// Compare known hashedPassword and user provided password
	// Must be protected against timing attacks
	Compare(hashedPassword string, password string) error
}

// Access token issuer and verifier
type TokenManager interface {
	Issue(ctx context.Context, user models.User) (string, error)
	Verify(token string) bool
}

// Refresh token store
type RefreshStore interface {
	Create(ctx context.Context, user models.User, ip string, userAgent string) (models.RefreshToken, error)
	FindValid(ctx context.Context, token string) (models.RefreshToken, error)
	Touch(ctx context.Context, token models.RefreshToken) error
	Revoke(ctx context.Context, tokenID uuid.UUID) error
}

type PasswordAuthSource interface {
	PasswordAuthEnabled(ctx context.Context) (bool, error)
}

type Config struct {
	// Hasher to use during login, BcryptHasher if not set
	Hasher PasswordHasher
}

// Client details stored with refresh token
type Client struct {
	IP        string
	UserAgent string
}

type LoginResult struct {
	Pair models.TokenPair
	User models.User
}

// Auth service
type AuthService struct {
	hasher   PasswordHasher
	tokens   TokenManager
	refresh  RefreshStore
	settings PasswordAuthSource
	userRepo repository.UserRepo
}

func NewService(cfg Config, tokens TokenManager, refresh RefreshStore, settings PasswordAuthSource, userRepo repository.UserRepo) (*AuthService, error) {
	if tokens == nil || refresh == nil || settings == nil || userRepo == nil {
		return nil, errors.New("auth service dependencies must not be nil")
	}

	// Set default bcrypt hasher if not user provided by user
	hasher := cfg.Hasher
	if hasher == nil {
		hasher = BcryptHasher{}
	}

	return &AuthService{
		hasher:   hasher,
		tokens:   tokens,
		refresh:  refresh,
		settings: settings,
		userRepo: userRepo,
	}, nil
}

// Login with email and password
// Returns apperrors.ErrInvalidCredentials for unknown email or wrong password
// Returns apperrors.ErrPasswordAuthDisabled if password login is turned off
func (s *AuthService) Login(ctx context.Context, email string, password string, client Client) (LoginResult, error) {
	enabled, err := s.settings.PasswordAuthEnabled(ctx)
	if err != nil {
		return LoginResult{}, fmt.Errorf("can't read password auth setting. Err: %w", err)
	}
	if !enabled {
		return LoginResult{}, apperrors.ErrPasswordAuthDisabled
	}

	user, err := s.userRepo.GetUserByEmail(ctx, email)
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		return LoginResult{}, apperrors.ErrInvalidCredentials
	case err != nil:
		return LoginResult{}, fmt.Errorf("can't fetch user. Err: %w", err)
	}

	err = s.hasher.Compare(user.HashedPassword, password)
	if err != nil {
		return LoginResult{}, apperrors.ErrInvalidCredentials
	}

	access, err := s.tokens.Issue(ctx, user)
	if err != nil {
		return LoginResult{}, fmt.Errorf("access token could not be issued. Err: %w", err)
	}

	refresh, err := s.refresh.Create(ctx, user, client.IP, client.UserAgent)
	if err != nil {
		return LoginResult{}, fmt.Errorf("refresh token could not be created. Err: %w", err)
	}

	return LoginResult{
		Pair: models.TokenPair{Access: access, Refresh: refresh.Token},
		User: user,
	}, nil
}

// Refresh issues new access token for valid refresh token
// Refresh token is not rotated, the same one is returned
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (models.TokenPair, error) {
	token, err := s.refresh.FindValid(ctx, refreshToken)
	if err != nil {
		return models.TokenPair{}, err
	}

	user, err := s.userRepo.GetUserByID(ctx, token.UserID)
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		return models.TokenPair{}, apperrors.ErrRefreshTokenNotFound
	case err != nil:
		return models.TokenPair{}, fmt.Errorf("can't fetch token owner. Err: %w", err)
	}

	access, err := s.tokens.Issue(ctx, user)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("access token could not be issued. Err: %w", err)
	}

	err = s.refresh.Touch(ctx, token)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("can't mark refresh token used. Err: %w", err)
	}

	return models.TokenPair{Access: access, Refresh: token.Token}, nil
}

// Logout revokes refresh token if it is valid
// Succeeds if access token verifies or any refresh token was supplied
// Otherwise returns apperrors.ErrInvalidToken
func (s *AuthService) Logout(ctx context.Context, accessToken string, refreshToken *string) error {
	accessOK := accessToken != "" && s.tokens.Verify(accessToken)

	if refreshToken != nil {
		token, err := s.refresh.FindValid(ctx, *refreshToken)
		switch {
		case err == nil:
			if err := s.refresh.Revoke(ctx, token.ID); err != nil {
				return fmt.Errorf("can't revoke refresh token. Err: %w", err)
			}
		case !errors.Is(err, apperrors.ErrRefreshTokenNotFound):
			return fmt.Errorf("can't fetch refresh token. Err: %w", err)
		}
		return nil
	}

	if !accessOK {
		return apperrors.ErrInvalidToken
	}
	return nil
}
