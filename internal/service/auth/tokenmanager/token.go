package tokenmanager

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nkiryanov/refarch/internal/models"
)

const (
	defaultIssuer  = "refarch-cms"
	defaultKeyID   = "auth-key"
	defaultKeyBits = 2048

	// Marks tokens issued on password login so SSO tokens are never accepted here
	TypePassword = "password"
)

var signingMethod = jwt.SigningMethodRS256

// Source of session duration, read on every issue
type SessionDurationSource interface {
	SessionDuration(ctx context.Context) (time.Duration, error)
}

type Claims struct {
	jwt.RegisteredClaims
	Email       string   `json:"email"`
	Username    string   `json:"username"`
	Authorities []string `json:"authorities"`
	Type        string   `json:"type"`
}

// Token manager with sensible default
type Config struct {
	// Value of 'iss' claim
	Issuer string

	// Value of 'kid' header
	KeyID string

	// RSA key size. Key is generated on New and lives until process exits
	KeyBits int

	// Clock, time.Now if not set
	Now func() time.Time
}

type TokenManager struct {
	issuer string
	keyID  string
	key    *rsa.PrivateKey
	now    func() time.Time

	durations SessionDurationSource
}

func New(cfg Config, durations SessionDurationSource) (*TokenManager, error) {
	if durations == nil {
		return nil, errors.New("session duration source must not be nil")
	}

	if cfg.Issuer == "" {
		cfg.Issuer = defaultIssuer
	}
	if cfg.KeyID == "" {
		cfg.KeyID = defaultKeyID
	}
	if cfg.KeyBits == 0 {
		cfg.KeyBits = defaultKeyBits
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	key, err := rsa.GenerateKey(rand.Reader, cfg.KeyBits)
	if err != nil {
		return nil, fmt.Errorf("error while generating signing key. Err: %w", err)
	}

	return &TokenManager{
		issuer:    cfg.Issuer,
		keyID:     cfg.KeyID,
		key:       key,
		now:       cfg.Now,
		durations: durations,
	}, nil
}

// Issue signed access token for the user
// Lifetime is the session duration configured at the moment of issue
func (m *TokenManager) Issue(ctx context.Context, user models.User) (string, error) {
	lifetime, err := m.durations.SessionDuration(ctx)
	if err != nil {
		return "", fmt.Errorf("error while reading session duration. Err: %w", err)
	}
	if lifetime <= 0 {
		return "", fmt.Errorf("session duration must be positive, got %s", lifetime)
	}

	now := m.now().Truncate(time.Second)
	token := jwt.NewWithClaims(signingMethod, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(lifetime)),
		},
		Email:       user.Email,
		Username:    user.Username,
		Authorities: models.Authorities(user.Roles),
		Type:        TypePassword,
	})
	token.Header["kid"] = m.keyID

	signed, err := token.SignedString(m.key)
	if err != nil {
		return "", fmt.Errorf("error while signing access token. Err: %w", err)
	}

	return signed, nil
}

// Verify reports whether token is signed by this process, not expired and issued on password path
// Any failure means false
func (m *TokenManager) Verify(token string) bool {
	claims, err := m.parse(token, jwt.WithExpirationRequired())
	if err != nil {
		return false
	}
	return claims.Type == TypePassword
}

// ParseClaims returns claims of token signed by this process
// Token type is not checked, call Verify first when it matters
func (m *TokenManager) ParseClaims(token string) (*Claims, error) {
	return m.parse(token)
}

// PublicKey returns key to verify issued tokens
func (m *TokenManager) PublicKey() *rsa.PublicKey {
	return &m.key.PublicKey
}

func (m *TokenManager) parse(token string, opts ...jwt.ParserOption) (*Claims, error) {
	claims := &Claims{}
	opts = append(opts,
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithTimeFunc(m.now),
	)

	_, err := jwt.ParseWithClaims(
		token,
		claims,
		func(t *jwt.Token) (any, error) {
			return &m.key.PublicKey, nil
		},
		opts...,
	)
	if err != nil {
		return nil, fmt.Errorf("error while parsing or validating token. Err: %w", err)
	}

	return claims, nil
}
