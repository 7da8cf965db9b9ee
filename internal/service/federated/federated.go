package federated

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/google/uuid"

	"github.com/nkiryanov/refarch/internal/models"
)

var (
	ErrMissingToken  = errors.New("bearer token is missing")
	ErrNotConfigured = errors.New("identity provider is not configured")
	ErrLocalToken    = errors.New("password token is not accepted as federated credential")
)

// Token verifier, *oidc.IDTokenVerifier in production
type tokenVerifier interface {
	Verify(ctx context.Context, rawIDToken string) (*oidc.IDToken, error)
}

// Claims read from identity provider token
type idpClaims struct {
	Email             string   `json:"email"`
	PreferredUsername string   `json:"preferred_username"`
	Roles             []string `json:"roles"`
	Authorities       []string `json:"authorities"`
	RealmAccess       struct {
		Roles []string `json:"roles"`
	} `json:"realm_access"`
	Type string `json:"type"`
}

// Authenticator verifies bearer tokens issued by external identity provider
type Authenticator struct {
	verifier tokenVerifier
}

func NewAuthenticator(verifier tokenVerifier) *Authenticator {
	return &Authenticator{verifier: verifier}
}

// Discover provider configuration and build authenticator for it
func Discover(ctx context.Context, issuer string, clientID string) (*Authenticator, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC endpoints: %w", err)
	}

	return NewAuthenticator(provider.Verifier(&oidc.Config{ClientID: clientID})), nil
}

func (a *Authenticator) Authenticate(r *http.Request) (models.Principal, error) {
	raw := BearerToken(r.Header.Get("Authorization"))
	if raw == "" {
		return models.Principal{}, ErrMissingToken
	}

	token, err := a.verifier.Verify(r.Context(), raw)
	if err != nil {
		return models.Principal{}, fmt.Errorf("failed to verify token: %w", err)
	}

	var claims idpClaims
	if err := token.Claims(&claims); err != nil {
		return models.Principal{}, fmt.Errorf("failed to read token claims: %w", err)
	}
	if claims.Type == "password" {
		return models.Principal{}, ErrLocalToken
	}

	username := claims.PreferredUsername
	if username == "" {
		username = claims.Email
	}
	if username == "" {
		username = token.Subject
	}

	roles := append(append(append([]string{}, claims.Authorities...), claims.Roles...), claims.RealmAccess.Roles...)

	p := models.Principal{
		Username:    username,
		Email:       claims.Email,
		Authorities: models.Authorities(roles),
	}

	// Identity provider may share user ids with local users
	if id, err := uuid.Parse(token.Subject); err == nil {
		p.UserID = id
	}

	return p, nil
}

// Disabled rejects every request, used when no identity provider is configured
type Disabled struct{}

func (Disabled) Authenticate(*http.Request) (models.Principal, error) {
	return models.Principal{}, ErrNotConfigured
}

// BearerToken extracts token from Authorization header value
// Empty string when header is not a bearer one
func BearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
