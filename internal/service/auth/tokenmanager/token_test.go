package tokenmanager

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/refarch/internal/models"
)

// Allow to use a function as session duration source
type durationFunc func(ctx context.Context) (time.Duration, error)

func (f durationFunc) SessionDuration(ctx context.Context) (time.Duration, error) {
	return f(ctx)
}

func fixedDuration(d time.Duration) durationFunc {
	return func(context.Context) (time.Duration, error) { return d, nil }
}

// Clock moved by tests
type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time { return c.now }

func Test_TokenManager(t *testing.T) {
	t.Parallel()

	testUser := models.User{
		ID:       uuid.New(),
		Username: "admin",
		Email:    "admin@example.com",
		Roles:    []models.Role{models.RoleAdmin, "USER", models.RoleUser},
	}

	newManager := func(t *testing.T, durations SessionDurationSource) (*TokenManager, *clock) {
		c := &clock{now: time.Now()}
		m, err := New(Config{Now: c.Now}, durations)
		require.NoError(t, err, "token manager should be created without errors")
		return m, c
	}

	t.Run("new defaults", func(t *testing.T) {
		m, err := New(Config{}, fixedDuration(time.Minute))
		require.NoError(t, err, "token manager should be created without errors")

		require.Equal(t, "refarch-cms", m.issuer)
		require.Equal(t, "auth-key", m.keyID)
		require.Equal(t, 2048, m.key.N.BitLen(), "default key size should be 2048 bits")
	})

	t.Run("new without duration source fails", func(t *testing.T) {
		_, err := New(Config{}, nil)

		require.Error(t, err)
	})

	t.Run("key generated per manager", func(t *testing.T) {
		m1, _ := newManager(t, fixedDuration(time.Minute))
		m2, _ := newManager(t, fixedDuration(time.Minute))

		token, err := m1.Issue(t.Context(), testUser)
		require.NoError(t, err)

		require.True(t, m1.Verify(token))
		require.False(t, m2.Verify(token), "token signed by other process key must be rejected")
	})

	t.Run("issue", func(t *testing.T) {
		t.Run("claims", func(t *testing.T) {
			m, c := newManager(t, fixedDuration(30*time.Minute))

			token, err := m.Issue(t.Context(), testUser)
			require.NoError(t, err)

			claims, err := m.ParseClaims(token)
			require.NoError(t, err)
			assert.Equal(t, testUser.ID.String(), claims.Subject)
			assert.Equal(t, "refarch-cms", claims.Issuer)
			assert.Equal(t, "admin@example.com", claims.Email)
			assert.Equal(t, "admin", claims.Username)
			assert.Equal(t, []string{"ROLE_ADMIN", "ROLE_USER"}, claims.Authorities, "roles should be prefixed and deduplicated")
			assert.Equal(t, "password", claims.Type)
			assert.WithinDuration(t, c.now, claims.IssuedAt.Time, time.Second)
			assert.WithinDuration(t, c.now.Add(30*time.Minute), claims.ExpiresAt.Time, time.Second)
		})

		t.Run("header", func(t *testing.T) {
			m, _ := newManager(t, fixedDuration(time.Minute))

			token, err := m.Issue(t.Context(), testUser)
			require.NoError(t, err)

			parsed, _, err := jwt.NewParser().ParseUnverified(token, &Claims{})
			require.NoError(t, err)
			assert.Equal(t, "RS256", parsed.Header["alg"])
			assert.Equal(t, "auth-key", parsed.Header["kid"])
		})

		t.Run("duration read on every issue", func(t *testing.T) {
			duration := 10 * time.Minute
			m, c := newManager(t, durationFunc(func(context.Context) (time.Duration, error) {
				return duration, nil
			}))

			first, err := m.Issue(t.Context(), testUser)
			require.NoError(t, err)
			duration = 2 * time.Hour
			second, err := m.Issue(t.Context(), testUser)
			require.NoError(t, err)

			firstClaims, err := m.ParseClaims(first)
			require.NoError(t, err)
			secondClaims, err := m.ParseClaims(second)
			require.NoError(t, err)
			assert.WithinDuration(t, c.now.Add(10*time.Minute), firstClaims.ExpiresAt.Time, time.Second)
			assert.WithinDuration(t, c.now.Add(2*time.Hour), secondClaims.ExpiresAt.Time, time.Second)
		})

		t.Run("non positive duration", func(t *testing.T) {
			minutes := 200_000_000
			overflowed := time.Duration(minutes) * time.Minute
			for _, d := range []time.Duration{0, -time.Minute, overflowed} {
				m, _ := newManager(t, fixedDuration(d))

				_, err := m.Issue(t.Context(), testUser)

				require.Errorf(t, err, "token with %s lifetime must not be issued", d)
			}
		})

		t.Run("duration source error", func(t *testing.T) {
			m, _ := newManager(t, durationFunc(func(context.Context) (time.Duration, error) {
				return 0, errors.New("settings unavailable")
			}))

			_, err := m.Issue(t.Context(), testUser)

			require.Error(t, err)
		})
	})

	t.Run("verify", func(t *testing.T) {
		m, c := newManager(t, fixedDuration(15*time.Minute))
		issued := c.now

		token, err := m.Issue(t.Context(), testUser)
		require.NoError(t, err)
		require.True(t, m.Verify(token), "fresh token must be valid")

		c.now = issued.Add(15*time.Minute + time.Second)
		require.False(t, m.Verify(token), "token must be invalid after expiry")
	})

	t.Run("verify rejects", func(t *testing.T) {
		m, c := newManager(t, fixedDuration(15*time.Minute))
		otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
		require.NoError(t, err)

		sign := func(method jwt.SigningMethod, key any, claims Claims) string {
			token, err := jwt.NewWithClaims(method, claims).SignedString(key)
			require.NoError(t, err)
			return token
		}
		validClaims := func() Claims {
			return Claims{
				RegisteredClaims: jwt.RegisteredClaims{
					Subject:   testUser.ID.String(),
					Issuer:    "refarch-cms",
					IssuedAt:  jwt.NewNumericDate(c.now),
					ExpiresAt: jwt.NewNumericDate(c.now.Add(time.Minute)),
				},
				Username:    "admin",
				Authorities: []string{"ROLE_ADMIN"},
				Type:        TypePassword,
			}
		}
		require.True(t, m.Verify(sign(jwt.SigningMethodRS256, m.key, validClaims())), "self signed claims must be valid")

		tests := []struct {
			name  string
			token func() string
		}{
			{
				name:  "malformed",
				token: func() string { return "not.a.token" },
			},
			{
				name:  "empty",
				token: func() string { return "" },
			},
			{
				name: "signed by other key",
				token: func() string {
					return sign(jwt.SigningMethodRS256, otherKey, validClaims())
				},
			},
			{
				name: "tampered payload",
				token: func() string {
					token := sign(jwt.SigningMethodRS256, m.key, validClaims())
					parts := strings.Split(token, ".")
					claims := validClaims()
					claims.Authorities = []string{"ROLE_ADMIN", "ROLE_SUPERUSER"}
					forged := sign(jwt.SigningMethodRS256, otherKey, claims)
					return parts[0] + "." + strings.Split(forged, ".")[1] + "." + parts[2]
				},
			},
			{
				name: "no expiration",
				token: func() string {
					claims := validClaims()
					claims.ExpiresAt = nil
					return sign(jwt.SigningMethodRS256, m.key, claims)
				},
			},
			{
				name: "expired",
				token: func() string {
					claims := validClaims()
					claims.ExpiresAt = jwt.NewNumericDate(c.now.Add(-time.Second))
					return sign(jwt.SigningMethodRS256, m.key, claims)
				},
			},
			{
				name: "federated token type",
				token: func() string {
					claims := validClaims()
					claims.Type = "sso"
					return sign(jwt.SigningMethodRS256, m.key, claims)
				},
			},
			{
				name: "missing token type",
				token: func() string {
					claims := validClaims()
					claims.Type = ""
					return sign(jwt.SigningMethodRS256, m.key, claims)
				},
			},
			{
				name: "other issuer",
				token: func() string {
					claims := validClaims()
					claims.Issuer = "https://idp.example.com"
					return sign(jwt.SigningMethodRS256, m.key, claims)
				},
			},
			{
				name: "alg none",
				token: func() string {
					return sign(jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, validClaims())
				},
			},
			{
				name: "hmac keyed with public modulus",
				token: func() string {
					return sign(jwt.SigningMethodHS256, m.key.N.Bytes(), validClaims())
				},
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				require.False(t, m.Verify(tt.token()))
			})
		}
	})

	t.Run("parse claims rejects foreign signature", func(t *testing.T) {
		m1, _ := newManager(t, fixedDuration(time.Minute))
		m2, _ := newManager(t, fixedDuration(time.Minute))
		token, err := m1.Issue(t.Context(), testUser)
		require.NoError(t, err)

		_, err = m2.ParseClaims(token)

		require.Error(t, err)
	})

	t.Run("public key verifies issued token", func(t *testing.T) {
		m, _ := newManager(t, fixedDuration(time.Minute))
		token, err := m.Issue(t.Context(), testUser)
		require.NoError(t, err)

		_, err = jwt.Parse(token, func(*jwt.Token) (any, error) { return m.PublicKey(), nil })

		require.NoError(t, err)
	})
}
