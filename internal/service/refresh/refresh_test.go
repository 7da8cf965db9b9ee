package refresh

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/refarch/internal/apperrors"
	"github.com/nkiryanov/refarch/internal/models"
	"github.com/nkiryanov/refarch/internal/repository/postgres"
	"github.com/nkiryanov/refarch/internal/testutil"
)

type durationFunc func(ctx context.Context) (time.Duration, error)

func (f durationFunc) SessionDuration(ctx context.Context) (time.Duration, error) {
	return f(ctx)
}

func fixedDuration(d time.Duration) durationFunc {
	return func(context.Context) (time.Duration, error) { return d, nil }
}

func Test_Lifetime(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		minTTL   time.Duration
		session  time.Duration
		expected time.Duration
	}{
		{"one hour is zero days", 0, time.Hour, 0},
		{"just under a day", 0, 1439 * time.Minute, 0},
		{"exactly one day", 0, 24 * time.Hour, 24 * time.Hour},
		{"remainder dropped", 0, 47 * time.Hour, 24 * time.Hour},
		{"several days", 0, 7 * 24 * time.Hour, 7 * 24 * time.Hour},
		{"min ttl applied", 30 * time.Minute, time.Hour, 30 * time.Minute},
		{"min ttl lower than days", time.Hour, 48 * time.Hour, 48 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewStore(Config{MinTTL: tt.minTTL}, &postgres.RefreshTokenRepo{}, fixedDuration(tt.session))
			require.NoError(t, err)

			require.Equal(t, tt.expected, s.Lifetime(tt.session))
		})
	}
}

func Test_NewStore(t *testing.T) {
	t.Parallel()

	_, err := NewStore(Config{}, nil, fixedDuration(time.Hour))
	require.Error(t, err)

	_, err = NewStore(Config{}, &postgres.RefreshTokenRepo{}, nil)
	require.Error(t, err)

	_, err = NewStore(Config{MinTTL: -time.Second}, &postgres.RefreshTokenRepo{}, fixedDuration(time.Hour))
	require.Error(t, err)
}

func Test_Store(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	withStore := func(t *testing.T, session time.Duration, fn func(s *Store, clock *time.Time, user models.User)) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			current := now
			storage := postgres.NewStorage(tx)
			user, err := storage.User().CreateUser(t.Context(), models.User{
				ID:             uuid.New(),
				Username:       "owner",
				Email:          "owner@example.com",
				HashedPassword: "hash",
				Roles:          []models.Role{models.RoleUser},
			})
			require.NoError(t, err)

			s, err := NewStore(Config{Now: func() time.Time { return current }}, storage.Refresh(), fixedDuration(session))
			require.NoError(t, err)

			fn(s, &current, user)
		})
	}

	t.Run("create", func(t *testing.T) {
		withStore(t, 3*24*time.Hour, func(s *Store, _ *time.Time, user models.User) {
			token, err := s.Create(t.Context(), user, "10.0.0.1", "curl/8.0")

			require.NoError(t, err)
			require.NotEmpty(t, token.Token)
			require.Equal(t, user.ID, token.UserID)
			require.True(t, token.IsValid)
			require.Equal(t, "10.0.0.1", token.IPAddress)
			require.Equal(t, "curl/8.0", token.UserAgent)
			require.WithinDuration(t, now.Add(72*time.Hour), token.ExpiresAt, time.Microsecond)
			require.WithinDuration(t, now, token.LastUsed, time.Microsecond)
		})
	})

	t.Run("tokens are unique", func(t *testing.T) {
		withStore(t, 24*time.Hour, func(s *Store, _ *time.Time, user models.User) {
			first, err := s.Create(t.Context(), user, "", "")
			require.NoError(t, err)
			second, err := s.Create(t.Context(), user, "", "")
			require.NoError(t, err)

			require.NotEqual(t, first.Token, second.Token)
		})
	})

	t.Run("find valid", func(t *testing.T) {
		withStore(t, 24*time.Hour, func(s *Store, _ *time.Time, user models.User) {
			created, err := s.Create(t.Context(), user, "", "")
			require.NoError(t, err)

			found, err := s.FindValid(t.Context(), created.Token)

			require.NoError(t, err)
			require.Equal(t, created.ID, found.ID)
		})
	})

	t.Run("find unknown", func(t *testing.T) {
		withStore(t, 24*time.Hour, func(s *Store, _ *time.Time, _ models.User) {
			_, err := s.FindValid(t.Context(), "unknown")

			require.ErrorIs(t, err, apperrors.ErrRefreshTokenNotFound)
		})
	})

	t.Run("sub day session gives already expired token", func(t *testing.T) {
		withStore(t, time.Hour, func(s *Store, _ *time.Time, user models.User) {
			created, err := s.Create(t.Context(), user, "", "")
			require.NoError(t, err)

			_, err = s.FindValid(t.Context(), created.Token)

			require.ErrorIs(t, err, apperrors.ErrRefreshTokenNotFound)
		})
	})

	t.Run("find expired", func(t *testing.T) {
		withStore(t, 24*time.Hour, func(s *Store, clock *time.Time, user models.User) {
			created, err := s.Create(t.Context(), user, "", "")
			require.NoError(t, err)

			*clock = now.Add(25 * time.Hour)
			_, err = s.FindValid(t.Context(), created.Token)

			require.ErrorIs(t, err, apperrors.ErrRefreshTokenNotFound)
		})
	})

	t.Run("touch keeps expiry", func(t *testing.T) {
		withStore(t, 24*time.Hour, func(s *Store, clock *time.Time, user models.User) {
			created, err := s.Create(t.Context(), user, "", "")
			require.NoError(t, err)

			*clock = now.Add(time.Hour)
			err = s.Touch(t.Context(), created)
			require.NoError(t, err)

			found, err := s.FindValid(t.Context(), created.Token)
			require.NoError(t, err)
			require.WithinDuration(t, now.Add(time.Hour), found.LastUsed, time.Microsecond)
			require.WithinDuration(t, created.ExpiresAt, found.ExpiresAt, time.Microsecond)
		})
	})

	t.Run("revoke", func(t *testing.T) {
		withStore(t, 24*time.Hour, func(s *Store, _ *time.Time, user models.User) {
			created, err := s.Create(t.Context(), user, "", "")
			require.NoError(t, err)

			err = s.Revoke(t.Context(), created.ID)
			require.NoError(t, err)

			_, err = s.FindValid(t.Context(), created.Token)
			require.ErrorIs(t, err, apperrors.ErrRefreshTokenNotFound)
		})
	})

	t.Run("revoke all for user", func(t *testing.T) {
		withStore(t, 24*time.Hour, func(s *Store, _ *time.Time, user models.User) {
			for range 3 {
				_, err := s.Create(t.Context(), user, "", "")
				require.NoError(t, err)
			}

			deleted, err := s.RevokeAllForUser(t.Context(), user.ID)
			require.NoError(t, err)
			require.EqualValues(t, 3, deleted)

			active, err := s.ActiveForUser(t.Context(), user.ID)
			require.NoError(t, err)
			require.Empty(t, active)
		})
	})

	t.Run("sweep expired", func(t *testing.T) {
		withStore(t, 24*time.Hour, func(s *Store, _ *time.Time, user models.User) {
			created, err := s.Create(t.Context(), user, "", "")
			require.NoError(t, err)

			deleted, err := s.SweepExpired(t.Context(), now.Add(time.Hour))
			require.NoError(t, err)
			require.EqualValues(t, 0, deleted, "not expired token must stay")

			deleted, err = s.SweepExpired(t.Context(), created.ExpiresAt.Add(time.Second))
			require.NoError(t, err)
			require.EqualValues(t, 1, deleted)
		})
	})
}
