package handlers

import (
	"context"
	"net/http"
	"net/netip"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/refarch/internal/handlers/middleware"
	"github.com/nkiryanov/refarch/internal/logger"
	"github.com/nkiryanov/refarch/internal/metrics"
	"github.com/nkiryanov/refarch/internal/models"
	"github.com/nkiryanov/refarch/internal/service/auth"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

type Deps struct {
	Auth      authService
	Settings  settingsService
	Sessions  sessionService
	Gate      securityGate
	Federated federatedAuthenticator
	DB        pinger
	Metrics   metricsCollector
	Logger    logger.Logger

	// Login attempts per minute per client IP, zero turns limit off
	LoginRateLimit int

	// Peers allowed to set X-Forwarded-For, empty means remote address is the client
	TrustedProxies []netip.Prefix

	// Reported by /actuator/info
	Version string
}

func NewRouter(deps Deps) http.Handler {
	l := deps.Logger
	clientIP := middleware.NewClientIPResolver(deps.TrustedProxies).ClientIP
	loginLimit := middleware.LoginRateLimit(deps.LoginRateLimit, clientIP, func() {
		deps.Metrics.LoginAttempt(metrics.LoginRateLimited)
	})
	adminOnly := middleware.RequireAnyRole(models.RoleAdmin)

	mux := http.NewServeMux()

	mux.Handle("POST /auth/login", loginLimit(handleLogin(deps.Auth, deps.Metrics, clientIP, l)))
	mux.Handle("POST /auth/refresh", handleRefresh(deps.Auth, l))
	mux.Handle("POST /auth/logout", handleLogout(deps.Auth, l))
	mux.Handle("GET /auth/me", handleUserMe())

	mux.Handle("GET /settings", handleGetSettings(deps.Settings, l))
	mux.Handle("PUT /settings", adminOnly(handleUpdateSettings(deps.Settings, l)))

	mux.Handle("GET /sessions/{id}", handleGetSession(deps.Sessions, l))
	mux.Handle("GET /sessions/token/{token}", handleGetSessionByToken(deps.Sessions, l))
	mux.Handle("GET /sessions/refresh-token/{refreshToken}", handleGetSessionByRefreshToken(deps.Sessions, l))
	mux.Handle("GET /sessions/user/{userId}", handleListUserSessions(deps.Sessions, l))
	mux.Handle("POST /sessions", handleCreateSession(deps.Sessions, l))
	mux.Handle("PUT /sessions/{id}/activity", handleSessionActivity(deps.Sessions, l))
	mux.Handle("DELETE /sessions/expired", adminOnly(handleSweepSessions(deps.Sessions, l)))
	mux.Handle("DELETE /sessions/{id}", handleDeleteSession(deps.Sessions, l))
	mux.Handle("DELETE /sessions/user/{userId}", handleDeleteUserSessions(deps.Sessions, l))

	mux.Handle("GET /actuator/health", handleHealth())
	mux.Handle("GET /actuator/health/liveness", handleHealth())
	mux.Handle("GET /actuator/health/readiness", handleReadiness(deps.DB, l))
	mux.Handle("GET /actuator/info", handleInfo(deps.Version))
	mux.Handle("GET /actuator/metrics", deps.Metrics.Handler())

	handler := chain(mux,
		middleware.Recover(l),
		middleware.Metrics(deps.Metrics),
		middleware.LoggerMiddleware(l),
		middleware.Authenticate(deps.Gate, deps.Federated, l),
	)

	return handler
}

type authService interface {
	// Login user with email and password
	// Has to return apperrors.ErrInvalidCredentials or apperrors.ErrPasswordAuthDisabled on rejection
	Login(ctx context.Context, email string, password string, client auth.Client) (auth.LoginResult, error)

	// Issue new access token, refresh token stays the same
	// If token is missing, revoked or expired has to return apperrors.ErrRefreshTokenNotFound
	Refresh(ctx context.Context, refreshToken string) (models.TokenPair, error)

	// Nil refresh token means it was not supplied
	// Has to return apperrors.ErrInvalidToken if neither token counts
	Logout(ctx context.Context, accessToken string, refreshToken *string) error
}

type settingsService interface {
	Get(ctx context.Context) (models.Settings, error)
	Update(ctx context.Context, settings models.Settings) (models.Settings, error)
}

type sessionService interface {
	FindByID(ctx context.Context, id uuid.UUID) (models.Session, error)
	FindByToken(ctx context.Context, token string) (models.Session, error)
	FindByRefreshToken(ctx context.Context, refreshToken string) (models.Session, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Session, error)
	Create(ctx context.Context, session models.Session) (models.Session, error)
	UpdateLastActivity(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteAllForUser(ctx context.Context, userID uuid.UUID) (int64, error)
	SweepExpired(ctx context.Context, now time.Time) (int64, error)
}

type securityGate interface {
	IsFederated() bool
}

type federatedAuthenticator interface {
	Authenticate(r *http.Request) (models.Principal, error)
}

type pinger interface {
	Ping(ctx context.Context) error
}

type metricsCollector interface {
	Handler() http.Handler
	ObserveRequest(method string, code int, duration time.Duration)
	LoginAttempt(outcome string)
}
