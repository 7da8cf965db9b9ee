package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/nkiryanov/refarch/internal/db"
	"github.com/nkiryanov/refarch/internal/handlers"
	"github.com/nkiryanov/refarch/internal/handlers/middleware"
	"github.com/nkiryanov/refarch/internal/logger"
	"github.com/nkiryanov/refarch/internal/metrics"
	"github.com/nkiryanov/refarch/internal/models"
	"github.com/nkiryanov/refarch/internal/repository/postgres"
	"github.com/nkiryanov/refarch/internal/service/auth"
	"github.com/nkiryanov/refarch/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/refarch/internal/service/federated"
	"github.com/nkiryanov/refarch/internal/service/gate"
	"github.com/nkiryanov/refarch/internal/service/refresh"
	"github.com/nkiryanov/refarch/internal/service/session"
	"github.com/nkiryanov/refarch/internal/service/settings"
	"github.com/nkiryanov/refarch/internal/service/sweeper"
	"github.com/nkiryanov/refarch/internal/service/user"
)

const (
	shutdownTimeout    = 5 * time.Second
	sentryFlushTimeout = 2 * time.Second
)

// Set on build with -ldflags "-X main.version=..."
var version = "dev"

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler

	logger  logger.Logger
	pool    *pgxpool.Pool
	sweeper *sweeper.Sweeper
	tasks   []sweeper.Task
	sentry  bool
}

func NewServerApp(ctx context.Context, c *Config) (*ServerApp, error) {
	// Initialize logger
	l, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	if c.SentryDSN != "" {
		err = sentry.Init(sentry.ClientOptions{
			Dsn:         c.SentryDSN,
			Environment: c.Environment,
			Release:     version,
		})
		if err != nil {
			return nil, fmt.Errorf("error while initializing sentry. Err: %w", err)
		}
	}

	// Connect to the database and run migrations
	pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}

	app, err := newServerApp(ctx, c, l, pool)
	if err != nil {
		pool.Close()
		return nil, err
	}
	app.sentry = c.SentryDSN != ""

	return app, nil
}

func newServerApp(ctx context.Context, c *Config, l logger.Logger, pool *pgxpool.Pool) (*ServerApp, error) {
	storage := postgres.NewStorage(pool)
	m := metrics.New()

	settingsService := settings.NewService(storage.Settings())
	securityGate := gate.New(ctx, settingsService, l, gate.WithModeObserver(m.SetFederated))
	settingsService.Subscribe(func(s models.Settings) {
		securityGate.OnSettingsChanged(s.SSOAuthEnabled)
	})

	tokenManager, err := tokenmanager.New(tokenmanager.Config{}, settingsService)
	if err != nil {
		return nil, fmt.Errorf("error while creating token manager. Err: %w", err)
	}
	refreshStore, err := refresh.NewStore(refresh.Config{MinTTL: c.RefreshMinTTL}, storage.Refresh(), settingsService)
	if err != nil {
		return nil, fmt.Errorf("error while creating refresh token store. Err: %w", err)
	}
	sessionService := session.NewService(storage.Session(), nil)

	hasher := auth.BcryptHasher{}
	authService, err := auth.NewService(auth.Config{Hasher: hasher}, tokenManager, refreshStore, settingsService, storage.User())
	if err != nil {
		return nil, fmt.Errorf("error while creating auth service. Err: %w", err)
	}

	userService := user.NewService(hasher, storage.User(), l)
	if _, err := userService.EnsureAdmin(ctx); err != nil {
		return nil, fmt.Errorf("error while creating default admin. Err: %w", err)
	}

	var federatedAuth interface {
		Authenticate(r *http.Request) (models.Principal, error)
	} = federated.Disabled{}
	if c.OIDCIssuer != "" {
		federatedAuth, err = federated.Discover(ctx, c.OIDCIssuer, c.OIDCClientID)
		if err != nil {
			return nil, fmt.Errorf("error while discovering identity provider. Err: %w", err)
		}
	} else {
		l.Warn("Identity provider is not configured, federated requests will be rejected")
	}

	trustedProxies, err := middleware.ParseTrustedProxies(c.TrustedProxies)
	if err != nil {
		return nil, err
	}

	router := handlers.NewRouter(handlers.Deps{
		Auth:           authService,
		Settings:       settingsService,
		Sessions:       sessionService,
		Gate:           securityGate,
		Federated:      federatedAuth,
		DB:             pool,
		Metrics:        m,
		Logger:         l,
		LoginRateLimit: c.LoginRateLimit,
		TrustedProxies: trustedProxies,
		Version:        version,
	})

	return &ServerApp{
		ListenAddr: c.ListenAddr,
		Handler:    router,
		logger:     l,
		pool:       pool,
		sweeper:    sweeper.New(l, sweeper.WithRecorder(m.SweeperDeleted)),
		tasks: []sweeper.Task{
			{Name: sweeper.RefreshTokensTask, Interval: sweeper.RefreshTokensInterval, Target: refreshStore},
			{Name: sweeper.SessionsTask, Interval: sweeper.SessionsInterval, Target: sessionService},
		},
	}, nil
}

// Run starts http server with sweepers and stops all of them gracefully on context cancellation
// Any of them failing stops the others
func (s *ServerApp) Run(ctx context.Context) error {
	defer s.pool.Close()
	if s.sentry {
		defer sentry.Flush(sentryFlushTimeout)
	}

	httpServer := &http.Server{
		Addr:    s.ListenAddr,
		Handler: s.Handler,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("Starting server", "address", s.ListenAddr, "version", version)
		err := httpServer.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-gCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		err := httpServer.Shutdown(timeoutCtx)
		if errors.Is(err, context.DeadlineExceeded) {
			s.logger.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
			err = httpServer.Close()
		}
		s.logger.Info("HTTP server stopped")
		return err
	})

	for _, task := range s.tasks {
		g.Go(func() error {
			<-s.sweeper.Run(gCtx, task)
			return nil
		})
	}

	return g.Wait()
}
