package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/nkiryanov/refarch/internal/handlers/middleware"
	"github.com/nkiryanov/refarch/internal/logger"
)

const (
	defaultListenAddr     = "localhost:8080"
	defaultLoggingLevel   = logger.LevelInfo
	defaultEnvironment    = logger.EnvProduction
	defaultOIDCClientID   = "refarch"
	defaultLoginRateLimit = 10
)

type Config struct {
	// Default logging level
	LogLevel string

	// Address on which the service will be run
	ListenAddr string

	// Database to connect to
	DatabaseDSN string

	// Environment
	Environment string

	// Identity provider for federated mode. Federated requests are rejected when empty
	OIDCIssuer   string
	OIDCClientID string

	// Panics are reported to Sentry when set
	SentryDSN string

	// Lower bound of refresh token lifetime, zero keeps whole days of session duration as is
	RefreshMinTTL time.Duration

	// Login attempts per minute per client IP, zero turns limit off
	LoginRateLimit int

	// Proxies (CIDR or IP) whose X-Forwarded-For is trusted
	TrustedProxies []string
}

func NewConfig() *Config {
	return &Config{
		LogLevel:       defaultLoggingLevel,
		ListenAddr:     defaultListenAddr,
		Environment:    defaultEnvironment,
		OIDCClientID:   defaultOIDCClientID,
		LoginRateLimit: defaultLoginRateLimit,
	}
}

// Load variable from '.env' file (should be located at working directory)
func (c *Config) LoadDotEnv(getwd func() (string, error)) error {
	wd, err := getwd()
	if err != nil {
		return err
	}

	envMap, err := godotenv.Read(filepath.Join(wd, ".env"))

	switch {
	case err == nil:
		return c.LoadEnv(func(key string) string {
			return envMap[key]
		})
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

func (c *Config) LoadEnv(getenv func(string) string) error {
	// Set option to value if it not empty
	setString := func(o *string) func(value string) error {
		return func(value string) error {
			if value != "" {
				*o = value
			}
			return nil
		}
	}
	setInt := func(o *int) func(value string) error {
		return func(value string) error {
			if value == "" {
				return nil
			}
			n, err := strconv.Atoi(value)
			if err != nil {
				return err
			}
			*o = n
			return nil
		}
	}
	setList := func(o *[]string) func(value string) error {
		return func(value string) error {
			if value != "" {
				*o = strings.Split(value, ",")
			}
			return nil
		}
	}
	setDuration := func(o *time.Duration) func(value string) error {
		return func(value string) error {
			if value == "" {
				return nil
			}
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			*o = d
			return nil
		}
	}

	envMap := map[string]func(string) error{
		"RUN_ADDRESS":           setString(&c.ListenAddr),
		"DATABASE_URI":          setString(&c.DatabaseDSN),
		"LOG_LEVEL":             setString(&c.LogLevel),
		"ENVIRONMENT":           setString(&c.Environment),
		"OIDC_ISSUER_URL":       setString(&c.OIDCIssuer),
		"OIDC_CLIENT_ID":        setString(&c.OIDCClientID),
		"SENTRY_DSN":            setString(&c.SentryDSN),
		"REFRESH_TOKEN_MIN_TTL": setDuration(&c.RefreshMinTTL),
		"LOGIN_RATE_LIMIT":      setInt(&c.LoginRateLimit),
		"TRUSTED_PROXIES":       setList(&c.TrustedProxies),
	}

	for key, parseFn := range envMap {
		if err := parseFn(getenv(key)); err != nil {
			return fmt.Errorf("invalid %s value. Err: %w", key, err)
		}
	}

	return nil
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("refarch", pflag.ContinueOnError)

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.DatabaseDSN, "database", "d", c.DatabaseDSN, "Database connection string")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (dev, prod)")
	fs.StringVar(&c.OIDCIssuer, "oidc-issuer", c.OIDCIssuer, "Identity provider issuer URL")
	fs.StringVar(&c.OIDCClientID, "oidc-client-id", c.OIDCClientID, "Expected audience of identity provider tokens")
	fs.StringVar(&c.SentryDSN, "sentry-dsn", c.SentryDSN, "Sentry DSN")
	fs.DurationVar(&c.RefreshMinTTL, "refresh-min-ttl", c.RefreshMinTTL, "Minimal refresh token lifetime")
	fs.StringSliceVar(&c.TrustedProxies, "trusted-proxies", c.TrustedProxies, "Comma separated proxies (CIDR or IP) allowed to set X-Forwarded-For")
	fs.IntVar(&c.LoginRateLimit, "login-rate-limit", c.LoginRateLimit, "Login attempts per minute per client IP, 0 to disable")

	return fs.Parse(args)
}

func (c *Config) Validate() error {
	switch {
	case c.DatabaseDSN == "":
		return errors.New("database DSN is required")
	case c.RefreshMinTTL < 0:
		return errors.New("refresh min ttl must not be negative")
	case c.LoginRateLimit < 0:
		return errors.New("login rate limit must not be negative")
	}
	_, err := middleware.ParseTrustedProxies(c.TrustedProxies)
	return err
}
