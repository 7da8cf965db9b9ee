// Package gate keeps the process-wide authentication mode in sync with global settings
package gate

import (
	"context"
	"sync/atomic"

	"github.com/nkiryanov/refarch/internal/logger"
)

// Mode names used in logs and metrics
const (
	ModeFederated   = "federated"
	ModeLocalBypass = "local_bypass"
)

type ssoReader interface {
	SSOEnabled(ctx context.Context) (bool, error)
}

type Option func(*Gate)

// WithModeObserver registers a function called with the new value on every applied change and on start
func WithModeObserver(fn func(federated bool)) Option {
	return func(g *Gate) {
		g.observe = fn
	}
}

// Gate answers whether federated SSO is currently required
// Safe for any number of concurrent readers
type Gate struct {
	federated atomic.Bool
	logger    logger.Logger
	observe   func(bool)
}

// New reads the current setting once
// If it can't be read the gate starts in federated mode
func New(ctx context.Context, reader ssoReader, l logger.Logger, opts ...Option) *Gate {
	g := &Gate{
		logger:  l,
		observe: func(bool) {},
	}
	for _, opt := range opts {
		opt(g)
	}

	enabled, err := reader.SSOEnabled(ctx)
	if err != nil {
		l.Error("Can't read initial SSO status, requiring federated authentication", "error", err)
		enabled = true
	}

	g.federated.Store(enabled)
	g.observe(enabled)
	l.Info("Initial SSO status", "sso_enabled", enabled, "mode", modeName(enabled))

	return g
}

func (g *Gate) IsFederated() bool {
	return g.federated.Load()
}

// OnSettingsChanged applies new value of the SSO setting
// Expected to be called by a single publisher at a time
func (g *Gate) OnSettingsChanged(ssoEnabled bool) {
	previous := g.federated.Swap(ssoEnabled)
	if previous == ssoEnabled {
		return
	}

	g.observe(ssoEnabled)
	g.logger.Info("SSO status changed", "from", previous, "to", ssoEnabled, "mode", modeName(ssoEnabled))
}

func modeName(federated bool) string {
	if federated {
		return ModeFederated
	}
	return ModeLocalBypass
}
