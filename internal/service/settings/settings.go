package settings

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nkiryanov/refarch/internal/models"
	"github.com/nkiryanov/refarch/internal/repository"
)

// Listener is called after settings were saved
type Listener func(models.Settings)

// Settings service owns the global settings record and notifies subscribers on change
type Service struct {
	repo repository.SettingsRepo

	// Guards updates and listeners. Listeners are called one by one in update order
	mu        sync.Mutex
	listeners []Listener
}

func NewService(repo repository.SettingsRepo) *Service {
	return &Service{repo: repo}
}

func (s *Service) Get(ctx context.Context) (models.Settings, error) {
	return s.repo.Get(ctx)
}

// Subscribe for settings changes
func (s *Service) Subscribe(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.listeners = append(s.listeners, l)
}

// Update saves settings and publishes saved value to every listener
func (s *Service) Update(ctx context.Context, settings models.Settings) (models.Settings, error) {
	if err := checkSessionMinutes(settings.SessionDurationMinutes); err != nil {
		return settings, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	saved, err := s.repo.Save(ctx, settings)
	if err != nil {
		return saved, fmt.Errorf("can't save settings. Err: %w", err)
	}

	for _, l := range s.listeners {
		l(saved)
	}

	return saved, nil
}

// SessionDuration returns currently configured session lifetime
func (s *Service) SessionDuration(ctx context.Context) (time.Duration, error) {
	settings, err := s.repo.Get(ctx)
	if err != nil {
		return 0, err
	}

	if err := checkSessionMinutes(settings.SessionDurationMinutes); err != nil {
		return 0, err
	}

	return settings.SessionDuration(), nil
}

func checkSessionMinutes(minutes int) error {
	if minutes <= 0 || minutes > models.MaxSessionDurationMinutes {
		return fmt.Errorf("session duration must be in (0, %d] minutes, got %d", models.MaxSessionDurationMinutes, minutes)
	}
	return nil
}

// PasswordAuthEnabled reports whether login with password is allowed
func (s *Service) PasswordAuthEnabled(ctx context.Context) (bool, error) {
	settings, err := s.repo.Get(ctx)
	if err != nil {
		return false, err
	}
	return settings.PasswordAuthEnabled, nil
}

// SSOEnabled reports whether federated authentication is required
func (s *Service) SSOEnabled(ctx context.Context) (bool, error) {
	settings, err := s.repo.Get(ctx)
	if err != nil {
		return false, err
	}
	return settings.SSOAuthEnabled, nil
}
