package sweeper

import (
	"context"
	"fmt"
	"time"

	"github.com/nkiryanov/refarch/internal/logger"
)

const (
	RefreshTokensTask = "refresh-tokens"
	SessionsTask      = "sessions"

	RefreshTokensInterval = time.Hour
	SessionsInterval      = 15 * time.Minute
)

// Anything that deletes records expired before now
type Target interface {
	SweepExpired(ctx context.Context, now time.Time) (int64, error)
}

type Task struct {
	Name     string
	Interval time.Duration
	Target   Target
}

// Called after every successful run with number of deleted rows
type Recorder func(task string, deleted int64)

type Option func(*Sweeper)

func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) { s.now = now }
}

func WithRecorder(r Recorder) Option {
	return func(s *Sweeper) { s.record = r }
}

type Sweeper struct {
	logger logger.Logger
	now    func() time.Time
	record Recorder
}

func New(l logger.Logger, opts ...Option) *Sweeper {
	s := &Sweeper{
		logger: l,
		now:    time.Now,
		record: func(string, int64) {},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunOnce sweeps task target once
func (s *Sweeper) RunOnce(ctx context.Context, task Task) (int64, error) {
	now := s.now()

	deleted, err := task.Target.SweepExpired(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("sweep %s failed. Err: %w", task.Name, err)
	}

	s.record(task.Name, deleted)
	s.logger.Info("Expired records deleted", "task", task.Name, "deleted", deleted)

	return deleted, nil
}

// Run sweeps task target every interval until context is done
// Returned channel is closed when loop stops
func (s *Sweeper) Run(ctx context.Context, task Task) <-chan struct{} {
	stopped := make(chan struct{})
	s.logger.Debug("Starting sweeper", "task", task.Name, "interval", task.Interval)

	go func() {
		defer close(stopped)

		ticker := time.NewTicker(task.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Debug("Sweeper stopped by context", "task", task.Name)
				return

			case <-ticker.C:
				// Next tick retries
				if _, err := s.RunOnce(ctx, task); err != nil {
					s.logger.Error("Sweeper run failed", "task", task.Name, "error", err)
				}
			}
		}
	}()

	return stopped
}
