package scheduler

import (
	"context"
	"time"

	"github.com/alpian-ledger/payment-service/internal/infrastructure/observability"
	infraRedis "github.com/alpian-ledger/payment-service/internal/infrastructure/redis"
	"github.com/rs/zerolog"
)

// Config controls the scheduler loop.
type Config struct {
	PollInterval time.Duration
}

// Lease is a held distributed lock.
type Lease interface {
	Release(ctx context.Context) error
}

// Locker is the distributed-lock capability the tasks need: claim a named
// resource for a TTL or fail with ErrLockUnavailable.
type Locker interface {
	Acquire(ctx context.Context, resourceID string, ttl time.Duration) (Lease, error)
}

type redisLocker struct {
	m *infraRedis.LockManager
}

// NewRedisLocker adapts the Redis lock manager to the Locker port.
func NewRedisLocker(m *infraRedis.LockManager) Locker {
	return redisLocker{m: m}
}

func (r redisLocker) Acquire(ctx context.Context, resourceID string, ttl time.Duration) (Lease, error) {
	lock, err := r.m.Acquire(ctx, resourceID, ttl)
	if err != nil {
		return nil, err
	}
	return lock, nil
}

// Scheduler runs the registered maintenance tasks on a fixed interval. Every
// instance runs every pass; the tasks serialize per payment with distributed
// locks and versioned writes, so concurrent instances divide the candidates
// between them instead of queueing behind one coarse lock.
type Scheduler struct {
	registry *Registry
	logger   zerolog.Logger
	metrics  *observability.Metrics
	cfg      Config
}

func New(registry *Registry, logger zerolog.Logger, metrics *observability.Metrics, cfg Config) *Scheduler {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	return &Scheduler{
		registry: registry,
		logger:   logger.With().Str("component", "scheduler").Logger(),
		metrics:  metrics,
		cfg:      cfg,
	}
}

// Run polls until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	s.logger.Info().
		Strs("tasks", s.registry.Names()).
		Dur("poll_interval", s.cfg.PollInterval).
		Msg("Scheduler started")

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		s.RunPass(ctx)
	}
}

// RunPass runs every registered task once.
func (s *Scheduler) RunPass(ctx context.Context) {
	for _, name := range s.registry.Names() {
		if ctx.Err() != nil {
			return
		}
		s.runTask(ctx, name)
	}
}

func (s *Scheduler) runTask(ctx context.Context, name string) {
	fn, err := s.registry.Resolve(name)
	if err != nil {
		s.logger.Error().Err(err).Str("task", name).Msg("Task resolution failed")
		return
	}

	if err := fn(ctx); err != nil {
		s.metrics.SchedulerPasses.WithLabelValues(name, "error").Inc()
		s.logger.Error().Err(err).Str("task", name).Msg("Task pass failed")
		return
	}
	s.metrics.SchedulerPasses.WithLabelValues(name, "ok").Inc()
}
