// Package ratelimit implements fixed-window point consumption with a block
// overlay. Each key may consume Points within Duration; the consume that
// exceeds Points starts a block of BlockDuration (or, when zero, waits for the
// window to reset). While blocked every consume is rejected.
package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/identity-service/internal/core/domain"
	"github.com/99minutos/identity-service/internal/pkg/metrics"
)

// Config describes one named limiter.
type Config struct {
	Name          string
	Points        int
	Duration      time.Duration
	BlockDuration time.Duration
}

// Default applies to every request, keyed by client IP.
var Default = Config{Name: "default", Points: 100, Duration: time.Minute, BlockDuration: time.Minute}

// Auth guards sign-up and sign-in, keyed by client IP and route.
var Auth = Config{Name: "auth", Points: 5, Duration: time.Minute, BlockDuration: 5 * time.Minute}

// Password guards password changes, keyed by the authenticated user.
var Password = Config{Name: "password", Points: 5, Duration: time.Minute, BlockDuration: 5 * time.Minute}

// Result is the outcome of one consume.
type Result struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Store persists counters. Implementations must make Consume atomic per key.
type Store interface {
	Consume(ctx context.Context, key string, cfg Config) (Result, error)
}

var ErrInvalidConfig = errors.New("ratelimit: points and duration must be positive")

// Limiter binds a Config to a Store.
type Limiter struct {
	cfg   Config
	store Store
	log   zerolog.Logger
}

func New(cfg Config, store Store, log zerolog.Logger) (*Limiter, error) {
	if cfg.Points <= 0 || cfg.Duration <= 0 || cfg.BlockDuration < 0 {
		return nil, ErrInvalidConfig
	}
	return &Limiter{cfg: cfg, store: store, log: log}, nil
}

func (l *Limiter) Name() string { return l.cfg.Name }

// Consume takes one point for key. It returns a *domain.RateLimitError when the
// key is over budget. Store failures are logged and the request is allowed.
func (l *Limiter) Consume(ctx context.Context, key string) error {
	res, err := l.store.Consume(ctx, l.cfg.Name+":"+key, l.cfg)
	if err != nil {
		metrics.RateLimitErrorsTotal.WithLabelValues(l.cfg.Name).Inc()
		l.log.Error().Err(err).Str("limiter", l.cfg.Name).Str("key", key).Msg("rate limiter store failed, allowing request")
		return nil
	}
	if !res.Allowed {
		metrics.RateLimitRejectionsTotal.WithLabelValues(l.cfg.Name).Inc()
		return &domain.RateLimitError{RetryAfter: res.RetryAfter}
	}
	return nil
}
