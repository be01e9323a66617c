package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	rateLimitChecksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ratelimit_checks_total",
		Help: "Total number of rate limit checks by backend and result.",
	}, []string{"backend", "result"})

	rateLimitRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ratelimit_rejected_total",
		Help: "Total number of rejected messages per backend.",
	}, []string{"backend"})

	rateLimitRedisErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ratelimit_redis_errors_total",
		Help: "Total number of Redis errors encountered by the limiter.",
	})
)

func init() {
	prometheus.MustRegister(rateLimitChecksTotal, rateLimitRejectedTotal, rateLimitRedisErrorsTotal)
}

// AdaptiveLimiter delegates to a primary (Redis) limiter and falls back to a
// stricter in-memory limiter when the primary fails, so a Redis outage
// degrades throttling instead of dropping it.
type AdaptiveLimiter struct {
	primary  Limiter
	fallback Limiter
	log      *slog.Logger
}

// NewAdaptiveLimiter creates a limiter that adapts between backends.
func NewAdaptiveLimiter(primary, fallback Limiter, log *slog.Logger) Limiter {
	if log == nil {
		log = slog.Default()
	}

	return &AdaptiveLimiter{
		primary:  primary,
		fallback: fallback,
		log:      log,
	}
}

// Check evaluates the limit on the primary backend, halving it on fallback.
func (a *AdaptiveLimiter) Check(ctx context.Context, key string, limit int, window time.Duration) (*Result, error) {
	primaryResult, err := a.primary.Check(ctx, key, limit, window)
	if err == nil {
		return record("redis", primaryResult)
	}

	rateLimitRedisErrorsTotal.Inc()
	a.log.Warn("redis limiter failed, falling back to in-memory",
		slog.String("key", key),
		slog.Any("error", err),
	)

	// Local memory sees only this replica's traffic, so the shared limit is
	// halved to stay conservative.
	fallbackLimit := max(limit/2, 1)

	result, err := a.fallback.Check(ctx, key, fallbackLimit, window)
	if err != nil {
		return result, err
	}

	return record("fallback", result)
}

func record(backend string, result *Result) (*Result, error) {
	if result.Allowed {
		rateLimitChecksTotal.WithLabelValues(backend, "allowed").Inc()
		return result, nil
	}

	rateLimitChecksTotal.WithLabelValues(backend, "rejected").Inc()
	rateLimitRejectedTotal.WithLabelValues(backend).Inc()

	return result, ErrLimitExceeded
}
