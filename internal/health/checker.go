// Package health aggregates readiness checks for the agent's dependencies.
package health

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"
)

// Checkable represents a component that can report its health status.
type Checkable interface {
	HealthCheck(ctx context.Context) error
}

// CheckFunc adapts a plain function to Checkable.
type CheckFunc func(ctx context.Context) error

func (f CheckFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

// Checker aggregates health checks for multiple components.
type Checker struct {
	log    *slog.Logger
	checks map[string]Checkable
}

// NewChecker instantiates a Checker with the provided logger.
func NewChecker(log *slog.Logger) *Checker {
	if log == nil {
		log = slog.Default()
	}

	return &Checker{
		log:    log,
		checks: make(map[string]Checkable),
	}
}

// AddCheck registers a checkable component by name.
func (c *Checker) AddCheck(name string, check Checkable) {
	if name == "" || check == nil {
		return
	}
	c.checks[name] = check
}

// Check runs all registered health checks and returns their statuses.
// Healthy reports whether every component passed.
func (c *Checker) Check(ctx context.Context) (results map[string]string, healthy bool) {
	results = make(map[string]string, len(c.checks))
	healthy = true

	for name, check := range c.checks {
		if err := check.HealthCheck(ctx); err != nil {
			results[name] = err.Error()
			healthy = false
			c.log.Error("health check failed", slog.String("component", name), slog.Any("error", err))
			continue
		}

		results[name] = "OK"
	}

	return results, healthy
}

// DBChecker verifies connectivity to PostgreSQL.
type DBChecker struct {
	db *sql.DB
}

// NewDBChecker constructs a DBChecker.
func NewDBChecker(db *sql.DB) *DBChecker {
	return &DBChecker{db: db}
}

// HealthCheck pings the database.
func (c *DBChecker) HealthCheck(ctx context.Context) error {
	if c == nil || c.db == nil {
		return sql.ErrConnDone
	}
	return c.db.PingContext(ctx)
}

// Pinger abstracts the subset of redis.Client used for health checks.
type Pinger interface {
	Ping(ctx context.Context) *redis.StatusCmd
}

// RedisChecker verifies connectivity to Redis.
type RedisChecker struct {
	pinger Pinger
}

// NewRedisChecker constructs a RedisChecker.
func NewRedisChecker(pinger Pinger) *RedisChecker {
	return &RedisChecker{pinger: pinger}
}

// HealthCheck issues a PING against Redis.
func (c *RedisChecker) HealthCheck(ctx context.Context) error {
	if c == nil || c.pinger == nil {
		return redis.ErrClosed
	}
	return c.pinger.Ping(ctx).Err()
}

// DocsChecker verifies that the knowledge-base directory is readable. The
// agent degrades to canned answers without it, so this is a readiness signal
// rather than a liveness one.
type DocsChecker struct {
	dir string
}

// NewDocsChecker constructs a DocsChecker for the docs directory.
func NewDocsChecker(dir string) *DocsChecker {
	return &DocsChecker{dir: dir}
}

// HealthCheck stats the docs directory.
func (c *DocsChecker) HealthCheck(ctx context.Context) error {
	if c == nil || c.dir == "" {
		return nil
	}

	info, err := os.Stat(c.dir)
	if err != nil {
		return fmt.Errorf("docs dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("docs dir %s is not a directory", c.dir)
	}

	return nil
}
