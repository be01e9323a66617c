package health

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCheckerAggregatesResults(t *testing.T) {
	checker := NewChecker(testLogger())
	checker.AddCheck("ok", CheckFunc(func(ctx context.Context) error { return nil }))
	checker.AddCheck("broken", CheckFunc(func(ctx context.Context) error {
		return errors.New("connection refused")
	}))

	results, healthy := checker.Check(context.Background())

	assert.False(t, healthy)
	assert.Equal(t, "OK", results["ok"])
	assert.Equal(t, "connection refused", results["broken"])
}

func TestCheckerAllHealthy(t *testing.T) {
	checker := NewChecker(testLogger())
	checker.AddCheck("ok", CheckFunc(func(ctx context.Context) error { return nil }))

	_, healthy := checker.Check(context.Background())
	assert.True(t, healthy)
}

func TestDocsChecker(t *testing.T) {
	assert.NoError(t, NewDocsChecker(t.TempDir()).HealthCheck(context.Background()))
	assert.Error(t, NewDocsChecker("/nonexistent/docs").HealthCheck(context.Background()))
	assert.NoError(t, NewDocsChecker("").HealthCheck(context.Background()))
}
