package idempotency

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupManager(t *testing.T) Manager {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewManager(NewRedisStore(client, testLogger()), testLogger())
}

func TestExecuteRunsOncePerKey(t *testing.T) {
	mgr := setupManager(t)
	ctx := context.Background()

	calls := 0
	op := func(ctx context.Context) (interface{}, error) {
		calls++
		return map[string]string{"response": "Olá!"}, nil
	}

	key := GenerateKey("sess-0001", "msg-0001")

	first, err := mgr.Execute(ctx, key, time.Minute, op)
	require.NoError(t, err)
	assert.False(t, first.FromCache)

	second, err := mgr.Execute(ctx, key, time.Minute, op)
	require.NoError(t, err)
	assert.True(t, second.FromCache)

	assert.Equal(t, 1, calls)

	replayed, ok := second.Response.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "Olá!", replayed["response"])
}

func TestExecuteDistinctKeysRunIndependently(t *testing.T) {
	mgr := setupManager(t)
	ctx := context.Background()

	calls := 0
	op := func(ctx context.Context) (interface{}, error) {
		calls++
		return calls, nil
	}

	_, err := mgr.Execute(ctx, GenerateKey("sess-0001", "msg-0001"), time.Minute, op)
	require.NoError(t, err)
	_, err = mgr.Execute(ctx, GenerateKey("sess-0001", "msg-0002"), time.Minute, op)
	require.NoError(t, err)

	assert.Equal(t, 2, calls)
}

func TestGenerateKeyDeterministic(t *testing.T) {
	assert.Equal(t, GenerateKey("a", "b"), GenerateKey("a", "b"))
	assert.NotEqual(t, GenerateKey("a", "b"), GenerateKey("a", "c"))
}
