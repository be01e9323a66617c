package session

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appredis "github.com/Nickdtt/ia-crm/pkg/redis"
)

func setupTestRedis(t *testing.T) *appredis.Client {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{
		Addr: mr.Addr(),
	})

	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})

	return &appredis.Client{Client: client}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRedisStore_SaveAndLoad(t *testing.T) {
	store := NewRedisStore(setupTestRedis(t), time.Hour, testLogger())
	ctx := context.Background()

	state := New("sess-1")
	state.CurrentStep = StepAnswering
	state.Mode = ModeAnswering
	state.LeadName = "Maria Clara Souza"
	state.WantsToSchedule = TriYes

	require.NoError(t, store.Save(ctx, "sess-1", state))

	loaded, err := store.Load(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, StepAnswering, loaded.CurrentStep)
	assert.Equal(t, ModeAnswering, loaded.Mode)
	assert.Equal(t, "Maria Clara Souza", loaded.LeadName)
	assert.Equal(t, TriYes, loaded.WantsToSchedule)
	assert.False(t, loaded.UpdatedAt.IsZero())
}

func TestRedisStore_LoadNotFound(t *testing.T) {
	store := NewRedisStore(setupTestRedis(t), time.Hour, testLogger())

	state, err := store.Load(context.Background(), "missing")
	assert.Nil(t, state)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_Delete(t *testing.T) {
	store := NewRedisStore(setupTestRedis(t), time.Hour, testLogger())
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "sess-2", New("sess-2")))
	require.NoError(t, store.Delete(ctx, "sess-2"))

	_, err := store.Load(ctx, "sess-2")
	assert.ErrorIs(t, err, ErrNotFound)

	// deleting again stays a no-op
	assert.NoError(t, store.Delete(ctx, "sess-2"))
}

func TestMemoryStore_CopySemantics(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	state := New("sess-3")
	state.LeadName = "Ana Lima"
	require.NoError(t, store.Save(ctx, "sess-3", state))

	// mutating the original must not leak into the stored copy
	state.LeadName = "changed"

	loaded, err := store.Load(ctx, "sess-3")
	require.NoError(t, err)
	assert.Equal(t, "Ana Lima", loaded.LeadName)
}

func TestMemoryStore_PruneIdle(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "old", New("old")))
	store.mu.Lock()
	store.states["old"].UpdatedAt = time.Now().UTC().Add(-2 * time.Hour)
	store.mu.Unlock()

	require.NoError(t, store.Save(ctx, "fresh", New("fresh")))

	pruned := store.PruneIdle(time.Hour)
	assert.Equal(t, 1, pruned)
	assert.Equal(t, 1, store.Len())

	_, err := store.Load(ctx, "old")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTriState(t *testing.T) {
	assert.False(t, TriUnknown.Known())
	assert.True(t, TriYes.Known())
	assert.True(t, TriNo.Known())
	assert.True(t, TriYes.Bool())
	assert.False(t, TriNo.Bool())
	assert.Equal(t, TriYes, TriFromBool(true))
	assert.Equal(t, TriNo, TriFromBool(false))
}

func TestStepWaitsForInput(t *testing.T) {
	for _, step := range Steps {
		waits := step.WaitsForInput()
		if step == StepCheckingSlot || step == StepCreatingAppointment {
			assert.False(t, waits, string(step))
		} else {
			assert.True(t, waits, string(step))
		}
	}
}
