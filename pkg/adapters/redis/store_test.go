package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/canopy/pkg/adapters/redis"
	"github.com/aretw0/canopy/pkg/domain"
)

func setup(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestStore_AppendLoadReplay(t *testing.T) {
	_, client := setup(t)
	store := redis.NewStore(client, "test:")
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "s1", domain.Bindings{
		"city": {Value: "Lisbon"},
	}))
	require.NoError(t, store.Append(ctx, "s1", domain.Bindings{
		"temp": {Value: "21"},
		"city": {Value: "Porto"}, // later delta wins on replay
	}))

	got, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "Porto", got["city"].Value)
	assert.Equal(t, "21", got["temp"].Value)
}

func TestStore_LoadMissingSession(t *testing.T) {
	_, client := setup(t)
	store := redis.NewStore(client, "test:")

	_, err := store.Load(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestStore_CallableBindingRoundTrip(t *testing.T) {
	_, client := setup(t)
	store := redis.NewStore(client, "test:")
	ctx := context.Background()

	src := "def greet(name):\n    return f\"hi {name}\"\n"
	require.NoError(t, store.Append(ctx, "s1", domain.Bindings{
		"greet": {Source: src, Callable: true},
	}))

	got, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, got["greet"].Callable)
	assert.Equal(t, src, got["greet"].Source)
}

func TestStore_DeleteAndList(t *testing.T) {
	_, client := setup(t)
	store := redis.NewStore(client, "test:")
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "a", domain.Bindings{"x": {Value: 1.0}}))
	require.NoError(t, store.Append(ctx, "b", domain.Bindings{"y": {Value: 2.0}}))

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, ids)

	require.NoError(t, store.Delete(ctx, "a"))
	_, err = store.Load(ctx, "a")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestLocker_LockUnlock(t *testing.T) {
	mr, client := setup(t)
	locker := redis.NewLocker(client, "test:")
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "session1", 5*time.Second)
	require.NoError(t, err)
	require.NotNil(t, unlock)
	assert.True(t, mr.Exists("test:lock:session1"))

	require.NoError(t, unlock(ctx))
	assert.False(t, mr.Exists("test:lock:session1"))
}

func TestLocker_Contention(t *testing.T) {
	_, client := setup(t)
	locker1 := redis.NewLocker(client, "test:")
	locker2 := redis.NewLocker(client, "test:")
	ctx := context.Background()

	unlock1, err := locker1.Lock(ctx, "shared", 5*time.Second)
	require.NoError(t, err)

	ctxTimeout, cancel := context.WithTimeout(ctx, 400*time.Millisecond)
	defer cancel()
	_, err = locker2.Lock(ctxTimeout, "shared", 5*time.Second)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, unlock1(ctx))
	unlock2, err := locker2.Lock(ctx, "shared", 5*time.Second)
	require.NoError(t, err)
	require.NoError(t, unlock2(ctx))
}
