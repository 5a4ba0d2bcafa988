package session_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/canopy/pkg/adapters/memory"
	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/ports"
	"github.com/aretw0/canopy/pkg/session"
)

func TestManager_AppendThenLoad(t *testing.T) {
	mgr := session.NewManager(memory.NewStore())
	ctx := context.Background()

	require.NoError(t, mgr.Append(ctx, "s1", domain.Bindings{"x": {Value: "one"}}))
	require.NoError(t, mgr.Append(ctx, "s1", domain.Bindings{"y": {Value: "two"}}))

	got, err := mgr.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "one", got["x"].Value)
	assert.Equal(t, "two", got["y"].Value)
}

func TestManager_LoadMissing(t *testing.T) {
	mgr := session.NewManager(memory.NewStore())
	_, err := mgr.Load(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestManager_LoadOrStartNewSession(t *testing.T) {
	mgr := session.NewManager(memory.NewStore())

	got, err := mgr.LoadOrStart(context.Background(), "fresh")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestManager_AppendEmptyDeltaIsNoop(t *testing.T) {
	mgr := session.NewManager(memory.NewStore())
	ctx := context.Background()

	require.NoError(t, mgr.Append(ctx, "s1", nil))

	// No delta recorded, so the session still does not exist.
	_, err := mgr.Load(ctx, "s1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestManager_WithLockSerializesSameSession(t *testing.T) {
	mgr := session.NewManager(memory.NewStore())
	ctx := context.Background()

	var mu sync.Mutex
	var active, maxActive int

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := mgr.WithLock(ctx, "shared", func(ctx context.Context) error {
				mu.Lock()
				active++
				if active > maxActive {
					maxActive = active
				}
				mu.Unlock()

				time.Sleep(5 * time.Millisecond)

				mu.Lock()
				active--
				mu.Unlock()
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxActive)
}

// fakeLocker records distributed lock activity.
type fakeLocker struct {
	mu       sync.Mutex
	locked   []string
	released int
}

func (f *fakeLocker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	f.mu.Lock()
	f.locked = append(f.locked, key)
	f.mu.Unlock()
	return func(ctx context.Context) error {
		f.mu.Lock()
		f.released++
		f.mu.Unlock()
		return nil
	}, nil
}

func TestManager_UsesDistributedLocker(t *testing.T) {
	locker := &fakeLocker{}
	mgr := session.NewManager(memory.NewStore(), session.WithLocker(locker))
	ctx := context.Background()

	require.NoError(t, mgr.Append(ctx, "s1", domain.Bindings{"x": {Value: 1.0}}))

	assert.Equal(t, []string{"s1"}, locker.locked)
	assert.Equal(t, 1, locker.released)
}
