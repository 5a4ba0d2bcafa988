package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"log/slog"

	"github.com/aretw0/canopy/internal/logging"
	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/ports"
)

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager serializes binding access per session, ensuring at most one
// in-flight turn touches a session's log at a time. It uses reference
// counting to garbage collect unused locks.
type Manager struct {
	store ports.BindingStore

	mu    sync.Mutex            // Global lock for the map
	locks map[string]*lockEntry // Map of active locks

	locker ports.DistributedLocker // Optional distributed locker
	logger *slog.Logger            // Logger for internal events (like deferred errors)
}

// ManagerOption configures the Manager.
type ManagerOption func(*Manager)

// WithLocker enables distributed locking across replicas.
func WithLocker(locker ports.DistributedLocker) ManagerOption {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithManagerLogger configures a logger for the Manager.
func WithManagerLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a new session Manager over the given binding store.
func NewManager(store ports.BindingStore, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:  store,
		locks:  make(map[string]*lockEntry),
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(sessionID) after unlocking.
func (m *Manager) acquire(sessionID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		entry = &lockEntry{}
		m.locks[sessionID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		return // Should not happen if paired correctly
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, sessionID)
	}
}

// Load replays the session's binding log under the lock.
func (m *Manager) Load(ctx context.Context, sessionID string) (domain.Bindings, error) {
	var bindings domain.Bindings
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		var err error
		bindings, err = m.store.Load(ctx, sessionID)
		return err
	})
	return bindings, err
}

// LoadOrStart replays the session's binding log, treating a session with
// no log yet as empty rather than failing. New sessions exist implicitly
// until their first delta is appended.
func (m *Manager) LoadOrStart(ctx context.Context, sessionID string) (domain.Bindings, error) {
	var bindings domain.Bindings
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		var err error
		bindings, err = m.store.Load(ctx, sessionID)
		if err == nil {
			return nil
		}
		if err != domain.ErrSessionNotFound {
			return fmt.Errorf("failed to load session bindings: %w", err)
		}
		bindings = domain.Bindings{}
		return nil
	})
	return bindings, err
}

// Append records the binding delta produced by one turn.
func (m *Manager) Append(ctx context.Context, sessionID string, delta domain.Bindings) error {
	if len(delta) == 0 {
		return nil
	}
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		return m.store.Append(ctx, sessionID, delta)
	})
}

// Delete removes the session's entire binding log.
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		return m.store.Delete(ctx, sessionID)
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Store returns the underlying binding store.
func (m *Manager) Store() ports.BindingStore {
	return m.store
}

// WithLock executes a function while holding the lock for the session.
func (m *Manager) WithLock(ctx context.Context, sessionID string, fn func(context.Context) error) error {
	entry := m.acquire(sessionID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(sessionID)
	}()

	// Distributed Locking
	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, sessionID, 30*time.Second)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"session_id", sessionID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}
