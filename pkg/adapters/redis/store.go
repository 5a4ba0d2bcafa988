// Package redis persists session bindings and provides distributed
// locking over Redis, so multiple engine replicas can share sessions.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	backend "github.com/redis/go-redis/v9"

	"github.com/aretw0/canopy/pkg/domain"
)

// Store implements ports.BindingStore as an append-only Redis list of
// JSON-encoded binding deltas per session (RPUSH on write, LRANGE replay
// on read). Replay order is list order, so later deltas win.
type Store struct {
	client *backend.Client
	prefix string
}

// NewStore creates a store. The prefix namespaces all keys (e.g. "canopy:").
func NewStore(client *backend.Client, prefix string) *Store {
	return &Store{client: client, prefix: prefix}
}

func (s *Store) key(sessionID string) string {
	return s.prefix + "bindings:" + sessionID
}

// Append records one binding delta for the session.
func (s *Store) Append(ctx context.Context, sessionID string, delta domain.Bindings) error {
	data, err := json.Marshal(delta)
	if err != nil {
		return fmt.Errorf("encoding binding delta: %w", err)
	}
	if err := s.client.RPush(ctx, s.key(sessionID), data).Err(); err != nil {
		return fmt.Errorf("appending binding delta: %w", err)
	}
	return nil
}

// Load replays the session's delta log in order.
func (s *Store) Load(ctx context.Context, sessionID string) (domain.Bindings, error) {
	entries, err := s.client.LRange(ctx, s.key(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("reading binding log: %w", err)
	}
	if len(entries) == 0 {
		return nil, domain.ErrSessionNotFound
	}

	merged := domain.Bindings{}
	for _, entry := range entries {
		var delta domain.Bindings
		if err := json.Unmarshal([]byte(entry), &delta); err != nil {
			return nil, fmt.Errorf("decoding binding delta: %w", err)
		}
		merged = merged.Merge(delta)
	}
	return merged, nil
}

// Delete removes the session's log.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("deleting binding log: %w", err)
	}
	return nil
}

// List returns all session IDs with a log.
func (s *Store) List(ctx context.Context) ([]string, error) {
	var ids []string
	var cursor uint64
	pattern := s.prefix + "bindings:*"
	for {
		keys, next, err := s.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, fmt.Errorf("scanning sessions: %w", err)
		}
		for _, k := range keys {
			ids = append(ids, strings.TrimPrefix(k, s.prefix+"bindings:"))
		}
		if next == 0 {
			return ids, nil
		}
		cursor = next
	}
}
