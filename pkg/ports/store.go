package ports

import (
	"context"

	"github.com/aretw0/canopy/pkg/domain"
)

// BindingStore persists session bindings as an append-only log of deltas
// keyed by session ID. Load replays the log in order, so later deltas win
// on key conflict. This allows the interpreter backend to lose its own
// in-process state without the session losing hers.
type BindingStore interface {
	// Append records the binding delta produced by one turn.
	Append(ctx context.Context, sessionID string, delta domain.Bindings) error

	// Load merges all recorded deltas for the session.
	// Returns domain.ErrSessionNotFound if the session has no log.
	Load(ctx context.Context, sessionID string) (domain.Bindings, error)

	// Delete removes the entire log for the session.
	Delete(ctx context.Context, sessionID string) error

	// List returns the IDs of all sessions with a log.
	List(ctx context.Context) ([]string, error)
}
