package ports

import "context"

// ModelClient is a reasoning model exposed as plain prompt-in/text-out.
// The engine uses two roles: an "act" model that writes code and a
// "reflect" model that reviews it and selects tools. Implementations are
// expected to be safe for concurrent use.
type ModelClient interface {
	Invoke(ctx context.Context, prompt string) (string, error)
}
