package ports

import "context"

// AuditLog records submitted code snippets for later inspection. It is a
// side channel: failures must be tolerated by callers and never abort the
// execution they describe.
type AuditLog interface {
	Record(ctx context.Context, sessionID string, code string) error
}
