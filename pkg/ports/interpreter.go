package ports

import (
	"context"
	"encoding/json"
)

// ExecOutput is the raw outcome of one interpreter dispatch. Result holds
// the JSON-encoded value of the wrapped snippet (the locals snapshot or an
// {"error": ...} object); it may be empty when the snippet produced none.
type ExecOutput struct {
	Stdout string          `json:"stdout"`
	Stderr string          `json:"stderr"`
	Result json.RawMessage `json:"result,omitempty"`
}

// Interpreter is an isolated code interpreter backend. Execute runs the
// given code addressed by sessionID so that any interpreter-level session
// affinity is reused across turns. The engine treats this as an opaque
// service and tolerates it being entirely unavailable.
type Interpreter interface {
	Execute(ctx context.Context, code string, sessionID string) (ExecOutput, error)
}

// HealthChecker is optionally implemented by interpreters that can verify
// their backing runtime without running code.
type HealthChecker interface {
	Healthy(ctx context.Context) error
}
