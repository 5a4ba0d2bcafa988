// Package sandbox runs Python code in an isolated pyodide interpreter
// hosted by a deno subprocess. The engine treats the runner as an opaque,
// possibly absent service: construction failure is a typed condition, not
// a nil sentinel, and the execution session degrades gracefully when it
// occurs.
package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/aretw0/canopy/internal/logging"
	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/ports"
)

// DefaultModule is the deno module implementing the pyodide runner. It
// reads code on stdin and writes a single JSON envelope
// {"stdout": ..., "stderr": ..., "result": ...} on stdout.
const DefaultModule = "jsr:@langchain/pyodide-sandbox"

// Config parameterizes the runner subprocess.
type Config struct {
	// Command is the runtime binary (default "deno").
	Command string
	// Module is the sandbox entry point (default DefaultModule).
	Module string
	// SessionsDir is where per-session interpreter state lives. The
	// runner uses it for its own session affinity; the engine never
	// reads it.
	SessionsDir string
	// AllowNet lets sandboxed code reach the network. Required for
	// execution-mode tool stubs, which connect back to the MCP server.
	AllowNet bool
}

// Pyodide implements ports.Interpreter by spawning one runner process per
// dispatch. Holding no live interpreter in-process means a crashed snippet
// can never take the engine down with it.
type Pyodide struct {
	command     string
	module      string
	sessionsDir string
	allowNet    bool
	logger      *slog.Logger
}

// Option configures the runner.
type Option func(*Pyodide)

// WithLogger configures a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pyodide) { p.logger = logger }
}

// NewPyodide validates the runtime and prepares the sessions directory.
// A missing runtime binary returns an error wrapping
// domain.ErrSandboxUnavailable so callers can classify it.
func NewPyodide(cfg Config, opts ...Option) (*Pyodide, error) {
	p := &Pyodide{
		command:     cfg.Command,
		module:      cfg.Module,
		sessionsDir: cfg.SessionsDir,
		allowNet:    cfg.AllowNet,
		logger:      logging.NewNop(),
	}
	if p.command == "" {
		p.command = "deno"
	}
	if p.module == "" {
		p.module = DefaultModule
	}
	if p.sessionsDir == "" {
		p.sessionsDir = "./sessions"
	}
	for _, opt := range opts {
		opt(p)
	}

	if _, err := exec.LookPath(p.command); err != nil {
		return nil, fmt.Errorf("%w: runtime %q not found: %v", domain.ErrSandboxUnavailable, p.command, err)
	}
	if err := os.MkdirAll(p.sessionsDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: preparing sessions dir: %v", domain.ErrSandboxUnavailable, err)
	}

	return p, nil
}

// Execute runs the code in the sandbox, addressed by sessionID so the
// runner can reuse its interpreter-level state across turns. Process or
// envelope failures are returned as Go errors; snippet-level problems
// travel inside the envelope.
func (p *Pyodide) Execute(ctx context.Context, code string, sessionID string) (ports.ExecOutput, error) {
	cmd := exec.CommandContext(ctx, p.command, p.args(sessionID)...)
	cmd.Stdin = strings.NewReader(code)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	p.logger.Debug("dispatching to sandbox", "session_id", sessionID, "code_bytes", len(code))

	if err := cmd.Run(); err != nil {
		return ports.ExecOutput{}, fmt.Errorf("sandbox process failed: %w (stderr: %s)",
			err, strings.TrimSpace(stderr.String()))
	}

	var out ports.ExecOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return ports.ExecOutput{}, fmt.Errorf("decoding sandbox envelope: %w", err)
	}
	return out, nil
}

// args builds the runner invocation for one dispatch.
func (p *Pyodide) args(sessionID string) []string {
	args := []string{"run", "--allow-read", "--allow-write"}
	if p.allowNet {
		args = append(args, "--allow-net")
	}
	args = append(args, p.module, "--stdin", "--sessions-dir", p.sessionsDir)
	if sessionID != "" {
		args = append(args, "--session-id", sessionID)
	}
	return args
}

// Healthy verifies the runtime binary still responds.
func (p *Pyodide) Healthy(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, p.command, "--version")
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrSandboxUnavailable, err)
	}
	return nil
}
