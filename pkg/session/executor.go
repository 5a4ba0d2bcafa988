package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/aretw0/canopy/internal/logging"
	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/naming"
	"github.com/aretw0/canopy/pkg/observability"
	"github.com/aretw0/canopy/pkg/ports"
	"github.com/aretw0/canopy/pkg/stub"
)

// NoOutputSentinel stands in for stdout when a snippet ran to completion
// without printing anything. The model is told about it in the system
// prompt, so it learns to print what it wants to see.
const NoOutputSentinel = "<Code ran, no output printed to stdout>"

// Executor runs one snippet against the interpreter. It is stateless:
// everything a dispatch needs (prior bindings, active tools) is passed in,
// so concurrent sessions can share a single Executor.
type Executor struct {
	interp  ports.Interpreter
	sseURL  string
	logger  *slog.Logger
	metrics *observability.Metrics
	audit   ports.AuditLog
}

// ExecutorOption configures the Executor.
type ExecutorOption func(*Executor)

// WithExecutorLogger configures a logger for dispatch events.
func WithExecutorLogger(logger *slog.Logger) ExecutorOption {
	return func(e *Executor) {
		e.logger = logger
	}
}

// WithExecutorMetrics wires execution counters and latency histograms.
func WithExecutorMetrics(m *observability.Metrics) ExecutorOption {
	return func(e *Executor) {
		e.metrics = m
	}
}

// WithAuditLog records every submitted snippet. Audit failures are logged
// and never abort the execution they describe.
func WithAuditLog(audit ports.AuditLog) ExecutorOption {
	return func(e *Executor) {
		e.audit = audit
	}
}

// NewExecutor creates an Executor over the given interpreter. sseURL is
// the tool endpoint the sandboxed code connects back to.
func NewExecutor(interp ports.Interpreter, sseURL string, opts ...ExecutorOption) *Executor {
	e := &Executor{
		interp:  interp,
		sseURL:  sseURL,
		logger:  logging.NewNop(),
		metrics: observability.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs code for the session with the prior bindings in scope and
// the given tools callable. Sandbox, transport, and runtime failures are
// reported inside the ExecutionResult, never as a Go error; the error
// return is reserved for unrenderable inputs such as a tool subset whose
// names collide.
func (e *Executor) Execute(ctx context.Context, sessionID string, code string, prior domain.Bindings, tools domain.Catalog) (domain.ExecutionResult, error) {
	table, err := naming.NewTable(tools)
	if err != nil {
		return domain.ExecutionResult{}, err
	}

	stubs, err := stub.NewGenerator(table).RenderAll(tools, stub.ModeExec)
	if err != nil {
		return domain.ExecutionResult{}, fmt.Errorf("rendering tool declarations: %w", err)
	}

	program := e.compose(code, prior, table, stubs)

	if e.audit != nil {
		if auditErr := e.audit.Record(ctx, sessionID, code); auditErr != nil {
			e.logger.Warn("audit record failed", "session_id", sessionID, "err", auditErr)
		}
	}

	start := time.Now()
	out, err := e.interp.Execute(ctx, program, sessionID)
	elapsed := time.Since(start)

	result := e.classify(out, err, prior, table)
	e.metrics.ObserveExecution(result.ErrKind.String(), elapsed)
	e.logger.Debug("snippet executed",
		"session_id", sessionID,
		"outcome", result.ErrKind.String(),
		"new_bindings", len(result.NewBindings),
		"elapsed", elapsed,
	)
	return result, nil
}

// compose assembles the full program: rehydrated bindings, then the async
// wrapper holding the tool declarations and the snippet. The wrapper's
// locals() snapshot is the dispatch result; any exception inside it is
// printed and substituted with an error object so execute itself never
// raises.
func (e *Executor) compose(code string, prior domain.Bindings, table *naming.Table, stubs string) string {
	var b strings.Builder

	b.WriteString(rehydrate(prior, table))

	b.WriteString("import json\n\n")
	b.WriteString("async def execute():\n")
	b.WriteString("    try:\n")
	b.WriteString("        from fastmcp import Client, client\n")
	fmt.Fprintf(&b, "        _transport = client.transports.SSETransport(%q)\n", e.sseURL)
	b.WriteString("        async with Client(transport=_transport) as _mcp_client:\n")
	if stubs != "" {
		b.WriteString(stub.Indent(stubs, 3))
		if !strings.HasSuffix(stubs, "\n") {
			b.WriteString("\n")
		}
	}
	b.WriteString(stub.Indent(strings.TrimSpace(code), 3))
	b.WriteString("\n")
	b.WriteString("            return locals()\n")
	b.WriteString("    except Exception as e:\n")
	b.WriteString("        import traceback\n")
	b.WriteString("        print(f\"Error: {e}\")\n")
	b.WriteString("        print(traceback.format_exc())\n")
	b.WriteString("        return {\"error\": str(e)}\n")
	b.WriteString("\n")
	b.WriteString("await execute()\n")

	return b.String()
}

// rehydrate re-declares prior bindings ahead of the wrapper so the
// snippet sees them as module globals. Callables shadowed by an active
// tool are skipped: the live declaration wins. Callables without a
// recorded source cannot be reconstructed and are skipped too.
func rehydrate(prior domain.Bindings, table *naming.Table) string {
	if len(prior) == 0 {
		return ""
	}

	names := make([]string, 0, len(prior))
	for name := range prior {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		binding := prior[name]
		if binding.Callable {
			if binding.Source == "" || table.Has(name) {
				continue
			}
			b.WriteString(binding.Source)
			if !strings.HasSuffix(binding.Source, "\n") {
				b.WriteString("\n")
			}
			continue
		}
		fmt.Fprintf(&b, "%s = %s\n", name, stub.Repr(binding.Value))
	}
	b.WriteString("\n")
	return b.String()
}

// classify folds the raw dispatch outcome into an ExecutionResult.
func (e *Executor) classify(out ports.ExecOutput, err error, prior domain.Bindings, table *naming.Table) domain.ExecutionResult {
	if err != nil {
		return domain.ExecutionResult{
			Stdout:  fmt.Sprintf("Error during sandbox execution: %v", err),
			ErrKind: domain.ErrSandbox,
		}
	}

	if out.Stderr != "" {
		return domain.ExecutionResult{
			Stdout:  "Error during execution: " + out.Stderr,
			ErrKind: domain.ErrTransport,
		}
	}

	snapshot := decodeSnapshot(out.Result)
	if msg, ok := snapshot["error"]; ok {
		return domain.ExecutionResult{
			Stdout:  fmt.Sprintf("Error during execution: %v", msg),
			ErrKind: domain.ErrRuntime,
		}
	}

	stdout := out.Stdout
	if stdout == "" {
		stdout = NoOutputSentinel
	}

	return domain.ExecutionResult{
		Stdout:      stdout,
		NewBindings: diffBindings(snapshot, prior, table),
		ErrKind:     domain.ErrNone,
	}
}

// decodeSnapshot parses the locals() snapshot, preserving numeric
// precision so bindings round-trip through Repr unchanged. A missing or
// non-object result decodes to an empty snapshot.
func decodeSnapshot(raw json.RawMessage) map[string]any {
	if len(raw) == 0 {
		return map[string]any{}
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	snapshot := map[string]any{}
	if err := dec.Decode(&snapshot); err != nil {
		return map[string]any{}
	}
	return snapshot
}

// diffBindings extracts the variables the snippet introduced: keys not
// previously bound, not interpreter plumbing (underscore-prefixed), and
// not one of the injected tool declarations.
func diffBindings(snapshot map[string]any, prior domain.Bindings, table *naming.Table) domain.Bindings {
	delta := domain.Bindings{}
	for name, value := range snapshot {
		if strings.HasPrefix(name, "_") || prior.Has(name) || table.Has(name) {
			continue
		}
		delta[name] = domain.Binding{Value: value}
	}
	if len(delta) == 0 {
		return nil
	}
	return delta
}
