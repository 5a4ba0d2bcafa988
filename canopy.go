package canopy

import (
	"fmt"
	"log/slog"

	"github.com/aretw0/canopy/internal/logging"
	"github.com/aretw0/canopy/pkg/observability"
	"github.com/aretw0/canopy/pkg/ports"
	"github.com/aretw0/canopy/pkg/selector"
	"github.com/aretw0/canopy/pkg/session"
)

// Version is the engine version advertised to MCP servers and the CLI.
const Version = "0.1.0"

// DefaultMaxTurns bounds one Run: each act-model call that produces code
// (and its execution) consumes a turn.
const DefaultMaxTurns = 25

// Agent is the high-level entry point for the Canopy engine.
// It wires the tool transport, the execution session, and the models into
// the act / reflect / execute loop.
type Agent struct {
	actModel   ports.ModelClient
	transport  ports.ToolTransport
	executor   *session.Executor
	sessions   *session.Manager
	selector   *selector.Selector
	gate       *Gate
	basePrompt string
	maxTurns   int
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// Option defines a functional option for configuring the Agent.
type Option func(*Agent)

// WithSelector enables relevance-based tool narrowing before each Run.
// Without it the full discovered catalog is exposed to the model.
func WithSelector(s *selector.Selector) Option {
	return func(a *Agent) {
		a.selector = s
	}
}

// WithGate enables the reflection pass that reviews generated code before
// it is executed.
func WithGate(g *Gate) Option {
	return func(a *Agent) {
		a.gate = g
	}
}

// WithBasePrompt prepends domain instructions to the generated system
// prompt.
func WithBasePrompt(prompt string) Option {
	return func(a *Agent) {
		a.basePrompt = prompt
	}
}

// WithMaxTurns overrides the turn budget for a Run.
func WithMaxTurns(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.maxTurns = n
		}
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Agent) {
		a.logger = logger
	}
}

// WithMetrics wires engine counters into a shared metrics set.
func WithMetrics(m *observability.Metrics) Option {
	return func(a *Agent) {
		a.metrics = m
	}
}

// New initializes a new Canopy Agent. The act model writes the code, the
// transport discovers tools, the executor runs snippets, and the manager
// persists bindings between them.
func New(actModel ports.ModelClient, transport ports.ToolTransport, executor *session.Executor, sessions *session.Manager, opts ...Option) (*Agent, error) {
	if actModel == nil {
		return nil, fmt.Errorf("act model is required")
	}
	if transport == nil {
		return nil, fmt.Errorf("tool transport is required")
	}
	if executor == nil {
		return nil, fmt.Errorf("executor is required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("session manager is required")
	}

	a := &Agent{
		actModel:  actModel,
		transport: transport,
		executor:  executor,
		sessions:  sessions,
		maxTurns:  DefaultMaxTurns,
		logger:    logging.NewNop(),
		metrics:   observability.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}
