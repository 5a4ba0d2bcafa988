package canopy

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aretw0/canopy/internal/logging"
	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/ports"
)

// DefaultMaxReflectionRounds bounds how many times one snippet can be sent
// back for revision before it runs as-is.
const DefaultMaxReflectionRounds = 3

// acceptToken is the reviewer's verbatim approval signal.
const acceptToken = "NONE"

const reflectionRubric = `You are a code quality reviewer examining the conversation between a user and an AI assistant.
The user evaluates the assistant's code and either returns execution results or points out corrections needed.

Check for these quality issues in code:

1. The code should NOT use asyncio.run(). The code is already running in an async context,
   so the correct approach is to directly await async functions.

2. The code should use triple quotes (""") for multi-line strings, not single quotes with \n.
   This applies even if the string contains \n as a character combination rather than actual new lines.

3. The code should use print() for outputs that need inspection.
   Simply returning values will not display them back to the assistant for inspection.

4. Before building a solution, the code should first explore unknown tool outputs
   to understand their schema and content, as the assistant doesn't know the output format in advance.

5. The code should reference existing variables and previously computed data instead of
   duplicating or recreating large data structures. Specifically, when data is retrieved from
   tool execution or API calls, DO NOT hardcode those results in subsequent code snippets.
   Instead, refer to the variables that contain the execution results. Reuse what's already available.

6. Remember that although the conversation may contain several separate Python code snippets,
   they share the same execution context. Variables, functions, and imports defined in earlier
   snippets are available to later snippets. Avoid redefining or reimporting what's already available.

If the latest code snippet has none of these issues, reply with exactly NONE.
Otherwise, describe the issues so the assistant can revise the code.`

// Gate reviews generated code against a fixed rubric before execution.
// It is advisory: any reviewer failure accepts the code rather than
// blocking the run.
type Gate struct {
	model     ports.ModelClient
	maxRounds int
	logger    *slog.Logger
}

// GateOption configures the Gate.
type GateOption func(*Gate)

// WithMaxRounds overrides the revision budget per snippet.
func WithMaxRounds(n int) GateOption {
	return func(g *Gate) {
		if n > 0 {
			g.maxRounds = n
		}
	}
}

// WithGateLogger configures a logger for review outcomes.
func WithGateLogger(logger *slog.Logger) GateOption {
	return func(g *Gate) {
		g.logger = logger
	}
}

// NewGate creates a reflection Gate over the given reviewer model.
func NewGate(model ports.ModelClient, opts ...GateOption) *Gate {
	g := &Gate{
		model:     model,
		maxRounds: DefaultMaxReflectionRounds,
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// MaxRounds returns the revision budget per snippet.
func (g *Gate) MaxRounds() int {
	return g.maxRounds
}

// Review asks the reviewer model to check the candidate code in the
// context of the conversation. It returns empty feedback when the code is
// accepted, or the reviewer's objections when it should be revised.
func (g *Gate) Review(ctx context.Context, conversation []domain.Message, code string) string {
	var b strings.Builder
	b.WriteString(reflectionRubric)
	b.WriteString("\n\nConversation so far:\n")
	for _, msg := range conversation {
		fmt.Fprintf(&b, "\n%s: %s\n", roleLabel(msg.Role), msg.Content)
	}
	b.WriteString("\nLatest code snippet:\n```python\n")
	b.WriteString(code)
	b.WriteString("\n```\n")

	reply, err := g.model.Invoke(ctx, b.String())
	if err != nil {
		g.logger.Warn("reflection review failed, accepting code", "err", err)
		return ""
	}

	verdict := strings.TrimSpace(reply)
	if verdict == "" || strings.EqualFold(verdict, acceptToken) {
		return ""
	}
	return verdict
}
