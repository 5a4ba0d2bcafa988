// Package selector projects conversation intent onto a bounded subset of
// the tool catalog using a reasoning model. Selection is strictly
// fail-open: any parse or selection failure returns the full catalog
// unfiltered, never an empty set. Availability beats precision here; a
// fail-closed reading would strand the user with zero tools.
package selector

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/aretw0/canopy/internal/logging"
	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/observability"
	"github.com/aretw0/canopy/pkg/ports"
)

// DefaultMaxTools bounds the selected subset.
const DefaultMaxTools = 15

// recentWindow is how many trailing messages are shown to the model.
const recentWindow = 5

// Selector asks the reflect model which tools the conversation needs.
type Selector struct {
	model    ports.ModelClient
	maxTools int
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// Option configures the Selector.
type Option func(*Selector)

// WithMaxTools overrides the subset bound (default 15).
func WithMaxTools(n int) Option {
	return func(s *Selector) {
		if n > 0 {
			s.maxTools = n
		}
	}
}

// WithLogger configures a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Selector) { s.logger = logger }
}

// WithMetrics wires the shared instrument set.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Selector) { s.metrics = m }
}

// New creates a Selector over the given reasoning model.
func New(model ports.ModelClient, opts ...Option) *Selector {
	s := &Selector{
		model:    model,
		maxTools: DefaultMaxTools,
		logger:   logging.NewNop(),
		metrics:  observability.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Select returns the catalog subset relevant to the conversation.
//
// Short-circuits: no messages returns the full catalog without a model
// call; an empty catalog returns an empty catalog. Everything after that
// degrades to the full catalog on failure.
func (s *Selector) Select(ctx context.Context, messages []domain.Message, catalog domain.Catalog) domain.Catalog {
	if len(messages) == 0 {
		s.logger.Info("no messages provided, returning all tools")
		return catalog
	}
	if len(catalog) == 0 {
		s.logger.Info("no tools available")
		return catalog
	}

	prompt, err := buildPrompt(messages, catalog)
	if err != nil {
		return s.failOpen(catalog, "building selection prompt", err)
	}

	response, err := s.model.Invoke(ctx, prompt)
	if err != nil {
		return s.failOpen(catalog, "selection model call", err)
	}

	verdict, err := parseVerdict(response)
	if err != nil {
		return s.failOpen(catalog, "parsing selection verdict", err)
	}

	names := verdict.ToolNames
	if len(names) > s.maxTools {
		names = names[:s.maxTools]
		s.logger.Info("limited selected tools", "max_tools", s.maxTools)
	}

	if verdict.TaskPlan != "" {
		s.logger.Info("task plan", "plan", verdict.TaskPlan)
	}

	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}

	selected := make(domain.Catalog, 0, len(names))
	for _, tool := range catalog {
		if wanted[tool.Name] {
			selected = append(selected, tool)
		}
	}

	if len(selected) == 0 {
		s.logger.Warn("no tools matched the selection verdict, returning all tools")
		s.metrics.SelectorFallbacks.Inc()
		return catalog
	}

	s.logger.Info("selected tools",
		"selected", len(selected),
		"available", len(catalog),
		"names", selected.Names(),
	)
	s.metrics.SelectedTools.Observe(float64(len(selected)))
	return selected
}

func (s *Selector) failOpen(catalog domain.Catalog, stage string, err error) domain.Catalog {
	s.logger.Error("tool selection failed, returning all tools", "stage", stage, "err", err)
	s.metrics.SelectorFallbacks.Inc()
	return catalog
}

// parseVerdict decodes the model output into a Verdict, tolerating minor
// JSON malformation via a repair pass. Missing or malformed tool_names is
// an error so the caller can fail open.
func parseVerdict(response string) (domain.Verdict, error) {
	repaired := Repair(response)

	var raw map[string]any
	if err := json.Unmarshal([]byte(repaired), &raw); err != nil {
		return domain.Verdict{}, fmt.Errorf("decoding verdict: %w", err)
	}

	rawNames, ok := raw["tool_names"]
	if !ok {
		return domain.Verdict{}, fmt.Errorf("verdict missing tool_names")
	}
	if _, isList := rawNames.([]any); !isList {
		return domain.Verdict{}, fmt.Errorf("verdict tool_names is not a list")
	}

	var verdict domain.Verdict
	if err := mapstructure.Decode(raw, &verdict); err != nil {
		return domain.Verdict{}, fmt.Errorf("mapping verdict: %w", err)
	}
	return verdict, nil
}

func buildPrompt(messages []domain.Message, catalog domain.Catalog) (string, error) {
	recent := messages
	if len(recent) > recentWindow {
		recent = recent[len(recent)-recentWindow:]
	}

	messagesJSON, err := json.Marshal(recent)
	if err != nil {
		return "", err
	}

	type toolSummary struct {
		Name        string          `json:"name"`
		Description string          `json:"description"`
		InputSchema json.RawMessage `json:"input_schema,omitempty"`
	}
	summaries := make([]toolSummary, 0, len(catalog))
	for _, t := range catalog {
		summaries = append(summaries, toolSummary{t.Name, t.Description, t.InputSchema})
	}
	toolsJSON, err := json.Marshal(summaries)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(`You are an AI assistant tasked with selecting the most relevant tools for a conversation based on user intent.
Given the conversation history below and a list of available tools, create a structured plan and select the tools that are most likely needed to fulfill the user's request.

Conversation History:
`)
	b.Write(messagesJSON)
	b.WriteString("\n\nAvailable Tools:\n")
	b.Write(toolsJSON)
	b.WriteString(`

ANALYSIS INSTRUCTIONS:
1. Analyze the user's most recent message to understand their core intent and needs.
2. Break down the user's request into specific tasks that need to be completed (task decomposition).
3. For each task, identify the specific tools needed to complete it successfully.
4. Consider potential edge cases or alternative approaches that might require additional tools.

TOOL SELECTION INSTRUCTIONS:
1. Select ALL tools that are DIRECTLY relevant to accomplishing ANY part of the user's request.
2. For complex tasks, make sure to include ALL required tools for the complete workflow:
   - Tools for retrieving existing content/data
   - Tools for creating/modifying content
   - Tools for specialized operations (search, transformation, analysis)
3. Include tools for subtasks that are not explicitly mentioned but are necessary to complete the request.
4. When working with external services, include tools for both fetching data AND modifying/creating content.

Return your response in the following JSON format. ONLY return this JSON format and nothing else:
{
    "task_plan": "Brief description of how you plan to approach the user's request, breaking it down into steps",
    "tool_names": ["tool_name_1", "tool_name_2", ...]
}

Result JSON:
`)
	return b.String(), nil
}
