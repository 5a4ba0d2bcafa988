package canopy_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/canopy"
	"github.com/aretw0/canopy/pkg/adapters/memory"
	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/ports"
	"github.com/aretw0/canopy/pkg/session"
)

// scriptedModel replays canned replies in order and records the prompts
// it was asked.
type scriptedModel struct {
	replies []string
	prompts []string
	err     error
}

func (m *scriptedModel) Invoke(ctx context.Context, prompt string) (string, error) {
	m.prompts = append(m.prompts, prompt)
	if m.err != nil {
		return "", m.err
	}
	if len(m.replies) == 0 {
		return "", errors.New("script exhausted")
	}
	reply := m.replies[0]
	m.replies = m.replies[1:]
	return reply, nil
}

type fakeTransport struct {
	tools domain.Catalog
	err   error
}

func (t *fakeTransport) ListTools(ctx context.Context) (domain.Catalog, error) {
	return t.tools, t.err
}

func (t *fakeTransport) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	return nil, errors.New("not implemented")
}

type fakeInterpreter struct {
	programs []string
	outs     []ports.ExecOutput
}

func (f *fakeInterpreter) Execute(ctx context.Context, code string, sessionID string) (ports.ExecOutput, error) {
	f.programs = append(f.programs, code)
	if len(f.outs) == 0 {
		return ports.ExecOutput{Result: json.RawMessage(`{}`)}, nil
	}
	out := f.outs[0]
	f.outs = f.outs[1:]
	return out, nil
}

func weatherCatalog() domain.Catalog {
	return domain.Catalog{
		{Name: "get-weather", Description: "Weather lookup.", InputSchema: json.RawMessage(`{"type":"object","properties":{"city":{"type":"string"}},"required":["city"]}`)},
	}
}

func newTestAgent(t *testing.T, act *scriptedModel, interp *fakeInterpreter, opts ...canopy.Option) (*canopy.Agent, *session.Manager) {
	t.Helper()
	mgr := session.NewManager(memory.NewStore())
	exec := session.NewExecutor(interp, "http://127.0.0.1:8000/sse")
	agent, err := canopy.New(act, &fakeTransport{tools: weatherCatalog()}, exec, mgr, opts...)
	require.NoError(t, err)
	return agent, mgr
}

func TestAgent_PlainTextIsTerminal(t *testing.T) {
	act := &scriptedModel{replies: []string{"The weather service is unavailable right now."}}
	interp := &fakeInterpreter{}
	agent, _ := newTestAgent(t, act, interp)

	conv, err := agent.Run(context.Background(), "s1", []domain.Message{domain.UserMessage("what's the weather?")})
	require.NoError(t, err)

	require.Len(t, conv, 2)
	assert.Equal(t, domain.RoleAssistant, conv[1].Role)
	assert.Empty(t, interp.programs)

	// The system prompt presents tools as elided Python declarations.
	require.Len(t, act.prompts, 1)
	assert.Contains(t, act.prompts[0], "async def get_weather(city: str):")
	assert.Contains(t, act.prompts[0], "    ...")
}

func TestAgent_CodeExecutesAndBindingsPersist(t *testing.T) {
	act := &scriptedModel{replies: []string{
		"```python\nw = await get_weather(\"Lisbon\")\nprint(w)\n```",
		"It is 21C in Lisbon.",
	}}
	interp := &fakeInterpreter{outs: []ports.ExecOutput{
		{Stdout: "21C\n", Result: json.RawMessage(`{"w": "21C"}`)},
	}}
	agent, mgr := newTestAgent(t, act, interp)

	conv, err := agent.Run(context.Background(), "s1", []domain.Message{domain.UserMessage("weather in Lisbon?")})
	require.NoError(t, err)

	// user, assistant code, observation, assistant answer
	require.Len(t, conv, 4)
	assert.Equal(t, "21C\n", conv[2].Content)
	assert.Equal(t, domain.RoleUser, conv[2].Role)

	require.Len(t, interp.programs, 1)
	assert.Contains(t, interp.programs[0], `await get_weather("Lisbon")`)

	bindings, err := mgr.Load(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "21C", bindings["w"].Value)
}

func TestAgent_ObservationFeedsNextTurn(t *testing.T) {
	act := &scriptedModel{replies: []string{
		"```python\nprint(1)\n```",
		"done",
	}}
	interp := &fakeInterpreter{outs: []ports.ExecOutput{
		{Stdout: "1\n", Result: json.RawMessage(`{}`)},
	}}
	agent, _ := newTestAgent(t, act, interp)

	_, err := agent.Run(context.Background(), "s1", []domain.Message{domain.UserMessage("count")})
	require.NoError(t, err)

	require.Len(t, act.prompts, 2)
	assert.Contains(t, act.prompts[1], "1\n")
}

func TestAgent_TurnBudgetReturnsPartialConversation(t *testing.T) {
	act := &scriptedModel{replies: []string{
		"```python\nx = 1\n```",
		"```python\ny = 2\n```",
		"```python\nz = 3\n```",
	}}
	interp := &fakeInterpreter{}
	agent, _ := newTestAgent(t, act, interp, canopy.WithMaxTurns(2))

	conv, err := agent.Run(context.Background(), "s1", []domain.Message{domain.UserMessage("loop forever")})
	require.NoError(t, err)

	// Two turns ran, each adding an assistant and an observation message.
	assert.Len(t, conv, 5)
	assert.Len(t, interp.programs, 2)
}

func TestAgent_SandboxFailureBecomesObservation(t *testing.T) {
	act := &scriptedModel{replies: []string{
		"```python\nx = 1\n```",
		"I could not run the code.",
	}}
	interp := &fakeInterpreter{outs: []ports.ExecOutput{
		{Stderr: "connection refused"},
	}}
	agent, mgr := newTestAgent(t, act, interp)

	conv, err := agent.Run(context.Background(), "s1", []domain.Message{domain.UserMessage("go")})
	require.NoError(t, err)

	var observation string
	for _, msg := range conv {
		if msg.Role == domain.RoleUser && strings.Contains(msg.Content, "Error during execution") {
			observation = msg.Content
		}
	}
	assert.Contains(t, observation, "connection refused")

	// Failed executions never persist bindings.
	_, err = mgr.Load(context.Background(), "s1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestAgent_ReflectionRevisesCode(t *testing.T) {
	act := &scriptedModel{replies: []string{
		"```python\nimport asyncio\nasyncio.run(main())\n```",
		"```python\nawait main()\n```",
		"all done",
	}}
	reviewer := &scriptedModel{replies: []string{
		"Rule 1: do not use asyncio.run().",
		"NONE",
	}}
	interp := &fakeInterpreter{outs: []ports.ExecOutput{
		{Stdout: "ok\n", Result: json.RawMessage(`{}`)},
	}}
	agent, _ := newTestAgent(t, act, interp, canopy.WithGate(canopy.NewGate(reviewer)))

	_, err := agent.Run(context.Background(), "s1", []domain.Message{domain.UserMessage("run main")})
	require.NoError(t, err)

	// The revised snippet ran, not the rejected one.
	require.Len(t, interp.programs, 1)
	assert.Contains(t, interp.programs[0], "await main()")
	assert.NotContains(t, interp.programs[0], "asyncio.run")
}

func TestAgent_ReflectionBudgetRunsLastCandidate(t *testing.T) {
	act := &scriptedModel{replies: []string{
		"```python\nx = 1\n```",
		"```python\nx = 2\n```",
		"```python\nx = 3\n```",
		"done",
	}}
	reviewer := &scriptedModel{replies: []string{"bad", "still bad"}}
	interp := &fakeInterpreter{outs: []ports.ExecOutput{
		{Stdout: "ok\n", Result: json.RawMessage(`{}`)},
	}}
	gate := canopy.NewGate(reviewer, canopy.WithMaxRounds(2))
	agent, _ := newTestAgent(t, act, interp, canopy.WithGate(gate))

	_, err := agent.Run(context.Background(), "s1", []domain.Message{domain.UserMessage("go")})
	require.NoError(t, err)

	require.Len(t, interp.programs, 1)
	assert.Contains(t, interp.programs[0], "x = 3")
}

func TestAgent_ReviewerErrorAcceptsCode(t *testing.T) {
	act := &scriptedModel{replies: []string{
		"```python\nx = 1\n```",
		"done",
	}}
	reviewer := &scriptedModel{err: errors.New("reviewer down")}
	interp := &fakeInterpreter{outs: []ports.ExecOutput{
		{Stdout: "ok\n", Result: json.RawMessage(`{}`)},
	}}
	agent, _ := newTestAgent(t, act, interp, canopy.WithGate(canopy.NewGate(reviewer)))

	_, err := agent.Run(context.Background(), "s1", []domain.Message{domain.UserMessage("go")})
	require.NoError(t, err)
	assert.Len(t, interp.programs, 1)
}

func TestAgent_ToolDiscoveryFailureIsFatal(t *testing.T) {
	mgr := session.NewManager(memory.NewStore())
	exec := session.NewExecutor(&fakeInterpreter{}, "http://127.0.0.1:8000/sse")
	agent, err := canopy.New(
		&scriptedModel{},
		&fakeTransport{err: errors.New("mcp server unreachable")},
		exec, mgr,
	)
	require.NoError(t, err)

	_, err = agent.Run(context.Background(), "s1", []domain.Message{domain.UserMessage("go")})
	assert.ErrorContains(t, err, "discovering tools")
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := canopy.New(nil, &fakeTransport{}, nil, nil)
	assert.Error(t, err)
}
