package session_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/ports"
	"github.com/aretw0/canopy/pkg/session"
)

// fakeInterpreter records the program it was handed and replays a canned
// outcome.
type fakeInterpreter struct {
	lastCode      string
	lastSessionID string
	out           ports.ExecOutput
	err           error
}

func (f *fakeInterpreter) Execute(ctx context.Context, code string, sessionID string) (ports.ExecOutput, error) {
	f.lastCode = code
	f.lastSessionID = sessionID
	return f.out, f.err
}

func catalog() domain.Catalog {
	return domain.Catalog{
		{Name: "get-weather", Description: "Weather lookup.", InputSchema: json.RawMessage(`{"type":"object","properties":{"city":{"type":"string"}},"required":["city"]}`)},
	}
}

func TestExecutor_SuccessDiffsNewBindings(t *testing.T) {
	interp := &fakeInterpreter{out: ports.ExecOutput{
		Stdout: "21C\n",
		Result: json.RawMessage(`{"temp": 21, "city": "Lisbon", "_scratch": true, "get_weather": null}`),
	}}
	exec := session.NewExecutor(interp, "http://127.0.0.1:8000/sse")

	prior := domain.Bindings{"city": {Value: "Lisbon"}}
	res, err := exec.Execute(context.Background(), "s1", "print(await get_weather(city))", prior, catalog())
	require.NoError(t, err)

	assert.True(t, res.OK())
	assert.Equal(t, "21C\n", res.Stdout)
	assert.Equal(t, "s1", interp.lastSessionID)

	// Only the genuinely new variable survives the diff: prior keys,
	// underscore plumbing, and injected tool declarations are dropped.
	require.Len(t, res.NewBindings, 1)
	assert.Equal(t, json.Number("21"), res.NewBindings["temp"].Value)
}

func TestExecutor_EmptyStdoutGetsSentinel(t *testing.T) {
	interp := &fakeInterpreter{out: ports.ExecOutput{Result: json.RawMessage(`{}`)}}
	exec := session.NewExecutor(interp, "http://127.0.0.1:8000/sse")

	res, err := exec.Execute(context.Background(), "s1", "x = 1", nil, catalog())
	require.NoError(t, err)
	assert.Equal(t, session.NoOutputSentinel, res.Stdout)
}

func TestExecutor_StderrIsTransportError(t *testing.T) {
	interp := &fakeInterpreter{out: ports.ExecOutput{Stderr: "broken pipe"}}
	exec := session.NewExecutor(interp, "http://127.0.0.1:8000/sse")

	res, err := exec.Execute(context.Background(), "s1", "x = 1", nil, catalog())
	require.NoError(t, err)
	assert.Equal(t, domain.ErrTransport, res.ErrKind)
	assert.Equal(t, "Error during execution: broken pipe", res.Stdout)
	assert.Empty(t, res.NewBindings)
}

func TestExecutor_ErrorResultIsRuntimeError(t *testing.T) {
	interp := &fakeInterpreter{out: ports.ExecOutput{
		Stdout: "Error: boom\n",
		Result: json.RawMessage(`{"error": "boom"}`),
	}}
	exec := session.NewExecutor(interp, "http://127.0.0.1:8000/sse")

	res, err := exec.Execute(context.Background(), "s1", "raise ValueError('boom')", nil, catalog())
	require.NoError(t, err)
	assert.Equal(t, domain.ErrRuntime, res.ErrKind)
	assert.Equal(t, "Error during execution: boom", res.Stdout)
	assert.Empty(t, res.NewBindings)
}

func TestExecutor_DispatchFailureIsSandboxError(t *testing.T) {
	interp := &fakeInterpreter{err: errors.New("deno: executable not found")}
	exec := session.NewExecutor(interp, "http://127.0.0.1:8000/sse")

	res, err := exec.Execute(context.Background(), "s1", "x = 1", nil, catalog())
	require.NoError(t, err)
	assert.Equal(t, domain.ErrSandbox, res.ErrKind)
	assert.Contains(t, res.Stdout, "Error during sandbox execution")
}

func TestExecutor_NameCollisionRejected(t *testing.T) {
	tools := domain.Catalog{
		{Name: "get-weather", Description: "a"},
		{Name: "get.weather", Description: "b"},
	}
	exec := session.NewExecutor(&fakeInterpreter{}, "http://127.0.0.1:8000/sse")

	_, err := exec.Execute(context.Background(), "s1", "x = 1", nil, tools)
	assert.ErrorIs(t, err, domain.ErrIdentifierCollision)
}

func TestExecutor_ComposedProgram(t *testing.T) {
	interp := &fakeInterpreter{out: ports.ExecOutput{Result: json.RawMessage(`{}`)}}
	exec := session.NewExecutor(interp, "http://sandbox.test/sse")

	prior := domain.Bindings{
		"city":  {Value: "Lisbon"},
		"greet": {Source: "def greet(n):\n    return n\n", Callable: true},
	}
	_, err := exec.Execute(context.Background(), "s1", "print(city)", prior, catalog())
	require.NoError(t, err)

	program := interp.lastCode
	assert.Contains(t, program, "city = 'Lisbon'")
	assert.Contains(t, program, "def greet(n):")
	assert.Contains(t, program, `SSETransport("http://sandbox.test/sse")`)
	assert.Contains(t, program, "async def get_weather(city: str):")
	assert.Contains(t, program, "            print(city)")
	assert.Contains(t, program, "            return locals()")
	assert.Contains(t, program, "await execute()")

	// Rehydration comes before the wrapper so the snippet sees the
	// values as globals.
	assert.Less(t, strings.Index(program, "city = 'Lisbon'"), strings.Index(program, "async def execute():"))
}

func TestExecutor_CallableWithoutSourceSkipped(t *testing.T) {
	interp := &fakeInterpreter{out: ports.ExecOutput{Result: json.RawMessage(`{}`)}}
	exec := session.NewExecutor(interp, "http://127.0.0.1:8000/sse")

	prior := domain.Bindings{"mystery": {Callable: true}}
	_, err := exec.Execute(context.Background(), "s1", "x = 1", prior, catalog())
	require.NoError(t, err)
	assert.NotContains(t, interp.lastCode, "mystery")
}

type recordingAudit struct {
	sessions []string
	codes    []string
	err      error
}

func (r *recordingAudit) Record(ctx context.Context, sessionID string, code string) error {
	r.sessions = append(r.sessions, sessionID)
	r.codes = append(r.codes, code)
	return r.err
}

func TestExecutor_AuditFailureIsNonFatal(t *testing.T) {
	audit := &recordingAudit{err: errors.New("disk full")}
	interp := &fakeInterpreter{out: ports.ExecOutput{Result: json.RawMessage(`{"x": 1}`)}}
	exec := session.NewExecutor(interp, "http://127.0.0.1:8000/sse", session.WithAuditLog(audit))

	res, err := exec.Execute(context.Background(), "s1", "x = 1", nil, catalog())
	require.NoError(t, err)
	assert.True(t, res.OK())
	assert.Equal(t, []string{"x = 1"}, audit.codes)
}
