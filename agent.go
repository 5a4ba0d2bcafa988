package canopy

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/aretw0/canopy/pkg/domain"
)

var codeFence = regexp.MustCompile("(?s)```(?:python|py)?[ \t]*\n(.*?)```")

// extractCode returns the first fenced code block in a model reply. An
// assistant turn without one is a plain-text answer for the user.
func extractCode(reply string) (string, bool) {
	match := codeFence.FindStringSubmatch(reply)
	if match == nil {
		return "", false
	}
	return match[1], true
}

// Run drives one conversation for the session until the model answers in
// plain text or the turn budget is exhausted. It returns the full
// conversation including the turns it appended; budget exhaustion is not
// an error, the caller gets the partial conversation.
func (a *Agent) Run(ctx context.Context, sessionID string, messages []domain.Message) ([]domain.Message, error) {
	catalog, err := a.transport.ListTools(ctx)
	if err != nil {
		return nil, fmt.Errorf("discovering tools: %w", err)
	}

	tools := catalog
	if a.selector != nil {
		tools = a.selector.Select(ctx, messages, catalog)
	}
	a.logger.Info("run started",
		"session_id", sessionID,
		"discovered_tools", len(catalog),
		"active_tools", len(tools),
	)

	system, err := systemPrompt(a.basePrompt, tools)
	if err != nil {
		return nil, fmt.Errorf("building system prompt: %w", err)
	}

	prior, err := a.sessions.LoadOrStart(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("loading session bindings: %w", err)
	}

	conversation := make([]domain.Message, len(messages))
	copy(conversation, messages)

	for turn := 0; turn < a.maxTurns; turn++ {
		if err := ctx.Err(); err != nil {
			return conversation, err
		}

		reply, err := a.act(ctx, system, conversation)
		if err != nil {
			return conversation, fmt.Errorf("act model: %w", err)
		}
		conversation = append(conversation, domain.AssistantMessage(reply))

		code, ok := extractCode(reply)
		if !ok {
			a.logger.Info("run finished", "session_id", sessionID, "turns", turn+1)
			return conversation, nil
		}

		if a.gate != nil {
			code, conversation, ok, err = a.reflect(ctx, system, conversation, code)
			if err != nil {
				return conversation, err
			}
			if !ok {
				// The revision dropped the code block: treat the last
				// assistant turn as the final answer.
				return conversation, nil
			}
		}

		result, err := a.executor.Execute(ctx, sessionID, code, prior, tools)
		if err != nil {
			return conversation, fmt.Errorf("executing snippet: %w", err)
		}

		conversation = append(conversation, domain.UserMessage(result.Stdout))
		a.metrics.Turns.Inc()

		if result.OK() && len(result.NewBindings) > 0 {
			if err := a.sessions.Append(ctx, sessionID, result.NewBindings); err != nil {
				return conversation, fmt.Errorf("persisting bindings: %w", err)
			}
			prior = prior.Merge(result.NewBindings)
		}
	}

	a.logger.Warn("turn budget exhausted", "session_id", sessionID, "max_turns", a.maxTurns)
	return conversation, nil
}

// act invokes the act model over the rendered conversation.
func (a *Agent) act(ctx context.Context, system string, conversation []domain.Message) (string, error) {
	start := time.Now()
	reply, err := a.actModel.Invoke(ctx, renderConversation(system, conversation))
	a.metrics.ObserveModelCall("act", time.Since(start))
	return reply, err
}

// reflect sends the candidate code through the Gate, feeding objections
// back to the act model until the reviewer accepts or the revision budget
// runs out. It returns the final code, the grown conversation, and
// whether there is still code to execute.
func (a *Agent) reflect(ctx context.Context, system string, conversation []domain.Message, code string) (string, []domain.Message, bool, error) {
	start := time.Now()
	defer func() {
		a.metrics.ObserveModelCall("reflect", time.Since(start))
	}()

	for round := 0; round < a.gate.MaxRounds(); round++ {
		feedback := a.gate.Review(ctx, conversation, code)
		if feedback == "" {
			return code, conversation, true, nil
		}
		a.metrics.ReflectionRounds.Inc()
		a.logger.Debug("code sent back for revision", "round", round+1)

		conversation = append(conversation, domain.UserMessage(feedback))
		reply, err := a.act(ctx, system, conversation)
		if err != nil {
			return "", conversation, false, fmt.Errorf("act model during revision: %w", err)
		}
		conversation = append(conversation, domain.AssistantMessage(reply))

		revised, ok := extractCode(reply)
		if !ok {
			return "", conversation, false, nil
		}
		code = revised
	}
	// Revision budget spent: run the last candidate as-is.
	return code, conversation, true, nil
}
