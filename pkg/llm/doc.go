// Package llm constructs the reasoning model clients used by the engine.
//
// Two interchangeable providers (OpenAI and Anthropic) are exposed behind
// the same prompt-in/text-out interface, each independently wrapped with a
// transient-failure retry policy.
package llm
