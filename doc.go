// Package canopy is a code-acting agent engine: a language model solves
// tasks by writing Python snippets that call remotely discovered tools,
// executed in an isolated interpreter with variable bindings carried
// across turns.
//
// The Agent is the high-level entry point. It discovers tools over MCP,
// narrows them to the task at hand, presents them to the model as typed
// Python functions, and loops act / reflect / execute until the model
// answers in plain text or the turn budget runs out.
package canopy
