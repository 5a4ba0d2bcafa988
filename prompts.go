package canopy

import (
	"fmt"
	"strings"

	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/naming"
	"github.com/aretw0/canopy/pkg/stub"
)

const taskInstructions = `You will be given a task to perform. You should output either
- a Python code snippet that provides the solution to the task, or a step towards the solution. Any output you want to extract from the code should be printed to the console. Code should be output in a fenced code block.
- text to be shown directly to the user, if you want to ask for more information or provide the final answer.
`

const codingGuidance = `Variables defined at the top level of previous code snippets can be referenced in your code.

Note: Your code is already running in an async context. Do not use asyncio.run() as it will cause errors. You can directly await async functions.

For multi-line strings, always use triple quotes (""") even if the string contains \n as a character combination rather than actual new lines.

Always use print() statements to explore data structures and function outputs. Simply returning values will not display them back to you for inspection. For example, use print(result) instead of just 'result'.

As you don't know the output schema of the additional Python functions you have access to, start from exploring their contents before building a final solution.

Reminder: use Python code snippets to call tools`

// systemPrompt renders the full system turn: optional base instructions,
// the task contract, and the active tools presented as elided Python
// declarations.
func systemPrompt(base string, tools domain.Catalog) (string, error) {
	table, err := naming.NewTable(tools)
	if err != nil {
		return "", err
	}

	decls, err := stub.NewGenerator(table).RenderAll(tools, stub.ModePrompt)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	if base != "" {
		b.WriteString(base)
		b.WriteString("\n\n")
	}
	b.WriteString(taskInstructions)
	b.WriteString("\nIn addition to the Python Standard Library, you can use the following functions:\n\n")
	b.WriteString(decls)
	b.WriteString("\n")
	b.WriteString(codingGuidance)
	return b.String(), nil
}

// renderConversation flattens the system turn and the message history into
// a single prompt for the act model.
func renderConversation(system string, conversation []domain.Message) string {
	var b strings.Builder
	b.WriteString(system)
	b.WriteString("\n")
	for _, msg := range conversation {
		fmt.Fprintf(&b, "\n%s: %s\n", roleLabel(msg.Role), msg.Content)
	}
	b.WriteString("\nAssistant:")
	return b.String()
}

func roleLabel(role string) string {
	switch role {
	case domain.RoleAssistant:
		return "Assistant"
	case domain.RoleSystem:
		return "System"
	default:
		return "User"
	}
}
