package domain

// Message roles. The engine only distinguishes the user and assistant
// sides; anything else is passed through untouched.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is a single conversation turn.
type Message struct {
	Role    string `json:"role" yaml:"role" mapstructure:"role"`
	Content string `json:"content" yaml:"content" mapstructure:"content"`
}

// UserMessage is a convenience constructor for user turns.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage is a convenience constructor for assistant turns.
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}
