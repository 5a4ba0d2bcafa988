package domain

// Verdict is the structured output of the relevance selector's model call:
// a short task decomposition plan plus an ordered list of tool names. An
// invalid or unparsable verdict is never an error for the caller; the
// selector degrades to the full catalog instead.
type Verdict struct {
	TaskPlan  string   `json:"task_plan" mapstructure:"task_plan"`
	ToolNames []string `json:"tool_names" mapstructure:"tool_names"`
}
