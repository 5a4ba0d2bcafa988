package domain

import "encoding/json"

// Tool describes one externally invocable capability, as advertised by the
// tool transport. It is immutable once fetched; a catalog is the set of
// tools discovered at the start of one agent run.
type Tool struct {
	Name        string          `json:"name" yaml:"name" mapstructure:"name"`
	Description string          `json:"description" yaml:"description" mapstructure:"description"`
	InputSchema json.RawMessage `json:"input_schema,omitempty" yaml:"input_schema,omitempty" mapstructure:"input_schema"`
}

// Catalog is an ordered snapshot of available tools. Order is whatever the
// transport returned; name uniqueness is the only guarantee callers may
// rely on.
type Catalog []Tool

// Names returns the tool names in catalog order.
func (c Catalog) Names() []string {
	names := make([]string, 0, len(c))
	for _, t := range c {
		names = append(names, t.Name)
	}
	return names
}

// Lookup returns the tool with the given raw name.
func (c Catalog) Lookup(name string) (Tool, bool) {
	for _, t := range c {
		if t.Name == name {
			return t, true
		}
	}
	return Tool{}, false
}
