package domain

// Binding is a named value produced by a previous snippet and carried
// forward into later ones. Non-callable values round-trip as JSON data.
// Callable values carry their recovered source definition instead; when
// Source is empty the binding cannot be rehydrated and is skipped.
type Binding struct {
	Value    any    `json:"value,omitempty" yaml:"value,omitempty"`
	Source   string `json:"source,omitempty" yaml:"source,omitempty"`
	Callable bool   `json:"callable,omitempty" yaml:"callable,omitempty"`
}

// Bindings maps variable names to their bound values for one session.
type Bindings map[string]Binding

// Merge applies a delta on top of the receiver and returns the result.
// The receiver is not modified. Later deltas win on key conflict, which
// matches replaying an append-only log in order.
func (b Bindings) Merge(delta Bindings) Bindings {
	merged := make(Bindings, len(b)+len(delta))
	for k, v := range b {
		merged[k] = v
	}
	for k, v := range delta {
		merged[k] = v
	}
	return merged
}

// Has reports whether a name is already bound.
func (b Bindings) Has(name string) bool {
	_, ok := b[name]
	return ok
}
