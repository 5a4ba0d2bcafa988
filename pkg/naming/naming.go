// Package naming converts arbitrary tool names into identifiers that are
// legal as Python function names, and maintains the raw<->safe lookup
// table for one tool subset.
package naming

import (
	"fmt"
	"strings"

	"github.com/aretw0/canopy/pkg/domain"
)

// Safe converts a raw tool name to a valid Python function name.
// Every character outside [A-Za-z0-9_] becomes "_"; a digit-leading result
// gets a "tool_" prefix; an empty result becomes "unnamed_tool".
// Pure, total, deterministic.
func Safe(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	name := b.String()
	if name == "" {
		return "unnamed_tool"
	}
	if name[0] >= '0' && name[0] <= '9' {
		return "tool_" + name
	}
	return name
}

// Table is the bijective raw<->safe mapping for one tool subset. The
// mapping function itself is not injective across arbitrary catalogs (two
// raw names may collapse to one identifier), so construction fails on
// collision instead of silently picking a winner.
type Table struct {
	order  []string          // safe names in catalog order
	toRaw  map[string]string // safe -> raw
	toSafe map[string]string // raw -> safe
}

// NewTable builds the lookup table for the given tools, preserving catalog
// order. Returns domain.ErrIdentifierCollision if two distinct raw names
// map to the same identifier.
func NewTable(tools domain.Catalog) (*Table, error) {
	t := &Table{
		order:  make([]string, 0, len(tools)),
		toRaw:  make(map[string]string, len(tools)),
		toSafe: make(map[string]string, len(tools)),
	}
	for _, tool := range tools {
		safe := Safe(tool.Name)
		if prev, ok := t.toRaw[safe]; ok {
			if prev == tool.Name {
				continue // duplicate descriptor, not a collision
			}
			return nil, fmt.Errorf("%w: %q and %q both map to %q",
				domain.ErrIdentifierCollision, prev, tool.Name, safe)
		}
		t.order = append(t.order, safe)
		t.toRaw[safe] = tool.Name
		t.toSafe[tool.Name] = safe
	}
	return t, nil
}

// SafeName returns the identifier for a raw tool name.
func (t *Table) SafeName(raw string) (string, bool) {
	s, ok := t.toSafe[raw]
	return s, ok
}

// RawName returns the raw tool name behind an identifier.
func (t *Table) RawName(safe string) (string, bool) {
	r, ok := t.toRaw[safe]
	return r, ok
}

// SafeNames returns all identifiers in catalog order.
func (t *Table) SafeNames() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// Has reports whether the identifier belongs to the active tool subset.
func (t *Table) Has(safe string) bool {
	_, ok := t.toRaw[safe]
	return ok
}

// Len returns the number of mapped tools.
func (t *Table) Len() int {
	return len(t.order)
}
