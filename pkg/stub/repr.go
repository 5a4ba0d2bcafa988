package stub

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Repr renders a Go value as a Python literal that evaluates back to the
// same value inside the sandbox. Multi-line strings switch to a
// triple-quote style (escaping any internal occurrence of that sequence)
// so that re-declared bindings survive the round trip. Containers are
// rendered element-by-element so nested multi-line strings round-trip too.
func Repr(v any) string {
	switch val := v.(type) {
	case nil:
		return "None"
	case bool:
		if val {
			return "True"
		}
		return "False"
	case string:
		return reprString(val)
	case json.Number:
		return val.String()
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case map[string]any:
		return reprMap(val)
	case []any:
		items := make([]string, len(val))
		for i, item := range val {
			items[i] = Repr(item)
		}
		return "[" + strings.Join(items, ", ") + "]"
	default:
		// Last resort: JSON is a Python-compatible literal for everything
		// except null/true/false, which are handled above.
		data, err := json.Marshal(val)
		if err != nil {
			return reprString(fmt.Sprintf("%v", val))
		}
		return string(data)
	}
}

func reprString(s string) string {
	if strings.ContainsAny(s, "\n\r") {
		// Escape any embedded triple quotes so the literal stays closed.
		escaped := strings.ReplaceAll(s, "'''", `\'\'\'`)
		return "'''" + escaped + "'''"
	}
	var b strings.Builder
	b.WriteByte('\'')
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '\'':
			b.WriteString(`\'`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('\'')
	return b.String()
}

func reprMap(m map[string]any) string {
	// Map iteration order is random in Go; sort keys so the generated
	// code is stable across turns.
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	items := make([]string, 0, len(m))
	for _, k := range keys {
		items = append(items, reprString(k)+": "+Repr(m[k]))
	}
	return "{" + strings.Join(items, ", ") + "}"
}
