package stub

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/naming"
)

// Mode selects what the rendered declaration is for.
type Mode int

const (
	// ModePrompt renders signature and docstring only, with an elided body.
	ModePrompt Mode = iota
	// ModeExec renders a full body that forwards the call to the MCP
	// client available inside the sandbox as _mcp_client.
	ModeExec
)

// Generator renders Python declarations for a fixed tool subset. The
// naming table is built once per subset so raw<->safe lookups stay
// bijective for the subset's lifetime.
type Generator struct {
	table *naming.Table
}

// NewGenerator creates a Generator over an existing naming table.
func NewGenerator(table *naming.Table) *Generator {
	return &Generator{table: table}
}

// Table exposes the underlying naming table.
func (g *Generator) Table() *naming.Table {
	return g.table
}

// Render emits the declaration for one tool in the given mode.
func (g *Generator) Render(tool domain.Tool, mode Mode) (string, error) {
	safe, ok := g.table.SafeName(tool.Name)
	if !ok {
		return "", fmt.Errorf("%w: %q not in active subset", domain.ErrToolNotFound, tool.Name)
	}

	params, err := parameters(tool)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "async def %s(%s):\n", safe, signature(params))
	fmt.Fprintf(&b, "    \"\"\"%s\"\"\"\n", docstring(tool))

	if mode == ModePrompt {
		b.WriteString("    ...\n")
		return b.String(), nil
	}

	fmt.Fprintf(&b, "    _args = {%s}\n", argsDict(params))
	b.WriteString("    try:\n")
	fmt.Fprintf(&b, "        _response = await _mcp_client.call_tool(%s, _args)\n", strconv.Quote(tool.Name))
	b.WriteString("    except Exception as _exc:\n")
	fmt.Fprintf(&b, "        print(f\"Tool %s failed with arguments {_args!r}: {_exc}\")\n", safe)
	b.WriteString("        raise\n")
	b.WriteString("    def _process_item(item):\n")
	b.WriteString("        if hasattr(item, \"text\"):\n")
	b.WriteString("            try:\n")
	b.WriteString("                return json.loads(item.text)\n")
	b.WriteString("            except Exception:\n")
	b.WriteString("                return item.text\n")
	b.WriteString("        return item\n")
	b.WriteString("    if isinstance(_response, list):\n")
	b.WriteString("        return [_process_item(item) for item in _response]\n")
	b.WriteString("    return _process_item(_response)\n")

	return b.String(), nil
}

// RenderAll emits declarations for every tool in the subset, in catalog
// order, separated by blank lines.
func (g *Generator) RenderAll(tools domain.Catalog, mode Mode) (string, error) {
	parts := make([]string, 0, len(tools))
	for _, tool := range tools {
		decl, err := g.Render(tool, mode)
		if err != nil {
			return "", err
		}
		parts = append(parts, decl)
	}
	return strings.Join(parts, "\n"), nil
}

func signature(params []param) string {
	parts := make([]string, 0, len(params))
	for _, p := range params {
		if p.HasDefault {
			parts = append(parts, fmt.Sprintf("%s: %s = %s", p.Name, p.PyType, Repr(p.Default)))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s", p.Name, p.PyType))
	}
	return strings.Join(parts, ", ")
}

func argsDict(params []param) string {
	parts := make([]string, 0, len(params))
	for _, p := range params {
		parts = append(parts, fmt.Sprintf("%q: %s", p.Name, p.Name))
	}
	return strings.Join(parts, ", ")
}

func docstring(tool domain.Tool) string {
	doc := tool.Description
	if doc == "" {
		doc = "Call the " + tool.Name + " tool."
	}
	// Keep the docstring closed even if the description carries quotes.
	return strings.ReplaceAll(doc, `"""`, `\"\"\"`)
}

// Indent shifts every line of a block right by the given number of
// four-space levels, preserving empty lines. Used to splice generated
// declarations into the sandbox wrapper.
func Indent(block string, levels int) string {
	pad := strings.Repeat("    ", levels)
	lines := strings.Split(block, "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = pad + line
		}
	}
	return strings.Join(lines, "\n")
}
