package stub

import (
	"fmt"
	"sort"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/aretw0/canopy/pkg/domain"
)

// param is one declared stub parameter derived from the tool's input schema.
type param struct {
	Name       string
	PyType     string
	HasDefault bool
	Default    any
}

// parameters derives the stub parameter list from the tool's input schema:
// required parameters first (in schema `required` order), then optional
// ones carrying their schema defaults. A tool without a schema takes no
// parameters.
func parameters(tool domain.Tool) ([]param, error) {
	if len(tool.InputSchema) == 0 {
		return nil, nil
	}

	var schema openapi3.Schema
	if err := schema.UnmarshalJSON(tool.InputSchema); err != nil {
		return nil, fmt.Errorf("tool %q: decoding input schema: %w", tool.Name, err)
	}

	required := make(map[string]bool, len(schema.Required))
	for _, name := range schema.Required {
		required[name] = true
	}

	var params []param
	for _, name := range schema.Required {
		ref, ok := schema.Properties[name]
		if !ok {
			// Required name without a property entry: still declared,
			// typed as the generic fallback.
			params = append(params, param{Name: name, PyType: "str"})
			continue
		}
		params = append(params, param{Name: name, PyType: pyType(ref)})
	}

	// Optional parameters, sorted for stable output (Properties is a map).
	var optional []string
	for name := range schema.Properties {
		if !required[name] {
			optional = append(optional, name)
		}
	}
	sort.Strings(optional)
	for _, name := range optional {
		ref := schema.Properties[name]
		params = append(params, param{
			Name:       name,
			PyType:     pyType(ref),
			HasDefault: true,
			Default:    schemaDefault(ref),
		})
	}

	return params, nil
}

// pyType maps a JSON schema type keyword onto a Python type name.
// Unknown or absent types fall back to str.
func pyType(ref *openapi3.SchemaRef) string {
	if ref == nil || ref.Value == nil || ref.Value.Type == nil || len(*ref.Value.Type) == 0 {
		return "str"
	}
	switch (*ref.Value.Type)[0] {
	case openapi3.TypeString:
		return "str"
	case openapi3.TypeInteger:
		return "int"
	case openapi3.TypeNumber:
		return "float"
	case openapi3.TypeBoolean:
		return "bool"
	case openapi3.TypeArray:
		return "list"
	case openapi3.TypeObject:
		return "dict"
	default:
		return "str"
	}
}

func schemaDefault(ref *openapi3.SchemaRef) any {
	if ref == nil || ref.Value == nil {
		return nil
	}
	return ref.Value.Default
}
