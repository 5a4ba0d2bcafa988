package ports

import (
	"context"

	"github.com/aretw0/canopy/pkg/domain"
)

// ToolTransport is the external tool-invocation collaborator. ListTools
// returns the current catalog snapshot; CallTool invokes one tool by raw
// name with a single argument structure and returns its decoded result.
type ToolTransport interface {
	ListTools(ctx context.Context) (domain.Catalog, error)
	CallTool(ctx context.Context, name string, args map[string]any) (any, error)
}
