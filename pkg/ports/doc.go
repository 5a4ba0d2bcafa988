// Package ports defines the driven-side interfaces of the canopy engine
// (hexagonal architecture). Adapters under pkg/adapters and internal/adapters
// implement these against concrete backends: MCP servers, Redis, the local
// filesystem, and the pyodide interpreter.
package ports
