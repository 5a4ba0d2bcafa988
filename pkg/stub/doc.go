// Package stub turns tool descriptors into Python callable declarations.
//
// Two modes exist: prompt mode emits signature plus docstring only, used to
// inform the reasoning model of available calls; execution mode emits a real
// body that forwards the call over the MCP client injected into the sandbox.
// Stub generation never invokes a tool; only execution of the generated code
// does.
package stub
