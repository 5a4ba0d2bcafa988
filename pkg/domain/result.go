package domain

// ErrorKind classifies the outcome of one snippet execution.
type ErrorKind int

const (
	// ErrNone means the snippet ran to completion.
	ErrNone ErrorKind = iota
	// ErrRuntime means the submitted code raised inside the interpreter.
	ErrRuntime
	// ErrSandbox means the interpreter backend itself could not be
	// constructed or reached.
	ErrSandbox
	// ErrTransport means the interpreter produced a non-empty low-level
	// error stream.
	ErrTransport
)

// String returns a stable label for logging and metrics.
func (k ErrorKind) String() string {
	switch k {
	case ErrNone:
		return "none"
	case ErrRuntime:
		return "runtime"
	case ErrSandbox:
		return "sandbox_unavailable"
	case ErrTransport:
		return "transport"
	default:
		return "unknown"
	}
}

// ExecutionResult is always produced by an execution, never partial:
// either a best-effort stdout/bindings pair, or a synthetic error string
// standing in for stdout with empty bindings.
type ExecutionResult struct {
	Stdout      string    `json:"stdout"`
	NewBindings Bindings  `json:"new_bindings,omitempty"`
	ErrKind     ErrorKind `json:"err_kind"`
}

// OK reports whether the execution completed without any error class.
func (r ExecutionResult) OK() bool {
	return r.ErrKind == ErrNone
}
