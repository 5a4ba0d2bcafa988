// Package domain contains the core value types of the canopy engine:
// tool descriptors, conversation messages, variable bindings, execution
// results, and selection verdicts. It has no dependencies on adapters or
// transports so that every layer can share these types freely.
package domain
