package domain

import "errors"

// ErrSessionNotFound is returned when a session ID has no stored bindings.
var ErrSessionNotFound = errors.New("session not found")

// ErrIdentifierCollision is returned when two distinct raw tool names map
// to the same safe identifier within one tool subset.
var ErrIdentifierCollision = errors.New("safe identifier collision")

// ErrSandboxUnavailable is returned when the interpreter backend cannot be
// constructed or reached at all.
var ErrSandboxUnavailable = errors.New("sandbox unavailable")

// ErrToolNotFound is returned when a call names a tool absent from the
// active catalog.
var ErrToolNotFound = errors.New("tool not found")
