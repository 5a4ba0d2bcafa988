// Package session runs model-written Python snippets in an isolated
// interpreter and carries variable bindings across turns.
//
// The Executor owns one dispatch: it rehydrates prior bindings into the
// snippet's preamble, injects live tool declarations, wraps everything in
// an async entrypoint, and classifies the outcome. The Manager serializes
// access per session, in-process and optionally across replicas, over an
// append-only binding log.
package session
