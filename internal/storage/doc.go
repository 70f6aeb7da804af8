// Package storage is the persistence layer: subscriber preferences, the
// single-active model registry, per-user personas and notes.
//
// All multi-step mutations run inside sqlite transactions; the registry
// switch additionally relies on a partial unique index so "exactly one
// active model" holds at the schema level, not just by application
// discipline.
package storage
