package engine

import (
	"errors"
	"fmt"
)

// Sentinel errors callers branch on with errors.Is.
var (
	// ErrNoChanges is returned by a diffed update when no column value
	// differs from the reloaded original.
	ErrNoChanges = errors.New("engine: update has no changes")

	// ErrNotConnected is returned when an operation runs before Connect.
	ErrNotConnected = errors.New("engine: not connected to a database")

	// ErrNotFound is returned when a retrieve by key matches no row.
	ErrNotFound = errors.New("engine: row not found")

	// ErrInvalidArgument marks caller mistakes such as a null identifier
	// in an IN-list lookup.
	ErrInvalidArgument = errors.New("engine: invalid argument")
)

// ConfigError reports a fatal entity or engine misconfiguration: a missing
// identity or primary key, an audit column without a resolver, an
// unsupported row-identifier type. Never retried.
type ConfigError struct {
	Entity string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Entity == "" {
		return fmt.Sprintf("engine: configuration error: %s", e.Reason)
	}
	return fmt.Sprintf("engine: configuration error on %s: %s", e.Entity, e.Reason)
}

func configErr(entity, format string, args ...any) error {
	return &ConfigError{Entity: entity, Reason: fmt.Sprintf(format, args...)}
}

// CapacityError reports a statement whose parameter count would exceed the
// provider's limit. Raised before any network round-trip; callers chunk.
type CapacityError struct {
	Count int
	Limit int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("engine: %d parameters exceed the provider limit of %d", e.Count, e.Limit)
}

// WriteConnectionError reports a write that attempted to bypass the pinned
// writer connection under the SingleWriter strategy.
type WriteConnectionError struct {
	Strategy Strategy
}

func (e *WriteConnectionError) Error() string {
	return fmt.Sprintf("engine: write refused a non-writer connection under strategy %s", e.Strategy)
}
