// Package moderation implements the engine that applies moderator decisions
// to submissions with optimistic-concurrency guarantees.
package moderation

import (
	"errors"
	"fmt"
)

// ErrConcurrentModification is returned when a conditional write lost its
// race twice in a row. The error is transient: callers should retry the
// whole operation.
var ErrConcurrentModification = errors.New(
	"submission modified concurrently, retry the operation",
)

// ValidationError reports malformed input: the request must be fixed, a
// retry with the same arguments will fail the same way.
type ValidationError struct {
	Field  string
	Reason string
}

// Error returns the error message.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// AuthorizationError reports that the acting user lacks a required role.
// Not retryable by that actor.
type AuthorizationError struct {
	Actor  string
	Reason string
}

// Error returns the error message.
func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("actor %s not authorized: %s", e.Actor, e.Reason)
}
