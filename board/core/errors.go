// ABOUTME: Error taxonomy for board mutations: validation, not-found, index, and dispatch failures.
// ABOUTME: Typed errors carry detail; each matches its sentinel through errors.Is.
package core

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation matches every *ValidationError.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound matches every *NotFoundError.
	ErrNotFound = errors.New("not found")

	// ErrIndex matches every *IndexError.
	ErrIndex = errors.New("index out of range")

	// ErrDispatch matches every *DispatchError.
	ErrDispatch = errors.New("webhook dispatch failed")

	// ErrActorBusy indicates the actor's command buffer is full.
	ErrActorBusy = errors.New("actor command buffer full")

	// ErrActorStopped indicates the actor no longer accepts commands.
	ErrActorStopped = errors.New("actor stopped")

	// ErrUnknownCommand indicates the command type is not recognized by the actor.
	ErrUnknownCommand = errors.New("unknown command type")

	// ErrNoDragSession indicates a drag-over or drag-end arrived while idle.
	ErrNoDragSession = errors.New("no drag in progress")
)

// ValidationError reports a rejected field value. The mutation is not applied.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Is reports whether target is ErrValidation.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NotFoundError reports a referenced entity id that does not exist.
type NotFoundError struct {
	Kind string // "board", "list", "card", "tag", "automation", "integration"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// Is reports whether target is ErrNotFound.
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// IndexError reports a positional argument outside [0, Len).
type IndexError struct {
	Index int
	Len   int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("index %d out of range [0, %d)", e.Index, e.Len)
}

// Is reports whether target is ErrIndex.
func (e *IndexError) Is(target error) bool { return target == ErrIndex }

// DispatchError reports a failed webhook call. It is logged and notified,
// never returned to a mutation caller.
type DispatchError struct {
	URL    string
	Status int // zero when the request never got a response
	Err    error
}

func (e *DispatchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("webhook %s returned status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("webhook %s: %v", e.URL, e.Err)
}

// Is reports whether target is ErrDispatch.
func (e *DispatchError) Is(target error) bool { return target == ErrDispatch }

func (e *DispatchError) Unwrap() error { return e.Err }

func notFound(kind string, id fmt.Stringer) error {
	return &NotFoundError{Kind: kind, ID: id.String()}
}
