package docstore

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrExists is returned by Create when the id is already taken.
	ErrExists = errors.New("document already exists")
	// ErrClosed is returned after the store or subscription was closed.
	ErrClosed = errors.New("store closed")
	// ErrInvalidQuery is returned for a malformed projection.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrToggleUnsupported is returned by wrappers whose store cannot
	// toggle atomically.
	ErrToggleUnsupported = errors.New("store does not support atomic toggles")
)

// SubscriptionError reports a rejected or dropped subscription.
type SubscriptionError struct {
	Query Query
	Err   error
}

func (e *SubscriptionError) Error() string {
	return fmt.Sprintf("subscription %s: %v", e.Query.Collection, e.Err)
}

func (e *SubscriptionError) Unwrap() error { return e.Err }

// Op is a mutation kind.
type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
	OpSet    Op = "set"
	OpCreate Op = "create"
	OpToggle Op = "toggle"
)

// MutationError reports a store rejection of a write.
type MutationError struct {
	Op         Op
	Collection string
	ID         string
	Err        error
}

func (e *MutationError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Collection, e.Err)
	}
	return fmt.Sprintf("%s %s/%s: %v", e.Op, e.Collection, e.ID, e.Err)
}

func (e *MutationError) Unwrap() error { return e.Err }
