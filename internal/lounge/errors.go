package lounge

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyText rejects a message whose text is blank after trimming.
	ErrEmptyText = errors.New("message text is empty")
	// ErrEmptyReaction rejects a blank reaction symbol.
	ErrEmptyReaction = errors.New("reaction symbol is empty")
	// ErrMessageNotFound is returned when the id is not in the mirror.
	ErrMessageNotFound = errors.New("message not found")
	// ErrSignedOut is returned when no identity is available.
	ErrSignedOut = errors.New("not signed in")
	// ErrNotAuthor matches every *AuthorizationError.
	ErrNotAuthor = errors.New("only the author can change this message")
	// ErrBusy is returned by a composer that is already submitting.
	ErrBusy = errors.New("a submission is already in progress")
)

// AuthorizationError reports an edit or delete attempted by someone other
// than the message author.
type AuthorizationError struct {
	Op        string
	MessageID string
	Actor     string
	Author    string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("%s %s: user %s is not the author", e.Op, e.MessageID, e.Actor)
}

func (e *AuthorizationError) Is(target error) bool {
	return target == ErrNotAuthor
}
