package command

import (
	"errors"
	"fmt"

	"github.com/monsters-club/lounge/internal/auth"
	"github.com/monsters-club/lounge/internal/cms"
	"github.com/monsters-club/lounge/internal/lounge"
	"github.com/spf13/cobra"
)

func writeCommandError(cmd *cobra.Command, err error) error {
	fmt.Fprintf(cmd.ErrOrStderr(), "Error: %s\n", err.Error())

	if hint := errorHint(err); hint != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Hint: %s\n", hint)
	}
	return &reportedError{err: err}
}

// reportedError marks an error that was already written to stderr.
type reportedError struct {
	err error
}

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }

func errorHint(err error) string {
	switch {
	case errors.Is(err, auth.ErrNoSession), errors.Is(err, lounge.ErrSignedOut):
		return "sign in with: lounge login <email>"
	case errors.Is(err, cms.ErrNotAdmin):
		return "ask an admin to run: lounge user role <uid> admin"
	case errors.Is(err, auth.ErrEmailTaken):
		return "already registered? Try: lounge login <email>"
	}
	return ""
}
