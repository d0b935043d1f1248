package command

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/monsters-club/lounge/internal/core"
	"github.com/monsters-club/lounge/internal/lounge"
	"github.com/monsters-club/lounge/internal/types"
	"github.com/spf13/cobra"
)

func formatRelative(ts time.Time, now time.Time) string {
	if ts.IsZero() {
		return "--"
	}
	if !ts.Before(now) || now.Sub(ts) < time.Second {
		return "just now"
	}
	return humanize.RelTime(ts, now, "ago", "from now")
}

func stripHash(value string) string {
	return strings.TrimPrefix(strings.TrimSpace(value), "#")
}

// resolveMessage finds a mirrored message by full id or unique suffix.
func resolveMessage(ctrl *lounge.Controller, ref string) (types.Message, error) {
	messages := ctrl.Messages()
	ids := make([]string, len(messages))
	for i, msg := range messages {
		ids[i] = msg.ID
	}
	id, err := core.ResolveID(ids, stripHash(ref))
	if err != nil {
		return types.Message{}, err
	}
	msg, ok := ctrl.Find(id)
	if !ok {
		return types.Message{}, lounge.ErrMessageNotFound
	}
	return msg, nil
}

// readLine reads one trimmed line from in. EOF with no input yields "".
func readLine(in io.Reader) (string, error) {
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// readPassword uses --password when given, otherwise LOUNGE_PASSWORD,
// otherwise one line from stdin.
func readPassword(cmd *cobra.Command) (string, error) {
	if password, _ := cmd.Flags().GetString("password"); password != "" {
		return password, nil
	}
	if password := os.Getenv("LOUNGE_PASSWORD"); password != "" {
		return password, nil
	}
	fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
	password, err := readLine(cmd.InOrStdin())
	fmt.Fprintln(cmd.ErrOrStderr())
	return password, err
}

// confirm asks a yes/no question on stdin. Anything but y/yes is no.
func confirm(cmd *cobra.Command, prompt string) (bool, error) {
	fmt.Fprintf(cmd.ErrOrStderr(), "%s [y/N] ", prompt)
	answer, err := readLine(cmd.InOrStdin())
	if err != nil {
		return false, err
	}
	answer = strings.ToLower(answer)
	return answer == "y" || answer == "yes", nil
}

// signalContext is cancelled on Ctrl+C or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

func optionalString(value *string) string {
	if value == nil || *value == "" {
		return "--"
	}
	return *value
}
