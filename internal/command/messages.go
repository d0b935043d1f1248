package command

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/monsters-club/lounge/internal/core"
	"github.com/monsters-club/lounge/internal/types"
	"github.com/spf13/cobra"
)

// NewMessagesCmd creates the messages command.
func NewMessagesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "messages",
		Short: "Show recent messages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctx.Close()

			ctrl, err := ctx.OpenController(cmd.Context())
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctrl.Close()

			last, _ := cmd.Flags().GetInt("last")
			since, _ := cmd.Flags().GetString("since")
			now := time.Now()

			messages := ctrl.Messages()
			idLength := messageIDLength(messages)
			if since != "" {
				cutoff, err := core.ParseTimeExpression(since, now)
				if err != nil {
					return writeCommandError(cmd, err)
				}
				messages = messagesSince(messages, cutoff)
			}
			messages = lastN(messages, last)

			out := cmd.OutOrStdout()
			if ctx.JSONMode {
				payload := make([]messageJSON, len(messages))
				for i, msg := range messages {
					payload[i] = toMessageJSON(msg)
				}
				return json.NewEncoder(out).Encode(payload)
			}
			if len(messages) == 0 {
				fmt.Fprintln(out, "No messages yet")
				return nil
			}
			for _, msg := range messages {
				fmt.Fprintln(out, FormatMessage(msg, idLength, now))
			}
			return nil
		},
	}

	cmd.Flags().Int("last", 20, "show the last N messages (0 for all)")
	cmd.Flags().String("since", "", "only messages after a time (30m, 2h, today, 2026-10-01)")
	return cmd
}

func messagesSince(messages []types.Message, cutoff time.Time) []types.Message {
	filtered := make([]types.Message, 0, len(messages))
	for _, msg := range messages {
		if msg.CreatedAt.After(cutoff) {
			filtered = append(filtered, msg)
		}
	}
	return filtered
}

func lastN(messages []types.Message, n int) []types.Message {
	if n <= 0 || len(messages) <= n {
		return messages
	}
	return messages[len(messages)-n:]
}
