package command

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/monsters-club/lounge/internal/core"
	"github.com/spf13/cobra"
)

// NewEditCmd creates the edit command.
func NewEditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "edit <msgid> <message>",
		Short: "Edit a message you posted",
		Args:  cobra.MinimumNArgs(2),
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

			msg, err := resolveMessage(ctrl, args[0])
			if err != nil {
				return writeCommandError(cmd, err)
			}
			if err := ctrl.Edit(cmd.Context(), msg.ID, strings.Join(args[1:], " ")); err != nil {
				return writeCommandError(cmd, err)
			}

			if ctx.JSONMode {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{"id": msg.ID, "edited": true})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Edited message #%s\n", core.ShortID(msg.ID, messageIDLength(ctrl.Messages())))
			return nil
		},
	}
}
