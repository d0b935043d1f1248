package command

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/monsters-club/lounge/internal/core"
	"github.com/monsters-club/lounge/internal/types"
	"github.com/spf13/cobra"
)

// NewPostCmd creates the post command.
func NewPostCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "post <message>",
		Short: "Post a message to the lounge",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctx.Close()

			if _, err := ctx.RequireUser(cmd.Context()); err != nil {
				return writeCommandError(cmd, err)
			}
			ctrl, err := ctx.OpenController(cmd.Context())
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctrl.Close()

			var replyTo *types.ReplySnapshot
			if ref, _ := cmd.Flags().GetString("reply"); ref != "" {
				target, err := resolveMessage(ctrl, ref)
				if err != nil {
					return writeCommandError(cmd, err)
				}
				quote := target.Quote()
				replyTo = &quote
			}

			id, err := ctrl.Compose(cmd.Context(), strings.Join(args, " "), replyTo)
			if err != nil {
				return writeCommandError(cmd, err)
			}

			if ctx.JSONMode {
				payload := map[string]any{"id": id}
				if replyTo != nil {
					payload["reply_to"] = replyTo.ID
				}
				return json.NewEncoder(cmd.OutOrStdout()).Encode(payload)
			}
			replyInfo := ""
			if replyTo != nil {
				replyInfo = fmt.Sprintf(" (reply to #%s)", core.ShortID(replyTo.ID, core.DisplayLength(len(ctrl.Messages()))))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "[%s] Posted%s\n", core.ShortID(id, messageIDLength(ctrl.Messages())), replyInfo)
			return nil
		},
	}

	cmd.Flags().String("reply", "", "reply to message id")
	return cmd
}
