package command

import (
	"encoding/json"
	"fmt"

	"github.com/monsters-club/lounge/internal/core"
	"github.com/spf13/cobra"
)

// NewRmCmd creates the rm command.
func NewRmCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rm <msgid>",
		Short: "Delete a message you posted",
		Args:  cobra.ExactArgs(1),
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
			short := core.ShortID(msg.ID, messageIDLength(ctrl.Messages()))

			if yes, _ := cmd.Flags().GetBool("yes"); !yes {
				ok, err := confirm(cmd, fmt.Sprintf("Delete #%s %q?", short, preview(msg.Text, 40)))
				if err != nil {
					return writeCommandError(cmd, err)
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "Cancelled")
					return nil
				}
			}

			if err := ctrl.Delete(cmd.Context(), msg.ID); err != nil {
				return writeCommandError(cmd, err)
			}
			if ctx.JSONMode {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{"id": msg.ID, "deleted": true})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted message #%s\n", short)
			return nil
		},
	}

	cmd.Flags().BoolP("yes", "y", false, "skip confirmation")
	return cmd
}
