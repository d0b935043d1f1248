package command

import (
	"encoding/json"
	"fmt"

	"github.com/monsters-club/lounge/internal/core"
	"github.com/spf13/cobra"
)

// reactionAliases maps words to the quick reaction symbols.
var reactionAliases = map[string]string{
	"like":  "👍",
	"+1":    "👍",
	"heart": "❤️",
	"love":  "❤️",
	"fire":  "🔥",
	"lol":   "😂",
}

// NewReactCmd creates the react command.
func NewReactCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "react <symbol> <msgid>",
		Short: "Toggle a reaction on a message",
		Long:  "Toggle a reaction on a message. Running it again removes your reaction.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctx.Close()

			who, err := ctx.RequireUser(cmd.Context())
			if err != nil {
				return writeCommandError(cmd, err)
			}
			ctrl, err := ctx.OpenController(cmd.Context())
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctrl.Close()

			symbol := args[0]
			if alias, ok := reactionAliases[symbol]; ok {
				symbol = alias
			}
			msg, err := resolveMessage(ctrl, args[1])
			if err != nil {
				return writeCommandError(cmd, err)
			}
			added := !msg.Reactions.Has(symbol, who.ID)
			if err := ctrl.ToggleReaction(cmd.Context(), msg.ID, symbol); err != nil {
				return writeCommandError(cmd, err)
			}

			if ctx.JSONMode {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{"id": msg.ID, "reaction": symbol, "added": added})
			}
			verb := "Removed"
			if added {
				verb = "Added"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s on #%s\n", verb, symbol, core.ShortID(msg.ID, messageIDLength(ctrl.Messages())))
			return nil
		},
	}
}
