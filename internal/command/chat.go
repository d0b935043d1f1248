package command

import (
	"path/filepath"

	"github.com/monsters-club/lounge/internal/chat"
	"github.com/spf13/cobra"
)

// NewChatCmd creates the interactive chat command.
func NewChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive lounge chat",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctx.Close()

			runCtx, stop := signalContext(cmd)
			defer stop()

			ctrl, err := ctx.OpenController(runCtx)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctrl.Close()

			notify, _ := cmd.Flags().GetBool("notify")
			return chat.Run(runCtx, chat.Options{
				Controller: ctrl,
				Title:      filepath.Base(ctx.Project.Root),
				Notify:     notify,
			})
		},
	}

	cmd.Flags().Bool("notify", false, "desktop notifications for new messages")
	return cmd
}
