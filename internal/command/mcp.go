package command

import (
	"github.com/monsters-club/lounge/internal/mcp"
	"github.com/spf13/cobra"
)

// NewMCPCmd creates the mcp command.
func NewMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve lounge tools to an MCP client over stdio",
		Long: `Serve lounge tools to an MCP client over stdio. Tools act as the
signed-in user; reads work without a session.`,
		Args: cobra.NoArgs,
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

			if err := mcp.NewServer(ctrl, cmd.Root().Version).RunStdio(runCtx); err != nil {
				return writeCommandError(cmd, err)
			}
			return nil
		},
	}
}
