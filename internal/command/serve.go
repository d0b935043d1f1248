package command

import (
	"fmt"

	"github.com/monsters-club/lounge/internal/server"
	"github.com/spf13/cobra"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the public content collections over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctx.Close()

			runCtx, stop := signalContext(cmd)
			defer stop()

			httpCfg := ctx.Config.HTTP
			if cmd.Flags().Changed("addr") {
				httpCfg.Addr, _ = cmd.Flags().GetString("addr")
			}

			srv, err := server.New(runCtx, ctx.Store, server.Options{
				Logger:         ctx.Logger,
				RateLimit:      httpCfg.RateLimit,
				RateBurst:      httpCfg.RateBurst,
				AllowedOrigins: httpCfg.AllowedOrigins,
			})
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer srv.Close()

			fmt.Fprintf(cmd.ErrOrStderr(), "Serving lounge content on http://%s (Ctrl+C to stop)\n", httpCfg.Addr)
			if err := srv.ListenAndServe(runCtx, httpCfg.Addr); err != nil {
				return writeCommandError(cmd, err)
			}
			return nil
		},
	}

	cmd.Flags().String("addr", "", "listen address (default from config)")
	return cmd
}
