package command

import (
	"encoding/json"
	"fmt"

	"github.com/monsters-club/lounge/internal/config"
	"github.com/monsters-club/lounge/internal/core"
	"github.com/spf13/cobra"
)

type initResult struct {
	Initialized bool   `json:"initialized"`
	Path        string `json:"path"`
	Backend     string `json:"backend"`
	Config      string `json:"config"`
}

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a lounge project in the current directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			force, _ := cmd.Flags().GetBool("force")
			backend, _ := cmd.Flags().GetString("backend")
			redisURL, _ := cmd.Flags().GetString("redis-url")
			jsonMode, _ := cmd.Flags().GetBool("json")
			dir, _ := cmd.Flags().GetString("project")

			cfg := config.Default()
			cfg.Store.Backend = backend
			cfg.Store.RedisURL = redisURL
			if err := cfg.Validate(); err != nil {
				return writeCommandError(cmd, err)
			}
			data, err := config.Marshal(cfg)
			if err != nil {
				return writeCommandError(cmd, err)
			}

			project, err := core.InitProject(dir, data, force)
			if err != nil {
				return writeCommandError(cmd, err)
			}

			result := initResult{Initialized: true, Path: project.Root, Backend: backend, Config: project.ConfigPath()}
			if jsonMode {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(result)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Initialized lounge in %s (%s store)\n", project.Root, backend)
			fmt.Fprintln(cmd.OutOrStdout(), "Next: lounge register <email> --name <name>")
			return nil
		},
	}

	cmd.Flags().Bool("force", false, "reinitialize, deleting the local database")
	cmd.Flags().String("backend", config.BackendSQLite, "store backend: sqlite, memory or redis")
	cmd.Flags().String("redis-url", "", "redis URL for the redis backend")
	return cmd
}
